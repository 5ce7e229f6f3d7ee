package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/loop"
	"github.com/thruflo/pacer/internal/worker"
	"github.com/thruflo/pacer/internal/worklog"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the admission loop until stopped",
	Long: `Runs the loop driver in-process: each tick evaluates the operating
mode, the emergency damper, the burst guard, and pending wake signals, then
restarts the configured worker command when admitted.

The loop exits on a stop control message, an unrecoverable error, or
SIGINT/SIGTERM.

Example:
  pacer run
  pacer run --instance worker-a`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, cwd, err := loadConfig()
	if err != nil {
		return err
	}

	instance := config.ResolveInstance(instanceFlag)

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver := loop.NewDriver(loop.Options{
		Store:    s,
		Config:   cfg,
		Instance: instance,
		Executor: worker.NewExecExecutor(cfg.Worker.Command, cwd),
		Worklog:  worklog.NewStore(cwd, instance),
	})

	fmt.Printf("Running as instance %s (store: %s)\n", instance, cfg.StorePath)

	result := driver.Run(ctx)
	fmt.Printf("Loop finished: reason=%s ticks=%d\n", result.Reason, result.Ticks)
	if result.Err != nil {
		return fmt.Errorf("loop error: %w", result.Err)
	}
	return nil
}
