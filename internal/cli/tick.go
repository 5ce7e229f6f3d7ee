package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/loop"
	"github.com/thruflo/pacer/internal/worker"
	"github.com/thruflo/pacer/internal/worklog"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single admission tick",
	Long: `Runs exactly one admission tick and exits. Intended for callers that
supervise the loop externally (cron, systemd timers, shell wrappers).

Exit codes:
  0  proceed (tick completed; caller should tick again after a short sleep)
  2  stop (a stop control message is in effect; caller should not tick again)
  1  error`,
	Args: cobra.NoArgs,
	RunE: runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

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

	driver := loop.NewDriver(loop.Options{
		Store:    s,
		Config:   cfg,
		Instance: instance,
		Executor: worker.NewExecExecutor(cfg.Worker.Command, cwd),
		Worklog:  worklog.NewStore(cwd, instance),
	})

	res := driver.Tick(ctx)

	switch res.Outcome {
	case loop.OutcomeStop:
		fmt.Printf("cycle=%d mode=%s outcome=stop\n", res.Cycle, res.Mode)
		exitCode = 2
	case loop.OutcomeError:
		return fmt.Errorf("tick failed (cycle=%d)", res.Cycle)
	default:
		line := fmt.Sprintf("cycle=%d mode=%s restarted=%t", res.Cycle, res.Mode, res.Restarted)
		if res.DenyReason != "" {
			line += " denied=" + res.DenyReason
		}
		fmt.Println(line)
	}
	return nil
}
