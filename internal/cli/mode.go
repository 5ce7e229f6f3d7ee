package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/thruflo/pacer/internal/mode"
)

var (
	modeDuration time.Duration
	modeTarget   string
)

var modeCmd = &cobra.Command{
	Use:   "mode <resume|pause|dream|manual|stop>",
	Short: "Send a control message to running loop instances",
	Long: `Appends a control message to the broadcast control log. Each running
instance applies it on its next tick.

Actions:
  resume  clear the current resting mode, return to CONTINUE
  pause   rest for a duration (default from config)
  dream   low-intensity rest for a duration (default from config)
  manual  hold restarts until explicitly resumed or immediately woken
  stop    terminate the loop

By default a message addresses every instance; --target narrows it to one.

Example:
  pacer mode pause --duration 10m
  pacer mode manual --target worker-a
  pacer mode resume`,
	Args: cobra.ExactArgs(1),
	RunE: runMode,
}

func init() {
	modeCmd.Flags().DurationVarP(&modeDuration, "duration", "d", 0, "how long pause/dream lasts (default from config)")
	modeCmd.Flags().StringVar(&modeTarget, "target", "", "address one instance instead of all")
	rootCmd.AddCommand(modeCmd)
}

func runMode(cmd *cobra.Command, args []string) error {
	msg := mode.Message{
		Action:          args[0],
		DurationSeconds: int(modeDuration.Seconds()),
		Target:          modeTarget,
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := mode.Send(s, msg)
	if err != nil {
		return fmt.Errorf("failed to send control message: %w", err)
	}

	scope := "all instances"
	if modeTarget != "" {
		scope = modeTarget
	}
	fmt.Printf("Sent %s to %s (record %d)\n", msg.Action, scope, id)
	return nil
}
