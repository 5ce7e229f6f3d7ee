package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/thruflo/pacer/internal/wake"
)

var (
	wakeMessage string
	wakeReason  string
	wakeAt      string
	wakeIn      time.Duration
)

var wakeCmd = &cobra.Command{
	Use:   "wake <immediate|priority|scheduled|deferred>",
	Short: "Append a wake signal to a tier's broadcast log",
	Long: `Appends a wake signal that running loop instances pick up on their
next tick.

Tiers:
  immediate  interrupt resting modes, clear cooldowns, restart now
  priority   at the scheduled time, restart bypassing this instance's cooldown
  scheduled  at the scheduled time, restart subject to normal rate limits
  deferred   no restart; surfaced as pending coordination work

Priority and scheduled signals require a due time via --at or --in.

Example:
  pacer wake immediate --message "deploy finished"
  pacer wake priority --message "rerun failing suite" --in 5m
  pacer wake deferred --message "review queue backlog" --reason triage`,
	Args: cobra.ExactArgs(1),
	RunE: runWake,
}

func init() {
	wakeCmd.Flags().StringVarP(&wakeMessage, "message", "m", "", "signal message (required)")
	wakeCmd.Flags().StringVar(&wakeReason, "reason", "", "optional reason tag")
	wakeCmd.Flags().StringVar(&wakeAt, "at", "", "due time, RFC 3339 (priority/scheduled)")
	wakeCmd.Flags().DurationVar(&wakeIn, "in", 0, "due time relative to now (priority/scheduled)")
	wakeCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(wakeCmd)
}

func runWake(cmd *cobra.Command, args []string) error {
	tier := wake.Tier(args[0])
	if !tier.Valid() {
		return fmt.Errorf("unknown tier %q", args[0])
	}

	sig := wake.Signal{
		Tier:    tier,
		Message: wakeMessage,
		Reason:  wakeReason,
	}

	if wakeAt != "" && wakeIn != 0 {
		return fmt.Errorf("--at and --in are mutually exclusive")
	}
	if wakeAt != "" {
		t, err := time.Parse(time.RFC3339, wakeAt)
		if err != nil {
			return fmt.Errorf("invalid --at time: %w", err)
		}
		sig.ScheduledFor = &t
	} else if wakeIn != 0 {
		t := time.Now().Add(wakeIn)
		sig.ScheduledFor = &t
	}

	if (tier == wake.TierPriority || tier == wake.TierScheduled) && sig.ScheduledFor == nil {
		return fmt.Errorf("%s signals require --at or --in", tier)
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

	id, err := wake.Append(s, sig)
	if err != nil {
		return fmt.Errorf("failed to append wake signal: %w", err)
	}

	fmt.Printf("Appended %s wake signal (record %d)\n", tier, id)
	return nil
}
