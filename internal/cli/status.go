package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/store"
)

var statusAudit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show shared store state for this instance and the fleet",
	Long: `Shows the current admission state: this instance's operating mode
and cycle count, restart pressure inside the burst window, active cooldown
and emergency flags across the fleet, and the pending deferred backlog.

Use --audit to also print recent audit trail entries.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusAudit, "audit", 0, "also show the N most recent audit entries")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	instance := config.ResolveInstance(instanceFlag)

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	now := time.Now()

	modeVal, ok, err := s.GetFlag(store.FlagMode(instance))
	if err != nil {
		return fmt.Errorf("failed to read mode: %w", err)
	}
	if !ok {
		modeVal = "CONTINUE"
	}

	cycles, err := s.GetCounter(store.CounterCycles(instance))
	if err != nil {
		return fmt.Errorf("failed to read cycle counter: %w", err)
	}

	pressure, err := s.CountInWindow(store.KeyRestarts, now, cfg.Burst.Window())
	if err != nil {
		return fmt.Errorf("failed to count restart events: %w", err)
	}

	deferred, err := s.CountLogBacklog(store.LogWakeDeferred, s.GetCursor(instance, store.LogWakeDeferred))
	if err != nil {
		return fmt.Errorf("failed to count deferred backlog: %w", err)
	}

	emergencies, err := s.CountFlags(store.PrefixEmergency)
	if err != nil {
		return fmt.Errorf("failed to count emergency flags: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Instance", "Mode", "Cycles", "Restarts/Window", "Deferred", "Emergencies")
	table.Append(
		instance,
		modeVal,
		strconv.FormatInt(cycles, 10),
		fmt.Sprintf("%d/%d", pressure, cfg.Burst.Limit),
		strconv.Itoa(deferred),
		strconv.Itoa(emergencies),
	)
	table.Render()

	cooldowns, err := s.ListFlags(store.PrefixCooldown)
	if err != nil {
		return fmt.Errorf("failed to list cooldown flags: %w", err)
	}
	if len(cooldowns) > 0 {
		keys := make([]string, 0, len(cooldowns))
		for k := range cooldowns {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Println()
		flagTable := tablewriter.NewWriter(os.Stdout)
		flagTable.Header("Active Cooldown", "Value")
		for _, k := range keys {
			flagTable.Append(k, cooldowns[k])
		}
		flagTable.Render()
	}

	if statusAudit > 0 {
		entries, err := s.ListAudit(statusAudit)
		if err != nil {
			return fmt.Errorf("failed to read audit trail: %w", err)
		}
		fmt.Println()
		auditTable := tablewriter.NewWriter(os.Stdout)
		auditTable.Header("Time", "Event", "Fields")
		for _, e := range entries {
			auditTable.Append(e.CreatedAt.Format(time.RFC3339), e.Event, e.Fields)
		}
		auditTable.Render()
	}

	return nil
}
