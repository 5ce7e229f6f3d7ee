package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/thruflo/pacer/internal/store"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .pacer/ directory and shared store",
	Long: `Creates the .pacer/ directory with a commented default config.yaml
and initializes the shared SQLite store schema so loop instances can start
immediately.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config.yaml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	pacerDir := filepath.Join(cwd, ".pacer")
	configPath := filepath.Join(pacerDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	if err := os.MkdirAll(pacerDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", pacerDir, err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	// Initialize the store schema up front so concurrent first starts do
	// not race on migration.
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	s.Close()

	fmt.Printf("Initialized .pacer/ (config: %s, store: %s)\n", configPath, cfg.StorePath)
	return nil
}

const defaultConfigYAML = `# Pacer configuration
# See https://github.com/thruflo/pacer for documentation

# Path to the shared SQLite store. Every cooperating instance must point
# at the same file. PACER_DB overrides this.
store_path: .pacer/pacer.db

burst:
  # Sliding window for counting fleet-wide restart events
  window_seconds: 20

  # Restarts allowed inside the window before a burst cooldown engages
  limit: 3

  # Fleet-wide cooldown installed when the limit is exceeded
  global_cooldown_seconds: 60

  # Per-instance settle time after each restart
  instance_cooldown_seconds: 10

emergency:
  # Restart events inside the window that trip emergency suppression
  event_threshold: 5

  # Active cooldown flags that trip emergency suppression
  flag_threshold: 3

  # How long suppression holds unless conditions recover first
  duration_seconds: 1800

wake:
  # Cooldown-override lifetime installed by a due priority signal
  override_seconds: 60

  # Deferred signals surfaced per tick
  deferred_batch: 3

reflect:
  # Drop into reflection every N cycles...
  cycle_interval: 30

  # ...or when this much time has passed since the last reflection
  time_interval_seconds: 3600

  # How long a reflection rest lasts
  duration_seconds: 240

modes:
  # Default pause duration when a pause message carries none
  pause_seconds: 300

  # Default dream duration when a dream message carries none
  dream_seconds: 450

loop:
  # Sleep between ticks while waiting
  poll_interval_seconds: 1

  # Sleep after a tick that restarted the worker
  tick_sleep_seconds: 2

worker:
  # Command to run on an admitted restart. The prompt is appended as the
  # final argument when set.
  command: [claude, -p, --dangerously-skip-permissions]
  # prompt: "continue where you left off"
`
