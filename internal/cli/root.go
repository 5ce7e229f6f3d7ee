package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// instanceFlag overrides automatic instance identity resolution.
var instanceFlag string

// exitCode is set by commands that map outcomes to process exit codes
// (notably tick). It is returned by Execute alongside any error.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "pacer",
	Short: "Restart admission control for cooperating worker loops",
	Long: `Pacer arbitrates worker restarts across concurrently running loop
instances. Each instance shares a SQLite counter store; pacer decides per
tick whether a restart is admitted, honoring fleet-wide burst cooldowns,
emergency suppression, wake signals, and operating-mode controls.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("pacer version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&instanceFlag, "instance", "i", "", "instance identity (default: auto-detected)")
}

// Execute runs the root command and returns the process exit code.
func Execute() (int, error) {
	if err := rootCmd.Execute(); err != nil {
		return exitCode, err
	}
	return exitCode, nil
}

// loadConfig reads .pacer/config.yaml from the working directory, falling
// back to defaults when the file is absent.
func loadConfig() (*config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, "", err
	}
	return cfg, cwd, nil
}

// openStore opens the shared counter store named by the config.
func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", cfg.StorePath, err)
	}
	return s, nil
}
