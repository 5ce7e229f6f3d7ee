package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/store"
)

// TempStore opens a SQLite store backed by a file in a temp directory.
// The store is closed and the directory removed when the test completes.
func TempStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pacer.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// TestConfig returns a valid config with short windows and durations so
// tests exercising time-based behavior stay fast.
func TestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Burst.WindowSeconds = 5
	cfg.Burst.Limit = 3
	cfg.Burst.GlobalCooldownSeconds = 10
	cfg.Burst.InstanceCooldownSeconds = 2
	cfg.Emergency.DurationSeconds = 30
	cfg.Reflect.CycleInterval = 10
	cfg.Reflect.TimeIntervalSeconds = 600
	cfg.Reflect.DurationSeconds = 5
	cfg.Modes.PauseSeconds = 5
	cfg.Modes.DreamSeconds = 5
	cfg.Worker.Command = []string{"true"}
	return &cfg
}

// WriteConfigFile writes cfg as .pacer/config.yaml under dir.
func WriteConfigFile(t *testing.T, dir string, cfg *config.Config) {
	t.Helper()

	pacerDir := filepath.Join(dir, ".pacer")
	require.NoError(t, os.MkdirAll(pacerDir, 0755))

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(pacerDir, "config.yaml"), data, 0644))
}
