package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/pacer/internal/store"
)

func TestStatusCommand(t *testing.T) {
	chtmp(t)
	instanceFlag = "status-test"
	defer func() { instanceFlag = "" }()

	t.Run("empty store", func(t *testing.T) {
		statusAudit = 0
		err := runStatus(statusCmd, []string{})
		assert.NoError(t, err)
	})

	t.Run("with flags and audit", func(t *testing.T) {
		s, err := store.Open(".pacer/pacer.db")
		require.NoError(t, err)
		require.NoError(t, s.SetFlag(store.FlagGlobalCooldown, "1", 0))
		s.EmitAudit("burst_cooldown_installed", map[string]any{"instance": "status-test"})
		require.NoError(t, s.Close())

		statusAudit = 5
		defer func() { statusAudit = 0 }()
		err = runStatus(statusCmd, []string{})
		assert.NoError(t, err)
	})
}
