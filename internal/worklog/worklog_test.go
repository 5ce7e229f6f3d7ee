package worklog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentAndAdd(t *testing.T) {
	s := NewStore(t.TempDir(), "worker-a")

	t.Run("empty before any write", func(t *testing.T) {
		items, err := s.Current()
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("add accumulates", func(t *testing.T) {
		require.NoError(t, s.Add([]Item{
			{ID: "1", Kind: KindWork, Payload: "fix the build", CreatedAt: time.Now()},
		}))
		require.NoError(t, s.Add([]Item{
			{ID: "2", Kind: KindCoordination, Payload: "review queue", CreatedAt: time.Now()},
		}))

		items, err := s.Current()
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "1", items[0].ID)
		assert.Equal(t, "2", items[1].ID)
	})

	t.Run("adding nothing is a no-op", func(t *testing.T) {
		require.NoError(t, s.Add(nil))
		items, err := s.Current()
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})
}

func TestArchive(t *testing.T) {
	s := NewStore(t.TempDir(), "worker-a")

	require.NoError(t, s.Add([]Item{
		{ID: "1", Kind: KindWork, Payload: "a"},
		{ID: "2", Kind: KindSelfGenerated, Payload: "b"},
	}))
	require.NoError(t, s.Archive())

	items, err := s.Current()
	require.NoError(t, err)
	assert.Empty(t, items)

	// Archiving again with nothing pending changes nothing.
	require.NoError(t, s.Archive())

	require.NoError(t, s.Add([]Item{{ID: "3", Kind: KindTodo, Payload: "c"}}))
	require.NoError(t, s.Archive())

	archived, err := s.readArchive()
	require.NoError(t, err)
	require.Len(t, archived, 3)
	assert.Equal(t, "3", archived[2].ID)
}

func TestHistory(t *testing.T) {
	s := NewStore(t.TempDir(), "worker-a")

	records, err := s.History()
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, s.RecordTick(TickRecord{Cycle: 1, Mode: "CONTINUE", Outcome: "proceed", Restarted: true, At: time.Now()}))
	require.NoError(t, s.RecordTick(TickRecord{Cycle: 2, Mode: "CONTINUE", Outcome: "proceed", DenyReason: "burst", At: time.Now()}))

	records, err = s.History()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].Cycle)
	assert.True(t, records[0].Restarted)
	assert.Equal(t, "burst", records[1].DenyReason)
}

func TestInstanceIsolation(t *testing.T) {
	base := t.TempDir()
	a := NewStore(base, "worker-a")
	b := NewStore(base, "worker-b")

	require.NoError(t, a.Add([]Item{{ID: "1", Kind: KindWork, Payload: "x"}}))

	items, err := b.Current()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSanitize(t *testing.T) {
	base := t.TempDir()
	s := NewStore(base, "tmux-%3/x:y")

	require.NoError(t, s.Add([]Item{{ID: "1", Kind: KindWork, Payload: "x"}}))

	_, err := os.Stat(filepath.Join(base, ".pacer", "worklog", "tmux--3-x-y", "current.json"))
	assert.NoError(t, err)
}

func TestSelfGenerated(t *testing.T) {
	assert.True(t, Item{Kind: KindSelfGenerated}.SelfGenerated())
	assert.False(t, Item{Kind: KindWork}.SelfGenerated())
}
