// Package momentum synthesizes placeholder work when nothing real is
// pending, so downstream consumers of "current work" never see a starved
// queue. Synthesized items carry the self-generated kind; callers must be
// able to tell them from real signals.
package momentum

import (
	"time"

	"github.com/google/uuid"

	"github.com/thruflo/pacer/internal/logging"
	"github.com/thruflo/pacer/internal/store"
	"github.com/thruflo/pacer/internal/worklog"
)

// The fixed idle batch: three generic review/optimize items and one
// health check.
var genericPayloads = []string{
	"review recent changes for cleanup opportunities",
	"optimize the slowest path touched in the last session",
	"revisit open questions recorded in the worklog",
}

const healthCheckPayload = "run a health check over the working tree and environment"

// Synthesizer produces momentum work for one instance.
type Synthesizer struct {
	store    store.Store
	instance string
	log      *logging.Logger
}

// NewSynthesizer creates a Synthesizer for one instance.
func NewSynthesizer(s store.Store, instance string) *Synthesizer {
	return &Synthesizer{
		store:    s,
		instance: instance,
		log:      logging.With("instance", instance),
	}
}

// Synthesize deterministically emits the idle batch, each item tagged with
// a generation timestamp and the self-generated kind, and audits that
// momentum work was manufactured. Call only when the arbiter and the
// primary queues reported nothing pending this tick.
func (s *Synthesizer) Synthesize(now time.Time) []worklog.Item {
	items := make([]worklog.Item, 0, len(genericPayloads)+1)
	for _, payload := range genericPayloads {
		items = append(items, worklog.Item{
			ID:        uuid.NewString(),
			Kind:      worklog.KindSelfGenerated,
			Payload:   payload,
			CreatedAt: now,
		})
	}
	items = append(items, worklog.Item{
		ID:        uuid.NewString(),
		Kind:      worklog.KindSelfGenerated,
		Payload:   healthCheckPayload,
		CreatedAt: now,
	})

	s.store.EmitAudit("momentum_synthesized", map[string]any{
		"instance": s.instance,
		"count":    len(items),
	})
	s.log.Debug("synthesized momentum work", "count", len(items))
	return items
}
