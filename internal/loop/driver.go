package loop

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/guard"
	"github.com/thruflo/pacer/internal/logging"
	"github.com/thruflo/pacer/internal/mode"
	"github.com/thruflo/pacer/internal/momentum"
	"github.com/thruflo/pacer/internal/store"
	"github.com/thruflo/pacer/internal/wake"
	"github.com/thruflo/pacer/internal/worker"
	"github.com/thruflo/pacer/internal/worklog"
)

// Outcome is the single-tick verdict surfaced to external supervisors.
type Outcome int

const (
	// OutcomeProceed means the restart happened or was deliberately
	// skipped; the caller should invoke again.
	OutcomeProceed Outcome = iota
	// OutcomeStop is terminal; the caller must not re-invoke.
	OutcomeStop
	// OutcomeError is an unexpected failure; the caller decides retry
	// policy.
	OutcomeError
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeProceed:
		return "proceed"
	case OutcomeStop:
		return "stop"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// ExitReason indicates why Run stopped.
type ExitReason int

const (
	ExitReasonUnknown  ExitReason = iota
	ExitReasonStopped             // Explicit stop message, clean exit
	ExitReasonCanceled            // Context canceled
	ExitReasonError               // Unrecoverable failure
)

// String returns a human-readable description of the exit reason.
func (r ExitReason) String() string {
	switch r {
	case ExitReasonStopped:
		return "stopped"
	case ExitReasonCanceled:
		return "canceled"
	case ExitReasonError:
		return "error"
	default:
		return "unknown"
	}
}

// Result contains the outcome of a Run.
type Result struct {
	Reason ExitReason
	Ticks  int64
	Err    error
}

// TickResult describes what one tick did.
type TickResult struct {
	Outcome    Outcome
	Mode       mode.Status
	Restarted  bool
	DenyReason string
	Cycle      int64
	Decision   *wake.Decision
	WorkFound  bool
}

// starvationStreak is how many consecutive denied CONTINUE ticks trigger
// a starvation audit record.
const starvationStreak = 5

// Driver ties the admission components together.
type Driver struct {
	store    store.Store
	limiter  *guard.Limiter
	damper   *guard.Damper
	arbiter  *wake.Arbiter
	modes    *mode.Machine
	synth    *momentum.Synthesizer
	work     *worklog.Store
	executor worker.Executor
	cfg      *config.Config
	instance string
	log      *logging.Logger

	now func() time.Time // injectable clock for tests

	denied int // consecutive CONTINUE ticks without a restart
}

// Options holds dependencies for creating a Driver. Zero-value Now
// defaults to time.Now.
type Options struct {
	Store    store.Store
	Config   *config.Config
	Instance string
	Executor worker.Executor
	Worklog  *worklog.Store
	Now      func() time.Time
}

// NewDriver wires a Driver and its components from options.
func NewDriver(opts Options) *Driver {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Driver{
		store:    opts.Store,
		limiter:  guard.NewLimiter(opts.Store, opts.Instance, opts.Config.Burst),
		damper:   guard.NewDamper(opts.Store, opts.Instance, opts.Config.Emergency, opts.Config.Burst.Window()),
		arbiter:  wake.NewArbiter(opts.Store, opts.Instance, opts.Config.Wake),
		modes:    mode.NewMachine(opts.Store, opts.Instance, opts.Config.Reflect, opts.Config.Modes),
		synth:    momentum.NewSynthesizer(opts.Store, opts.Instance),
		work:     opts.Worklog,
		executor: opts.Executor,
		cfg:      opts.Config,
		instance: opts.Instance,
		log:      logging.With("instance", opts.Instance),
		now:      now,
	}
}

// Tick runs one admission cycle: evaluate mode, evaluate suppression and
// rate limiting, evaluate wake signals, restart-or-wait, record the
// outcome, and advance the cycle counter.
//
// Store failures are soft per the error design: nothing confirmed means
// no cooldown to honor, so the tick proceeds cautiously without ever
// manufacturing a bypass.
func (d *Driver) Tick(ctx context.Context) TickResult {
	now := d.now()
	cycle, err := d.store.GetCounter(store.CounterCycles(d.instance))
	if err != nil {
		d.log.Warn("cycle counter unavailable", "error", err)
	}

	st, err := d.modes.Evaluate(now, cycle)
	if err != nil {
		// Degraded store: assume CONTINUE but remember nothing was
		// confirmed.
		d.log.Warn("mode evaluation degraded", "error", err)
		st = mode.StatusContinue
	}

	if st == mode.StatusStopped {
		d.store.EmitAudit("loop_stopped", map[string]any{"instance": d.instance})
		d.log.Info("stop message honored, exiting")
		return d.finish(TickResult{Outcome: OutcomeStop, Mode: st, Cycle: cycle})
	}

	var decision *wake.Decision
	if st.Resting() {
		// Cheap fast path: only the immediate tier can cut rest short.
		decision, err = d.arbiter.PollImmediate(now)
		if err != nil {
			d.log.Warn("immediate poll degraded", "error", err)
		}
		if decision == nil {
			return d.finish(TickResult{Outcome: OutcomeProceed, Mode: st, Cycle: cycle})
		}
		if err := d.modes.Interrupt(decision.Reason); err != nil {
			d.log.Warn("mode interrupt failed", "error", err)
		}
		st = mode.StatusContinue
	}

	// Emergency damper first; its veto outranks everything except an
	// immediate signal clearing the global cooldown underneath it.
	engaged, err := d.damper.Evaluate(now)
	if err != nil {
		d.log.Warn("damper evaluation degraded", "error", err)
		engaged = false
	}
	if engaged {
		if decision == nil {
			decision, err = d.arbiter.PollImmediate(now)
			if err != nil {
				d.log.Warn("immediate poll degraded", "error", err)
			}
		}
		if decision != nil {
			// The bypass cleared the global cooldown; give the damper
			// the chance to observe that and release.
			engaged, err = d.damper.Evaluate(now)
			if err != nil {
				d.log.Warn("damper re-evaluation degraded", "error", err)
				engaged = true
			}
		}
		if engaged {
			return d.finish(TickResult{
				Outcome:    OutcomeProceed,
				Mode:       st,
				Cycle:      cycle,
				DenyReason: "emergency",
				Decision:   decision,
			})
		}
	}

	verdict, verr := d.limiter.RecordAndCheck(now)
	if verr != nil {
		// No cooldown confirmed present; proceed cautiously.
		d.log.Warn("rate limiter degraded, proceeding without confirmation", "error", verr)
		verdict = guard.Verdict{Allow: true}
	}

	if decision == nil {
		decision, err = d.arbiter.Poll(now)
		if err != nil {
			d.log.Warn("wake poll degraded", "error", err)
			decision = nil
		}
	}

	allowed := verdict.Allow
	denyReason := verdict.Reason
	if !allowed && decision != nil && decision.BypassScope != wake.BypassNone {
		allowed = true
		denyReason = ""
	}
	if !allowed {
		if override, oerr := d.arbiter.HasOverride(); oerr == nil && override {
			allowed = true
			denyReason = ""
		}
	}

	res := TickResult{
		Outcome:  OutcomeProceed,
		Mode:     st,
		Cycle:    cycle,
		Decision: decision,
	}

	if allowed {
		if err := d.limiter.MarkRestart(); err != nil {
			d.log.Warn("failed to set instance cooldown", "error", err)
		}
		res.Restarted = true
		d.restartWorker(ctx, decision)
	} else {
		res.DenyReason = denyReason
		d.log.Info("restart denied", "reason", denyReason, "active", verdict.ActiveCount)
	}

	return d.finish(res)
}

// restartWorker invokes the worker and waits for it to exit. The attempt
// was already recorded in the burst multiset, so a crashing worker still
// counts toward storm detection.
func (d *Driver) restartWorker(ctx context.Context, decision *wake.Decision) {
	prompt := d.cfg.Worker.Prompt
	if decision != nil && decision.Message != "" {
		prompt = decision.Message
	}

	d.store.EmitAudit("worker_restarted", map[string]any{
		"instance": d.instance,
		"prompt":   prompt != "",
	})
	if err := d.executor.Start(ctx, prompt); err != nil {
		d.store.EmitAudit("worker_failed", map[string]any{
			"instance": d.instance,
			"error":    err.Error(),
		})
		d.log.Warn("worker exited with error", "error", err)
		return
	}
	d.log.Info("worker exited cleanly")
}

// finish runs the per-tick bookkeeping shared by every path: surface
// deferred signals, synthesize momentum work on truly idle ticks, advance
// the cycle counter, and record history.
func (d *Driver) finish(res TickResult) TickResult {
	now := d.now()

	var surfaced []worklog.Item
	deferred, err := d.arbiter.InspectDeferred(now)
	if err != nil {
		d.log.Warn("deferred inspection degraded", "error", err)
	}
	for _, sig := range deferred {
		surfaced = append(surfaced, worklog.Item{
			ID:        uuid.NewString(),
			Kind:      worklog.KindCoordination,
			Payload:   sig.Message,
			CreatedAt: now,
		})
	}

	pending, err := d.work.Current()
	if err != nil {
		d.log.Warn("worklog read failed", "error", err)
	}
	res.WorkFound = res.Decision != nil || len(surfaced) > 0 || len(pending) > 0

	if len(surfaced) > 0 {
		if err := d.work.Add(surfaced); err != nil {
			d.log.Warn("failed to record deferred work", "error", err)
		}
	}
	if !res.WorkFound && res.Outcome != OutcomeStop {
		items := d.synth.Synthesize(now)
		if err := d.work.Add(items); err != nil {
			d.log.Warn("failed to record momentum work", "error", err)
		}
	}

	newCycle, err := d.store.IncrCounter(store.CounterCycles(d.instance))
	if err != nil {
		d.log.Warn("cycle counter advance failed", "error", err)
	} else {
		res.Cycle = newCycle
	}

	if res.Mode == mode.StatusContinue && res.Outcome == OutcomeProceed && !res.Restarted {
		d.denied++
		if d.denied == starvationStreak {
			d.store.EmitAudit("restart_starvation", map[string]any{
				"instance": d.instance,
				"streak":   d.denied,
			})
		}
	} else if res.Restarted {
		d.denied = 0
	}

	if err := d.work.RecordTick(worklog.TickRecord{
		Cycle:      res.Cycle,
		Mode:       string(res.Mode),
		Outcome:    res.Outcome.String(),
		Restarted:  res.Restarted,
		DenyReason: res.DenyReason,
		At:         now,
	}); err != nil {
		d.log.Warn("failed to record tick history", "error", err)
	}

	return res
}

// Run drives ticks until a terminal result. All waits are bounded: the
// inter-tick pause after a restart, and the poll interval while resting,
// denied, or dampened — so an immediate-tier signal is honored within one
// poll interval.
func (d *Driver) Run(ctx context.Context) Result {
	var ticks int64
	for {
		if ctx.Err() != nil {
			return Result{Reason: ExitReasonCanceled, Ticks: ticks}
		}

		res := d.Tick(ctx)
		ticks++

		switch res.Outcome {
		case OutcomeStop:
			return Result{Reason: ExitReasonStopped, Ticks: ticks}
		case OutcomeError:
			return Result{Reason: ExitReasonError, Ticks: ticks}
		}

		delay := d.cfg.Loop.PollInterval()
		if res.Restarted {
			delay = d.cfg.Loop.TickSleep()
		}
		select {
		case <-ctx.Done():
			return Result{Reason: ExitReasonCanceled, Ticks: ticks}
		case <-time.After(delay):
		}
	}
}
