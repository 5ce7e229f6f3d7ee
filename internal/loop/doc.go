// Package loop drives the restart admission cycle.
//
// Once per tick the driver evaluates, in order: the control-mode state
// machine (stopped? resting?), the emergency damper, the restart rate
// limiter, and the wake-signal arbiter, then restarts the worker or
// records why it waited. Resting and dampened ticks still poll the
// immediate wake tier at a bounded sub-interval, so an urgent signal is
// never starved for more than one poll interval.
//
// The driver owns the tick cadence; external supervisors can instead call
// Tick once per invocation and act on the proceed/stop/error outcome.
package loop
