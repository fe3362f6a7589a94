// Package sim implements the simulation controller (spec §4.5, §5): the
// scheduler that drives one logical step of a net — exhausting immediates,
// dispatching timed/stochastic events, integrating continuous flow, and
// advancing simulated time — and the cooperative run/pause/stop/reset state
// machine around it. It borrows the mutex-guarded-state-plus-context-cancel
// shape of engine.Engine but drives discrete/continuous hybrid firing
// through the behavior package instead of an ODE solver.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pflow-xyz/go-pflow/behavior"
	"github.com/pflow-xyz/go-pflow/petri"
	"github.com/pflow-xyz/go-pflow/policy"
)

// State names a position in the controller's run state machine (spec
// §4.5: "IDLE → RUNNING → (PAUSED ⇄ RUNNING) → IDLE").
type State int

const (
	Idle State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// maxImmediateIterations is the hard cap on the immediate-exhaustion loop
// (spec §4.5 phase 1, §7c).
const maxImmediateIterations = 1000

// pausePollInterval bounds how often Run wakes to check whether a PAUSED
// controller has been resumed or cancelled.
const pausePollInterval = 10 * time.Millisecond

// Collector is the narrow view of the data-collector observer (C6) the
// controller needs at the end of every step (spec §4.5 phase 5). The
// collector package's *Collector satisfies this.
type Collector interface {
	Record(time float64, marking map[string]float64, firingCounts map[string]uint64)
}

// Diagnostic is a single structured error record surfaced during a step
// (spec §7: kinds a–d manifest as structured records, never an unchecked
// crash across the engine boundary).
type Diagnostic struct {
	Step uint64
	Time float64
	Kind string // "guard_error" | "firing_error" | "immediate_overflow" | "integration_unstable"
	Err  error
}

// diagnosticCap bounds the in-memory diagnostic ring buffer so a pathological
// net cannot leak memory over a long run.
const diagnosticCap = 256

// Controller owns the net handle, the conflict policy, the timed/stochastic
// schedule (carried directly on each petri.Transition — spec §9: "payload
// of the tag"), the current simulated time, and a reference to the data
// collector (spec §4.5).
type Controller struct {
	mu sync.Mutex

	net       *petri.Net
	conflict  policy.Policy
	collector Collector
	time      float64
	state     State
	stepCount uint64

	diagnostics []Diagnostic

	cancel context.CancelFunc
	onDone func()
}

// New constructs a Controller over net, using the given conflict policy and
// recording snapshots into collector (nil disables recording).
func New(net *petri.Net, p policy.Policy, collector Collector) *Controller {
	if p == nil {
		p = policy.New(policy.Random)
	}
	return &Controller{
		net:       net,
		conflict:  p,
		collector: collector,
		state:     Idle,
	}
}

// SetConflictPolicy replaces the controller's conflict-resolution policy
// (spec §6: "set_conflict_policy(policy)").
func (c *Controller) SetConflictPolicy(p policy.Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conflict = p
}

// CurrentTime returns the controller's simulated time (spec §6:
// "current_time()").
func (c *Controller) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

// StateNow returns the controller's run state (spec §6: "state()").
func (c *Controller) StateNow() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Diagnostics returns a copy of the bounded diagnostic ring buffer.
func (c *Controller) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diagnostics))
	copy(out, c.diagnostics)
	return out
}

func (c *Controller) record(kind string, err error) {
	d := Diagnostic{Step: c.stepCount, Time: c.time, Kind: kind, Err: err}
	c.diagnostics = append(c.diagnostics, d)
	if len(c.diagnostics) > diagnosticCap {
		c.diagnostics = c.diagnostics[len(c.diagnostics)-diagnosticCap:]
	}
}

// SetCompletionCallback installs a function invoked exactly once when Run
// finishes, for any reason (spec §6: "set_completion_callback(fn)").
func (c *Controller) SetCompletionCallback(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDone = fn
}

// Reset restores the net's tokens and firing counters, clears the timed
// schedule, resets simulated time to zero, and returns the controller to
// IDLE (spec §3 "reset()", permitted from any state).
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.net.Reset()
	for _, t := range c.net.Transitions {
		t.SetScheduledAt(0, false)
		t.SetWasEnabled(false)
	}
	c.time = 0
	c.stepCount = 0
	c.diagnostics = nil
	c.state = Idle
}

// ResetForNewModel discards all per-model state and rebinds the controller
// to net (spec §3 "reset_for_new_model(new_net)").
func (c *Controller) ResetForNewModel(net *petri.Net) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.net = net
	c.resetLocked()
}

// Step advances the simulation by one logical step of duration dt,
// implementing the five phases of spec §4.5. It returns whether any
// transition fired. A non-nil error is only ever the fatal
// immediate-exhaustion overflow of spec §7c — all other failure kinds are
// recoverable and are recorded as Diagnostics instead of returned.
func (c *Controller) Step(dt float64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepLocked(dt)
}

func (c *Controller) stepLocked(dt float64) (bool, error) {
	c.stepCount++
	fired := false

	// Phase 1: immediate-exhaustion loop.
	for iter := 0; ; iter++ {
		if iter >= maxImmediateIterations {
			err := fmt.Errorf("immediate-exhaustion loop exceeded %d iterations without draining", maxImmediateIterations)
			c.record("immediate_overflow", err)
			return fired, err
		}
		vars := behavior.BuildVars(c.net, c.time)
		var candidates []policy.Candidate
		for id, t := range c.net.Transitions {
			if t.Kind != petri.Immediate {
				continue
			}
			ok, err := behavior.IsEnabled(c.net, t, vars)
			if err != nil {
				c.record("guard_error", err)
				continue
			}
			if ok {
				candidates = append(candidates, policy.Candidate{ID: id, Priority: t.Priority, Kind: t.Kind})
			}
		}
		if len(candidates) == 0 {
			break
		}
		chosen := c.conflict.Select(candidates)
		t := c.net.Transitions[chosen]
		if err := behavior.Fire(c.net, t, vars); err != nil {
			c.record("firing_error", err)
			continue
		}
		fired = true
	}

	// Phase 2: timed/stochastic dispatch.
	vars := behavior.BuildVars(c.net, c.time)
	for _, t := range c.net.Transitions {
		if t.Kind != petri.Timed && t.Kind != petri.Stochastic {
			continue
		}
		ok, err := behavior.IsEnabled(c.net, t, vars)
		if err != nil {
			c.record("guard_error", err)
			ok = false
		}
		if err := behavior.UpdateSchedule(t, c.time, ok, vars); err != nil {
			c.record("guard_error", err)
			continue
		}
		if ok && behavior.DueToFire(t, c.time, dt) {
			if err := behavior.Fire(c.net, t, vars); err != nil {
				c.record("firing_error", err)
				continue
			}
			fired = true
			t.SetScheduledAt(0, false)
			t.SetWasEnabled(false)
		}
	}

	// Phase 3: continuous integration — sum every enabled continuous
	// transition's contribution before applying, so the result is
	// order-independent (spec §4.5 phase 3).
	total := make(map[string]float64)
	for _, t := range c.net.Transitions {
		if t.Kind != petri.Continuous {
			continue
		}
		ok, err := behavior.IsEnabled(c.net, t, vars)
		if err != nil {
			c.record("guard_error", err)
			continue
		}
		if !ok {
			continue
		}
		rate, err := behavior.ContinuousRate(t, vars)
		if err != nil {
			c.record("guard_error", err)
			continue
		}
		for id, delta := range behavior.ContinuousContribution(c.net, t, rate, dt, vars) {
			total[id] += delta
		}
	}
	for id, delta := range total {
		p, ok := c.net.Places[id]
		if !ok {
			continue
		}
		next := p.Tokens + delta
		if isUnstable(next) {
			c.record("integration_unstable", fmt.Errorf("place %s integrated to non-finite value", id))
			next = 0
		}
		if next < 0 {
			next = 0
		}
		p.Tokens = next
	}

	// Phase 4: time advance.
	c.time += dt

	// Phase 5: snapshot.
	if c.collector != nil {
		c.collector.Record(c.time, c.net.Marking(), c.net.FiringCounts())
	}

	return fired, nil
}

func isUnstable(f float64) bool {
	return f != f || f > maxFinite || f < -maxFinite
}

const maxFinite = 1.7976931348623157e+308

// StoppingCriterion reports whether a run should stop, given the number of
// steps executed so far and the current simulated time.
type StoppingCriterion func(steps uint64, time float64) bool

// UntilTime stops a run once the simulated time reaches or exceeds t.
func UntilTime(t float64) StoppingCriterion {
	return func(_ uint64, time float64) bool { return time >= t }
}

// UntilSteps stops a run after n steps.
func UntilSteps(n uint64) StoppingCriterion {
	return func(steps uint64, _ float64) bool { return steps >= n }
}

// Run repeatedly invokes Step(dt) until the stopping criterion is met or
// ctx is cancelled (spec §6: "run(dt, stopping_criterion)", §4.5: "run"),
// checking for cancellation between steps (spec §5: the only suspension
// point). A fatal per-step error (immediate-exhaustion overflow) ends the
// run early without panicking. The completion callback, if set, fires
// exactly once when Run returns, for any reason (spec §6).
func (c *Controller) Run(ctx context.Context, dt float64, stop StoppingCriterion) error {
	c.mu.Lock()
	if c.state == Running {
		c.mu.Unlock()
		return fmt.Errorf("controller is already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = Running
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.state != Idle {
			c.state = Idle
		}
		c.cancel = nil
		cb := c.onDone
		c.mu.Unlock()
		if cb != nil {
			cb()
		}
	}()

	for {
		select {
		case <-runCtx.Done():
			return nil
		default:
		}

		c.mu.Lock()
		if c.state == Paused {
			c.mu.Unlock()
			select {
			case <-runCtx.Done():
				return nil
			case <-time.After(pausePollInterval):
				continue
			}
		}
		_, err := c.stepLocked(dt)
		steps, time := c.stepCount, c.time
		c.mu.Unlock()
		if err != nil {
			return err
		}
		if stop != nil && stop(steps, time) {
			return nil
		}
	}
}

// Pause transitions a RUNNING controller to PAUSED (spec §4.5, §6:
// "pause()"). A no-op outside RUNNING.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		c.state = Paused
	}
}

// Resume transitions a PAUSED controller back to RUNNING (spec §6:
// "resume()"). A no-op outside PAUSED.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Paused {
		c.state = Running
	}
}

// Stop cancels an in-progress Run (spec §6: "stop()", §8: idempotent —
// "stop(); stop() ≡ stop()"). Safe to call in any state.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
