// Package behavior implements the four transition firing behaviours and
// their shared enablement contract (spec §4.4): IMMEDIATE, TIMED,
// STOCHASTIC, and CONTINUOUS. Dispatch is on petri.Transition.Kind rather
// than a class hierarchy (spec §9: "a small behaviour trait/interface...
// do not use deep inheritance hierarchies").
package behavior

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/pflow-xyz/go-pflow/guard"
	"github.com/pflow-xyz/go-pflow/petri"
)

// BuildVars assembles the guard/rate expression environment for a net at
// simulated time now (spec §4.2): every place label bound to its current
// token count, every labeled arc bound to its own evaluated weight, and
// "t" bound to now. Arc weights are evaluated against places+time only, so
// a labeled arc's weight expression must not reference another arc's
// label — the environment is built in one pass, not resolved recursively.
func BuildVars(net *petri.Net, now float64) guard.Vars {
	places := net.LabelsOf(nil)
	arcs := make(map[string]float64)
	for _, a := range net.Arcs {
		if a.Label == "" {
			continue
		}
		w, err := a.Weight.Rate(guard.Vars{Places: places, Time: now})
		if err == nil {
			arcs[a.Label] = w
		}
	}
	return guard.Vars{Places: places, Arcs: arcs, Time: now}
}

// ArcWeights evaluates every arc's weight expression against vars,
// returning a map keyed by arc id. Arcs whose weight fails to evaluate are
// omitted (the fail-safe default of spec §4.2 is 0, and a missing map
// entry reads as 0 to any caller that does a plain map lookup). Used by
// analysis.SummarizeTransitions to compute flux from the final marking
// without that package depending on the expression evaluator.
func ArcWeights(net *petri.Net, vars guard.Vars) map[string]float64 {
	weights := make(map[string]float64, len(net.Arcs))
	for id, a := range net.Arcs {
		if w, err := a.Weight.Rate(vars); err == nil {
			weights[id] = w
		}
	}
	return weights
}

// IsEnabled implements the uniform enablement rule of spec §4.4: the
// enabled flag, the guard, sufficient tokens on regular inputs (unless
// is_source), and insufficient tokens on inhibitor inputs (checked
// regardless of is_source — spec §4.4 rule 4 carries no source
// exemption). A non-nil error is the fail-safe diagnostic of spec §7a;
// the returned bool is already the safe default (false) in that case.
func IsEnabled(net *petri.Net, t *petri.Transition, vars guard.Vars) (bool, error) {
	if !t.Enabled {
		return false, nil
	}
	ok, err := t.Guard.Guard(vars)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	for _, a := range net.InputArcs(t.ID) {
		place := net.PlaceOf(a)
		w, werr := a.Weight.Rate(vars)
		if werr != nil {
			return false, werr
		}
		switch a.Kind {
		case petri.Regular:
			if t.IsSource {
				continue
			}
			if place.Tokens < w {
				return false, nil
			}
		case petri.Inhibitor:
			if place.Tokens >= w {
				return false, nil
			}
		}
	}
	return true, nil
}

// Fire performs the atomic marking mutation of spec §4.4 ("Firing (all
// variants)") for IMMEDIATE, TIMED, and STOCHASTIC transitions: consume
// regular inputs (unless is_source), produce regular outputs (unless
// is_sink), increment the firing counter. Every arc weight involved is
// evaluated before any mutation happens, so an arithmetic error aborts the
// firing with the marking untouched (spec §7b, §4.5: "abort that firing,
// retain pre-firing marking"). CONTINUOUS transitions do not use Fire —
// see ContinuousContribution.
func Fire(net *petri.Net, t *petri.Transition, vars guard.Vars) error {
	var inputs []*petri.Arc
	if !t.IsSource {
		for _, a := range net.InputArcs(t.ID) {
			if a.Kind == petri.Regular {
				inputs = append(inputs, a)
			}
		}
	}
	var outputs []*petri.Arc
	if !t.IsSink {
		outputs = net.OutputArcs(t.ID)
	}

	inWeights := make([]float64, len(inputs))
	for i, a := range inputs {
		w, err := a.Weight.Rate(vars)
		if err != nil {
			return fmt.Errorf("fire %s: input arc %s: %w", t.ID, a.ID, err)
		}
		inWeights[i] = w
	}
	outWeights := make([]float64, len(outputs))
	for i, a := range outputs {
		w, err := a.Weight.Rate(vars)
		if err != nil {
			return fmt.Errorf("fire %s: output arc %s: %w", t.ID, a.ID, err)
		}
		outWeights[i] = w
	}

	for i, a := range inputs {
		p := net.PlaceOf(a)
		p.Tokens -= inWeights[i]
		if p.Tokens < 0 {
			p.Tokens = 0
		}
	}
	for i, a := range outputs {
		p := net.PlaceOf(a)
		p.Tokens += outWeights[i]
	}
	t.FiringCount++
	return nil
}

// ContinuousContribution computes one CONTINUOUS transition's signed flow
// contribution per place over a dt-duration integration substep (spec
// §4.4): rate * dt moved from each regular input place to each regular
// output place, scaled by arc weight. It returns a delta map rather than
// mutating the net directly, because the controller must sum every
// enabled continuous transition's contribution before applying and
// clamping (spec §4.5 phase 3) — applying transition-by-transition would
// make the result order-dependent. An arc whose weight fails to evaluate
// contributes nothing for that arc (the controller's integration-failure
// policy, spec §7d, governs the step as a whole).
func ContinuousContribution(net *petri.Net, t *petri.Transition, rate, dt float64, vars guard.Vars) map[string]float64 {
	delta := make(map[string]float64)
	if !t.IsSource {
		for _, a := range net.InputArcs(t.ID) {
			if a.Kind != petri.Regular {
				continue
			}
			w, err := a.Weight.Rate(vars)
			if err != nil {
				continue
			}
			delta[a.Source] -= rate * dt * w
		}
	}
	if !t.IsSink {
		for _, a := range net.OutputArcs(t.ID) {
			w, err := a.Weight.Rate(vars)
			if err != nil {
				continue
			}
			delta[a.Target] += rate * dt * w
		}
	}
	return delta
}

// ContinuousRate evaluates a CONTINUOUS transition's instantaneous flow
// rate expression (spec §4.4).
func ContinuousRate(t *petri.Transition, vars guard.Vars) (float64, error) {
	return t.FlowRate.Rate(vars)
}

// SampleTimedDelay picks the TIMED transition's firing delay (spec §4.4).
// A zero-width window (earliest == latest) always fires at that fixed
// point. Otherwise the transition's FiringPolicy selects the endpoint of
// the delay window deterministically — Earliest (the default) or Latest;
// see DESIGN.md for why this implementation resolves the spec's
// earliest/latest-vs-uniform phrasing this way.
func SampleTimedDelay(t *petri.Transition) float64 {
	if t.EarliestDelay == t.LatestDelay {
		return t.EarliestDelay
	}
	if t.Policy == petri.Latest {
		return t.LatestDelay
	}
	return t.EarliestDelay
}

// SampleStochasticDelay draws an exponential inter-firing delay whose rate
// parameter is the transition's evaluated RateParam expression (spec
// §4.4). math/rand/v2 does not export an ExpFloat64 helper, so the
// exponential is drawn by inverse-CDF over a uniform sample.
func SampleStochasticDelay(t *petri.Transition, vars guard.Vars) (float64, error) {
	rateParam, err := t.RateParam.Rate(vars)
	if err != nil {
		return 0, fmt.Errorf("stochastic rate for %s: %w", t.ID, err)
	}
	if rateParam <= 0 {
		return 0, fmt.Errorf("stochastic rate for %s must be positive, got %v", t.ID, rateParam)
	}
	u := rand.Float64()
	return -math.Log(1-u) / rateParam, nil
}

// UpdateSchedule maintains a TIMED/STOCHASTIC transition's pending firing
// time as its enablement status changes step to step (spec §4.4, §9 Open
// Questions: "resample on re-enablement"). On a false→true transition it
// samples a fresh delay and schedules now+delay; on a true→false
// transition it clears the schedule so the next re-enablement resamples.
// IMMEDIATE and CONTINUOUS transitions have no schedule and are no-ops.
func UpdateSchedule(t *petri.Transition, now float64, enabled bool, vars guard.Vars) error {
	wasEnabled := t.WasEnabled()
	defer t.SetWasEnabled(enabled)

	if enabled && !wasEnabled {
		var delay float64
		switch t.Kind {
		case petri.Timed:
			delay = SampleTimedDelay(t)
		case petri.Stochastic:
			d, err := SampleStochasticDelay(t, vars)
			if err != nil {
				return err
			}
			delay = d
		default:
			return nil
		}
		t.SetScheduledAt(now+delay, true)
		return nil
	}
	if !enabled && wasEnabled {
		t.SetScheduledAt(0, false)
	}
	return nil
}

// DueToFire reports whether a TIMED/STOCHASTIC transition's scheduled
// firing time falls within the step ending at time+dt (spec §4.5 phase
// 2: "For each scheduled event whose time ≤ time + dt").
func DueToFire(t *petri.Transition, time, dt float64) bool {
	at, ok := t.ScheduledAt()
	return ok && at <= time+dt
}
