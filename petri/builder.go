package petri

import "github.com/pflow-xyz/go-pflow/guard"

// Builder provides a fluent API for constructing a Net, mirroring the
// opaque-builder external interface of spec §6 (add_place/add_transition/
// add_arc returning stable ids) with chainable method calls for terse net
// construction in tests and examples.
//
// Example:
//
//	net := petri.Build().
//	    Place("P1", 1).
//	    Place("P2", 0).
//	    Transition("T1", petri.Immediate).
//	    Arc("P1", "T1", 1).
//	    Arc("T1", "P2", 1).
//	    Done()
type Builder struct {
	net *Net

	placeIDs map[string]string // label -> id
	transIDs map[string]string // label -> id

	lastTransition *Transition
}

// Build starts a new Builder.
func Build() *Builder {
	return &Builder{
		net:      NewNet(),
		placeIDs: make(map[string]string),
		transIDs: make(map[string]string),
	}
}

// Place adds a place with the given label and initial token count.
func (b *Builder) Place(label string, initial float64) *Builder {
	p := b.net.AddPlace(label, initial)
	b.placeIDs[label] = p.ID
	return b
}

// Transition adds a transition of the given variant. Subsequent modifier
// calls (WithPriority, WithGuard, AsSource, AsSink, Timed, StochasticRate,
// ContinuousRate) apply to this transition.
func (b *Builder) Transition(label string, kind TransitionKind) *Builder {
	t := b.net.AddTransition(label, kind)
	b.transIDs[label] = t.ID
	b.lastTransition = t
	return b
}

// WithPriority sets the priority of the most recently added transition
// (spec §3: higher wins, default 0).
func (b *Builder) WithPriority(priority int) *Builder {
	if b.lastTransition != nil {
		b.lastTransition.Priority = priority
	}
	return b
}

// WithGuard sets the guard of the most recently added transition.
func (b *Builder) WithGuard(g guard.Value) *Builder {
	if b.lastTransition != nil {
		b.lastTransition.Guard = g
	}
	return b
}

// AsSource marks the most recently added transition as exempt from input
// token requirements (spec §3).
func (b *Builder) AsSource() *Builder {
	if b.lastTransition != nil {
		b.lastTransition.IsSource = true
	}
	return b
}

// AsSink marks the most recently added transition as exempt from output
// production (spec §3).
func (b *Builder) AsSink() *Builder {
	if b.lastTransition != nil {
		b.lastTransition.IsSink = true
	}
	return b
}

// Timed sets the earliest/latest firing delay window of the most recently
// added TIMED transition (spec §3, §4.4).
func (b *Builder) Timed(earliest, latest float64) *Builder {
	if b.lastTransition != nil {
		b.lastTransition.EarliestDelay = earliest
		b.lastTransition.LatestDelay = latest
	}
	return b
}

// FiringAt selects which end of the delay window a TIMED transition fires
// at (default Earliest).
func (b *Builder) FiringAt(policy FiringPolicy) *Builder {
	if b.lastTransition != nil {
		b.lastTransition.Policy = policy
	}
	return b
}

// StochasticRate sets the exponential sampling rate parameter of the most
// recently added STOCHASTIC transition (spec §3, §4.4).
func (b *Builder) StochasticRate(rate guard.Value) *Builder {
	if b.lastTransition != nil {
		b.lastTransition.RateParam = rate
	}
	return b
}

// ContinuousRate sets the rate expression of the most recently added
// CONTINUOUS transition (spec §3, §4.4).
func (b *Builder) ContinuousRate(rate guard.Value) *Builder {
	if b.lastTransition != nil {
		b.lastTransition.FlowRate = rate
	}
	return b
}

// Arc adds a regular arc with a constant weight between a previously added
// place and transition, identified by label.
func (b *Builder) Arc(fromLabel, toLabel string, weight float64) *Builder {
	return b.ArcWeighted(fromLabel, toLabel, Regular, guard.Number(weight))
}

// InhibitorArc adds an inhibitor arc with a constant threshold weight.
func (b *Builder) InhibitorArc(fromLabel, toLabel string, weight float64) *Builder {
	return b.ArcWeighted(fromLabel, toLabel, Inhibitor, guard.Number(weight))
}

// ArcWeighted adds an arc of the given kind with an arbitrary weight
// expression (constant, string expression, or callable — spec §3).
func (b *Builder) ArcWeighted(fromLabel, toLabel string, kind ArcKind, weight guard.Value) *Builder {
	from := b.resolve(fromLabel)
	to := b.resolve(toLabel)
	if from == "" || to == "" {
		return b
	}
	if _, err := b.net.AddArc(from, to, kind, weight); err != nil {
		panic(err) // programmer error: builder chain joined two places or two transitions
	}
	return b
}

func (b *Builder) resolve(label string) string {
	if id, ok := b.placeIDs[label]; ok {
		return id
	}
	if id, ok := b.transIDs[label]; ok {
		return id
	}
	return ""
}

// PlaceID returns the stable id assigned to a place added via Place.
func (b *Builder) PlaceID(label string) string { return b.placeIDs[label] }

// TransitionID returns the stable id assigned to a transition added via
// Transition.
func (b *Builder) TransitionID(label string) string { return b.transIDs[label] }

// Done returns the completed Net.
func (b *Builder) Done() *Net { return b.net }
