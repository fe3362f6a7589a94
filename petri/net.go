// Package petri implements the Petri net object model: places, transitions,
// and arcs, and the invariants binding them (spec §3, §4.1). The net owns
// three flat collections keyed by stable id; arcs carry the ids of their
// endpoints and incidence is a reverse-lookup table rebuilt on topology
// mutation — an arena with stable handles, never mutual owning references
// (spec §9).
package petri

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pflow-xyz/go-pflow/guard"
)

// TransitionKind tags which of the four firing behaviours a transition has
// (spec §3). It is a closed tagged sum, not a base class — dispatch on the
// tag lives in the behavior package.
type TransitionKind int

const (
	Immediate TransitionKind = iota
	Timed
	Stochastic
	Continuous
)

func (k TransitionKind) String() string {
	switch k {
	case Immediate:
		return "immediate"
	case Timed:
		return "timed"
	case Stochastic:
		return "stochastic"
	case Continuous:
		return "continuous"
	default:
		return "unknown"
	}
}

// ArcKind tags regular vs. inhibitor arcs (spec §3).
type ArcKind int

const (
	Regular ArcKind = iota
	Inhibitor
)

// FiringPolicy selects which endpoint of a timed transition's delay window
// is used (spec §4.4). Default is Earliest.
type FiringPolicy int

const (
	Earliest FiringPolicy = iota
	Latest
)

// Place is a token container (spec §3). Tokens is the live count;
// Initial is the immutable snapshot restored by Reset.
type Place struct {
	ID      string
	Label   string
	Tokens  float64
	Initial float64
}

// Reset restores Tokens to Initial (spec §3: "after reset(), tokens ==
// initial_tokens").
func (p *Place) Reset() { p.Tokens = p.Initial }

// Transition is an event producer/consumer (spec §3). Variant-specific
// fields are only meaningful for the matching Kind; the behavior package
// dispatches on Kind rather than subclassing.
type Transition struct {
	ID          string
	Label       string
	Kind        TransitionKind
	Enabled     bool
	Priority    int
	Guard       guard.Value
	IsSource    bool
	IsSink      bool
	FiringCount uint64

	// Timed
	EarliestDelay float64
	LatestDelay   float64
	Policy        FiringPolicy

	// Stochastic
	RateParam guard.Value

	// Continuous
	FlowRate guard.Value

	// scheduledAt is the absolute simulated time at which a Timed or
	// Stochastic transition is due to fire, set once on the step it first
	// becomes enabled (spec §4.4); nil means "not currently scheduled".
	scheduledAt *float64
	// wasEnabled tracks the previous step's enablement so the controller
	// can detect re-enablement and resample/reschedule (spec §4.4,
	// §9 Open Questions: "resample on re-enablement").
	wasEnabled bool
}

// ResetCounters zeros the firing counter and clears any pending schedule
// (spec §3: "reset clears firing_count"; spec §4.5: "clears the timed-
// transition schedule").
func (t *Transition) ResetCounters() {
	t.FiringCount = 0
	t.scheduledAt = nil
	t.wasEnabled = false
}

// ScheduledAt returns the transition's pending absolute firing time and
// whether one is set.
func (t *Transition) ScheduledAt() (float64, bool) {
	if t.scheduledAt == nil {
		return 0, false
	}
	return *t.scheduledAt, true
}

// SetScheduledAt records an absolute firing time for a Timed/Stochastic
// transition, or clears it when ok is false.
func (t *Transition) SetScheduledAt(at float64, ok bool) {
	if !ok {
		t.scheduledAt = nil
		return
	}
	v := at
	t.scheduledAt = &v
}

// WasEnabled reports whether the transition was enabled on the previous
// enablement check.
func (t *Transition) WasEnabled() bool { return t.wasEnabled }

// SetWasEnabled records the transition's enablement for the next check.
func (t *Transition) SetWasEnabled(v bool) { t.wasEnabled = v }

// Arc is a directed, weighted edge between a Place and a Transition,
// regular or inhibitor (spec §3). Endpoints are stored as stable ids and
// dereferenced through the owning Net, never by direct ownership — this is
// what removes the need for weak-reference machinery in a graph that is
// naturally cyclic (spec §9). Label is optional; when set, the arc's
// evaluated weight is bound under that name in the net-wide guard/rate
// expression environment built by behavior.BuildVars (spec §4.2: "every arc
// label bound to its evaluated weight").
type Arc struct {
	ID     string
	Label  string
	Source string // place id for input arcs, transition id for output arcs
	Target string
	Kind   ArcKind
	Weight guard.Value
}

// Net is the arena owning all places, transitions, and arcs for one model.
// Topology is frozen during simulation (spec §4.1); Add* methods are an
// editor-time concern.
type Net struct {
	Places      map[string]*Place
	Transitions map[string]*Transition
	Arcs        map[string]*Arc

	inputArcs  map[string][]*Arc // transition id -> arcs targeting it
	outputArcs map[string][]*Arc // transition id -> arcs sourced from it
	placeArcs  map[string][]*Arc // place id -> every incident arc
}

// NewNet creates an empty Petri net.
func NewNet() *Net {
	return &Net{
		Places:      make(map[string]*Place),
		Transitions: make(map[string]*Transition),
		Arcs:        make(map[string]*Arc),
		inputArcs:   make(map[string][]*Arc),
		outputArcs:  make(map[string][]*Arc),
		placeArcs:   make(map[string][]*Arc),
	}
}

// AddPlace adds a new place with a freshly generated stable id.
func (n *Net) AddPlace(label string, initial float64) *Place {
	p := &Place{ID: uuid.NewString(), Label: label, Tokens: initial, Initial: initial}
	n.Places[p.ID] = p
	return p
}

// AddTransition adds a new transition with a freshly generated stable id.
// enabled defaults to true (spec §3).
func (n *Net) AddTransition(label string, kind TransitionKind) *Transition {
	t := &Transition{
		ID:      uuid.NewString(),
		Label:   label,
		Kind:    kind,
		Enabled: true,
		Guard:   guard.Absent,
	}
	n.Transitions[t.ID] = t
	return t
}

// AddArc adds an arc between a place and a transition. Exactly one
// endpoint must be a place and the other a transition — the bipartite
// invariant is enforced here, at construction, and never rechecked
// afterwards (spec §3, §8: "preserved for the lifetime of the net").
func (n *Net) AddArc(sourceID, targetID string, kind ArcKind, weight guard.Value) (*Arc, error) {
	return n.AddLabeledArc("", sourceID, targetID, kind, weight)
}

// AddLabeledArc is AddArc with an explicit arc label for use in guard/rate
// expression environments (spec §4.2).
func (n *Net) AddLabeledArc(label, sourceID, targetID string, kind ArcKind, weight guard.Value) (*Arc, error) {
	_, srcIsPlace := n.Places[sourceID]
	_, srcIsTrans := n.Transitions[sourceID]
	_, tgtIsPlace := n.Places[targetID]
	_, tgtIsTrans := n.Transitions[targetID]

	var placeID, transitionID string
	switch {
	case srcIsPlace && tgtIsTrans:
		placeID, transitionID = sourceID, targetID
	case srcIsTrans && tgtIsPlace:
		placeID, transitionID = targetID, sourceID
	default:
		return nil, fmt.Errorf("arc %s -> %s is not a place-transition pair", sourceID, targetID)
	}

	a := &Arc{ID: uuid.NewString(), Label: label, Source: sourceID, Target: targetID, Kind: kind, Weight: weight}
	n.Arcs[a.ID] = a

	if srcIsPlace {
		n.inputArcs[transitionID] = append(n.inputArcs[transitionID], a)
	} else {
		n.outputArcs[transitionID] = append(n.outputArcs[transitionID], a)
	}
	n.placeArcs[placeID] = append(n.placeArcs[placeID], a)
	return a, nil
}

// InputArcs returns the arcs whose place endpoint feeds transitionID
// (spec §4.1).
func (n *Net) InputArcs(transitionID string) []*Arc {
	return n.inputArcs[transitionID]
}

// OutputArcs returns the arcs transitionID produces into (spec §4.1).
func (n *Net) OutputArcs(transitionID string) []*Arc {
	return n.outputArcs[transitionID]
}

// PlaceArcs returns every arc incident to placeID, input or output — the
// symmetric query spec §4.1 asks for on the place side.
func (n *Net) PlaceArcs(placeID string) []*Arc {
	return n.placeArcs[placeID]
}

// PlaceOf returns the place endpoint of an arc.
func (n *Net) PlaceOf(a *Arc) *Place {
	if p, ok := n.Places[a.Source]; ok {
		return p
	}
	return n.Places[a.Target]
}

// TransitionOf returns the transition endpoint of an arc.
func (n *Net) TransitionOf(a *Arc) *Transition {
	if t, ok := n.Transitions[a.Source]; ok {
		return t
	}
	return n.Transitions[a.Target]
}

// IsInputArc reports whether a is a place->transition (consumed-on-firing)
// arc.
func (n *Net) IsInputArc(a *Arc) bool {
	_, ok := n.Places[a.Source]
	return ok
}

// Marking returns a fresh copy of the current token counts keyed by place
// id (spec §3: "a mapping from place id to token count").
func (n *Net) Marking() map[string]float64 {
	m := make(map[string]float64, len(n.Places))
	for id, p := range n.Places {
		m[id] = p.Tokens
	}
	return m
}

// FiringCounts returns a fresh copy of every transition's firing counter
// keyed by transition id.
func (n *Net) FiringCounts() map[string]uint64 {
	m := make(map[string]uint64, len(n.Transitions))
	for id, t := range n.Transitions {
		m[id] = t.FiringCount
	}
	return m
}

// Reset restores every place's tokens to its initial value and zeros every
// transition's firing count and schedule (spec §3: "reset() restores
// tokens to initial_tokens and zeros firing counters, clears the timed-
// transition schedule").
func (n *Net) Reset() {
	for _, p := range n.Places {
		p.Reset()
	}
	for _, t := range n.Transitions {
		t.ResetCounters()
	}
}

// LabelsOf builds the place-label -> token-count environment used by the
// guard evaluator (spec §4.2: "every place label bound to its current
// token count").
func (n *Net) LabelsOf(marking map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(n.Places))
	for id, p := range n.Places {
		if v, ok := marking[id]; ok {
			out[p.Label] = v
		} else {
			out[p.Label] = p.Tokens
		}
	}
	return out
}
