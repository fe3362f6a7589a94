// Package policy implements conflict resolution among enabled transitions
// competing for the same controller step (spec §4.3). A Policy picks
// exactly one transition id from a non-empty candidate set; it never
// mutates the net, only chooses.
package policy

import (
	"math/rand/v2"

	"github.com/pflow-xyz/go-pflow/petri"
)

// Kind names one of the four policy variants (spec §4.3).
type Kind int

const (
	Random Kind = iota
	Priority
	TypeBased
	RoundRobin
)

func (k Kind) String() string {
	switch k {
	case Random:
		return "random"
	case Priority:
		return "priority"
	case TypeBased:
		return "type_based"
	case RoundRobin:
		return "round_robin"
	default:
		return "unknown"
	}
}

// Candidate is the minimal view of an enabled transition a Policy needs to
// make its choice — deliberately narrow so policy does not reach back into
// the net beyond what §4.3 requires.
type Candidate struct {
	ID       string
	Priority int
	Kind     petri.TransitionKind
}

// Policy selects exactly one transition from a non-empty set of enabled
// candidates (spec §4.3). Implementations must not mutate candidates.
type Policy interface {
	Select(candidates []Candidate) string
}

// New constructs the Policy named by k, defaulting to RANDOM (spec §4.3:
// "default RANDOM") for any unrecognized kind.
func New(k Kind) Policy {
	switch k {
	case Priority:
		return &priorityPolicy{}
	case TypeBased:
		return &typeBasedPolicy{}
	case RoundRobin:
		return &roundRobinPolicy{}
	default:
		return &randomPolicy{}
	}
}

// typePreference orders variants IMMEDIATE > TIMED > STOCHASTIC >
// CONTINUOUS (spec §4.3); lower is more preferred.
func typePreference(k petri.TransitionKind) int {
	switch k {
	case petri.Immediate:
		return 0
	case petri.Timed:
		return 1
	case petri.Stochastic:
		return 2
	case petri.Continuous:
		return 3
	default:
		return 4
	}
}

func randomChoice(candidates []Candidate) string {
	return candidates[rand.IntN(len(candidates))].ID
}

type randomPolicy struct{}

func (p *randomPolicy) Select(candidates []Candidate) string {
	return randomChoice(candidates)
}

// priorityPolicy picks the candidate(s) with the largest Priority; among
// ties it falls through to RANDOM (spec §4.3). Because it always returns
// the single current winner among the highest-priority enabled set, and
// the controller rebuilds the enabled set after every firing, a strictly
// higher-priority transition keeps winning every call until it is no
// longer enabled — this is the monopolisation property spec §4.3 and §8
// require to be preserved.
type priorityPolicy struct{}

func (p *priorityPolicy) Select(candidates []Candidate) string {
	best := candidates[0].Priority
	for _, c := range candidates[1:] {
		if c.Priority > best {
			best = c.Priority
		}
	}
	var tied []Candidate
	for _, c := range candidates {
		if c.Priority == best {
			tied = append(tied, c)
		}
	}
	return randomChoice(tied)
}

// typeBasedPolicy picks the candidate(s) of the most preferred variant;
// among ties it falls through to RANDOM (spec §4.3).
type typeBasedPolicy struct{}

func (p *typeBasedPolicy) Select(candidates []Candidate) string {
	best := typePreference(candidates[0].Kind)
	for _, c := range candidates[1:] {
		if pref := typePreference(c.Kind); pref < best {
			best = pref
		}
	}
	var tied []Candidate
	for _, c := range candidates {
		if typePreference(c.Kind) == best {
			tied = append(tied, c)
		}
	}
	return randomChoice(tied)
}

// roundRobinPolicy picks the candidate at index cursor % n and advances
// the cursor after every call (spec §4.3). The candidate slice's order is
// whatever the caller built it in; callers that want a stable round-robin
// across steps should pass candidates in a stable order (e.g. sorted by
// id).
type roundRobinPolicy struct {
	cursor int
}

func (p *roundRobinPolicy) Select(candidates []Candidate) string {
	id := candidates[p.cursor%len(candidates)].ID
	p.cursor++
	return id
}
