package sim

import (
	"fmt"
	"sync"

	"github.com/pflow-xyz/go-pflow/petri"
	"github.com/pflow-xyz/go-pflow/policy"
)

// ParameterSpec names one swept dimension: either a place's initial token
// count or a transition's constant rate/weight, varied across Values.
// Grounded on cmd/pflow sweep.go's "rates"/"initial" sweep specs, generalized
// to the rewritten net's guard.Value-typed rates.
type ParameterSpec struct {
	Target string // place or transition label
	Kind   string // "initial" or "rate"
	Values []float64
}

// VariantResult is one parameter combination's outcome: the parameter
// assignment, the final marking, and a caller-supplied objective score.
type VariantResult struct {
	ID      int
	Params  map[string]float64
	Marking map[string]float64
	Score   float64
}

// Objective scores a completed variant's final marking; lower is assumed
// better, matching cmd/pflow sweep.go's ranking convention (Sweep sorts
// ascending by Score).
type Objective func(marking map[string]float64) float64

// Sweep runs one simulation per combination of the cartesian product of
// specs, in up to parallelism concurrent workers (grounded on cmd/pflow
// sweep.go's channel/WaitGroup worker pool), and ranks the resulting
// variants by objective ascending. build constructs a fresh net for a given
// parameter assignment — callers typically clone a template net and
// override place initial tokens or transition rate constants before
// returning it.
func Sweep(specs []ParameterSpec, parallelism int, dt float64, steps uint64, objective Objective, build func(params map[string]float64) *petri.Net) ([]VariantResult, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	combos := combinations(specs)
	if len(combos) == 0 {
		return nil, fmt.Errorf("sweep: no parameter combinations (empty specs)")
	}

	work := make(chan indexedParams, len(combos))
	out := make(chan VariantResult, len(combos))

	var wg sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range work {
				out <- runVariant(ip, dt, steps, objective, build)
			}
		}()
	}
	for i, params := range combos {
		work <- indexedParams{id: i + 1, params: params}
	}
	close(work)

	go func() {
		wg.Wait()
		close(out)
	}()

	variants := make([]VariantResult, 0, len(combos))
	for v := range out {
		variants = append(variants, v)
	}
	rankVariants(variants)
	return variants, nil
}

type indexedParams struct {
	id     int
	params map[string]float64
}

func runVariant(ip indexedParams, dt float64, steps uint64, objective Objective, build func(map[string]float64) *petri.Net) VariantResult {
	net := build(ip.params)
	ctrl := New(net, policy.New(policy.Random), nil)
	for s := uint64(0); s < steps; s++ {
		if _, err := ctrl.Step(dt); err != nil {
			break
		}
	}
	marking := net.Marking()
	return VariantResult{
		ID:      ip.id,
		Params:  ip.params,
		Marking: marking,
		Score:   objective(marking),
	}
}

// rankVariants sorts ascending by Score (lower is better), matching
// cmd/pflow sweep.go's results.RankVariants convention.
func rankVariants(variants []VariantResult) {
	for i := 1; i < len(variants); i++ {
		for j := i; j > 0 && variants[j].Score < variants[j-1].Score; j-- {
			variants[j], variants[j-1] = variants[j-1], variants[j]
		}
	}
}

// combinations expands the cartesian product of every spec's Values into a
// slice of name→value assignments.
func combinations(specs []ParameterSpec) []map[string]float64 {
	if len(specs) == 0 {
		return nil
	}
	combos := []map[string]float64{{}}
	for _, spec := range specs {
		var next []map[string]float64
		for _, base := range combos {
			for _, v := range spec.Values {
				assignment := make(map[string]float64, len(base)+1)
				for k, existing := range base {
					assignment[k] = existing
				}
				assignment[spec.Target] = v
				next = append(next, assignment)
			}
		}
		combos = next
	}
	return combos
}
