// Package analysis implements the analysis aggregators (C7): pure functions
// over a collector's recorded series — per-place summary and per-transition
// activity (spec §4.7). Grounded on results/analysis.go's min/max/mean
// style, narrowed to exactly the statistics the specification names.
package analysis

import (
	"sort"

	"github.com/pflow-xyz/go-pflow/petri"
)

// PlaceSummary reports a place's series summary over a run of duration D
// (spec §4.7: "initial = series[0]; final = series[last]; min, max, mean
// over all samples; Δ = final − initial; rate = Δ / D").
type PlaceSummary struct {
	PlaceID string
	Initial float64
	Final   float64
	Min     float64
	Max     float64
	Mean    float64
	Delta   float64
	Rate    float64
}

// SummarizePlace computes a PlaceSummary from a place's recorded token
// series and the run's total duration. Returns the zero PlaceSummary if
// series is empty.
func SummarizePlace(placeID string, series []float64, duration float64) PlaceSummary {
	if len(series) == 0 {
		return PlaceSummary{PlaceID: placeID}
	}
	min, max, sum := series[0], series[0], 0.0
	for _, v := range series {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean := sum / float64(len(series))
	initial := series[0]
	final := series[len(series)-1]
	delta := final - initial
	rate := 0.0
	if duration != 0 {
		rate = delta / duration
	}
	return PlaceSummary{
		PlaceID: placeID,
		Initial: initial,
		Final:   final,
		Min:     min,
		Max:     max,
		Mean:    mean,
		Delta:   delta,
		Rate:    rate,
	}
}

// ActivityBand names the status band a transition's firing count falls
// into (spec §4.7: "INACTIVE (count = 0), LOW (1–9), ACTIVE (10–99), HIGH
// (≥ 100)").
type ActivityBand string

const (
	Inactive ActivityBand = "INACTIVE"
	Low      ActivityBand = "LOW"
	Active   ActivityBand = "ACTIVE"
	High     ActivityBand = "HIGH"
)

func bandFor(count uint64) ActivityBand {
	switch {
	case count == 0:
		return Inactive
	case count < 10:
		return Low
	case count < 100:
		return Active
	default:
		return High
	}
}

// TransitionActivity reports a transition's firing activity over a run of
// duration D (spec §4.7).
type TransitionActivity struct {
	TransitionID string
	Count        uint64
	AverageRate  float64
	Flux         float64
	Contribution float64 // percent of total flux across all transitions
	Band         ActivityBand
}

// SummarizeTransitions computes TransitionActivity for every transition in
// net, given each one's recorded firing-count series and finalArcWeights —
// every arc's weight expression evaluated at the final marking/time (spec
// §4.7: "flux = count × sum of output-arc weights evaluated at final
// marking"). finalArcWeights is computed by the caller (typically via
// guard.Value.Rate over behavior.BuildVars at the run's last recorded
// time) so this package stays a pure function over already-collected data,
// with no dependency on the expression evaluator. Contribution percentages
// are relative to the total flux across all transitions; if total flux is
// zero every contribution is reported as zero rather than NaN.
func SummarizeTransitions(net *petri.Net, series map[string][]uint64, finalArcWeights map[string]float64, duration float64) []TransitionActivity {
	ids := make([]string, 0, len(net.Transitions))
	for id := range net.Transitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	activities := make([]TransitionActivity, 0, len(ids))
	totalFlux := 0.0
	for _, id := range ids {
		t := net.Transitions[id]
		s := series[id]
		var count uint64
		if len(s) > 0 {
			count = s[len(s)-1]
		}
		flux := float64(count) * sumOutputWeights(net, t, finalArcWeights)
		totalFlux += flux

		avgRate := 0.0
		if duration != 0 {
			avgRate = float64(count) / duration
		}

		activities = append(activities, TransitionActivity{
			TransitionID: id,
			Count:        count,
			AverageRate:  avgRate,
			Flux:         flux,
			Band:         bandFor(count),
		})
	}

	if totalFlux != 0 {
		for i := range activities {
			activities[i].Contribution = 100 * activities[i].Flux / totalFlux
		}
	}
	return activities
}

func sumOutputWeights(net *petri.Net, t *petri.Transition, finalArcWeights map[string]float64) float64 {
	sum := 0.0
	for _, a := range net.OutputArcs(t.ID) {
		sum += finalArcWeights[a.ID]
	}
	return sum
}
