package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pflow-xyz/go-pflow/analysis"
	"github.com/pflow-xyz/go-pflow/behavior"
	"github.com/pflow-xyz/go-pflow/collector"
	"github.com/pflow-xyz/go-pflow/netio"
	"github.com/pflow-xyz/go-pflow/petri"
	"github.com/pflow-xyz/go-pflow/policy"
	"github.com/pflow-xyz/go-pflow/sim"
)

// runOutput is the JSON document `summary` reads back in (grounded on
// cmd/pflow summary.go's results.ReadJSON round-trip).
type runOutput struct {
	Model       string                       `json:"model"`
	Duration    float64                      `json:"duration"`
	Dt          float64                      `json:"dt"`
	Places      []analysis.PlaceSummary      `json:"places"`
	Transitions []analysis.TransitionActivity `json:"transitions"`
	Diagnostics []diagnosticOut              `json:"diagnostics,omitempty"`
}

type diagnosticOut struct {
	Step  uint64  `json:"step"`
	Time  float64 `json:"time"`
	Kind  string  `json:"kind"`
	Error string  `json:"error"`
}

func run(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	duration := fs.Float64("time", 100.0, "Total simulated duration")
	dt := fs.Float64("dt", 1.0, "Step size")
	policyName := fs.String("policy", "random", "Conflict policy: random|priority|type_based|round_robin")
	csvPath := fs.String("csv", "", "Write recorded series to a CSV file")
	outputPath := fs.String("output", "", "Write a summary JSON document to this file instead of stdout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pflowsim run <model.json> [options]

Run a net document through the simulation controller until the requested
duration elapses, then print per-place and per-transition summaries.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("model file required")
	}
	modelFile := fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return err
	}

	data, err := os.ReadFile(modelFile)
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}
	net, err := netio.FromJSON(data)
	if err != nil {
		return fmt.Errorf("parse model: %w", err)
	}

	p, err := parsePolicy(*policyName)
	if err != nil {
		return err
	}

	col := collector.New()
	ctrl := sim.New(net, p, col)

	if err := ctrl.Run(context.Background(), *dt, sim.UntilTime(*duration)); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	labels := labelsByID(net)

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			return fmt.Errorf("create csv: %w", err)
		}
		defer f.Close()
		if err := col.WriteCSV(f, labels); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Series written to %s\n", *csvPath)
	}

	out := buildRunOutput(modelFile, *duration, *dt, net, col, ctrl)

	outData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, outData, 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Summary written to %s\n", *outputPath)
		return nil
	}
	fmt.Println(string(outData))
	return nil
}

func parsePolicy(name string) (policy.Policy, error) {
	switch name {
	case "", "random":
		return policy.New(policy.Random), nil
	case "priority":
		return policy.New(policy.Priority), nil
	case "type_based":
		return policy.New(policy.TypeBased), nil
	case "round_robin":
		return policy.New(policy.RoundRobin), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// labelsByID builds the id→label map collector.WriteCSV uses for column
// headers — every place and transition label, keyed by id.
func labelsByID(net *petri.Net) map[string]string {
	labels := make(map[string]string, len(net.Places)+len(net.Transitions))
	for id, p := range net.Places {
		labels[id] = p.Label
	}
	for id, t := range net.Transitions {
		labels[id] = t.Label
	}
	return labels
}

func buildRunOutput(modelFile string, duration, dt float64, net *petri.Net, col *collector.Collector, ctrl *sim.Controller) runOutput {
	vars := behavior.BuildVars(net, ctrl.CurrentTime())
	finalArcWeights := behavior.ArcWeights(net, vars)

	placeSummaries := make([]analysis.PlaceSummary, 0, len(net.Places))
	for _, id := range col.PlaceIDs() {
		placeSummaries = append(placeSummaries, analysis.SummarizePlace(id, col.PlaceSeries(id), duration))
	}

	transSeries := make(map[string][]uint64, len(net.Transitions))
	for _, id := range col.TransitionIDs() {
		transSeries[id] = col.TransitionSeries(id)
	}
	transActivities := analysis.SummarizeTransitions(net, transSeries, finalArcWeights, duration)

	diags := make([]diagnosticOut, 0, len(ctrl.Diagnostics()))
	for _, d := range ctrl.Diagnostics() {
		msg := ""
		if d.Err != nil {
			msg = d.Err.Error()
		}
		diags = append(diags, diagnosticOut{Step: d.Step, Time: d.Time, Kind: d.Kind, Error: msg})
	}

	return runOutput{
		Model:       modelFile,
		Duration:    duration,
		Dt:          dt,
		Places:      placeSummaries,
		Transitions: transActivities,
		Diagnostics: diags,
	}
}
