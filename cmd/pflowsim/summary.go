package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pflow-xyz/go-pflow/analysis"
)

func summary(args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pflowsim summary <output.json>

Pretty-print a run's recorded JSON summary (as written by
"pflowsim run --output").

Examples:
  pflowsim summary results.json
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("results file required")
	}
	resultsFile := fs.Arg(0)

	data, err := os.ReadFile(resultsFile)
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}
	var out runOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("parse results: %w", err)
	}

	fmt.Printf("Model: %s\n", out.Model)
	fmt.Printf("Duration: %.1f (dt=%.3f)\n", out.Duration, out.Dt)

	fmt.Println("\nPlaces:")
	for _, p := range out.Places {
		fmt.Printf("  %-20s initial=%.2f final=%.2f min=%.2f max=%.2f mean=%.2f rate=%.4f\n",
			p.PlaceID, p.Initial, p.Final, p.Min, p.Max, p.Mean, p.Rate)
	}

	fmt.Println("\nTransitions:")
	for _, t := range out.Transitions {
		fmt.Printf("  %-20s count=%-8d band=%-9s avg_rate=%.4f flux=%.2f contribution=%.1f%%\n",
			t.TransitionID, t.Count, t.Band, t.AverageRate, t.Flux, t.Contribution)
	}

	if len(out.Diagnostics) > 0 {
		fmt.Printf("\nDiagnostics (%d):\n", len(out.Diagnostics))
		for _, d := range out.Diagnostics {
			fmt.Printf("  ⚠ [step %d, t=%.2f] %s: %s\n", d.Step, d.Time, d.Kind, d.Error)
		}
	}

	highBand := 0
	for _, t := range out.Transitions {
		if t.Band == analysis.High {
			highBand++
		}
	}
	if highBand > 0 {
		fmt.Printf("\n%d transition(s) at HIGH activity\n", highBand)
	}

	return nil
}
