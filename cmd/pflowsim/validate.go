package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pflow-xyz/go-pflow/netio"
	"github.com/pflow-xyz/go-pflow/petri"
)

func validate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	outputJSON := fs.Bool("json", false, "Output results as JSON")
	outputFile := fs.String("output", "", "Write JSON results to file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pflowsim validate <model.json> [options]

Validate a net document's structural integrity: every arc resolves to a
live place and transition, every transition has either an input/output arc
or an explicit source/sink flag, and no place holds negative tokens.

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

	issues := net.Validate()

	if *outputJSON || *outputFile != "" {
		out, err := json.MarshalIndent(issues, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		if *outputFile != "" {
			if err := os.WriteFile(*outputFile, out, 0644); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Validation results written to %s\n", *outputFile)
		} else {
			fmt.Println(string(out))
		}
	} else {
		printValidationResults(net, issues)
	}

	if petri.HasErrors(issues) {
		os.Exit(1)
	}
	return nil
}

func printValidationResults(net *petri.Net, issues []petri.Issue) {
	fmt.Println("=== Net Validation ===")
	fmt.Printf("Model: %d places, %d transitions, %d arcs\n", len(net.Places), len(net.Transitions), len(net.Arcs))
	fmt.Println()

	errCount, warnCount := 0, 0
	for _, issue := range issues {
		switch issue.Severity {
		case "error":
			errCount++
			fmt.Printf("  ✗ %s\n", issue.Message)
		default:
			warnCount++
			fmt.Printf("  ⚠ %s\n", issue.Message)
		}
	}
	if len(issues) > 0 {
		fmt.Println()
	}

	fmt.Println("───────────────────────────────────")
	if errCount == 0 {
		fmt.Println("✓ Validation PASSED")
		if warnCount > 0 {
			fmt.Printf("  %d warning(s)\n", warnCount)
		}
	} else {
		fmt.Println("✗ Validation FAILED")
		fmt.Printf("  %d error(s) must be fixed\n", errCount)
	}
}
