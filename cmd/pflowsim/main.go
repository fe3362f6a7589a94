// Command pflowsim drives the simulation engine core from the command
// line: loading a net document, running it, validating its structure, and
// summarizing a completed run. Grounded on cmd/pflow/main.go's switch
// dispatch over os.Args[1].
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "run":
		if err := run(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "validate":
		if err := validate(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "summary":
		if err := summary(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Println("pflowsim version 1.0.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pflowsim - Petri net simulation engine core

Usage:
  pflowsim <command> [options]

Commands:
  run        Run a net document through the simulation controller
  validate   Validate net document structure
  summary    Summarize a completed run's recorded series
  help       Show this help message
  version    Show version information

Examples:
  pflowsim run model.json --time 100 --dt 1 --policy priority --csv out.csv
  pflowsim validate model.json
  pflowsim summary results.json

For command-specific help, run:
  pflowsim <command> --help`)
}
