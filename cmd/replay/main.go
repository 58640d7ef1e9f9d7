// Command replay runs a recorded signal fixture through the decision
// pipeline in memory and reports per-step results against the fixture's
// expectations. Exit code 1 signals at least one mismatch.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/intervene/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	jsonOut := flag.Bool("json", false, "output results as JSON")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--json]")
		os.Exit(2)
	}

	fixture, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(2)
	}

	results, summary, err := replay.Run(fixture)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(2)
	}

	if *jsonOut {
		printJSONResults(results, summary)
	} else {
		printTable(fixture, results, summary)
	}

	if summary.Mismatches > 0 {
		os.Exit(1)
	}
}

// #endregion main

// #region output

func printJSONResults(results []replay.StepResult, summary replay.Summary) {
	out := struct {
		Results []replay.StepResult `json:"results"`
		Summary replay.Summary      `json:"summary"`
	}{results, summary}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func printTable(fixture *replay.Fixture, results []replay.StepResult, summary replay.Summary) {
	if fixture.Description != "" {
		fmt.Printf("Fixture: %s\n\n", fixture.Description)
	}

	fmt.Printf("%-10s  %-10s  %-22s  %-18s  %s\n",
		"Step", "Result", "Reason", "Strategy", "Check")
	for _, r := range results {
		result := "deferred"
		if r.Delivered {
			result = "delivered"
		}
		if r.Strategy != "" && r.Reason == "" && !r.Delivered {
			result = "feedback"
		}
		reason, strat := r.Reason, r.Strategy
		if reason == "" {
			reason = "-"
		}
		if strat == "" {
			strat = "-"
		}
		check := "ok"
		if r.Expected == nil {
			check = "-"
		} else if !r.Match {
			check = "MISMATCH"
		}
		fmt.Printf("%-10s  %-10s  %-22s  %-18s  %s\n", r.StepID, result, reason, strat, check)
	}

	fmt.Printf("\n%d steps: %d delivered, %d deferred, %d feedback, %d mismatches\n",
		summary.TotalSteps, summary.Deliveries, summary.Defers, summary.Feedbacks, summary.Mismatches)
}

// #endregion output
