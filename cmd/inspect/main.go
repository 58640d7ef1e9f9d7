// Command inspect examines an intervened database: per-user delivery
// history, learned strategy weights, and the decision audit trail.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/danielpatrickdp/intervene/internal/audit"
	"github.com/danielpatrickdp/intervene/internal/history"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to intervene.db")
	user := flag.String("user", "", "show delivery history for one user")
	last := flag.Int("last", 20, "show N most recent entries")
	weights := flag.Bool("weights", false, "show persisted strategy weights")
	decisions := flag.Bool("decisions", false, "show the decision audit trail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/intervene.db [--user id] [--last N] [--weights] [--decisions] [--json]")
		os.Exit(2)
	}

	store, err := history.NewSQLStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *weights:
		err = runWeightsMode(store, *jsonOut)
	case *decisions:
		err = runDecisionsMode(store, *last, *jsonOut)
	case *user != "":
		err = runHistoryMode(store, *user, *last, *jsonOut)
	default:
		fmt.Fprintln(os.Stderr, "one of --user, --weights or --decisions is required")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region history-mode

func runHistoryMode(store *history.SQLStore, userID string, last int, jsonOut bool) error {
	records, err := store.Recent(userID, last)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no records found")
		return nil
	}
	if jsonOut {
		return printJSON(records)
	}

	fmt.Printf("%-36s  %-18s  %-20s  %-8s  %-9s  %s\n",
		"Record", "Strategy", "Time", "Outcome", "Accepted", "Dismissal")
	for _, rec := range records {
		outcome, accepted, dismissal := "-", "-", "-"
		if rec.Outcome != nil {
			outcome = fmt.Sprintf("%.2f", rec.Outcome.Effectiveness)
			accepted = fmt.Sprintf("%v", rec.Outcome.Accepted())
			if rec.Outcome.DismissalReason != "" {
				dismissal = rec.Outcome.DismissalReason
			}
		}
		fmt.Printf("%-36s  %-18s  %-20s  %-8s  %-9s  %s\n",
			rec.ID, rec.Strategy, rec.Timestamp.Format("2006-01-02T15:04:05Z"), outcome, accepted, dismissal)
	}
	return nil
}

// #endregion history-mode

// #region weights-mode

type weightRow struct {
	Strategy string  `json:"strategy"`
	Weight   float64 `json:"weight"`
}

func runWeightsMode(store *history.SQLStore, jsonOut bool) error {
	weights, err := store.LoadWeights()
	if err != nil {
		return err
	}
	if len(weights) == 0 {
		fmt.Fprintln(os.Stderr, "no persisted weights found")
		return nil
	}

	rows := make([]weightRow, 0, len(weights))
	for name, w := range weights {
		rows = append(rows, weightRow{Strategy: name, Weight: w})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Strategy < rows[j].Strategy })

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-20s  %s\n", "Strategy", "Weight")
	for _, row := range rows {
		fmt.Printf("%-20s  %.4f\n", row.Strategy, row.Weight)
	}
	return nil
}

// #endregion weights-mode

// #region decisions-mode

func runDecisionsMode(store *history.SQLStore, last int, jsonOut bool) error {
	log, err := audit.NewLog(store.DB())
	if err != nil {
		return err
	}
	entries, err := log.Recent(last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no audit entries found")
		return nil
	}
	if jsonOut {
		return printJSON(entries)
	}

	fmt.Printf("%-12s  %-10s  %-20s  %-18s  %s\n",
		"User", "Decision", "Reason", "Strategy", "Time")
	for _, e := range entries {
		reason, strat := e.Reason, e.Strategy
		if reason == "" {
			reason = "-"
		}
		if strat == "" {
			strat = "-"
		}
		fmt.Printf("%-12s  %-10s  %-20s  %-18s  %s\n",
			e.UserID, e.Decision, reason, strat, e.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion decisions-mode

// #region helpers

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
