// Package replay re-runs recorded signal sequences through the full
// decision pipeline in memory. With a fixed seed and the steps' own
// timestamps the run is fully deterministic, which makes fixtures usable
// both as regression tests and as what-if tools for gate tuning.
package replay

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/danielpatrickdp/intervene/internal/engine"
	"github.com/danielpatrickdp/intervene/internal/feedback"
	"github.com/danielpatrickdp/intervene/internal/gate"
	"github.com/danielpatrickdp/intervene/internal/history"
	"github.com/danielpatrickdp/intervene/internal/selector"
	"github.com/danielpatrickdp/intervene/internal/signals"
	"github.com/danielpatrickdp/intervene/internal/strategy"
)

// #region result-types

// StepResult is the decision (or feedback effect) produced by one step,
// with its comparison against the fixture's expectation.
type StepResult struct {
	StepID    string  `json:"step_id"`
	Delivered bool    `json:"delivered"`
	Reason    string  `json:"reason,omitempty"`
	Strategy  string  `json:"strategy,omitempty"`
	Weight    float64 `json:"weight,omitempty"` // post-feedback weight for feedback steps

	Expected *ExpectedResult `json:"expected,omitempty"`
	Match    bool            `json:"match"`
}

// Summary aggregates one replay run.
type Summary struct {
	TotalSteps int `json:"total_steps"`
	Deliveries int `json:"deliveries"`
	Defers     int `json:"defers"`
	Feedbacks  int `json:"feedbacks"`
	Mismatches int `json:"mismatches"`
}

// #endregion result-types

// #region run

// Run replays the fixture's steps in order against a fresh in-memory
// store and builtin catalog. Expected results, when present, are checked
// per step; mismatches are reported, not fatal.
func Run(f *Fixture) ([]StepResult, Summary, error) {
	store := history.NewMemStore()
	catalog := strategy.NewBuiltinCatalog()

	gateCfg := gate.DefaultConfig()
	if f.Gate != nil {
		gateCfg = *f.Gate
	}
	weights := selector.DefaultWeights()
	if f.Weights != nil {
		weights = *f.Weights
	}

	// The clock tracks the step under replay so audit-free paths that
	// fall back to "now" stay inside fixture time.
	var clock time.Time
	eng := engine.New(
		gate.New(gateCfg),
		selector.New(catalog, weights, nil),
		feedback.New(catalog, store, nil),
		store,
		engine.Options{
			Now: func() time.Time { return clock },
			RNG: rand.New(rand.NewSource(f.Seed)),
		},
	)

	expected := make(map[string]ExpectedResult, len(f.Expected))
	for _, exp := range f.Expected {
		expected[exp.StepID] = exp
	}

	recordIDs := make(map[string]string) // step id → delivered record id
	var results []StepResult
	var sum Summary

	for _, step := range f.Steps {
		clock = step.At
		sum.TotalSteps++

		var sr StepResult
		sr.StepID = step.ID

		switch {
		case step.Signals != nil:
			ctx := signals.Normalize(*step.Signals, step.At)
			res, err := eng.Decide(ctx)
			if err != nil {
				return nil, Summary{}, fmt.Errorf("step %q: %w", step.ID, err)
			}
			sr.Delivered = res.Delivered
			sr.Reason = string(res.Reason)
			sr.Strategy = res.Strategy
			if res.Delivered {
				recordIDs[step.ID] = res.RecordID
				sum.Deliveries++
			} else {
				sum.Defers++
			}

		case step.Feedback != nil:
			recordID, ok := recordIDs[step.Feedback.OfStep]
			if !ok {
				return nil, Summary{}, fmt.Errorf("step %q: step %q delivered nothing to give feedback on", step.ID, step.Feedback.OfStep)
			}
			fb, err := eng.Feedback(recordID, history.Outcome{
				Effectiveness:   step.Feedback.Effectiveness,
				Satisfaction:    step.Feedback.Satisfaction,
				Completed:       step.Feedback.Completed,
				DismissalReason: step.Feedback.DismissalReason,
			})
			if err != nil {
				return nil, Summary{}, fmt.Errorf("step %q: %w", step.ID, err)
			}
			sr.Strategy = fb.Strategy
			sr.Weight = fb.UpdatedWeight
			sum.Feedbacks++
		}

		if exp, ok := expected[step.ID]; ok {
			cp := exp
			sr.Expected = &cp
			sr.Match = matches(sr, exp)
			if !sr.Match {
				sum.Mismatches++
			}
		} else {
			sr.Match = true
		}
		results = append(results, sr)
	}

	return results, sum, nil
}

// matches compares a step result against its expectation. Zero-valued
// expectation fields are wildcards.
func matches(sr StepResult, exp ExpectedResult) bool {
	if sr.Delivered != exp.Delivered {
		return false
	}
	if exp.Reason != "" && sr.Reason != exp.Reason {
		return false
	}
	if exp.Strategy != "" && sr.Strategy != exp.Strategy {
		return false
	}
	return true
}

// #endregion run
