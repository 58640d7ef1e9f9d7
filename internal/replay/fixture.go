package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/intervene/internal/gate"
	"github.com/danielpatrickdp/intervene/internal/selector"
	"github.com/danielpatrickdp/intervene/internal/signals"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a
// recorded sequence of signal snapshots and feedback events with the
// decisions they are expected to produce.
type Fixture struct {
	Description string           `json:"description"`
	Seed        int64            `json:"seed"`
	Gate        *gate.Config     `json:"gate_config,omitempty"`
	Weights     *selector.Weights `json:"selector_weights,omitempty"`
	Steps       []FixtureStep    `json:"steps"`
	Expected    []ExpectedResult `json:"expected_results"`
}

// FixtureStep is one recorded event. A step carries either a signal
// snapshot (a decision request) or a feedback payload referencing an
// earlier step's delivery, never both.
type FixtureStep struct {
	ID       string             `json:"id"`
	At       time.Time          `json:"at"`
	Signals  *signals.RawSignals `json:"signals,omitempty"`
	Feedback *FixtureFeedback   `json:"feedback,omitempty"`
}

// FixtureFeedback applies an outcome to the delivery made by OfStep.
type FixtureFeedback struct {
	OfStep          string  `json:"of_step"`
	Effectiveness   float64 `json:"effectiveness"`
	Satisfaction    float64 `json:"satisfaction"`
	Completed       bool    `json:"completed"`
	DismissalReason string  `json:"dismissal_reason,omitempty"`
}

// ExpectedResult captures the expected decision for one step.
type ExpectedResult struct {
	StepID    string `json:"step_id"`
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	seen := make(map[string]bool, len(f.Steps))
	for i, step := range f.Steps {
		if step.ID == "" {
			return fmt.Errorf("step %d: missing id", i)
		}
		if seen[step.ID] {
			return fmt.Errorf("step %d: duplicate id %q", i, step.ID)
		}
		seen[step.ID] = true
		if (step.Signals == nil) == (step.Feedback == nil) {
			return fmt.Errorf("step %q: exactly one of signals or feedback required", step.ID)
		}
		if step.Feedback != nil && !seen[step.Feedback.OfStep] {
			return fmt.Errorf("step %q: feedback references unknown step %q", step.ID, step.Feedback.OfStep)
		}
	}
	for _, exp := range f.Expected {
		if !seen[exp.StepID] {
			return fmt.Errorf("expected result references unknown step %q", exp.StepID)
		}
	}
	return nil
}

// #endregion fixture-loader
