package recommend

import "time"

// #region action-step

// ActionStep is one concrete step inside an intervention. Every step
// carries an estimated timeframe; difficulty is a coarse 1-3 scale.
type ActionStep struct {
	Description string `json:"description"`
	Timeframe   string `json:"timeframe"`
	Difficulty  int    `json:"difficulty"`
}

// #endregion action-step

// #region intervention

// Intervention is the deliverable payload built from a chosen strategy
// and context. ActionSteps is always non-empty and SuccessMetrics always
// carries at least one measurable criterion.
type Intervention struct {
	Type           string       `json:"type"`
	Strategy       string       `json:"strategy"`
	Message        string       `json:"message"`
	ActionSteps    []ActionStep `json:"action_steps"`
	SuccessMetrics []string     `json:"success_metrics"`
	TriggerReason  string       `json:"trigger_reason"`
	FollowUpAt     time.Time    `json:"follow_up_at"`
}

// #endregion intervention
