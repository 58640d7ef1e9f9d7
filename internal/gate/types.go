package gate

import "github.com/danielpatrickdp/intervene/internal/signals"

// #region defer-reason

// DeferReason enumerates why the gate (or the pipeline behind it)
// declined to intervene. This is the closed set surfaced to callers.
type DeferReason string

const (
	ReasonSuboptimalTiming   DeferReason = "suboptimal_timing"
	ReasonCooldownActive     DeferReason = "cooldown_active"
	ReasonDailyCapReached    DeferReason = "daily_cap_reached"
	ReasonNoEligibleStrategy DeferReason = "no_eligible_strategy"
)

// #endregion defer-reason

// #region gate-config

// Config holds thresholds for gate decisions.
type Config struct {
	// HighLoadThreshold blocks interventions when cognitive load exceeds it.
	HighLoadThreshold float64 `yaml:"high_load_threshold"`
	// MinSpacingMinutes is the global minimum spacing between any two
	// interventions for one user.
	MinSpacingMinutes int `yaml:"min_spacing_minutes"`
	// DailyCap limits interventions per user per rolling 24h.
	DailyCap int `yaml:"daily_cap"`
	// PersonaDailyCaps overrides DailyCap per persona.
	PersonaDailyCaps map[signals.Persona]int `yaml:"persona_daily_caps"`

	// Quiet-hour rules learned from dismissal patterns. Zero values
	// disable the respective rule.
	AvoidBeforeHour int  `yaml:"avoid_before_hour"`
	AvoidAfterHour  int  `yaml:"avoid_after_hour"`
	AvoidLunchHour  bool `yaml:"avoid_lunch_hour"`
}

// DefaultConfig returns the defaults from the coaching corpus: 0.8 load
// ceiling, 30 min spacing, 4/day cap, 9h-17h working window with lunch
// awareness.
func DefaultConfig() Config {
	return Config{
		HighLoadThreshold: 0.8,
		MinSpacingMinutes: 30,
		DailyCap:          4,
		PersonaDailyCaps: map[signals.Persona]int{
			signals.PersonaManager:   3,
			signals.PersonaDeveloper: 4,
			signals.PersonaAnalyst:   5,
		},
		AvoidBeforeHour: 9,
		AvoidAfterHour:  17,
		AvoidLunchHour:  true,
	}
}

// #endregion gate-config

// #region decision

// Decision is the output of the gate evaluation.
type Decision struct {
	Allow  bool
	Reason DeferReason // set when Allow is false
	Detail string      // human-readable explanation for the audit log
}

// #endregion decision
