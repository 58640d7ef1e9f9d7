package signals

import "time"

// #region focus-state

// FocusState classifies the user's current attention mode.
type FocusState string

const (
	FocusDeep      FocusState = "deep"
	FocusShallow   FocusState = "shallow"
	FocusScattered FocusState = "scattered"
	FocusFlow      FocusState = "flow"
)

// Valid reports whether s is one of the four known focus states.
func (s FocusState) Valid() bool {
	switch s {
	case FocusDeep, FocusShallow, FocusScattered, FocusFlow:
		return true
	}
	return false
}

// #endregion focus-state

// #region persona

// Persona identifies the user's personality archetype used for strategy fit.
type Persona string

const (
	PersonaAnalyst    Persona = "analyst"
	PersonaDeveloper  Persona = "developer"
	PersonaManager    Persona = "manager"
	PersonaDesigner   Persona = "designer"
	PersonaResearcher Persona = "researcher"
)

// #endregion persona

// #region context-flags

// Context flags derived during normalization. Templates and trigger
// reasons key off these.
const (
	FlagHighTabCount      = "high_tab_count"
	FlagFrequentSwitching = "frequent_switching"
	FlagShortFocus        = "short_focus"
	FlagGoodFocus         = "good_focus"
	FlagCognitiveOverload = "cognitive_overload"
	FlagLowCoreWork       = "low_core_work"
	FlagEndOfDay          = "end_of_day"
	FlagHighInterruptions = "high_interruptions"
	FlagMeetingHeavyDay   = "meeting_heavy_day"
	FlagNoBreaks          = "no_breaks"
	FlagHighStress        = "high_stress"
)

// #endregion context-flags

// #region recent-interaction

// RecentInteraction is a lightweight view of a past intervention carried
// inside UserContext, decoupled from the history store's full record.
type RecentInteraction struct {
	Strategy  string    `json:"strategy"`
	Timestamp time.Time `json:"timestamp"`
	Accepted  bool      `json:"accepted"`
}

// #endregion recent-interaction

// #region user-context

// UserContext is the normalized, immutable snapshot of a user's state
// for one decision call. All bounded fields are clamped to [0,1].
type UserContext struct {
	UserID        string     `json:"user_id"`
	CognitiveLoad float64    `json:"cognitive_load"`
	EnergyLevel   float64    `json:"energy_level"`
	StressLevel   float64    `json:"stress_level"`
	FocusState    FocusState `json:"focus_state"`
	Personality   Persona    `json:"personality_type"`
	Timestamp     time.Time  `json:"time_of_day"`

	RecentInteractions []RecentInteraction `json:"recent_interactions,omitempty"`
	Goals              []string            `json:"goals,omitempty"`
	Flags              []string            `json:"flags,omitempty"`

	// Confidence is the fraction of normalization inputs that were
	// actually present rather than defaulted.
	Confidence float64 `json:"confidence"`
}

// Hour returns the local hour of the context snapshot.
func (c UserContext) Hour() int {
	return c.Timestamp.Hour()
}

// HasFlag reports whether a derived flag is set on the context.
func (c UserContext) HasFlag(flag string) bool {
	for _, f := range c.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// #endregion user-context

// #region raw-signals

// RawSignals is the unvalidated telemetry payload for one user. Pointer
// fields distinguish "absent" from zero; Normalize substitutes defaults
// for absent fields and lowers the confidence sub-score.
type RawSignals struct {
	UserID           string     `json:"user_id"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
	PersonaType      string     `json:"persona_type,omitempty"`
	FocusStateHint   string     `json:"focus_state,omitempty"`
	CognitiveLoad    *float64   `json:"cognitive_load,omitempty"`
	EnergyLevel      *float64   `json:"energy_level,omitempty"`
	StressLevel      *float64   `json:"stress_level,omitempty"`
	TabCount         *int       `json:"tab_count,omitempty"`
	WindowSwitches   *int       `json:"window_switches,omitempty"`
	FocusDuration    *int       `json:"focus_session_min,omitempty"`
	KeystrokesPerMin *float64   `json:"keystrokes_per_min,omitempty"`
	BreakDuration    *int       `json:"break_duration_min,omitempty"`
	Interruptions    *int       `json:"interruption_count,omitempty"`
	CoreWorkPct      *float64   `json:"core_work_percentage,omitempty"`
	MeetingDuration  *int       `json:"meeting_duration_min,omitempty"`
	AppActive        string     `json:"app_active,omitempty"`
	Goals            []string   `json:"goals,omitempty"`

	RecentInteractions []RecentInteraction `json:"recent_interactions,omitempty"`
}

// #endregion raw-signals
