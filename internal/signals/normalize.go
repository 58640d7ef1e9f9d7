package signals

import (
	"strings"
	"time"
)

// #region defaults

// Defaults substituted for absent telemetry fields.
const (
	DefaultCognitiveLoad = 0.5
	DefaultEnergyLevel   = 0.5
	DefaultStressLevel   = 0.3
	DefaultFocusState    = FocusShallow
	DefaultPersona       = PersonaAnalyst
)

// Flow detection requires at least this many indicators.
const flowIndicatorThreshold = 2

// maxRecentInteractions bounds the interaction history carried in a
// context. The snapshot is serialized into every persisted record, so an
// unbounded caller-supplied list would bloat storage.
const maxRecentInteractions = 50

// Editors whose foreground presence counts as a flow indicator.
var flowApps = []string{"VSCode", "IntelliJ", "PyCharm", "Sublime", "Vim", "Figma"}

// #endregion defaults

// #region normalize

// Normalize converts a raw telemetry payload into a bounded UserContext.
// Pure function: never fails on missing fields, substitutes defaults and
// reflects how much was defaulted in the Confidence sub-score. now is the
// fallback timestamp when the payload carries none.
func Normalize(raw RawSignals, now time.Time) UserContext {
	present, total := 0, 0
	track := func(ok bool) {
		total++
		if ok {
			present++
		}
	}

	ts := now
	track(raw.Timestamp != nil)
	if raw.Timestamp != nil {
		ts = *raw.Timestamp
	}

	persona := DefaultPersona
	track(raw.PersonaType != "")
	if raw.PersonaType != "" {
		persona = Persona(strings.ToLower(raw.PersonaType))
	}

	load := DefaultCognitiveLoad
	track(raw.CognitiveLoad != nil)
	if raw.CognitiveLoad != nil {
		load = clamp01(*raw.CognitiveLoad)
	} else if derived, ok := deriveLoad(raw); ok {
		load = derived
	}

	energy := DefaultEnergyLevel
	track(raw.EnergyLevel != nil)
	if raw.EnergyLevel != nil {
		energy = clamp01(*raw.EnergyLevel)
	}

	stress := DefaultStressLevel
	track(raw.StressLevel != nil)
	if raw.StressLevel != nil {
		stress = clamp01(*raw.StressLevel)
	}

	focus := DefaultFocusState
	track(raw.FocusStateHint != "")
	if hint := FocusState(strings.ToLower(raw.FocusStateHint)); hint.Valid() {
		focus = hint
	} else if derived, ok := deriveFocus(raw); ok {
		focus = derived
	}

	ctx := UserContext{
		UserID:        raw.UserID,
		CognitiveLoad: load,
		EnergyLevel:   energy,
		StressLevel:   stress,
		FocusState:    focus,
		Personality:   persona,
		Timestamp:     ts,
		Goals:         raw.Goals,

		RecentInteractions: boundRecent(raw.RecentInteractions),

		Confidence: float64(present) / float64(total),
	}
	ctx.Flags = deriveFlags(ctx, raw)
	return ctx
}

// #endregion normalize

// #region derive-load

// deriveLoad estimates cognitive load from activity telemetry when no
// direct score is present. Each contributing signal saturates at 1.
func deriveLoad(raw RawSignals) (float64, bool) {
	var sum, weight float64
	if raw.TabCount != nil {
		sum += 0.25 * saturate(float64(*raw.TabCount), 12)
		weight += 0.25
	}
	if raw.WindowSwitches != nil {
		sum += 0.35 * saturate(float64(*raw.WindowSwitches), 20)
		weight += 0.35
	}
	if raw.Interruptions != nil {
		sum += 0.25 * saturate(float64(*raw.Interruptions), 8)
		weight += 0.25
	}
	if raw.MeetingDuration != nil {
		sum += 0.15 * saturate(float64(*raw.MeetingDuration), 240)
		weight += 0.15
	}
	if weight == 0 {
		return 0, false
	}
	return clamp01(sum / weight), true
}

// #endregion derive-load

// #region derive-focus

// deriveFocus infers the focus state from activity telemetry. Flow needs
// multiple concurrent indicators; scattered needs heavy switching.
func deriveFocus(raw RawSignals) (FocusState, bool) {
	if raw.FocusDuration == nil && raw.WindowSwitches == nil &&
		raw.KeystrokesPerMin == nil && raw.AppActive == "" {
		return "", false
	}

	indicators := 0
	if raw.FocusDuration != nil && *raw.FocusDuration > 30 {
		indicators++
	}
	if raw.WindowSwitches != nil && *raw.WindowSwitches < 5 {
		indicators++
	}
	if raw.KeystrokesPerMin != nil && *raw.KeystrokesPerMin > 80 {
		indicators++
	}
	for _, app := range flowApps {
		if strings.Contains(raw.AppActive, app) {
			indicators++
			break
		}
	}
	if indicators >= flowIndicatorThreshold {
		return FocusFlow, true
	}

	if raw.WindowSwitches != nil && *raw.WindowSwitches > 10 {
		return FocusScattered, true
	}
	if raw.FocusDuration != nil && *raw.FocusDuration > 25 {
		return FocusDeep, true
	}
	return FocusShallow, true
}

// #endregion derive-focus

// #region derive-flags

// deriveFlags computes contextual flags from the normalized context and
// whatever raw telemetry was present.
func deriveFlags(ctx UserContext, raw RawSignals) []string {
	var flags []string
	if raw.TabCount != nil && *raw.TabCount > 5 {
		flags = append(flags, FlagHighTabCount)
	}
	if raw.WindowSwitches != nil && *raw.WindowSwitches > 10 {
		flags = append(flags, FlagFrequentSwitching)
	}
	if raw.FocusDuration != nil {
		if *raw.FocusDuration > 45 {
			flags = append(flags, FlagGoodFocus)
		} else if *raw.FocusDuration < 15 {
			flags = append(flags, FlagShortFocus)
		}
	}
	if ctx.CognitiveLoad > 0.8 {
		flags = append(flags, FlagCognitiveOverload)
	}
	if ctx.StressLevel > 0.7 {
		flags = append(flags, FlagHighStress)
	}
	if raw.CoreWorkPct != nil && *raw.CoreWorkPct < 0.3 {
		flags = append(flags, FlagLowCoreWork)
	}
	if ctx.Hour() > 16 {
		flags = append(flags, FlagEndOfDay)
	}
	if raw.Interruptions != nil && *raw.Interruptions > 5 {
		flags = append(flags, FlagHighInterruptions)
	}
	if raw.MeetingDuration != nil && *raw.MeetingDuration > 240 {
		flags = append(flags, FlagMeetingHeavyDay)
	}
	if raw.BreakDuration != nil && *raw.BreakDuration < 5 {
		flags = append(flags, FlagNoBreaks)
	}
	return flags
}

// #endregion derive-flags

// #region helpers

// boundRecent keeps only the newest maxRecentInteractions entries.
// Interactions arrive oldest first, so the tail is the recent end.
func boundRecent(recent []RecentInteraction) []RecentInteraction {
	if len(recent) <= maxRecentInteractions {
		return recent
	}
	return recent[len(recent)-maxRecentInteractions:]
}

// saturate maps v linearly onto [0,1] with ceiling ceil.
func saturate(v, ceil float64) float64 {
	if ceil <= 0 {
		return 0
	}
	return clamp01(v / ceil)
}

// clamp01 restricts v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
