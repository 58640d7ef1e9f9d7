package strategy

import (
	"time"

	"github.com/danielpatrickdp/intervene/internal/signals"
)

// #region builtin-definitions

// Builtins returns the full set of built-in intervention strategies.
func Builtins() []Strategy {
	return []Strategy{
		{
			Name:     "micro_break",
			Category: CategoryWellbeing,
			Applicability: Applicability{
				MinCognitiveLoad: 0.5,
			},
			BaseEffectiveness: 0.55,
			CognitiveCost:     0.1,
			Cooldown:          45 * time.Minute,
		},
		{
			Name:     "breathing_reset",
			Category: CategoryWellbeing,
			Applicability: Applicability{
				MinStress: 0.6,
			},
			BaseEffectiveness: 0.5,
			CognitiveCost:     0.15,
			Cooldown:          60 * time.Minute,
		},
		{
			Name:     "deep_work_block",
			Category: CategoryFocus,
			Applicability: Applicability{
				MaxCognitiveLoad: 0.6,
				MinEnergy:        0.5,
				FocusIn:          []signals.FocusState{signals.FocusShallow, signals.FocusScattered},
			},
			BaseEffectiveness: 0.6,
			CognitiveCost:     0.7,
			Cooldown:          3 * time.Hour,
		},
		{
			Name:     "tab_triage",
			Category: CategoryFocus,
			Applicability: Applicability{
				AnyFlag: []string{signals.FlagHighTabCount, signals.FlagFrequentSwitching},
			},
			BaseEffectiveness: 0.45,
			CognitiveCost:     0.3,
			Cooldown:          90 * time.Minute,
		},
		{
			Name:     "time_blocking",
			Category: CategoryProductivity,
			Applicability: Applicability{
				AnyFlag: []string{signals.FlagLowCoreWork, signals.FlagFrequentSwitching, signals.FlagHighInterruptions},
			},
			BaseEffectiveness: 0.5,
			CognitiveCost:     0.5,
			Cooldown:          4 * time.Hour,
		},
		{
			Name:     "email_batching",
			Category: CategoryValue,
			Applicability: Applicability{
				MaxCognitiveLoad: 0.75,
				AnyFlag:          []string{signals.FlagLowCoreWork, signals.FlagHighInterruptions},
			},
			BaseEffectiveness: 0.4,
			CognitiveCost:     0.4,
			Cooldown:          24 * time.Hour,
		},
		{
			Name:     "stretch_hydrate",
			Category: CategoryWellbeing,
			Applicability: Applicability{
				AnyFlag: []string{signals.FlagNoBreaks, signals.FlagEndOfDay},
			},
			BaseEffectiveness: 0.5,
			CognitiveCost:     0.1,
			Cooldown:          2 * time.Hour,
		},
	}
}

// #endregion builtin-definitions

// #region persona-affinity

// personaAffinity maps persona → category → fit score in [0,1]. Values
// derive from observed acceptance rates per persona in the coaching
// interaction corpus.
var personaAffinity = map[signals.Persona]map[Category]float64{
	signals.PersonaAnalyst: {
		CategoryFocus:        0.7,
		CategoryWellbeing:    0.5,
		CategoryProductivity: 0.8,
		CategoryValue:        0.7,
	},
	signals.PersonaDeveloper: {
		CategoryFocus:        0.8,
		CategoryWellbeing:    0.6,
		CategoryProductivity: 0.6,
		CategoryValue:        0.4,
	},
	signals.PersonaManager: {
		CategoryFocus:        0.4,
		CategoryWellbeing:    0.5,
		CategoryProductivity: 0.7,
		CategoryValue:        0.8,
	},
	signals.PersonaDesigner: {
		CategoryFocus:        0.7,
		CategoryWellbeing:    0.7,
		CategoryProductivity: 0.5,
		CategoryValue:        0.5,
	},
	signals.PersonaResearcher: {
		CategoryFocus:        0.8,
		CategoryWellbeing:    0.5,
		CategoryProductivity: 0.5,
		CategoryValue:        0.6,
	},
}

// neutralAffinity is used for unknown personas or categories.
const neutralAffinity = 0.5

// PersonaFit returns the fit score for a strategy given a persona.
func PersonaFit(s Strategy, p signals.Persona) float64 {
	if byCat, ok := personaAffinity[p]; ok {
		if fit, ok := byCat[s.Category]; ok {
			return fit
		}
	}
	return neutralAffinity
}

// #endregion persona-affinity
