package strategy

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/intervene/internal/signals"
)

// #region category

// Category groups strategies by the dimension of the user's day they target.
type Category string

const (
	CategoryFocus        Category = "focus"
	CategoryWellbeing    Category = "wellbeing"
	CategoryProductivity Category = "productivity"
	CategoryValue        Category = "value_creation"
)

// #endregion category

// #region applicability

// Applicability is a declarative predicate over UserContext. Zero values
// mean "no constraint". Declarative rules keep predicates serializable
// and testable; Custom is an escape hatch for registered extensions and
// is the only part that may panic (the selector isolates that).
type Applicability struct {
	MaxCognitiveLoad float64              `json:"max_cognitive_load,omitempty"`
	MinCognitiveLoad float64              `json:"min_cognitive_load,omitempty"`
	MinEnergy        float64              `json:"min_energy,omitempty"`
	MinStress        float64              `json:"min_stress,omitempty"`
	FocusIn          []signals.FocusState `json:"focus_in,omitempty"`
	AnyFlag          []string             `json:"any_flag,omitempty"`

	Custom func(signals.UserContext) bool `json:"-"`
}

// Matches evaluates the declarative rules against ctx. Custom, when set,
// is consulted last and must also pass.
func (a Applicability) Matches(ctx signals.UserContext) bool {
	if a.MaxCognitiveLoad > 0 && ctx.CognitiveLoad > a.MaxCognitiveLoad {
		return false
	}
	if a.MinCognitiveLoad > 0 && ctx.CognitiveLoad < a.MinCognitiveLoad {
		return false
	}
	if a.MinEnergy > 0 && ctx.EnergyLevel < a.MinEnergy {
		return false
	}
	if a.MinStress > 0 && ctx.StressLevel < a.MinStress {
		return false
	}
	if len(a.FocusIn) > 0 {
		found := false
		for _, f := range a.FocusIn {
			if ctx.FocusState == f {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(a.AnyFlag) > 0 {
		found := false
		for _, f := range a.AnyFlag {
			if ctx.HasFlag(f) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if a.Custom != nil {
		return a.Custom(ctx)
	}
	return true
}

// #endregion applicability

// #region strategy

// Strategy is one candidate intervention behavior. Weight is the only
// mutable field; it is owned by the feedback adapter and guarded by the
// catalog's per-strategy lock.
type Strategy struct {
	Name              string        `json:"name"`
	Category          Category      `json:"category"`
	Applicability     Applicability `json:"applicability"`
	BaseEffectiveness float64       `json:"base_effectiveness"`
	CognitiveCost     float64       `json:"cognitive_cost"`
	Cooldown          time.Duration `json:"cooldown"`
	Alpha             float64       `json:"alpha"`
	Weight            float64       `json:"weight"`
}

// #endregion strategy

// #region not-found-error

// NotFoundError reports feedback addressed to a strategy that is not in
// the catalog. It signals a data-integrity bug upstream and must not be
// silently ignored.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("strategy %q not found in catalog", e.Name)
}

// #endregion not-found-error
