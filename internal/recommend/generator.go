// Package recommend turns a chosen strategy and context into a concrete,
// actionable intervention payload. Template choice goes through an
// injected seedable RNG so generation is deterministic under test.
package recommend

import (
	"math/rand"
	"strings"

	"github.com/danielpatrickdp/intervene/internal/signals"
	"github.com/danielpatrickdp/intervene/internal/strategy"
)

// #region generator

// highStressThreshold halves the follow-up horizon so a stressed user is
// re-checked sooner.
const highStressThreshold = 0.7

// Generator builds interventions from strategies.
type Generator struct {
	rng *rand.Rand
}

// New creates a generator around a seedable RNG source.
func New(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// #endregion generator

// #region build

// Build produces the intervention for a strategy in a context. It always
// returns an actionable payload: an invalid or missing template falls
// back to regeneration and then to the deterministic generic variant,
// never to an empty result.
func (g *Generator) Build(s strategy.Strategy, ctx signals.UserContext) Intervention {
	v := g.pickVariant(s.Name, ctx)
	if !valid(v) {
		// One regeneration attempt from the generic pool, then fallback.
		v = g.pickGeneric(s.Name)
		if !valid(v) {
			v = fallbackVariant
		}
	}

	followUp := ctx.Timestamp.Add(s.Cooldown)
	if ctx.StressLevel > highStressThreshold {
		followUp = ctx.Timestamp.Add(s.Cooldown / 2)
	}

	return Intervention{
		Type:           string(s.Category),
		Strategy:       s.Name,
		Message:        v.Message,
		ActionSteps:    v.ActionSteps,
		SuccessMetrics: v.SuccessMetrics,
		TriggerReason:  triggerReason(ctx),
		FollowUpAt:     followUp,
	}
}

// #endregion build

// #region variant-choice

// pickVariant prefers flagged variants whose flag is present in the
// context, then falls back to the generic pool. Choice among equally
// preferred variants uses the injected RNG.
func (g *Generator) pickVariant(name string, ctx signals.UserContext) variant {
	variants := templateBank[name]

	var flagged, generic []variant
	for _, v := range variants {
		if v.RequiresFlag == "" {
			generic = append(generic, v)
		} else if ctx.HasFlag(v.RequiresFlag) {
			flagged = append(flagged, v)
		}
	}

	pool := flagged
	if len(pool) == 0 {
		pool = generic
	}
	if len(pool) == 0 {
		return variant{}
	}
	return pool[g.rng.Intn(len(pool))]
}

// pickGeneric draws only from the generic pool.
func (g *Generator) pickGeneric(name string) variant {
	var generic []variant
	for _, v := range templateBank[name] {
		if v.RequiresFlag == "" {
			generic = append(generic, v)
		}
	}
	if len(generic) == 0 {
		return variant{}
	}
	return generic[g.rng.Intn(len(generic))]
}

// #endregion variant-choice

// #region validation

// valid enforces the actionability rule: non-empty steps, every step
// with a timeframe, and at least one measurable success criterion.
func valid(v variant) bool {
	if v.Message == "" || len(v.ActionSteps) == 0 || len(v.SuccessMetrics) == 0 {
		return false
	}
	for _, step := range v.ActionSteps {
		if step.Description == "" || step.Timeframe == "" {
			return false
		}
	}
	return true
}

// #endregion validation

// #region trigger-reason

// triggerReason assembles the human-readable explanation from context
// flags, matching the reporting style of the coaching corpus.
func triggerReason(ctx signals.UserContext) string {
	var reasons []string
	for _, flag := range ctx.Flags {
		switch flag {
		case signals.FlagCognitiveOverload:
			reasons = append(reasons, "high cognitive load detected")
		case signals.FlagHighStress:
			reasons = append(reasons, "elevated stress level")
		case signals.FlagFrequentSwitching:
			reasons = append(reasons, "frequent context switching")
		case signals.FlagHighTabCount:
			reasons = append(reasons, "high tab count")
		case signals.FlagShortFocus:
			reasons = append(reasons, "short focus sessions")
		case signals.FlagLowCoreWork:
			reasons = append(reasons, "low core work share")
		case signals.FlagHighInterruptions:
			reasons = append(reasons, "high interruption count")
		case signals.FlagNoBreaks:
			reasons = append(reasons, "no breaks taken recently")
		}
	}
	if len(reasons) == 0 {
		return "optimization opportunity identified"
	}
	return strings.Join(reasons, "; ")
}

// #endregion trigger-reason
