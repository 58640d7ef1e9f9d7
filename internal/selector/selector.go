// Package selector scores eligible strategies against a user context and
// picks the single best one. Selection is deterministic: identical
// context and history always produce the same strategy and score.
package selector

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/intervene/internal/history"
	"github.com/danielpatrickdp/intervene/internal/signals"
	"github.com/danielpatrickdp/intervene/internal/strategy"
)

// #region weights

// Weights are the fixed scoring weights; they must sum to 1.
type Weights struct {
	PersonaFit float64 `yaml:"persona_fit"`
	Cost       float64 `yaml:"cost"`
	Learned    float64 `yaml:"learned"`
	Recency    float64 `yaml:"recency"`
}

// DefaultWeights returns the 0.3/0.3/0.3/0.1 split.
func DefaultWeights() Weights {
	return Weights{PersonaFit: 0.3, Cost: 0.3, Learned: 0.3, Recency: 0.1}
}

// recencyWindow is the horizon over which the recency bonus recovers
// after a strategy is used.
const recencyWindow = 24 * time.Hour

// scoreEpsilon is the tolerance below which two scores count as tied.
const scoreEpsilon = 1e-9

// #endregion weights

// #region selection

// Selection is the winning strategy with its score breakdown.
type Selection struct {
	Strategy strategy.Strategy `json:"strategy"`
	Score    float64           `json:"score"`
}

// #endregion selection

// #region selector

// Selector scores catalog strategies for a context.
type Selector struct {
	catalog *strategy.Catalog
	weights Weights
	log     *zap.SugaredLogger
}

// New creates a selector. log may be nil for pure library use.
func New(catalog *strategy.Catalog, weights Weights, log *zap.SugaredLogger) *Selector {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Selector{catalog: catalog, weights: weights, log: log}
}

// #endregion selector

// #region select

// Select picks the best eligible strategy, or nil when none is eligible
// (a defer decision for the caller, not an error). A strategy is eligible
// when its applicability predicate holds and its own cooldown has elapsed
// for this user. A panicking custom predicate excludes only that strategy.
func (s *Selector) Select(ctx signals.UserContext, hist history.Store) (*Selection, error) {
	var best *Selection

	for _, cand := range s.catalog.All() {
		applicable, err := s.safeMatches(cand, ctx)
		if err != nil {
			s.log.Warnw("strategy predicate failed, excluding",
				"strategy", cand.Name, "error", err)
			continue
		}
		if !applicable {
			continue
		}

		last, err := hist.LastFor(ctx.UserID, cand.Name)
		if err != nil {
			return nil, fmt.Errorf("select: last for %s: %w", cand.Name, err)
		}
		if last != nil && ctx.Timestamp.Sub(last.Timestamp) < cand.Cooldown {
			continue
		}

		score := s.score(cand, ctx, last)
		if best == nil || better(score, cand, best) {
			best = &Selection{Strategy: cand, Score: score}
		}
	}

	if best != nil {
		s.log.Debugw("strategy selected",
			"user", ctx.UserID, "strategy", best.Strategy.Name, "score", best.Score)
	}
	return best, nil
}

// #endregion select

// #region scoring

// score computes the composite score for one candidate.
//
//	w1*persona_fit + w2*(1 - load-adjusted cost) + w3*learned weight + w4*recency bonus
func (s *Selector) score(cand strategy.Strategy, ctx signals.UserContext, last *history.InterventionRecord) float64 {
	fit := strategy.PersonaFit(cand, ctx.Personality)

	// Cost weighs heavier the more loaded the user already is.
	adjustedCost := clamp01(cand.CognitiveCost * (0.5 + ctx.CognitiveLoad))

	bonus := recencyBonus(cand, ctx.Timestamp, last)

	return s.weights.PersonaFit*fit +
		s.weights.Cost*(1-adjustedCost) +
		s.weights.Learned*cand.Weight +
		s.weights.Recency*bonus
}

// recencyBonus favors strategies that have not been used recently:
// full bonus when never used, recovering linearly over the window.
func recencyBonus(cand strategy.Strategy, now time.Time, last *history.InterventionRecord) float64 {
	if last == nil {
		return 1.0
	}
	elapsed := now.Sub(last.Timestamp)
	if elapsed <= 0 {
		return 0
	}
	return clamp01(float64(elapsed) / float64(recencyWindow))
}

// better reports whether (score, cand) beats the current best, applying
// the deterministic tie-break: lower cognitive cost, then alphabetical name.
func better(score float64, cand strategy.Strategy, best *Selection) bool {
	if score > best.Score+scoreEpsilon {
		return true
	}
	if score < best.Score-scoreEpsilon {
		return false
	}
	if cand.CognitiveCost != best.Strategy.CognitiveCost {
		return cand.CognitiveCost < best.Strategy.CognitiveCost
	}
	return cand.Name < best.Strategy.Name
}

// #endregion scoring

// #region safe-matches

// safeMatches evaluates the applicability predicate, converting a panic
// in a custom predicate into an error so one bad strategy never aborts
// selection.
func (s *Selector) safeMatches(cand strategy.Strategy, ctx signals.UserContext) (applicable bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			applicable = false
			err = fmt.Errorf("predicate panic: %v", r)
		}
	}()
	return cand.Applicability.Matches(ctx), nil
}

// #endregion safe-matches

// #region helpers

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
