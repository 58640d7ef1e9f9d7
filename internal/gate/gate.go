package gate

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/intervene/internal/history"
	"github.com/danielpatrickdp/intervene/internal/signals"
)

// #region gate

// Gate decides whether any intervention should occur for a context right
// now. It is deterministic and side-effect free: the context's own
// timestamp is the clock, and history is only read.
type Gate struct {
	config Config
}

// New creates a gate with the given configuration.
func New(config Config) *Gate {
	return &Gate{config: config}
}

// ShouldIntervene applies the gating rules in order, first match wins:
//  1. flow state → defer (protect flow)
//  2. cognitive load above ceiling → defer
//  3. last intervention younger than global spacing → defer
//  4. rolling-24h count at daily cap → defer
//  5. quiet hours (before work / after work / lunch) → defer
//  6. otherwise → allow
func (g *Gate) ShouldIntervene(ctx signals.UserContext, hist history.Store) (Decision, error) {
	now := ctx.Timestamp

	// 1. Flow protection
	if ctx.FocusState == signals.FocusFlow {
		return Decision{
			Allow:  false,
			Reason: ReasonSuboptimalTiming,
			Detail: "flow state protected",
		}, nil
	}

	// 2. Cognitive load ceiling
	if ctx.CognitiveLoad > g.config.HighLoadThreshold {
		return Decision{
			Allow:  false,
			Reason: ReasonSuboptimalTiming,
			Detail: fmt.Sprintf("cognitive load %.2f exceeds ceiling %.2f", ctx.CognitiveLoad, g.config.HighLoadThreshold),
		}, nil
	}

	// 3. Global minimum spacing
	last, err := hist.LastForUser(ctx.UserID)
	if err != nil {
		return Decision{}, fmt.Errorf("gate: last intervention: %w", err)
	}
	spacing := time.Duration(g.config.MinSpacingMinutes) * time.Minute
	if last != nil && now.Sub(last.Timestamp) < spacing {
		return Decision{
			Allow:  false,
			Reason: ReasonCooldownActive,
			Detail: fmt.Sprintf("last intervention %s ago, minimum spacing %s", now.Sub(last.Timestamp).Round(time.Second), spacing),
		}, nil
	}

	// 4. Daily cap (rolling 24h), persona-specific when configured
	dailyCap := g.config.DailyCap
	if personaCap, ok := g.config.PersonaDailyCaps[ctx.Personality]; ok {
		dailyCap = personaCap
	}
	if dailyCap > 0 {
		count, err := hist.CountSince(ctx.UserID, now.Add(-24*time.Hour))
		if err != nil {
			return Decision{}, fmt.Errorf("gate: count since: %w", err)
		}
		if count >= dailyCap {
			return Decision{
				Allow:  false,
				Reason: ReasonDailyCapReached,
				Detail: fmt.Sprintf("%d interventions in last 24h, cap %d", count, dailyCap),
			}, nil
		}
	}

	// 5. Quiet hours
	if reason, blocked := g.quietHours(now); blocked {
		return Decision{
			Allow:  false,
			Reason: ReasonSuboptimalTiming,
			Detail: reason,
		}, nil
	}

	return Decision{Allow: true}, nil
}

// #endregion gate

// #region quiet-hours

// quietHours checks the configured working-window rules.
func (g *Gate) quietHours(now time.Time) (string, bool) {
	hour := now.Hour()
	if g.config.AvoidBeforeHour > 0 && hour < g.config.AvoidBeforeHour {
		return fmt.Sprintf("before working hours (%02d:00)", g.config.AvoidBeforeHour), true
	}
	if g.config.AvoidAfterHour > 0 && hour >= g.config.AvoidAfterHour {
		return fmt.Sprintf("after working hours (%02d:00)", g.config.AvoidAfterHour), true
	}
	if g.config.AvoidLunchHour && hour >= 12 && hour < 13 {
		return "lunch hour", true
	}
	return "", false
}

// #endregion quiet-hours
