// Package feedback folds observed intervention outcomes back into
// strategy weights using a per-strategy exponential moving average.
package feedback

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/intervene/internal/history"
	"github.com/danielpatrickdp/intervene/internal/strategy"
)

// #region backoff

// Cooldown backoff applied when a user dismisses with "too_frequent",
// mirroring the frequency adaptation learned in the coaching corpus.
const (
	DismissalTooFrequent = "too_frequent"

	backoffStep = 15 * time.Minute
	backoffCap  = 2 * time.Hour
)

// #endregion backoff

// #region adapter

// Adapter applies outcome feedback to the catalog and persists the
// resulting weights. Updates to the same strategy are serialized by the
// catalog's per-strategy lock; different strategies update concurrently.
type Adapter struct {
	catalog *strategy.Catalog
	store   history.Store
	log     *zap.SugaredLogger
}

// New creates an adapter. store may be nil when persistence is handled
// elsewhere (e.g. replay); log may be nil.
func New(catalog *strategy.Catalog, store history.Store, log *zap.SugaredLogger) *Adapter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Adapter{catalog: catalog, store: store, log: log}
}

// #endregion adapter

// #region apply-feedback

// ApplyFeedback folds one effectiveness observation into the strategy's
// weight:
//
//	new = old*(1-alpha) + effectiveness*alpha
//
// clamped to [0,1], with the strategy's own alpha. Unknown names return
// *strategy.NotFoundError: that is a data-integrity bug upstream, never
// swallowed. Returns the updated weight.
func (a *Adapter) ApplyFeedback(strategyName string, effectiveness float64) (float64, error) {
	s, err := a.catalog.Get(strategyName)
	if err != nil {
		return 0, err
	}
	if effectiveness < 0 {
		effectiveness = 0
	} else if effectiveness > 1 {
		effectiveness = 1
	}

	updated, err := a.catalog.UpdateWeight(strategyName, func(old float64) float64 {
		return old*(1-s.Alpha) + effectiveness*s.Alpha
	})
	if err != nil {
		return 0, err
	}

	if a.store != nil {
		if err := a.store.SaveWeight(strategyName, updated); err != nil {
			return updated, fmt.Errorf("persist weight: %w", err)
		}
	}

	a.log.Debugw("feedback applied",
		"strategy", strategyName, "effectiveness", effectiveness, "weight", updated)
	return updated, nil
}

// #endregion apply-feedback

// #region apply-outcome

// ApplyOutcome attaches the outcome to the history record (as an amended
// copy), applies the effectiveness feedback, and runs dismissal-driven
// adaptations. Returns the amended record and the updated weight.
func (a *Adapter) ApplyOutcome(recordID string, out history.Outcome) (history.InterventionRecord, float64, error) {
	if a.store == nil {
		return history.InterventionRecord{}, 0, fmt.Errorf("apply outcome: no history store")
	}

	amended, err := a.store.AttachOutcome(recordID, out)
	if err != nil {
		return history.InterventionRecord{}, 0, err
	}

	weight, err := a.ApplyFeedback(amended.Strategy, out.Effectiveness)
	if err != nil {
		return history.InterventionRecord{}, 0, err
	}

	if out.DismissalReason == DismissalTooFrequent {
		cd, err := a.catalog.AdjustCooldown(amended.Strategy, func(old time.Duration) time.Duration {
			next := old + backoffStep
			if next > backoffCap {
				next = backoffCap
			}
			return next
		})
		if err != nil {
			return history.InterventionRecord{}, 0, err
		}
		a.log.Infow("cooldown backed off after too_frequent dismissal",
			"strategy", amended.Strategy, "cooldown", cd)
	}

	return amended, weight, nil
}

// #endregion apply-outcome
