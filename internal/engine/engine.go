// Package engine runs the full decision pipeline: gate, select, build,
// record, audit. One Engine serves all users; runs for the same user are
// serialized so history reads and the subsequent append stay consistent.
package engine

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/intervene/internal/audit"
	"github.com/danielpatrickdp/intervene/internal/feedback"
	"github.com/danielpatrickdp/intervene/internal/gate"
	"github.com/danielpatrickdp/intervene/internal/history"
	"github.com/danielpatrickdp/intervene/internal/recommend"
	"github.com/danielpatrickdp/intervene/internal/selector"
	"github.com/danielpatrickdp/intervene/internal/signals"
)

// #region result

// Result is the outcome of one pipeline run. Delivered results carry the
// intervention and its record id; deferred results carry the reason.
type Result struct {
	Delivered    bool                    `json:"delivered"`
	Reason       gate.DeferReason        `json:"reason,omitempty"`
	Detail       string                  `json:"detail,omitempty"`
	RecordID     string                  `json:"record_id,omitempty"`
	Strategy     string                  `json:"selected_strategy,omitempty"`
	Score        float64                 `json:"score,omitempty"`
	Intervention *recommend.Intervention `json:"intervention,omitempty"`
}

// FeedbackResult reports the effect of one applied outcome.
type FeedbackResult struct {
	RecordID      string  `json:"record_id"`
	Strategy      string  `json:"strategy"`
	UpdatedWeight float64 `json:"updated_weight"`
}

// #endregion result

// #region engine

// Engine wires the pipeline stages together.
type Engine struct {
	gate     *gate.Gate
	selector *selector.Selector
	gen      *recommend.Generator
	adapter  *feedback.Adapter
	store    history.Store
	audit    *audit.Log
	log      *zap.SugaredLogger
	now      func() time.Time

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// Options carries the optional engine collaborators.
type Options struct {
	// Audit, when set, receives one entry per pipeline run.
	Audit *audit.Log
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
	// RNG seeds template choice; defaults to a time-seeded source.
	RNG *rand.Rand
	// Log defaults to a nop logger.
	Log *zap.SugaredLogger
}

// New assembles an engine from its stages.
func New(g *gate.Gate, sel *selector.Selector, adapter *feedback.Adapter, store history.Store, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RNG == nil {
		opts.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	return &Engine{
		gate:     g,
		selector: sel,
		gen:      recommend.New(opts.RNG),
		adapter:  adapter,
		store:    store,
		audit:    opts.Audit,
		log:      opts.Log,
		now:      opts.Now,
		users:    make(map[string]*sync.Mutex),
	}
}

// userLock returns the per-user mutex, creating it on first use.
func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.users[userID]
	if !ok {
		l = &sync.Mutex{}
		e.users[userID] = l
	}
	return l
}

// #endregion engine

// #region decide

// Decide runs gate, selection, generation and recording for one context.
// The whole run holds the user's lock, so concurrent requests for the
// same user see each other's recorded deliveries.
func (e *Engine) Decide(ctx signals.UserContext) (Result, error) {
	if ctx.UserID == "" {
		return Result{}, fmt.Errorf("decide: missing user id")
	}
	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = e.now()
	}

	l := e.userLock(ctx.UserID)
	l.Lock()
	defer l.Unlock()

	decision, err := e.gate.ShouldIntervene(ctx, e.store)
	if err != nil {
		return Result{}, err
	}
	if !decision.Allow {
		res := Result{Delivered: false, Reason: decision.Reason, Detail: decision.Detail}
		e.auditDefer(ctx, res)
		e.log.Debugw("intervention deferred",
			"user", ctx.UserID, "reason", decision.Reason, "detail", decision.Detail)
		return res, nil
	}

	sel, err := e.selector.Select(ctx, e.store)
	if err != nil {
		return Result{}, err
	}
	if sel == nil {
		res := Result{Delivered: false, Reason: gate.ReasonNoEligibleStrategy}
		e.auditDefer(ctx, res)
		e.log.Debugw("no eligible strategy", "user", ctx.UserID)
		return res, nil
	}

	iv := e.gen.Build(sel.Strategy, ctx)

	rec := history.InterventionRecord{
		ID:        uuid.NewString(),
		UserID:    ctx.UserID,
		Strategy:  sel.Strategy.Name,
		Timestamp: ctx.Timestamp,
		Context:   ctx,
	}
	if err := e.store.Record(rec); err != nil {
		return Result{}, fmt.Errorf("decide: record: %w", err)
	}

	res := Result{
		Delivered:    true,
		RecordID:     rec.ID,
		Strategy:     sel.Strategy.Name,
		Score:        sel.Score,
		Intervention: &iv,
	}
	e.auditDeliver(ctx, res)
	e.log.Infow("intervention delivered",
		"user", ctx.UserID, "strategy", res.Strategy, "score", res.Score, "record", res.RecordID)
	return res, nil
}

// #endregion decide

// #region feedback

// Feedback attaches an outcome to a delivered intervention and folds its
// effectiveness back into the strategy weight.
func (e *Engine) Feedback(recordID string, out history.Outcome) (FeedbackResult, error) {
	amended, weight, err := e.adapter.ApplyOutcome(recordID, out)
	if err != nil {
		return FeedbackResult{}, err
	}

	if e.audit != nil {
		entry := audit.Entry{
			UserID:    amended.UserID,
			RecordID:  recordID,
			Decision:  audit.DecisionFeedback,
			Strategy:  amended.Strategy,
			Score:     out.Effectiveness,
			CreatedAt: e.now(),
		}
		if err := e.audit.Record(entry); err != nil {
			e.log.Warnw("audit feedback failed", "error", err)
		}
	}

	return FeedbackResult{
		RecordID:      recordID,
		Strategy:      amended.Strategy,
		UpdatedWeight: weight,
	}, nil
}

// #endregion feedback

// #region audit-helpers

func (e *Engine) auditDefer(ctx signals.UserContext, res Result) {
	if e.audit == nil {
		return
	}
	entry := audit.Entry{
		UserID:      ctx.UserID,
		Decision:    audit.DecisionDeferred,
		Reason:      string(res.Reason),
		ContextJSON: contextJSON(ctx),
		CreatedAt:   ctx.Timestamp,
	}
	if err := e.audit.Record(entry); err != nil {
		e.log.Warnw("audit defer failed", "error", err)
	}
}

func (e *Engine) auditDeliver(ctx signals.UserContext, res Result) {
	if e.audit == nil {
		return
	}
	entry := audit.Entry{
		UserID:      ctx.UserID,
		RecordID:    res.RecordID,
		Decision:    audit.DecisionDelivered,
		Strategy:    res.Strategy,
		Score:       res.Score,
		ContextJSON: contextJSON(ctx),
		CreatedAt:   ctx.Timestamp,
	}
	if err := e.audit.Record(entry); err != nil {
		e.log.Warnw("audit deliver failed", "error", err)
	}
}

func contextJSON(ctx signals.UserContext) string {
	b, err := json.Marshal(ctx)
	if err != nil {
		return ""
	}
	return string(b)
}

// #endregion audit-helpers
