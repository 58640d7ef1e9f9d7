package history

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/intervene/internal/signals"
)

// ErrNotFound marks a lookup for a record id that does not exist. Both
// store implementations wrap it so callers can map it to a 404.
var ErrNotFound = errors.New("record not found")

// #region outcome

// Outcome is the observed result of a delivered intervention, attached
// after the fact by the feedback path.
type Outcome struct {
	Effectiveness   float64 `json:"effectiveness"`
	Satisfaction    float64 `json:"satisfaction"`
	Completed       bool    `json:"completed"`
	DismissalReason string  `json:"dismissal_reason,omitempty"`
}

// Accepted reports whether the user acted on the intervention.
func (o Outcome) Accepted() bool {
	return o.Completed || o.DismissalReason == ""
}

// #endregion outcome

// #region intervention-record

// InterventionRecord is one append-only log entry for a delivered
// intervention. Records are never mutated once an outcome is set; outcome
// attachment appends an amended copy whose AmendsID references the
// original. Amended copies are excluded from cooldown and cap queries.
type InterventionRecord struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Strategy  string              `json:"strategy_name"`
	Timestamp time.Time           `json:"timestamp"`
	Context   signals.UserContext `json:"context_snapshot"`
	Outcome   *Outcome            `json:"outcome,omitempty"`
	AmendsID  string              `json:"amends_id,omitempty"`
}

// #endregion intervention-record

// #region store-interface

// Store is the append-only per-user intervention log plus persisted
// strategy weights. Implementations must be safe for concurrent use.
type Store interface {
	// Record appends a new delivery record.
	Record(rec InterventionRecord) error
	// Get returns a record by id.
	Get(id string) (InterventionRecord, error)
	// LastFor returns the most recent delivery of the named strategy for
	// the user, or nil if none exists.
	LastFor(userID, strategyName string) (*InterventionRecord, error)
	// LastForUser returns the most recent delivery of any strategy for
	// the user, or nil if none exists.
	LastForUser(userID string) (*InterventionRecord, error)
	// CountSince counts deliveries for the user at or after since.
	CountSince(userID string, since time.Time) (int, error)
	// Recent returns up to limit most recent deliveries for the user,
	// newest first. Amended copies replace their originals in the view.
	Recent(userID string, limit int) ([]InterventionRecord, error)
	// AttachOutcome appends an amended copy of the record carrying the
	// outcome and returns it. The original row is left untouched.
	AttachOutcome(recordID string, out Outcome) (InterventionRecord, error)

	// LoadWeights returns all persisted strategy weights.
	LoadWeights() (map[string]float64, error)
	// SaveWeight durably records the current weight for a strategy.
	SaveWeight(name string, weight float64) error
}

// #endregion store-interface
