// Package audit persists one row per decision pipeline run, so deferred
// and delivered decisions alike stay traceable after the fact.
package audit

import (
	"database/sql"
	"fmt"
	"time"
)

// #region schema

const decisionLogSchema = `
CREATE TABLE IF NOT EXISTS decision_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      TEXT NOT NULL,
	record_id    TEXT,
	decision     TEXT NOT NULL,
	reason       TEXT,
	strategy     TEXT,
	score        REAL,
	context_json TEXT,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_log_user
ON decision_log(user_id, created_at);
`

// #endregion schema

// #region entry

// Decision values recorded per pipeline run.
const (
	DecisionDelivered = "delivered"
	DecisionDeferred  = "deferred"
	DecisionFeedback  = "feedback"
)

// Entry is one decision audit row.
type Entry struct {
	UserID      string
	RecordID    string
	Decision    string
	Reason      string
	Strategy    string
	Score       float64
	ContextJSON string
	CreatedAt   time.Time
}

// #endregion entry

// #region log

// Log writes decision entries to the decision_log table.
type Log struct {
	db *sql.DB
}

// NewLog initializes the decision_log table and returns a Log.
func NewLog(db *sql.DB) (*Log, error) {
	if _, err := db.Exec(decisionLogSchema); err != nil {
		return nil, fmt.Errorf("migrate decision log: %w", err)
	}
	return &Log{db: db}, nil
}

// Record writes one audit entry.
func (l *Log) Record(entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT INTO decision_log (user_id, record_id, decision, reason, strategy, score, context_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID,
		nullIfEmpty(entry.RecordID),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.Strategy),
		entry.Score,
		nullIfEmpty(entry.ContextJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (l *Log) Recent(limit int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT user_id, record_id, decision, reason, strategy, score, context_json, created_at
		 FROM decision_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var recordID, reason, strat, ctxJSON sql.NullString
		var createdStr string
		if err := rows.Scan(&e.UserID, &recordID, &e.Decision, &reason, &strat, &e.Score, &ctxJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.RecordID = recordID.String
		e.Reason = reason.String
		e.Strategy = strat.String
		e.ContextJSON = ctxJSON.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion log

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
