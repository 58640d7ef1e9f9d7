package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/intervene/internal/signals"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS intervention_records (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	ts            TEXT NOT NULL,
	context_json  TEXT NOT NULL,
	outcome_json  TEXT,
	amends_id     TEXT,
	FOREIGN KEY (amends_id) REFERENCES intervention_records(id)
);

CREATE INDEX IF NOT EXISTS idx_records_user_strategy
ON intervention_records(user_id, strategy, ts);

CREATE INDEX IF NOT EXISTS idx_records_user_ts
ON intervention_records(user_id, ts);

CREATE TABLE IF NOT EXISTS strategy_weights (
	name        TEXT PRIMARY KEY,
	weight      REAL NOT NULL,
	updated_at  TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// SQLStore is the SQLite-backed Store implementation.
type SQLStore struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewSQLStore opens a SQLite database and runs migrations.
func NewSQLStore(dbPath string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. audit).
func (s *SQLStore) DB() *sql.DB {
	return s.db
}
// #endregion close

// #region record
// Record appends a new delivery record.
func (s *SQLStore) Record(rec InterventionRecord) error {
	ctxJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	var outcomePtr interface{}
	if rec.Outcome != nil {
		b, err := json.Marshal(rec.Outcome)
		if err != nil {
			return fmt.Errorf("marshal outcome: %w", err)
		}
		outcomePtr = string(b)
	}

	var amendsPtr interface{}
	if rec.AmendsID != "" {
		amendsPtr = rec.AmendsID
	}

	_, err = s.db.Exec(
		`INSERT INTO intervention_records (id, user_id, strategy, ts, context_json, outcome_json, amends_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Strategy,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		string(ctxJSON), outcomePtr, amendsPtr,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}
// #endregion record

// #region get
// Get returns a record by id.
func (s *SQLStore) Get(id string) (InterventionRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, strategy, ts, context_json, outcome_json, amends_id
		 FROM intervention_records WHERE id = ?`, id,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return InterventionRecord{}, fmt.Errorf("get record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return InterventionRecord{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}
// #endregion get

// #region last-for
// LastFor returns the most recent delivery of the named strategy for the
// user. Amended copies are excluded so cooldown checks see the original
// delivery time exactly once.
func (s *SQLStore) LastFor(userID, strategyName string) (*InterventionRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, strategy, ts, context_json, outcome_json, amends_id
		 FROM intervention_records
		 WHERE user_id = ? AND strategy = ? AND amends_id IS NULL
		 ORDER BY ts DESC LIMIT 1`,
		userID, strategyName,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last for %s/%s: %w", userID, strategyName, err)
	}
	return &rec, nil
}

// LastForUser returns the most recent delivery of any strategy for the user.
func (s *SQLStore) LastForUser(userID string) (*InterventionRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, strategy, ts, context_json, outcome_json, amends_id
		 FROM intervention_records
		 WHERE user_id = ? AND amends_id IS NULL
		 ORDER BY ts DESC LIMIT 1`,
		userID,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last for user %s: %w", userID, err)
	}
	return &rec, nil
}
// #endregion last-for

// #region count-since
// CountSince counts deliveries for the user at or after since.
func (s *SQLStore) CountSince(userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM intervention_records
		 WHERE user_id = ? AND amends_id IS NULL AND ts >= ?`,
		userID, since.UTC().Format(time.RFC3339Nano),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count since: %w", err)
	}
	return n, nil
}
// #endregion count-since

// #region recent
// Recent returns up to limit most recent deliveries for the user, newest
// first, with amended copies replacing their originals.
func (s *SQLStore) Recent(userID string, limit int) ([]InterventionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, strategy, ts, context_json, outcome_json, amends_id
		 FROM intervention_records
		 WHERE user_id = ? AND amends_id IS NULL
		 ORDER BY ts DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	defer rows.Close()

	var records []InterventionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Overlay amendments so callers see attached outcomes.
	for i, rec := range records {
		amended, err := s.latestAmendment(rec.ID)
		if err != nil {
			return nil, err
		}
		if amended != nil {
			records[i] = *amended
		}
	}
	return records, nil
}

// latestAmendment returns the newest amended copy of a record, or nil.
func (s *SQLStore) latestAmendment(id string) (*InterventionRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, strategy, ts, context_json, outcome_json, amends_id
		 FROM intervention_records
		 WHERE amends_id = ? ORDER BY rowid DESC LIMIT 1`, id,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest amendment %s: %w", id, err)
	}
	return &rec, nil
}
// #endregion recent

// #region attach-outcome
// AttachOutcome appends an amended copy carrying the outcome. The copy
// keeps the original's delivery timestamp so the log stays append-only
// without perturbing ordering.
func (s *SQLStore) AttachOutcome(recordID string, out Outcome) (InterventionRecord, error) {
	orig, err := s.Get(recordID)
	if err != nil {
		return InterventionRecord{}, err
	}
	if orig.AmendsID != "" {
		return InterventionRecord{}, fmt.Errorf("record %s is an amendment; attach to the original", recordID)
	}

	amended := orig
	amended.ID = uuid.New().String()
	amended.Outcome = &out
	amended.AmendsID = orig.ID

	if err := s.Record(amended); err != nil {
		return InterventionRecord{}, fmt.Errorf("append amendment: %w", err)
	}
	return amended, nil
}
// #endregion attach-outcome

// #region weights
// LoadWeights returns all persisted strategy weights.
func (s *SQLStore) LoadWeights() (map[string]float64, error) {
	rows, err := s.db.Query(`SELECT name, weight FROM strategy_weights`)
	if err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}
	defer rows.Close()

	weights := make(map[string]float64)
	for rows.Next() {
		var name string
		var w float64
		if err := rows.Scan(&name, &w); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		weights[name] = w
	}
	return weights, rows.Err()
}

// SaveWeight upserts the current weight for a strategy.
func (s *SQLStore) SaveWeight(name string, weight float64) error {
	_, err := s.db.Exec(
		`INSERT INTO strategy_weights (name, weight, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET weight = excluded.weight, updated_at = excluded.updated_at`,
		name, weight, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save weight %s: %w", name, err)
	}
	return nil
}
// #endregion weights

// #region scan
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (InterventionRecord, error) {
	var rec InterventionRecord
	var tsStr, ctxJSON string
	var outcomeJSON, amendsID sql.NullString

	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Strategy, &tsStr, &ctxJSON, &outcomeJSON, &amendsID); err != nil {
		return InterventionRecord{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return InterventionRecord{}, fmt.Errorf("parse ts: %w", err)
	}
	rec.Timestamp = ts

	var snap signals.UserContext
	if err := json.Unmarshal([]byte(ctxJSON), &snap); err != nil {
		return InterventionRecord{}, fmt.Errorf("unmarshal context: %w", err)
	}
	rec.Context = snap

	if outcomeJSON.Valid {
		var out Outcome
		if err := json.Unmarshal([]byte(outcomeJSON.String), &out); err != nil {
			return InterventionRecord{}, fmt.Errorf("unmarshal outcome: %w", err)
		}
		rec.Outcome = &out
	}
	if amendsID.Valid {
		rec.AmendsID = amendsID.String
	}
	return rec, nil
}
// #endregion scan
