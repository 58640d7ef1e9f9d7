package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// #region mem-store

// MemStore is an in-memory Store used by tests and the replay harness.
type MemStore struct {
	mu      sync.RWMutex
	records []InterventionRecord
	byID    map[string]int
	weights map[string]float64
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:    make(map[string]int),
		weights: make(map[string]float64),
	}
}

// #endregion mem-store

// #region record

// Record appends a new record.
func (m *MemStore) Record(rec InterventionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[rec.ID]; exists {
		return fmt.Errorf("duplicate record id %s", rec.ID)
	}
	m.byID[rec.ID] = len(m.records)
	m.records = append(m.records, rec)
	return nil
}

// Get returns a record by id.
func (m *MemStore) Get(id string) (InterventionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.byID[id]
	if !ok {
		return InterventionRecord{}, fmt.Errorf("get record %s: %w", id, ErrNotFound)
	}
	return m.records[idx], nil
}

// #endregion record

// #region queries

// LastFor returns the most recent delivery of the named strategy for the user.
func (m *MemStore) LastFor(userID, strategyName string) (*InterventionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *InterventionRecord
	for i := range m.records {
		rec := m.records[i]
		if rec.UserID != userID || rec.Strategy != strategyName || rec.AmendsID != "" {
			continue
		}
		if best == nil || rec.Timestamp.After(best.Timestamp) {
			cp := rec
			best = &cp
		}
	}
	return best, nil
}

// LastForUser returns the most recent delivery of any strategy for the user.
func (m *MemStore) LastForUser(userID string) (*InterventionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *InterventionRecord
	for i := range m.records {
		rec := m.records[i]
		if rec.UserID != userID || rec.AmendsID != "" {
			continue
		}
		if best == nil || rec.Timestamp.After(best.Timestamp) {
			cp := rec
			best = &cp
		}
	}
	return best, nil
}

// CountSince counts deliveries for the user at or after since.
func (m *MemStore) CountSince(userID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.records {
		if rec.UserID == userID && rec.AmendsID == "" && !rec.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

// Recent returns up to limit most recent deliveries, newest first, with
// amended copies replacing their originals.
func (m *MemStore) Recent(userID string, limit int) ([]InterventionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	amendments := make(map[string]InterventionRecord)
	var deliveries []InterventionRecord
	for _, rec := range m.records {
		if rec.UserID != userID {
			continue
		}
		if rec.AmendsID != "" {
			amendments[rec.AmendsID] = rec
			continue
		}
		deliveries = append(deliveries, rec)
	}

	// Insertion order is chronological; walk backwards for newest first.
	var out []InterventionRecord
	for i := len(deliveries) - 1; i >= 0 && len(out) < limit; i-- {
		rec := deliveries[i]
		if amended, ok := amendments[rec.ID]; ok {
			rec = amended
		}
		out = append(out, rec)
	}
	return out, nil
}

// #endregion queries

// #region attach-outcome

// AttachOutcome appends an amended copy carrying the outcome.
func (m *MemStore) AttachOutcome(recordID string, out Outcome) (InterventionRecord, error) {
	orig, err := m.Get(recordID)
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

	if err := m.Record(amended); err != nil {
		return InterventionRecord{}, err
	}
	return amended, nil
}

// #endregion attach-outcome

// #region weights

// LoadWeights returns all stored strategy weights.
func (m *MemStore) LoadWeights() (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.weights))
	for k, v := range m.weights {
		out[k] = v
	}
	return out, nil
}

// SaveWeight records the current weight for a strategy.
func (m *MemStore) SaveWeight(name string, weight float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weights[name] = weight
	return nil
}

// #endregion weights
