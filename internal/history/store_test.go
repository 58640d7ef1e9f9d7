package history

import (
	"errors"
	"testing"
	"time"

	"github.com/danielpatrickdp/intervene/internal/signals"
)

func newTestStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlStore, err := NewSQLStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlStore.Close() })
	return map[string]Store{
		"sqlite": sqlStore,
		"memory": NewMemStore(),
	}
}

func makeRecord(id, userID, strat string, ts time.Time) InterventionRecord {
	return InterventionRecord{
		ID:        id,
		UserID:    userID,
		Strategy:  strat,
		Timestamp: ts,
		Context: signals.UserContext{
			UserID:        userID,
			CognitiveLoad: 0.4,
			FocusState:    signals.FocusShallow,
			Personality:   signals.PersonaDeveloper,
			Timestamp:     ts,
		},
	}
}

func TestRecordAndGetRoundTrip(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			rec := makeRecord("r1", "u1", "micro_break", base)
			if err := store.Record(rec); err != nil {
				t.Fatal(err)
			}

			got, err := store.Get("r1")
			if err != nil {
				t.Fatal(err)
			}
			if got.UserID != "u1" || got.Strategy != "micro_break" {
				t.Errorf("round trip mismatch: %+v", got)
			}
			if !got.Timestamp.Equal(base) {
				t.Errorf("timestamp: got %v, want %v", got.Timestamp, base)
			}
			if got.Context.Personality != signals.PersonaDeveloper {
				t.Errorf("context snapshot lost: %+v", got.Context)
			}
			if got.Outcome != nil {
				t.Error("fresh record should have no outcome")
			}
		})
	}
}

func TestOutcomeAccepted(t *testing.T) {
	tests := []struct {
		name string
		out  Outcome
		want bool
	}{
		{"completed", Outcome{Effectiveness: 0.8, Completed: true}, true},
		{"no dismissal", Outcome{Effectiveness: 0.5}, true},
		{"dismissed", Outcome{Effectiveness: 0.1, DismissalReason: "too_frequent"}, false},
		{"completed despite dismissal note", Outcome{Completed: true, DismissalReason: "not_relevant"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.out.Accepted(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetUnknownIDIsErrNotFound(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get("ghost")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestLastForPerStrategy(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			last, err := store.LastFor("u1", "micro_break")
			if err != nil {
				t.Fatal(err)
			}
			if last != nil {
				t.Fatal("expected nil for empty store")
			}

			for i, rec := range []InterventionRecord{
				makeRecord("r1", "u1", "micro_break", base),
				makeRecord("r2", "u1", "micro_break", base.Add(time.Hour)),
				makeRecord("r3", "u1", "tab_triage", base.Add(2*time.Hour)),
				makeRecord("r4", "u2", "micro_break", base.Add(3*time.Hour)),
			} {
				if err := store.Record(rec); err != nil {
					t.Fatalf("record %d: %v", i, err)
				}
			}

			last, err = store.LastFor("u1", "micro_break")
			if err != nil {
				t.Fatal(err)
			}
			if last == nil || last.ID != "r2" {
				t.Errorf("LastFor: got %+v, want r2", last)
			}

			lastAny, err := store.LastForUser("u1")
			if err != nil {
				t.Fatal(err)
			}
			if lastAny == nil || lastAny.ID != "r3" {
				t.Errorf("LastForUser: got %+v, want r3", lastAny)
			}
		})
	}
}

func TestCountSinceDailyCap(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			for i, ts := range []time.Time{
				base.Add(-30 * time.Hour), // outside window
				base.Add(-20 * time.Hour),
				base.Add(-2 * time.Hour),
				base.Add(-time.Minute),
			} {
				rec := makeRecord(time.Duration(i).String()+"-id", "u1", "micro_break", ts)
				if err := store.Record(rec); err != nil {
					t.Fatal(err)
				}
			}

			n, err := store.CountSince("u1", base.Add(-24*time.Hour))
			if err != nil {
				t.Fatal(err)
			}
			if n != 3 {
				t.Errorf("count: got %d, want 3", n)
			}
		})
	}
}

func TestAttachOutcomeAppendsAmendedCopy(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			rec := makeRecord("r1", "u1", "micro_break", base)
			if err := store.Record(rec); err != nil {
				t.Fatal(err)
			}

			out := Outcome{Effectiveness: 0.8, Satisfaction: 0.9, Completed: true}
			amended, err := store.AttachOutcome("r1", out)
			if err != nil {
				t.Fatal(err)
			}
			if amended.AmendsID != "r1" {
				t.Errorf("amends id: got %q", amended.AmendsID)
			}
			if amended.Outcome == nil || amended.Outcome.Effectiveness != 0.8 {
				t.Errorf("outcome not attached: %+v", amended.Outcome)
			}

			// Original row never mutated.
			orig, err := store.Get("r1")
			if err != nil {
				t.Fatal(err)
			}
			if orig.Outcome != nil {
				t.Error("original record mutated")
			}

			// Amendments do not count as fresh deliveries.
			n, err := store.CountSince("u1", base.Add(-time.Hour))
			if err != nil {
				t.Fatal(err)
			}
			if n != 1 {
				t.Errorf("amendment counted as delivery: count=%d", n)
			}

			// Recent view shows the amended copy.
			recent, err := store.Recent("u1", 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(recent) != 1 {
				t.Fatalf("recent: got %d records", len(recent))
			}
			if recent[0].Outcome == nil {
				t.Error("recent view missing attached outcome")
			}

			// Amending an amendment is rejected.
			if _, err := store.AttachOutcome(amended.ID, out); err == nil {
				t.Error("expected error attaching to an amendment")
			}
		})
	}
}

func TestRecentNewestFirstBounded(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				rec := makeRecord(
					time.Duration(i).String()+"-r", "u1", "micro_break",
					base.Add(time.Duration(i)*time.Hour),
				)
				if err := store.Record(rec); err != nil {
					t.Fatal(err)
				}
			}

			recent, err := store.Recent("u1", 3)
			if err != nil {
				t.Fatal(err)
			}
			if len(recent) != 3 {
				t.Fatalf("got %d records, want 3", len(recent))
			}
			for i := 1; i < len(recent); i++ {
				if recent[i-1].Timestamp.Before(recent[i].Timestamp) {
					t.Error("not newest first")
				}
			}
		})
	}
}

func TestWeightPersistence(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.SaveWeight("micro_break", 0.62); err != nil {
				t.Fatal(err)
			}
			if err := store.SaveWeight("micro_break", 0.71); err != nil {
				t.Fatal(err)
			}
			if err := store.SaveWeight("tab_triage", 0.4); err != nil {
				t.Fatal(err)
			}

			weights, err := store.LoadWeights()
			if err != nil {
				t.Fatal(err)
			}
			if weights["micro_break"] != 0.71 {
				t.Errorf("upsert: got %v", weights["micro_break"])
			}
			if weights["tab_triage"] != 0.4 {
				t.Errorf("got %v", weights["tab_triage"])
			}
		})
	}
}
