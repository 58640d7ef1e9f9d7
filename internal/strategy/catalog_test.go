package strategy

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/intervene/internal/signals"
)

func TestRegisterAppliesDefaults(t *testing.T) {
	c := NewCatalog()
	err := c.Register(Strategy{
		Name:              "s1",
		Category:          CategoryFocus,
		BaseEffectiveness: 0.6,
		CognitiveCost:     0.3,
	})
	if err != nil {
		t.Fatal(err)
	}

	s, err := c.Get("s1")
	if err != nil {
		t.Fatal(err)
	}
	if s.Alpha != DefaultAlpha {
		t.Errorf("alpha: got %v, want %v", s.Alpha, DefaultAlpha)
	}
	if s.Cooldown != DefaultCooldown {
		t.Errorf("cooldown: got %v, want %v", s.Cooldown, DefaultCooldown)
	}
	if s.Weight != 0.6 {
		t.Errorf("weight seeded from base effectiveness: got %v", s.Weight)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	c := NewCatalog()
	if err := c.Register(Strategy{Name: "dup"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Register(Strategy{Name: "dup"}); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestGetUnknownReturnsNotFound(t *testing.T) {
	c := NewCatalog()
	_, err := c.Get("ghost")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Name != "ghost" {
		t.Errorf("error name: got %q", nf.Name)
	}
}

func TestUpdateWeightClamps(t *testing.T) {
	c := NewCatalog()
	if err := c.Register(Strategy{Name: "s1", BaseEffectiveness: 0.5}); err != nil {
		t.Fatal(err)
	}

	w, err := c.UpdateWeight("s1", func(float64) float64 { return 1.8 })
	if err != nil {
		t.Fatal(err)
	}
	if w != 1.0 {
		t.Errorf("upper clamp: got %v", w)
	}

	w, err = c.UpdateWeight("s1", func(float64) float64 { return -0.2 })
	if err != nil {
		t.Fatal(err)
	}
	if w != 0.0 {
		t.Errorf("lower clamp: got %v", w)
	}
}

func TestUpdateWeightSerializesPerStrategy(t *testing.T) {
	c := NewCatalog()
	if err := c.Register(Strategy{Name: "s1", BaseEffectiveness: 0.0}); err != nil {
		t.Fatal(err)
	}

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.UpdateWeight("s1", func(old float64) float64 { return old + 0.001 })
		}()
	}
	wg.Wait()

	s, err := c.Get("s1")
	if err != nil {
		t.Fatal(err)
	}
	// Each increment observed the previous one: no lost updates.
	want := float64(n) * 0.001
	if s.Weight < want-1e-9 || s.Weight > want+1e-9 {
		t.Errorf("weight after %d serialized updates: got %v, want %v", n, s.Weight, want)
	}
}

func TestAllSortedByName(t *testing.T) {
	c := NewBuiltinCatalog()
	all := c.All()
	if len(all) == 0 {
		t.Fatal("no builtins")
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Name >= all[i].Name {
			t.Errorf("not sorted at %d: %q >= %q", i, all[i-1].Name, all[i].Name)
		}
	}
}

func TestApplicabilityMatches(t *testing.T) {
	ctx := signals.UserContext{
		CognitiveLoad: 0.3,
		EnergyLevel:   0.7,
		StressLevel:   0.8,
		FocusState:    signals.FocusShallow,
		Flags:         []string{signals.FlagNoBreaks},
	}

	tests := []struct {
		name string
		app  Applicability
		want bool
	}{
		{"unconstrained", Applicability{}, true},
		{"max-load-pass", Applicability{MaxCognitiveLoad: 0.5}, true},
		{"max-load-fail", Applicability{MaxCognitiveLoad: 0.2}, false},
		{"min-stress-pass", Applicability{MinStress: 0.6}, true},
		{"focus-mismatch", Applicability{FocusIn: []signals.FocusState{signals.FocusDeep}}, false},
		{"flag-pass", Applicability{AnyFlag: []string{signals.FlagNoBreaks}}, true},
		{"flag-fail", Applicability{AnyFlag: []string{signals.FlagHighTabCount}}, false},
		{
			"custom-veto",
			Applicability{Custom: func(signals.UserContext) bool { return false }},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.app.Matches(ctx); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdjustCooldownCaps(t *testing.T) {
	c := NewBuiltinCatalog()
	before, err := c.Get("micro_break")
	if err != nil {
		t.Fatal(err)
	}
	after, err := c.AdjustCooldown("micro_break", func(old time.Duration) time.Duration {
		return old + 15*time.Minute
	})
	if err != nil {
		t.Fatal(err)
	}
	if after != before.Cooldown+15*time.Minute {
		t.Errorf("cooldown: got %v", after)
	}
}
