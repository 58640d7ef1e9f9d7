package strategy

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// #region defaults

// Global defaults applied at registration when a strategy leaves the
// per-strategy knobs unset.
const (
	DefaultAlpha    = 0.3
	DefaultCooldown = 45 * time.Minute
)

// #endregion defaults

// #region catalog

// Catalog is the registry of candidate strategies. Registration happens
// once at startup; afterwards only weights change, serialized per
// strategy name so concurrent feedback on different strategies never
// blocks while updates to the same strategy never race.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu sync.Mutex // serializes weight mutation for this strategy
	s  Strategy
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]*entry)}
}

// NewBuiltinCatalog returns a catalog pre-loaded with the builtin set.
func NewBuiltinCatalog() *Catalog {
	c := NewCatalog()
	for _, s := range Builtins() {
		// Builtins are statically valid.
		if err := c.Register(s); err != nil {
			panic(err)
		}
	}
	return c
}

// #endregion catalog

// #region register

// Register adds a strategy to the catalog, applying global defaults for
// unset Alpha/Cooldown and seeding Weight from BaseEffectiveness when
// unset. Duplicate names are rejected.
func (c *Catalog) Register(s Strategy) error {
	if s.Name == "" {
		return fmt.Errorf("register strategy: empty name")
	}
	if s.Alpha <= 0 {
		s.Alpha = DefaultAlpha
	}
	if s.Cooldown <= 0 {
		s.Cooldown = DefaultCooldown
	}
	if s.Weight == 0 {
		s.Weight = s.BaseEffectiveness
	}
	s.Weight = clamp01(s.Weight)
	s.BaseEffectiveness = clamp01(s.BaseEffectiveness)
	s.CognitiveCost = clamp01(s.CognitiveCost)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[s.Name]; exists {
		return fmt.Errorf("register strategy: %q already registered", s.Name)
	}
	c.entries[s.Name] = &entry{s: s}
	return nil
}

// #endregion register

// #region lookup

// Get returns a snapshot of the named strategy.
func (c *Catalog) Get(name string) (Strategy, error) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return Strategy{}, &NotFoundError{Name: name}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s, nil
}

// All returns snapshots of every strategy, sorted by name for
// deterministic iteration.
func (c *Catalog) All() []Strategy {
	c.mu.RLock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)

	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		if s, err := c.Get(name); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// #endregion lookup

// #region weight-mutation

// UpdateWeight applies fn to the current weight of the named strategy
// under that strategy's lock and clamps the result to [0,1]. Returns the
// updated weight. Unknown names yield *NotFoundError.
func (c *Catalog) UpdateWeight(name string, fn func(old float64) float64) (float64, error) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return 0, &NotFoundError{Name: name}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Weight = clamp01(fn(e.s.Weight))
	return e.s.Weight, nil
}

// SetWeight overwrites the stored weight, clamped. Used when restoring
// persisted weights at startup.
func (c *Catalog) SetWeight(name string, w float64) error {
	_, err := c.UpdateWeight(name, func(float64) float64 { return w })
	return err
}

// AdjustCooldown applies fn to the strategy's cooldown under its lock.
// Used by outcome-driven backoff.
func (c *Catalog) AdjustCooldown(name string, fn func(old time.Duration) time.Duration) (time.Duration, error) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return 0, &NotFoundError{Name: name}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Cooldown = fn(e.s.Cooldown)
	return e.s.Cooldown, nil
}

// #endregion weight-mutation

// #region helpers

// clamp01 restricts v to [0,1].
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
