package detect

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// entry is the registry's bookkeeping record for one component. The registry
// exclusively owns the component it holds; callers interact only through
// registry operations.
type entry[C Component] struct {
	name      string
	version   string
	weight    float64
	enabled   bool
	component C
}

// Registered is a read-only snapshot of one registry entry.
type Registered struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Weight  float64 `json:"weight"`
	Enabled bool    `json:"enabled"`
}

// Registry holds detectors or checkers by name. Reads (RunAll, List) take a
// snapshot under the read lock and never block on a concurrent mutation;
// mutations are serialized by the write lock.
type Registry[C Component] struct {
	mu      sync.RWMutex
	entries map[string]*entry[C]
	order   []string
	logger  *zap.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	logger *zap.Logger
}

// WithLogger sets the registry's logger.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(c *registryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewRegistry builds an empty registry.
func NewRegistry[C Component](opts ...RegistryOption) *Registry[C] {
	cfg := registryConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry[C]{
		entries: make(map[string]*entry[C]),
		logger:  cfg.logger,
	}
}

// Register adds a component under its own name. A negative weight or an
// empty name is a configuration error. Registering an existing name
// replaces the entry in place, keeping its execution order; a name removed
// by Unregister re-enters at the tail.
func (r *Registry[C]) Register(c C, weight float64, enabled bool) error {
	name := c.Name()
	if name == "" {
		return fmt.Errorf("detect: component has no name")
	}
	if weight < 0 {
		return fmt.Errorf("detect: component %q: negative weight %v", name, weight)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e := &entry[C]{
		name:      name,
		version:   c.Version(),
		weight:    weight,
		enabled:   enabled,
		component: c,
	}
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = e
	r.logger.Debug("component registered",
		zap.String("name", name),
		zap.Float64("weight", weight),
		zap.Bool("enabled", enabled))
	return nil
}

// Unregister removes a component. Returns false when the name is absent.
func (r *Registry[C]) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Replace swaps the underlying component while keeping the entry's weight
// and enabled state when preserveConfig is true, so a detector can be
// hot-upgraded without disturbing fusion weights tuned around it. With
// preserveConfig false the entry resets to weight 1 and enabled.
func (r *Registry[C]) Replace(name string, c C, preserveConfig bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.component = c
	e.version = c.Version()
	if !preserveConfig {
		e.weight = 1.0
		e.enabled = true
	}
	return true
}

// Enable marks a component enabled. Returns false when absent.
func (r *Registry[C]) Enable(name string) bool { return r.setEnabled(name, true) }

// Disable marks a component disabled. Returns false when absent.
func (r *Registry[C]) Disable(name string) bool { return r.setEnabled(name, false) }

func (r *Registry[C]) setEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.enabled = enabled
	return true
}

// SetWeight updates a component's fusion weight. Returns false when the
// name is absent or the weight is negative.
func (r *Registry[C]) SetWeight(name string, weight float64) bool {
	if weight < 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.weight = weight
	return true
}

// Get returns the component registered under name.
func (r *Registry[C]) Get(name string) (C, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		var zero C
		return zero, false
	}
	return e.component, true
}

// GetWeight returns the fusion weight for name.
func (r *Registry[C]) GetWeight(name string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return 0, false
	}
	return e.weight, true
}

// IsEnabled reports whether name exists and is enabled.
func (r *Registry[C]) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return ok && e.enabled
}

// List returns snapshots of all entries in registration order.
func (r *Registry[C]) List() []Registered {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registered, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		out = append(out, Registered{Name: e.name, Version: e.version, Weight: e.weight, Enabled: e.enabled})
	}
	return out
}

// EnabledNames returns the names of enabled components in registration order.
func (r *Registry[C]) EnabledNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, name := range r.order {
		if r.entries[name].enabled {
			out = append(out, name)
		}
	}
	return out
}

// Len returns the number of registered components.
func (r *Registry[C]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// runSnapshot is one enabled entry captured for a RunAll batch.
type runSnapshot[C Component] struct {
	name      string
	version   string
	weight    float64
	component C
}

// indexedResult carries a result back to its registration-order slot.
type indexedResult struct {
	index  int
	result DetectionResult
}

// RunAll evaluates every enabled component concurrently and returns one
// result per component in registration order. A component that returns an
// error or panics is isolated: its slot holds a synthetic result with
// Detected=false and Category "error", and the rest of the batch proceeds.
func (r *Registry[C]) RunAll(ctx context.Context, text string, meta Context) []DetectionResult {
	r.mu.RLock()
	snap := make([]runSnapshot[C], 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		if e.enabled {
			snap = append(snap, runSnapshot[C]{name: e.name, version: e.version, weight: e.weight, component: e.component})
		}
	}
	r.mu.RUnlock()

	if len(snap) == 0 {
		return nil
	}

	ch := make(chan indexedResult, len(snap))
	for i, s := range snap {
		go func(i int, s runSnapshot[C]) {
			ch <- indexedResult{index: i, result: r.runOne(ctx, s, text, meta)}
		}(i, s)
	}

	results := make([]DetectionResult, len(snap))
	for range snap {
		out := <-ch
		results[out.index] = out.result
	}
	return results
}

// runOne executes a single component with panic isolation.
func (r *Registry[C]) runOne(ctx context.Context, s runSnapshot[C], text string, meta Context) (result DetectionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("component panic",
				zap.String("name", s.name),
				zap.Any("panic", rec))
			result = r.errorResult(s, fmt.Sprintf("component panic: %v", rec))
		}
	}()

	res, err := s.component.Evaluate(ctx, text, meta)
	if err != nil {
		r.logger.Warn("component error",
			zap.String("name", s.name),
			zap.Error(err))
		return r.errorResult(s, "component error: "+err.Error())
	}

	if res.DetectorName == "" {
		res.DetectorName = s.name
	}
	if res.DetectorVersion == "" {
		res.DetectorVersion = s.version
	}
	res.Confidence = Clamp01(res.Confidence)
	return res
}

func (r *Registry[C]) errorResult(s runSnapshot[C], description string) DetectionResult {
	return DetectionResult{
		Detected:        false,
		DetectorName:    s.name,
		DetectorVersion: s.version,
		Confidence:      0,
		Category:        CategoryError,
		Description:     description,
	}
}
