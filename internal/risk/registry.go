package risk

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Registry owns one Manager per user, lazily constructed on first access.
// Grounded on the provider-registry pattern of keeping a single instance per
// key behind a shared lock, generalized here from "one provider" to "one
// user".
type Registry struct {
	mu       sync.RWMutex
	managers map[string]*Manager
	defaults Limits
}

// NewRegistry constructs a registry applying defaults to any user without an
// explicit limit override.
func NewRegistry(defaults Limits) *Registry {
	return &Registry{
		managers: make(map[string]*Manager),
		defaults: defaults,
	}
}

// ManagerFor returns the Manager for userID, creating one with the registry
// defaults and the supplied starting equity if it does not yet exist.
func (r *Registry) ManagerFor(userID string, startEquity decimal.Decimal, confirmationCode string) *Manager {
	r.mu.RLock()
	m, ok := r.managers[userID]
	r.mu.RUnlock()
	if ok {
		return m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok = r.managers[userID]; ok {
		return m
	}
	m = NewManager(userID, r.defaults, startEquity, confirmationCode)
	r.managers[userID] = m
	return m
}

// SetLimits overrides the limits for a specific user's manager, creating it
// if necessary.
func (r *Registry) SetLimits(userID string, limits Limits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers[userID]; ok {
		m.mu.Lock()
		m.limits = limits
		m.mu.Unlock()
		return
	}
	m := NewManager(userID, limits, decimal.Zero, "")
	r.managers[userID] = m
}

// ResetAllDaily rolls every registered manager's daily tracking forward.
// No scheduler in the module calls it.
func (r *Registry) ResetAllDaily() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.managers {
		m.ResetDailyTracking()
	}
}
