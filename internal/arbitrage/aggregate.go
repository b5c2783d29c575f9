package arbitrage

import (
	"sync"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Provider exposes the last-detected opportunities of one comparator.
type Provider interface {
	Name() string
	LastDetected() []domain.Opportunity
}

// Aggregate is the combined view over every registered comparator. It
// concatenates their results without deduplication.
type Aggregate struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewAggregate returns a view over providers.
func NewAggregate(providers ...Provider) *Aggregate {
	return &Aggregate{providers: providers}
}

// Register adds a provider.
func (a *Aggregate) Register(p Provider) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.providers = append(a.providers, p)
}

// Names lists the registered providers in registration order.
func (a *Aggregate) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name()
	}
	return names
}

// Opportunities returns the concatenated last-detected opportunities.
func (a *Aggregate) Opportunities() []domain.Opportunity {
	a.mu.RLock()
	providers := append([]Provider(nil), a.providers...)
	a.mu.RUnlock()

	var out []domain.Opportunity
	for _, p := range providers {
		out = append(out, p.LastDetected()...)
	}
	return out
}
