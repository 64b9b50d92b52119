// Package collector defines the store collector abstraction and the
// registry that dispatches collection requests to store implementations.
package collector

import (
	"context"
	"net/url"
	"strings"
	"sync"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// Collector gathers listing prices for one marketplace.
type Collector interface {
	// StoreType identifies the marketplace this collector serves.
	StoreType() domain.StoreType

	// SupportedDomains lists the registrable domains whose URLs this
	// collector can parse.
	SupportedDomains() []string

	// ParseURL extracts a store identifier from a product URL. Malformed
	// input yields a failed result, never an error.
	ParseURL(url string) domain.URLParseResult

	// CollectPrice retrieves the current price for an item. Failures are
	// reported on the result; the method itself never returns an error.
	CollectPrice(ctx context.Context, id domain.StoreIdentifier, useFallback bool) domain.CollectionResult

	// ValidateItemExists reports whether the item is currently retrievable.
	ValidateItemExists(ctx context.Context, id domain.StoreIdentifier) (bool, error)
}

// Registry maps store types to their collectors. Safe for concurrent use;
// registration normally happens once at startup.
type Registry struct {
	mu         sync.RWMutex
	collectors map[domain.StoreType]Collector
}

// NewRegistry creates an empty collector registry.
func NewRegistry() *Registry {
	return &Registry{collectors: make(map[domain.StoreType]Collector)}
}

// Register adds a collector, replacing any previous one for the store.
func (r *Registry) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[c.StoreType()] = c
}

// Get returns the collector for a store type.
func (r *Registry) Get(store domain.StoreType) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[store]
	return c, ok
}

// GetForURL returns the collector whose supported domains match the URL's
// host. Only the host is matched, so a supported domain appearing in the
// path or query of an unrelated URL does not dispatch.
func (r *Registry) GetForURL(rawURL string) (Collector, bool) {
	parsed, err := url.Parse(strings.ToLower(rawURL))
	if err != nil || parsed.Host == "" {
		return nil, false
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.collectors {
		for _, d := range c.SupportedDomains() {
			if host == d || strings.HasSuffix(host, "."+d) {
				return c, true
			}
		}
	}
	return nil, false
}

// All returns every registered collector.
func (r *Registry) All() []Collector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Collector, 0, len(r.collectors))
	for _, c := range r.collectors {
		out = append(out, c)
	}
	return out
}

// SupportedStores returns the store types with a registered collector.
func (r *Registry) SupportedStores() []domain.StoreType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.StoreType, 0, len(r.collectors))
	for store := range r.collectors {
		out = append(out, store)
	}
	return out
}
