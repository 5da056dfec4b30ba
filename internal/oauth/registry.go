package oauth

import (
	"fmt"
	"sort"
)

// Registry maps provider ids to providers. Built once at startup and read-only
// afterwards, so it is shared across requests without locking.
type Registry struct {
	providers map[ProviderID]Provider
}

// NewRegistry indexes providers by ID. Duplicate ids are a configuration error.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[ProviderID]Provider, len(providers))}
	for _, p := range providers {
		if _, dup := r.providers[p.ID()]; dup {
			return nil, fmt.Errorf("duplicate provider %q", p.ID())
		}
		r.providers[p.ID()] = p
	}
	return r, nil
}

// Get returns the provider registered under id, or ErrProviderNotConfigured.
// There is no default provider: an unknown id is a gateway misconfiguration.
func (r *Registry) Get(id ProviderID) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotConfigured, id)
	}
	return p, nil
}

// IDs returns the configured provider ids in sorted order.
func (r *Registry) IDs() []ProviderID {
	ids := make([]ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len reports how many providers are configured.
func (r *Registry) Len() int { return len(r.providers) }
