package purchasable

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Resolver loads a live entity by id. It returns ErrNotFound for missing rows.
type Resolver func(ctx context.Context, id uuid.UUID) (Purchasable, error)

// Registry maps kind tags to resolvers. It is filled at start-up and read concurrently.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[Kind]Resolver
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[Kind]Resolver)}
}

// Register binds a resolver to a kind, replacing any previous binding
func (r *Registry) Register(kind Kind, resolver Resolver) {
	if resolver == nil {
		panic(fmt.Sprintf("purchasable: nil resolver for kind %q", kind))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[kind] = resolver
}

// Known reports whether kind has a resolver
func (r *Registry) Known(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resolvers[kind]
	return ok
}

// Kinds returns the registered kinds in sorted order
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.resolvers))
	for k := range r.resolvers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Resolve turns a reference into a live Purchasable
func (r *Registry) Resolve(ctx context.Context, ref Ref) (Purchasable, error) {
	r.mu.RLock()
	resolver, ok := r.resolvers[ref.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, ref.Kind)
	}

	item, err := resolver(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	if item == nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, ErrNotFound)
	}
	return item, nil
}
