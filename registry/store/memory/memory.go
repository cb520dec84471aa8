// Package memory provides an in-memory implementation of the registry
// store. It is the only store this core ships, since persistence is
// explicitly optional (spec §6).
package memory

import (
	"context"
	"sync"

	"github.com/goflow/orchestrator/registry/model"
	"github.com/goflow/orchestrator/registry/store"
)

// Store is an in-memory implementation of the store.Store interface.
// It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	descriptors map[string]*model.Descriptor
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		descriptors: make(map[string]*model.Descriptor),
	}
}

// Create inserts a new descriptor, rejecting duplicate references.
func (s *Store) Create(ctx context.Context, d *model.Descriptor) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.descriptors[d.Reference]; exists {
		return store.ErrExists
	}
	cp := *d
	s.descriptors[d.Reference] = &cp
	return nil
}

// Get retrieves a descriptor by reference.
func (s *Store) Get(ctx context.Context, ref string) (*model.Descriptor, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.descriptors[ref]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// Update replaces the stored descriptor for d.Reference.
func (s *Store) Update(ctx context.Context, d *model.Descriptor) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.descriptors[d.Reference]; !ok {
		return store.ErrNotFound
	}
	cp := *d
	s.descriptors[d.Reference] = &cp
	return nil
}

// Delete removes a descriptor by reference.
func (s *Store) Delete(ctx context.Context, ref string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.descriptors[ref]; !ok {
		return store.ErrNotFound
	}
	delete(s.descriptors, ref)
	return nil
}

// List returns all descriptors matching filter.
func (s *Store) List(ctx context.Context, filter model.Filter) ([]*model.Descriptor, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Descriptor, 0, len(s.descriptors))
	for _, d := range s.descriptors {
		if matches(d, filter) {
			cp := *d
			result = append(result, &cp)
		}
	}
	return result, nil
}

func matches(d *model.Descriptor, f model.Filter) bool {
	if f.Category != nil && d.Category != *f.Category {
		return false
	}
	if f.Status != nil && d.Status != *f.Status {
		return false
	}
	if f.Chain != nil && !containsString(d.SupportedChains, *f.Chain) {
		return false
	}
	if f.Token != nil && !containsString(d.SupportedTokens, *f.Token) {
		return false
	}
	if f.OwnerID != nil && d.OwnerUserID != *f.OwnerID {
		return false
	}
	if len(f.Tags) > 0 && !anyOf(d.Tags, f.Tags) {
		return false
	}
	return true
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// anyOf reports whether d's tags contain at least one of the requested tags.
func anyOf(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}
