// Package store defines the persistence layer interface for the agent
// registry.
//
// The Store interface abstracts agent descriptor storage, allowing
// different backends. The only implementation shipped here is memory: spec
// §6 requires no persistence — "the core REQUIRES no persistence; all
// state... is in-process" — so a durable backend is an implementer's
// choice, not a core concern.
//
// To add a new implementation, create a subpackage that implements the
// Store interface and returns store.ErrNotFound for missing descriptors.
package store

import (
	"context"
	"errors"

	"github.com/goflow/orchestrator/registry/model"
)

// ErrNotFound is returned when an agent descriptor is not found in the store.
var ErrNotFound = errors.New("agent descriptor not found")

// ErrExists is returned by Create when a descriptor with the same reference
// already exists.
var ErrExists = errors.New("agent descriptor already exists")

// Store defines the persistence layer for agent descriptors.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a new descriptor. Returns ErrExists if the reference
	// is already present.
	Create(ctx context.Context, d *model.Descriptor) error

	// Get retrieves a descriptor by reference. Returns ErrNotFound if it
	// does not exist.
	Get(ctx context.Context, ref string) (*model.Descriptor, error)

	// Update replaces the stored descriptor for d.Reference. Returns
	// ErrNotFound if it does not exist.
	Update(ctx context.Context, d *model.Descriptor) error

	// Delete removes a descriptor by reference. Returns ErrNotFound if it
	// does not exist.
	Delete(ctx context.Context, ref string) error

	// List returns all descriptors matching filter.
	List(ctx context.Context, filter model.Filter) ([]*model.Descriptor, error)
}
