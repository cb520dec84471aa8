package registry

import (
	"context"
	"time"

	"github.com/goflow/orchestrator/registry/store"
	"github.com/goflow/orchestrator/workflow"
	"github.com/goflow/orchestrator/xerrors"
)

// Registry is the AgentRegistry of spec §4.3: it holds agent descriptors
// keyed by stable reference and enforces lifecycle and publish-time
// invariants on every persistence operation. It delegates storage to a
// store.Store so the in-memory default can be swapped for a durable
// implementation without the registry's invariants changing.
type Registry struct {
	store store.Store
}

// New constructs a Registry backed by s.
func New(s store.Store) *Registry {
	return &Registry{store: s}
}

// Create inserts a descriptor in status draft, rejecting duplicate
// references and stamping createdAt/updatedAt.
func (r *Registry) Create(ctx context.Context, d Descriptor) (*Descriptor, error) {
	if d.Reference == "" {
		return nil, xerrors.Validation("agent reference must not be empty")
	}
	if err := ValidateSchema(d.InputSchema); err != nil {
		return nil, xerrors.Wrap(xerrors.KindValidation, "invalid input schema", err)
	}
	if err := ValidateSchema(d.OutputSchema); err != nil {
		return nil, xerrors.Wrap(xerrors.KindValidation, "invalid output schema", err)
	}

	now := time.Now()
	d.Status = StatusDraft
	d.CreatedAt = now
	d.UpdatedAt = now

	if err := r.store.Create(ctx, &d); err != nil {
		if err == store.ErrExists {
			return nil, xerrors.Validation("agent reference %q already exists", d.Reference)
		}
		return nil, xerrors.Wrap(xerrors.KindExecution, "storing descriptor", err)
	}
	return &d, nil
}

// Get returns the descriptor for ref or AgentNotFound.
func (r *Registry) Get(ctx context.Context, ref string) (*Descriptor, error) {
	d, err := r.store.Get(ctx, ref)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, xerrors.AgentNotFound(ref)
		}
		return nil, xerrors.Wrap(xerrors.KindExecution, "loading descriptor", err)
	}
	return d, nil
}

// List returns descriptors matching filter.
func (r *Registry) List(ctx context.Context, filter Filter) ([]*Descriptor, error) {
	ds, err := r.store.List(ctx, filter)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindExecution, "listing descriptors", err)
	}
	return ds, nil
}

// Patch carries the subset of descriptor fields Update may change. The
// reference is immutable (spec §3) and is never part of a patch.
type Patch struct {
	Name            *string
	Version         *string
	Description     *string
	Category        *Category
	EndpointURL     *string
	OwnerWallet     *string
	InputSchema     *Schema
	OutputSchema    *Schema
	SupportedChains []string
	SupportedTokens []string
	Pricing         *Pricing
	Capabilities    map[string]any
	Tags            []string
}

// Update merges non-reference fields from patch into the stored
// descriptor. If the merge would leave status published, publish-time
// invariants are re-checked.
func (r *Registry) Update(ctx context.Context, ref string, patch Patch) (*Descriptor, error) {
	d, err := r.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	applyPatch(d, patch)
	d.UpdatedAt = time.Now()

	if d.Status == StatusPublished {
		if err := checkPublishInvariants(d); err != nil {
			return nil, err
		}
	}

	if err := r.store.Update(ctx, d); err != nil {
		if err == store.ErrNotFound {
			return nil, xerrors.AgentNotFound(ref)
		}
		return nil, xerrors.Wrap(xerrors.KindExecution, "updating descriptor", err)
	}
	return d, nil
}

func applyPatch(d *Descriptor, p Patch) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Version != nil {
		d.Version = *p.Version
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.EndpointURL != nil {
		d.EndpointURL = *p.EndpointURL
	}
	if p.OwnerWallet != nil {
		d.OwnerWallet = *p.OwnerWallet
	}
	if p.InputSchema != nil {
		d.InputSchema = *p.InputSchema
	}
	if p.OutputSchema != nil {
		d.OutputSchema = *p.OutputSchema
	}
	if p.SupportedChains != nil {
		d.SupportedChains = p.SupportedChains
	}
	if p.SupportedTokens != nil {
		d.SupportedTokens = p.SupportedTokens
	}
	if p.Pricing != nil {
		d.Pricing = *p.Pricing
	}
	if p.Capabilities != nil {
		d.Capabilities = p.Capabilities
	}
	if p.Tags != nil {
		d.Tags = p.Tags
	}
}

// checkPublishInvariants enforces spec §4.3's publish-time invariants:
// endpoint URL mandatory, supported chains and tokens non-empty.
func checkPublishInvariants(d *Descriptor) error {
	if d.EndpointURL == "" {
		return xerrors.Validation("agent %q cannot be published without an endpoint URL", d.Reference)
	}
	if len(d.SupportedChains) == 0 {
		return xerrors.Validation("agent %q cannot be published without supported chains", d.Reference)
	}
	if len(d.SupportedTokens) == 0 {
		return xerrors.Validation("agent %q cannot be published without supported tokens", d.Reference)
	}
	return nil
}

// Publish transitions a draft or deprecated descriptor to published,
// enforcing the publish-time invariants.
func (r *Registry) Publish(ctx context.Context, ref string) (*Descriptor, error) {
	d, err := r.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusDraft && d.Status != StatusDeprecated {
		return nil, xerrors.State("agent %q cannot be published from status %q", ref, d.Status)
	}
	if err := checkPublishInvariants(d); err != nil {
		return nil, err
	}
	d.Status = StatusPublished
	d.UpdatedAt = time.Now()
	if err := r.store.Update(ctx, d); err != nil {
		return nil, xerrors.Wrap(xerrors.KindExecution, "publishing descriptor", err)
	}
	return d, nil
}

// Deprecate transitions a published descriptor to deprecated.
func (r *Registry) Deprecate(ctx context.Context, ref string) (*Descriptor, error) {
	d, err := r.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusPublished {
		return nil, xerrors.State("agent %q cannot be deprecated from status %q", ref, d.Status)
	}
	d.Status = StatusDeprecated
	d.UpdatedAt = time.Now()
	if err := r.store.Update(ctx, d); err != nil {
		return nil, xerrors.Wrap(xerrors.KindExecution, "deprecating descriptor", err)
	}
	return d, nil
}

// Suspend transitions any descriptor to suspended.
func (r *Registry) Suspend(ctx context.Context, ref string) (*Descriptor, error) {
	d, err := r.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	d.Status = StatusSuspended
	d.UpdatedAt = time.Now()
	if err := r.store.Update(ctx, d); err != nil {
		return nil, xerrors.Wrap(xerrors.KindExecution, "suspending descriptor", err)
	}
	return d, nil
}

// Delete removes a descriptor. Permitted only in draft status.
func (r *Registry) Delete(ctx context.Context, ref string) error {
	d, err := r.Get(ctx, ref)
	if err != nil {
		return err
	}
	if d.Status != StatusDraft {
		return xerrors.State("agent %q can only be deleted while in status draft, is %q", ref, d.Status)
	}
	if err := r.store.Delete(ctx, ref); err != nil {
		if err == store.ErrNotFound {
			return xerrors.AgentNotFound(ref)
		}
		return xerrors.Wrap(xerrors.KindExecution, "deleting descriptor", err)
	}
	return nil
}

// Lookup adapts the registry to workflow.AgentLookup, the narrow capability
// WorkflowValidator depends on. Unknown references come back as `ok ==
// false` rather than propagating a registry-specific error type across the
// package boundary.
func (r *Registry) Lookup(ref string) (workflow.AgentInfo, bool) {
	d, err := r.Get(context.Background(), ref)
	if err != nil {
		return workflow.AgentInfo{}, false
	}
	return workflow.AgentInfo{
		Published:       d.Status == StatusPublished,
		SupportedChains: d.SupportedChains,
		SupportedTokens: d.SupportedTokens,
	}, true
}

var _ workflow.AgentLookup = (*Registry)(nil)
