// Package registry implements the AgentRegistry described in spec §4.3: a
// typed directory of callable agents, their schemas, pricing, and lifecycle.
package registry

import "github.com/goflow/orchestrator/registry/model"

// The descriptor types live in registry/model, a dependency-free leaf
// package registry/store can depend on without importing back up to this
// service package. The aliases below keep the familiar registry.Descriptor
// spelling for callers of the service.

type (
	Category       = model.Category
	Status         = model.Status
	PricingModel   = model.PricingModel
	Pricing        = model.Pricing
	Schema         = model.Schema
	SchemaProperty = model.SchemaProperty
	Descriptor     = model.Descriptor
	Filter         = model.Filter
)

const (
	CategoryDataCollection = model.CategoryDataCollection
	CategoryAnalysis       = model.CategoryAnalysis
	CategoryTransformation = model.CategoryTransformation
	CategorySummarization  = model.CategorySummarization
	CategoryNotification   = model.CategoryNotification
	CategoryStorage        = model.CategoryStorage
	CategoryMLInference    = model.CategoryMLInference
	CategoryValidation     = model.CategoryValidation
	CategoryOther          = model.CategoryOther
)

const (
	StatusDraft      = model.StatusDraft
	StatusPublished  = model.StatusPublished
	StatusDeprecated = model.StatusDeprecated
	StatusSuspended  = model.StatusSuspended
)

const (
	PricingPerCall      = model.PricingPerCall
	PricingPerUnit      = model.PricingPerUnit
	PricingSubscription = model.PricingSubscription
)
