// Package model holds the agent descriptor data types shared between the
// registry service and its storage backends. It is a dependency-free leaf:
// registry/store imports model (not the registry service package) for the
// same reason the store interfaces defined against a generated domain type
// never import back up to the service that depends on them.
package model

import "time"

// Category is the closed set of agent categories spec §3 defines.
type Category string

const (
	CategoryDataCollection Category = "data-collection"
	CategoryAnalysis       Category = "analysis"
	CategoryTransformation Category = "transformation"
	CategorySummarization  Category = "summarization"
	CategoryNotification   Category = "notification"
	CategoryStorage        Category = "storage"
	CategoryMLInference    Category = "ml-inference"
	CategoryValidation     Category = "validation"
	CategoryOther          Category = "other"
)

// Status is the lifecycle state of an agent descriptor.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPublished  Status = "published"
	StatusDeprecated Status = "deprecated"
	StatusSuspended  Status = "suspended"
)

// PricingModel is one of {per-call, per-unit, subscription} (spec §3).
type PricingModel string

const (
	PricingPerCall      PricingModel = "per-call"
	PricingPerUnit      PricingModel = "per-unit"
	PricingSubscription PricingModel = "subscription"
)

// Pricing is the agent's pricing policy.
type Pricing struct {
	Model           PricingModel
	Amount          int64 // atomic integer, base unit of Token
	Token           string
	Chain           string
	UnitDescriptor  string // optional, e.g. "per 1000 tokens"
	RequiresPayment bool
	// PaymentNetwork is the settlement network, possibly distinct from
	// Chain (e.g. a testnet used only for payment while Chain names the
	// production network the agent's capability is advertised on).
	PaymentNetwork string
}

// Schema is the JSON-Schema subset spec §3 requires agents to declare for
// their input/output: type, properties, required, enum. It is compiled and
// validated through santhosh-tekuri/jsonschema/v6 by Registry.Create (see
// ../schema.go); Registry.Update stores patched schemas without compiling
// them.
type Schema struct {
	Type       string
	Properties map[string]SchemaProperty
	Required   []string
}

// SchemaProperty describes one property of a Schema.
type SchemaProperty struct {
	Type string
	Enum []string
}

// Descriptor is the typed agent record held by the registry, per spec §3.
type Descriptor struct {
	Reference       string // stable, unique, immutable across updates
	Name            string
	Version         string
	Description     string
	Category        Category
	EndpointURL     string
	OwnerWallet     string
	InputSchema     Schema
	OutputSchema    Schema
	Status          Status
	SupportedChains []string
	SupportedTokens []string
	Pricing         Pricing
	// Capabilities carries optional agent-card capability/streaming flags
	// (spec §4.5); the core never acts on it, it is surfaced for future
	// streaming extensions.
	Capabilities map[string]any
	OwnerUserID  string
	Tags         []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Filter selects a subset of {category, status, chain, token, ownerId, tag
// set (any-of)} for Registry.List, per spec §4.3.
type Filter struct {
	Category *Category
	Status   *Status
	Chain    *string
	Token    *string
	OwnerID  *string
	Tags     []string // any-of
}
