package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goflow/orchestrator/registry"
	"github.com/goflow/orchestrator/workflow"
)

// workflowDoc is the YAML shape of a workflow document (spec §6: "the core
// defines the equivalent structured shape and must accept any producer").
// The textual parser itself stays an external concern; this is just enough
// of a loader to make the CLI runnable against a file on disk.
type workflowDoc struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Version     string            `yaml:"version"`
	OwnerUserID string            `yaml:"ownerUserId"`
	Chain       string            `yaml:"chain"`
	Token       string            `yaml:"token"`
	MaxBudget   int64             `yaml:"maxBudget"`
	EntryNodeID string            `yaml:"entryNodeId"`
	Outputs     map[string]string `yaml:"outputs"`
	Nodes       []nodeDoc         `yaml:"nodes"`
	Edges       []edgeDoc         `yaml:"edges"`
}

type nodeDoc struct {
	ID       string         `yaml:"id"`
	Type     string         `yaml:"type"`
	AgentRef string         `yaml:"agentRef"`
	Name     string         `yaml:"name"`
	Inputs   map[string]any `yaml:"inputs"`
	Retry    *retryDoc      `yaml:"retry"`
}

type retryDoc struct {
	MaxAttempts int   `yaml:"maxAttempts"`
	BackoffMS   int64 `yaml:"backoffMs"`
}

type edgeDoc struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Condition string `yaml:"condition"`
}

// loadWorkflowDoc parses a YAML workflow document at path into the core's
// in-memory workflow.Spec shape.
func loadWorkflowDoc(path string) (*workflow.Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc workflowDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	spec := &workflow.Spec{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Version:     doc.Version,
		OwnerUserID: doc.OwnerUserID,
		Chain:       doc.Chain,
		Token:       doc.Token,
		MaxBudget:   doc.MaxBudget,
		EntryNodeID: doc.EntryNodeID,
		Outputs:     doc.Outputs,
	}

	for _, n := range doc.Nodes {
		node := workflow.Node{
			ID:       n.ID,
			Type:     workflow.NodeType(n.Type),
			AgentRef: n.AgentRef,
			Name:     n.Name,
			Inputs:   n.Inputs,
		}
		if n.Retry != nil {
			node.Retry = &workflow.RetryPolicy{MaxAttempts: n.Retry.MaxAttempts, BackoffMS: n.Retry.BackoffMS}
		}
		spec.Nodes = append(spec.Nodes, node)
	}
	for _, e := range doc.Edges {
		spec.Edges = append(spec.Edges, workflow.Edge{From: e.From, To: e.To, Condition: e.Condition})
	}

	return spec, nil
}

// agentDoc is the YAML shape of one seed entry in AGENTS_FILE: the
// descriptor fields needed to populate the registry before validate/
// schedule can resolve agent references, since this core ships no
// persistence (spec §6) and the CLI is otherwise the only way to run
// against a non-empty registry.
type agentDoc struct {
	Reference       string   `yaml:"reference"`
	Name            string   `yaml:"name"`
	Version         string   `yaml:"version"`
	Category        string   `yaml:"category"`
	EndpointURL     string   `yaml:"endpointUrl"`
	OwnerWallet     string   `yaml:"ownerWallet"`
	SupportedChains []string `yaml:"supportedChains"`
	SupportedTokens []string `yaml:"supportedTokens"`
	Pricing         struct {
		Model           string `yaml:"model"`
		Amount          int64  `yaml:"amount"`
		Token           string `yaml:"token"`
		Chain           string `yaml:"chain"`
		RequiresPayment bool   `yaml:"requiresPayment"`
	} `yaml:"pricing"`
}

// loadAgentsFile parses a YAML list of agent descriptors into
// registry.Descriptor values. It does not touch the registry; seedAgents
// creates and publishes the returned descriptors.
func loadAgentsFile(path string) ([]registry.Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var docs []agentDoc
	if err := yaml.Unmarshal(raw, &docs); err != nil {
		return nil, err
	}

	descriptors := make([]registry.Descriptor, 0, len(docs))
	for _, d := range docs {
		descriptors = append(descriptors, registry.Descriptor{
			Reference:       d.Reference,
			Name:            d.Name,
			Version:         d.Version,
			Category:        registry.Category(d.Category),
			EndpointURL:     d.EndpointURL,
			OwnerWallet:     d.OwnerWallet,
			SupportedChains: d.SupportedChains,
			SupportedTokens: d.SupportedTokens,
			Pricing: registry.Pricing{
				Model:           registry.PricingModel(d.Pricing.Model),
				Amount:          d.Pricing.Amount,
				Token:           d.Pricing.Token,
				Chain:           d.Pricing.Chain,
				RequiresPayment: d.Pricing.RequiresPayment,
			},
		})
	}
	return descriptors, nil
}
