package workflow

import (
	"sort"

	"github.com/goflow/orchestrator/xerrors"
)

// AgentInfo is the narrow view of a registry descriptor the validator needs
// to check chain/token compatibility. Keeping this local to workflow (rather
// than importing the registry package) follows the "narrow capability"
// inversion described for the payment coordinator: the validator depends on
// a capability, not a concrete registry implementation.
type AgentInfo struct {
	Published        bool
	SupportedChains  []string
	SupportedTokens  []string
}

// AgentLookup is the capability WorkflowValidator needs from an agent
// registry: look up a descriptor's validation-relevant fields by reference.
type AgentLookup interface {
	Lookup(ref string) (AgentInfo, bool)
}

// Validate runs the four ordered validation groups described in spec §4.4,
// stopping at the first failing group and returning every failure reason
// within that group.
func Validate(spec *Spec, agents AgentLookup) []error {
	if errs := validateStructural(spec); len(errs) > 0 {
		return errs
	}
	if errs := validateGraph(spec); len(errs) > 0 {
		return errs
	}
	if errs := validateReferences(spec, agents); len(errs) > 0 {
		return errs
	}
	if errs := validateBudget(spec); len(errs) > 0 {
		return errs
	}
	return nil
}

func validateStructural(spec *Spec) []error {
	var errs []error
	if spec.Name == "" {
		errs = append(errs, xerrors.Validation("workflow name must not be empty"))
	}
	if len(spec.Nodes) == 0 {
		errs = append(errs, xerrors.Validation("workflow must declare at least one node"))
	}
	if spec.EntryNodeID == "" {
		errs = append(errs, xerrors.Validation("workflow must declare an entry node"))
	} else if _, ok := spec.NodeByID(spec.EntryNodeID); !ok {
		errs = append(errs, xerrors.Validation("entry node %q is not among the declared nodes", spec.EntryNodeID))
	}
	return errs
}

func validateGraph(spec *Spec) []error {
	var errs []error

	ids := make(map[string]struct{}, len(spec.Nodes))
	for _, n := range spec.Nodes {
		if _, dup := ids[n.ID]; dup {
			errs = append(errs, xerrors.Validation("duplicate node id %q", n.ID))
			continue
		}
		ids[n.ID] = struct{}{}
	}

	adj := make(map[string][]string, len(spec.Nodes))
	for _, e := range spec.Edges {
		if _, ok := ids[e.From]; !ok {
			errs = append(errs, xerrors.Validation("edge references unknown source node %q", e.From))
		}
		if _, ok := ids[e.To]; !ok {
			errs = append(errs, xerrors.Validation("edge references unknown destination node %q", e.To))
		}
		adj[e.From] = append(adj[e.From], e.To)
	}
	if len(errs) > 0 {
		return errs
	}

	if cyc := findCycle(spec.Nodes, adj); cyc != "" {
		errs = append(errs, xerrors.Validation("workflow graph contains a cycle reachable from %q", cyc))
		return errs
	}

	if spec.EntryNodeID != "" {
		reachable := bfsReachable(spec.EntryNodeID, adj)
		for _, n := range spec.Nodes {
			if _, ok := reachable[n.ID]; !ok {
				errs = append(errs, xerrors.Validation("node %q is unreachable from entry node %q", n.ID, spec.EntryNodeID))
			}
		}
	}
	return errs
}

// findCycle runs DFS with a recursion stack over every node (so disjoint
// components are all checked) and returns the id where a cycle was first
// detected, or "" if the graph is acyclic.
func findCycle(nodes []Node, adj map[string][]string) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	for _, n := range nodes {
		color[n.ID] = white
	}

	// Deterministic traversal order for stable error messages.
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		order = append(order, n.ID)
	}
	sort.Strings(order)

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range order {
		if color[id] == white {
			if visit(id) {
				return id
			}
		}
	}
	return ""
}

func bfsReachable(entry string, adj map[string][]string) map[string]struct{} {
	seen := map[string]struct{}{entry: {}}
	queue := []string{entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}
	return seen
}

func validateReferences(spec *Spec, agents AgentLookup) []error {
	var errs []error
	for _, n := range spec.Nodes {
		if n.Type != NodeAgent {
			errs = append(errs, xerrors.Validation("node %q has unsupported type %q: only %q nodes are executable", n.ID, n.Type, NodeAgent))
			continue
		}
		if n.AgentRef == "" {
			errs = append(errs, xerrors.Validation("node %q does not reference an agent", n.ID))
			continue
		}
		info, ok := agents.Lookup(n.AgentRef)
		if !ok {
			errs = append(errs, xerrors.Validation("node %q references unknown agent %q", n.ID, n.AgentRef))
			continue
		}
		if !info.Published {
			errs = append(errs, xerrors.Validation("node %q references agent %q which is not published", n.ID, n.AgentRef))
			continue
		}
		if !contains(info.SupportedChains, spec.Chain) {
			errs = append(errs, xerrors.Validation("node %q's agent %q does not support chain %q", n.ID, n.AgentRef, spec.Chain))
		}
		if !contains(info.SupportedTokens, spec.Token) {
			errs = append(errs, xerrors.Validation("node %q's agent %q does not support token %q", n.ID, n.AgentRef, spec.Token))
		}
	}
	return errs
}

func validateBudget(spec *Spec) []error {
	if spec.MaxBudget <= 0 {
		return []error{xerrors.Validation("maxBudget must be a positive atomic integer, got %d", spec.MaxBudget)}
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// TopologicalOrder computes a deterministic topological ordering of the
// spec's nodes using Kahn's algorithm, breaking ties by lexicographic node
// id. It returns an error if the order's length differs from the node
// count, i.e. the edge set contains a cycle.
func TopologicalOrder(spec *Spec) ([]string, error) {
	indegree := make(map[string]int, len(spec.Nodes))
	adj := make(map[string][]string, len(spec.Nodes))
	for _, n := range spec.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range spec.Edges {
		adj[e.From] = append(adj[e.From], e.To)
		indegree[e.To]++
	}

	var ready []string
	for _, n := range spec.Nodes {
		if indegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)
		for _, next := range adj[cur] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(spec.Nodes) {
		return nil, xerrors.Execution("cycle")
	}
	return order, nil
}
