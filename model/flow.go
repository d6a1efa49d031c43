package model

import (
	"fmt"
)

// Flow is a tenant-authored conversation graph. The struct is treated as
// immutable once loaded for an invocation; handlers receive node clones when
// content needs resolving.
type Flow struct {
	// Source provides information about the origin of the flow definition
	Source *Source `json:"source,omitempty" yaml:"source,omitempty"`

	// ID is the unique identifier of the flow within the tenant
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Tenant owns the flow
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`

	// Name is a human readable flow name
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Description provides a human-readable description of the flow
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Version specifies the flow definition version
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	Nodes []*Node `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Edges []*Edge `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// Source describes where a flow definition was loaded from.
type Source struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Node returns the node with the given id or nil. Dangling edge targets
// resolve to nil and are silently inert.
func (f *Flow) Node(id string) *Node {
	if f == nil || id == "" {
		return nil
	}
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}
	return nil
}

// EdgesFrom returns every plain (handle-less) edge leaving the given node.
func (f *Flow) EdgesFrom(source string) []*Edge {
	var result []*Edge
	for _, edge := range f.Edges {
		if edge.Source == source && edge.SourceHandle == "" {
			result = append(result, edge)
		}
	}
	return result
}

// AllEdgesFrom returns every edge leaving the given node regardless of handle.
func (f *Flow) AllEdgesFrom(source string) []*Edge {
	var result []*Edge
	for _, edge := range f.Edges {
		if edge.Source == source {
			result = append(result, edge)
		}
	}
	return result
}

// EdgesByHandle returns every edge tagged with the given source handle.
func (f *Flow) EdgesByHandle(handle string) []*Edge {
	var result []*Edge
	for _, edge := range f.Edges {
		if edge.SourceHandle == handle {
			result = append(result, edge)
		}
	}
	return result
}

// BranchEdges returns edges leaving source whose handle matches. Used by
// condition branches where both source and handle must agree.
func (f *Flow) BranchEdges(source, handle string) []*Edge {
	var result []*Edge
	for _, edge := range f.Edges {
		if edge.Source == source && edge.SourceHandle == handle {
			result = append(result, edge)
		}
	}
	return result
}

// Targets maps edges to their target nodes, dropping dangling references.
func (f *Flow) Targets(edges []*Edge) []*Node {
	var result []*Node
	for _, edge := range edges {
		if node := f.Node(edge.Target); node != nil {
			result = append(result, node)
		}
	}
	return result
}

// AssignAINodes returns every node flagged for AI-for-all steering.
func (f *Flow) AssignAINodes() []*Node {
	var result []*Node
	for _, node := range f.Nodes {
		if node.Data.AssignAI {
			result = append(result, node)
		}
	}
	return result
}

// Validate performs a best-effort structural validation of the flow. The
// returned slice is empty when the flow is sound; otherwise it contains
// human-readable issues. Dangling edges are NOT issues - they are legal and
// simply never fire; use DanglingEdges to surface them to authors.
func (f *Flow) Validate() []error {
	var issues []error
	seen := map[string]bool{}
	for _, node := range f.Nodes {
		if node.ID == "" {
			issues = append(issues, fmt.Errorf("node with empty id"))
			continue
		}
		if seen[node.ID] {
			issues = append(issues, fmt.Errorf("duplicate node id %s", node.ID))
		}
		seen[node.ID] = true
	}
	return issues
}

// DanglingEdges returns edges referencing node ids absent from the flow.
func (f *Flow) DanglingEdges() []*Edge {
	seen := map[string]bool{}
	for _, node := range f.Nodes {
		seen[node.ID] = true
	}
	var dangling []*Edge
	for _, edge := range f.Edges {
		if !seen[edge.Source] || !seen[edge.Target] {
			dangling = append(dangling, edge)
		}
	}
	return dangling
}
