package node

import "fmt"

// Registry resolves a Node by its Type string. Built once at startup by
// composition in cmd/, not as package-level state (§9).
type Registry struct {
	nodes map[string]Node
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]Node)}
}

// Register adds a node, panicking on a duplicate Type since that is a
// wiring bug caught at startup, not a runtime condition to handle.
func (r *Registry) Register(n Node) {
	if _, exists := r.nodes[n.Type()]; exists {
		panic(fmt.Sprintf("node type %q already registered", n.Type()))
	}
	r.nodes[n.Type()] = n
}

// Get resolves a node by type.
func (r *Registry) Get(nodeType string) (Node, bool) {
	n, ok := r.nodes[nodeType]
	return n, ok
}
