// Package diagram renders profiles and condition trees as graphviz
// diagrams.
package diagram

// NodeKind classifies a diagram node.
type NodeKind string

const (
	NodeKindElement   NodeKind = "element"
	NodeKindRoot      NodeKind = "root"
	NodeKindGroup     NodeKind = "group"
	NodeKindPredicate NodeKind = "predicate"
	NodeKindList      NodeKind = "list"
	NodeKindEvent     NodeKind = "event"
	NodeKindScript    NodeKind = "script"
)

// Model is the intermediate representation handed to the renderer.
type Model struct {
	Title string
	Nodes []*Node
	Edges []Edge
}

// Node is one box of the diagram.
type Node struct {
	ID    string
	Label string
	Kind  NodeKind
	// Met colours element nodes; nil leaves them unstyled.
	Met *bool
}

// Edge connects two nodes.
type Edge struct {
	From  string
	To    string
	Label string
}

func (m *Model) add(n *Node) *Node {
	m.Nodes = append(m.Nodes, n)
	return n
}

func (m *Model) link(from, to, label string) {
	m.Edges = append(m.Edges, Edge{From: from, To: to, Label: label})
}

// Node returns the node with id.
func (m *Model) Node(id string) (*Node, bool) {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}
