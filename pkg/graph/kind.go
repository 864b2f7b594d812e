package graph

// Kind partitions node types into the fixed set the compiler treats
// specially plus an open catch-all for everything the server defines.
type Kind int

const (
	// KindEmitted nodes appear in the compiled job.
	KindEmitted Kind = iota

	// KindRelabel nodes only forward a connection (Reroute and the
	// Set/Get indirection pair). They are chased, never emitted.
	KindRelabel

	// KindValueHolder nodes hold a single literal widget value that is
	// inlined at their consumers.
	KindValueHolder

	// KindAnnotation nodes are editor notes with no runtime effect.
	KindAnnotation
)

// Kind classifies the node by its type name.
func (n *Node) Kind() Kind {
	switch n.Type {
	case "Reroute", "SetNode", "GetNode":
		return KindRelabel
	case "PrimitiveNode":
		return KindValueHolder
	case "Note", "MarkdownNote":
		return KindAnnotation
	default:
		return KindEmitted
	}
}

// FirstBoundLink returns the link id of the node's first connected
// input, or false when every input is unconnected.
func (n *Node) FirstBoundLink() (int, bool) {
	for _, in := range n.Inputs {
		if in.Link != nil {
			return *in.Link, true
		}
	}
	return 0, false
}
