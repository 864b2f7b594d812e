// Package compiler turns an editor-format node graph into the flat job
// form the execution server accepts.
//
// Compilation is best-effort, not strict: dangling links are dropped,
// unknown node types are emitted with whatever inputs resolve, and
// widget values that no longer line up with the current server schema
// degrade gracefully. The server performs final validation. The one
// hard failure is an indirection chain that cycles back on itself.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/noderig/noderig/pkg/graph"
	"github.com/noderig/noderig/pkg/schema"
)

// CompileError reports a graph that cannot be flattened.
type CompileError struct {
	NodeID int
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile node %d: %s", e.NodeID, e.Reason)
}

// Compile flattens g into a Job, using s (which may be nil) to map
// widget values onto input names. An empty graph compiles to nil.
func Compile(g *graph.Graph, s *schema.Schema) (Job, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, nil
	}

	c := &compilation{
		nodes:  g.NodeByID(),
		links:  g.LinkByID(),
		schema: s,
	}

	job := Job{}
	for i := range g.Nodes {
		node := &g.Nodes[i]
		if node.Kind() != graph.KindEmitted {
			continue
		}
		spec, err := c.compileNode(node)
		if err != nil {
			return nil, err
		}
		job[strconv.Itoa(node.ID)] = spec
	}
	return job, nil
}

type compilation struct {
	nodes  map[int]*graph.Node
	links  map[int]*graph.Link
	schema *schema.Schema
}

func (c *compilation) compileNode(node *graph.Node) (NodeSpec, error) {
	inputs := map[string]any{}
	connected := map[string]bool{}

	for _, slot := range node.Inputs {
		if slot.Link == nil {
			continue
		}
		link, ok := c.links[*slot.Link]
		if !ok {
			// Dangling link: the input is omitted.
			continue
		}

		srcID, srcSlot, cycled := c.resolveSource(link.SourceID, link.SourceSlot)
		if cycled {
			return NodeSpec{}, &CompileError{NodeID: srcID, Reason: "indirection chain cycles back on itself"}
		}

		src, ok := c.nodes[srcID]
		if !ok {
			continue
		}
		switch src.Kind() {
		case graph.KindValueHolder:
			if len(src.Widgets) > 0 && src.Widgets[0] != nil {
				inputs[slot.Name] = src.Widgets[0]
				connected[slot.Name] = true
			}
		case graph.KindEmitted:
			inputs[slot.Name] = Ref{Node: strconv.Itoa(srcID), Slot: srcSlot}
			connected[slot.Name] = true
		default:
			// A relabel node with no upstream, or an annotation:
			// nothing to reference, drop the input.
		}
	}

	for name, value := range c.widgetInputs(node, connected) {
		if _, taken := inputs[name]; !taken {
			inputs[name] = value
		}
	}

	return NodeSpec{ClassType: node.Type, Inputs: inputs}, nil
}

// resolveSource chases relabel nodes to the real upstream source. The
// visited set bounds the walk; revisiting a node reports a cycle.
func (c *compilation) resolveSource(id, slot int) (int, int, bool) {
	visited := map[int]bool{}
	for {
		if visited[id] {
			return id, slot, true
		}
		visited[id] = true

		node, ok := c.nodes[id]
		if !ok || node.Kind() != graph.KindRelabel {
			return id, slot, false
		}
		linkID, ok := node.FirstBoundLink()
		if !ok {
			return id, slot, false
		}
		link, ok := c.links[linkID]
		if !ok {
			return id, slot, false
		}
		id, slot = link.SourceID, link.SourceSlot
	}
}

// widgetInputs derives values for the node's unconnected inputs from
// its ordered widget list: schema-driven when the server described the
// type, a static table for well-known types otherwise, and finally the
// widget names the editor recorded on the slots themselves.
func (c *compilation) widgetInputs(node *graph.Node, connected map[string]bool) map[string]any {
	if len(node.Widgets) == 0 {
		return nil
	}

	if entry := c.schema.Entry(node.Type); entry != nil && len(entry.WidgetInputs()) > 0 {
		return schema.CoerceWidgets(entry, node.Widgets, connected)
	}

	names := fallbackWidgetNames(node.Type)
	if len(names) == 0 {
		for _, slot := range node.Inputs {
			if slot.Widget != nil && slot.Widget.Name != "" {
				names = append(names, slot.Widget.Name)
			} else if slot.Widget != nil {
				names = append(names, slot.Name)
			}
		}
	}

	inputs := map[string]any{}
	for i, value := range node.Widgets {
		if i >= len(names) {
			break
		}
		name := names[i]
		if name == "" || connected[name] {
			continue
		}
		inputs[name] = value
	}
	return inputs
}
