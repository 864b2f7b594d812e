package graph

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Graph is an editor-format description of a computation: an ordered
// node array plus directed links between input/output slots.
//
// This is the shape node editors save to disk. The execution server
// itself consumes the flat form produced by pkg/compiler.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Node is a single editor node.
//
// Widgets carries the node's untyped widget values in declaration
// order. Widget names are not stored in the editor format; mapping
// values to input names is the compiler's job.
type Node struct {
	ID      int         `json:"id"`
	Type    string      `json:"type"`
	Widgets []any       `json:"widgets_values"`
	Inputs  []InputSlot `json:"inputs"`
}

// InputSlot is a declared input on a node. Link is nil when the slot
// is unconnected.
type InputSlot struct {
	Name   string     `json:"name"`
	Link   *int       `json:"link"`
	Widget *WidgetRef `json:"widget,omitempty"`
}

// WidgetRef names the widget backing an input slot, when the editor
// recorded one.
type WidgetRef struct {
	Name string `json:"name"`
}

// Link connects a source node's output slot to a target node's input slot.
type Link struct {
	ID         int
	SourceID   int
	SourceSlot int
	TargetID   int
	TargetSlot int
	Type       string
}

// UnmarshalJSON accepts both the editor's compact array form
// [id, source, sourceSlot, target, targetSlot, type] and an object form.
func (l *Link) UnmarshalJSON(b []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err == nil {
		if len(arr) < 5 {
			return fmt.Errorf("link array has %d elements, need at least 5", len(arr))
		}
		ints := [5]int{}
		for i := 0; i < 5; i++ {
			if err := json.Unmarshal(arr[i], &ints[i]); err != nil {
				return fmt.Errorf("link element %d: %w", i, err)
			}
		}
		l.ID, l.SourceID, l.SourceSlot, l.TargetID, l.TargetSlot = ints[0], ints[1], ints[2], ints[3], ints[4]
		if len(arr) > 5 {
			// Type tag is optional and may be null.
			_ = json.Unmarshal(arr[5], &l.Type)
		}
		return nil
	}

	var obj struct {
		ID         int    `json:"id"`
		SourceID   int    `json:"origin_id"`
		SourceSlot int    `json:"origin_slot"`
		TargetID   int    `json:"target_id"`
		TargetSlot int    `json:"target_slot"`
		Type       string `json:"type"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("parse link: %w", err)
	}
	l.ID, l.SourceID, l.SourceSlot = obj.ID, obj.SourceID, obj.SourceSlot
	l.TargetID, l.TargetSlot, l.Type = obj.TargetID, obj.TargetSlot, obj.Type
	return nil
}

// UnmarshalJSON tolerates widget value payloads that are not arrays
// (some editor extensions save keyed objects there); those decode to
// an empty widget list rather than failing the whole graph.
func (n *Node) UnmarshalJSON(b []byte) error {
	type alias struct {
		ID      int             `json:"id"`
		Type    string          `json:"type"`
		Widgets json.RawMessage `json:"widgets_values"`
		Inputs  []InputSlot     `json:"inputs"`
	}
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	n.ID, n.Type, n.Inputs = a.ID, a.Type, a.Inputs
	n.Widgets = nil
	if len(a.Widgets) > 0 {
		var vals []any
		if err := json.Unmarshal(a.Widgets, &vals); err == nil {
			n.Widgets = vals
		}
	}
	return nil
}

// ErrNotEditorFormat indicates the document is already in the flat
// server format (no nodes array, class_type entries keyed by id).
var ErrNotEditorFormat = errors.New("document is not in editor graph format")

// Parse decodes an editor-format graph from JSON bytes.
//
// Documents already in the flat server format return ErrNotEditorFormat
// so callers can hand them to the engine unchanged.
func Parse(b []byte) (*Graph, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	if _, ok := probe["nodes"]; !ok {
		for _, raw := range probe {
			var entry struct {
				ClassType string `json:"class_type"`
			}
			if err := json.Unmarshal(raw, &entry); err == nil && entry.ClassType != "" {
				return nil, ErrNotEditorFormat
			}
		}
	}

	var g Graph
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	return &g, nil
}

// NodeByID returns a lookup from node id to node.
func (g *Graph) NodeByID() map[int]*Node {
	out := make(map[int]*Node, len(g.Nodes))
	for i := range g.Nodes {
		out[g.Nodes[i].ID] = &g.Nodes[i]
	}
	return out
}

// LinkByID returns a lookup from link id to link.
func (g *Graph) LinkByID() map[int]*Link {
	out := make(map[int]*Link, len(g.Links))
	for i := range g.Links {
		out[g.Links[i].ID] = &g.Links[i]
	}
	return out
}
