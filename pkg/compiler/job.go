package compiler

import (
	"encoding/json"
	"fmt"
)

// Job is the flat, server-executable form of a graph: node id (as a
// string) to the node's type name and resolved inputs.
//
// Invariant: every Ref inside a Job resolves to a node id present in
// the same Job. The compiler drops inputs it cannot resolve rather
// than emitting dangling references.
type Job map[string]NodeSpec

// NodeSpec is one compiled node.
type NodeSpec struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

// Ref is a connection to another compiled node's output slot. It
// marshals to the wire form ["<node id>", slot].
type Ref struct {
	Node string
	Slot int
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{r.Node, r.Slot})
}

func (r *Ref) UnmarshalJSON(b []byte) error {
	var arr [2]json.RawMessage
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[0], &r.Node); err != nil {
		return fmt.Errorf("ref node id: %w", err)
	}
	if err := json.Unmarshal(arr[1], &r.Slot); err != nil {
		return fmt.Errorf("ref slot: %w", err)
	}
	return nil
}

// ParseJob decodes a document already in the flat server format.
func ParseJob(b []byte) (Job, error) {
	var raw map[string]struct {
		ClassType string                     `json:"class_type"`
		Inputs    map[string]json.RawMessage `json:"inputs"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}

	job := make(Job, len(raw))
	for id, spec := range raw {
		if spec.ClassType == "" {
			return nil, fmt.Errorf("node %s: missing class_type", id)
		}
		inputs := make(map[string]any, len(spec.Inputs))
		for name, v := range spec.Inputs {
			var ref Ref
			if err := json.Unmarshal(v, &ref); err == nil {
				inputs[name] = ref
				continue
			}
			var lit any
			if err := json.Unmarshal(v, &lit); err != nil {
				return nil, fmt.Errorf("node %s input %s: %w", id, name, err)
			}
			inputs[name] = lit
		}
		job[id] = NodeSpec{ClassType: spec.ClassType, Inputs: inputs}
	}
	return job, nil
}
