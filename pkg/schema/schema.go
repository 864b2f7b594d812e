// Package schema models the execution server's node introspection
// payload: for each node type, the ordered input declarations with an
// expected kind and, for enum inputs, the allowed values.
//
// The schema is fetched lazily and cached for the lifetime of one
// compiler invocation. It is never persisted.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the expected kind of an input value.
type Kind string

const (
	KindInt     Kind = "INT"
	KindFloat   Kind = "FLOAT"
	KindString  Kind = "STRING"
	KindBoolean Kind = "BOOLEAN"
	KindEnum    Kind = "ENUM"

	// KindConnection marks inputs that carry node-to-node data
	// (latents, models, images). They never receive widget values.
	KindConnection Kind = ""
)

// Input is one declared input on a node type.
type Input struct {
	Name    string
	Kind    Kind
	Allowed []string
}

// Entry is the schema for a single node type. Inputs preserve the
// server's declaration order, required before optional.
type Entry struct {
	Type   string
	Inputs []Input
}

// WidgetInputs returns the inputs that take widget values, in order.
func (e *Entry) WidgetInputs() []Input {
	out := make([]Input, 0, len(e.Inputs))
	for _, in := range e.Inputs {
		if in.Kind != KindConnection {
			out = append(out, in)
		}
	}
	return out
}

// Schema is a set of node type entries.
type Schema struct {
	entries map[string]*Entry
}

// Entry returns the schema for a node type, or nil when unknown.
func (s *Schema) Entry(nodeType string) *Entry {
	if s == nil {
		return nil
	}
	return s.entries[nodeType]
}

// Types returns the number of node types the schema covers.
func (s *Schema) Types() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// ParseObjectInfo decodes a node introspection payload.
//
// The payload shape is {"<type>": {"input": {"required": {...},
// "optional": {...}}}}. Input declaration order is significant (widget
// values are consumed positionally), so the required/optional objects
// are walked with a streaming decoder instead of an unordered map.
func ParseObjectInfo(b []byte) (*Schema, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return nil, fmt.Errorf("parse object info: %w", err)
	}

	s := &Schema{entries: make(map[string]*Entry, len(top))}
	for nodeType, raw := range top {
		entry, err := parseEntry(nodeType, raw)
		if err != nil {
			return nil, fmt.Errorf("node type %q: %w", nodeType, err)
		}
		s.entries[nodeType] = entry
	}
	return s, nil
}

func parseEntry(nodeType string, raw json.RawMessage) (*Entry, error) {
	var body struct {
		Input map[string]json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	entry := &Entry{Type: nodeType}
	for _, section := range []string{"required", "optional"} {
		sec, ok := body.Input[section]
		if !ok {
			continue
		}
		inputs, err := parseInputSection(sec)
		if err != nil {
			return nil, fmt.Errorf("%s inputs: %w", section, err)
		}
		entry.Inputs = append(entry.Inputs, inputs...)
	}
	return entry, nil
}

// parseInputSection walks one {"name": [spec, extra]} object with a
// token decoder so declaration order survives.
func parseInputSection(raw json.RawMessage) ([]Input, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var out []Input
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected input name, got %v", keyTok)
		}

		var spec []json.RawMessage
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		out = append(out, inputFromSpec(name, spec))
	}
	return out, nil
}

func inputFromSpec(name string, spec []json.RawMessage) Input {
	in := Input{Name: name, Kind: KindConnection}
	if len(spec) == 0 {
		return in
	}

	var allowed []string
	if err := json.Unmarshal(spec[0], &allowed); err == nil {
		in.Kind = KindEnum
		in.Allowed = allowed
		return in
	}

	var typeName string
	if err := json.Unmarshal(spec[0], &typeName); err != nil {
		return in
	}
	switch typeName {
	case "INT":
		in.Kind = KindInt
	case "FLOAT":
		in.Kind = KindFloat
	case "STRING":
		in.Kind = KindString
	case "BOOLEAN":
		in.Kind = KindBoolean
	default:
		// Connection-typed input (MODEL, LATENT, IMAGE, ...).
	}
	return in
}
