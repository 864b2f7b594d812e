package schema

import (
	"fmt"
	"strings"
)

// CoerceWidgets maps a node's ordered widget values onto the entry's
// widget input names, validating each value against the declared kind.
//
// The walk is deliberately forgiving: widget lists saved by older
// editor versions drift out of alignment with the current schema, so a
// value that fails coercion for the current slot is skipped without
// consuming the slot, and the slot is retried against the next value.
// Connected inputs consume their aligned widget value but never
// receive it; the connection wins.
//
// The result never contains entries for connected input names.
func CoerceWidgets(entry *Entry, widgets []any, connected map[string]bool) map[string]any {
	inputs := map[string]any{}
	if entry == nil || len(widgets) == 0 {
		return inputs
	}

	names := entry.WidgetInputs()
	idx := 0
	for _, value := range widgets {
		if idx >= len(names) {
			break
		}
		in := names[idx]

		if connected[in.Name] {
			idx++
			continue
		}

		coerced, ok := coerceValue(in, value)
		if !ok {
			continue
		}
		inputs[in.Name] = coerced
		idx++
	}
	return inputs
}

func coerceValue(in Input, value any) (any, bool) {
	switch in.Kind {
	case KindInt:
		if f, ok := asNumber(value); ok {
			return int(f), true
		}
		return nil, false

	case KindFloat:
		if f, ok := asNumber(value); ok {
			return f, true
		}
		return nil, false

	case KindBoolean:
		if b, ok := value.(bool); ok {
			return b, true
		}
		return nil, false

	case KindString:
		if value == nil {
			return "", true
		}
		if s, ok := value.(string); ok {
			return s, true
		}
		return fmt.Sprint(value), true

	case KindEnum:
		return coerceEnum(in.Allowed, value)

	default:
		return value, true
	}
}

// asNumber accepts int and float values but rejects booleans, which
// satisfy numeric duck-typing in the editor's save format.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case bool:
		return 0, false
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}

// coerceEnum resolves a candidate against the allowed list.
//
// Exact matches win. Otherwise candidates and allowed values are
// compared by basename, so a bare "model.safetensors" matches a
// catalog entry "subdir/model.safetensors" (and vice versa); the
// canonical allowed value is stored. A candidate that still contains a
// dot is accepted raw and left for the server to validate. Anything
// else is rejected without consuming the slot, as is every candidate
// when the allowed list is empty: with no catalog there is nothing to
// resolve against.
func coerceEnum(allowed []string, value any) (any, bool) {
	if len(allowed) == 0 {
		return nil, false
	}
	str, isString := value.(string)
	if !isString {
		str = fmt.Sprint(value)
	}

	for _, av := range allowed {
		if av == str {
			return av, true
		}
	}
	if !isString {
		return nil, false
	}

	base := baseName(str)
	for _, av := range allowed {
		if baseName(av) == base {
			return av, true
		}
	}
	if strings.Contains(base, ".") {
		return str, true
	}
	return nil, false
}

// baseName strips any path prefix, accepting both separator styles.
func baseName(s string) string {
	s = strings.ReplaceAll(s, `\`, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}
