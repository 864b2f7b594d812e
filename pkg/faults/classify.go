package faults

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// Classify maps raw server-reported failure text to a typed cause.
func Classify(op, message string) *Fault {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "out of memory"),
		strings.Contains(lower, "cuda out of memory"),
		strings.Contains(lower, "oom"):
		return New(op, ErrResourceExhausted, message)

	case strings.Contains(lower, "value_not_in_list"):
		return New(op, ErrMissingDependency, message)

	case strings.Contains(lower, "missing") &&
		(strings.Contains(lower, "node") || strings.Contains(lower, "class_type")):
		return New(op, ErrMissingCapability, message)

	case strings.Contains(lower, "connection") || strings.Contains(lower, "refused"):
		return New(op, ErrUnreachable, message)

	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return New(op, ErrDeadline, message)

	default:
		return New(op, ErrUnclassified, message)
	}
}

// rejectionPayload is the structured shape servers return on HTTP
// rejection: a top-level error plus optional per-node detail.
type rejectionPayload struct {
	Error *struct {
		Type      string         `json:"type"`
		Message   string         `json:"message"`
		Details   string         `json:"details"`
		ExtraInfo map[string]any `json:"extra_info"`
	} `json:"error"`
	NodeErrors map[string]struct {
		Errors []struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"node_errors"`
}

// ClassifyRejection interprets a structured rejection body. Bodies
// that do not parse fall back to text classification of the raw bytes.
func ClassifyRejection(op string, body []byte) *Fault {
	var payload rejectionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Classify(op, strings.TrimSpace(string(body)))
	}

	var msg, typ string
	if payload.Error != nil {
		typ = payload.Error.Type
		msg = strings.TrimSpace(payload.Error.Message + " " + payload.Error.Details)
	}
	combined := strings.ToLower(typ + " " + msg)

	switch {
	case strings.Contains(combined, "out of memory") || strings.Contains(combined, "oom"):
		return New(op, ErrResourceExhausted, msg)

	case strings.Contains(combined, "value_not_in_list") || hasNodeErrorType(payload, "value_not_in_list"):
		detail := missingValueDetail(payload)
		if detail == "" {
			detail = msg
		}
		return New(op, ErrMissingDependency, detail)

	case strings.Contains(combined, "invalid_prompt") && strings.Contains(combined, "class_type"),
		strings.Contains(combined, "missing") && (strings.Contains(combined, "node") || strings.Contains(combined, "class_type")):
		return New(op, ErrMissingCapability, msg)

	case len(payload.NodeErrors) > 0:
		return New(op, ErrRejected, nodeErrorSummary(payload))

	case msg != "":
		return Classify(op, msg)

	default:
		return Classify(op, strings.TrimSpace(string(body)))
	}
}

// ClassifyTransport maps client-side transport errors onto the taxonomy.
func ClassifyTransport(op string, err error) *Fault {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return New(op, ErrDeadline, err.Error())
	case errors.Is(err, context.Canceled):
		return New(op, ErrDeadline, err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return New(op, ErrDeadline, err.Error())
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return New(op, ErrUnreachable, err.Error())
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return New(op, ErrUnreachable, err.Error())
	}

	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") {
		return New(op, ErrUnreachable, err.Error())
	}
	return New(op, ErrUnclassified, err.Error())
}

func hasNodeErrorType(p rejectionPayload, errType string) bool {
	for _, ne := range p.NodeErrors {
		for _, e := range ne.Errors {
			if e.Type == errType {
				return true
			}
		}
	}
	return false
}

func missingValueDetail(p rejectionPayload) string {
	var parts []string
	for nodeID, ne := range p.NodeErrors {
		for _, e := range ne.Errors {
			if e.Type == "value_not_in_list" {
				parts = append(parts, fmt.Sprintf("node %s: %s", nodeID, e.Message))
			}
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func nodeErrorSummary(p rejectionPayload) string {
	var parts []string
	for nodeID, ne := range p.NodeErrors {
		for _, e := range ne.Errors {
			parts = append(parts, fmt.Sprintf("node %s: %s", nodeID, e.Message))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
