package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// defaultOutputKeys is the preference order for locating the primary
// artifact in a node's output map: images before animations before
// audio before generic files.
var defaultOutputKeys = []string{"images", "image", "gifs", "gif", "audio", "audios", "files"}

// NoOutputError reports that a completed job produced nothing under
// the preferred keys. PresentKeys lists what each node did produce, to
// aid debugging.
type NoOutputError struct {
	PreferredKeys []string
	PresentKeys   map[string][]string
}

func (e *NoOutputError) Error() string {
	var nodes []string
	for nodeID, keys := range e.PresentKeys {
		nodes = append(nodes, fmt.Sprintf("%s=[%s]", nodeID, strings.Join(keys, ",")))
	}
	sort.Strings(nodes)
	return fmt.Sprintf("no outputs matched preferred keys [%s]; present: %s",
		strings.Join(e.PreferredKeys, ","), strings.Join(nodes, " "))
}

// ExtractFirstOutput returns the first asset reference found by
// scanning nodes in ascending id order and keys in preference order.
// preferredKeys defaults to the standard image-first ordering.
func ExtractFirstOutput(outputs map[string]json.RawMessage, preferredKeys []string) (*OutputRef, error) {
	if len(preferredKeys) == 0 {
		preferredKeys = defaultOutputKeys
	}

	present := map[string][]string{}
	for _, nodeID := range sortedNodeIDs(outputs) {
		var node map[string]json.RawMessage
		if err := json.Unmarshal(outputs[nodeID], &node); err != nil {
			continue
		}

		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		present[nodeID] = keys

		for _, key := range preferredKeys {
			raw, ok := node[key]
			if !ok {
				continue
			}
			var assets []OutputRef
			if err := json.Unmarshal(raw, &assets); err != nil || len(assets) == 0 {
				continue
			}
			ref := assets[0]
			if ref.Filename == "" {
				continue
			}
			if ref.FolderType == "" {
				ref.FolderType = "output"
			}
			return &ref, nil
		}
	}

	return nil, &NoOutputError{PreferredKeys: preferredKeys, PresentKeys: present}
}

// sortedNodeIDs orders output map keys numerically where possible so
// extraction scans nodes in their emitted order.
func sortedNodeIDs(outputs map[string]json.RawMessage) []string {
	ids := make([]string, 0, len(outputs))
	for id := range outputs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, aerr := strconv.Atoi(ids[i])
		b, berr := strconv.Atoi(ids[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}
