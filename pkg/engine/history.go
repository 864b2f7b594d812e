package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noderig/noderig/pkg/faults"
)

// historyEntry is one completed (or failed) job in server history.
type historyEntry struct {
	Outputs map[string]json.RawMessage `json:"outputs"`
	Status  struct {
		StatusStr string              `json:"status_str"`
		Completed *bool               `json:"completed"`
		Messages  [][]json.RawMessage `json:"messages"`
	} `json:"status"`
}

// History fetches the raw per-node output map for a finished job, or
// nil when the job is not yet in history.
func (c *Client) History(ctx context.Context, jobID string) (map[string]json.RawMessage, error) {
	entry, err := c.historyEntry(ctx, jobID)
	if err != nil || entry == nil {
		return nil, err
	}
	return entry.Outputs, nil
}

func (c *Client) historyEntry(ctx context.Context, jobID string) (*historyEntry, error) {
	var payload map[string]historyEntry
	if err := c.getJSON(ctx, "/history/"+jobID, &payload); err != nil {
		return nil, err
	}
	entry, ok := payload[jobID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// DeleteHistory removes one job from server history. Best-effort.
func (c *Client) DeleteHistory(ctx context.Context, jobID string) bool {
	status, _, err := c.postJSON(ctx, "/history", map[string]any{"delete": []string{jobID}})
	return err == nil && status == http.StatusOK
}

// ClearHistory removes all server history. Best-effort.
func (c *Client) ClearHistory(ctx context.Context) bool {
	status, _, err := c.postJSON(ctx, "/history", map[string]any{"clear": true})
	return err == nil && status == http.StatusOK
}

// Poll recomputes the job's status from scratch.
//
// History is consulted first, then the running queue, then the pending
// queue. That ordering keeps observed transitions monotonic
// (pending -> running -> terminal): a job can never read as "not
// found" between leaving a queue and appearing in history, because
// history is checked before the queues on every poll.
func (c *Client) Poll(ctx context.Context, handle *JobHandle) *JobStatus {
	entry, err := c.historyEntry(ctx, handle.ID)
	if err == nil && entry != nil {
		return statusFromHistory(entry)
	}
	// A transport failure reading history falls through to the queue
	// check, which will classify the same failure.

	snap, qErr := c.queue(ctx)
	if qErr != nil {
		fault := faults.ClassifyTransport("poll", qErr)
		return &JobStatus{State: JobStateError, Fault: fault, Message: fault.Error()}
	}

	if snap.contains(snap.Running, handle.ID) {
		return &JobStatus{State: JobStateRunning, Progress: 50}
	}
	if snap.contains(snap.Pending, handle.ID) {
		return &JobStatus{State: JobStatePending, Progress: 0}
	}

	fault := faults.New("poll", faults.ErrUnclassified, "job not found in queue or history")
	return &JobStatus{State: JobStateError, Fault: fault, Message: fault.Message}
}

func statusFromHistory(entry *historyEntry) *JobStatus {
	if entry.Status.StatusStr == "error" ||
		(entry.Status.Completed != nil && !*entry.Status.Completed) {
		fault := executionFault(entry)
		return &JobStatus{State: JobStateError, Fault: fault, Message: fault.Message}
	}
	return &JobStatus{
		State:    JobStateCompleted,
		Progress: 100,
		Outputs:  collectOutputRefs(entry.Outputs),
	}
}

// executionFault extracts and classifies the failure message from a
// history entry's status message log.
func executionFault(entry *historyEntry) *faults.Fault {
	for _, msg := range entry.Status.Messages {
		if len(msg) < 2 {
			continue
		}
		var tag string
		if err := json.Unmarshal(msg[0], &tag); err != nil || tag != "execution_error" {
			continue
		}
		var detail struct {
			NodeType         string `json:"node_type"`
			ExceptionMessage string `json:"exception_message"`
		}
		if err := json.Unmarshal(msg[1], &detail); err != nil {
			continue
		}
		fault := faults.Classify("poll", detail.ExceptionMessage)
		if detail.NodeType != "" && fault.Message != "" {
			fault.Message = detail.NodeType + ": " + fault.Message
		}
		return fault
	}
	return faults.New("poll", faults.ErrUnclassified, "job failed without an execution error message")
}

// collectOutputRefs gathers every asset reference in the per-node
// output map, scanning nodes in ascending id order. Image-style
// outputs arrive as lists of filename dicts; mesh exporters instead
// report bare filesystem paths under keys like glb_path or mesh_path,
// which are mapped onto references as well.
func collectOutputRefs(outputs map[string]json.RawMessage) []OutputRef {
	var refs []OutputRef
	for _, nodeID := range sortedNodeIDs(outputs) {
		var node map[string]json.RawMessage
		if err := json.Unmarshal(outputs[nodeID], &node); err != nil {
			continue
		}
		for _, key := range defaultOutputKeys {
			var assets []OutputRef
			if err := json.Unmarshal(node[key], &assets); err != nil {
				continue
			}
			for _, a := range assets {
				if a.Filename == "" {
					continue
				}
				if a.FolderType == "" {
					a.FolderType = "output"
				}
				refs = append(refs, a)
			}
		}
		refs = append(refs, collectPathRefs(node)...)
	}
	return refs
}

// pathOutputKeys are node output keys whose values are bare paths
// rather than filename dicts.
var pathOutputKeys = []string{"glb_path", "file_path", "mesh_path"}

// collectPathRefs extracts string-path outputs from one node: the
// well-known path keys first, then any other string value that names
// a mesh file, so exporters with nonstandard keys still surface.
func collectPathRefs(node map[string]json.RawMessage) []OutputRef {
	var refs []OutputRef
	for _, key := range pathOutputKeys {
		for _, p := range stringValues(node[key]) {
			if p != "" {
				refs = append(refs, refFromPath(p))
			}
		}
	}
	for _, key := range sortedNodeIDs(node) {
		if slices.Contains(pathOutputKeys, key) {
			continue
		}
		for _, p := range stringValues(node[key]) {
			if isMeshPath(p) {
				refs = append(refs, refFromPath(p))
			}
		}
	}
	return refs
}

// stringValues decodes a raw JSON value as a string or a list of
// strings, returning nil for anything else.
func stringValues(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

func isMeshPath(p string) bool {
	return strings.HasSuffix(p, ".glb") || strings.HasSuffix(p, ".gltf")
}

// refFromPath maps a filesystem path from a node output onto an asset
// reference. Only the portion below the server's output directory is
// addressable through /view, so any leading prefix is stripped.
func refFromPath(p string) OutputRef {
	p = strings.ReplaceAll(p, `\`, "/")
	if i := strings.LastIndex(p, "/output/"); i >= 0 {
		p = p[i+len("/output/"):]
	}
	ref := OutputRef{Filename: path.Base(p), FolderType: "output"}
	if dir := path.Dir(p); dir != "." && !strings.HasPrefix(dir, "/") {
		ref.Subfolder = dir
	}
	return ref
}

// WaitUntilDone polls on a fixed interval until the job completes
// (true) or errors/times out (false). Built strictly from Poll.
func (c *Client) WaitUntilDone(ctx context.Context, handle *JobHandle, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status := c.Poll(ctx, handle)
		switch status.State {
		case JobStateCompleted:
			return true
		case JobStateError:
			c.log.Debug("job failed while waiting",
				zap.String("job_id", handle.ID), zap.String("error", status.Message))
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.pollInterval):
		}
	}
	return false
}
