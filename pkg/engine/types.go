package engine

import (
	"net/url"
	"strings"

	"github.com/noderig/noderig/pkg/faults"
)

// JobState is the lifecycle state of a submitted job as observed
// through polling.
//
// Transitions are monotonic: pending -> running -> completed|error.
// There is no distinct cancelled state; a cancelled job surfaces as
// error once it drops out of both queues without reaching history.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateError     JobState = "error"
)

// JobHandle identifies a submitted job. Immutable; the server is the
// source of truth for its lifecycle.
type JobHandle struct {
	ID        string `json:"job_id"`
	SessionID string `json:"session_id"`
}

// JobStatus is the result of one poll. It is recomputed on every poll
// and never cached across polls.
type JobStatus struct {
	State    JobState      `json:"state"`
	Progress float64       `json:"progress"`
	Outputs  []OutputRef   `json:"outputs,omitempty"`
	Fault    *faults.Fault `json:"-"`
	Message  string        `json:"error,omitempty"`
}

// OutputRef is the stable identity of a produced artifact.
type OutputRef struct {
	Filename   string `json:"filename"`
	Subfolder  string `json:"subfolder"`
	FolderType string `json:"type"`
}

// ViewURL builds the fetch URL for the reference against a base address.
func (r OutputRef) ViewURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	q := url.Values{}
	q.Set("filename", r.Filename)
	if r.Subfolder != "" {
		q.Set("subfolder", r.Subfolder)
	}
	q.Set("type", r.FolderType)
	return base + "/view?" + q.Encode()
}

// SystemStats is the server's self-reported device summary.
type SystemStats struct {
	Connected bool   `json:"connected"`
	VRAMTotal int64  `json:"vram_total,omitempty"`
	VRAMFree  int64  `json:"vram_free,omitempty"`
	Error     string `json:"error,omitempty"`
}

// UploadResult is the server-assigned location of an uploaded input file.
type UploadResult struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// ServerFilename is the value to reference in a job input: the
// server-assigned name, prefixed with its subfolder when present.
func (u UploadResult) ServerFilename() string {
	if u.Subfolder != "" {
		return u.Subfolder + "/" + u.Name
	}
	return u.Name
}
