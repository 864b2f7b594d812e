package engine

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/noderig/noderig/pkg/compiler"
	"github.com/noderig/noderig/pkg/faults"
)

// Submit queues a compiled job and returns its handle. Rejections are
// classified through the fault taxonomy before being surfaced.
func (c *Client) Submit(ctx context.Context, job compiler.Job) (*JobHandle, error) {
	if len(job) == 0 {
		return nil, faults.New("submit", faults.ErrRejected, "job is empty")
	}

	status, body, err := c.postJSON(ctx, "/prompt", map[string]any{
		"prompt":    job,
		"client_id": c.session,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, faults.ClassifyRejection("submit", body)
	}

	var resp struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.PromptID == "" {
		return nil, faults.New("submit", faults.ErrUnclassified, "response missing prompt_id")
	}

	c.log.Info("job submitted", zap.String("job_id", resp.PromptID))
	return &JobHandle{ID: resp.PromptID, SessionID: c.session}, nil
}

// queueSnapshot is the server's running/pending listing. Items are
// heterogeneous arrays [number, prompt_id, ...].
type queueSnapshot struct {
	Running [][]json.RawMessage `json:"queue_running"`
	Pending [][]json.RawMessage `json:"queue_pending"`
}

func (q *queueSnapshot) contains(list [][]json.RawMessage, jobID string) bool {
	for _, item := range list {
		if len(item) < 2 {
			continue
		}
		var id string
		if err := json.Unmarshal(item[1], &id); err != nil {
			continue
		}
		if id == jobID {
			return true
		}
	}
	return false
}

// QueueInfo summarizes the server queues.
type QueueInfo struct {
	RunningCount int      `json:"running_count"`
	PendingCount int      `json:"pending_count"`
	Running      []string `json:"running"`
	Pending      []string `json:"pending"`
}

// Queue fetches the current queue state.
func (c *Client) Queue(ctx context.Context) (*QueueInfo, error) {
	snap, err := c.queue(ctx)
	if err != nil {
		return nil, err
	}

	info := &QueueInfo{}
	for _, item := range snap.Running {
		if id, ok := itemID(item); ok {
			info.Running = append(info.Running, id)
		}
	}
	for _, item := range snap.Pending {
		if id, ok := itemID(item); ok {
			info.Pending = append(info.Pending, id)
		}
	}
	info.RunningCount = len(info.Running)
	info.PendingCount = len(info.Pending)
	return info, nil
}

func (c *Client) queue(ctx context.Context) (*queueSnapshot, error) {
	var snap queueSnapshot
	if err := c.getJSON(ctx, "/queue", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func itemID(item []json.RawMessage) (string, bool) {
	if len(item) < 2 {
		return "", false
	}
	var id string
	if err := json.Unmarshal(item[1], &id); err != nil {
		return "", false
	}
	return id, true
}

// Interrupt asks the server to stop the currently running job.
// Best-effort: false on any failure.
func (c *Client) Interrupt(ctx context.Context) bool {
	status, _, err := c.postJSON(ctx, "/interrupt", map[string]any{})
	return err == nil && status == http.StatusOK
}

// ClearQueue drops all pending jobs. Best-effort: false on any failure.
func (c *Client) ClearQueue(ctx context.Context) bool {
	status, _, err := c.postJSON(ctx, "/queue", map[string]any{"clear": true})
	return err == nil && status == http.StatusOK
}

// Cancel removes one pending job from the queue. Advisory: the server
// decides; ordinary network failures propagate as errors.
func (c *Client) Cancel(ctx context.Context, handle *JobHandle) error {
	status, body, err := c.postJSON(ctx, "/queue", map[string]any{"delete": []string{handle.ID}})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return faults.ClassifyRejection("cancel", body)
	}
	return nil
}
