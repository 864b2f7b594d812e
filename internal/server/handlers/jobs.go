package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/server/middleware"
	"github.com/noderig/noderig/pkg/assets"
	"github.com/noderig/noderig/pkg/compiler"
	"github.com/noderig/noderig/pkg/engine"
	"github.com/noderig/noderig/pkg/faults"
	"github.com/noderig/noderig/pkg/graph"
	"github.com/noderig/noderig/pkg/schema"
)

// JobEngine is the slice of the execution client the job endpoints use.
type JobEngine interface {
	Submit(ctx context.Context, job compiler.Job) (*engine.JobHandle, error)
	Poll(ctx context.Context, handle *engine.JobHandle) *engine.JobStatus
	Cancel(ctx context.Context, handle *engine.JobHandle) error
	Queue(ctx context.Context) (*engine.QueueInfo, error)
	FetchSchema(ctx context.Context, nodeType string) (*schema.Schema, error)
	SessionID() string
}

// AssetRegistrar records produced artifacts. Registration is
// idempotent per identity, so re-polling a completed job is harmless.
type AssetRegistrar interface {
	Register(reg assets.Registration) *assets.Record
}

// Jobs serves job submission, polling, and cancellation.
type Jobs struct {
	Engine    JobEngine
	Registrar AssetRegistrar
	Log       *zap.Logger
}

// submitRequest accepts either an editor-format graph or an
// already-flat job document.
type submitRequest struct {
	Graph json.RawMessage `json:"graph,omitempty"`
	Job   json.RawMessage `json:"job,omitempty"`
}

type submitResponse struct {
	JobID     string `json:"job_id"`
	SessionID string `json:"session_id"`
}

// Submit handles POST /v1/jobs.
func (h *Jobs) Submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
	if err != nil {
		middleware.WriteError(w, r, http.StatusRequestEntityTooLarge,
			"PAYLOAD_TOO_LARGE", "request body too large")
		return
	}

	var req submitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest,
			"INVALID_REQUEST", "request body is not valid JSON")
		return
	}

	job, err := h.buildJob(r.Context(), req)
	if err != nil {
		var cerr *compiler.CompileError
		if errors.As(err, &cerr) {
			middleware.WriteError(w, r, http.StatusUnprocessableEntity,
				"COMPILE_FAILED", cerr.Error())
			return
		}
		middleware.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	handle, err := h.Engine.Submit(r.Context(), job)
	if err != nil {
		writeFault(w, r, err)
		return
	}

	h.Log.Info("job accepted",
		zap.String("job_id", handle.ID),
		zap.String("request_id", middleware.RequestIDFrom(r.Context())))
	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:     handle.ID,
		SessionID: handle.SessionID,
	})
}

func (h *Jobs) buildJob(ctx context.Context, req submitRequest) (compiler.Job, error) {
	switch {
	case len(req.Job) > 0:
		return compiler.ParseJob(req.Job)

	case len(req.Graph) > 0:
		g, err := graph.Parse(req.Graph)
		if err != nil {
			return nil, err
		}
		// Schema lookup is best-effort; compilation degrades to the
		// static widget tables when the server cannot be introspected.
		s, err := h.Engine.FetchSchema(ctx, "")
		if err != nil {
			h.Log.Warn("schema fetch failed, compiling without it", zap.Error(err))
			s = nil
		}
		return compiler.Compile(g, s)

	default:
		return nil, errors.New("request must carry a graph or a job")
	}
}

// Status handles GET /v1/jobs/{id}. Outputs of a completed job are
// registered as assets as a side effect of observing completion.
func (h *Jobs) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status := h.Engine.Poll(r.Context(), &engine.JobHandle{
		ID:        id,
		SessionID: h.Engine.SessionID(),
	})

	if status.State == engine.JobStateCompleted && h.Registrar != nil {
		for _, out := range status.Outputs {
			h.Registrar.Register(assets.Registration{
				Filename:   out.Filename,
				Subfolder:  out.Subfolder,
				FolderType: out.FolderType,
				JobID:      id,
				SessionID:  h.Engine.SessionID(),
			})
		}
	}

	writeJSON(w, http.StatusOK, status)
}

// Cancel handles DELETE /v1/jobs/{id}.
func (h *Jobs) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.Cancel(r.Context(), &engine.JobHandle{ID: id}); err != nil {
		writeFault(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QueueInfo handles GET /v1/queue.
func (h *Jobs) QueueInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.Engine.Queue(r.Context())
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// writeFault maps the fault taxonomy onto HTTP status codes.
func writeFault(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	switch {
	case faults.IsRejected(err), faults.IsMissingDependency(err), faults.IsMissingCapability(err):
		status, code = http.StatusUnprocessableEntity, "JOB_REJECTED"
	case faults.IsResourceExhausted(err):
		status, code = http.StatusServiceUnavailable, "RESOURCE_EXHAUSTED"
	case faults.IsUnreachable(err):
		status, code = http.StatusBadGateway, "ENGINE_UNREACHABLE"
	case faults.IsDeadline(err):
		status, code = http.StatusGatewayTimeout, "DEADLINE_EXCEEDED"
	}

	middleware.WriteError(w, r, status, code, err.Error())
}
