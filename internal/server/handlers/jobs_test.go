package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/server/middleware"
	"github.com/noderig/noderig/pkg/assets"
	"github.com/noderig/noderig/pkg/compiler"
	"github.com/noderig/noderig/pkg/engine"
	"github.com/noderig/noderig/pkg/faults"
	"github.com/noderig/noderig/pkg/schema"
)

// stubEngine is a scriptable JobEngine.
type stubEngine struct {
	submitted compiler.Job
	submitErr error
	handle    *engine.JobHandle
	status    *engine.JobStatus
	cancelErr error
	queue     *engine.QueueInfo
	queueErr  error
	schema    *schema.Schema
	schemaErr error
}

func (s *stubEngine) Submit(ctx context.Context, job compiler.Job) (*engine.JobHandle, error) {
	s.submitted = job
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.handle, nil
}

func (s *stubEngine) Poll(ctx context.Context, handle *engine.JobHandle) *engine.JobStatus {
	return s.status
}

func (s *stubEngine) Cancel(ctx context.Context, handle *engine.JobHandle) error {
	return s.cancelErr
}

func (s *stubEngine) Queue(ctx context.Context) (*engine.QueueInfo, error) {
	return s.queue, s.queueErr
}

func (s *stubEngine) FetchSchema(ctx context.Context, nodeType string) (*schema.Schema, error) {
	return s.schema, s.schemaErr
}

func (s *stubEngine) SessionID() string { return "test-session" }

func jobsRouter(h *Jobs) chi.Router {
	r := chi.NewRouter()
	r.Post("/v1/jobs", h.Submit)
	r.Get("/v1/jobs/{id}", h.Status)
	r.Delete("/v1/jobs/{id}", h.Cancel)
	r.Get("/v1/queue", h.QueueInfo)
	return r
}

func TestJobsSubmit_Graph(t *testing.T) {
	eng := &stubEngine{handle: &engine.JobHandle{ID: "job-1", SessionID: "test-session"}}
	h := &Jobs{Engine: eng, Log: zap.NewNop()}

	body := `{"graph": {
	  "nodes": [{"id": 1, "type": "CheckpointLoaderSimple", "widgets_values": ["sd15.safetensors"]}],
	  "links": []
	}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "test-session", resp.SessionID)

	require.Contains(t, eng.submitted, "1")
	assert.Equal(t, "CheckpointLoaderSimple", eng.submitted["1"].ClassType)
	assert.Equal(t, "sd15.safetensors", eng.submitted["1"].Inputs["ckpt_name"])
}

func TestJobsSubmit_FlatJob(t *testing.T) {
	eng := &stubEngine{handle: &engine.JobHandle{ID: "job-2"}}
	h := &Jobs{Engine: eng, Log: zap.NewNop()}

	body := `{"job": {"1": {"class_type": "LoadImage", "inputs": {"image": "cat.png"}}}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "LoadImage", eng.submitted["1"].ClassType)
}

func TestJobsSubmit_BadRequests(t *testing.T) {
	h := &Jobs{Engine: &stubEngine{}, Log: zap.NewNop()}

	for name, body := range map[string]string{
		"not json":         "{",
		"neither document": `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body))
			rec := httptest.NewRecorder()
			jobsRouter(h).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
		})
	}
}

func TestJobsSubmit_CompileError(t *testing.T) {
	h := &Jobs{Engine: &stubEngine{}, Log: zap.NewNop()}

	// Two pass-through nodes feeding each other.
	body := `{"graph": {
	  "nodes": [
	    {"id": 1, "type": "Reroute", "inputs": [{"name": "", "link": 10}]},
	    {"id": 2, "type": "Reroute", "inputs": [{"name": "", "link": 11}]},
	    {"id": 3, "type": "SaveImage", "inputs": [{"name": "images", "link": 12}]}
	  ],
	  "links": [[10, 2, 0, 1, 0], [11, 1, 0, 2, 0], [12, 1, 0, 3, 0]]
	}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "COMPILE_FAILED", resp.Error.Code)
}

func TestJobsSubmit_EngineRejection(t *testing.T) {
	eng := &stubEngine{
		submitErr: faults.New("submit", faults.ErrMissingDependency, "ckpt_name not in list"),
	}
	h := &Jobs{Engine: eng, Log: zap.NewNop()}

	body := `{"job": {"1": {"class_type": "X", "inputs": {}}}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "JOB_REJECTED", resp.Error.Code)
}

func TestJobsStatus_RegistersCompletedOutputs(t *testing.T) {
	eng := &stubEngine{status: &engine.JobStatus{
		State:    engine.JobStateCompleted,
		Progress: 100,
		Outputs: []engine.OutputRef{
			{Filename: "out.png", Subfolder: "renders", FolderType: "output"},
		},
	}}
	registry := assets.NewRegistry()
	h := &Jobs{Engine: eng, Registrar: registry, Log: zap.NewNop()}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status engine.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, engine.JobStateCompleted, status.State)

	record := registry.GetByIdentity("out.png", "renders", "output")
	require.NotNil(t, record)
	assert.Equal(t, "job-1", record.JobID)
	assert.Equal(t, "test-session", record.SessionID)

	// Polling again re-registers idempotently.
	jobsRouter(h).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1", nil))
	assert.Equal(t, 1, registry.Len())
}

func TestJobsCancel(t *testing.T) {
	h := &Jobs{Engine: &stubEngine{}, Log: zap.NewNop()}

	req := httptest.NewRequest(http.MethodDelete, "/v1/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestJobsQueueInfo_EngineDown(t *testing.T) {
	eng := &stubEngine{queueErr: faults.New("get /queue", faults.ErrUnreachable, "connection refused")}
	h := &Jobs{Engine: eng, Log: zap.NewNop()}

	req := httptest.NewRequest(http.MethodGet, "/v1/queue", nil)
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ENGINE_UNREACHABLE", resp.Error.Code)
}
