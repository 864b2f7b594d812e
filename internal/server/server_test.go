package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noderig/noderig/internal/config"
	"github.com/noderig/noderig/internal/server/middleware"
	"github.com/noderig/noderig/pkg/assets"
	"github.com/noderig/noderig/pkg/compiler"
	"github.com/noderig/noderig/pkg/engine"
	"github.com/noderig/noderig/pkg/schema"
)

type fakeEngine struct {
	queueErr error
}

func (f *fakeEngine) Submit(ctx context.Context, job compiler.Job) (*engine.JobHandle, error) {
	return &engine.JobHandle{ID: "job-1", SessionID: "sess"}, nil
}

func (f *fakeEngine) Poll(ctx context.Context, handle *engine.JobHandle) *engine.JobStatus {
	return &engine.JobStatus{State: engine.JobStatePending}
}

func (f *fakeEngine) Cancel(ctx context.Context, handle *engine.JobHandle) error { return nil }

func (f *fakeEngine) Queue(ctx context.Context) (*engine.QueueInfo, error) {
	return &engine.QueueInfo{}, f.queueErr
}

func (f *fakeEngine) FetchSchema(ctx context.Context, nodeType string) (*schema.Schema, error) {
	return nil, nil
}

func (f *fakeEngine) SessionID() string { return "sess" }

func testServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(
		config.ServerConfig{Host: "127.0.0.1", Port: 0},
		config.PreviewConfig{},
		"http://localhost:8188",
		Deps{
			Engine:   &fakeEngine{},
			Registry: assets.NewRegistry(),
			Version:  "test",
		},
	)
	require.NoError(t, err)
	return srv
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_RoutesRegistered(t *testing.T) {
	srv := testServer(t)

	for _, tc := range []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodGet, "/v1/queue", http.StatusOK},
		{http.MethodGet, "/v1/jobs/abc", http.StatusOK},
		{http.MethodGet, "/v1/assets", http.StatusOK},
		{http.MethodGet, "/v1/assets/ghost", http.StatusNotFound},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestServer_HealthReflectsEngine(t *testing.T) {
	eng := &fakeEngine{queueErr: assert.AnError}
	srv, err := New(
		config.ServerConfig{Host: "127.0.0.1", Port: 0},
		config.PreviewConfig{},
		"http://localhost:8188",
		Deps{Engine: eng, Registry: assets.NewRegistry(), Version: "test"},
	)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_RequiresDeps(t *testing.T) {
	_, err := New(config.ServerConfig{}, config.PreviewConfig{}, "", Deps{})
	require.Error(t, err)

	_, err = New(config.ServerConfig{}, config.PreviewConfig{}, "", Deps{Engine: &fakeEngine{}})
	require.Error(t, err)
}

func TestServer_Port(t *testing.T) {
	srv, err := New(
		config.ServerConfig{Host: "127.0.0.1", Port: 9000},
		config.PreviewConfig{},
		"http://localhost:8188",
		Deps{Engine: &fakeEngine{}, Registry: assets.NewRegistry()},
	)
	require.NoError(t, err)
	assert.Equal(t, 9000, srv.Port())
}

func TestAssetFetcher_LocalFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "out.png"), []byte("local-bytes"), 0o644))

	f := newAssetFetcher("http://127.0.0.1:1", root)
	rec := &assets.Record{Filename: "out.png", FolderType: "output"}

	b, err := f.Fetch(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, []byte("local-bytes"), b)
}

func TestAssetFetcher_HTTPFallback(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/view", r.URL.Path)
		require.Equal(t, "out.png", r.URL.Query().Get("filename"))
		_, _ = w.Write([]byte("remote-bytes"))
	}))
	defer remote.Close()

	f := newAssetFetcher(remote.URL, t.TempDir())
	rec := &assets.Record{Filename: "out.png", FolderType: "output"}

	b, err := f.Fetch(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, []byte("remote-bytes"), b)
}
