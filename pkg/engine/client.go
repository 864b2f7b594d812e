// Package engine is the HTTP client for the node-graph execution
// server: job submission, queue/history polling, schema introspection,
// input upload, and best-effort control operations.
//
// Calls are synchronous and blocking; concurrency belongs to the
// caller. The client holds no cross-call mutable state beyond a model
// catalog cache that is safe to refresh redundantly.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noderig/noderig/pkg/faults"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the server's base address, e.g. "http://localhost:8188".
	BaseURL string

	// SessionID keys this client's submissions and its progress
	// stream. Generated when empty.
	SessionID string

	// HTTPTimeout bounds each individual request. Default 30s.
	HTTPTimeout time.Duration

	// PollInterval is the sleep between status polls in WaitUntilDone.
	// Default 2s.
	PollInterval time.Duration

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

// Client talks to one execution server.
type Client struct {
	baseURL      string
	session      string
	http         *http.Client
	pollInterval time.Duration
	log          *zap.Logger

	// Model catalogs by kind. Redundant refresh is harmless; the lock
	// only keeps the map itself coherent.
	modelMu sync.Mutex
	models  map[string][]string
}

// New builds a Client. The base URL is required.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("engine base URL is required")
	}

	session := cfg.SessionID
	if session == "" {
		session = uuid.New().String()
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		baseURL:      base,
		session:      session,
		http:         &http.Client{Timeout: timeout},
		pollInterval: interval,
		log:          log,
		models:       map[string][]string{},
	}, nil
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string { return c.baseURL }

// SessionID returns the client's session identifier. The progress
// monitor shares it so streamed events correlate with submissions.
func (c *Client) SessionID() string { return c.session }

// IsAvailable probes server reachability. Never returns an error;
// any failure reads as unavailable.
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/system_stats", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Stats fetches the server's device summary.
func (c *Client) Stats(ctx context.Context) (*SystemStats, error) {
	var payload struct {
		Devices []struct {
			VRAMTotal int64 `json:"vram_total"`
			VRAMFree  int64 `json:"vram_free"`
		} `json:"devices"`
	}
	if err := c.getJSON(ctx, "/system_stats", &payload); err != nil {
		return &SystemStats{Connected: false, Error: err.Error()}, err
	}

	stats := &SystemStats{Connected: true}
	if len(payload.Devices) > 0 {
		stats.VRAMTotal = payload.Devices[0].VRAMTotal
		stats.VRAMFree = payload.Devices[0].VRAMFree
	}
	return stats, nil
}

// getJSON performs a GET and decodes a JSON body. Non-200 responses
// and transport failures are classified.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return faults.ClassifyTransport("get "+path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return faults.ClassifyTransport("get "+path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return faults.Classify("get "+path, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(body, 500)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// postJSON performs a POST with a JSON body and returns the raw
// response body along with the status code.
func (c *Client) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, faults.ClassifyTransport("post "+path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, faults.ClassifyTransport("post "+path, err)
	}
	return resp.StatusCode, body, nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}
