// Package monitor consumes the execution server's websocket stream and
// turns inbound frames into typed progress events.
//
// The monitor is strictly an enhancement: the engine's polling
// determines completion on its own, with or without a connected
// monitor. Reconnection after a drop is the caller's responsibility.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultBuffer = 64

// Monitor owns one background connection whose frames are published
// onto a bounded event channel. Callers drain Events on their own
// goroutine; when they fall behind, newest events are dropped and
// counted rather than blocking frame delivery.
type Monitor struct {
	wsURL  string
	log    *zap.Logger
	dialer *websocket.Dialer

	conn      *websocket.Conn
	events    chan Event
	connected atomic.Bool
	dropped   atomic.Int64

	// Per-node progress, used to derive an overall percentage for
	// events that don't carry their own numeric progress.
	mu           sync.Mutex
	nodeProgress map[string]nodeFraction
	currentJob   string
}

type nodeFraction struct {
	value int
	max   int
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor's logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Monitor) { m.log = log }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Monitor) { m.dialer = d }
}

// New builds a monitor for the server at baseURL, keyed by the same
// session id used for submissions so streamed events correlate with
// this client's jobs.
func New(baseURL, sessionID string, opts ...Option) *Monitor {
	ws := strings.TrimRight(baseURL, "/")
	ws = strings.Replace(ws, "https://", "wss://", 1)
	ws = strings.Replace(ws, "http://", "ws://", 1)
	ws += "/ws?clientId=" + url.QueryEscape(sessionID)

	m := &Monitor{
		wsURL:        ws,
		log:          zap.NewNop(),
		dialer:       websocket.DefaultDialer,
		events:       make(chan Event, defaultBuffer),
		nodeProgress: map[string]nodeFraction{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect dials the stream and starts the delivery goroutine. The
// context bounds the handshake only; the connection itself lives until
// Close or a read failure. Each successful Connect starts a fresh
// event stream, so call Events again after reconnecting.
func (m *Monitor) Connect(ctx context.Context) error {
	if m.connected.Load() {
		return nil
	}

	conn, _, err := m.dialer.DialContext(ctx, m.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial progress stream: %w", err)
	}

	m.mu.Lock()
	if m.connected.Load() {
		m.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	m.conn = conn
	m.events = make(chan Event, defaultBuffer)
	m.nodeProgress = map[string]nodeFraction{}
	events := m.events
	m.connected.Store(true)
	m.mu.Unlock()

	go m.readLoop(conn, events)
	return nil
}

// Connected reports whether the stream is currently up. A failed
// connection flips this false; there is no automatic retry.
func (m *Monitor) Connected() bool {
	return m.connected.Load()
}

// Events returns the current connection's event channel. It is closed
// when the connection ends, so a plain range loop terminates with the
// stream; a later Connect replaces it.
func (m *Monitor) Events() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

// Dropped returns how many events were discarded because the caller
// was not draining the channel.
func (m *Monitor) Dropped() int64 {
	return m.dropped.Load()
}

// Close tears down the connection. The event channel closes once the
// delivery goroutine observes the closed socket.
func (m *Monitor) Close() error {
	m.connected.Store(false)
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// OverallPercent is the arithmetic mean of each seen node's own
// completion fraction.
func (m *Monitor) OverallPercent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overallLocked()
}

func (m *Monitor) overallLocked() float64 {
	if len(m.nodeProgress) == 0 {
		return 0
	}
	var total float64
	for _, p := range m.nodeProgress {
		if p.max > 0 {
			total += float64(p.value) / float64(p.max)
		}
	}
	return total / float64(len(m.nodeProgress)) * 100
}

func (m *Monitor) readLoop(conn *websocket.Conn, events chan Event) {
	defer func() {
		m.connected.Store(false)
		close(events)
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if m.connected.Load() {
				m.log.Debug("progress stream closed", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			// Binary frames carry preview image data; not progress.
			continue
		}

		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if ev, ok := m.mapFrame(frame.Type, frame.Data); ok {
			m.publish(events, ev)
		}
	}
}

// publish never blocks frame delivery: when the channel is full the
// event is dropped and counted. The channel is passed in so a stale
// delivery goroutine can never touch a newer connection's stream.
func (m *Monitor) publish(events chan Event, ev Event) {
	select {
	case events <- ev:
	default:
		m.dropped.Add(1)
	}
}

// mapFrame turns one inbound frame into exactly one event.
func (m *Monitor) mapFrame(frameType string, data json.RawMessage) (Event, bool) {
	var body struct {
		PromptID         string   `json:"prompt_id"`
		Node             *string  `json:"node"`
		Value            int      `json:"value"`
		Max              int      `json:"max"`
		Nodes            []string `json:"nodes"`
		ExceptionMessage string   `json:"exception_message"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return Event{}, false
		}
	}

	switch frameType {
	case "execution_start":
		m.mu.Lock()
		m.currentJob = body.PromptID
		m.nodeProgress = map[string]nodeFraction{}
		m.mu.Unlock()
		return Event{Type: EventStart, JobID: body.PromptID, Message: "execution started"}, true

	case "executing":
		if body.Node == nil {
			return Event{Type: EventComplete, JobID: body.PromptID, Percent: 100, Message: "execution complete"}, true
		}
		m.mu.Lock()
		pct := m.overallLocked()
		m.mu.Unlock()
		return Event{
			Type: EventNodeStart, JobID: body.PromptID, Node: *body.Node,
			Percent: pct, Message: fmt.Sprintf("executing node %s", *body.Node),
		}, true

	case "progress":
		node := ""
		if body.Node != nil {
			node = *body.Node
		}
		m.mu.Lock()
		m.nodeProgress[node] = nodeFraction{value: body.Value, max: body.Max}
		m.mu.Unlock()

		pct := 0.0
		if body.Max > 0 {
			pct = float64(body.Value) / float64(body.Max) * 100
		}
		return Event{
			Type: EventProgress, JobID: body.PromptID, Node: node,
			Value: body.Value, Max: body.Max, Percent: pct,
			Message: fmt.Sprintf("node %s: %d/%d", node, body.Value, body.Max),
		}, true

	case "executed":
		node := ""
		if body.Node != nil {
			node = *body.Node
		}
		m.mu.Lock()
		pct := m.overallLocked()
		m.mu.Unlock()
		return Event{
			Type: EventNodeComplete, JobID: body.PromptID, Node: node,
			Percent: pct, Message: fmt.Sprintf("node %s complete", node),
		}, true

	case "execution_cached":
		return Event{
			Type: EventCached, JobID: body.PromptID, Nodes: body.Nodes,
			Message: fmt.Sprintf("using cached results for %d nodes", len(body.Nodes)),
		}, true

	case "execution_error":
		msg := body.ExceptionMessage
		if msg == "" {
			msg = "unknown error"
		}
		return Event{Type: EventError, JobID: body.PromptID, Message: msg}, true

	default:
		return Event{}, false
	}
}
