package monitor

// EventType tags a progress event.
type EventType string

const (
	EventStart        EventType = "start"
	EventNodeStart    EventType = "node_start"
	EventProgress     EventType = "progress"
	EventNodeComplete EventType = "node_complete"
	EventCached       EventType = "cached"
	EventComplete     EventType = "complete"
	EventError        EventType = "error"
)

// Event is one progress update from the execution stream. Events are
// ephemeral: consumed from the channel, never stored by the monitor.
type Event struct {
	Type    EventType `json:"type"`
	JobID   string    `json:"job_id"`
	Node    string    `json:"node,omitempty"`
	Value   int       `json:"value,omitempty"`
	Max     int       `json:"max,omitempty"`
	Percent float64   `json:"percent"`
	Nodes   []string  `json:"nodes,omitempty"`
	Message string    `json:"message"`
}
