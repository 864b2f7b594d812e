// Package assets is the in-memory registry of produced artifacts:
// deduplicated by stable identity, time-bounded by TTL.
//
// The registry is explicitly reset-on-restart; callers needing
// durability persist asset ids themselves.
package assets

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
)

// DefaultTTL bounds a record's lifetime when the registration does not
// specify one.
const DefaultTTL = 24 * time.Hour

// Registration carries the inputs to Register.
type Registration struct {
	Filename   string
	Subfolder  string
	FolderType string
	JobID      string
	GraphID    string
	MimeType   string
	Width      int
	Height     int
	ByteSize   int64
	SHA256     string
	SessionID  string
	TTL        time.Duration

	History      json.RawMessage
	SubmittedJob json.RawMessage
}

// Registry deduplicates and time-bounds asset records.
//
// All methods are safe for concurrent use: one mutex guards the
// identity and id maps, serializing the check-then-create in Register
// so at most one record exists per identity.
type Registry struct {
	mu    sync.Mutex
	byID  map[string]*Record
	byKey map[string]string
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets the default record lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithClock overrides the time source. Tests use this to force expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byID:  map[string]*Record{},
		byKey: map[string]string{},
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records an artifact under its stable identity.
//
// A live record with the same identity is returned as-is, aside from
// refreshing the mutable execution metadata when supplied. An expired
// record is replaced. The returned copy is a snapshot; later registry
// mutations do not affect it.
func (r *Registry) Register(reg Registration) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identityKey(reg.Filename, reg.Subfolder, reg.FolderType)
	now := r.now()

	if id, ok := r.byKey[key]; ok {
		if rec, ok := r.byID[id]; ok {
			if rec.ExpiresAt != nil && now.After(*rec.ExpiresAt) {
				delete(r.byID, id)
				delete(r.byKey, key)
			} else {
				if reg.History != nil {
					rec.History = reg.History
				}
				if reg.SubmittedJob != nil {
					rec.SubmittedJob = reg.SubmittedJob
				}
				snapshot := *rec
				return &snapshot
			}
		}
	}

	ttl := reg.TTL
	if ttl <= 0 {
		ttl = r.ttl
	}
	expires := now.Add(ttl)

	mime := reg.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	folderType := reg.FolderType
	if folderType == "" {
		folderType = "output"
	}

	rec := &Record{
		AssetID:      uuid.New().String(),
		Filename:     reg.Filename,
		Subfolder:    reg.Subfolder,
		FolderType:   folderType,
		JobID:        reg.JobID,
		GraphID:      reg.GraphID,
		CreatedAt:    now,
		ExpiresAt:    &expires,
		MimeType:     mime,
		Width:        reg.Width,
		Height:       reg.Height,
		ByteSize:     reg.ByteSize,
		SHA256:       reg.SHA256,
		SessionID:    reg.SessionID,
		History:      reg.History,
		SubmittedJob: reg.SubmittedJob,
	}
	r.byID[rec.AssetID] = rec
	r.byKey[rec.Key()] = rec.AssetID

	snapshot := *rec
	return &snapshot
}

// Get returns the record for an asset id, or nil when unknown.
// Reading an expired record evicts it and returns nil; "not found" is
// the caller's decision to make, never an error here.
func (r *Registry) Get(assetID string) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(assetID)
}

func (r *Registry) getLocked(assetID string) *Record {
	rec, ok := r.byID[assetID]
	if !ok {
		return nil
	}
	if rec.ExpiresAt != nil && r.now().After(*rec.ExpiresAt) {
		delete(r.byID, assetID)
		delete(r.byKey, rec.Key())
		return nil
	}
	snapshot := *rec
	return &snapshot
}

// GetByIdentity looks up a record by its stable identity triple.
func (r *Registry) GetByIdentity(filename, subfolder, folderType string) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byKey[identityKey(filename, subfolder, folderType)]
	if !ok {
		return nil
	}
	return r.getLocked(id)
}

// ListOptions filters List results.
type ListOptions struct {
	// Limit caps the result count; 0 means 10.
	Limit int

	// JobID and SessionID filter to records owned by one job/session.
	JobID     string
	SessionID string

	// Match is a doublestar glob applied to the subfolder-qualified
	// filename, e.g. "renders/**/*.png".
	Match string
}

// List returns live records newest-first, sweeping expired entries
// first so listings never contain dead records.
func (r *Registry) List(opts ListOptions) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cleanupLocked()

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	out := make([]Record, 0, len(r.byID))
	for _, rec := range r.byID {
		if opts.JobID != "" && rec.JobID != opts.JobID {
			continue
		}
		if opts.SessionID != "" && rec.SessionID != opts.SessionID {
			continue
		}
		if opts.Match != "" {
			ok, err := doublestar.Match(opts.Match, rec.RelPath())
			if err != nil || !ok {
				continue
			}
		}
		out = append(out, *rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CleanupExpired sweeps expired records and returns how many were
// evicted. Invoked opportunistically by callers; the registry runs no
// background timer of its own.
func (r *Registry) CleanupExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanupLocked()
}

func (r *Registry) cleanupLocked() int {
	now := r.now()
	count := 0
	for id, rec := range r.byID {
		if rec.ExpiresAt != nil && now.After(*rec.ExpiresAt) {
			delete(r.byID, id)
			delete(r.byKey, rec.Key())
			count++
		}
	}
	return count
}

// Len returns the number of live records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
