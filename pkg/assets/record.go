package assets

import (
	"net/url"
	"strings"
	"time"

	"encoding/json"
)

// Record describes one produced artifact.
//
// Identity is the (filename, subfolder, folder type) triple rather
// than a URL, so records survive server hostname or port changes.
// Records are immutable snapshots from the caller's perspective; the
// registry owns the live copy.
type Record struct {
	AssetID    string `json:"asset_id"`
	Filename   string `json:"filename"`
	Subfolder  string `json:"subfolder"`
	FolderType string `json:"folder_type"`

	JobID   string `json:"job_id"`
	GraphID string `json:"graph_id"`

	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	MimeType  string `json:"mime_type"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	ByteSize  int64  `json:"byte_size"`
	SHA256    string `json:"sha256,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// History and SubmittedJob are mutable execution metadata,
	// refreshed when the same identity is re-registered.
	History      json.RawMessage `json:"history,omitempty"`
	SubmittedJob json.RawMessage `json:"submitted_job,omitempty"`
}

// identityKey computes the stable dedup key.
func identityKey(filename, subfolder, folderType string) string {
	return folderType + ":" + subfolder + ":" + filename
}

// Key returns the record's stable identity key.
func (r *Record) Key() string {
	return identityKey(r.Filename, r.Subfolder, r.FolderType)
}

// ViewURL builds the artifact fetch URL against a server base address.
func (r *Record) ViewURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	q := url.Values{}
	q.Set("filename", r.Filename)
	if r.Subfolder != "" {
		q.Set("subfolder", r.Subfolder)
	}
	q.Set("type", r.FolderType)
	return base + "/view?" + q.Encode()
}

// RelPath is the subfolder-qualified filename, used for glob matching
// and local path resolution.
func (r *Record) RelPath() string {
	if r.Subfolder != "" {
		return r.Subfolder + "/" + r.Filename
	}
	return r.Filename
}
