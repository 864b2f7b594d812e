package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/server/middleware"
	"github.com/noderig/noderig/pkg/assets"
	"github.com/noderig/noderig/pkg/preview"
)

// AssetStore is the slice of the registry the asset endpoints use.
type AssetStore interface {
	List(opts assets.ListOptions) []assets.Record
	Get(assetID string) *assets.Record
}

// AssetFetcher retrieves an asset's raw bytes, from local disk or the
// execution server.
type AssetFetcher interface {
	Fetch(ctx context.Context, rec *assets.Record) ([]byte, error)
}

// Assets serves the asset registry and preview endpoints.
type Assets struct {
	Store   AssetStore
	Fetcher AssetFetcher
	Cache   *preview.Cache
	Opts    preview.Options
	Log     *zap.Logger
}

// List handles GET /v1/assets.
func (h *Assets) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := assets.ListOptions{
		JobID:     q.Get("job_id"),
		SessionID: q.Get("session_id"),
		Match:     q.Get("match"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			middleware.WriteError(w, r, http.StatusBadRequest,
				"INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}

	records := h.Store.List(opts)
	writeJSON(w, http.StatusOK, map[string]any{
		"assets": records,
		"count":  len(records),
	})
}

// Get handles GET /v1/assets/{id}.
func (h *Assets) Get(w http.ResponseWriter, r *http.Request) {
	rec := h.Store.Get(chi.URLParam(r, "id"))
	if rec == nil {
		middleware.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "asset not found or expired")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type previewResponse struct {
	AssetID string `json:"asset_id"`
	DataURI string `json:"data_uri"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	CharLen int    `json:"char_len"`
}

// Preview handles GET /v1/assets/{id}/preview. Query parameters
// max_dim, max_chars, and quality tighten (never loosen) the
// configured defaults.
func (h *Assets) Preview(w http.ResponseWriter, r *http.Request) {
	rec := h.Store.Get(chi.URLParam(r, "id"))
	if rec == nil {
		middleware.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "asset not found or expired")
		return
	}

	opts, err := h.previewOptions(r)
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	raw, err := h.Fetcher.Fetch(r.Context(), rec)
	if err != nil {
		h.Log.Warn("asset fetch failed",
			zap.String("asset_id", rec.AssetID), zap.Error(err))
		writeFault(w, r, err)
		return
	}

	key := fmt.Sprintf("%s|%d|%d|%d", rec.AssetID, opts.MaxDim, opts.MaxChars, opts.Quality)
	enc, err := h.Cache.EncodeCached(key, raw, opts)
	if err != nil {
		var berr *preview.BudgetError
		if errors.As(err, &berr) {
			middleware.WriteError(w, r, http.StatusRequestEntityTooLarge,
				"PREVIEW_TOO_LARGE", berr.Error())
			return
		}
		middleware.WriteError(w, r, http.StatusUnprocessableEntity,
			"PREVIEW_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		AssetID: rec.AssetID,
		DataURI: enc.DataURI(),
		Width:   enc.Width,
		Height:  enc.Height,
		CharLen: enc.CharLen,
	})
}

func (h *Assets) previewOptions(r *http.Request) (preview.Options, error) {
	opts := h.Opts
	q := r.URL.Query()
	for name, dst := range map[string]*int{
		"max_dim":   &opts.MaxDim,
		"max_chars": &opts.MaxChars,
		"quality":   &opts.Quality,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("%s must be a positive integer", name)
		}
		*dst = n
	}
	return opts, nil
}
