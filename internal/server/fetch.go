package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/noderig/noderig/pkg/assets"
	"github.com/noderig/noderig/pkg/faults"
)

// assetFetcher resolves asset bytes: a locally visible output
// directory first, the execution server's view endpoint otherwise.
type assetFetcher struct {
	baseURL    string
	outputRoot string
	http       *http.Client
}

func newAssetFetcher(baseURL, outputRoot string) *assetFetcher {
	return &assetFetcher{
		baseURL:    baseURL,
		outputRoot: outputRoot,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *assetFetcher) Fetch(ctx context.Context, rec *assets.Record) ([]byte, error) {
	if p := rec.LocalPath(f.outputRoot); p != "" {
		b, err := os.ReadFile(p)
		if err == nil {
			return b, nil
		}
		// Fall through to HTTP; the file may have been removed since
		// the path was probed.
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.ViewURL(f.baseURL), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, faults.ClassifyTransport("fetch asset", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, faults.Classify("fetch asset", fmt.Sprintf("HTTP %d fetching %s", resp.StatusCode, rec.Filename))
	}
	return io.ReadAll(resp.Body)
}
