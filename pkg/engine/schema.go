package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/noderig/noderig/pkg/faults"
	"github.com/noderig/noderig/pkg/schema"
)

// FetchSchema introspects node definitions from the server. With a
// node type it fetches that single entry; empty fetches the full
// catalog. Callers cache the result per compile; the client does not
// cache schemas globally.
func (c *Client) FetchSchema(ctx context.Context, nodeType string) (*schema.Schema, error) {
	path := "/object_info"
	if nodeType != "" {
		path += "/" + url.PathEscape(nodeType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, faults.ClassifyTransport("fetch schema", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.ClassifyTransport("fetch schema", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, faults.Classify("fetch schema", fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(body, 500)))
	}
	return schema.ParseObjectInfo(body)
}

// modelCatalogs maps a model kind to the loader node and enum input
// that carries the server's installed list.
var modelCatalogs = map[string]struct {
	nodeType string
	input    string
}{
	"checkpoint": {"CheckpointLoaderSimple", "ckpt_name"},
	"lora":       {"LoraLoader", "lora_name"},
	"vae":        {"VAELoader", "vae_name"},
	"controlnet": {"ControlNetLoader", "control_net_name"},
	"upscale":    {"UpscaleModelLoader", "model_name"},
}

// Models returns the server's installed model list for a kind
// (checkpoint, lora, vae, controlnet, upscale), fetching and caching
// it on first use. A nil slice means the catalog could not be read.
func (c *Client) Models(ctx context.Context, kind string) []string {
	c.modelMu.Lock()
	cached, ok := c.models[kind]
	c.modelMu.Unlock()
	if ok {
		return cached
	}
	return c.RefreshModels(ctx, kind)
}

// RefreshModels re-reads a model catalog from the server. Refreshing
// redundantly from multiple goroutines is safe; last write wins.
func (c *Client) RefreshModels(ctx context.Context, kind string) []string {
	catalog, ok := modelCatalogs[kind]
	if !ok {
		return nil
	}

	s, err := c.FetchSchema(ctx, catalog.nodeType)
	if err != nil {
		c.log.Warn("model catalog fetch failed",
			zap.String("kind", kind), zap.Error(err))
		return nil
	}
	entry := s.Entry(catalog.nodeType)
	if entry == nil {
		return nil
	}

	var names []string
	for _, in := range entry.Inputs {
		if in.Name == catalog.input && in.Kind == schema.KindEnum {
			names = in.Allowed
			break
		}
	}

	c.modelMu.Lock()
	c.models[kind] = names
	c.modelMu.Unlock()
	return names
}
