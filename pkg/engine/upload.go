package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/noderig/noderig/pkg/faults"
)

// UploadImage sends caller-provided input bytes to the server. The
// returned server filename must be used when referencing the file in a
// job input.
func (c *Client) UploadImage(ctx context.Context, data []byte, filename, subfolder string, overwrite bool) (*UploadResult, error) {
	if filename == "" {
		return nil, fmt.Errorf("upload filename is required")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if overwrite {
		if err := w.WriteField("overwrite", "true"); err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
	}
	if subfolder != "" {
		if err := w.WriteField("subfolder", subfolder); err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, faults.ClassifyTransport("upload", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.ClassifyTransport("upload", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, faults.ClassifyRejection("upload", body)
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if result.Name == "" {
		result.Name = filename
	}
	return &result, nil
}
