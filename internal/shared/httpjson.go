package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of a failed reply is kept for diagnostics.
const maxErrorBody = 512

// PostJSON sends body as JSON to url and decodes a 2xx reply into out.
// Every failure is returned as a *BackendError tagged with backend and op.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any, backend, op string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return NewBackendError(backend, op, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return NewBackendError(backend, op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return NewBackendError(backend, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &BackendError{
			Backend:    backend,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrBackendStatus, bytes.TrimSpace(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewBackendError(backend, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
