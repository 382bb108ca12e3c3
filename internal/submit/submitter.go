// Package submit performs the blocking batch submission against the
// destination import endpoint.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/stitchload/stitchload/internal/errors"
	"github.com/stitchload/stitchload/pkg/types"
)

// Submitter posts batch envelopes to the configured endpoint. Submission
// is deliberately synchronous: the caller does not read further input
// while a submit is in flight, which gives the run natural backpressure.
type Submitter struct {
	client  *http.Client
	baseURL string
	path    string
	token   string
}

// NewSubmitter creates a submitter for the given endpoint host and path.
// The host may carry an explicit scheme (used by tests and S3-compatible
// local endpoints); it defaults to https. Pass nil for http.DefaultClient;
// any client-side deadline comes from the client.
func NewSubmitter(client *http.Client, host, path, token string) *Submitter {
	if client == nil {
		client = http.DefaultClient
	}
	baseURL := host
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}
	return &Submitter{
		client:  client,
		baseURL: baseURL,
		path:    path,
		token:   token,
	}
}

// Submit serializes one batch envelope and performs a single blocking
// POST with bearer-token authorization. The response body is returned as
// opaque text for diagnostics; it is never parsed for structured errors.
// Any transport failure or non-2xx status is fatal to the run.
func (s *Submitter) Submit(ctx context.Context, schema json.RawMessage, tableName string, ops []types.Operation) (string, error) {
	envelope := types.BatchEnvelope{
		Schema:    schema,
		TableName: tableName,
		Messages:  ops,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return "", errors.NewInternalError("failed to serialize batch envelope", err)
	}

	url := s.baseURL + s.path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.NewSubmitError("failed to build batch request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.NewSubmitError("batch submit request failed", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewSubmitError("failed to read batch response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.NewSubmitError(
			fmt.Sprintf("batch submit returned status %d: %s", resp.StatusCode, truncate(string(text), 512)), nil)
	}

	return string(text), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
