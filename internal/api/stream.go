package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/previewlabs/previewctl/internal/types"
)

// LogStream is a long-lived subscription of new log entries for one session.
// Entries are delivered by the server as a JSON-lines body on a chunked
// response; the stream ends when the server closes the connection or Close
// is called.
type LogStream struct {
	body io.ReadCloser
	dec  *json.Decoder
}

// StreamLogs opens a push subscription for new log entries. The returned
// stream must be closed by the caller. The request is not rate-limited or
// retried; reconnect policy belongs to the logstream manager.
func (c *Client) StreamLogs(ctx context.Context, sessionID string) (*LogStream, error) {
	path := "/api/observability/logs/" + url.PathEscape(sessionID) + "/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "application/x-ndjson")

	// Bypass c.http: its per-request timeout would kill a healthy
	// long-lived stream. Cancellation comes from ctx instead.
	client := &http.Client{Transport: c.http.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := readErrorMessage(resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Message: msg, Endpoint: path}
	}

	return &LogStream{
		body: resp.Body,
		dec:  json.NewDecoder(resp.Body),
	}, nil
}

// Next blocks until the next entry arrives. Returns io.EOF when the server
// closes the stream cleanly.
func (s *LogStream) Next() (types.LogEntry, error) {
	var entry types.LogEntry
	if err := s.dec.Decode(&entry); err != nil {
		if err == io.EOF {
			return entry, io.EOF
		}
		return entry, fmt.Errorf("failed to decode log entry: %w", err)
	}
	return entry, nil
}

// Close tears down the underlying connection. Safe to call concurrently
// with a blocked Next; the blocked call returns an error.
func (s *LogStream) Close() error {
	return s.body.Close()
}
