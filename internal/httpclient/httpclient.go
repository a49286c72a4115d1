// Package httpclient is the shared outbound-HTTP helper used by the
// automation interpreter's webhook actions and the flow executor's webhook
// steps (spec.md §4.3, §4.4). It mirrors the raw net/http style of
// internal/notifications rather than pulling in a REST client library —
// the teacher's own webhook notifier makes the same choice.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// supportedMethods lists the methods Call accepts; any method outside
// GET/POST/PUT/DELETE/PATCH makes Call return an error.
var supportedMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodDelete: true, http.MethodPatch: true,
}

// Call performs one HTTP request with the given method/headers/body and
// timeout, returning the parsed JSON response body, or {"status":...,
// "body":...} if the body isn't valid JSON. A non-2xx status is an error
// carrying the status code and body text.
func Call(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body []byte, timeout time.Duration) (json.RawMessage, error) {
	method = strings.ToUpper(method)
	if !supportedMethods[method] {
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	var reqBody io.Reader
	if (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch) && body != nil {
		reqBody = bytes.NewReader(body)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d - %s", resp.StatusCode, string(respBody))
	}

	var parsed json.RawMessage
	if json.Valid(respBody) {
		parsed = json.RawMessage(respBody)
		return parsed, nil
	}

	fallback, _ := json.Marshal(map[string]any{
		"status": resp.StatusCode,
		"body":   string(respBody),
	})
	return fallback, nil
}
