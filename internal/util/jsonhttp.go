package util

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/stackguard/internal/resilience"
)

// maxErrorBody bounds how much of an error response is quoted in errors.
const maxErrorBody = 512

// maxResponseBody bounds how much of any response is read.
const maxResponseBody = 10 << 20

// JSONRequest describes one JSON call to a remote dependency
type JSONRequest struct {
	// Provider names the dependency in errors ("anthropic", "openfoodfacts")
	Provider string
	Method   string
	URL      string
	Header   http.Header
	// Body is marshaled as JSON when non-nil
	Body any
}

// DoJSON executes the request and decodes a 2xx body into out (which may be
// nil). Any failure is returned as a *resilience.ProviderError carrying the
// HTTP status, or 0 for transport failures.
func DoJSON(ctx context.Context, client *http.Client, req JSONRequest, out any) error {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return &resilience.ProviderError{Provider: req.Provider, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody+1))
	if err != nil {
		return &resilience.ProviderError{Provider: req.Provider, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(respBody) > maxResponseBody {
		return &resilience.ProviderError{
			Provider:   req.Provider,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("response exceeds %d bytes", maxResponseBody),
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return &resilience.ProviderError{
			Provider:   req.Provider,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("API error: %s", errorMessage(respBody)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &resilience.ProviderError{
			Provider:   req.Provider,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("unmarshal response: %w", err),
		}
	}
	return nil
}

// errorMessage extracts a human-readable message from common error shapes:
// {"error":"..."}, {"error":{"message":"..."}}, {"message":"..."}.
func errorMessage(body []byte) string {
	var shaped struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil {
		if len(shaped.Error) > 0 {
			var s string
			if json.Unmarshal(shaped.Error, &s) == nil && s != "" {
				return s
			}
			var nested struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			}
			if json.Unmarshal(shaped.Error, &nested) == nil && nested.Message != "" {
				if nested.Type != "" {
					return nested.Type + " - " + nested.Message
				}
				return nested.Message
			}
		}
		if shaped.Message != "" {
			return shaped.Message
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	if text == "" {
		return "(empty body)"
	}
	return text
}
