// Package baas is a small HTTP client for the hosted backend: the PostgREST
// data API under /rest/v1 and the GoTrue auth API under /auth/v1.
package baas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP lets tests point the client at an httptest server.
func NewClientWithHTTP(baseURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Error is a non-2xx answer from the backend. PostgREST fills code, message,
// details and hint; GoTrue uses error/error_description or msg/error_code.
type Error struct {
	Status      int    `json:"-"`
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
	Details     string `json:"details,omitempty"`
	Hint        string `json:"hint,omitempty"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Description
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("baas: %s (code %s, status %d)", msg, e.Code, e.Status)
	}
	return fmt.Sprintf("baas: %s (status %d)", msg, e.Status)
}

// TransportError means the request never produced an HTTP answer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "baas: request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type requestOptions struct {
	method      string
	path        string
	query       url.Values
	body        interface{}
	bearer      string
	prefer      string
	contentType string
}

func (c *Client) do(ctx context.Context, opts requestOptions, out interface{}) error {
	endpoint := c.baseURL + opts.path
	if len(opts.query) > 0 {
		endpoint += "?" + opts.query.Encode()
	}

	var body io.Reader
	if opts.body != nil {
		payload, err := json.Marshal(opts.body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, opts.method, endpoint, body)
	if err != nil {
		return &TransportError{Err: err}
	}

	bearer := opts.bearer
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if opts.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.prefer != "" {
		req.Header.Set("Prefer", opts.prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var raw struct {
		Code        interface{} `json:"code"`
		ErrorCode   string      `json:"error_code"`
		Message     string      `json:"message"`
		Msg         string      `json:"msg"`
		Error       string      `json:"error"`
		Details     string      `json:"details"`
		Hint        string      `json:"hint"`
		Description string      `json:"error_description"`
	}
	apiErr := &Error{Status: status}

	if err := json.Unmarshal(data, &raw); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}

	switch code := raw.Code.(type) {
	case string:
		apiErr.Code = code
	case float64:
		apiErr.Code = fmt.Sprintf("%.0f", code)
	}
	if raw.ErrorCode != "" {
		apiErr.Code = raw.ErrorCode
	}

	apiErr.Message = raw.Message
	if apiErr.Message == "" {
		apiErr.Message = raw.Msg
	}
	if apiErr.Message == "" && raw.Error != "" {
		// OAuth-style answer: error is a code, error_description the text
		if apiErr.Code == "" {
			apiErr.Code = raw.Error
		}
		apiErr.Message = raw.Description
		if apiErr.Message == "" {
			apiErr.Message = raw.Error
		}
	}
	apiErr.Details = raw.Details
	apiErr.Hint = raw.Hint
	apiErr.Description = raw.Description
	return apiErr
}
