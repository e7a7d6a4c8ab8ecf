// Package gateway is the typed client for the remote identity backend.
//
// Every call carries the client timeout. Idempotent GETs are retried with
// exponential backoff; POSTs are sent exactly once so a slow federation call
// cannot create a duplicate account.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const defaultTimeout = 10 * time.Second

// APIError is returned when the backend answers with a non-2xx status.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 200))
}

// Message extracts the backend's "message" field, if any.
func (e *APIError) Message() string {
	var m struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(e.Body, &m)
	return m.Message
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	GetRetries uint
	HTTPClient *http.Client

	// InitialBackoff is the first retry delay for GET requests.
	InitialBackoff time.Duration
}

// Client issues HTTP calls to the identity backend.
type Client struct {
	baseURL        string
	http           *http.Client
	getRetries     uint
	initialBackoff time.Duration
}

// New creates a new Client.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	initial := opts.InitialBackoff
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		http:           hc,
		getRetries:     opts.GetRetries,
		initialBackoff: initial,
	}
}

func (c *Client) post(ctx context.Context, path, bearer string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	raw, err := c.send(ctx, http.MethodPost, path, bearer, body)
	if err != nil {
		return err
	}
	return decode(raw, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff

	raw, err := backoff.Retry(ctx, func() ([]byte, error) {
		raw, err := c.send(ctx, http.MethodGet, path, "", nil)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return nil, backoff.Permanent(err)
		}
		return raw, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.getRetries+1))
	if err != nil {
		return err
	}
	return decode(raw, out)
}

// postRaw sends a POST and returns the 2xx body undecoded.
func (c *Client) postRaw(ctx context.Context, path string, in any) ([]byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.send(ctx, http.MethodPost, path, "", body)
}

func (c *Client) send(ctx context.Context, method, path, bearer string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: raw}
	}
	return raw, nil
}

func decode(raw []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
