// Package httpclient is the single place heliassets talks HTTP.
// Every request carries the configured User-Agent, a timeout, and a capped
// body read; every failure comes back as a *NetworkError.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/model"
)

// errorBodyLimit caps how much of a non-2xx body is kept for the log line.
const errorBodyLimit = 512

// Config mirrors config.HTTPConfig so this package doesn't import config.
type Config struct {
	UserAgent          string
	Timeout            time.Duration
	InsecureSkipVerify bool
	MaxBodyBytes       int64
}

// NetworkError is returned for connection failures, timeouts, and non-2xx statuses.
// StatusCode is 0 when no response was received.
type NetworkError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	// A 2xx status with an error means the body could not be read in full.
	if e.StatusCode != 0 && (e.StatusCode < 200 || e.StatusCode > 299) {
		msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap exposes the underlying transport error to errors.Is / errors.As.
func (e *NetworkError) Unwrap() error { return e.Err }

// Is makes every NetworkError match model.ErrNetwork.
func (e *NetworkError) Is(target error) bool { return target == model.ErrNetwork }

// Request describes one call. Timeout overrides the client default when non-zero.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// Client wraps http.Client with the tool's defaults.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

// New builds a Client. A nil logger is replaced with a no-op one.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 50 << 20
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		logger.Warn("TLS certificate verification is disabled (http.insecure_skip_verify)")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in
	}

	return &Client{
		// No client-level Timeout: each request gets its own deadline through the context.
		http:   &http.Client{Transport: transport},
		cfg:    cfg,
		logger: logger,
	}
}

// Do executes req and returns the response body. Non-2xx is an error.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: req.URL, Err: fmt.Errorf("creating request: %w", err)}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if c.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("http request",
		zap.String("method", method),
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &NetworkError{
			Method:     method,
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	// Read one byte past the cap so an oversized body is detected, not truncated silently.
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, &NetworkError{Method: method, URL: req.URL, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}
	if int64(len(data)) > c.cfg.MaxBodyBytes {
		return nil, &NetworkError{
			Method:     method,
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response body exceeds %d bytes", c.cfg.MaxBodyBytes),
		}
	}
	return data, nil
}

// Get fetches url and returns the body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url})
}

// GetJSON fetches url and decodes the JSON body into out.
// A body that isn't valid JSON wraps model.ErrParse.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	data, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    url,
		Header: http.Header{"Accept": []string{"application/json"}},
	})
	if err != nil {
		return err
	}
	return decodeJSON(data, out)
}

// PostJSON encodes in as the request body and returns the raw response body.
// Callers that know the response shape decode it themselves.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, in any, timeout time.Duration) ([]byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")
	return c.Do(ctx, Request{
		Method:  http.MethodPost,
		URL:     url,
		Header:  h,
		Body:    payload,
		Timeout: timeout,
	})
}

func decodeJSON(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return fmt.Errorf("%w: invalid JSON at offset %d", model.ErrParse, syntaxErr.Offset)
		}
		return fmt.Errorf("%w: %v", model.ErrParse, err)
	}
	return nil
}
