package nl2sql

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

	"github.com/DachengChen/sqlchat/applog"
	"go.uber.org/zap"
)

// Path is the service route every question is posted to.
const Path = "/nl2sql/"

// ErrNoBaseURL is returned by NewClient when no base URL is given.
var ErrNoBaseURL = errors.New("nl2sql: base URL is required")

// Client posts questions to an NL2SQL service. It never retries: a failed
// call surfaces exactly once, as a BackendError.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (which has no timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient validates baseURL and builds a client for {baseURL}/nl2sql/.
// A bad base URL is a configuration error and is reported here, at
// startup, rather than on every call.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("nl2sql: invalid base URL %q: %w", baseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("nl2sql: invalid base URL %q: want http(s)://host[/prefix]", baseURL)
	}

	c := &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + Path,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the full URL questions are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Call sends one question and always returns a well-formed Response.
// HTTP, parse and network failures come back as a BackendError whose
// Error describes the transport problem.
func (c *Client) Call(ctx context.Context, question string) Response {
	start := time.Now()
	resp, status := c.call(ctx, question)

	fields := []zap.Field{
		zap.String("endpoint", c.endpoint),
		zap.String("question", question),
		zap.Int("status", status),
		zap.String("kind", Kind(resp)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if be, ok := resp.(*BackendError); ok {
		fields = append(fields, zap.String("error", be.Error))
	}
	applog.L().Info("nl2sql call", fields...)

	return resp
}

func (c *Client) call(ctx context.Context, question string) (Response, int) {
	payload, err := json.Marshal(struct {
		Question string `json:"question"`
	}{Question: question})
	if err != nil {
		return TransportError("could not encode request: " + err.Error()), 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return TransportError("network error: " + err.Error()), 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TransportError("network error: " + err.Error()), 0
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TransportError("network error: reading response: " + err.Error()), resp.StatusCode
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	decoded, err := Decode(body)
	switch {
	case err == nil && ok:
		return decoded, resp.StatusCode
	case err == nil:
		// A backend error sent with 4xx/5xx keeps its detail and SQL.
		// Anything else on a failed status is not an answer.
		if be, isErr := decoded.(*BackendError); isErr {
			return be, resp.StatusCode
		}
	case ok:
		return TransportError(fmt.Sprintf("invalid response from server (status %d): %v", resp.StatusCode, err)), resp.StatusCode
	}

	failed := TransportError("request failed with status " + resp.Status)
	failed.Detail = bodyDetail(body)
	return failed, resp.StatusCode
}

// bodyDetail extracts a framework-style {"detail": "..."} message, if any.
func bodyDetail(body []byte) string {
	var v struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(body, &v) != nil {
		return ""
	}
	switch d := v.Detail.(type) {
	case string:
		return d
	case nil:
		return ""
	default:
		raw, err := json.Marshal(d)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
