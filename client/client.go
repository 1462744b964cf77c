// Package client is a typed client for the RAG news backend.
//
// Every operation goes through one request path that sets the default headers,
// decodes JSON and turns each failure into one of the error types in errors.go.
// The client never retries and never logs; callers decide what a failure means.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

const (
	// DefaultBaseURL is the local development backend.
	DefaultBaseURL = "http://localhost:8000"

	// ClientID is sent in the X-Client header on every request.
	ClientID = "rag-news-frontend"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config is the client's configuration. It is read once by New.
type Config struct {
	BaseURL string        `env:"RAG_NEWS_API_BASE_URL,default=http://localhost:8000"`
	Timeout time.Duration `env:"RAG_NEWS_API_TIMEOUT"` // 0 = no timeout

	// HTTPClient overrides the transport. When nil an *http.Client with Timeout is used.
	HTTPClient Doer
}

// ConfigFromEnv loads the client configuration from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read client environment: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return cfg, nil
}

// Client talks to the RAG news backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient Doer
}

// New creates a Client from cfg. The base URL must be an absolute http(s) URL.
func New(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: must be an absolute http or https URL", base)
	}

	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: doer,
	}, nil
}

// BaseURL returns the backend root this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestOption customises a single request.
type RequestOption func(h http.Header)

// WithHeader sets a header on the request. It is applied after the defaults
// and so can replace Content-Type or X-Client.
func WithHeader(key, value string) RequestOption {
	return func(h http.Header) {
		h.Set(key, value)
	}
}

// WithHeaders sets every header in extra on the request, replacing defaults.
func WithHeaders(extra http.Header) RequestOption {
	return func(h http.Header) {
		for k, vs := range extra {
			h.Del(k)
			for _, v := range vs {
				h.Add(k, v)
			}
		}
	}
}

// do runs the shared request path and decodes a successful body into out.
func (c *Client) do(ctx context.Context, method, path string, body any, out any, opts []RequestOption) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &UnexpectedError{Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &UnexpectedError{Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client", ClientID)
	for _, opt := range opts {
		opt(req.Header)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)

	// a failed status keeps its status even when the body is cut short
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return newHTTPError(res, data)
	}
	if err != nil {
		return &UnexpectedError{Err: err}
	}

	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &UnexpectedError{Err: err}
	}
	if string(raw) == "null" {
		return &InvalidResponseError{StatusCode: res.StatusCode}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &UnexpectedError{Err: err}
	}
	return nil
}

// newHTTPError builds an HTTPError, taking the message from the first truthy
// of message, detail and error in a JSON object body.
func newHTTPError(res *http.Response, data []byte) *HTTPError {
	msg := fmt.Sprintf("HTTP %d: %s", res.StatusCode, statusText(res))

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err == nil && fields != nil {
		for _, key := range []string{"message", "detail", "error"} {
			if s, ok := truthyString(fields[key]); ok {
				msg = s
				break
			}
		}
	}

	return &HTTPError{
		StatusCode: res.StatusCode,
		Message:    msg,
		Body:       data,
	}
}

// statusText returns the reason phrase of the response.
func statusText(res *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode)))
	if text == "" {
		text = http.StatusText(res.StatusCode)
	}
	return text
}

// truthyString renders a decoded JSON value as a message. Empty strings, zero,
// false and null do not count.
func truthyString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case bool:
		return "true", val
	case float64:
		if val == 0 {
			return "", false
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
}
