package client

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/robertmeta/rag-news-cli/model"
)

// MinQueryLength is the shortest trimmed question Ask will send.
const MinQueryLength = 3

// Backend endpoint paths.
const (
	PathHealth  = "/health"
	PathAsk     = "/ask"
	PathSources = "/ingest/sources"
	PathRebuild = "/ingest/rebuild"
)

type askRequest struct {
	Question string `json:"question"`
}

// Health returns the backend's liveness payload.
func (c *Client) Health(ctx context.Context, opts ...RequestOption) (*model.HealthStatus, error) {
	var out model.HealthStatus
	if err := c.do(ctx, http.MethodGet, PathHealth, nil, &out, opts); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask sends a question to the backend. Questions shorter than MinQueryLength
// after trimming fail with a ValidationError and nothing is sent.
func (c *Client) Ask(ctx context.Context, query string, opts ...RequestOption) (*model.AskResult, error) {
	if utf8.RuneCountInString(strings.TrimSpace(query)) < MinQueryLength {
		return nil, &ValidationError{Message: "Query must be at least 3 characters long"}
	}

	var out model.AskResult
	if err := c.do(ctx, http.MethodPost, PathAsk, askRequest{Question: query}, &out, opts); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSources returns the backend's configured feed URLs.
func (c *Client) ListSources(ctx context.Context, opts ...RequestOption) (*model.SourcesList, error) {
	var out model.SourcesList
	if err := c.do(ctx, http.MethodGet, PathSources, nil, &out, opts); err != nil {
		return nil, err
	}
	return &out, nil
}

// RebuildIndex asks the backend to rebuild its index and waits for the result.
func (c *Client) RebuildIndex(ctx context.Context, opts ...RequestOption) (*model.RebuildResult, error) {
	var out model.RebuildResult
	if err := c.do(ctx, http.MethodPost, PathRebuild, nil, &out, opts); err != nil {
		return nil, err
	}
	return &out, nil
}
