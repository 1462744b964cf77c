// Package feed probes the backend's configured RSS/Atom sources.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

// Source status values.
const (
	StatusActive = "active"
	StatusError  = "error"
)

// SourceStatus describes one probed feed.
type SourceStatus struct {
	URL             string     `json:"url"`
	Title           string     `json:"title,omitempty"`
	Items           int        `json:"items"`
	LatestPublished *time.Time `json:"latest_published,omitempty"`
	Freshness       string     `json:"freshness"`
	Status          string     `json:"status"`
	Error           string     `json:"error,omitempty"`
}

// Prober fetches and parses feeds. A gofeed.Parser keeps per-parse state, so
// each fetch gets its own.
type Prober struct {
	UserAgent string
	// Concurrency bounds the number of parallel fetches.
	Concurrency int
	// Timeout bounds a single fetch. Zero means no per-feed limit.
	Timeout time.Duration
	now     func() time.Time
}

// NewProber creates a new Prober.
func NewProber() *Prober {
	return &Prober{
		UserAgent:   "rag-news-cli",
		Concurrency: 8,
		Timeout:     15 * time.Second,
		now:         time.Now,
	}
}

// Probe fetches one feed. Failures are reported in the status, not returned.
func (p *Prober) Probe(ctx context.Context, url string) SourceStatus {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	parsed, err := p.newParser().ParseURLWithContext(url, ctx)
	if err != nil {
		return SourceStatus{
			URL:       url,
			Status:    StatusError,
			Freshness: FreshnessUnknown,
			Error:     fmt.Sprintf("failed to fetch feed from %s: %v", url, err),
		}
	}
	return p.summarize(url, parsed)
}

// Parse summarizes feed content from a string.
func (p *Prober) Parse(url, content string) (SourceStatus, error) {
	if content == "" {
		return SourceStatus{}, fmt.Errorf("feed content is empty")
	}

	parsed, err := p.newParser().ParseString(content)
	if err != nil {
		return SourceStatus{}, fmt.Errorf("failed to parse feed: %w", err)
	}
	return p.summarize(url, parsed), nil
}

func (p *Prober) newParser() *gofeed.Parser {
	parser := gofeed.NewParser()
	parser.UserAgent = p.UserAgent
	return parser
}

// ProbeAll probes every URL with bounded concurrency. Results keep the input order.
func (p *Prober) ProbeAll(ctx context.Context, urls []string) []SourceStatus {
	results := make([]SourceStatus, len(urls))

	limit := p.Concurrency
	if limit <= 0 {
		limit = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, limit)

	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = p.Probe(ctx, u)
		}(i, u)
	}

	wg.Wait()
	return results
}

// summarize converts a parsed feed into a SourceStatus.
func (p *Prober) summarize(url string, gf *gofeed.Feed) SourceStatus {
	status := SourceStatus{
		URL:    url,
		Title:  gf.Title,
		Items:  len(gf.Items),
		Status: StatusActive,
	}

	if status.URL == "" && gf.FeedLink != "" {
		status.URL = gf.FeedLink
	}

	var latest time.Time
	for _, item := range gf.Items {
		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}
		if published.After(latest) {
			latest = published
		}
	}

	if !latest.IsZero() {
		status.LatestPublished = &latest
	}
	status.Freshness = Freshness(latest, p.now())

	return status
}
