// Package monitor polls the backend's health endpoint on a fixed interval.
package monitor

import (
	"context"
	"time"

	"github.com/robertmeta/rag-news-cli/client"
	"github.com/robertmeta/rag-news-cli/model"
)

// DefaultInterval is how often the backend is probed.
const DefaultInterval = 30 * time.Second

// Checker is the part of the API client the monitor needs.
type Checker interface {
	Health(ctx context.Context, opts ...client.RequestOption) (*model.HealthStatus, error)
}

// Result is the outcome of one probe.
type Result struct {
	Healthy   bool      `json:"healthy"`
	Status    string    `json:"status,omitempty"`
	Err       error     `json:"-"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Check probes the backend once.
func Check(ctx context.Context, checker Checker, opts ...client.RequestOption) Result {
	res := Result{CheckedAt: time.Now()}

	status, err := checker.Health(ctx, opts...)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}

	res.Healthy = true
	res.Status = status.Status
	return res
}

// Watch probes immediately and then every interval until ctx is done,
// passing each result to report. A failed probe is reported, never retried.
// When opts is non-nil it is called before every probe for that probe's
// request options.
func Watch(ctx context.Context, checker Checker, interval time.Duration, opts func() []client.RequestOption, report func(Result)) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	probe := func() {
		var o []client.RequestOption
		if opts != nil {
			o = opts()
		}
		report(Check(ctx, checker, o...))
	}

	probe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			probe()
		}
	}
}
