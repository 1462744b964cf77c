// Package rebuild runs an index rebuild behind a synthetic progress display.
//
// The backend has no progress channel, so the phases reported here are timed
// locally and only the final call is real.
package rebuild

import (
	"context"
	"time"

	"github.com/robertmeta/rag-news-cli/client"
	"github.com/robertmeta/rag-news-cli/model"
)

// Rebuilder is the part of the API client the runner needs.
type Rebuilder interface {
	RebuildIndex(ctx context.Context, opts ...client.RequestOption) (*model.RebuildResult, error)
}

// Step is one synthetic phase.
type Step struct {
	Label    string
	Duration time.Duration
}

// DefaultSteps mirrors the phases the web frontend displayed.
var DefaultSteps = []Step{
	{Label: "Fetching RSS feeds...", Duration: 2000 * time.Millisecond},
	{Label: "Downloading articles...", Duration: 3000 * time.Millisecond},
	{Label: "Processing content...", Duration: 2500 * time.Millisecond},
	{Label: "Creating embeddings...", Duration: 4000 * time.Millisecond},
	{Label: "Building search index...", Duration: 1500 * time.Millisecond},
	{Label: "Finalizing...", Duration: 1000 * time.Millisecond},
}

const (
	// SimulatedCeiling is the highest percentage reached before the real call.
	SimulatedCeiling = 90.0

	labelCompleting = "Completing rebuild..."
	labelComplete   = "Complete"
)

// Progress is one progress report.
type Progress struct {
	Step    string               `json:"step"`
	Percent float64              `json:"percent"`
	Result  *model.RebuildResult `json:"result,omitempty"`
}

// Runner plays Steps and then calls the backend.
type Runner struct {
	Steps []Step
	// Ticks is the number of reports per step (default 10).
	Ticks int
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Report receives every progress update. May be nil.
	Report func(Progress)
}

// NewRunner returns a Runner with the default phases.
func NewRunner(report func(Progress)) *Runner {
	return &Runner{
		Steps:  DefaultSteps,
		Ticks:  10,
		Sleep:  sleep,
		Report: report,
	}
}

// Run plays the synthetic phases up to SimulatedCeiling, calls RebuildIndex
// and reports 100% once the backend answers. Errors from the backend are
// returned unchanged and no completion is reported.
func (r *Runner) Run(ctx context.Context, rb Rebuilder, opts ...client.RequestOption) (*model.RebuildResult, error) {
	ticks := r.Ticks
	if ticks <= 0 {
		ticks = 10
	}
	wait := r.Sleep
	if wait == nil {
		wait = sleep
	}

	if len(r.Steps) > 0 {
		increment := SimulatedCeiling / float64(len(r.Steps))

		for i, step := range r.Steps {
			r.report(Progress{Step: step.Label, Percent: min(SimulatedCeiling, increment*float64(i))})

			for j := 1; j <= ticks; j++ {
				if err := wait(ctx, step.Duration/time.Duration(ticks)); err != nil {
					return nil, err
				}
				done := float64(i) + float64(j)/float64(ticks)
				r.report(Progress{Step: step.Label, Percent: min(SimulatedCeiling, increment*done)})
			}
		}
	}

	r.report(Progress{Step: labelCompleting, Percent: SimulatedCeiling})

	result, err := rb.RebuildIndex(ctx, opts...)
	if err != nil {
		return nil, err
	}

	r.report(Progress{Step: labelComplete, Percent: 100, Result: result})
	return result, nil
}

func (r *Runner) report(p Progress) {
	if r.Report != nil {
		r.Report(p)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
