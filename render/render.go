// Package render prints backend results for people rather than scripts.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/robertmeta/rag-news-cli/feed"
	"github.com/robertmeta/rag-news-cli/model"
)

// Options controls answer rendering.
type Options struct {
	ShowCitations bool
	Now           time.Time
}

type styles struct {
	marker  lipgloss.Style
	title   lipgloss.Style
	muted   lipgloss.Style
	active  lipgloss.Style
	failure lipgloss.Style
}

// newStyles binds styles to w so that non-terminal writers get plain text.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		marker:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		title:   r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("241")),
		active:  r.NewStyle().Foreground(lipgloss.Color("42")),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// Answer writes the answer text with citation markers highlighted, followed
// by the citation list when opts.ShowCitations is set.
func Answer(w io.Writer, r *model.AskResult, opts Options) error {
	st := newStyles(w)
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var b strings.Builder
	for _, part := range model.SplitMarkers(r.Answer) {
		if model.IsMarker(part) {
			b.WriteString(st.marker.Render(part))
		} else {
			b.WriteString(part)
		}
	}
	b.WriteString("\n")

	if opts.ShowCitations && len(r.Citations) > 0 {
		b.WriteString("\n")
		b.WriteString(st.title.Render("Sources"))
		b.WriteString("\n")

		for _, c := range r.Citations {
			fmt.Fprintf(&b, "%s %s", st.marker.Render(fmt.Sprintf("[%d]", c.Index)), c.Title)
			if t, err := c.PublishedTime(); err == nil {
				fmt.Fprintf(&b, " %s", st.muted.Render("("+feed.FormatAge(t, now)+")"))
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "    %s\n", st.muted.Render(c.URL))
			if c.Snippet != "" {
				fmt.Fprintf(&b, "    %s\n", c.Snippet)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Sources writes one line per source with its probe status when known.
func Sources(w io.Writer, statuses []feed.SourceStatus, now time.Time) error {
	st := newStyles(w)
	if now.IsZero() {
		now = time.Now()
	}

	var b strings.Builder
	for i, s := range statuses {
		fmt.Fprintf(&b, "%2d. %s\n", i+1, s.URL)

		switch s.Status {
		case feed.StatusActive:
			line := fmt.Sprintf("%s  %s, %d items", st.active.Render(s.Status), s.Title, s.Items)
			if s.LatestPublished != nil {
				line += fmt.Sprintf(", latest %s (%s)", feed.FormatAge(*s.LatestPublished, now), s.Freshness)
			}
			fmt.Fprintf(&b, "    %s\n", line)
		case feed.StatusError:
			fmt.Fprintf(&b, "    %s  %s\n", st.failure.Render(s.Status), st.muted.Render(s.Error))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
