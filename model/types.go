// Package model defines the data structures exchanged with the RAG news backend
// and the local records kept by rag-news-cli.
package model

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// markerPattern matches inline citation markers such as "[1]" or "[12]".
var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// Citation is one source document backing part of an answer.
type Citation struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Published string `json:"published"`
	Snippet   string `json:"snippet"`
}

// PublishedTime parses the backend's publication timestamp.
func (c *Citation) PublishedTime() (time.Time, error) {
	if c.Published == "" {
		return time.Time{}, errors.New("citation has no publication time")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, c.Published); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognised publication time: " + c.Published)
}

// AskResult is the backend's answer to one question.
type AskResult struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Citation returns the citation with the given ordinal index.
func (r *AskResult) Citation(index int) (*Citation, bool) {
	for i := range r.Citations {
		if r.Citations[i].Index == index {
			return &r.Citations[i], true
		}
	}
	return nil, false
}

// UnresolvedMarkers returns the markers in the answer that have no matching citation.
func (r *AskResult) UnresolvedMarkers() []int {
	var missing []int
	for _, n := range CitationMarkers(r.Answer) {
		if _, ok := r.Citation(n); !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// CitationMarkers returns the distinct citation indexes referenced in text,
// in order of first appearance.
func CitationMarkers(text string) []int {
	seen := make(map[int]bool)
	var markers []int
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		markers = append(markers, n)
	}
	return markers
}

// SplitMarkers splits text into alternating plain and marker segments.
// Marker segments keep their brackets, e.g. "[2]".
func SplitMarkers(text string) []string {
	var parts []string
	last := 0
	for _, loc := range markerPattern.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			parts = append(parts, text[last:loc[0]])
		}
		parts = append(parts, text[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		parts = append(parts, text[last:])
	}
	return parts
}

// IsMarker reports whether s is exactly one citation marker.
func IsMarker(s string) bool {
	loc := markerPattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// SourcesList is the backend's configured feed URLs, in display order.
type SourcesList struct {
	RSS []string `json:"rss"`
}

// RebuildResult is the outcome of an index rebuild.
type RebuildResult struct {
	Articles int    `json:"articles"`
	Chunks   int    `json:"chunks"`
	Status   string `json:"status"`
}

// HealthStatus is the backend's liveness payload.
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// HistoryItem is a locally saved question and its answer.
type HistoryItem struct {
	ID        int64      `json:"id"`
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	AskedAt   time.Time  `json:"asked_at"`
}

// Validate checks if the history item has required fields.
func (h *HistoryItem) Validate() error {
	if h.Question == "" {
		return errors.New("history question is required")
	}
	return nil
}

// Age returns how long ago the question was asked.
func (h *HistoryItem) Age() time.Duration {
	return time.Since(h.AskedAt)
}
