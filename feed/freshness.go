package feed

import (
	"fmt"
	"time"
)

// Freshness values.
const (
	FreshnessFresh   = "fresh"
	FreshnessStale   = "stale"
	FreshnessUnknown = "unknown"
)

// FreshWithin is the age below which content counts as fresh.
const FreshWithin = 6 * time.Hour

// Freshness classifies t relative to now. A zero t is unknown.
func Freshness(t, now time.Time) string {
	if t.IsZero() {
		return FreshnessUnknown
	}
	if now.Sub(t) < FreshWithin {
		return FreshnessFresh
	}
	return FreshnessStale
}

// FormatAge renders the time since t as "Nm ago", "Nh ago" or "Nd ago".
func FormatAge(t, now time.Time) string {
	minutes := int(now.Sub(t) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}

	return fmt.Sprintf("%dd ago", hours/24)
}
