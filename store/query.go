package store

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// durationPattern matches duration strings like "7d", "2w", "3m", "1y"
var durationPattern = regexp.MustCompile(`^(\d+)([hdwmy])$`)

// unitDurations maps duration suffixes to their length. Months and years
// are approximations (30 and 365 days).
var unitDurations = map[string]time.Duration{
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
	"m": 30 * 24 * time.Hour,
	"y": 365 * 24 * time.Hour,
}

// ParseDuration parses a duration string like "12h", "7d", "2w", "3m", "1y".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration string is empty")
	}

	matches := durationPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid duration format: %s (expected format: <number><unit>, e.g., 12h, 7d, 2w, 3m, 1y)", s)
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid number in duration: %s", matches[1])
	}

	return time.Duration(num) * unitDurations[matches[2]], nil
}

// SinceToUnixTime converts a "since" duration string (e.g., "7d") to the
// Unix timestamp that lies that far before now.
func SinceToUnixTime(since string, now time.Time) (int64, error) {
	duration, err := ParseDuration(since)
	if err != nil {
		return 0, err
	}
	return now.Add(-duration).Unix(), nil
}

// BuildQueryOptions constructs QueryOptions from CLI flags.
func BuildQueryOptions(limit, offset int, search, since string) (QueryOptions, error) {
	if limit < 0 || offset < 0 {
		return QueryOptions{}, fmt.Errorf("limit and offset must not be negative")
	}

	opts := QueryOptions{
		Limit:  limit,
		Offset: offset,
		Search: search,
	}

	if since != "" {
		sinceUnix, err := SinceToUnixTime(since, time.Now())
		if err != nil {
			return opts, fmt.Errorf("failed to parse --since flag: %w", err)
		}
		opts.SinceTime = &sinceUnix
	}

	return opts, nil
}
