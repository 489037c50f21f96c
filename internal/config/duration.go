package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration string. Empty means zero.
// path names the field in error messages.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// DurationOr parses raw and falls back to def when it is empty, zero or invalid.
// Callers are expected to have run Validate first.
func DurationOr(raw string, def time.Duration) time.Duration {
	d, err := ParseDurationField("", raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
