// internal/command/args.go - Command argument parsing
package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Args holds the raw string arguments of one command invocation, as handed
// over by the host (query parameters, CLI flags or JSON body values).
type Args map[string]string

// ArgumentError is invalid caller input. Commands return it before any
// network call is made.
type ArgumentError struct {
	msg string
}

func (e *ArgumentError) Error() string { return e.msg }

// argErrorf builds an ArgumentError.
func argErrorf(format string, a ...interface{}) error {
	return &ArgumentError{msg: fmt.Sprintf(format, a...)}
}

// Get returns the named argument, or "" when absent.
func (a Args) Get(key string) string {
	return a[key]
}

// List splits the named argument on commas, trimming whitespace and
// dropping empty entries. A single scalar becomes a one-element list.
func (a Args) List(key string) []string {
	var out []string
	for _, part := range strings.Split(a[key], ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Int parses the named argument as an integer. Absent arguments return
// fallback.
func (a Args) Int(key string, fallback int) (int, error) {
	raw := a[key]
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, argErrorf("invalid %s %q: not a number", key, raw)
	}
	return v, nil
}

// startTimeLayouts are the absolute formats accepted for time arguments.
var startTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time parses the named argument as a point in time and returns it as epoch
// seconds. Accepted forms: epoch seconds, an ISO-8601 timestamp or date, or
// a relative window like "3 days" / "72h" meaning that far in the past.
// Absent arguments return 0.
func (a Args) Time(key string, now time.Time) (int64, error) {
	raw := strings.TrimSpace(a[key])
	if raw == "" {
		return 0, nil
	}

	if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return epoch, nil
	}

	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Unix(), nil
		}
	}

	if d, ok := parseRelativeWindow(raw); ok {
		return now.Add(-d).Unix(), nil
	}

	return 0, argErrorf("invalid %s %q: expected epoch seconds, ISO-8601 or a relative window like \"3 days\"", key, raw)
}

// parseRelativeWindow understands "<n> minutes/hours/days/weeks" and plain
// Go durations.
func parseRelativeWindow(raw string) (time.Duration, bool) {
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d, true
	}

	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0, false
	}

	var unit time.Duration
	switch strings.TrimSuffix(fields[1], "s") {
	case "minute", "min":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	default:
		return 0, false
	}
	return time.Duration(n) * unit, true
}
