package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule admits at most Requests requests per Window for a single key.
type Rule struct {
	Requests int
	Window   time.Duration
}

// String formats the rule for logs, e.g. "60/1m0s".
func (r Rule) String() string {
	return fmt.Sprintf("%d/%s", r.Requests, r.Window)
}

var units = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
}

// ParseRule parses expressions such as "60/minute", "10 per second" or "1000/hour".
func ParseRule(expr string) (Rule, error) {
	s := strings.ToLower(strings.TrimSpace(expr))

	count, unit, ok := strings.Cut(s, "/")
	if !ok {
		count, unit, ok = strings.Cut(s, " per ")
	}
	if !ok {
		return Rule{}, fmt.Errorf("invalid rate limit %q: expected <count>/<unit>", expr)
	}

	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return Rule{}, fmt.Errorf("invalid rate limit %q: count must be a positive integer", expr)
	}

	window, ok := units[strings.TrimSpace(unit)]
	if !ok {
		return Rule{}, fmt.Errorf("invalid rate limit %q: unknown unit %q", expr, strings.TrimSpace(unit))
	}

	rule := Rule{Requests: n, Window: window}
	if rule.Interval() <= 0 {
		return Rule{}, fmt.Errorf("invalid rate limit %q: more than one request per nanosecond", expr)
	}
	return rule, nil
}

// Interval is the time it takes to earn back one request.
func (r Rule) Interval() time.Duration {
	if r.Requests <= 0 {
		return 0
	}
	return r.Window / time.Duration(r.Requests)
}
