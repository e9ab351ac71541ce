package config

import (
	"strconv"
	"strings"
	"time"
)

// parseInterval mirrors the scheduler's interval grammar ("15m", "1h", "1d",
// "1w") for validation without pulling in the scheduler package.
func parseInterval(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return 0, false
	}
	numStr := strings.TrimSpace(interval[:len(interval)-1])
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch interval[len(interval)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Interval returns the parsed scheduler interval; validation guarantees it
// parses after Load.
func (s SchedulerConfig) IntervalDuration() time.Duration {
	d, _ := parseInterval(s.Interval)
	return d
}
