package domain

import "time"

// Window is a named lookback period resolved against "now" at query time.
type Window string

const (
	Window1h  Window = "1h"
	Window6h  Window = "6h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"

	// DefaultWindow is the fallback for unrecognized range values.
	DefaultWindow = Window24h
)

var windowDurations = map[Window]time.Duration{
	Window1h:  time.Hour,
	Window6h:  6 * time.Hour,
	Window24h: 24 * time.Hour,
	Window7d:  7 * 24 * time.Hour,
	Window30d: 30 * 24 * time.Hour,
}

// ParseWindow maps a raw range parameter to a Window. Unrecognized
// values fall back to 24h rather than erroring.
func ParseWindow(raw string) Window {
	if _, ok := windowDurations[Window(raw)]; ok {
		return Window(raw)
	}
	return DefaultWindow
}

// Duration returns the window's length.
func (w Window) Duration() time.Duration {
	if d, ok := windowDurations[w]; ok {
		return d
	}
	return windowDurations[DefaultWindow]
}

// Start returns the inclusive lower bound of the window ending at now.
func (w Window) Start(now time.Time) time.Time {
	return now.Add(-w.Duration())
}

const (
	// DefaultLimit and MaxLimit bound query result sizes.
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ClampLimit normalizes a caller-supplied limit to [1, MaxLimit],
// substituting the default when the caller passed nothing (<= 0 means
// unset at the HTTP boundary).
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
