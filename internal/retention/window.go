// Package retention implements the rolling retention window applied to the
// on-device fallback caches.
package retention

import "time"

// DefaultDays is the length of the crossed-paths history window.
const DefaultDays = 7

// Window keeps rows whose timestamp is no older than Days×24h before now.
type Window struct {
	Days int
}

// Default returns the 7-day window.
func Default() Window { return Window{Days: DefaultDays} }

// Cutoff returns the oldest timestamp still inside the window.
func (w Window) Cutoff(now time.Time) time.Time {
	days := w.Days
	if days <= 0 {
		days = DefaultDays
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// Keep reports whether a row seen at ts is still retained at now.
func (w Window) Keep(ts, now time.Time) bool {
	return !ts.Before(w.Cutoff(now))
}

// Prune returns the rows still inside the window, preserving order.
// The input slice is not modified.
func Prune[T any](w Window, rows []T, seenAt func(T) time.Time, now time.Time) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if w.Keep(seenAt(r), now) {
			out = append(out, r)
		}
	}
	return out
}
