// Package session provides the shared per-run timestamp and the Korea-local
// time format used for spreadsheet column headers.
package session

import (
	"fmt"
	"sync"
	"time"
)

// kst is fixed UTC+9; Korea has no daylight saving.
var kst = time.FixedZone("KST", 9*60*60)

const layout = "2006-01-02 15:04:05"

// FormatKST renders t as a Korea-local "YYYY-MM-DD HH:MM:SS" string.
func FormatKST(t time.Time) string {
	return t.In(kst).Format(layout)
}

// ParseKST parses a "YYYY-MM-DD HH:MM:SS" Korea-local timestamp.
func ParseKST(s string) (time.Time, error) {
	t, err := time.ParseInLocation(layout, s, kst)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid KST timestamp %q: %w", s, err)
	}
	return t, nil
}

// MinutesBetween returns the absolute difference between two KST timestamp
// strings in minutes. An unparseable argument yields an error.
func MinutesBetween(a, b string) (float64, error) {
	ta, err := ParseKST(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseKST(b)
	if err != nil {
		return 0, err
	}
	d := tb.Sub(ta)
	if d < 0 {
		d = -d
	}
	return d.Minutes(), nil
}

// Clock freezes one timestamp for an entire cart walk so that every reading
// taken during the run lands in the same spreadsheet column. It is passed
// explicitly to writers rather than living as a package global.
type Clock struct {
	mu    sync.Mutex
	value string
	now   func() time.Time
}

// NewClock returns a stopped clock. The zero value is not usable.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Start freezes the current Korea-local time as the session timestamp.
// Calling Start on a running clock resets the frozen value.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = FormatKST(c.now())
}

// Now returns the frozen session timestamp, or the current Korea-local time
// when the clock has not been started.
func (c *Clock) Now() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == "" {
		return FormatKST(c.now())
	}
	return c.value
}

// Active reports whether a session timestamp is currently set.
func (c *Clock) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value != ""
}

// Stop clears the session timestamp.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = ""
}
