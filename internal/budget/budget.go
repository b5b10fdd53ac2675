// Package budget tracks process-wide provider spend against a daily cap.
package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrExceeded is returned when a validation would start with the daily cap
// already met or exceeded.
var ErrExceeded = errors.New("budget: daily cap exceeded")

// Tracker is a mutex-guarded spend counter shared by concurrent pipeline
// runs. The reserve check and the increment happen under one lock so the cap
// holds under concurrency.
type Tracker struct {
	mu       sync.Mutex
	cap      float64
	spent    float64
	day      time.Time
	now      func() time.Time
}

// NewTracker creates a tracker with the given daily cap in dollars.
// A cap of zero or less disables enforcement.
func NewTracker(dailyCap float64) *Tracker {
	t := &Tracker{cap: dailyCap, now: time.Now}
	t.day = t.now().UTC().Truncate(24 * time.Hour)
	return t
}

// Reserve fails if the running spend already meets the cap. Called before any
// provider is contacted.
func (t *Tracker) Reserve() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	if t.cap > 0 && t.spent >= t.cap {
		return fmt.Errorf("%w: spent %.4f of %.4f", ErrExceeded, t.spent, t.cap)
	}
	return nil
}

// Charge records the cost of a completed validation.
func (t *Tracker) Charge(cost float64) {
	if cost <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.spent += cost
}

// Spent returns today's running total.
func (t *Tracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.spent
}

// rollover resets the counter at UTC midnight. Caller holds the lock.
func (t *Tracker) rollover() {
	today := t.now().UTC().Truncate(24 * time.Hour)
	if today.After(t.day) {
		t.day = today
		t.spent = 0
	}
}

// Cost computes the dollar cost of one provider call from token counts and
// per-1k-token rates.
func Cost(promptTokens, responseTokens int, inputRate, outputRate float64) float64 {
	return float64(promptTokens)/1000*inputRate + float64(responseTokens)/1000*outputRate
}
