package engine

import (
	"context"
	"time"
)

const (
	// watermarkLag keeps the committed watermark slightly behind real
	// time so an in-flight event is never considered already covered.
	watermarkLag = 5 * time.Second

	// watermarkDebounce is the minimum age the current watermark must
	// reach before a new one is committed, coalescing bursts of activity
	// into at most one write per ~5 seconds.
	watermarkDebounce = 10 * time.Second
)

// SetHighestWatermark commits at as the new watermark, pruning older
// entries. The watermark never moves backwards. The scheduler calls this
// after a completed sync pass; it is also how the very first watermark
// is established after bootstrap.
func (e *Engine) SetHighestWatermark(ctx context.Context, at time.Time) error {
	e.mu.Lock()
	current := e.highwater
	e.mu.Unlock()

	if !at.After(current) {
		return nil
	}

	if err := e.store.Watermarks.Commit(ctx, at); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if at.After(e.highwater) {
		e.highwater = at
	}

	return nil
}

// TickWatermark commits a fresh watermark at the current lagged time.
// Called once per completed sync pass; this is also what establishes
// the very first watermark after bootstrap.
func (e *Engine) TickWatermark(ctx context.Context) error {
	return e.SetHighestWatermark(ctx, e.clock().Add(-watermarkLag))
}

// MaybeSetHighestWatermark advances the watermark to now-5s, but only
// when the current watermark has aged past now-10s, and never while the
// watermark is zero (bootstrap: no baseline exists yet to advance).
// Called after every membership or message mutation; the debounce keeps
// the persisted value within 5-10 seconds of real time without a write
// per mutation.
func (e *Engine) MaybeSetHighestWatermark(ctx context.Context, now time.Time) error {
	e.mu.Lock()
	current := e.highwater
	e.mu.Unlock()

	if current.IsZero() {
		return nil
	}

	if !current.Before(now.Add(-watermarkDebounce)) {
		return nil
	}

	return e.SetHighestWatermark(ctx, now.Add(-watermarkLag))
}

// Watermark returns the engine's view of the current watermark.
func (e *Engine) Watermark() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.highwater
}
