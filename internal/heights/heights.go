// Package heights derives the ledger height every freeze window, report
// window, and claim finality check is evaluated against.
package heights

import (
	"sync/atomic"
	"time"
)

// Source supplies the current ledger height.
type Source interface {
	Current() uint64
}

// WallClock derives height from elapsed wall time since a genesis instant,
// one height unit per interval. Height 0 covers the first interval.
type WallClock struct {
	genesis  time.Time
	interval time.Duration
	now      func() time.Time
}

// NewWallClock constructs a wall-clock height source. A non-positive
// interval defaults to one hour.
func NewWallClock(genesis time.Time, interval time.Duration) *WallClock {
	if interval <= 0 {
		interval = time.Hour
	}
	return &WallClock{genesis: genesis, interval: interval, now: time.Now}
}

// Current returns the height at the current instant.
func (c *WallClock) Current() uint64 {
	elapsed := c.now().Sub(c.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / c.interval)
}

// Manual is a height source advanced by hand. Used by tests.
type Manual struct {
	height atomic.Uint64
}

// NewManual constructs a manual source at the given height.
func NewManual(height uint64) *Manual {
	m := &Manual{}
	m.height.Store(height)
	return m
}

// Current returns the stored height.
func (m *Manual) Current() uint64 { return m.height.Load() }

// Set moves the source to an absolute height.
func (m *Manual) Set(height uint64) { m.height.Store(height) }

// Advance moves the source forward by delta.
func (m *Manual) Advance(delta uint64) { m.height.Add(delta) }
