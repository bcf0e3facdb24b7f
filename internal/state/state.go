// Package state holds the shared {snapshot, fan intents} cell guarded by the
// single data lock. Accessors copy values in and out; callers never see a
// reference into the cell.
package state

import (
	"time"

	"github.com/sweeney/vent-controller/internal/logic"
)

// View is a consistent copy of the cell taken under one lock acquisition.
type View struct {
	Snapshot  logic.Snapshot
	Published bool
	Intents   logic.Intents
}

// Cell is the shared data cell. The lock is a one-slot channel so that
// non-critical readers can give up after a bounded wait.
type Cell struct {
	lock chan struct{}

	snap      logic.Snapshot
	published bool
	intents   logic.Intents
}

// NewCell creates a cell with no snapshot and every fan OFF.
func NewCell() *Cell {
	return &Cell{
		lock:    make(chan struct{}, 1),
		intents: logic.AllOff(),
	}
}

func (c *Cell) acquire() { c.lock <- struct{}{} }
func (c *Cell) release() { <-c.lock }

func (c *Cell) tryAcquire(timeout time.Duration) bool {
	select {
	case c.lock <- struct{}{}:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c.lock <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

// PublishSnapshot replaces the current snapshot.
func (c *Cell) PublishSnapshot(s logic.Snapshot) {
	c.acquire()
	c.snap = s
	c.published = true
	c.release()
}

// Snapshot returns the latest snapshot and whether one was ever published.
func (c *Cell) Snapshot() (logic.Snapshot, bool) {
	c.acquire()
	defer c.release()
	return c.snap, c.published
}

// SetIntents replaces the applied fan intents.
func (c *Cell) SetIntents(v logic.Intents) {
	c.acquire()
	c.intents = v
	c.release()
}

// Intents returns the applied fan intents.
func (c *Cell) Intents() logic.Intents {
	c.acquire()
	defer c.release()
	return c.intents
}

// Read copies the whole cell, waiting as long as needed.
func (c *Cell) Read() View {
	c.acquire()
	defer c.release()
	return c.viewLocked()
}

// TryRead copies the whole cell if the lock is acquired within timeout.
func (c *Cell) TryRead(timeout time.Duration) (View, bool) {
	if !c.tryAcquire(timeout) {
		return View{}, false
	}
	defer c.release()
	return c.viewLocked(), true
}

func (c *Cell) viewLocked() View {
	return View{Snapshot: c.snap, Published: c.published, Intents: c.intents}
}
