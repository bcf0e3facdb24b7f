// Package events provides named level notifications used to signal
// cross-activity milestones without exposing raw state.
package events

import (
	"context"
	"sync"
	"time"
)

// Name identifies a milestone.
type Name string

const (
	SensorReady Name = "sensor_ready"
	PreheatDone Name = "preheat_done"
	Stabilized  Name = "stabilized"
	Fault       Name = "fault"
)

// Flag is a level notification. Waiters are released while it is set.
type Flag struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{} // closed while set
}

// NewFlag creates a cleared flag.
func NewFlag() *Flag {
	return &Flag{ch: make(chan struct{})}
}

// Set raises the flag and wakes every waiter.
func (f *Flag) Set() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		f.set = true
		close(f.ch)
	}
}

// Clear lowers the flag.
func (f *Flag) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		f.set = false
		f.ch = make(chan struct{})
	}
}

// IsSet reports whether the flag is raised.
func (f *Flag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// Wait blocks until the flag is set, timeout elapses or ctx is done.
// It reports whether the flag was set. A non-positive timeout only
// checks the current level.
func (f *Flag) Wait(ctx context.Context, timeout time.Duration) bool {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()

	if timeout <= 0 {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Group is a set of flags keyed by name.
type Group struct {
	mu    sync.Mutex
	flags map[Name]*Flag
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	return &Group{flags: make(map[Name]*Flag)}
}

// Flag returns the flag for n, creating it on first use.
func (g *Group) Flag(n Name) *Flag {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.flags[n]
	if !ok {
		f = NewFlag()
		g.flags[n] = f
	}
	return f
}

// Set raises the flag named n.
func (g *Group) Set(n Name) { g.Flag(n).Set() }

// Clear lowers the flag named n.
func (g *Group) Clear(n Name) { g.Flag(n).Clear() }

// IsSet reports whether the flag named n is raised.
func (g *Group) IsSet(n Name) bool { return g.Flag(n).IsSet() }

// Wait waits on the flag named n.
func (g *Group) Wait(ctx context.Context, n Name, timeout time.Duration) bool {
	return g.Flag(n).Wait(ctx, timeout)
}
