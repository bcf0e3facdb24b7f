package events

import (
	"context"
	"testing"
	"time"
)

func TestFlagSetClear(t *testing.T) {
	f := NewFlag()
	if f.IsSet() {
		t.Fatal("new flag should be clear")
	}
	f.Set()
	f.Set()
	if !f.IsSet() {
		t.Error("flag should be set")
	}
	f.Clear()
	if f.IsSet() {
		t.Error("flag should be clear")
	}
}

func TestWaitReturnsImmediatelyWhenSet(t *testing.T) {
	f := NewFlag()
	f.Set()
	if !f.Wait(context.Background(), 0) {
		t.Error("zero-timeout Wait should see a set flag")
	}
	if !f.Wait(context.Background(), time.Second) {
		t.Error("Wait should see a set flag")
	}
}

func TestWaitTimesOut(t *testing.T) {
	f := NewFlag()
	if f.Wait(context.Background(), 10*time.Millisecond) {
		t.Error("Wait should time out on a clear flag")
	}
}

func TestWaitWokenBySet(t *testing.T) {
	f := NewFlag()
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.Set()
	}()
	if !f.Wait(context.Background(), time.Second) {
		t.Error("Wait should be released by Set")
	}
}

func TestWaitCancelled(t *testing.T) {
	f := NewFlag()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if f.Wait(ctx, time.Second) {
		t.Error("Wait should return false on cancelled context")
	}
}

func TestWaitAfterClearBlocksAgain(t *testing.T) {
	f := NewFlag()
	f.Set()
	f.Clear()
	if f.Wait(context.Background(), 5*time.Millisecond) {
		t.Error("Wait should block again after Clear")
	}
}

func TestGroupFlagsIndependent(t *testing.T) {
	g := NewGroup()
	g.Set(SensorReady)

	if !g.IsSet(SensorReady) {
		t.Error("SensorReady should be set")
	}
	if g.IsSet(Fault) {
		t.Error("Fault should be clear")
	}
	if g.Flag(SensorReady) != g.Flag(SensorReady) {
		t.Error("Flag should return the same instance per name")
	}

	g.Clear(SensorReady)
	if g.Wait(context.Background(), SensorReady, 0) {
		t.Error("cleared flag should not satisfy Wait")
	}
}
