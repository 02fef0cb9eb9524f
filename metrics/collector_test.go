package metrics

import (
	"sync"
	"testing"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.IncSessionAccepted()
	c.IncSessionAccepted()
	c.IncSessionRejected()
	c.IncFrameRead()
	c.IncFrameWritten()
	c.IncFrameWritten()
	c.IncFrameWritten()
	c.IncDispatchMiss()
	c.IncBackendError()
	c.IncBridgeForward()
	c.IncBridgeTopicJoined()
	c.IncSessionClosed()

	snap := c.Snapshot()
	if snap.SessionsAccepted != 2 {
		t.Errorf("SessionsAccepted = %d, want 2", snap.SessionsAccepted)
	}
	if snap.SessionsRejected != 1 {
		t.Errorf("SessionsRejected = %d, want 1", snap.SessionsRejected)
	}
	if snap.FramesWritten != 3 {
		t.Errorf("FramesWritten = %d, want 3", snap.FramesWritten)
	}
	if snap.FramesRead != 1 || snap.DispatchMisses != 1 || snap.BackendErrors != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.BridgeForwards != 1 || snap.BridgeTopicsJoined != 1 || snap.SessionsClosed != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestCollectorNilSafe(t *testing.T) {
	var c *Collector
	c.IncSessionAccepted()
	c.IncFrameWritten()
	c.IncBridgeForward()
	if snap := c.Snapshot(); snap != (Snapshot{}) {
		t.Fatalf("nil collector snapshot = %+v", snap)
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncFrameWritten()
			}
		}()
	}
	wg.Wait()
	if got := c.Snapshot().FramesWritten; got != 800 {
		t.Fatalf("FramesWritten = %d, want 800", got)
	}
}
