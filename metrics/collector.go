// Package metrics provides gateway-level counters.
//
// The Collector accumulates counters across all sessions of one gateway
// process. It is a leaf package with no internal dependencies. All
// increment methods are nil-receiver safe so callers never need to guard
// against an absent collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the gateway counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Sessions
	SessionsAccepted int64
	SessionsRejected int64
	SessionsClosed   int64

	// Frames on the client socket
	FramesRead     int64
	FramesWritten  int64
	DecodeErrors   int64
	DispatchMisses int64

	// Backend
	BackendErrors int64

	// Bridge
	BridgeForwards     int64
	BridgeTopicsJoined int64
}

// Collector accumulates gateway counters.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	sessionsAccepted int64
	sessionsRejected int64
	sessionsClosed   int64

	framesRead     int64
	framesWritten  int64
	decodeErrors   int64
	dispatchMisses int64

	backendErrors int64

	bridgeForwards     int64
	bridgeTopicsJoined int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// IncSessionAccepted records a loopback connection accepted into a session.
func (c *Collector) IncSessionAccepted() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsAccepted)
}

// IncSessionRejected records a connection refused for a non-loopback peer.
func (c *Collector) IncSessionRejected() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsRejected)
}

// IncSessionClosed records a session teardown.
func (c *Collector) IncSessionClosed() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsClosed)
}

// IncFrameRead records one frame decoded from a client socket.
func (c *Collector) IncFrameRead() {
	if c == nil {
		return
	}
	c.inc(&c.framesRead)
}

// IncFrameWritten records one frame written to a client socket,
// whether a request response or a bridge forward.
func (c *Collector) IncFrameWritten() {
	if c == nil {
		return
	}
	c.inc(&c.framesWritten)
}

// IncDecodeError records a frame decode failure on a client socket.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.inc(&c.decodeErrors)
}

// IncDispatchMiss records a frame whose (channel, type) pair has no handler.
func (c *Collector) IncDispatchMiss() {
	if c == nil {
		return
	}
	c.inc(&c.dispatchMisses)
}

// IncBackendError records a failed backend call.
func (c *Collector) IncBackendError() {
	if c == nil {
		return
	}
	c.inc(&c.backendErrors)
}

// IncBridgeForward records a pusher message relayed to a client.
func (c *Collector) IncBridgeForward() {
	if c == nil {
		return
	}
	c.inc(&c.bridgeForwards)
}

// IncBridgeTopicJoined records a confirmed pusher topic subscription.
func (c *Collector) IncBridgeTopicJoined() {
	if c == nil {
		return
	}
	c.inc(&c.bridgeTopicsJoined)
}

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		SessionsAccepted: c.sessionsAccepted,
		SessionsRejected: c.sessionsRejected,
		SessionsClosed:   c.sessionsClosed,

		FramesRead:     c.framesRead,
		FramesWritten:  c.framesWritten,
		DecodeErrors:   c.decodeErrors,
		DispatchMisses: c.dispatchMisses,

		BackendErrors: c.backendErrors,

		BridgeForwards:     c.bridgeForwards,
		BridgeTopicsJoined: c.bridgeTopicsJoined,
	}
}
