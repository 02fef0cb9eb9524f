// Package iox provides small Close helpers for deferred cleanup.
package iox

import "io"

// DiscardClose closes c, dropping the error. Meant for deferred closes
// of response bodies and sockets where the close error carries no
// information the caller can act on:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc wraps c.Close for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(conn))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}
