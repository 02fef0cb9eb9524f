package iox

import (
	"errors"
	"testing"
)

// countCloser counts Close calls and always fails, since both helpers
// exist to swallow exactly that failure.
type countCloser struct{ closes int }

func (c *countCloser) Close() error {
	c.closes++
	return errors.New("close failed")
}

func TestDiscardClose(t *testing.T) {
	c := &countCloser{}
	DiscardClose(c)
	if c.closes != 1 {
		t.Fatalf("closes = %d, want 1", c.closes)
	}
}

func TestCloseFunc(t *testing.T) {
	c := &countCloser{}
	fn := CloseFunc(c)
	if c.closes != 0 {
		t.Fatal("Close ran before the returned func was invoked")
	}
	fn()
	fn()
	if c.closes != 2 {
		t.Fatalf("closes = %d, want 2", c.closes)
	}
}
