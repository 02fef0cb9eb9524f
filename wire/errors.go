package wire

import (
	"errors"
	"fmt"
)

// Sentinel errors for frame decode failures.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrTruncatedLength indicates the stream closed inside the 2-byte
	// length prefix.
	ErrTruncatedLength = errors.New("truncated length prefix")

	// ErrMalformedHeader indicates the header bytes did not decode into
	// a valid Header structure.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrTruncatedPayload indicates the stream closed before the number
	// of payload bytes declared by the header arrived.
	ErrTruncatedPayload = errors.New("truncated payload")

	// ErrHeaderTooLarge indicates an encoded header exceeded the 2-byte
	// length prefix range. Cannot happen with well-formed headers.
	ErrHeaderTooLarge = errors.New("header too large")
)

// FrameError wraps an underlying error with decode classification.
// It preserves the original error in the chain for errors.As inspection.
type FrameError struct {
	// Kind is the sentinel error for classification.
	Kind error
	// Err is the underlying error, if any.
	Err error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode frame: %v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("decode frame: %v", e.Kind)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *FrameError) Unwrap() error { return e.Err }

// Is reports whether the error matches the target sentinel.
func (e *FrameError) Is(target error) bool { return errors.Is(e.Kind, target) }

func frameErr(kind, err error) error {
	return &FrameError{Kind: kind, Err: err}
}
