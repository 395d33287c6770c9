package poller

import "fmt"

// InitError is fatal: the starting watermark could not be determined before
// the poll loop began. It propagates to the caller and aborts startup.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to determine starting watermark: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// CycleError wraps a failure inside a single poll cycle. Cycle errors are
// recoverable: the cycle is treated as empty and the loop continues at the
// next tick.
type CycleError struct {
	Err error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("poll cycle failed: %v", e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// ParseError reports a checkpoint value that is not a base-10 integer.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("checkpoint value %q is not numeric: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
