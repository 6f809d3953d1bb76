package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when required settings are missing or invalid.
	ErrConfiguration = errors.New("configuration error")
	// ErrLoad is returned when documents cannot be enumerated or parsed.
	ErrLoad = errors.New("load error")
	// ErrChunking is returned for invalid chunk size/overlap parameters.
	ErrChunking = errors.New("chunking error")
	// ErrIndexWrite is returned when an index reset or batch commit fails.
	ErrIndexWrite = errors.New("index write error")
	// ErrIndexRead is returned when a similarity search fails.
	ErrIndexRead = errors.New("index read error")
	// ErrModelCall is returned when a generative or embedding model call fails.
	ErrModelCall = errors.New("model call error")
	// ErrTimeout is attached in addition to the kind when a call ran out of time.
	ErrTimeout = errors.New("timeout")
)

var kinds = []error{
	ErrConfiguration,
	ErrLoad,
	ErrChunking,
	ErrIndexWrite,
	ErrIndexRead,
	ErrModelCall,
}

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Error tags an underlying error with one of the kinds above.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
}

// Unwrap exposes the kind, the cause and, for expired deadlines, ErrTimeout.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
		if e.Kind != ErrTimeout && errors.Is(e.Err, context.DeadlineExceeded) {
			errs = append(errs, ErrTimeout)
		}
	}
	return errs
}

// Wrap tags err with kind. It returns nil when err is nil.
func Wrap(kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// New creates a kind-tagged error without an underlying cause.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the first kind err matches, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// IsTimeout reports whether err was caused by an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// BatchError reports a failed index commit and how much was committed before it.
// Committed batches are not rolled back.
type BatchError struct {
	Batch            int
	CommittedBatches int
	CommittedChunks  int
	Err              error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed (%d batches, %d chunks committed before failure): %v",
		e.Batch, e.CommittedBatches, e.CommittedChunks, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
