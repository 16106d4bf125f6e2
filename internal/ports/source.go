package ports

import (
	"context"
	"errors"
	"fmt"

	"entropyd/internal/domain"
)

// Source is one entropy input channel. ReadBlock may block indefinitely
// while waiting for hardware entropy; it is the system's designated
// blocking point and must never be called while holding a lock shared
// with other sources.
type Source interface {
	ID() string
	ReadBlock(ctx context.Context) (*domain.Block, error)
	Close() error
}

// ReadError classifies a source read failure. Transient failures
// (device momentarily busy) are retried with bounded backoff by the
// daemon; anything else kills the source.
type ReadError struct {
	Source    string
	Transient bool
	Err       error
}

func (e *ReadError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("source %s: %s read error: %v", e.Source, kind, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// IsTransientRead reports whether err is a retryable source read error.
func IsTransientRead(err error) bool {
	var re *ReadError
	return errors.As(err, &re) && re.Transient
}
