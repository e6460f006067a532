package store

import (
	"context"
	"errors"
	"fmt"
)

// TableStore reads and writes whole named tables as ordered rows of string
// cells. Writes replace the entire table; callers read-modify-write.
// Concurrent writers are not coordinated, the last writer wins.
type TableStore interface {
	ReadTable(ctx context.Context, name string) ([][]string, error)
	WriteTable(ctx context.Context, name string, rows [][]string) error
}

// TransientError marks a backend failure that is worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError is a store failure that exhausted the retry budget or cannot be
// retried at all. Guidance tells the user what to check.
type FatalError struct {
	Err      error
	Guidance string
}

func (e *FatalError) Error() string {
	if e.Guidance == "" {
		return fmt.Sprintf("fatal store error: %v", e.Err)
	}
	return fmt.Sprintf("fatal store error: %v (%s)", e.Err, e.Guidance)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable store failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err is a store failure past recovery.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}
