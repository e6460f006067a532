package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Retrier decorates a TableStore with bounded exponential backoff. Only
// transient failures are retried; exhaustion escalates to a FatalError
// carrying guidance for the user.
type Retrier struct {
	next  TableStore
	max   int
	base  time.Duration
	log   *logrus.Logger
	sleep func(time.Duration)
}

// NewRetrier wraps next with up to max attempts and the given base delay.
func NewRetrier(next TableStore, max int, base time.Duration, log *logrus.Logger) *Retrier {
	return &Retrier{next: next, max: max, base: base, log: log, sleep: time.Sleep}
}

const guidance = "verify the store connection settings, that the credentials grant access, and that the table name is correct"

func (r *Retrier) do(ctx context.Context, op, name string, fn func() error) error {
	var err error
	delay := r.base
	for attempt := 1; attempt <= r.max; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == r.max {
			break
		}
		// base doubles each attempt, plus a small linear jitter.
		wait := delay + time.Duration(attempt)*50*time.Millisecond
		r.log.Warnf("%s %s failed (attempt %d/%d), retrying in %v: %v", op, name, attempt, r.max, wait, err)
		select {
		case <-ctx.Done():
			return &FatalError{Err: fmt.Errorf("%s %s canceled: %w", op, name, ctx.Err())}
		default:
		}
		r.sleep(wait)
		delay *= 2
	}
	return &FatalError{
		Err:      fmt.Errorf("%s %s failed after %d attempts: %w", op, name, r.max, err),
		Guidance: guidance,
	}
}

// ReadTable reads through with retries.
func (r *Retrier) ReadTable(ctx context.Context, name string) ([][]string, error) {
	var rows [][]string
	err := r.do(ctx, "read", name, func() error {
		var err error
		rows, err = r.next.ReadTable(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// WriteTable writes through with retries.
func (r *Retrier) WriteTable(ctx context.Context, name string, rows [][]string) error {
	return r.do(ctx, "write", name, func() error {
		return r.next.WriteTable(ctx, name, rows)
	})
}
