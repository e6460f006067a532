package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestRetrier(next TableStore, max int) (*Retrier, *[]time.Duration) {
	r := NewRetrier(next, max, 100*time.Millisecond, testLogger())
	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, &slept
}

func TestRetrierRecoversFromTransientFailures(t *testing.T) {
	mem := NewMemory()
	if err := mem.WriteTable(context.Background(), "t", [][]string{{"a"}}); err != nil {
		t.Fatal(err)
	}
	mem.FailNext(2, &TransientError{Err: errors.New("backend unavailable")})

	r, slept := newTestRetrier(mem, 5)
	rows, err := r.ReadTable(context.Background(), "t")
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "a" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if len(*slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(*slept))
	}
	// backoff doubles: 100ms+50ms, then 200ms+100ms
	if (*slept)[0] != 150*time.Millisecond || (*slept)[1] != 300*time.Millisecond {
		t.Fatalf("unexpected backoff sequence: %v", *slept)
	}
}

func TestRetrierEscalatesToFatalAfterExhaustion(t *testing.T) {
	mem := NewMemory()
	mem.FailNext(10, &TransientError{Err: errors.New("backend unavailable")})

	r, slept := newTestRetrier(mem, 3)
	err := r.WriteTable(context.Background(), "t", [][]string{{"x"}})
	if !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	// max attempts sleep max-1 times
	if len(*slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(*slept))
	}
	_, writes := mem.Counts()
	if writes != 3 {
		t.Fatalf("expected 3 write attempts, got %d", writes)
	}
}

func TestRetrierDoesNotRetryNonTransientErrors(t *testing.T) {
	mem := NewMemory()
	fatal := &FatalError{Err: errors.New("corrupt row")}
	mem.FailNext(1, fatal)

	r, slept := newTestRetrier(mem, 5)
	_, err := r.ReadTable(context.Background(), "t")
	if !errors.Is(err, fatal.Err) && !IsFatal(err) {
		t.Fatalf("expected the fatal error back, got %v", err)
	}
	if len(*slept) != 0 {
		t.Fatalf("non-transient error must not be retried, slept %v", *slept)
	}
	reads, _ := mem.Counts()
	if reads != 1 {
		t.Fatalf("expected a single attempt, got %d", reads)
	}
}
