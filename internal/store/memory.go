package store

import (
	"context"
	"sync"
)

// Memory is an in-memory table store used by tests and local development.
// It can inject transient failures to exercise the retry path.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][][]string

	failures int
	failErr  error

	reads  int
	writes int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][][]string)}
}

// FailNext makes the next n operations return err before touching state.
func (s *Memory) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
	s.failErr = err
}

// Counts returns how many reads and writes reached the store, including
// injected failures.
func (s *Memory) Counts() (reads, writes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads, s.writes
}

func (s *Memory) takeFailure() error {
	if s.failures > 0 {
		s.failures--
		return s.failErr
	}
	return nil
}

// ReadTable returns a copy of the named table; missing tables are empty.
func (s *Memory) ReadTable(ctx context.Context, name string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	return copyRows(s.tables[name]), nil
}

// WriteTable replaces the named table with a copy of rows.
func (s *Memory) WriteTable(ctx context.Context, name string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.tables[name] = copyRows(rows)
	return nil
}
