package ocr

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Mock is an Engine for testing with configurable output and failures.
type Mock struct {
	Words          []Word // returned for every image
	Err            error  // returned by every Recognize call when set
	FailOnCall     int    // fail only the Nth Recognize call (1-based, 0 = never)
	UnavailableErr error  // returned by Available when set

	calls atomic.Int64
}

// Name identifies the engine.
func (m *Mock) Name() string { return "mock" }

// Available returns the configured availability error, if any.
func (m *Mock) Available() error { return m.UnavailableErr }

// Recognize returns the canned words, or the configured failure.
func (m *Mock) Recognize(ctx context.Context, image []byte) (*Result, error) {
	n := m.calls.Add(1)

	if m.Err != nil {
		return nil, m.Err
	}
	if m.FailOnCall > 0 && int(n) == m.FailOnCall {
		return nil, fmt.Errorf("ocr: mock failure on call %d", n)
	}

	words := make([]Word, len(m.Words))
	copy(words, m.Words)
	return &Result{Words: words}, nil
}

// Calls reports how many times Recognize has run.
func (m *Mock) Calls() int { return int(m.calls.Load()) }
