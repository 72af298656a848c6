package llm

import (
	"context"
	"sync"
)

// Mock is a deterministic Provider for tests. RespondFunc maps a request to
// the generated text; every call reports a fixed token usage and is recorded.
type Mock struct {
	Tokens      int
	Err         error
	RespondFunc func(req Request) string

	mu       sync.Mutex
	requests []Request
}

// NewMock returns a mock provider reporting the given token usage per call.
func NewMock(tokens int) *Mock {
	return &Mock{Tokens: tokens}
}

// Generate records the request and returns the canned response.
func (m *Mock) Generate(ctx context.Context, req Request) (*Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	text := "mock answer"
	if m.RespondFunc != nil {
		text = m.RespondFunc(req)
	}
	return &Result{Text: text, TokensUsed: m.Tokens}, nil
}

// Requests returns a copy of all recorded requests.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// CallCount returns the number of Generate calls so far.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Close is a no-op for Mock.
func (m *Mock) Close() error { return nil }

var _ Provider = (*Mock)(nil)
