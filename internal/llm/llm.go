// Package llm provides the language model interface used by the chat engines.
package llm

import "context"

// Request is one generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	// StopSequences stop generation when emitted (e.g. "\nSQLResult:" for
	// SQL generation). Optional.
	StopSequences []string
}

// Result is the generated text plus the provider-reported token usage for
// the whole call (prompt + completion).
type Result struct {
	Text       string
	TokensUsed int
}

// Provider generates text from a prompt.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Result, error)
	Close() error
}
