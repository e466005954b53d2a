// Package llm defines the generative backend call contract consumed by the
// pipeline, plus an OpenAI-compatible HTTP client implementing it.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Request is a single generation call.
type Request struct {
	SystemPrompt    string
	UserPrompt      string
	Temperature     float64
	MaxOutputTokens int
}

// Backend is the generative call contract. Implementations fail with an
// OverflowError when MaxOutputTokens is too small for the response the
// backend attempted to produce, and with a generic error for anything else
// (auth, network, malformed request).
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
	Model() string
}

// OverflowError reports that the backend rejected the requested output
// length.
type OverflowError struct {
	RequestedTokens int
	Message         string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("llm: output budget overflow (requested %d tokens): %s", e.RequestedTokens, e.Message)
}

// IsOverflow reports whether err is an overflow-class failure.
func IsOverflow(err error) bool {
	var oe *OverflowError
	return errors.As(err, &oe)
}
