// Package pipeline drives draft documents through the generative backend
// chunk by chunk: budgeted calls with one overflow retry, structural
// validation, and loss-free reconstruction.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/ansuz/internal/limits"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/models"
)

// PassResult is the explicit outcome of one chunk's pass. Expected,
// recoverable conditions (overflow, empty output) are values here, never
// panics.
type PassResult struct {
	Text     string
	OK       bool
	Reason   string
	Attempts int
}

func failure(reason string, attempts int) PassResult {
	return PassResult{Reason: reason, Attempts: attempts}
}

// Orchestrator issues backend calls for single chunks (or whole documents
// when chunking was not needed). On an overflow-class error it retries
// exactly once with the budget halved; any other error, or a second
// overflow, is a non-retryable failure for that chunk. Retries never change
// the prompt content, only the budget.
type Orchestrator struct {
	backend llm.Backend
	logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given backend.
func NewOrchestrator(backend llm.Backend, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{backend: backend, logger: logger}
}

// Run performs at most two backend calls and returns the outcome.
// Empty output is a failure: the caller substitutes the original chunk so
// user content is never silently destroyed.
func (o *Orchestrator) Run(ctx context.Context, system, user string, temperature float64, budget models.TokenBudget) PassResult {
	out, err := o.backend.Complete(ctx, llm.Request{
		SystemPrompt:    system,
		UserPrompt:      user,
		Temperature:     temperature,
		MaxOutputTokens: budget.Tokens,
	})
	if err == nil {
		if strings.TrimSpace(out) == "" {
			return failure("empty output", 1)
		}
		return PassResult{Text: out, OK: true, Attempts: 1}
	}
	if !llm.IsOverflow(err) {
		return failure(err.Error(), 1)
	}

	reduced := limits.Reduce(budget)
	o.logger.Info("output budget overflow, retrying with reduced budget",
		slog.Int("budget", budget.Tokens), slog.Int("reduced", reduced.Tokens))

	out, err = o.backend.Complete(ctx, llm.Request{
		SystemPrompt:    system,
		UserPrompt:      user,
		Temperature:     temperature,
		MaxOutputTokens: reduced.Tokens,
	})
	if err != nil {
		return failure("retry after overflow failed: "+err.Error(), 2)
	}
	if strings.TrimSpace(out) == "" {
		return failure("empty output on retry", 2)
	}
	return PassResult{Text: out, OK: true, Attempts: 2}
}
