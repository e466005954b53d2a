package limits

import (
	"log/slog"
	"math"

	"github.com/starford/ansuz/internal/models"
)

// Budget tuning constants. Empirically chosen; tunable, not structural.
const (
	// linkingPassFactor leaves headroom for appended link syntax on the
	// second pass.
	linkingPassFactor = 0.85
	// constrainedDeviceCap bounds budgets on constrained devices, where
	// backend-side truncation errors are more punishing.
	constrainedDeviceCap = 1024
	// safeMinimumTokens is the floor used when a computed budget would not
	// be positive or when nothing at all is known about the model.
	safeMinimumTokens = 512
)

// Estimator derives effective output-token budgets from registry limits and
// the user's configured ceiling. It is a pure function of its inputs; the
// budget is recomputed on demand and never persisted.
type Estimator struct {
	registry *Registry
	// ceiling is the user's raw configured max-output-tokens value, used
	// when the model is unknown and no override exists.
	ceiling int
	logger  *slog.Logger
}

// NewEstimator creates an estimator. ceiling must come from user
// configuration; a non-positive ceiling falls back to the safe minimum.
func NewEstimator(registry *Registry, ceiling int, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{registry: registry, ceiling: ceiling, logger: logger}
}

// Budget computes the effective output budget for one backend call.
// Budget estimation must never be a hard failure point: every fallback path
// yields a positive value.
func (e *Estimator) Budget(provider, model string, pass models.Pass, device models.DeviceClass) models.TokenBudget {
	tokens := e.rawBudget(provider, model)

	if pass == models.PassLinking {
		tokens = int(math.Floor(float64(tokens) * linkingPassFactor))
	}

	if device == models.DeviceConstrained && tokens > constrainedDeviceCap {
		tokens = constrainedDeviceCap
	}

	if tokens <= 0 {
		e.logger.Warn("budget fell to zero, using safe minimum",
			slog.String("provider", provider), slog.String("model", model))
		tokens = safeMinimumTokens
	}
	return models.TokenBudget{Tokens: tokens}
}

// rawBudget resolves limits and applies the reserve fraction, falling back
// to the configured ceiling for unknown models.
func (e *Estimator) rawBudget(provider, model string) int {
	lim, ok := e.registry.Lookup(provider, model)
	if !ok {
		if e.ceiling > 0 {
			return e.ceiling
		}
		return safeMinimumTokens
	}

	reserve := lim.ReserveFraction
	if reserve < 0 || reserve >= 1 {
		reserve = DefaultReserve(provider)
	}
	budget := int(math.Floor(float64(lim.MaxOutputTokens) * (1 - reserve)))

	// The user's ceiling is an upper bound even for known models.
	if e.ceiling > 0 && budget > e.ceiling {
		budget = e.ceiling
	}
	return budget
}

// Reduce halves a budget after an overflow, flooring at one token.
func Reduce(b models.TokenBudget) models.TokenBudget {
	half := b.Tokens / 2
	if half < 1 {
		half = 1
	}
	return models.TokenBudget{Tokens: half}
}
