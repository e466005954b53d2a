// Package limits resolves model capacity limits and derives safe output
// token budgets from them.
package limits

import (
	"strings"
	"sync"

	"github.com/starford/ansuz/internal/models"
)

// Providers with a known-safe local deployment profile get a higher default
// reserve fraction; their output-length behavior is less predictable.
const (
	reserveHosted = 0.10
	reserveLocal  = 0.15
)

// localProviders are backends that run on the user's own hardware.
var localProviders = map[string]struct{}{
	"ollama":   {},
	"lmstudio": {},
}

// staticTable maps provider/model to known limits. User overrides augment
// it; they never modify it.
var staticTable = map[string]models.ModelLimits{
	key("openai", "gpt-4o"):                   {ContextTokens: 128000, MaxOutputTokens: 16384, ReserveFraction: reserveHosted},
	key("openai", "gpt-4o-mini"):              {ContextTokens: 128000, MaxOutputTokens: 16384, ReserveFraction: reserveHosted},
	key("openai", "gpt-4.1"):                  {ContextTokens: 1047576, MaxOutputTokens: 32768, ReserveFraction: reserveHosted},
	key("openai", "gpt-4.1-mini"):             {ContextTokens: 1047576, MaxOutputTokens: 32768, ReserveFraction: reserveHosted},
	key("openai", "o3-mini"):                  {ContextTokens: 200000, MaxOutputTokens: 100000, ReserveFraction: reserveHosted},
	key("anthropic", "claude-3-5-sonnet"):     {ContextTokens: 200000, MaxOutputTokens: 8192, ReserveFraction: reserveHosted},
	key("anthropic", "claude-3-5-haiku"):      {ContextTokens: 200000, MaxOutputTokens: 8192, ReserveFraction: reserveHosted},
	key("anthropic", "claude-3-7-sonnet"):     {ContextTokens: 200000, MaxOutputTokens: 64000, ReserveFraction: reserveHosted},
	key("openrouter", "deepseek/deepseek-r1"): {ContextTokens: 128000, MaxOutputTokens: 32768, ReserveFraction: reserveHosted},
	key("ollama", "llama3.1"):                 {ContextTokens: 131072, MaxOutputTokens: 4096, ReserveFraction: reserveLocal},
	key("ollama", "llama3.2"):                 {ContextTokens: 131072, MaxOutputTokens: 4096, ReserveFraction: reserveLocal},
	key("ollama", "mistral"):                  {ContextTokens: 32768, MaxOutputTokens: 4096, ReserveFraction: reserveLocal},
	key("ollama", "qwen2.5"):                  {ContextTokens: 131072, MaxOutputTokens: 8192, ReserveFraction: reserveLocal},
	key("lmstudio", "default"):                {ContextTokens: 32768, MaxOutputTokens: 4096, ReserveFraction: reserveLocal},
}

// Registry looks up model limits from the static table, augmented by
// user-supplied overrides for unrecognized models. A run treats the registry
// as read-only; overrides are edited from the settings surface between runs.
type Registry struct {
	mu        sync.RWMutex
	overrides map[string]models.ModelLimits
}

// NewRegistry creates a registry with the given initial overrides
// (typically sourced from configuration; may be nil).
func NewRegistry(overrides map[string]models.ModelLimits) *Registry {
	r := &Registry{overrides: make(map[string]models.ModelLimits, len(overrides))}
	for k, v := range overrides {
		r.overrides[strings.ToLower(k)] = v
	}
	return r
}

// Lookup returns the limits for (provider, model). Not finding arbitrary
// user-entered identifiers is a normal outcome, reported via ok=false, not
// an error. Overrides take precedence over the static table.
func (r *Registry) Lookup(provider, model string) (models.ModelLimits, bool) {
	k := key(provider, model)

	r.mu.RLock()
	lim, ok := r.overrides[k]
	r.mu.RUnlock()
	if ok {
		return withDefaults(lim, provider), true
	}

	if lim, ok := staticTable[k]; ok {
		return lim, true
	}
	return models.ModelLimits{}, false
}

// Upsert inserts or replaces an override for (provider, model). The static
// table is never affected. The limits struct is replaced wholesale.
func (r *Registry) Upsert(provider, model string, lim models.ModelLimits) {
	r.mu.Lock()
	r.overrides[key(provider, model)] = lim
	r.mu.Unlock()
}

// IsLocal reports whether provider runs on the user's own hardware.
func IsLocal(provider string) bool {
	_, ok := localProviders[strings.ToLower(provider)]
	return ok
}

// DefaultReserve returns the default reserve fraction for a provider.
func DefaultReserve(provider string) float64 {
	if IsLocal(provider) {
		return reserveLocal
	}
	return reserveHosted
}

// withDefaults fills a zero reserve fraction with the provider default so a
// partial override still budgets safely.
func withDefaults(lim models.ModelLimits, provider string) models.ModelLimits {
	if lim.ReserveFraction <= 0 {
		lim.ReserveFraction = DefaultReserve(provider)
	}
	return lim
}

func key(provider, model string) string {
	return strings.ToLower(provider) + "/" + strings.ToLower(model)
}
