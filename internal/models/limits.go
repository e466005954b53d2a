package models

// Pass identifies which traversal of the document a backend call belongs to.
type Pass string

// Pass types.
const (
	PassFirst   Pass = "first"   // initial transcript-to-document pass
	PassLinking Pass = "linking" // timestamp-link insertion pass
)

// DeviceClass hints at the runtime environment so budgets can be capped on
// constrained devices, where backend-side truncation errors are more punishing.
type DeviceClass string

// Device classes.
const (
	DeviceFull        DeviceClass = "full"
	DeviceConstrained DeviceClass = "constrained"
)

// ModelLimits describes a model's context and output capacity. Values are
// never mutated after creation; user edits replace the struct wholesale.
type ModelLimits struct {
	ContextTokens    int     `json:"context_tokens" yaml:"context_tokens"`
	MaxOutputTokens  int     `json:"max_output_tokens" yaml:"max_output_tokens"`
	ReserveFraction  float64 `json:"reserve_fraction" yaml:"reserve_fraction"`
	ExplicitInputCap int     `json:"explicit_input_cap,omitempty" yaml:"explicit_input_cap,omitempty"`
}

// TokenBudget is the maximum number of output tokens a backend call may
// request. Always positive; derived on demand from ModelLimits, never
// persisted as a source of truth.
type TokenBudget struct {
	Tokens int
}
