package internal

import "time"

// Option configures the application before Run or RunMCP starts it.
type Option func(*application)

type application struct {
	config         *Config
	brokerThrottle time.Duration
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithBrokerThrottle overrides how often the SSE broker emits the aggregate
// runs.updated event. Zero keeps the default.
func WithBrokerThrottle(d time.Duration) Option {
	return func(a *application) {
		a.brokerThrottle = d
	}
}
