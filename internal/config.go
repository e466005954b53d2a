package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Known backend providers.
var knownProviders = []any{"openai", "anthropic", "openrouter", "ollama", "lmstudio"}

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig             `yaml:"app"`
	Vault    VaultConfig                   `yaml:"vault"`
	Inbox    InboxConfig                   `yaml:"inbox"`
	SQLite   SQLiteConfig                  `yaml:"sqlite"`
	Auth     AuthConfig                    `yaml:"auth"`
	Backend  BackendConfig                 `yaml:"backend"`
	Pipeline PipelineConfig                `yaml:"pipeline"`
	Models   map[string]models.ModelLimits `yaml:"models"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Inbox.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	return c.Pipeline.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// InboxConfig holds the transcript drop directory configuration.
// An empty path disables the inbox watcher.
type InboxConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether the inbox watcher should run.
func (c *InboxConfig) Enabled() bool {
	return c.Path != ""
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return nil
}

// SQLiteConfig holds the run-history database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// BackendConfig holds the generative backend configuration.
type BackendConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// BaseURL overrides the provider's default endpoint. Required for local
	// providers (ollama, lmstudio).
	BaseURL string `yaml:"base_url"`
	// APIKey supports ${VAR} expansion via the config loader.
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	// MaxOutputTokens is a hard host-side ceiling applied on top of the
	// model's own limits. Zero means no ceiling.
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	DeviceClass     string `yaml:"device_class"`
}

// Device returns the configured device class, defaulting to full.
func (c *BackendConfig) Device() models.DeviceClass {
	if c.DeviceClass == string(models.DeviceConstrained) {
		return models.DeviceConstrained
	}
	return models.DeviceFull
}

// Validate validates the backend configuration.
func (c *BackendConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(knownProviders...)),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.MaxOutputTokens, validation.Min(0)),
		validation.Field(&c.DeviceClass, validation.In(string(models.DeviceFull), string(models.DeviceConstrained))),
	); err != nil {
		return err
	}
	return nil
}

// PipelineConfig holds the pipeline tunables. Zero values fall back to the
// shipped defaults.
type PipelineConfig struct {
	MinBucketSeconds      int    `yaml:"min_bucket_seconds"`
	ChunkHeadingThreshold int    `yaml:"chunk_heading_threshold"`
	LinkTemplate          string `yaml:"link_template"`
	SummarySystemPrompt   string `yaml:"summary_system_prompt"`
	LinkingSystemPrompt   string `yaml:"linking_system_prompt"`
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinBucketSeconds, validation.Min(0)),
		validation.Field(&c.ChunkHeadingThreshold, validation.Min(0)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Backend: BackendConfig{
			Provider:    "ollama",
			Model:       "llama3.1",
			BaseURL:     "http://localhost:11434/v1",
			Temperature: 0.2,
		},
	}
}
