package llm

import (
	"maps"
	"os"
	"slices"
	"time"

	"github.com/matzehuels/text2block/pkg/errors"
)

// Provider names.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGroq       = "groq"
	ProviderAnthropic  = "anthropic"
)

// Defaults applied by [Config.WithDefaults].
const (
	DefaultProvider  = ProviderOpenAI
	DefaultTimeout   = 60 * time.Second
	DefaultRetries   = 3
	DefaultMaxTokens = 4000
)

type protocol int

const (
	protocolChat protocol = iota
	protocolMessages
)

// Preset describes a built-in provider.
type Preset struct {
	Name      string
	BaseURL   string
	Model     string
	APIKeyEnv string
	Headers   map[string]string

	protocol protocol
}

var presets = map[string]Preset{
	ProviderOpenAI: {
		Name:      ProviderOpenAI,
		BaseURL:   "https://api.openai.com/v1",
		Model:     "gpt-4o-mini",
		APIKeyEnv: "OPENAI_API_KEY",
	},
	ProviderOpenRouter: {
		Name:      ProviderOpenRouter,
		BaseURL:   "https://openrouter.ai/api/v1",
		Model:     "anthropic/claude-3.5-haiku",
		APIKeyEnv: "OPENROUTER_API_KEY",
		Headers: map[string]string{
			"HTTP-Referer": "https://github.com/matzehuels/text2block",
			"X-Title":      "Text2Block",
		},
	},
	ProviderGroq: {
		Name:      ProviderGroq,
		BaseURL:   "https://api.groq.com/openai/v1",
		Model:     "llama-3.3-70b-versatile",
		APIKeyEnv: "GROQ_API_KEY",
	},
	ProviderAnthropic: {
		Name:      ProviderAnthropic,
		BaseURL:   "https://api.anthropic.com/v1",
		Model:     "claude-3-5-haiku-latest",
		APIKeyEnv: "ANTHROPIC_API_KEY",
		protocol:  protocolMessages,
	},
}

// Providers returns the built-in provider names in sorted order.
func Providers() []string {
	return slices.Sorted(maps.Keys(presets))
}

// Lookup returns the preset for a provider name.
func Lookup(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// Config selects and tunes a provider. Zero fields take the provider preset
// or package defaults.
type Config struct {
	Provider    string            `toml:"provider" yaml:"provider" json:"provider"`
	Model       string            `toml:"model" yaml:"model" json:"model"`
	BaseURL     string            `toml:"base_url" yaml:"base_url" json:"base_url,omitempty"`
	APIKey      string            `toml:"api_key" yaml:"api_key" json:"-"`
	APIKeyEnv   string            `toml:"api_key_env" yaml:"api_key_env" json:"api_key_env,omitempty"`
	Timeout     time.Duration     `toml:"timeout" yaml:"timeout" json:"timeout"`
	Retries     int               `toml:"retries" yaml:"retries" json:"retries"`
	Temperature float64           `toml:"temperature" yaml:"temperature" json:"temperature"`
	MaxTokens   int               `toml:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	Headers     map[string]string `toml:"headers" yaml:"headers" json:"headers,omitempty"`
}

// WithDefaults fills unset fields from the provider preset. Unknown
// providers keep their fields as given.
func (c Config) WithDefaults() Config {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if p, ok := presets[c.Provider]; ok {
		if c.Model == "" {
			c.Model = p.Model
		}
		if c.BaseURL == "" {
			c.BaseURL = p.BaseURL
		}
		if c.APIKeyEnv == "" {
			c.APIKeyEnv = p.APIKeyEnv
		}
		if len(p.Headers) > 0 {
			headers := maps.Clone(p.Headers)
			maps.Copy(headers, c.Headers)
			c.Headers = headers
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.APIKey == "" && c.APIKeyEnv != "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
	return c
}

// Validate reports configuration errors without contacting the provider.
func (c Config) Validate() error {
	if _, ok := presets[c.Provider]; !ok {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown llm provider %q (valid: %v)", c.Provider, Providers())
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New(errors.ErrCodeInvalidConfig, "llm temperature must be between 0 and 2, got %v", c.Temperature)
	}
	return nil
}

// New builds the generator for cfg after applying defaults.
func New(cfg Config) (Generator, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"%s API key not set: export %s or set llm.api_key", cfg.Provider, cfg.APIKeyEnv)
	}

	if presets[cfg.Provider].protocol == protocolMessages {
		return NewClaude(cfg), nil
	}
	return NewOpenAI(cfg), nil
}
