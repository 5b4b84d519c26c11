// Package config loads text2block configuration.
//
// Values are layered, later layers winning:
//
//  1. [Default]
//  2. A TOML (.toml) or YAML (.yaml, .yml) file
//  3. TEXT2BLOCK_* environment variables (see [ApplyEnv])
//  4. Command-line flags, applied by the CLI
//
// Provider API keys are read from the provider's own variable
// (OPENAI_API_KEY, GROQ_API_KEY, ...) unless llm.api_key is set.
// Call [Config.Validate] after the last layer is applied.
//
// Example config.toml:
//
//	[llm]
//	provider = "openrouter"
//	model = "anthropic/claude-3.5-haiku"
//
//	[llm.explain]
//	provider = "groq"
//
//	[render]
//	format = "svg"
//	layout = "dot"
//
//	[repair]
//	max_attempts = 5
package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/text2block/pkg/cache"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/explain"
	"github.com/matzehuels/text2block/pkg/history"
	"github.com/matzehuels/text2block/pkg/llm"
	"github.com/matzehuels/text2block/pkg/prompt"
	"github.com/matzehuels/text2block/pkg/render"
)

const appName = "text2block"

// Render engine names.
const (
	EngineGraphviz = "graphviz"
	EngineExec     = "exec"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the complete text2block configuration.
type Config struct {
	LLM     LLMConfig     `toml:"llm" yaml:"llm" json:"llm"`
	Render  RenderConfig  `toml:"render" yaml:"render" json:"render"`
	Repair  RepairConfig  `toml:"repair" yaml:"repair" json:"repair"`
	Explain ExplainConfig `toml:"explain" yaml:"explain" json:"explain"`
	Prompts prompt.Files  `toml:"prompts" yaml:"prompts" json:"prompts"`
	Server  ServerConfig  `toml:"server" yaml:"server" json:"server"`
	Cache   CacheConfig   `toml:"cache" yaml:"cache" json:"cache"`
	History HistoryConfig `toml:"history" yaml:"history" json:"history"`
	Log     LogConfig     `toml:"log" yaml:"log" json:"log"`
}

// LLMConfig selects the generator used for diagrams and repairs. Explain,
// when set, overrides it for explanations.
type LLMConfig struct {
	llm.Config `yaml:",inline"`

	Explain *llm.Config `toml:"explain" yaml:"explain" json:"explain,omitempty"`
}

// RenderConfig selects the rendering engine and output.
type RenderConfig struct {
	// Engine is "graphviz" (in-process) or "exec" (external dot binary).
	Engine  string        `toml:"engine" yaml:"engine" json:"engine"`
	Binary  string        `toml:"binary" yaml:"binary" json:"binary,omitempty"`
	Args    []string      `toml:"args" yaml:"args" json:"args,omitempty"`
	Timeout time.Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
	Format  string        `toml:"format" yaml:"format" json:"format"`
	Layout  string        `toml:"layout" yaml:"layout" json:"layout"`
}

// RepairConfig bounds the repair loop.
type RepairConfig struct {
	MaxAttempts int `toml:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
}

// ExplainConfig selects the explanation mode.
type ExplainConfig struct {
	Mode string `toml:"mode" yaml:"mode" json:"mode"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `toml:"addr" yaml:"addr" json:"addr"`
	CORSOrigins     []string      `toml:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
	RequestTimeout  time.Duration `toml:"request_timeout" yaml:"request_timeout" json:"request_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// CacheConfig selects the result cache backend.
type CacheConfig struct {
	Backend string            `toml:"backend" yaml:"backend" json:"backend"`
	Dir     string            `toml:"dir" yaml:"dir" json:"dir,omitempty"`
	TTL     time.Duration     `toml:"ttl" yaml:"ttl" json:"ttl"`
	Redis   cache.RedisConfig `toml:"redis" yaml:"redis" json:"redis"`
}

// HistoryConfig selects the request history backend.
type HistoryConfig struct {
	Backend string              `toml:"backend" yaml:"backend" json:"backend"`
	Dir     string              `toml:"dir" yaml:"dir" json:"dir,omitempty"`
	Mongo   history.MongoConfig `toml:"mongo" yaml:"mongo" json:"mongo"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LLM: LLMConfig{Config: llm.Config{
			Provider: llm.DefaultProvider,
			Timeout:  llm.DefaultTimeout,
			Retries:  llm.DefaultRetries,
		}},
		Render: RenderConfig{
			Engine:  EngineGraphviz,
			Binary:  "dot",
			Timeout: 30 * time.Second,
			Format:  string(render.DefaultFormat),
			Layout:  string(render.DefaultLayout),
		},
		Repair:  RepairConfig{MaxAttempts: 3},
		Explain: ExplainConfig{Mode: string(explain.ModeText)},
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"*"},
			RequestTimeout:  2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Backend: cache.BackendFile,
			TTL:     cache.TTLResult,
		},
		History: HistoryConfig{Backend: history.BackendFile},
		Log:     LogConfig{Level: "info", Format: LogFormatText},
	}
}

// DiagramLLM returns the resolved generator config for diagrams and repairs.
func (c Config) DiagramLLM() llm.Config {
	return c.LLM.Config.WithDefaults()
}

// ExplainLLM returns the resolved generator config for explanations. Without
// an override it equals DiagramLLM. An override for the same provider
// inherits unset fields from the main section; an override for another
// provider starts from that provider's preset.
func (c Config) ExplainLLM() llm.Config {
	if c.LLM.Explain == nil {
		return c.DiagramLLM()
	}
	o := *c.LLM.Explain
	base := c.LLM.Config
	if o.Provider == "" || o.Provider == base.Provider {
		o.Provider = base.Provider
		if o.Model == "" {
			o.Model = base.Model
		}
		if o.BaseURL == "" {
			o.BaseURL = base.BaseURL
		}
		if o.APIKey == "" {
			o.APIKey = base.APIKey
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = base.APIKeyEnv
		}
		if o.Headers == nil {
			o.Headers = base.Headers
		}
	}
	if o.Timeout == 0 {
		o.Timeout = base.Timeout
	}
	if o.Retries == 0 {
		o.Retries = base.Retries
	}
	return o.WithDefaults()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.DiagramLLM().Validate(); err != nil {
		return err
	}
	if c.LLM.Explain != nil {
		if err := c.ExplainLLM().Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "llm.explain")
		}
	}

	switch c.Render.Engine {
	case EngineGraphviz:
	case EngineExec:
		if c.Render.Binary == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "render.binary is required for the exec engine")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown render engine %q (valid: graphviz, exec)", c.Render.Engine)
	}
	if _, err := render.ParseFormat(c.Render.Format); err != nil {
		return err
	}
	if _, err := render.ParseLayout(c.Render.Layout); err != nil {
		return err
	}
	if c.Render.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "render.timeout must not be negative")
	}

	if c.Repair.MaxAttempts < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "repair.max_attempts must be at least 1, got %d", c.Repair.MaxAttempts)
	}
	if _, err := explain.ParseMode(c.Explain.Mode); err != nil {
		return err
	}

	if err := oneOf("cache.backend", c.Cache.Backend, cache.BackendNone, cache.BackendFile, cache.BackendRedis); err != nil {
		return err
	}
	if c.Cache.Backend == cache.BackendRedis && c.Cache.Redis.Addr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.redis.addr is required for the redis backend")
	}
	if err := oneOf("history.backend", c.History.Backend, history.BackendNone, history.BackendFile, history.BackendMongo); err != nil {
		return err
	}
	if c.History.Backend == history.BackendMongo && c.History.Mongo.URI == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "history.mongo.uri is required for the mongo backend")
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "log.level")
	}
	return oneOf("log.format", c.Log.Format, LogFormatText, LogFormatJSON)
}

func oneOf(field, value string, valid ...string) error {
	if slices.Contains(valid, value) {
		return nil
	}
	return errors.New(errors.ErrCodeInvalidConfig, "unknown %s %q (valid: %s)", field, value, strings.Join(valid, ", "))
}

// DefaultPath returns $XDG_CONFIG_HOME/text2block/config.toml.
func DefaultPath() (string, error) {
	dir, err := baseDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the file cache directory: cache.dir, or
// $XDG_CACHE_HOME/text2block.
func (c Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	return baseDir("XDG_CACHE_HOME", ".cache")
}

// HistoryDir returns the file history directory: history.dir, or
// $XDG_DATA_HOME/text2block/history.
func (c Config) HistoryDir() (string, error) {
	if c.History.Dir != "" {
		return c.History.Dir, nil
	}
	dir, err := baseDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}

func baseDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}
