package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/llm"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TEXT2BLOCK_"

// Load returns the defaults overlaid with the file at path and the
// environment. An empty path loads [DefaultPath] if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if p, err := DefaultPath(); err == nil {
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a config file body on top of the defaults. The format is
// chosen by the extension of name.
func Parse(name string, data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.decode(name, data); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	return c.decode(path, data)
}

func (c *Config) decode(name string, data []byte) error {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), c)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", name)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "unknown key %q in %s", undecoded[0].String(), name)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", name)
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unsupported config format %q (want .toml, .yaml or .yml)", ext)
	}
	return nil
}

type envVar struct {
	name  string
	apply func(c *Config, v string) error
}

func str(field func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func explainLLM(c *Config) *llm.Config {
	if c.LLM.Explain == nil {
		c.LLM.Explain = &llm.Config{}
	}
	return c.LLM.Explain
}

var envVars = []envVar{
	{"PROVIDER", str(func(c *Config) *string { return &c.LLM.Provider })},
	{"MODEL", str(func(c *Config) *string { return &c.LLM.Model })},
	{"BASE_URL", str(func(c *Config) *string { return &c.LLM.BaseURL })},
	{"API_KEY", str(func(c *Config) *string { return &c.LLM.APIKey })},
	{"EXPLAIN_PROVIDER", str(func(c *Config) *string { return &explainLLM(c).Provider })},
	{"EXPLAIN_MODEL", str(func(c *Config) *string { return &explainLLM(c).Model })},
	{"EXPLAIN_MODE", str(func(c *Config) *string { return &c.Explain.Mode })},
	{"RENDER_ENGINE", str(func(c *Config) *string { return &c.Render.Engine })},
	{"DOT_BINARY", str(func(c *Config) *string { return &c.Render.Binary })},
	{"FORMAT", str(func(c *Config) *string { return &c.Render.Format })},
	{"LAYOUT", str(func(c *Config) *string { return &c.Render.Layout })},
	{"MAX_ATTEMPTS", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%sMAX_ATTEMPTS", EnvPrefix)
		}
		c.Repair.MaxAttempts = n
		return nil
	}},
	{"ADDR", str(func(c *Config) *string { return &c.Server.Addr })},
	{"CACHE_BACKEND", str(func(c *Config) *string { return &c.Cache.Backend })},
	{"CACHE_DIR", str(func(c *Config) *string { return &c.Cache.Dir })},
	{"REDIS_ADDR", str(func(c *Config) *string { return &c.Cache.Redis.Addr })},
	{"REDIS_PASSWORD", str(func(c *Config) *string { return &c.Cache.Redis.Password })},
	{"HISTORY_BACKEND", str(func(c *Config) *string { return &c.History.Backend })},
	{"HISTORY_DIR", str(func(c *Config) *string { return &c.History.Dir })},
	{"MONGO_URI", str(func(c *Config) *string { return &c.History.Mongo.URI })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Log.Level })},
	{"LOG_FORMAT", str(func(c *Config) *string { return &c.Log.Format })},
}

// ApplyEnv overlays TEXT2BLOCK_* variables found through lookup. Empty
// values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(EnvPrefix + ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.apply(c, v); err != nil {
			return err
		}
	}
	return nil
}

// EnvNames lists every recognised environment variable.
func EnvNames() []string {
	names := make([]string, len(envVars))
	for i, ev := range envVars {
		names[i] = EnvPrefix + ev.name
	}
	return names
}
