package modelguard

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the yaml-loadable configuration for a Client. Durations are
// expressed in seconds to keep the file format language-neutral.
type Config struct {
	Cache struct {
		MaxSize    int     `yaml:"max_size"`
		TTLSeconds float64 `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	Circuit struct {
		Default   BreakerConfigYAML            `yaml:"default"`
		Overrides map[string]BreakerConfigYAML `yaml:"overrides"`
	} `yaml:"circuit"`

	Router struct {
		Models []ModelConfigYAML `yaml:"models"`
	} `yaml:"router"`

	RateLimit struct {
		Default RouteLimitYAML            `yaml:"default"`
		Routes  map[string]RouteLimitYAML `yaml:"routes"`
	} `yaml:"rate_limit"`

	Debug struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"debug"`
}

// BreakerConfigYAML mirrors BreakerConfig with second-based timeouts.
type BreakerConfigYAML struct {
	FailureThreshold int     `yaml:"failure_threshold"`
	SuccessThreshold int     `yaml:"success_threshold"`
	TimeoutSeconds   float64 `yaml:"timeout_seconds"`
	HalfOpenMaxCalls int     `yaml:"half_open_max_calls"`
}

func (b BreakerConfigYAML) toConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: b.FailureThreshold,
		SuccessThreshold: b.SuccessThreshold,
		RecoveryTimeout:  secondsToDuration(b.TimeoutSeconds),
		HalfOpenMaxCalls: b.HalfOpenMaxCalls,
	}
}

// ModelConfigYAML mirrors ModelConfig with second-based timeouts.
type ModelConfigYAML struct {
	Name           string   `yaml:"name"`
	Tier           int      `yaml:"tier"`
	Provider       string   `yaml:"provider"`
	ModelID        string   `yaml:"model_id"`
	MaxTokens      int      `yaml:"max_tokens"`
	TimeoutSeconds float64  `yaml:"timeout_seconds"`
	CostPerUnit    float64  `yaml:"cost_per_unit"`
	Capabilities   []string `yaml:"capabilities"`
}

func (m ModelConfigYAML) toConfig() ModelConfig {
	return ModelConfig{
		Name:         m.Name,
		Tier:         m.Tier,
		Provider:     m.Provider,
		ModelID:      m.ModelID,
		MaxTokens:    m.MaxTokens,
		Timeout:      secondsToDuration(m.TimeoutSeconds),
		CostPerUnit:  m.CostPerUnit,
		Capabilities: m.Capabilities,
	}
}

// RouteLimitYAML mirrors RouteLimit with second-based windows.
type RouteLimitYAML struct {
	Limit         int     `yaml:"limit"`
	WindowSeconds float64 `yaml:"window_seconds"`
}

func (r RouteLimitYAML) toLimit() RouteLimit {
	return RouteLimit{
		Limit:  r.Limit,
		Window: secondsToDuration(r.WindowSeconds),
	}
}

// LoadConfig reads and validates a yaml config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates yaml config bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Cache.MaxSize < 0 {
		problems = append(problems, "cache.max_size must be non-negative")
	}
	if c.Cache.TTLSeconds < 0 {
		problems = append(problems, "cache.ttl_seconds must be non-negative")
	}

	problems = append(problems, validateBreakerYAML("circuit.default", c.Circuit.Default)...)
	for name, b := range c.Circuit.Overrides {
		problems = append(problems, validateBreakerYAML("circuit.overrides."+name, b)...)
	}

	seen := make(map[string]bool, len(c.Router.Models))
	for i, m := range c.Router.Models {
		where := fmt.Sprintf("router.models[%d]", i)
		if m.Name == "" {
			problems = append(problems, where+": name is required")
		} else if seen[m.Name] {
			problems = append(problems, where+": duplicate name "+m.Name)
		}
		seen[m.Name] = true
		if m.Provider == "" {
			problems = append(problems, where+": provider is required")
		}
		if m.Tier < 0 {
			problems = append(problems, where+": tier must be non-negative")
		}
		if m.TimeoutSeconds < 0 {
			problems = append(problems, where+": timeout_seconds must be non-negative")
		}
		if m.CostPerUnit < 0 {
			problems = append(problems, where+": cost_per_unit must be non-negative")
		}
	}

	problems = append(problems, validateLimitYAML("rate_limit.default", c.RateLimit.Default)...)
	for route, r := range c.RateLimit.Routes {
		problems = append(problems, validateLimitYAML("rate_limit.routes."+route, r)...)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validateBreakerYAML(where string, b BreakerConfigYAML) []string {
	var problems []string
	if b.FailureThreshold < 0 {
		problems = append(problems, where+".failure_threshold must be non-negative")
	}
	if b.SuccessThreshold < 0 {
		problems = append(problems, where+".success_threshold must be non-negative")
	}
	if b.TimeoutSeconds < 0 {
		problems = append(problems, where+".timeout_seconds must be non-negative")
	}
	if b.HalfOpenMaxCalls < 0 {
		problems = append(problems, where+".half_open_max_calls must be non-negative")
	}
	return problems
}

func validateLimitYAML(where string, r RouteLimitYAML) []string {
	var problems []string
	if r.Limit < 0 {
		problems = append(problems, where+".limit must be non-negative")
	}
	if r.WindowSeconds < 0 {
		problems = append(problems, where+".window_seconds must be non-negative")
	}
	return problems
}

// Options converts the config into client options. Provider handlers are
// registered separately by the caller.
func (c *Config) Options() []Option {
	opts := []Option{}

	if c.Cache.MaxSize > 0 || c.Cache.TTLSeconds > 0 {
		maxSize := c.Cache.MaxSize
		if maxSize == 0 {
			maxSize = 1024
		}
		opts = append(opts, WithCache(maxSize, secondsToDuration(c.Cache.TTLSeconds)))
	}

	opts = append(opts, WithBreakerDefaults(c.Circuit.Default.toConfig()))
	for name, b := range c.Circuit.Overrides {
		opts = append(opts, WithBreakerOverride(name, b.toConfig()))
	}

	models := make([]ModelConfig, 0, len(c.Router.Models))
	for _, m := range c.Router.Models {
		models = append(models, m.toConfig())
	}
	if len(models) > 0 {
		opts = append(opts, WithModels(models...))
	}

	if c.RateLimit.Default.Limit > 0 {
		opts = append(opts, WithRateLimit(c.RateLimit.Default.toLimit()))
	}
	for route, r := range c.RateLimit.Routes {
		opts = append(opts, WithRouteRateLimit(route, r.toLimit()))
	}

	if c.Debug.Enabled {
		opts = append(opts, WithDebug())
	}

	return opts
}

// NewFromConfig builds a Client from a parsed config plus extra options
// (handlers, logger, metrics).
func NewFromConfig(cfg *Config, extra ...Option) *Client {
	return New(append(cfg.Options(), extra...)...)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
