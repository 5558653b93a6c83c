package llmroute

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level router configuration.
type Config struct {
	Backends []BackendConfig `yaml:"backends"`
	Breaker  BreakerConfig   `yaml:"breaker"`
	Cache    CacheConfig     `yaml:"cache"`
	Budgets  []BudgetConfig  `yaml:"budgets"`

	// BudgetWindow is the accounting window for all scopes. Spend resets
	// only at window rollover.
	BudgetWindow Duration `yaml:"budget_window"`

	// AllowLastCall enables the ledger's starvation exception.
	AllowLastCall bool `yaml:"allow_last_call"`
}

// BackendConfig configures a single backend model entry.
type BackendConfig struct {
	ID              string     `yaml:"id"`
	Provider        string     `yaml:"provider"`
	CostPer1KTokens float64    `yaml:"cost_per_1k_tokens"`
	MaxTokens       int        `yaml:"max_tokens"`
	Quality         string     `yaml:"quality"`
	LatencyMS       int64      `yaml:"latency_ms"`
	Capabilities    []string   `yaml:"capabilities"`
	Rate            RateConfig `yaml:"rate"`
}

// RateConfig configures a backend's token bucket. Zero capacity means
// unlimited.
type RateConfig struct {
	Capacity     int     `yaml:"capacity"`
	RefillPerSec float64 `yaml:"refill_per_sec"`
}

// BreakerConfig tunes the circuit breakers. Zero values use defaults.
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	FailureWindow    Duration `yaml:"failure_window"`
	Cooldown         Duration `yaml:"cooldown"`
}

// CacheConfig tunes the response cache. Zero TTL disables caching.
type CacheConfig struct {
	TTL                 Duration `yaml:"ttl"`
	MaxEntries          int      `yaml:"max_entries"`
	SimilarityThreshold float64  `yaml:"similarity_threshold"`
}

// BudgetConfig sets the spend limit for one scope.
type BudgetConfig struct {
	Scope string  `yaml:"scope"`
	Limit float64 `yaml:"limit"`
}

// Duration wraps time.Duration for YAML parsing ("30s", "5m", ...).
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("llmroute: config: invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("llmroute: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("llmroute: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("llmroute: config: at least one backend is required")
	}

	ids := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.ID == "" {
			return fmt.Errorf("llmroute: config: backend[%d]: id is required", i)
		}
		if ids[b.ID] {
			return fmt.Errorf("llmroute: config: duplicate backend id %q", b.ID)
		}
		ids[b.ID] = true

		if b.Provider == "" {
			return fmt.Errorf("llmroute: config: backend[%d] (%s): provider is required", i, b.ID)
		}
		if _, err := parseQualityTier(b.Quality); err != nil {
			return fmt.Errorf("llmroute: config: backend[%d] (%s): %w", i, b.ID, err)
		}
		if b.CostPer1KTokens < 0 {
			return fmt.Errorf("llmroute: config: backend[%d] (%s): negative cost", i, b.ID)
		}
		if b.Rate.Capacity > 0 && b.Rate.RefillPerSec <= 0 {
			return fmt.Errorf("llmroute: config: backend[%d] (%s): rate capacity without refill_per_sec", i, b.ID)
		}
	}

	scopes := make(map[string]bool, len(c.Budgets))
	for i, bg := range c.Budgets {
		if bg.Scope == "" {
			return fmt.Errorf("llmroute: config: budgets[%d]: scope is required", i)
		}
		if scopes[bg.Scope] {
			return fmt.Errorf("llmroute: config: duplicate budget scope %q", bg.Scope)
		}
		scopes[bg.Scope] = true
		if bg.Limit <= 0 {
			return fmt.Errorf("llmroute: config: budgets[%d] (%s): limit must be positive", i, bg.Scope)
		}
	}

	if t := c.Cache.SimilarityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("llmroute: config: cache: similarity_threshold must be in [0,1]")
	}

	return nil
}

// Models builds the catalog entries from the config. Validate must have
// passed.
func (c Config) Models() []BackendModel {
	models := make([]BackendModel, 0, len(c.Backends))
	for _, b := range c.Backends {
		tier, _ := parseQualityTier(b.Quality)
		models = append(models, BackendModel{
			ID:              b.ID,
			Provider:        b.Provider,
			CostPer1KTokens: b.CostPer1KTokens,
			MaxTokens:       b.MaxTokens,
			Quality:         tier,
			LatencyMS:       b.LatencyMS,
			Capabilities:    b.Capabilities,
		})
	}
	return models
}

func parseQualityTier(s string) (QualityTier, error) {
	switch s {
	case "fast":
		return TierFast, nil
	case "balanced", "":
		return TierBalanced, nil
	case "specialized":
		return TierSpecialized, nil
	default:
		return TierBalanced, fmt.Errorf("invalid quality tier %q", s)
	}
}
