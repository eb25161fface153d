package model

import "time"

// Config holds the complete stackguard configuration
type Config struct {
	RateLimit   RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Breaker     BreakerConfig     `yaml:"breaker" mapstructure:"breaker"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Interaction InteractionConfig `yaml:"interaction" mapstructure:"interaction"`
	Lookup      LookupConfig      `yaml:"lookup" mapstructure:"lookup"`
	Stack       StackConfig       `yaml:"stack" mapstructure:"stack"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// RateLimitConfig configures the per-user scan window
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxScans int           `yaml:"max_scans" mapstructure:"max_scans"`
	Window   time.Duration `yaml:"window" mapstructure:"window"`
}

// CacheConfig configures the analysis result cache
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxEntries int           `yaml:"max_entries" mapstructure:"max_entries"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir        string        `yaml:"dir,omitempty" mapstructure:"dir"` // Optional disk layer
}

// BreakerConfig configures the inference provider circuit breaker
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
}

// RetryConfig configures backoff around provider calls
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelay      time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	Multiplier     float64       `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter         bool          `yaml:"jitter" mapstructure:"jitter"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" mapstructure:"attempt_timeout"`
}

// LLMConfig configures the inference provider
type LLMConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, huggingface, "" (disabled)
	Model         string `yaml:"model,omitempty" mapstructure:"model"`
	ClassifyModel string `yaml:"classify_model,omitempty" mapstructure:"classify_model"`
	APIKey        string `yaml:"-" mapstructure:"api_key"`
	BaseURL       string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout       int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	ClassifyTopN  int    `yaml:"classify_top_n" mapstructure:"classify_top_n"`
	HTTPProxy     string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// InteractionConfig configures pairwise interaction checking
type InteractionConfig struct {
	Endpoint            string        `yaml:"endpoint,omitempty" mapstructure:"endpoint"` // Remote checker; empty uses built-in rules
	CallTimeout         time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	RequestsPerSecond   float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst               int           `yaml:"burst" mapstructure:"burst"`
	ContinueOnRateLimit bool          `yaml:"continue_on_rate_limit" mapstructure:"continue_on_rate_limit"`
}

// LookupConfig configures barcode lookup
type LookupConfig struct {
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	CatalogFile string        `yaml:"catalog_file,omitempty" mapstructure:"catalog_file"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent   string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// StackConfig configures the stack store
type StackConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// ConcurrencyConfig configures batch processing
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		RateLimit: RateLimitConfig{
			Enabled:  true,
			MaxScans: 10,
			Window:   time.Hour,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 100,
			TTL:        24 * time.Hour,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     60 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries:     3,
			BaseDelay:      time.Second,
			MaxDelay:       10 * time.Second,
			Multiplier:     2.0,
			Jitter:         true,
			AttemptTimeout: 15 * time.Second,
		},
		LLM: LLMConfig{
			Provider:     "", // Disabled by default
			Timeout:      30,
			MaxTokens:    400,
			ClassifyTopN: 3,
		},
		Interaction: InteractionConfig{
			CallTimeout:       10 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Lookup: LookupConfig{
			Timeout:   10 * time.Second,
			UserAgent: "stackguard/0.1 (+https://github.com/ppiankov/stackguard)",
		},
		Stack: StackConfig{
			DBPath: "stackguard.db",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}
