// Package config holds the immutable run configuration. It is constructed
// once at startup (flags > env > config file > defaults) and passed by value
// into the pipeline; nothing reads settings from globals.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// LLMConfig configures the completion service
type LLMConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"` // openai, ollama
	Model     string        `yaml:"model" mapstructure:"model"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"` // Custom endpoint (e.g. Ollama)
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SearchConfig configures web search with a Brave -> Tavily fallback chain
type SearchConfig struct {
	BraveAPIKey       string        `yaml:"brave_api_key" mapstructure:"brave_api_key"`
	TavilyAPIKey      string        `yaml:"tavily_api_key" mapstructure:"tavily_api_key"`
	MaxResults        int           `yaml:"max_results" mapstructure:"max_results"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CacheTTL          time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// HasProvider reports whether any search API is configured
func (s SearchConfig) HasProvider() bool {
	return s.BraveAPIKey != "" || s.TavilyAPIKey != ""
}

// ScrapeConfig configures URL content extraction
type ScrapeConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxContentLen int           `yaml:"max_content_len" mapstructure:"max_content_len"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// PipelineConfig tunes the orchestrator state machine
type PipelineConfig struct {
	GateThreshold        int     `yaml:"gate_threshold" mapstructure:"gate_threshold"`                 // Gate confidence floor, 0-100
	GateMinPassRate      float64 `yaml:"gate_min_pass_rate" mapstructure:"gate_min_pass_rate"`         // Sub-question pass-rate floor, 0-1
	MaxIterations        int     `yaml:"max_iterations" mapstructure:"max_iterations"`                 // Refinement loop cap
	ConvergenceThreshold int     `yaml:"convergence_threshold" mapstructure:"convergence_threshold"`   // Convergence confidence floor, 0-100
	SelfVerifyEnabled    bool    `yaml:"self_verify_enabled" mapstructure:"self_verify_enabled"`       // Run the independent re-derivation track
	TrustBlendEnabled    bool    `yaml:"trust_blend_enabled" mapstructure:"trust_blend_enabled"`       // Allow blended trust winners
	StructuralEnforce    bool    `yaml:"structural_enforce_enabled" mapstructure:"structural_enforce_enabled"` // Deterministic structural repair
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// Config is the complete application configuration
type Config struct {
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
}

// Default returns the built-in configuration defaults
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 4096,
			Timeout:   60 * time.Second,
		},
		Search: SearchConfig{
			MaxResults:        3,
			Timeout:           30 * time.Second,
			CacheTTL:          15 * time.Minute,
			RequestsPerSecond: 2,
		},
		Scrape: ScrapeConfig{
			Timeout:       30 * time.Second,
			MaxContentLen: 10000,
			UserAgent:     "ThinkTwice/0.1 (+https://github.com/thinktwice)",
			RespectRobots: true,
		},
		Pipeline: PipelineConfig{
			GateThreshold:        85,
			GateMinPassRate:      1.0,
			MaxIterations:        3,
			ConvergenceThreshold: 80,
			SelfVerifyEnabled:    true,
			TrustBlendEnabled:    true,
			StructuralEnforce:    true,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
	}
}

// FromViper overlays viper-resolved settings (config file, THINKTWICE_* env
// vars, bound flags) on top of the defaults
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
