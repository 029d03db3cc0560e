// Package config loads application configuration from a YAML file, the
// environment, and defaults, and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig                  `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig              `yaml:"anthropic" mapstructure:"anthropic"`
	Reader     ReaderConfig                 `yaml:"reader" mapstructure:"reader"`
	Firmo      FirmoConfig                  `yaml:"firmo" mapstructure:"firmo"`
	Salesforce SalesforceConfig             `yaml:"salesforce" mapstructure:"salesforce"`
	Pipeline   PipelineConfig               `yaml:"pipeline" mapstructure:"pipeline"`
	Advisory   AdvisoryConfig               `yaml:"advisory" mapstructure:"advisory"`
	Batch      BatchConfig                  `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig                 `yaml:"server" mapstructure:"server"`
	Log        LogConfig                    `yaml:"log" mapstructure:"log"`
	Secrets    map[string]map[string]string `yaml:"secrets" mapstructure:"secrets"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	ExtractModel  string `yaml:"extract_model" mapstructure:"extract_model"`
	QAModel       string `yaml:"qa_model" mapstructure:"qa_model"`
	AdvisoryModel string `yaml:"advisory_model" mapstructure:"advisory_model"`
	MaxTokens     int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ReaderConfig holds web-reader API settings.
type ReaderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FirmoConfig holds firmographics vendor settings. The API key is resolved
// per tenant through the secrets resolver, not here.
type FirmoConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SalesforceConfig holds Salesforce JWT auth settings for the CRM push.
type SalesforceConfig struct {
	ClientID string  `yaml:"client_id" mapstructure:"client_id"`
	Username string  `yaml:"username" mapstructure:"username"`
	KeyPath  string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string  `yaml:"login_url" mapstructure:"login_url"`
	RateRPS  float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// PipelineConfig tunes the enrichment pipeline.
type PipelineConfig struct {
	MaxSourceChars int  `yaml:"max_source_chars" mapstructure:"max_source_chars"`
	QAEnabled      bool `yaml:"qa_enabled" mapstructure:"qa_enabled"`
	QAWaitSecs     int  `yaml:"qa_wait_secs" mapstructure:"qa_wait_secs"`
}

// AdvisoryConfig holds per-tier cache TTLs.
type AdvisoryConfig struct {
	ResultTTLHours   int `yaml:"result_ttl_hours" mapstructure:"result_ttl_hours"`
	RecentTTLHours   int `yaml:"recent_ttl_hours" mapstructure:"recent_ttl_hours"`
	RateLimitTTLMins int `yaml:"rate_limit_ttl_mins" mapstructure:"rate_limit_ttl_mins"`
	DedupeTTLMins    int `yaml:"dedupe_ttl_mins" mapstructure:"dedupe_ttl_mins"`
}

// ResultTTL returns the result-cache TTL as a duration.
func (a AdvisoryConfig) ResultTTL() time.Duration { return time.Duration(a.ResultTTLHours) * time.Hour }

// RecentTTL returns the recent-cache TTL as a duration.
func (a AdvisoryConfig) RecentTTL() time.Duration { return time.Duration(a.RecentTTLHours) * time.Hour }

// RateLimitTTL returns the rate-limit TTL as a duration.
func (a AdvisoryConfig) RateLimitTTL() time.Duration {
	return time.Duration(a.RateLimitTTLMins) * time.Minute
}

// DedupeTTL returns the dedupe-window TTL as a duration.
func (a AdvisoryConfig) DedupeTTL() time.Duration {
	return time.Duration(a.DedupeTTLMins) * time.Minute
}

// BatchConfig caps batch enrichment load on external providers.
type BatchConfig struct {
	GlobalLimit    int `yaml:"global_limit" mapstructure:"global_limit"`
	PerTenantLimit int `yaml:"per_tenant_limit" mapstructure:"per_tenant_limit"`
	DelayMS        int `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// ServerConfig configures the HTTP entry shim.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from crm-enrich.yaml (working directory or
// /etc/crm-enrich), ENRICH_* environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("crm-enrich")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/crm-enrich")

	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "crm-enrich.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("reader.base_url", "https://r.jina.ai")
	v.SetDefault("firmo.base_url", "https://api.firmograph.io/v1")
	v.SetDefault("anthropic.extract_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.qa_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.advisory_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_rps", 5)
	v.SetDefault("pipeline.max_source_chars", 20000)
	v.SetDefault("pipeline.qa_enabled", true)
	v.SetDefault("pipeline.qa_wait_secs", 10)
	v.SetDefault("advisory.result_ttl_hours", 12)
	v.SetDefault("advisory.recent_ttl_hours", 6)
	v.SetDefault("advisory.rate_limit_ttl_mins", 60)
	v.SetDefault("advisory.dedupe_ttl_mins", 10)
	v.SetDefault("batch.global_limit", 100)
	v.SetDefault("batch.per_tenant_limit", 25)
	v.SetDefault("batch.delay_ms", 500)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
