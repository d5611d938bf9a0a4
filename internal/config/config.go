// Package config loads simulator settings from config.yaml and AIDSIM_* env.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Relevance  RelevanceConfig  `yaml:"relevance" mapstructure:"relevance"`
	Localize   LocalizeConfig   `yaml:"localize" mapstructure:"localize"`
	Simulation SimulationConfig `yaml:"simulation" mapstructure:"simulation"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings shared by the classifier and
// the translator.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// UpstreamConfig tunes the guard around one upstream call.
type UpstreamConfig struct {
	TimeoutMs        int     `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	RatePerSecond    float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// RelevanceConfig configures the relevance classifier.
type RelevanceConfig struct {
	Enabled        bool           `yaml:"enabled" mapstructure:"enabled"`
	Model          string         `yaml:"model" mapstructure:"model"`
	MaxTokens      int64          `yaml:"max_tokens" mapstructure:"max_tokens"`
	Upstream       UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`
	CacheTTLMins   int            `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	CacheSize      int            `yaml:"cache_size" mapstructure:"cache_size"`
	RedisAddr      string         `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword  string         `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB        int            `yaml:"redis_db" mapstructure:"redis_db"`
	SeniorAge      int            `yaml:"senior_age" mapstructure:"senior_age"`
	DescriptionMax int            `yaml:"description_max" mapstructure:"description_max"`
}

// LocalizeConfig configures result translation.
type LocalizeConfig struct {
	Enabled        bool           `yaml:"enabled" mapstructure:"enabled"`
	NativeLanguage string         `yaml:"native_language" mapstructure:"native_language"`
	BatchSize      int            `yaml:"batch_size" mapstructure:"batch_size"`
	Model          string         `yaml:"model" mapstructure:"model"`
	MaxTokens      int64          `yaml:"max_tokens" mapstructure:"max_tokens"`
	Upstream       UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`
}

// SimulationConfig configures result persistence.
type SimulationConfig struct {
	PersistTimeoutSecs int `yaml:"persist_timeout_secs" mapstructure:"persist_timeout_secs"`
	HistoryLimit       int `yaml:"history_limit" mapstructure:"history_limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AIDSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "aidsim.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 30)

	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")

	v.SetDefault("relevance.enabled", true)
	v.SetDefault("relevance.model", "claude-haiku-4-5-20251001")
	v.SetDefault("relevance.max_tokens", 1024)
	v.SetDefault("relevance.upstream.timeout_ms", 8000)
	v.SetDefault("relevance.upstream.max_attempts", 2)
	v.SetDefault("relevance.upstream.initial_backoff_ms", 200)
	v.SetDefault("relevance.upstream.rate_per_second", 5.0)
	v.SetDefault("relevance.upstream.burst", 10)
	v.SetDefault("relevance.upstream.breaker_threshold", 5)
	v.SetDefault("relevance.upstream.breaker_reset_secs", 30)
	v.SetDefault("relevance.cache_ttl_mins", 60)
	v.SetDefault("relevance.cache_size", 1000)
	v.SetDefault("relevance.redis_addr", "")
	v.SetDefault("relevance.redis_db", 0)
	v.SetDefault("relevance.senior_age", 60)
	v.SetDefault("relevance.description_max", 300)

	v.SetDefault("localize.enabled", true)
	v.SetDefault("localize.native_language", "fr")
	v.SetDefault("localize.batch_size", 20)
	v.SetDefault("localize.model", "claude-haiku-4-5-20251001")
	v.SetDefault("localize.max_tokens", 4096)
	v.SetDefault("localize.upstream.timeout_ms", 10000)
	v.SetDefault("localize.upstream.max_attempts", 1)
	v.SetDefault("localize.upstream.initial_backoff_ms", 200)
	v.SetDefault("localize.upstream.rate_per_second", 5.0)
	v.SetDefault("localize.upstream.burst", 10)
	v.SetDefault("localize.upstream.breaker_threshold", 5)
	v.SetDefault("localize.upstream.breaker_reset_secs", 30)

	v.SetDefault("simulation.persist_timeout_secs", 5)
	v.SetDefault("simulation.history_limit", 50)
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
