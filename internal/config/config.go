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
	Catalog Thresholds    `yaml:"catalog" mapstructure:"catalog"`
	DB      DBConfig      `yaml:"db" mapstructure:"db"`
	Embed   EmbedConfig   `yaml:"embed" mapstructure:"embed"`
	Spring  SpringConfig  `yaml:"spring" mapstructure:"spring"`
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm"`
	Match   MatchConfig   `yaml:"match" mapstructure:"match"`
	Pricing PricingConfig `yaml:"pricing" mapstructure:"pricing"`
	Period  PeriodConfig  `yaml:"period" mapstructure:"period"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// Thresholds holds the similarity confidence bands for catalog search.
// High matches are accepted outright, medium matches are accepted but
// flagged for review, and anything under Floor is never returned.
type Thresholds struct {
	High   float64 `yaml:"high" mapstructure:"high"`
	Medium float64 `yaml:"medium" mapstructure:"medium"`
	Floor  float64 `yaml:"floor" mapstructure:"floor"`
}

// DBConfig configures the catalog database (PostgreSQL + pgvector).
type DBConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// EmbedConfig configures the embedding backend used for catalog queries.
type EmbedConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SpringConfig configures the external budgeting service client.
type SpringConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// LLMConfig configures language model providers.
type LLMConfig struct {
	Provider  string          `yaml:"provider" mapstructure:"provider"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Ollama    OllamaConfig    `yaml:"ollama" mapstructure:"ollama"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OllamaConfig holds local Ollama settings.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MatchConfig configures the composition matching stage.
type MatchConfig struct {
	TopK        int `yaml:"top_k" mapstructure:"top_k"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// PricingConfig configures price resolution.
type PricingConfig struct {
	MaxLookbackMonths int `yaml:"max_lookback_months" mapstructure:"max_lookback_months"`
}

// PeriodConfig bounds acceptable reference periods.
type PeriodConfig struct {
	EarliestYear int `yaml:"earliest_year" mapstructure:"earliest_year"`
	LatestYear   int `yaml:"latest_year" mapstructure:"latest_year"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("BUDGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("catalog.high", 0.75)
	v.SetDefault("catalog.medium", 0.60)
	v.SetDefault("catalog.floor", 0.50)
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("embed.base_url", "http://localhost:11434")
	v.SetDefault("embed.model", "nomic-embed-text")
	v.SetDefault("embed.timeout_secs", 30)
	v.SetDefault("spring.base_url", "http://localhost:8891/api")
	v.SetDefault("spring.timeout_secs", 30)
	v.SetDefault("spring.rate_per_second", 20)
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.anthropic.timeout_secs", 60)
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.openai.timeout_secs", 60)
	v.SetDefault("llm.ollama.base_url", "http://localhost:11434")
	v.SetDefault("llm.ollama.model", "llama3.1:8b")
	v.SetDefault("llm.ollama.timeout_secs", 120)
	v.SetDefault("match.top_k", 5)
	v.SetDefault("match.concurrency", 8)
	v.SetDefault("pricing.max_lookback_months", 24)
	v.SetDefault("period.earliest_year", 2020)
	v.SetDefault("period.latest_year", 2030)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "budget-agent.db")

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
