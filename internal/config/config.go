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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Vision    VisionConfig    `yaml:"vision" mapstructure:"vision"`
	Matching  MatchingConfig  `yaml:"matching" mapstructure:"matching"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	WaitSecs    int     `yaml:"wait_secs" mapstructure:"wait_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// VisionConfig holds the optional vision-verification provider settings.
// Verification is skipped entirely when Key is empty.
type VisionConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// MatchingConfig configures the scoring engine and orchestrator.
type MatchingConfig struct {
	RadiusKm         float64 `yaml:"radius_km" mapstructure:"radius_km"`
	WindowDays       int     `yaml:"window_days" mapstructure:"window_days"`
	MinScore         int     `yaml:"min_score" mapstructure:"min_score"`
	MaxConcurrent    int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RunTimeoutSecs   int     `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
	BorderlineMargin int     `yaml:"borderline_margin" mapstructure:"borderline_margin"`
}

// ServerConfig configures the webhook server.
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
	v.SetEnvPrefix("PETMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("embedding.base_url", "https://api.petvision.dev/v1")
	v.SetDefault("embedding.max_attempts", 3)
	v.SetDefault("embedding.wait_secs", 5)
	v.SetDefault("embedding.rate_per_sec", 4)
	v.SetDefault("vision.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("matching.radius_km", 10)
	v.SetDefault("matching.window_days", 14)
	v.SetDefault("matching.min_score", 30)
	v.SetDefault("matching.max_concurrent", 4)
	v.SetDefault("matching.run_timeout_secs", 30)
	v.SetDefault("matching.borderline_margin", 10)

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
