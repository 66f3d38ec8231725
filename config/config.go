// Package config loads pipeline configuration from a JSON/YAML file
// plus environment overrides. Grounded on the teacher's
// config/config.go layered-viper approach (base config file merged
// with overlays, environment variables overriding both), generalized
// from its ad-hoc viper.Get* calls into one typed, validated struct.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Discord holds credentials and the target guild.
type Discord struct {
	Token   string `mapstructure:"token" validate:"required"`
	GuildID string `mapstructure:"guildId" validate:"required"`
}

// Scraper controls pagination pacing and retry backoff for the scraper.
type Scraper struct {
	DelayBetweenRequestsMs int     `mapstructure:"delayBetweenRequests"`
	BackoffMultiplier      float64 `mapstructure:"backoffMultiplier"`
}

// AIStage toggles one named stage for "process run --all".
type AIStage struct {
	Enabled bool `mapstructure:"enabled"`
}

// Pricing holds per-million-token prices used by EstimateCost.
type Pricing struct {
	InputPerMToken  float64 `mapstructure:"inputPerMToken"`
	OutputPerMToken float64 `mapstructure:"outputPerMToken"`
}

// AI holds LLM provider credentials, batching caps, and retry policy.
type AI struct {
	APIKey             string             `mapstructure:"apiKey" validate:"required"`
	BaseURL            string             `mapstructure:"baseUrl"`
	Model              string             `mapstructure:"model" validate:"required"`
	BatchSize          int                `mapstructure:"batchSize" validate:"min=1"`
	MaxTokensPerBatch  int                `mapstructure:"maxTokensPerBatch" validate:"min=1"`
	MaxTokens          int                `mapstructure:"maxTokens" validate:"min=1"`
	RetryAttempts      int                `mapstructure:"retryAttempts" validate:"min=1"`
	RetryDelayMs       int                `mapstructure:"retryDelayMs" validate:"min=1"`
	ReprocessAfterDays int                `mapstructure:"reprocessAfterDays"`
	Workers            int                `mapstructure:"workers"`
	Pricing            Pricing            `mapstructure:"pricing"`
	Stages             map[string]AIStage `mapstructure:"stages"`
}

// Privacy controls anonymization before prompting.
type Privacy struct {
	AnonymizeInPrompts bool `mapstructure:"anonymizeInPrompts"`
}

// Database controls the store's file location.
type Database struct {
	Path string `mapstructure:"path" validate:"required"`
}

// Logging controls logger construction.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the fully-decoded, validated configuration tree.
type Config struct {
	Discord  Discord  `mapstructure:"discord" validate:"required"`
	Scraper  Scraper  `mapstructure:"scraper"`
	AI       AI       `mapstructure:"ai" validate:"required"`
	Privacy  Privacy  `mapstructure:"privacy"`
	Database Database `mapstructure:"database" validate:"required"`
	Logging  Logging  `mapstructure:"logging"`
}

// Load reads config.yaml from configPath (or the current directory
// when empty), merges environment overrides (dots replaced with
// underscores, per the teacher's SetEnvKeyReplacer), and returns a
// validated Config. A missing config file is not an error: defaults
// plus environment variables may be sufficient.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.delayBetweenRequests", 100)
	v.SetDefault("scraper.backoffMultiplier", 2.0)
	v.SetDefault("ai.batchSize", 10)
	v.SetDefault("ai.maxTokensPerBatch", 4000)
	v.SetDefault("ai.maxTokens", 2000)
	v.SetDefault("ai.retryAttempts", 3)
	v.SetDefault("ai.retryDelayMs", 1000)
	v.SetDefault("ai.reprocessAfterDays", 30)
	v.SetDefault("ai.workers", 3)
	v.SetDefault("database.path", "./data/discord.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}
