package cmd

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/hrvibe/hrvibe-core/internal/recruiting"
	"github.com/hrvibe/hrvibe-core/internal/store"
	"github.com/hrvibe/hrvibe-core/internal/taskqueue"
)

const (
	botManager   = "manager"
	botApplicant = "applicant"
	botBoth      = "both"
)

type Config struct {
	ActiveBot         string            `mapstructure:"active-bot" validate:"oneof=manager applicant both"`
	AdminID           int64             `mapstructure:"admin-id"`
	SchedulerInterval time.Duration     `mapstructure:"scheduler-interval" validate:"gte=0"`
	Telegram          TelegramConfig    `mapstructure:"telegram"`
	Database          store.Config      `mapstructure:"database"`
	HH                HHConfig          `mapstructure:"hh"`
	Gemini            GeminiConfig      `mapstructure:"gemini"`
	Recruiting        recruiting.Config `mapstructure:"recruiting"`
	Queue             QueueConfig       `mapstructure:"queue"`
	HTTP              HTTPConfig        `mapstructure:"http"`
}

type TelegramConfig struct {
	ManagerToken       string `mapstructure:"manager-token"`
	ManagerTokenFile   string `mapstructure:"manager-token-file"`
	ApplicantToken     string `mapstructure:"applicant-token"`
	ApplicantTokenFile string `mapstructure:"applicant-token-file"`
}

type HHConfig struct {
	ClientID          string `mapstructure:"client-id" validate:"required"`
	ClientSecret      string `mapstructure:"client-secret"`
	ClientSecretFile  string `mapstructure:"client-secret-file"`
	RedirectURL       string `mapstructure:"redirect-url" validate:"required,url"`
	UserAgent         string `mapstructure:"user-agent"`
	RequestsPerSecond int    `mapstructure:"requests-per-second" validate:"gte=0"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model" validate:"required"`
	MaxRetries   int    `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength int    `mapstructure:"max-log-length" validate:"gte=0"`
}

type QueueConfig struct {
	Capacity        int           `mapstructure:"capacity" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout" validate:"gt=0"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults() {
	viper.SetDefault("active-bot", botBoth)
	viper.SetDefault("scheduler-interval", recruiting.DefaultSchedulerInterval)
	viper.SetDefault("recruiting.data-dir", "./users_data")
	viper.SetDefault("recruiting.passed-score", recruiting.DefaultPassedScore)
	viper.SetDefault("recruiting.require-video", true)
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.max-retries", 3)
	viper.SetDefault("gemini.max-log-length", 2000)
	viper.SetDefault("queue.capacity", 500)
	viper.SetDefault("queue.shutdown-timeout", 2*time.Minute)
	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("hh.requests-per-second", 5)
}

func getConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.Queue.Capacity == 0 {
		config.Queue.Capacity = taskqueue.DefaultCapacity
	}

	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

func (c *Config) runs(bot string) bool {
	return c.ActiveBot == botBoth || c.ActiveBot == bot
}
