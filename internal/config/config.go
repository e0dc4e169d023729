package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Steam    SteamConfig    `mapstructure:"steam"`
	Twitter  TwitterConfig  `mapstructure:"twitter"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// SteamConfig holds storefront API configuration
type SteamConfig struct {
	AppID                int           `mapstructure:"app_id"`
	BaseURL              string        `mapstructure:"base_url"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxAttempts          int           `mapstructure:"max_attempts"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
	MaxRequestsPerSecond int           `mapstructure:"max_requests_per_second"`
	Proxies              []string      `mapstructure:"proxies"`
}

// TwitterConfig holds the credentials of the account posts go to
type TwitterConfig struct {
	ConsumerKey       string        `mapstructure:"consumer_key"`
	ConsumerSecret    string        `mapstructure:"consumer_secret"`
	AccessToken       string        `mapstructure:"access_token"`
	AccessTokenSecret string        `mapstructure:"access_token_secret"`
	UserID            string        `mapstructure:"user_id"` // kept as a string, ids overflow float64
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// ScheduleConfig holds the cron schedule and the daily run cap
type ScheduleConfig struct {
	Cron     string `mapstructure:"cron"`
	Timezone string `mapstructure:"timezone"`
	DailyCap int    `mapstructure:"daily_cap"`
}

// RedisConfig holds the publish journal connection. An empty Addr disables the journal.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
	Stream   string `mapstructure:"stream"`
}

// DatabaseConfig holds the price history connection. An empty URL disables it.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var keys = []string{
	"steam.app_id",
	"steam.base_url",
	"steam.timeout",
	"steam.max_attempts",
	"steam.retry_delay",
	"steam.max_requests_per_second",
	"steam.proxies",
	"twitter.consumer_key",
	"twitter.consumer_secret",
	"twitter.access_token",
	"twitter.access_token_secret",
	"twitter.user_id",
	"twitter.base_url",
	"twitter.timeout",
	"schedule.cron",
	"schedule.timezone",
	"schedule.daily_cap",
	"redis.addr",
	"redis.password",
	"redis.database",
	"redis.stream",
	"database.url",
	"metrics.addr",
	"log.level",
}

// Load reads configuration from the environment (and an optional .env file),
// falling back to an optional config.yaml in the working directory
func Load() (*Config, error) {
	// A missing .env is fine, the variables may come from the real environment
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate fails when a required setting is missing or malformed
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		name  string
		value string
	}{
		{"TWITTER_CONSUMER_KEY", c.Twitter.ConsumerKey},
		{"TWITTER_CONSUMER_SECRET", c.Twitter.ConsumerSecret},
		{"TWITTER_ACCESS_TOKEN", c.Twitter.AccessToken},
		{"TWITTER_ACCESS_TOKEN_SECRET", c.Twitter.AccessTokenSecret},
		{"TWITTER_USER_ID", c.Twitter.UserID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}

	if c.Steam.AppID <= 0 {
		errs = append(errs, fmt.Errorf("STEAM_APP_ID must be a positive integer, got %d", c.Steam.AppID))
	}
	if c.Steam.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("STEAM_MAX_ATTEMPTS must be at least 1, got %d", c.Steam.MaxAttempts))
	}
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"STEAM_TIMEOUT", c.Steam.Timeout},
		{"STEAM_RETRY_DELAY", c.Steam.RetryDelay},
		{"TWITTER_TIMEOUT", c.Twitter.Timeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration, got %s", d.name, d.value))
		}
	}
	if c.Schedule.DailyCap < 1 {
		errs = append(errs, fmt.Errorf("SCHEDULE_DAILY_CAP must be at least 1, got %d", c.Schedule.DailyCap))
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULE_TIMEZONE %q is invalid: %w", c.Schedule.Timezone, err))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("steam.base_url", "https://store.steampowered.com")
	v.SetDefault("steam.timeout", 60*time.Second)
	v.SetDefault("steam.max_attempts", 4)
	v.SetDefault("steam.retry_delay", time.Second)
	v.SetDefault("steam.max_requests_per_second", 1)
	v.SetDefault("steam.proxies", []string{})

	v.SetDefault("twitter.base_url", "https://api.twitter.com/1.1")
	v.SetDefault("twitter.timeout", 60*time.Second)

	v.SetDefault("schedule.cron", "0 13 * * * *")
	v.SetDefault("schedule.timezone", "America/Chicago")
	v.SetDefault("schedule.daily_cap", 8)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.stream", "steamsale:stream:journal")

	v.SetDefault("database.url", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", "info")
}
