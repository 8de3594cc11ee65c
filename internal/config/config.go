// Package config loads service settings from defaults, config.yaml, .env and the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Station code matching policies for rain log lines
const (
	StationMatchUpperTarget     = "upper_target"
	StationMatchCaseInsensitive = "case_insensitive"
)

// Historical height search policies
const (
	HistorySearchSameDay      = "same_day"
	HistorySearchAdjacentDays = "adjacent_days"
)

// Config holds everything the evaporation service needs at construction time
type Config struct {
	StationCode   string `mapstructure:"station_code"`
	Timezone      string `mapstructure:"timezone"`
	StationMatch  string `mapstructure:"station_match"`
	HistorySearch string `mapstructure:"history_search"`

	Rain struct {
		BaseURL        string        `mapstructure:"base_url"`
		FilenamePrefix string        `mapstructure:"filename_prefix"`
		Timeout        time.Duration `mapstructure:"timeout"`
	} `mapstructure:"rain"`

	Rolling struct {
		Window time.Duration `mapstructure:"window"`
	} `mapstructure:"rolling"`

	Daily struct {
		AnchorHour int `mapstructure:"anchor_hour"`
	} `mapstructure:"daily"`

	Schedule struct {
		Rolling string `mapstructure:"rolling"`
		Daily   string `mapstructure:"daily"`
	} `mapstructure:"schedule"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	HTTP struct {
		ListenAddr string `mapstructure:"listen_addr"`
	} `mapstructure:"http"`

	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`

	OpenAI struct {
		APIKey string `mapstructure:"api_key"`
		Model  string `mapstructure:"model"`
	} `mapstructure:"openai"`

	Log struct {
		Debug bool `mapstructure:"debug"`
	} `mapstructure:"log"`
}

// Load reads configuration. path is the directory searched for config.yaml and .env;
// a missing file of either kind is not an error.
func Load(path string) (*Config, error) {
	envFile := ".env"
	if path != "" {
		envFile = strings.TrimRight(path, "/") + "/.env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.SetEnvPrefix("EVAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The bare OPENAI_API_KEY used by most tooling works too
	if err := v.BindEnv("openai.api_key", "EVAP_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind openai key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// PORT is what most hosting platforms hand us
	if port := os.Getenv("PORT"); port != "" {
		v.Set("http.listen_addr", ":"+port)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("station_code", "stg1079")
	v.SetDefault("timezone", "Asia/Jakarta")
	v.SetDefault("station_match", StationMatchUpperTarget)
	v.SetDefault("history_search", HistorySearchAdjacentDays)
	v.SetDefault("rain.base_url", "http://202.90.198.212/logger/logfile/")
	v.SetDefault("rain.filename_prefix", "logARG-")
	v.SetDefault("rain.timeout", 10*time.Second)
	v.SetDefault("rolling.window", 10*time.Minute)
	v.SetDefault("daily.anchor_hour", 7)
	v.SetDefault("schedule.rolling", "*/10 * * * *")
	v.SetDefault("schedule.daily", "0 7 * * *")
	v.SetDefault("database.path", "data/evaporation.db")
	v.SetDefault("http.listen_addr", ":4000")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("log.debug", false)
}

// Validate checks values that would otherwise fail much later
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StationCode) == "" {
		return fmt.Errorf("station_code must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.StationMatch {
	case StationMatchUpperTarget, StationMatchCaseInsensitive:
	default:
		return fmt.Errorf("unknown station_match policy %q", c.StationMatch)
	}
	switch c.HistorySearch {
	case HistorySearchSameDay, HistorySearchAdjacentDays:
	default:
		return fmt.Errorf("unknown history_search policy %q", c.HistorySearch)
	}
	if c.Rain.BaseURL == "" {
		return fmt.Errorf("rain.base_url must not be empty")
	}
	if c.Rolling.Window <= 0 {
		return fmt.Errorf("rolling.window must be positive, got %s", c.Rolling.Window)
	}
	if c.Daily.AnchorHour < 0 || c.Daily.AnchorHour > 23 {
		return fmt.Errorf("daily.anchor_hour must be within 0..23, got %d", c.Daily.AnchorHour)
	}
	return nil
}

// Location resolves the configured time zone used for calendar-day bucketing
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
