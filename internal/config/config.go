package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	API      struct {
		Key              string  `json:"key"`
		BaseURL          string  `json:"base_url"`
		RateLimitSeconds float64 `json:"rate_limit_seconds"`
	} `json:"api"`
	Telegram struct {
		Token  string `json:"token"`
		ChatID int64  `json:"chat_id"`
	} `json:"telegram"`
	Monitoring struct {
		Source               string `json:"source"`
		CheckIntervalSeconds int    `json:"check_interval_seconds"`
		RecentPostMinutes    int    `json:"recent_post_minutes"`
		CooldownMinutes      int    `json:"cooldown_minutes"`
		MaxTrackedEvents     int    `json:"max_tracked_events"`
		NotifyLifecycle      bool   `json:"notify_lifecycle"`
	} `json:"monitoring"`
	Maintenance struct {
		Schedule string `json:"schedule"`
	} `json:"maintenance"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".birdwatch"),
		LogLevel: "info",
	}
	cfg.API.BaseURL = "https://api.twitterapi.io"
	cfg.API.RateLimitSeconds = 6.0
	cfg.Monitoring.Source = "last_tweets"
	cfg.Monitoring.CheckIntervalSeconds = 60
	cfg.Monitoring.RecentPostMinutes = 10
	cfg.Monitoring.CooldownMinutes = 180
	cfg.Monitoring.MaxTrackedEvents = 10000
	cfg.Monitoring.NotifyLifecycle = true
	cfg.Maintenance.Schedule = "0 4 * * *"
	cfg.HTTP.Listen = ":8080"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("BIRDWATCH_API_KEY"); apiKey != "" {
		cfg.API.Key = apiKey
	}
	if baseURL := os.Getenv("BIRDWATCH_API_BASE_URL"); baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}

	return cfg, nil
}

// Save writes the config to path with atomic write (temp file + rename),
// creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts the config to a nested map via a JSON round-trip.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns the config as a flat dot-key map, optionally with
// secrets masked for display.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue loads the config at path and returns the value for a dot-separated
// key.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue sets a dot-separated key in the config file at path. The raw value
// is JSON-decoded when possible so numbers and booleans keep their type;
// anything else is stored as a string.
func SetValue(path, key, raw string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	flat := Flatten(m)
	flat[key] = value
	nested := Unflatten(flat)

	out, err := json.MarshalIndent(nested, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	out = append(out, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// Duration accessors for the polling engine.

func (c *Config) RateLimit() time.Duration {
	return time.Duration(c.API.RateLimitSeconds * float64(time.Second))
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Monitoring.CheckIntervalSeconds) * time.Second
}

func (c *Config) RecentWindow() time.Duration {
	return time.Duration(c.Monitoring.RecentPostMinutes) * time.Minute
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Monitoring.CooldownMinutes) * time.Minute
}

// Validate checks the fields the serve command cannot run without.
func (c *Config) Validate() error {
	if c.API.Key == "" {
		return fmt.Errorf("api.key is required (or set BIRDWATCH_API_KEY)")
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (or set TELEGRAM_BOT_TOKEN)")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required (or set TELEGRAM_CHAT_ID)")
	}
	switch c.Monitoring.Source {
	case "last_tweets", "search":
	default:
		return fmt.Errorf("monitoring.source must be last_tweets or search, got %q", c.Monitoring.Source)
	}
	if c.Monitoring.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("monitoring.check_interval_seconds must be positive")
	}
	return nil
}
