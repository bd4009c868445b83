package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "config.json")
}

func writeTestConfig(t *testing.T, path string, cfg *Config) {
	t.Helper()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := &Config{
		DataDir:  "/tmp/test-data",
		LogLevel: "debug",
	}
	original.API.Key = "api-key-round-trip"
	original.API.BaseURL = "https://api.twitterapi.io"
	original.API.RateLimitSeconds = 2.5
	original.Telegram.Token = "bot-token-456"
	original.Telegram.ChatID = -100123
	original.Monitoring.Source = "search"
	original.Monitoring.CheckIntervalSeconds = 30
	original.Monitoring.RecentPostMinutes = 5
	original.Monitoring.CooldownMinutes = 60
	original.Monitoring.MaxTrackedEvents = 500
	original.Maintenance.Schedule = "0 3 * * *"

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file does not exist after Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.DataDir != original.DataDir {
		t.Errorf("DataDir mismatch: %v != %v", loaded.DataDir, original.DataDir)
	}
	if loaded.LogLevel != original.LogLevel {
		t.Errorf("LogLevel mismatch: %v != %v", loaded.LogLevel, original.LogLevel)
	}
	if loaded.API.Key != original.API.Key {
		t.Errorf("API.Key mismatch: %v != %v", loaded.API.Key, original.API.Key)
	}
	if loaded.API.RateLimitSeconds != original.API.RateLimitSeconds {
		t.Errorf("API.RateLimitSeconds mismatch: %v != %v", loaded.API.RateLimitSeconds, original.API.RateLimitSeconds)
	}
	if loaded.Telegram.Token != original.Telegram.Token {
		t.Errorf("Telegram.Token mismatch: %v != %v", loaded.Telegram.Token, original.Telegram.Token)
	}
	if loaded.Telegram.ChatID != original.Telegram.ChatID {
		t.Errorf("Telegram.ChatID mismatch: %v != %v", loaded.Telegram.ChatID, original.Telegram.ChatID)
	}
	if loaded.Monitoring.Source != original.Monitoring.Source {
		t.Errorf("Monitoring.Source mismatch: %v != %v", loaded.Monitoring.Source, original.Monitoring.Source)
	}
	if loaded.Monitoring.CooldownMinutes != original.Monitoring.CooldownMinutes {
		t.Errorf("Monitoring.CooldownMinutes mismatch: %v != %v", loaded.Monitoring.CooldownMinutes, original.Monitoring.CooldownMinutes)
	}
	if loaded.Maintenance.Schedule != original.Maintenance.Schedule {
		t.Errorf("Maintenance.Schedule mismatch: %v != %v", loaded.Maintenance.Schedule, original.Maintenance.Schedule)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected default log_level=info, got %v", cfg.LogLevel)
	}
	if cfg.API.BaseURL != "https://api.twitterapi.io" {
		t.Errorf("unexpected default base URL %v", cfg.API.BaseURL)
	}
	if cfg.RateLimit() != 6*time.Second {
		t.Errorf("expected default rate limit 6s, got %v", cfg.RateLimit())
	}
	if cfg.CheckInterval() != 60*time.Second {
		t.Errorf("expected default check interval 60s, got %v", cfg.CheckInterval())
	}
	if cfg.RecentWindow() != 10*time.Minute {
		t.Errorf("expected default recent window 10m, got %v", cfg.RecentWindow())
	}
	if cfg.Cooldown() != 180*time.Minute {
		t.Errorf("expected default cooldown 180m, got %v", cfg.Cooldown())
	}
	if cfg.Monitoring.MaxTrackedEvents != 10000 {
		t.Errorf("expected default max tracked events 10000, got %v", cfg.Monitoring.MaxTrackedEvents)
	}
	if cfg.Monitoring.Source != "last_tweets" {
		t.Errorf("expected default source last_tweets, got %v", cfg.Monitoring.Source)
	}

	// Load writes defaults on first run
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file written with defaults: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("BIRDWATCH_API_KEY", "env-key")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100987")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.Key != "env-key" {
		t.Errorf("expected API key from env, got %v", cfg.API.Key)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("expected Telegram token from env, got %v", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChatID != -100987 {
		t.Errorf("expected chat ID from env, got %v", cfg.Telegram.ChatID)
	}
}

func TestLoad_BadChatIDEnv(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed TELEGRAM_CHAT_ID")
	}
}

func TestSave_AtomicWrite(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify no temp file left behind
	tmpPath := path + ".tmp"
	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Errorf("temp file should not exist after successful save")
	}

	// Verify the file is valid JSON
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("saved file is not valid JSON: %v", err)
	}
}

func TestToMap(t *testing.T) {
	cfg := &Config{
		DataDir:  "/tmp/test",
		LogLevel: "debug",
	}
	cfg.Monitoring.Source = "search"
	cfg.Monitoring.CooldownMinutes = 120

	m, err := ToMap(cfg)
	if err != nil {
		t.Fatalf("ToMap failed: %v", err)
	}

	if m["data_dir"] != "/tmp/test" {
		t.Errorf("expected data_dir=/tmp/test, got %v", m["data_dir"])
	}
	if m["log_level"] != "debug" {
		t.Errorf("expected log_level=debug, got %v", m["log_level"])
	}

	mon, ok := m["monitoring"].(map[string]any)
	if !ok {
		t.Fatalf("expected monitoring to be map, got %T", m["monitoring"])
	}
	if mon["source"] != "search" {
		t.Errorf("expected monitoring.source=search, got %v", mon["source"])
	}
	// JSON numbers are float64
	if mon["cooldown_minutes"] != float64(120) {
		t.Errorf("expected monitoring.cooldown_minutes=120, got %v", mon["cooldown_minutes"])
	}
}

func TestListValues_NoMask(t *testing.T) {
	cfg := &Config{
		LogLevel: "info",
	}
	cfg.API.Key = "api-secret-key-1234"
	cfg.Telegram.Token = "bot-token-abcd"

	flat, err := ListValues(cfg, false)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}

	// Secrets should be unmasked
	if flat["api.key"] != "api-secret-key-1234" {
		t.Errorf("expected unmasked api.key, got %v", flat["api.key"])
	}
	if flat["telegram.token"] != "bot-token-abcd" {
		t.Errorf("expected unmasked telegram.token, got %v", flat["telegram.token"])
	}
	if flat["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", flat["log_level"])
	}
}

func TestListValues_WithMask(t *testing.T) {
	cfg := &Config{
		LogLevel: "info",
	}
	cfg.API.Key = "api-secret-key-1234"
	cfg.Telegram.Token = "bot-token-abcd"

	flat, err := ListValues(cfg, true)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}

	// Secrets should be masked
	if flat["api.key"] != "***1234" {
		t.Errorf("expected masked api.key=***1234, got %v", flat["api.key"])
	}
	if flat["telegram.token"] != "***abcd" {
		t.Errorf("expected masked telegram.token=***abcd, got %v", flat["telegram.token"])
	}

	// Non-secrets should be unchanged
	if flat["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", flat["log_level"])
	}
}

func TestGetValue_ExistingKey(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{
		LogLevel: "debug",
	}
	cfg.Monitoring.Source = "search"
	cfg.Monitoring.CooldownMinutes = 90
	writeTestConfig(t, path, cfg)

	v, err := GetValue(path, "log_level")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "debug" {
		t.Errorf("expected log_level=debug, got %v", v)
	}

	v, err = GetValue(path, "monitoring.source")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "search" {
		t.Errorf("expected monitoring.source=search, got %v", v)
	}

	v, err = GetValue(path, "monitoring.cooldown_minutes")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	// JSON numbers are float64
	if v != float64(90) {
		t.Errorf("expected monitoring.cooldown_minutes=90, got %v (%T)", v, v)
	}
}

func TestGetValue_UnknownKey(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	writeTestConfig(t, path, cfg)

	_, err := GetValue(path, "nonexistent.key")
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	expected := "unknown config key: nonexistent.key"
	if err.Error() != expected {
		t.Errorf("expected error %q, got %q", expected, err.Error())
	}
}

func TestSetValue_String(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	cfg.Monitoring.Source = "last_tweets"
	writeTestConfig(t, path, cfg)

	if err := SetValue(path, "log_level", "debug"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	v, err := GetValue(path, "log_level")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "debug" {
		t.Errorf("expected log_level=debug after set, got %v", v)
	}

	// Verify other values are preserved
	v, err = GetValue(path, "monitoring.source")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "last_tweets" {
		t.Errorf("expected monitoring.source=last_tweets (preserved), got %v", v)
	}
}

func TestSetValue_Numeric(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{}
	cfg.Monitoring.CheckIntervalSeconds = 60
	writeTestConfig(t, path, cfg)

	if err := SetValue(path, "monitoring.check_interval_seconds", "30"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	v, err := GetValue(path, "monitoring.check_interval_seconds")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != float64(30) {
		t.Errorf("expected monitoring.check_interval_seconds=30, got %v (%T)", v, v)
	}
}

func TestSetValue_Boolean(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	writeTestConfig(t, path, cfg)

	if err := SetValue(path, "monitoring.notify_lifecycle", "true"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	v, err := GetValue(path, "monitoring.notify_lifecycle")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != true {
		t.Errorf("expected monitoring.notify_lifecycle=true, got %v (%T)", v, v)
	}
}

func TestSetValue_Float(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{}
	cfg.API.RateLimitSeconds = 6.0
	writeTestConfig(t, path, cfg)

	if err := SetValue(path, "api.rate_limit_seconds", "1.5"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	v, err := GetValue(path, "api.rate_limit_seconds")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != 1.5 {
		t.Errorf("expected api.rate_limit_seconds=1.5, got %v (%T)", v, v)
	}
}

func TestSetValue_NonexistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "config.json")
	err := SetValue(path, "log_level", "debug")
	if err == nil {
		t.Fatal("expected error for nonexistent file, got nil")
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.json")

	cfg := &Config{LogLevel: "warn"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save should create parent directory, got: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file should exist: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Monitoring.Source = "last_tweets"
	cfg.Monitoring.CheckIntervalSeconds = 60

	if err := cfg.Validate(); err == nil {
		t.Error("expected error with no API key")
	}

	cfg.API.Key = "k"
	cfg.Telegram.Token = "t"
	cfg.Telegram.ChatID = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	cfg.Monitoring.Source = "firehose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown source")
	}
}
