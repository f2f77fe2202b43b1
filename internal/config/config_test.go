package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// clearEnv unsets the override variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvTransportToken, EnvTransportURL, EnvInputDevice, EnvLogLevel} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

const minimalConfig = `{
  "audio": {"input_device_name": "Headset Mic"},
  "transport": {"url": "ws://localhost:8080/voice"}
}`

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", minimalConfig)

	cfg, err := load(path, filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Audio.HostAPIName != DefaultHostAPIName() {
		t.Errorf("expected default host API %q, got %q", DefaultHostAPIName(), cfg.Audio.HostAPIName)
	}
	if cfg.Audio.InputSampleRate != 48000 {
		t.Errorf("expected 48000, got %d", cfg.Audio.InputSampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", cfg.Audio.Channels)
	}
	if cfg.Audio.InitialVolume != 1.0 {
		t.Errorf("expected volume 1.0, got %v", cfg.Audio.InitialVolume)
	}
	if cfg.Transport.DialAttempts != 3 {
		t.Errorf("expected 3 dial attempts, got %d", cfg.Transport.DialAttempts)
	}
	if cfg.LogLevel != "info" || cfg.UI != UIConsole {
		t.Errorf("unexpected log level %q or ui %q", cfg.LogLevel, cfg.UI)
	}
	if cfg.AutoJoin.Enabled {
		t.Error("auto join should be disabled by default")
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{
  "audio": {
    "host_api_name": "MME",
    "input_device_name": "Line In",
    "input_sample_rate": 44100,
    "channels": 2,
    "initial_volume": 0.5
  },
  "transport": {"url": "wss://voice.example.com/sink", "token": "abc", "dial_attempts": 5},
  "auto_join": {"enabled": true, "target": "123"},
  "permissions": {"user_ids": ["1", "2"]},
  "log_level": "debug",
  "ui": "tray"
}`)

	cfg, err := load(path, filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Audio.HostAPIName != "MME" || cfg.Audio.InputDeviceName != "Line In" {
		t.Errorf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Audio.InputSampleRate != 44100 || cfg.Audio.Channels != 2 || cfg.Audio.InitialVolume != 0.5 {
		t.Errorf("unexpected audio format: %+v", cfg.Audio)
	}
	if cfg.Transport.Token != "abc" || cfg.Transport.DialAttempts != 5 {
		t.Errorf("unexpected transport config: %+v", cfg.Transport)
	}
	if !cfg.AutoJoin.Enabled || cfg.AutoJoin.Target != "123" {
		t.Errorf("unexpected auto join config: %+v", cfg.AutoJoin)
	}
	if len(cfg.Permissions.UserIDs) != 2 {
		t.Errorf("expected 2 user IDs, got %v", cfg.Permissions.UserIDs)
	}
	if cfg.UI != UITray {
		t.Errorf("expected tray UI, got %q", cfg.UI)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTransportToken, "from-env")
	t.Setenv(EnvInputDevice, "USB Mic")
	t.Setenv(EnvLogLevel, "WARN")

	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", minimalConfig)

	cfg, err := load(path, filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Transport.Token != "from-env" {
		t.Errorf("expected token from env, got %q", cfg.Transport.Token)
	}
	if cfg.Audio.InputDeviceName != "USB Mic" {
		t.Errorf("expected device from env, got %q", cfg.Audio.InputDeviceName)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected warn, got %q", cfg.LogLevel)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"audio": {"input_device_name": "Headset Mic"}}`)
	envFile := writeFile(t, dir, ".env", "AUDIOPHAGE_TRANSPORT_URL=ws://sink.local/voice\nAUDIOPHAGE_TRANSPORT_TOKEN=dotenv\n")

	cfg, err := load(path, envFile)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Transport.URL != "ws://sink.local/voice" {
		t.Errorf("expected URL from .env, got %q", cfg.Transport.URL)
	}
	if cfg.Transport.Token != "dotenv" {
		t.Errorf("expected token from .env, got %q", cfg.Transport.Token)
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := load(filepath.Join(dir, "missing.json"), filepath.Join(dir, ".env"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"audio.input_device_name", "transport.url"} {
		if !verr.Has(field) {
			t.Errorf("expected %s to be reported, got %v", field, verr)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"channels", func(c *Config) { c.Audio.Channels = 3 }, "audio.channels"},
		{"volume too high", func(c *Config) { c.Audio.InitialVolume = 2.5 }, "audio.initial_volume"},
		{"volume negative", func(c *Config) { c.Audio.InitialVolume = -0.1 }, "audio.initial_volume"},
		{"sample rate", func(c *Config) { c.Audio.InputSampleRate = 0 }, "audio.input_sample_rate"},
		{"dial attempts", func(c *Config) { c.Transport.DialAttempts = 0 }, "transport.dial_attempts"},
		{"url", func(c *Config) { c.Transport.URL = "not a url" }, "transport.url"},
		{"auto join target", func(c *Config) { c.AutoJoin.Enabled = true }, "auto_join.target"},
		{"ui", func(c *Config) { c.UI = "web" }, "ui"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Audio.InputDeviceName = "Headset Mic"
			cfg.Transport.URL = "ws://localhost/voice"
			tt.mutate(cfg)

			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !verr.Has(tt.field) {
				t.Errorf("expected %s to be reported, got %v", tt.field, verr)
			}
		})
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"audio": `)

	_, err := load(path, filepath.Join(dir, ".env"))
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Error("malformed JSON should not be reported as a validation error")
	}
}

func TestSaveThenLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := Default()
	cfg.Audio.InputDeviceName = "Headset Mic"
	cfg.Transport.URL = "ws://localhost/voice"
	cfg.AutoJoin = AutoJoinConfig{Enabled: true, Target: "42"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := load(path, filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.AutoJoin.Target != "42" || loaded.Audio.InputDeviceName != "Headset Mic" {
		t.Errorf("unexpected config after reload: %+v", loaded)
	}
}
