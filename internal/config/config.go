package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	UIConsole = "console"
	UITray    = "tray"
)

// Environment variables that override the config file.
const (
	EnvTransportToken = "AUDIOPHAGE_TRANSPORT_TOKEN"
	EnvTransportURL   = "AUDIOPHAGE_TRANSPORT_URL"
	EnvInputDevice    = "AUDIOPHAGE_INPUT_DEVICE"
	EnvLogLevel       = "AUDIOPHAGE_LOG_LEVEL"
)

type Config struct {
	Audio       AudioConfig       `json:"audio"`
	Transport   TransportConfig   `json:"transport"`
	AutoJoin    AutoJoinConfig    `json:"auto_join"`
	Permissions PermissionsConfig `json:"permissions"`
	LogLevel    string            `json:"log_level" validate:"oneof=trace debug info warn error"`
	UI          string            `json:"ui" validate:"oneof=console tray"`
}

type AudioConfig struct {
	HostAPIName     string  `json:"host_api_name" validate:"required"`
	InputDeviceName string  `json:"input_device_name" validate:"required"`
	InputSampleRate int     `json:"input_sample_rate" validate:"gt=0"`
	Channels        int     `json:"channels" validate:"oneof=1 2"`
	InitialVolume   float64 `json:"initial_volume" validate:"gte=0,lte=2"`
}

type TransportConfig struct {
	URL          string `json:"url" validate:"required,url"`
	Token        string `json:"token"`
	DialAttempts int    `json:"dial_attempts" validate:"min=1"`
}

type AutoJoinConfig struct {
	Enabled bool   `json:"enabled"`
	Target  string `json:"target" validate:"required_if=Enabled true"`
}

type PermissionsConfig struct {
	UserIDs []string `json:"user_ids"`
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages instead of struct field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			HostAPIName:     DefaultHostAPIName(),
			InputSampleRate: 48000,
			Channels:        1,
			InitialVolume:   1.0,
		},
		Transport: TransportConfig{
			DialAttempts: 3,
		},
		Permissions: PermissionsConfig{
			UserIDs: []string{},
		},
		LogLevel: "info",
		UI:       UIConsole,
	}
}

// DefaultHostAPIName returns the usual PortAudio host API name for the current platform
func DefaultHostAPIName() string {
	switch runtime.GOOS {
	case "windows":
		return "Windows WASAPI"
	case "darwin":
		return "Core Audio"
	default:
		return "ALSA"
	}
}

// Load reads the config at path (the platform default when empty), applies
// overrides from the environment and a .env file in the working directory, and
// validates the result.
func Load(path string) (*Config, error) {
	return load(path, ".env")
}

func load(path, envFile string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := Default()

	// Load existing config if it exists
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvTransportToken); v != "" {
		c.Transport.Token = v
	}
	if v := os.Getenv(EnvTransportURL); v != "" {
		c.Transport.URL = v
	}
	if v := os.Getenv(EnvInputDevice); v != "" {
		c.Audio.InputDeviceName = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// Validate checks every field and reports all failures at once as a
// *ValidationError.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	verr := NewValidationError()
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			verr.Add(fieldPath(e.Namespace()), formatValidationMessage(e), e.Value())
		}
	} else {
		verr.Add("", err.Error(), nil)
	}
	return verr
}

// fieldPath drops the root struct name from a validator namespace,
// e.g. "Config.audio.channels" becomes "audio.channels".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// formatValidationMessage creates a human-readable message from a validator error.
func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// Save writes the config to path, or the platform default when empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ConfigPath returns the platform-specific config file path
func ConfigPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "audiophage", "config.json")
}
