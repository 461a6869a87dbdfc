package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"iris-service/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DotEnvFile is loaded into the environment, if present, before settings are read.
const DotEnvFile = ".env"

type Settings struct {
	Port            int
	ModelReference  string
	Experiment      string
	TrackingPath    string
	LogLevel        string
	LogFormat       string
	LogFile         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	AllowedOrigins  []string
}

// Addr returns the listen address for the HTTP server.
func (s Settings) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

type ConfigFile struct {
	Server struct {
		Port            int      `yaml:"port"`
		ReadTimeout     string   `yaml:"readTimeout"`
		WriteTimeout    string   `yaml:"writeTimeout"`
		ShutdownTimeout string   `yaml:"shutdownTimeout"`
		MaxBodyBytes    int64    `yaml:"maxBodyBytes"`
		AllowedOrigins  []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Model struct {
		Reference  string `yaml:"reference"`
		Experiment string `yaml:"experiment"`
	} `yaml:"model"`

	Tracking struct {
		Path string `yaml:"path"`
	} `yaml:"tracking"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"logging"`
}

// Defaults returns the settings used when neither a config file nor the
// environment provide a value.
func Defaults() Settings {
	return Settings{
		Port:            common.DefaultPort,
		ModelReference:  common.DefaultModelReference,
		Experiment:      common.DefaultExperiment,
		TrackingPath:    common.DefaultTrackingPath,
		LogLevel:        common.DefaultLogLevel,
		LogFormat:       common.DefaultLogFormat,
		ReadTimeout:     common.DefaultReadTimeout,
		WriteTimeout:    common.DefaultWriteTimeout,
		ShutdownTimeout: common.DefaultShutdownTimeout,
		MaxBodyBytes:    common.DefaultMaxBodyBytes,
		AllowedOrigins:  []string{"*"},
	}
}

// Load builds the settings from defaults, the YAML file named by CONFIG_FILE
// and environment overrides, in that order. A .env file in the working
// directory is loaded first; variables already set are not overwritten.
func Load() (Settings, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	settings := Defaults()

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		if err := applyYAML(&settings, configPath); err != nil {
			return Settings{}, err
		}
	}

	applyEnv(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func applyYAML(settings *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Server.Port != 0 {
		settings.Port = config.Server.Port
	}
	if config.Server.MaxBodyBytes != 0 {
		settings.MaxBodyBytes = config.Server.MaxBodyBytes
	}
	if len(config.Server.AllowedOrigins) > 0 {
		settings.AllowedOrigins = config.Server.AllowedOrigins
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"server.readTimeout", config.Server.ReadTimeout, &settings.ReadTimeout},
		{"server.writeTimeout", config.Server.WriteTimeout, &settings.WriteTimeout},
		{"server.shutdownTimeout", config.Server.ShutdownTimeout, &settings.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
		*d.dst = parsed
	}

	settings.ModelReference = stringOr(config.Model.Reference, settings.ModelReference)
	settings.Experiment = stringOr(config.Model.Experiment, settings.Experiment)
	settings.TrackingPath = stringOr(config.Tracking.Path, settings.TrackingPath)
	settings.LogLevel = stringOr(config.Logging.Level, settings.LogLevel)
	settings.LogFormat = stringOr(config.Logging.Format, settings.LogFormat)
	settings.LogFile = stringOr(config.Logging.File, settings.LogFile)

	return nil
}

func applyEnv(settings *Settings) {
	settings.Port = getIntOrDefault(common.EnvPort, settings.Port)
	settings.ModelReference = getEnvOrDefault(common.EnvModelReference, settings.ModelReference)
	settings.Experiment = getEnvOrDefault(common.EnvExperiment, settings.Experiment)
	settings.TrackingPath = getEnvOrDefault(common.EnvTrackingPath, settings.TrackingPath)
	settings.LogLevel = getEnvOrDefault(common.EnvLogLevel, settings.LogLevel)
	settings.LogFormat = getEnvOrDefault(common.EnvLogFormat, settings.LogFormat)
	settings.LogFile = getEnvOrDefault(common.EnvLogFile, settings.LogFile)
	settings.ReadTimeout = getDurationOrDefault(common.EnvReadTimeout, settings.ReadTimeout)
	settings.WriteTimeout = getDurationOrDefault(common.EnvWriteTimeout, settings.WriteTimeout)
	settings.ShutdownTimeout = getDurationOrDefault(common.EnvShutdownTimeout, settings.ShutdownTimeout)
	settings.MaxBodyBytes = int64(getIntOrDefault(common.EnvMaxBodyBytes, int(settings.MaxBodyBytes)))
	settings.AllowedOrigins = splitOrDefault(os.Getenv(common.EnvAllowedOrigins), settings.AllowedOrigins)
}

func stringOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}

	if strings.TrimSpace(settings.ModelReference) == "" {
		return fmt.Errorf("model reference cannot be empty")
	}
	if settings.TrackingPath == "" {
		return fmt.Errorf("tracking path cannot be empty")
	}

	timeouts := []struct {
		name  string
		value time.Duration
	}{
		{"read timeout", settings.ReadTimeout},
		{"write timeout", settings.WriteTimeout},
		{"shutdown timeout", settings.ShutdownTimeout},
	}
	for _, t := range timeouts {
		if t.value < common.MinTimeout || t.value > common.MaxTimeout {
			return fmt.Errorf("%s must be between %v and %v, got %v", t.name, common.MinTimeout, common.MaxTimeout, t.value)
		}
	}

	if settings.MaxBodyBytes < common.MinBodyBytes || settings.MaxBodyBytes > common.MaxBodyBytes {
		return fmt.Errorf("max body bytes must be between %d and %d, got %d", common.MinBodyBytes, common.MaxBodyBytes, settings.MaxBodyBytes)
	}

	switch settings.LogFormat {
	case common.LogFormatConsole, common.LogFormatJSON:
	default:
		return fmt.Errorf("log format must be %q or %q, got %q", common.LogFormatConsole, common.LogFormatJSON, settings.LogFormat)
	}

	if len(settings.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	return nil
}
