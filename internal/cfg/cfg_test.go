package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"iris-service/internal/common"
)

var configEnvKeys = []string{
	common.EnvConfigFile,
	common.EnvPort,
	common.EnvModelReference,
	common.EnvExperiment,
	common.EnvTrackingPath,
	common.EnvLogLevel,
	common.EnvLogFormat,
	common.EnvLogFile,
	common.EnvReadTimeout,
	common.EnvWriteTimeout,
	common.EnvShutdownTimeout,
	common.EnvMaxBodyBytes,
	common.EnvAllowedOrigins,
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 8000 {
					t.Errorf("expected default port 8000, got %d", settings.Port)
				}
				if settings.ModelReference != "models:/iris_classifier/latest" {
					t.Errorf("expected default model reference, got %s", settings.ModelReference)
				}
				if settings.Experiment != "iris-classification" {
					t.Errorf("expected default experiment, got %s", settings.Experiment)
				}
				if settings.TrackingPath != "mlruns" {
					t.Errorf("expected default tracking path mlruns, got %s", settings.TrackingPath)
				}
				if settings.ReadTimeout != 10*time.Second {
					t.Errorf("expected default read timeout 10s, got %v", settings.ReadTimeout)
				}
				if settings.LogFormat != common.LogFormatConsole {
					t.Errorf("expected console log format, got %s", settings.LogFormat)
				}
				if len(settings.AllowedOrigins) != 1 || settings.AllowedOrigins[0] != "*" {
					t.Errorf("expected allowed origins [*], got %v", settings.AllowedOrigins)
				}
				if settings.Addr() != ":8000" {
					t.Errorf("expected addr :8000, got %s", settings.Addr())
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				common.EnvPort:            "9000",
				common.EnvModelReference:  "runs:/abc123/model",
				common.EnvExperiment:      "iris-dev",
				common.EnvTrackingPath:    "/var/lib/iris/mlruns",
				common.EnvLogLevel:        "debug",
				common.EnvLogFormat:       "json",
				common.EnvLogFile:         "/var/log/iris.log",
				common.EnvReadTimeout:     "5s",
				common.EnvWriteTimeout:    "15s",
				common.EnvShutdownTimeout: "30s",
				common.EnvMaxBodyBytes:    "4096",
				common.EnvAllowedOrigins:  "https://a.example, https://b.example",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 9000 {
					t.Errorf("expected port 9000, got %d", settings.Port)
				}
				if settings.ModelReference != "runs:/abc123/model" {
					t.Errorf("expected run reference, got %s", settings.ModelReference)
				}
				if settings.Experiment != "iris-dev" {
					t.Errorf("expected experiment iris-dev, got %s", settings.Experiment)
				}
				if settings.TrackingPath != "/var/lib/iris/mlruns" {
					t.Errorf("unexpected tracking path %s", settings.TrackingPath)
				}
				if settings.LogLevel != "debug" || settings.LogFormat != "json" || settings.LogFile != "/var/log/iris.log" {
					t.Errorf("unexpected logging settings %s/%s/%s", settings.LogLevel, settings.LogFormat, settings.LogFile)
				}
				if settings.ReadTimeout != 5*time.Second || settings.WriteTimeout != 15*time.Second || settings.ShutdownTimeout != 30*time.Second {
					t.Errorf("unexpected timeouts %v/%v/%v", settings.ReadTimeout, settings.WriteTimeout, settings.ShutdownTimeout)
				}
				if settings.MaxBodyBytes != 4096 {
					t.Errorf("expected max body 4096, got %d", settings.MaxBodyBytes)
				}
				if len(settings.AllowedOrigins) != 2 || settings.AllowedOrigins[1] != "https://b.example" {
					t.Errorf("unexpected allowed origins %v", settings.AllowedOrigins)
				}
			},
		},
		{
			name: "unparseable values fall back to defaults",
			envVars: map[string]string{
				common.EnvPort:        "not-a-port",
				common.EnvReadTimeout: "soon",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 8000 {
					t.Errorf("expected default port, got %d", settings.Port)
				}
				if settings.ReadTimeout != 10*time.Second {
					t.Errorf("expected default read timeout, got %v", settings.ReadTimeout)
				}
			},
		},
		{
			name:    "port out of range",
			envVars: map[string]string{common.EnvPort: "70000"},
			wantErr: true,
		},
		{
			name:    "timeout too long",
			envVars: map[string]string{common.EnvWriteTimeout: "10m"},
			wantErr: true,
		},
		{
			name:    "body limit too small",
			envVars: map[string]string{common.EnvMaxBodyBytes: "10"},
			wantErr: true,
		},
		{
			name:    "unknown log format",
			envVars: map[string]string{common.EnvLogFormat: "xml"},
			wantErr: true,
		},
		{
			name:    "blank model reference",
			envVars: map[string]string{common.EnvModelReference: "   "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			settings, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)

	configContent := `
server:
  port: 8080
  readTimeout: 3s
  writeTimeout: 4s
  shutdownTimeout: 20s
  maxBodyBytes: 2048
  allowedOrigins:
    - https://dashboard.example
model:
  reference: models:/iris_classifier/3
  experiment: iris-yaml
tracking:
  path: /data/mlruns
logging:
  level: warn
  format: json
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(common.EnvConfigFile, configPath)

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if settings.Port != 8080 {
		t.Errorf("expected port 8080, got %d", settings.Port)
	}
	if settings.ModelReference != "models:/iris_classifier/3" {
		t.Errorf("unexpected model reference %s", settings.ModelReference)
	}
	if settings.Experiment != "iris-yaml" {
		t.Errorf("unexpected experiment %s", settings.Experiment)
	}
	if settings.TrackingPath != "/data/mlruns" {
		t.Errorf("unexpected tracking path %s", settings.TrackingPath)
	}
	if settings.ReadTimeout != 3*time.Second || settings.WriteTimeout != 4*time.Second || settings.ShutdownTimeout != 20*time.Second {
		t.Errorf("unexpected timeouts %v/%v/%v", settings.ReadTimeout, settings.WriteTimeout, settings.ShutdownTimeout)
	}
	if settings.MaxBodyBytes != 2048 {
		t.Errorf("expected max body 2048, got %d", settings.MaxBodyBytes)
	}
	if len(settings.AllowedOrigins) != 1 || settings.AllowedOrigins[0] != "https://dashboard.example" {
		t.Errorf("unexpected allowed origins %v", settings.AllowedOrigins)
	}
	if settings.LogLevel != "warn" || settings.LogFormat != "json" {
		t.Errorf("unexpected logging settings %s/%s", settings.LogLevel, settings.LogFormat)
	}

	// Environment overrides the file.
	t.Setenv(common.EnvPort, "8181")
	settings, err = Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if settings.Port != 8181 {
		t.Errorf("expected env port 8181 to override file, got %d", settings.Port)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv(common.EnvConfigFile, filepath.Join("..", "..", "config.example.yaml"))

	settings, err := Load()
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}

	defaults := Defaults()
	if settings.Port != defaults.Port || settings.ModelReference != defaults.ModelReference {
		t.Errorf("example config drifted from defaults: port %d, reference %s", settings.Port, settings.ModelReference)
	}
	if settings.MaxBodyBytes != defaults.MaxBodyBytes {
		t.Errorf("expected max body %d, got %d", defaults.MaxBodyBytes, settings.MaxBodyBytes)
	}
}

func TestLoadFromYAML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "server: [port"},
		{"bad duration", "server:\n  readTimeout: soon\n"},
		{"invalid value", "server:\n  port: 99999\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			t.Setenv(common.EnvConfigFile, configPath)

			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(common.EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))
		if _, err := Load(); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	dotenv := "PORT=8123\nEXPERIMENT_NAME=from-dotenv\n"
	if err := os.WriteFile(filepath.Join(dir, DotEnvFile), []byte(dotenv), 0o644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Chdir(dir)

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if settings.Port != 8123 {
		t.Errorf("expected port from .env, got %d", settings.Port)
	}
	if settings.Experiment != "from-dotenv" {
		t.Errorf("expected experiment from .env, got %s", settings.Experiment)
	}
}
