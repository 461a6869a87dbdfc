package cfg

import (
	"strings"
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	s := Defaults()
	return &s
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantMsg string
	}{
		{"port zero", func(s *Settings) { s.Port = 0 }, "port"},
		{"port too high", func(s *Settings) { s.Port = 65536 }, "port"},
		{"empty reference", func(s *Settings) { s.ModelReference = "" }, "model reference"},
		{"empty tracking path", func(s *Settings) { s.TrackingPath = "" }, "tracking path"},
		{"read timeout too short", func(s *Settings) { s.ReadTimeout = 500 * time.Millisecond }, "read timeout"},
		{"write timeout too long", func(s *Settings) { s.WriteTimeout = 6 * time.Minute }, "write timeout"},
		{"shutdown timeout zero", func(s *Settings) { s.ShutdownTimeout = 0 }, "shutdown timeout"},
		{"body limit too small", func(s *Settings) { s.MaxBodyBytes = 512 }, "max body bytes"},
		{"body limit too large", func(s *Settings) { s.MaxBodyBytes = 11 << 20 }, "max body bytes"},
		{"unknown log format", func(s *Settings) { s.LogFormat = "text" }, "log format"},
		{"no origins", func(s *Settings) { s.AllowedOrigins = nil }, "allowed origin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)

			err := validateSettings(settings)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestValidateSettings_Boundaries(t *testing.T) {
	settings := createValidSettings()
	settings.Port = 65535
	settings.ReadTimeout = time.Second
	settings.WriteTimeout = 5 * time.Minute
	settings.MaxBodyBytes = 1 << 10
	settings.LogFormat = "json"

	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected boundary values to pass, got error: %v", err)
	}
}

func TestSplitOrDefault(t *testing.T) {
	def := []string{"*"}

	tests := []struct {
		in   string
		want []string
	}{
		{"", def},
		{" , ", def},
		{"a", []string{"a"}},
		{"a, b,,c ", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		got := splitOrDefault(tt.in, def)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("splitOrDefault(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
