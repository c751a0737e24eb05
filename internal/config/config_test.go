package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("CAPABILITY_BASE_URL", "http://capabilities.local")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.STTProvider != "deepgram" {
		t.Errorf("STTProvider = %q, want deepgram", cfg.STTProvider)
	}
	if cfg.STTSampleRate != 48000 {
		t.Errorf("STTSampleRate = %d, want 48000", cfg.STTSampleRate)
	}
	if cfg.TokenFile != "tokens.env" {
		t.Errorf("TokenFile = %q", cfg.TokenFile)
	}
	if cfg.MaxCaptureDuration != 10*time.Second {
		t.Errorf("MaxCaptureDuration = %v, want 10s", cfg.MaxCaptureDuration)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("CAPABILITY_BASE_URL", "http://capabilities.local")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() succeeded without required keys")
	}
	for _, key := range []string{"JWT_SECRET", "GEMINI_API_KEY"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestLoadInvalidSampleRate(t *testing.T) {
	setRequired(t)
	t.Setenv("STT_SAMPLE_RATE", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted invalid sample rate")
	}
}

func TestLoadInvalidCaptureCeiling(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_CAPTURE_SECONDS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted a zero capture ceiling")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STT_PROVIDER", "google")
	t.Setenv("STT_LANGUAGE", "id")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9090" || cfg.STTProvider != "google" || cfg.STTLanguage != "id" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}
