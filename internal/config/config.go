package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the server reads from the environment.
type Config struct {
	Port      string
	JWTSecret string

	// STTProvider selects the transcription backend: "deepgram" or "google".
	STTProvider     string
	DeepgramAPIKey  string
	DeepgramBaseURL string
	STTLanguage     string
	STTSampleRate   int

	GeminiAPIKey string

	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string

	AuddAPIToken string

	CapabilityBaseURL string

	SpotifyClientID     string
	SpotifyClientSecret string

	// TokenFile is where the music provider token pair is persisted.
	TokenFile string

	AudioMIMEType string

	// MaxCaptureDuration caps a single push-to-talk capture.
	MaxCaptureDuration time.Duration

	ShutdownTimeout time.Duration
}

// Load reads .env when present and assembles the configuration from the
// environment. Missing required keys are reported together so a fresh deploy
// fails with one actionable message.
func Load() (Config, error) {
	// Absence of .env is fine in containerized deploys.
	_ = godotenv.Load()

	cfg := Config{
		Port:                envOr("PORT", "8080"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		STTProvider:         envOr("STT_PROVIDER", "deepgram"),
		DeepgramAPIKey:      os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramBaseURL:     envOr("DEEPGRAM_BASE_URL", "https://api.deepgram.com/v1"),
		STTLanguage:         envOr("STT_LANGUAGE", "en"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		ElevenLabsAPIKey:    os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID:   os.Getenv("ELEVENLABS_VOICE_ID"),
		AuddAPIToken:        os.Getenv("AUDD_API_TOKEN"),
		CapabilityBaseURL:   os.Getenv("CAPABILITY_BASE_URL"),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		TokenFile:           envOr("TOKEN_FILE", "tokens.env"),
		AudioMIMEType:       envOr("AUDIO_MIME_TYPE", "audio/webm"),
		ShutdownTimeout:     10 * time.Second,
	}

	rate, err := strconv.Atoi(envOr("STT_SAMPLE_RATE", "48000"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid STT_SAMPLE_RATE: %w", err)
	}
	cfg.STTSampleRate = rate

	captureSecs, err := strconv.Atoi(envOr("MAX_CAPTURE_SECONDS", "10"))
	if err != nil || captureSecs <= 0 {
		return Config{}, fmt.Errorf("invalid MAX_CAPTURE_SECONDS: %v", envOr("MAX_CAPTURE_SECONDS", "10"))
	}
	cfg.MaxCaptureDuration = time.Duration(captureSecs) * time.Second

	var missing []string
	for _, key := range []struct{ name, value string }{
		{"JWT_SECRET", cfg.JWTSecret},
		{"GEMINI_API_KEY", cfg.GeminiAPIKey},
		{"CAPABILITY_BASE_URL", cfg.CapabilityBaseURL},
	} {
		if key.value == "" {
			missing = append(missing, key.name)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment: %v", missing)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
