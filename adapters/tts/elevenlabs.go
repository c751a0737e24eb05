package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM" // Rachel voice
	defaultChunkSize    = 1024
	defaultOutputFormat = "pcm_24000"
	defaultModelID      = "eleven_multilingual_v2"
	defaultStability    = 0.5
	defaultClarity      = 0.75
)

// ElevenLabsConfig holds configuration for the ElevenLabsTTS adapter.
// Required fields:
// - APIKey: Your Eleven Labs API key
// Optional fields with defaults:
// - APIBaseURL, VoiceID, ModelID, OutputFormat, ChunkSize
// - LanguageCode: ISO language hint forwarded to the model
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	LanguageCode string
	ChunkSize    int
}

// ElevenLabsTTS implements TextToSpeech using the Eleven Labs API.
type ElevenLabsTTS struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	languageCode string
	chunkSize    int
	client       *http.Client
	logger       *zap.Logger
}

var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	LanguageCode  string                  `json:"language_code,omitempty"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

// NewElevenLabsTTS creates a new Eleven Labs TTS instance.
func NewElevenLabsTTS(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("eleven labs API key is required")
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}
	outputFormat := config.OutputFormat
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
	}
	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}

	return &ElevenLabsTTS{
		apiKey:       config.APIKey,
		apiBaseURL:   apiBaseURL,
		voiceID:      voiceID,
		modelID:      modelID,
		outputFormat: outputFormat,
		languageCode: config.LanguageCode,
		chunkSize:    chunkSize,
		client:       &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
	}, nil
}

// ConvertTextToSpeech synthesizes text and streams audio frames on the
// returned channel. Cancelling ctx aborts synthesis mid-stream; the channel
// closes either way.
func (e *ElevenLabsTTS) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	request := elevenLabsRequest{
		Text:         text,
		ModelID:      e.modelID,
		LanguageCode: e.languageCode,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       defaultStability,
			SimilarityBoost: defaultClarity,
		},
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s",
		e.apiBaseURL, e.voiceID, e.outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	acceptHeader := "audio/mpeg"
	if strings.HasPrefix(e.outputFormat, "pcm") {
		acceptHeader = "audio/pcm"
	}
	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	audioChan := make(chan []byte, 10)

	go func() {
		defer close(audioChan)

		resp, err := e.client.Do(httpReq)
		if err != nil {
			e.logger.Error("Failed to execute TTS request", zap.Error(err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errorBody, _ := io.ReadAll(resp.Body)
			e.logger.Error("Eleven Labs API returned error",
				zap.Int("statusCode", resp.StatusCode),
				zap.String("response", string(errorBody)))
			return
		}

		buffer := make([]byte, e.chunkSize)
		for {
			n, err := resp.Body.Read(buffer)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				select {
				case audioChan <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					e.logger.Error("Error reading TTS response body", zap.Error(err))
				}
				return
			}
		}
	}()

	return audioChan, nil
}
