package stt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"context"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
)

const (
	defaultDeepgramBaseURL = "https://api.deepgram.com/v1"
	defaultDeepgramModel   = "nova-2"
)

// DeepgramConfig holds configuration for the Deepgram adapter.
// Required fields:
// - APIKey: Your Deepgram API key
// Optional fields with defaults:
// - BaseURL: API base URL (default: "https://api.deepgram.com/v1")
// - Model: transcription model (default: "nova-2")
// - Language: BCP-47 language hint (default: none, provider autodetects)
type DeepgramConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

// DeepgramSpeechToText implements SpeechToText using Deepgram's prerecorded
// transcription endpoint.
type DeepgramSpeechToText struct {
	apiKey   string
	baseURL  string
	model    string
	language string
	client   *http.Client
	logger   *zap.Logger
}

var _ repositories.SpeechToText = (*DeepgramSpeechToText)(nil)

// deepgramResponse mirrors the fields we read from the provider reply.
type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// NewDeepgramSpeechToText creates a new Deepgram adapter.
func NewDeepgramSpeechToText(config DeepgramConfig, logger *zap.Logger) (*DeepgramSpeechToText, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultDeepgramBaseURL
	}

	model := config.Model
	if model == "" {
		model = defaultDeepgramModel
	}

	return &DeepgramSpeechToText{
		apiKey:   config.APIKey,
		baseURL:  baseURL,
		model:    model,
		language: config.Language,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}, nil
}

// Transcribe submits the clip bytes and returns the best transcript.
func (d *DeepgramSpeechToText) Transcribe(ctx context.Context, clip entities.AudioClip) (entities.Transcript, error) {
	if clip.Empty() {
		return entities.Transcript{}, fmt.Errorf("%w: empty clip", repositories.ErrTranscriptionFailed)
	}

	params := url.Values{}
	params.Set("smart_format", "true")
	params.Set("model", d.model)
	if d.language != "" {
		params.Set("language", d.language)
	}

	endpoint := fmt.Sprintf("%s/listen?%s", d.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(clip.Data))
	if err != nil {
		return entities.Transcript{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", clip.MIMEType)

	resp, err := d.client.Do(req)
	if err != nil {
		return entities.Transcript{}, fmt.Errorf("%w: %v", repositories.ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return entities.Transcript{}, fmt.Errorf("%w: reading response: %v", repositories.ErrTranscriptionFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("Deepgram returned non-success status",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("clipID", clip.ID))
		return entities.Transcript{}, fmt.Errorf("%w: status %d", repositories.ErrTranscriptionFailed, resp.StatusCode)
	}

	var parsed deepgramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return entities.Transcript{}, fmt.Errorf("%w: parsing response: %v", repositories.ErrTranscriptionFailed, err)
	}

	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return entities.Transcript{}, fmt.Errorf("%w: no transcription alternatives", repositories.ErrTranscriptionFailed)
	}

	text := parsed.Results.Channels[0].Alternatives[0].Transcript
	d.logger.Info("Transcription completed",
		zap.String("clipID", clip.ID),
		zap.Int("chars", len(text)))

	return entities.Transcript{Text: text, SourceClipID: clip.ID}, nil
}
