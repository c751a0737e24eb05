package stt

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
)

// GoogleSpeechToText implements SpeechToText for Google Cloud. It is the
// alternative backend behind STT_PROVIDER=google; credentials come from the
// ambient application-default mechanism.
type GoogleSpeechToText struct {
	config repositories.AudioConfig
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates the Cloud Speech adapter.
func NewGoogleSpeechToText(config repositories.AudioConfig, logger *zap.Logger) *GoogleSpeechToText {
	if config.SampleRate == 0 {
		config.SampleRate = 48000
	}
	if config.Language == "" {
		config.Language = "en-US"
	}
	return &GoogleSpeechToText{config: config, logger: logger}
}

// Transcribe runs a synchronous recognition over the whole clip.
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, clip entities.AudioClip) (entities.Transcript, error) {
	if clip.Empty() {
		return entities.Transcript{}, fmt.Errorf("%w: empty clip", repositories.ErrTranscriptionFailed)
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return entities.Transcript{}, fmt.Errorf("failed to create speech client: %w", err)
	}
	defer client.Close()

	encoding, err := audioEncodingFor(clip.MIMEType, g.config.Encoding)
	if err != nil {
		return entities.Transcript{}, err
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(g.config.SampleRate),
			LanguageCode:    g.config.Language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: clip.Data},
		},
	})
	if err != nil {
		return entities.Transcript{}, fmt.Errorf("%w: %v", repositories.ErrTranscriptionFailed, err)
	}

	var text string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			text += result.Alternatives[0].Transcript
		}
	}

	if text == "" {
		return entities.Transcript{}, fmt.Errorf("%w: no speech detected", repositories.ErrTranscriptionFailed)
	}

	g.logger.Info("Transcription completed",
		zap.String("clipID", clip.ID),
		zap.Int("chars", len(text)))

	return entities.Transcript{Text: text, SourceClipID: clip.ID}, nil
}

// audioEncodingFor maps the clip's MIME tag (or a configured override) to the
// Cloud Speech enum.
func audioEncodingFor(mimeType, override string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	key := override
	if key == "" {
		key = mimeType
	}
	switch key {
	case "WAV", "LINEAR16", "audio/wav":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC", "audio/flac":
		return speechpb.RecognitionConfig_FLAC, nil
	case "OGG_OPUS", "audio/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS", "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding: %s", key)
	}
}
