package repositories

import (
	"context"
	"errors"

	"github.com/lumenlabs/lumen/domain/entities"
)

// ErrTranscriptionFailed marks a remote speech-to-text failure. Pipeline
// policy turns it into a spoken fallback, never a crash.
var ErrTranscriptionFailed = errors.New("transcription failed")

// SpeechToText abstracts speech recognition services.
type SpeechToText interface {
	// Transcribe converts a finalized clip to text. One in-flight call per
	// clip; concurrent calls for different clips are independent.
	Transcribe(ctx context.Context, clip entities.AudioClip) (entities.Transcript, error)
}

// AudioConfig represents audio configuration for speech recognition.
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}
