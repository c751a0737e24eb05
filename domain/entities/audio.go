package entities

import (
	"time"

	"github.com/google/uuid"
)

// AudioClip is a finalized recording. The byte buffer is immutable once the
// clip exists; it lives for a single pipeline run and is discarded after its
// one consumer (transcription or fingerprinting) is done with it.
type AudioClip struct {
	ID       string
	Data     []byte
	Duration time.Duration
	MIMEType string
}

// NewAudioClip finalizes a buffer into a clip.
func NewAudioClip(data []byte, duration time.Duration, mimeType string) AudioClip {
	return AudioClip{
		ID:       uuid.NewString(),
		Data:     data,
		Duration: duration,
		MIMEType: mimeType,
	}
}

// Empty reports whether the clip carries no audio.
func (c AudioClip) Empty() bool {
	return len(c.Data) == 0
}

// Transcript is the text form of one clip. Single consumer: the classifier.
type Transcript struct {
	Text         string
	SourceClipID string
}
