package repositories

import "context"

// TextToSpeech abstracts speech synthesis. The returned channel streams audio
// frames until synthesis completes or ctx is cancelled, then closes.
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error)
}
