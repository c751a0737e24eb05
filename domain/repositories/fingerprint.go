package repositories

import (
	"context"
	"errors"

	"github.com/lumenlabs/lumen/domain/entities"
)

// ErrNoMatch is the non-fatal "unrecognized" outcome: the provider answered
// but could not identify the sample.
var ErrNoMatch = errors.New("no matching track")

// ErrRecognitionFailed marks a provider-side failure.
var ErrRecognitionFailed = errors.New("recognition failed")

// Fingerprinter abstracts the music fingerprinting collaborator.
type Fingerprinter interface {
	// Identify submits a fixed-length sample and returns the matched track.
	// Returns ErrNoMatch when the provider finds nothing.
	Identify(ctx context.Context, clip entities.AudioClip) (entities.TrackDescriptor, error)
}
