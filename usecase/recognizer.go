package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
)

// MusicRecognizer identifies ambient music from a short capture and hands the
// match to the playback session. A miss is not an error of the pipeline: the
// session keeps whatever track it already remembered.
type MusicRecognizer struct {
	fingerprinter repositories.Fingerprinter
	session       *PlaybackSession
	logger        *zap.Logger
}

// NewMusicRecognizer wires a fingerprint backend to the playback session.
func NewMusicRecognizer(fingerprinter repositories.Fingerprinter, session *PlaybackSession, logger *zap.Logger) *MusicRecognizer {
	return &MusicRecognizer{
		fingerprinter: fingerprinter,
		session:       session,
		logger:        logger,
	}
}

// Recognize fingerprints clip. On a match the track is remembered on the
// session without starting playback; the caller decides when to play. A miss
// returns repositories.ErrNoMatch and leaves the session untouched.
func (m *MusicRecognizer) Recognize(ctx context.Context, clip entities.AudioClip) (entities.TrackDescriptor, error) {
	if clip.Empty() {
		return entities.TrackDescriptor{}, fmt.Errorf("%w: empty sample", repositories.ErrRecognitionFailed)
	}

	track, err := m.fingerprinter.Identify(ctx, clip)
	if err != nil {
		if errors.Is(err, repositories.ErrNoMatch) {
			m.logger.Info("no music match", zap.String("clip_id", clip.ID))
		} else {
			m.logger.Error("music recognition failed", zap.String("clip_id", clip.ID), zap.Error(err))
		}
		return entities.TrackDescriptor{}, err
	}

	m.session.SetTrack(track)
	m.logger.Info("music recognized",
		zap.String("clip_id", clip.ID),
		zap.String("track", track.Title),
	)
	return track, nil
}
