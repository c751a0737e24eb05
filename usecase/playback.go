package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
)

// ErrAuthFailed reports that a playback call was rejected even after a token
// refresh. The stored refresh token is likely revoked.
var ErrAuthFailed = errors.New("playback authorization failed")

// ErrNoTrack reports a play or resume with nothing to play.
var ErrNoTrack = errors.New("no track selected")

// TokenStore persists the provider token pair across restarts.
type TokenStore interface {
	Load() (repositories.TokenPair, error)
	Save(repositories.TokenPair) error
}

// PlaybackSession owns the music provider session: the token pair, the
// resolved output device and what is currently playing. All provider calls go
// through a single-retry authorization protocol: on a credential rejection
// the session refreshes its tokens once and replays the call; a second
// rejection surfaces as ErrAuthFailed.
type PlaybackSession struct {
	transport repositories.MusicTransport
	store     TokenStore
	logger    *zap.Logger

	mu        sync.Mutex
	tokens    repositories.TokenPair
	pinned    string
	track     entities.TrackDescriptor
	isPlaying bool
	position  int
	playedAt  time.Time

	refreshMu sync.Mutex
}

// NewPlaybackSession loads persisted tokens from the store and returns a
// ready session.
func NewPlaybackSession(transport repositories.MusicTransport, store TokenStore, logger *zap.Logger) (*PlaybackSession, error) {
	tokens, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading playback tokens: %w", err)
	}
	return &PlaybackSession{
		transport: transport,
		store:     store,
		logger:    logger,
		tokens:    tokens,
	}, nil
}

// PinDevice fixes the output device. An empty id returns to automatic
// selection.
func (p *PlaybackSession) PinDevice(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pinned = id
}

// CurrentTrack returns the remembered track and whether it is playing.
func (p *PlaybackSession) CurrentTrack() (entities.TrackDescriptor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track, p.isPlaying
}

// SetTrack remembers a track without starting playback.
func (p *PlaybackSession) SetTrack(track entities.TrackDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.track = track
	p.isPlaying = false
	p.position = 0
}

// PlayTrack starts track from the beginning on the session's device.
func (p *PlaybackSession) PlayTrack(ctx context.Context, track entities.TrackDescriptor) error {
	if !track.Playable() {
		return fmt.Errorf("%w: track has no provider uri", ErrNoTrack)
	}
	return p.startAt(ctx, track, 0)
}

// Resume continues the remembered track from where Pause left it.
func (p *PlaybackSession) Resume(ctx context.Context) error {
	p.mu.Lock()
	track := p.track
	position := p.position
	p.mu.Unlock()
	if !track.Playable() {
		return ErrNoTrack
	}
	return p.startAt(ctx, track, position)
}

func (p *PlaybackSession) startAt(ctx context.Context, track entities.TrackDescriptor, positionMs int) error {
	err := p.withAuth(ctx, func(token string) error {
		deviceID, err := p.resolveDevice(ctx, token)
		if err != nil {
			return err
		}
		return p.transport.Play(ctx, token, deviceID, []string{track.ProviderURI}, positionMs)
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.track = track
	p.isPlaying = true
	p.position = positionMs
	p.playedAt = time.Now()
	p.mu.Unlock()

	p.logger.Info("playback started",
		zap.String("track", track.Title),
		zap.Int("position_ms", positionMs),
	)
	return nil
}

// Pause halts playback and remembers the playhead so Resume can continue.
func (p *PlaybackSession) Pause(ctx context.Context) error {
	err := p.withAuth(ctx, func(token string) error {
		deviceID, err := p.resolveDevice(ctx, token)
		if err != nil {
			return err
		}
		return p.transport.Pause(ctx, token, deviceID)
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.isPlaying {
		p.position += int(time.Since(p.playedAt) / time.Millisecond)
		p.isPlaying = false
	}
	p.mu.Unlock()
	return nil
}

// Next skips forward. The remembered playhead restarts at zero.
func (p *PlaybackSession) Next(ctx context.Context) error {
	return p.skip(ctx, p.transport.Next)
}

// Previous skips back. The remembered playhead restarts at zero.
func (p *PlaybackSession) Previous(ctx context.Context) error {
	return p.skip(ctx, p.transport.Previous)
}

func (p *PlaybackSession) skip(ctx context.Context, op func(context.Context, string, string) error) error {
	err := p.withAuth(ctx, func(token string) error {
		deviceID, err := p.resolveDevice(ctx, token)
		if err != nil {
			return err
		}
		return op(ctx, token, deviceID)
	})
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.position = 0
	p.playedAt = time.Now()
	p.mu.Unlock()
	return nil
}

// Devices lists the playback devices visible to the session.
func (p *PlaybackSession) Devices(ctx context.Context) ([]repositories.PlaybackDevice, error) {
	var devices []repositories.PlaybackDevice
	err := p.withAuth(ctx, func(token string) error {
		var err error
		devices, err = p.transport.Devices(ctx, token)
		return err
	})
	return devices, err
}

// Search queries the provider catalogue for tracks.
func (p *PlaybackSession) Search(ctx context.Context, query string, limit int) ([]entities.TrackDescriptor, error) {
	var tracks []entities.TrackDescriptor
	err := p.withAuth(ctx, func(token string) error {
		var err error
		tracks, err = p.transport.Search(ctx, token, query, limit)
		return err
	})
	return tracks, err
}

// resolveDevice picks the output device: the pinned one if set, otherwise the
// provider's active device, otherwise the first listed.
func (p *PlaybackSession) resolveDevice(ctx context.Context, token string) (string, error) {
	p.mu.Lock()
	pinned := p.pinned
	p.mu.Unlock()
	if pinned != "" {
		return pinned, nil
	}

	devices, err := p.transport.Devices(ctx, token)
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.IsActive {
			return d.ID, nil
		}
	}
	if len(devices) > 0 {
		return devices[0].ID, nil
	}
	return "", repositories.ErrNoDeviceAvailable
}

// withAuth runs op with the current access token, refreshing and retrying
// exactly once on a credential rejection. With no cached access token the
// refresh happens up front so the first provider call already carries a
// usable bearer.
func (p *PlaybackSession) withAuth(ctx context.Context, op func(token string) error) error {
	p.mu.Lock()
	token := p.tokens.AccessToken
	p.mu.Unlock()

	if token == "" {
		fresh, err := p.refresh(ctx, "")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		token = fresh
	}

	err := op(token)
	if !errors.Is(err, repositories.ErrUnauthorized) {
		return err
	}

	fresh, refreshErr := p.refresh(ctx, token)
	if refreshErr != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, refreshErr)
	}

	err = op(fresh)
	if errors.Is(err, repositories.ErrUnauthorized) {
		return fmt.Errorf("%w: rejected after refresh", ErrAuthFailed)
	}
	return err
}

// refresh exchanges the refresh token for a new pair. Concurrent callers that
// raced on the same stale token coalesce into a single exchange: whoever
// arrives second finds the token already rotated and reuses it.
func (p *PlaybackSession) refresh(ctx context.Context, stale string) (string, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	p.mu.Lock()
	current := p.tokens
	p.mu.Unlock()
	if current.AccessToken != stale {
		return current.AccessToken, nil
	}

	fresh, err := p.transport.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.tokens = fresh
	p.mu.Unlock()

	if err := p.store.Save(fresh); err != nil {
		// Playback continues on the in-memory pair; persistence catches up
		// on the next successful save.
		p.logger.Warn("persisting refreshed tokens failed", zap.Error(err))
	}
	p.logger.Info("provider tokens refreshed")
	return fresh.AccessToken, nil
}
