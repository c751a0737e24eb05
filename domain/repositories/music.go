package repositories

import (
	"context"
	"errors"

	"github.com/lumenlabs/lumen/domain/entities"
)

// ErrUnauthorized is returned by transport calls that fail with a 401. The
// playback session reacts with its single-retry refresh protocol.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNoDeviceAvailable is user-facing: no playback device exists at all and
// the remedy is out of band (open the streaming app somewhere).
var ErrNoDeviceAvailable = errors.New("no playback device available")

// PlaybackDevice is one device known to the streaming service.
type PlaybackDevice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

// TokenPair is the credential set for the streaming transport. RefreshToken
// may be empty in a refresh response when the provider does not rotate it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// MusicTransport is the token-based streaming-service control API. Every
// method takes the caller's current access token; the session layer owns
// refresh and retry policy, the transport only reports ErrUnauthorized.
type MusicTransport interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)

	Devices(ctx context.Context, accessToken string) ([]PlaybackDevice, error)
	Play(ctx context.Context, accessToken, deviceID string, uris []string, positionMs int) error
	Pause(ctx context.Context, accessToken, deviceID string) error
	Next(ctx context.Context, accessToken, deviceID string) error
	Previous(ctx context.Context, accessToken, deviceID string) error
	Search(ctx context.Context, accessToken, query string, limit int) ([]entities.TrackDescriptor, error)
}
