package api

import (
	"time"

	"github.com/lumenlabs/lumen/domain/entities"
)

// DeviceAuthRequest represents the request payload for device authentication
type DeviceAuthRequest struct {
	SerialNumber string `json:"serial_number" validate:"required"`
	SecretKey    string `json:"secret_key" validate:"required"`
}

// DeviceAuthResponse represents the response payload for device authentication
type DeviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

// CommandResponse carries the outcome of a capability invocation.
type CommandResponse struct {
	Action string `json:"action"`
	Result string `json:"result"`
}

// PlayRequest selects what to play: a catalogue query or nothing, which
// resumes the remembered track.
type PlayRequest struct {
	Query string `json:"query,omitempty"`
}

// TrackResponse is the wire form of a track descriptor.
type TrackResponse struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Artists  []string `json:"artists,omitempty"`
	Album    string   `json:"album,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Playing  bool     `json:"playing"`
}

// DeviceListResponse lists the playback devices visible to the session.
type DeviceListResponse struct {
	Devices []PlaybackDeviceResponse `json:"devices"`
}

// PlaybackDeviceResponse is one playback output.
type PlaybackDeviceResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

// PinDeviceRequest pins playback to one output.
type PinDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func trackResponse(track entities.TrackDescriptor, playing bool) TrackResponse {
	return TrackResponse{
		ID:       track.ID,
		Title:    track.Title,
		Artists:  track.Artists,
		Album:    track.Album.Name,
		ImageURL: track.Album.ImageURL,
		Playing:  playing,
	}
}
