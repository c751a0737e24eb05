package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
)

const (
	defaultAPIBase     = "https://api.spotify.com/v1"
	defaultAccountBase = "https://accounts.spotify.com"
	defaultTimeout     = 15 * time.Second
)

// Config carries the provider credentials and optional endpoint overrides.
type Config struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	AccountsURL  string
	Timeout      time.Duration
}

// Client talks to the Spotify Web API. It is a thin transport: it holds no
// tokens of its own and reports expired credentials as
// repositories.ErrUnauthorized so the session layer can refresh and retry.
type Client struct {
	config Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient validates the configuration and returns a ready transport.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.ClientID == "" {
		return nil, fmt.Errorf("spotify client id is required")
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBase
	}
	if config.AccountsURL == "" {
		config.AccountsURL = defaultAccountBase
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

// Refresh exchanges a refresh token for a fresh access token. Providers may
// rotate the refresh token; when the reply omits one, the caller keeps the
// token it already holds.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (repositories.TokenPair, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.config.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.AccountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return repositories.TokenPair{}, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.config.ClientSecret != "" {
		req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return repositories.TokenPair{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return repositories.TokenPair{}, fmt.Errorf("reading token response: %w", err)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return repositories.TokenPair{}, fmt.Errorf("decoding token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("token refresh rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("error", token.Error),
		)
		return repositories.TokenPair{}, fmt.Errorf("token refresh failed (%d): %s: %w", resp.StatusCode, token.Error, repositories.ErrUnauthorized)
	}
	if token.AccessToken == "" {
		return repositories.TokenPair{}, fmt.Errorf("token response missing access token")
	}

	pair := repositories.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

// Devices lists the playback devices visible to the account.
func (c *Client) Devices(ctx context.Context, accessToken string) ([]repositories.PlaybackDevice, error) {
	body, err := c.call(ctx, accessToken, http.MethodGet, "/me/player/devices", nil, nil)
	if err != nil {
		return nil, err
	}

	var reply devicesResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("decoding devices response: %w", err)
	}

	devices := make([]repositories.PlaybackDevice, 0, len(reply.Devices))
	for _, d := range reply.Devices {
		devices = append(devices, repositories.PlaybackDevice{
			ID:       d.ID,
			Name:     d.Name,
			Type:     d.Type,
			IsActive: d.IsActive,
		})
	}
	return devices, nil
}

// Play starts playback of the given URIs on a device. An empty uris slice
// resumes whatever context the device already holds, seeking to positionMs.
func (c *Client) Play(ctx context.Context, accessToken, deviceID string, uris []string, positionMs int) error {
	query := url.Values{}
	if deviceID != "" {
		query.Set("device_id", deviceID)
	}
	payload, err := json.Marshal(playRequest{URIs: uris, PositionMs: positionMs})
	if err != nil {
		return fmt.Errorf("encoding play request: %w", err)
	}
	_, err = c.call(ctx, accessToken, http.MethodPut, "/me/player/play", query, payload)
	return err
}

// Pause halts playback on the device.
func (c *Client) Pause(ctx context.Context, accessToken, deviceID string) error {
	return c.playerCommand(ctx, accessToken, http.MethodPut, "/me/player/pause", deviceID)
}

// Next skips to the following track.
func (c *Client) Next(ctx context.Context, accessToken, deviceID string) error {
	return c.playerCommand(ctx, accessToken, http.MethodPost, "/me/player/next", deviceID)
}

// Previous skips back to the preceding track.
func (c *Client) Previous(ctx context.Context, accessToken, deviceID string) error {
	return c.playerCommand(ctx, accessToken, http.MethodPost, "/me/player/previous", deviceID)
}

// Search looks up tracks by free-text query.
func (c *Client) Search(ctx context.Context, accessToken, query string, limit int) ([]entities.TrackDescriptor, error) {
	if limit <= 0 {
		limit = 1
	}
	values := url.Values{}
	values.Set("q", query)
	values.Set("type", "track")
	values.Set("limit", strconv.Itoa(limit))

	body, err := c.call(ctx, accessToken, http.MethodGet, "/search", values, nil)
	if err != nil {
		return nil, err
	}

	var reply searchResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	tracks := make([]entities.TrackDescriptor, 0, len(reply.Tracks.Items))
	for _, item := range reply.Tracks.Items {
		tracks = append(tracks, item.toDescriptor())
	}
	return tracks, nil
}

func (c *Client) playerCommand(ctx context.Context, accessToken, method, path, deviceID string) error {
	query := url.Values{}
	if deviceID != "" {
		query.Set("device_id", deviceID)
	}
	_, err := c.call(ctx, accessToken, method, path, query, nil)
	return err
}

// call performs one authenticated request against the Web API. A 401 reply
// maps to repositories.ErrUnauthorized; the retry decision lives with the
// caller, never here.
func (c *Client) call(ctx context.Context, accessToken, method, path string, query url.Values, payload []byte) ([]byte, error) {
	endpoint := c.config.APIBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s %s: %w", method, path, repositories.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, path, repositories.ErrNoDeviceAvailable)
	case resp.StatusCode >= 400:
		c.logger.Warn("spotify request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return body, nil
}
