package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
)

const defaultAuddBaseURL = "https://api.audd.io/"

// AuddClient implements Fingerprinter against the Audd.io recognition API,
// requesting streaming-provider metadata so the playback session can act on
// the match directly.
type AuddClient struct {
	apiToken string
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
}

var _ repositories.Fingerprinter = (*AuddClient)(nil)

// auddResponse mirrors the provider reply. A no-match reply carries a null
// or empty result.
type auddResponse struct {
	Status string `json:"status"`
	Result *struct {
		Spotify *struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			URI        string `json:"uri"`
			DurationMs int    `json:"duration_ms"`
			Explicit   bool   `json:"explicit"`
			Artists    []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Name        string `json:"name"`
				ReleaseDate string `json:"release_date"`
				Images      []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
		} `json:"spotify"`
	} `json:"result"`
}

// NewAuddClient creates a fingerprint adapter.
func NewAuddClient(apiToken, baseURL string, logger *zap.Logger) (*AuddClient, error) {
	if apiToken == "" {
		return nil, fmt.Errorf("audd API token is required")
	}
	if baseURL == "" {
		baseURL = defaultAuddBaseURL
	}
	return &AuddClient{
		apiToken: apiToken,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}, nil
}

// Identify submits the sample and maps the provider match to a track
// descriptor. Returns ErrNoMatch when the provider cannot identify it.
func (a *AuddClient) Identify(ctx context.Context, clip entities.AudioClip) (entities.TrackDescriptor, error) {
	if clip.Empty() {
		return entities.TrackDescriptor{}, fmt.Errorf("%w: empty sample", repositories.ErrRecognitionFailed)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "sample.webm")
	if err != nil {
		return entities.TrackDescriptor{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return entities.TrackDescriptor{}, fmt.Errorf("failed to write sample: %w", err)
	}
	if err := writer.WriteField("return", "spotify"); err != nil {
		return entities.TrackDescriptor{}, fmt.Errorf("failed to write field: %w", err)
	}
	if err := writer.WriteField("api_token", a.apiToken); err != nil {
		return entities.TrackDescriptor{}, fmt.Errorf("failed to write field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return entities.TrackDescriptor{}, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, &buf)
	if err != nil {
		return entities.TrackDescriptor{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return entities.TrackDescriptor{}, fmt.Errorf("%w: %v", repositories.ErrRecognitionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return entities.TrackDescriptor{}, fmt.Errorf("%w: reading response: %v", repositories.ErrRecognitionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return entities.TrackDescriptor{}, fmt.Errorf("%w: status %d", repositories.ErrRecognitionFailed, resp.StatusCode)
	}

	var parsed auddResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return entities.TrackDescriptor{}, fmt.Errorf("%w: parsing response: %v", repositories.ErrRecognitionFailed, err)
	}

	if parsed.Result == nil || parsed.Result.Spotify == nil || parsed.Result.Spotify.URI == "" {
		a.logger.Info("Fingerprint sample unrecognized", zap.String("clipID", clip.ID))
		return entities.TrackDescriptor{}, repositories.ErrNoMatch
	}

	match := parsed.Result.Spotify
	track := entities.TrackDescriptor{
		ID:          match.ID,
		Title:       match.Name,
		DurationMs:  match.DurationMs,
		Explicit:    match.Explicit,
		ProviderURI: match.URI,
		Album: entities.TrackAlbum{
			Name:        match.Album.Name,
			ReleaseDate: match.Album.ReleaseDate,
		},
	}
	for _, artist := range match.Artists {
		track.Artists = append(track.Artists, artist.Name)
	}
	if len(match.Album.Images) > 0 {
		track.Album.ImageURL = match.Album.Images[0].URL
	}

	a.logger.Info("Fingerprint matched",
		zap.String("clipID", clip.ID),
		zap.String("title", track.Title))

	return track, nil
}
