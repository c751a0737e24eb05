package fingerprint

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
)

func sampleClip() entities.AudioClip {
	return entities.NewAudioClip([]byte("ten-second-sample"), 10*time.Second, "audio/webm")
}

func TestIdentifyMapsMatch(t *testing.T) {
	logger := zaptest.NewLogger(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart payload: %v", err)
		}
		if got := r.FormValue("return"); got != "spotify" {
			t.Errorf("return field = %q", got)
		}
		if got := r.FormValue("api_token"); got != "test-token" {
			t.Errorf("api_token field = %q", got)
		}
		w.Write([]byte(`{
			"status": "success",
			"result": {
				"spotify": {
					"id": "track-1",
					"name": "Waiting For You",
					"uri": "spotify:track:track-1",
					"duration_ms": 231000,
					"explicit": false,
					"artists": [{"name": "Mono"}, {"name": "Onionn"}],
					"album": {
						"name": "22",
						"release_date": "2022-08-20",
						"images": [{"url": "https://img.example/cover.jpg"}]
					}
				}
			}
		}`))
	}))
	defer server.Close()

	client, err := NewAuddClient("test-token", server.URL, logger)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	track, err := client.Identify(context.Background(), sampleClip())
	if err != nil {
		t.Fatalf("Identify() error: %v", err)
	}

	if track.Title != "Waiting For You" {
		t.Errorf("title = %q", track.Title)
	}
	if track.ProviderURI != "spotify:track:track-1" {
		t.Errorf("provider URI = %q", track.ProviderURI)
	}
	if len(track.Artists) != 2 || track.Artists[0] != "Mono" {
		t.Errorf("artists = %v", track.Artists)
	}
	if track.Album.ImageURL != "https://img.example/cover.jpg" {
		t.Errorf("album image = %q", track.Album.ImageURL)
	}
	if !track.Playable() {
		t.Error("expected track to be playable")
	}
}

func TestIdentifyNoMatch(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "null result", body: `{"status":"success","result":null}`},
		{name: "missing spotify", body: `{"status":"success","result":{}}`},
		{name: "missing uri", body: `{"status":"success","result":{"spotify":{"id":"x","name":"y"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewAuddClient("test-token", server.URL, logger)
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			_, err = client.Identify(context.Background(), sampleClip())
			if !errors.Is(err, repositories.ErrNoMatch) {
				t.Errorf("expected ErrNoMatch, got %v", err)
			}
		})
	}
}

func TestIdentifyProviderError(t *testing.T) {
	logger := zaptest.NewLogger(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewAuddClient("test-token", server.URL, logger)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = client.Identify(context.Background(), sampleClip())
	if !errors.Is(err, repositories.ErrRecognitionFailed) {
		t.Errorf("expected ErrRecognitionFailed, got %v", err)
	}
}
