package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/lumenlabs/lumen/domain/repositories"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		ClientID:    "client-id",
		APIBaseURL:  server.URL,
		AccountsURL: server.URL,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, server
}

func TestRefresh(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/token" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("refresh_token = %q, want old-refresh", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"expires_in":   3600,
		})
	}))

	pair, err := client.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if pair.AccessToken != "new-access" {
		t.Errorf("AccessToken = %q, want new-access", pair.AccessToken)
	}
	// Provider did not rotate the refresh token, so the old one survives.
	if pair.RefreshToken != "old-refresh" {
		t.Errorf("RefreshToken = %q, want old-refresh", pair.RefreshToken)
	}
}

func TestRefreshRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	}))

	_, err := client.Refresh(context.Background(), "revoked")
	if !errors.Is(err, repositories.ErrUnauthorized) {
		t.Fatalf("Refresh() error = %v, want ErrUnauthorized", err)
	}
}

func TestDevices(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"devices": []map[string]any{
				{"id": "d1", "name": "Kitchen", "type": "Speaker", "is_active": false},
				{"id": "d2", "name": "Phone", "type": "Smartphone", "is_active": true},
			},
		})
	}))

	devices, err := client.Devices(context.Background(), "access")
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	if !devices[1].IsActive || devices[1].ID != "d2" {
		t.Errorf("devices[1] = %+v, want active d2", devices[1])
	}
}

func TestPlaySendsURIsAndPosition(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/me/player/play" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("device_id"); got != "d1" {
			t.Errorf("device_id = %q, want d1", got)
		}
		var body playRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if len(body.URIs) != 1 || body.URIs[0] != "spotify:track:abc" {
			t.Errorf("uris = %v", body.URIs)
		}
		if body.PositionMs != 4200 {
			t.Errorf("position_ms = %d, want 4200", body.PositionMs)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.Play(context.Background(), "access", "d1", []string{"spotify:track:abc"}, 4200)
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
}

func TestCallStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, repositories.ErrUnauthorized},
		{"no device", http.StatusNotFound, repositories.ErrNoDeviceAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			err := client.Pause(context.Background(), "stale", "d1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Pause() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("type"); got != "track" {
			t.Errorf("type = %q, want track", got)
		}
		if got := q.Get("q"); got != "bohemian rhapsody" {
			t.Errorf("q = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tracks": map[string]any{
				"items": []map[string]any{{
					"id":          "t1",
					"name":        "Bohemian Rhapsody",
					"uri":         "spotify:track:t1",
					"duration_ms": 354000,
					"artists":     []map[string]any{{"name": "Queen"}},
					"album": map[string]any{
						"name":         "A Night at the Opera",
						"release_date": "1975-11-21",
						"images":       []map[string]any{{"url": "https://img.example/cover.jpg"}},
					},
				}},
			},
		})
	}))

	tracks, err := client.Search(context.Background(), "access", "bohemian rhapsody", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
	track := tracks[0]
	if track.Title != "Bohemian Rhapsody" || track.ProviderURI != "spotify:track:t1" {
		t.Errorf("track = %+v", track)
	}
	if len(track.Artists) != 1 || track.Artists[0] != "Queen" {
		t.Errorf("artists = %v", track.Artists)
	}
	if track.Album.ImageURL != "https://img.example/cover.jpg" {
		t.Errorf("album image = %q", track.Album.ImageURL)
	}
}
