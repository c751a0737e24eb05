package spotify

import "github.com/lumenlabs/lumen/domain/entities"

// device mirrors one entry of the Web API device list.
type device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

// devicesResponse is the reply of the devices endpoint.
type devicesResponse struct {
	Devices []device `json:"devices"`
}

// track mirrors the Web API track object fields we consume.
type track struct {
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
}

// searchResponse is the reply of the search endpoint.
type searchResponse struct {
	Tracks struct {
		Items []track `json:"items"`
	} `json:"tracks"`
}

// tokenResponse is the raw reply of the token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// playRequest is the body of a play call.
type playRequest struct {
	URIs       []string `json:"uris,omitempty"`
	PositionMs int      `json:"position_ms,omitempty"`
}

func (t track) toDescriptor() entities.TrackDescriptor {
	desc := entities.TrackDescriptor{
		ID:          t.ID,
		Title:       t.Name,
		DurationMs:  t.DurationMs,
		Explicit:    t.Explicit,
		ProviderURI: t.URI,
		Album: entities.TrackAlbum{
			Name:        t.Album.Name,
			ReleaseDate: t.Album.ReleaseDate,
		},
	}
	for _, artist := range t.Artists {
		desc.Artists = append(desc.Artists, artist.Name)
	}
	if len(t.Album.Images) > 0 {
		desc.Album.ImageURL = t.Album.Images[0].URL
	}
	return desc
}
