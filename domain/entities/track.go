package entities

// TrackAlbum is the album metadata attached to a track.
type TrackAlbum struct {
	Name        string `json:"name"`
	ImageURL    string `json:"image_url"`
	ReleaseDate string `json:"release_date"`
}

// TrackDescriptor is an immutable description of one recognized track,
// produced by the music recognizer and held by the playback session.
type TrackDescriptor struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Artists     []string   `json:"artists"`
	Album       TrackAlbum `json:"album"`
	DurationMs  int        `json:"duration_ms"`
	Explicit    bool       `json:"explicit"`
	ProviderURI string     `json:"provider_uri"`
}

// Playable reports whether the track can be handed to the streaming
// transport. A descriptor without a provider URI cannot be played.
func (t TrackDescriptor) Playable() bool {
	return t.ProviderURI != ""
}
