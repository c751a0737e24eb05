package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/joho/godotenv"

	"github.com/lumenlabs/lumen/domain/repositories"
)

const (
	accessTokenKey  = "SPOTIFY_ACCESS_TOKEN"
	refreshTokenKey = "SPOTIFY_REFRESH_TOKEN"
)

// FileTokenStore persists the music provider token pair as a dotenv file, so
// a restart picks up where the last refresh left off.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStore returns a store backed by the file at path. The file is
// created on first Save.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Load reads the persisted pair. A missing file yields an empty pair rather
// than an error: the operator seeds tokens via Save or the environment.
func (s *FileTokenStore) Load() (repositories.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := godotenv.Read(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return repositories.TokenPair{}, nil
		}
		return repositories.TokenPair{}, fmt.Errorf("reading token file %s: %w", s.path, err)
	}
	return repositories.TokenPair{
		AccessToken:  values[accessTokenKey],
		RefreshToken: values[refreshTokenKey],
	}, nil
}

// Save writes the pair, replacing the previous contents atomically from the
// reader's point of view.
func (s *FileTokenStore) Save(pair repositories.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := map[string]string{
		accessTokenKey:  pair.AccessToken,
		refreshTokenKey: pair.RefreshToken,
	}
	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("writing token file %s: %w", s.path, err)
	}
	return nil
}
