package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrCorrupt marks a cache entry whose content could not be decoded and was treated as empty.
	ErrCorrupt = errors.New("cache: corrupt entry")
	// ErrInvalidKey rejects keys that would escape the cache directory.
	ErrInvalidKey = errors.New("cache: invalid key")
)

// CorruptError reports which entry was recovered as empty.
type CorruptError struct {
	Key string
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("cache entry %s recovered as empty: %v", e.Key, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrCorrupt.
func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

// Store is a filesystem-backed key/blob store.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// NewStore returns a Store rooted at dir. The directory is created lazily on Save.
func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{dir: dir, logger: logger.With().Str("component", "cache").Logger()}
}

// Dir returns the cache root.
func (s *Store) Dir() string {
	return s.dir
}

// Load returns the blob stored under key, or nil when it is absent or unreadable.
func (s *Store) Load(key string) []byte {
	path, err := s.path(key)
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed; treating as empty")
		}
		return nil
	}
	return data
}

// Save writes data under key, replacing the previous content atomically.
func (s *Store) Save(key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache entry %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache entry %s: %w", key, err)
	}
	return nil
}

// LastModified reports the modification time of key, if it exists.
func (s *Store) LastModified(key string) (time.Time, bool) {
	path, err := s.path(key)
	if err != nil {
		return time.Time{}, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime().UTC(), true
}

func (s *Store) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key), nil
}
