package imagestore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ImageMeta describes a stored upload.
type ImageMeta struct {
	ID        string    `json:"id"`
	Format    string    `json:"format"`
	MIME      string    `json:"mime"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	SizeBytes int       `json:"size_bytes"`
	SHA256    string    `json:"sha256,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps uploaded images on disk with a JSON sidecar per image.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("image store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return types.NewError(types.CodeValidation, fmt.Sprintf("invalid image id: %q", id), nil)
	}
	return nil
}

// Save writes both the image file and metadata sidecar.
func (s *Store) Save(meta ImageMeta, data []byte) error {
	if err := s.validateID(meta.ID); err != nil {
		return err
	}
	if meta.Format == "" {
		return types.NewError(types.CodeValidation, "image format is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imgPath := filepath.Join(s.dir, meta.ID+"."+meta.Format)
	jsonPath := filepath.Join(s.dir, meta.ID+".json")

	if err := os.WriteFile(imgPath, data, 0o644); err != nil {
		return fmt.Errorf("image store: write image: %w", err)
	}

	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		s.removeImage(imgPath, meta.ID)
		return fmt.Errorf("image store: marshal meta: %w", err)
	}
	if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
		s.removeImage(imgPath, meta.ID)
		return fmt.Errorf("image store: write meta: %w", err)
	}
	return nil
}

func (s *Store) readMeta(id string) (ImageMeta, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return ImageMeta{}, types.NewError(types.CodeNotFound, "image not found: "+id, nil)
		}
		return ImageMeta{}, fmt.Errorf("image store: read meta: %w", err)
	}
	var meta ImageMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return ImageMeta{}, fmt.Errorf("image store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns all images, newest first.
func (s *Store) List() ([]ImageMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("image store: glob: %w", err)
	}
	metas := make([]ImageMeta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta ImageMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// ReadImage returns the raw bytes and metadata of an image.
func (s *Store) ReadImage(id string) ([]byte, ImageMeta, error) {
	if err := s.validateID(id); err != nil {
		return nil, ImageMeta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return nil, ImageMeta{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id+"."+meta.Format))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ImageMeta{}, types.NewError(types.CodeNotFound, "image data not found: "+id, nil)
		}
		return nil, ImageMeta{}, fmt.Errorf("image store: read image: %w", err)
	}
	return data, meta, nil
}

// Delete removes both the image and metadata files.
func (s *Store) Delete(id string) error {
	if err := s.validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}
	s.removeImage(filepath.Join(s.dir, id+"."+meta.Format), id)
	if err := os.Remove(filepath.Join(s.dir, id+".json")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("image store: remove meta: %w", err)
	}
	return nil
}

// Prune deletes images created before cutoff and returns how many were
// removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	metas, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range metas {
		if !m.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(m.ID); err != nil {
			slog.Warn("image prune failed", "id", m.ID, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *Store) removeImage(path, id string) {
	if err := os.Remove(path); err != nil {
		slog.Debug("image cleanup failed", "id", id, "path", path, "error", err)
	}
}
