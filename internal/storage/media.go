package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Extensions accepted for post media uploads.
var (
	mediaImageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}
	mediaVideoExts = map[string]bool{".mp4": true, ".webm": true, ".ogg": true}
)

// MediaStore writes post media files under a single directory. Unlike
// profile images no derivative is generated; video bytes are stored as-is.
type MediaStore struct {
	dir string
}

// NewMediaStore creates the directory if needed and returns the store.
func NewMediaStore(dir string) (*MediaStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage: empty directory")
	}
	if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
		return nil, fmt.Errorf("storage: create dir: %w", errMkdir)
	}
	return &MediaStore{dir: dir}, nil
}

// SaveMedia stores the uploaded bytes under a unique name and returns the
// stored name plus the derived media kind ("image" or "video").
func (s *MediaStore) SaveMedia(filename string, data []byte) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	var mediaType string
	switch {
	case mediaImageExts[ext]:
		mediaType = "image"
	case mediaVideoExts[ext]:
		mediaType = "video"
	default:
		return "", "", ErrUnsupportedType
	}

	base := sanitizeFilename(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	name := uuid.New().String() + "_" + base + ext
	if errWrite := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); errWrite != nil {
		return "", "", fmt.Errorf("storage: write media: %w", errWrite)
	}
	return name, mediaType, nil
}

// Path resolves a stored name to its on-disk path, rejecting anything that
// would escape the store directory.
func (s *MediaStore) Path(name string) (string, error) {
	return resolveStoredPath(s.dir, name)
}
