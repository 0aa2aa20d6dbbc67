// Package storage persists uploaded files on local disk: profile images
// with their thumbnail derivatives, and post media.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// thumbnailMaxDim bounds the longer side of generated thumbnails.
const thumbnailMaxDim = 128

// ErrUnsupportedType is returned for files outside the png/jpg/jpeg
// allow-list or bytes that do not decode as the claimed type.
var ErrUnsupportedType = errors.New("storage: unsupported image type")

// ErrNotFound is returned when a stored image does not exist.
var ErrNotFound = errors.New("storage: image not found")

// ErrPathEscape is returned when a requested name tries to leave the store
// directory.
var ErrPathEscape = errors.New("storage: path escapes store directory")

// ImageStore writes images under a single directory. Names handed back to
// the caller are safe to embed in URLs.
type ImageStore struct {
	dir string
}

// NewImageStore creates the directory if needed and returns the store.
func NewImageStore(dir string) (*ImageStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage: empty directory")
	}
	if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
		return nil, fmt.Errorf("storage: create dir: %w", errMkdir)
	}
	return &ImageStore{dir: dir}, nil
}

// SaveProfileImage stores the uploaded bytes plus a thumbnail derivative and
// returns both stored names. The original filename only contributes its
// sanitized base name; a random prefix guarantees uniqueness.
func (s *ImageStore) SaveProfileImage(filename string, data []byte) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg":
	default:
		return "", "", ErrUnsupportedType
	}

	img, format, errDecode := image.Decode(bytes.NewReader(data))
	if errDecode != nil {
		return "", "", ErrUnsupportedType
	}
	if format != "png" && format != "jpeg" {
		return "", "", ErrUnsupportedType
	}

	base := sanitizeFilename(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	prefix := uuid.New().String()
	name := prefix + "_" + base + ext
	thumbName := prefix + "_" + base + "_thumb" + ext

	if errWrite := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); errWrite != nil {
		return "", "", fmt.Errorf("storage: write image: %w", errWrite)
	}

	thumbBytes, errThumb := encodeThumbnail(img, format)
	if errThumb != nil {
		return "", "", errThumb
	}
	if errWrite := os.WriteFile(filepath.Join(s.dir, thumbName), thumbBytes, 0o644); errWrite != nil {
		return "", "", fmt.Errorf("storage: write thumbnail: %w", errWrite)
	}
	return name, thumbName, nil
}

// Path resolves a stored name to its on-disk path, rejecting anything that
// would escape the store directory.
func (s *ImageStore) Path(name string) (string, error) {
	return resolveStoredPath(s.dir, name)
}

func resolveStoredPath(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", ErrPathEscape
	}
	p := filepath.Join(dir, name)
	if _, errStat := os.Stat(p); errStat != nil {
		if os.IsNotExist(errStat) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("storage: stat: %w", errStat)
	}
	return p, nil
}

// encodeThumbnail scales the image so its longer side is at most
// thumbnailMaxDim and re-encodes it in the source format.
func encodeThumbnail(img image.Image, format string) ([]byte, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrUnsupportedType
	}

	tw, th := w, h
	if w >= h && w > thumbnailMaxDim {
		tw = thumbnailMaxDim
		th = h * thumbnailMaxDim / w
	} else if h > w && h > thumbnailMaxDim {
		th = thumbnailMaxDim
		tw = w * thumbnailMaxDim / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	var errEncode error
	if format == "png" {
		errEncode = png.Encode(&buf, dst)
	} else {
		errEncode = jpeg.Encode(&buf, dst, nil)
	}
	if errEncode != nil {
		return nil, fmt.Errorf("storage: encode thumbnail: %w", errEncode)
	}
	return buf.Bytes(), nil
}

// sanitizeFilename keeps letters, digits, dots, dashes and underscores.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '-' || ch == '_' || ch == '.':
			b.WriteRune(ch)
		}
	}
	out := b.String()
	if out == "" {
		out = "image"
	}
	return out
}
