package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that would escape the store root.
var ErrInvalidKey = errors.New("invalid blob key")

// BlobStore keeps uploaded images (covers, avatars, QR codes, payment
// screenshots) and hands out URLs for them.
type BlobStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// NewKey builds a fresh key under kind, keeping the lowercased extension of
// filename: "covers/<uuid>.jpg".
func NewKey(kind, filename string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	return strings.Trim(kind, "/") + "/" + uuid.NewString() + ext
}

// cleanKey normalizes key and rejects absolute or parent-relative paths.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
