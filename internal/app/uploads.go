package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"bookexchange/pkg/storage"
)

// Blob key prefixes per upload kind.
const (
	kindCover      = "covers"
	kindAvatar     = "avatars"
	kindQR         = "qr"
	kindScreenshot = "payments/screenshots"
)

// Upload is an image supplied with a request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (a *App) checkUpload(field string, up *Upload) error {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(up.Filename)))
	if _, ok := a.allowedExtensions[ext]; !ok {
		return invalid(field, fmt.Sprintf("%s: unsupported file type %q", field, ext))
	}
	if up.Size > a.maxUploadBytes {
		return invalid(field, fmt.Sprintf("%s: file exceeds %d bytes", field, a.maxUploadBytes))
	}
	return nil
}

// saveUpload validates and stores up, returning its blob key. A nil upload
// stores nothing and returns "".
func (a *App) saveUpload(ctx context.Context, kind, field string, up *Upload) (string, error) {
	if up == nil {
		return "", nil
	}
	if err := a.checkUpload(field, up); err != nil {
		return "", err
	}
	key := storage.NewKey(kind, up.Filename)
	// Size is re-checked while copying in case the declared size lied.
	body := io.LimitReader(up.Body, a.maxUploadBytes+1)
	counted := &countingReader{r: body}
	if err := a.blobs.Save(ctx, key, counted, up.Size, up.ContentType); err != nil {
		return "", fmt.Errorf("save %s: %w", field, err)
	}
	if counted.n > a.maxUploadBytes {
		a.deleteBlobs(ctx, key)
		return "", invalid(field, fmt.Sprintf("%s: file exceeds %d bytes", field, a.maxUploadBytes))
	}
	return key, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
