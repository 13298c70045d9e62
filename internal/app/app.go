package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"bookexchange/pkg/events"
	"bookexchange/pkg/storage"
	"bookexchange/pkg/store"
)

// Config holds the collaborators and limits for the core application.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	Blobs    storage.BlobStore
	// Events defaults to a no-op publisher.
	Events events.Publisher
	Logger *slog.Logger

	MaxUploadBytes    int64
	AllowedExtensions []string
}

// App is the core application service: accounts, catalog, swaps, payments and reviews.
type App struct {
	store    store.Store
	sessions store.SessionStore
	blobs    storage.BlobStore
	events   events.Publisher
	logger   *slog.Logger
	validate *validator.Validate

	maxUploadBytes    int64
	allowedExtensions map[string]struct{}

	now func() time.Time
}

// New constructs the application from already-opened collaborators.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("app: store required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("app: session store required")
	}
	if cfg.Blobs == nil {
		return nil, errors.New("app: blob store required")
	}
	if cfg.Events == nil {
		cfg.Events = events.NopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimSpace(ext))] = struct{}{}
	}
	return &App{
		store:             cfg.Store,
		sessions:          cfg.Sessions,
		blobs:             cfg.Blobs,
		events:            cfg.Events,
		logger:            cfg.Logger,
		validate:          validator.New(),
		maxUploadBytes:    cfg.MaxUploadBytes,
		allowedExtensions: allowed,
		now:               func() time.Time { return time.Now().UTC() },
	}, nil
}

// BlobURL returns a URL for a stored blob, or "" when key is empty or the
// store cannot produce one.
func (a *App) BlobURL(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	url, err := a.blobs.URL(ctx, key)
	if err != nil {
		a.logger.Warn("blob url failed", "key", key, "err", err)
		return ""
	}
	return url
}

// publish sends ev after the state change committed. Failures are logged and
// never undo the change.
func (a *App) publish(ctx context.Context, ev events.Event) {
	if err := a.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		a.logger.Warn("publish event failed", "type", ev.Type, "subject", ev.Subject, "err", err)
	}
}

// deleteBlobs removes blobs best-effort.
func (a *App) deleteBlobs(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := a.blobs.Delete(ctx, key); err != nil {
			a.logger.Warn("delete blob failed", "key", key, "err", err)
		}
	}
}
