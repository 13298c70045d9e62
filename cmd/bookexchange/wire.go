package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	gormlogger "gorm.io/gorm/logger"

	"bookexchange/internal/app"
	"bookexchange/internal/config"
	"bookexchange/internal/ratelimit"
	"bookexchange/internal/util"
	"bookexchange/pkg/events"
	"bookexchange/pkg/storage"
	"bookexchange/pkg/store"
)

const (
	defaultSignupPerMinute = 5
	defaultLoginPerMinute  = 10
)

// deps is everything the commands need, opened from config.
type deps struct {
	cfg      config.FileConfig
	logger   *slog.Logger
	store    *store.GormStore
	redis    *redis.Client
	app      *app.App
	events   events.Publisher
	mediaDir string
}

func loadConfig() (config.FileConfig, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, util.InitLogger(cfg.LogLevel, cfg.LogFormat), nil
}

func openDeps(ctx context.Context) (*deps, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	gormLevel := gormlogger.Warn
	if strings.EqualFold(cfg.LogLevel, "debug") {
		gormLevel = gormlogger.Info
	}
	d.store, err = store.NewGormStore(cfg.DatabaseURL, store.WithLogLevel(gormLevel))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		d.redis = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := d.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	sessions, err := d.sessionStore()
	if err != nil {
		return nil, err
	}
	blobs, err := d.blobStore(ctx)
	if err != nil {
		return nil, err
	}
	d.events, err = d.publisher()
	if err != nil {
		return nil, err
	}
	d.app, err = app.New(app.Config{
		Store:             d.store,
		Sessions:          sessions,
		Blobs:             blobs,
		Events:            d.events,
		Logger:            logger,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		AllowedExtensions: cfg.AllowedExtensions,
	})
	if err != nil {
		return nil, err
	}
	ok = true
	return d, nil
}

func (d *deps) sessionStore() (store.SessionStore, error) {
	ttl, err := config.ParseSessionTTL(d.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	if d.cfg.SessionBackend == "redis" {
		return store.NewRedisSessionStore(d.redis, ttl), nil
	}
	leeway, err := config.ParseJWTLeeway(d.cfg.JWTLeeway)
	if err != nil {
		return nil, err
	}
	var revoker store.TokenRevoker
	if d.redis != nil {
		revoker = store.NewRedisTokenRevoker(d.redis)
	} else {
		d.logger.Warn("redis not configured; JWT revocations are kept in memory")
		revoker = store.NewMemoryTokenRevoker()
	}
	return store.NewJWTSessionStore(d.cfg.JWTSecret, ttl, revoker, store.JWTOptions{
		Issuer:   d.cfg.JWTIssuer,
		Audience: d.cfg.JWTAudience,
		Leeway:   leeway,
	})
}

func (d *deps) blobStore(ctx context.Context) (storage.BlobStore, error) {
	if d.cfg.StorageBackend == "minio" {
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  d.cfg.MinioEndpoint,
			AccessKey: d.cfg.MinioAccessKey,
			SecretKey: d.cfg.MinioSecretKey,
			Bucket:    d.cfg.MinioBucket,
			UseSSL:    d.cfg.MinioUseSSL,
		})
	}
	d.mediaDir = filepath.Join(d.cfg.DataDir, "media")
	return storage.NewFileStore(d.mediaDir, "/media")
}

func (d *deps) publisher() (events.Publisher, error) {
	var pubs events.Fanout
	if d.cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(events.AMQPConfig{URL: d.cfg.AMQPURL, Exchange: d.cfg.AMQPExchange})
		if err != nil {
			return nil, fmt.Errorf("init amqp publisher: %w", err)
		}
		pubs = append(pubs, p)
	}
	if d.cfg.EventStream != "" {
		p, err := events.NewRedisStreamPublisher(d.redis, events.RedisStreamConfig{Stream: d.cfg.EventStream})
		if err != nil {
			_ = pubs.Close()
			return nil, fmt.Errorf("init event stream: %w", err)
		}
		pubs = append(pubs, p)
	}
	switch len(pubs) {
	case 0:
		return events.NopPublisher{}, nil
	case 1:
		return pubs[0], nil
	default:
		return pubs, nil
	}
}

// limiters returns the signup and login limiters, shared through Redis when
// it is configured.
func (d *deps) limiters() (ratelimit.Limiter, ratelimit.Limiter, error) {
	signup := d.cfg.SignupRateLimitPerMinute
	if signup <= 0 {
		signup = defaultSignupPerMinute
	}
	login := d.cfg.LoginRateLimitPerMinute
	if login <= 0 {
		login = defaultLoginPerMinute
	}
	newLimiter := func(name string, limit int) (ratelimit.Limiter, error) {
		if d.redis != nil {
			return ratelimit.NewRedisFixedWindowLimiter(d.redis, "bookex:ratelimit:"+name, limit, time.Minute)
		}
		return ratelimit.NewMemoryFixedWindowLimiter(limit, time.Minute)
	}
	signupLimiter, err := newLimiter("signup", signup)
	if err != nil {
		return nil, nil, fmt.Errorf("init signup limiter: %w", err)
	}
	loginLimiter, err := newLimiter("login", login)
	if err != nil {
		return nil, nil, fmt.Errorf("init login limiter: %w", err)
	}
	return signupLimiter, loginLimiter, nil
}

// Close releases everything opened by openDeps.
func (d *deps) Close() {
	var errs []error
	if d.events != nil {
		errs = append(errs, d.events.Close())
	}
	if d.redis != nil {
		errs = append(errs, d.redis.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	if err := errors.Join(errs...); err != nil && d.logger != nil {
		d.logger.Warn("shutdown cleanup failed", "err", err)
	}
}
