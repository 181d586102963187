// Package bootstrap wires the store, cache and media collaborators shared by every entry point.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"devsnippet/internal/cache"
	"devsnippet/internal/config"
	"devsnippet/internal/database"
	"devsnippet/internal/media"
	"devsnippet/internal/middleware"
	"devsnippet/internal/repository"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs the relational schema policy on connect.
	ApplySchema bool
	// EnsureAdmin creates the configured administrator when ADMIN_EMAIL is set.
	EnsureAdmin bool
}

// Runtime holds connected collaborators. Close releases them.
type Runtime struct {
	Store *repository.Store
	Redis *redis.Client
	// Media is nil when object storage is not configured.
	Media media.Delegate
	// DB is the relational handle; nil for the document store.
	DB *gorm.DB

	closeStore func() error
}

// InitRuntime connects to the store selected by STORE_DRIVER, then Redis and media storage.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	store, db, closeStore, err := OpenStore(ctx, cfg, opts.ApplySchema)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Store: store, DB: db, closeStore: closeStore}

	// Every process that writes must reach the cache to invalidate it.
	// An unreachable server leaves the client nil.
	cache.InitRedis(cfg.RedisURL)
	rt.Redis = cache.GetClient()

	delegate, err := media.NewS3Delegate(cfg)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("media storage: %w", err)
	}
	if delegate != nil {
		rt.Media = delegate
	} else {
		middleware.Logger.Warn("media storage not configured, uploads are disabled")
	}

	if opts.EnsureAdmin {
		if _, _, err := EnsureAdmin(ctx, store.Users, AdminFromConfig(cfg)); err != nil && !errors.Is(err, ErrAdminNotConfigured) {
			_ = rt.Close()
			return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	return rt, nil
}

// OpenStore connects the repositories for cfg.StoreDriver and returns a closer for them.
func OpenStore(ctx context.Context, cfg *config.Config, applySchema bool) (*repository.Store, *gorm.DB, func() error, error) {
	if cfg.StoreDriver == config.StoreMongo {
		client, mdb, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		store, err := repository.NewMongoStore(ctx, mdb)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return store, nil, func() error { return client.Disconnect(context.Background()) }, nil
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: applySchema})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	return repository.NewGormStore(db), db, func() error { return database.Close(db) }, nil
}

// CloseStore releases only the store connection; the HTTP server owns Redis shutdown.
func (r *Runtime) CloseStore() error {
	if r == nil || r.closeStore == nil {
		return nil
	}
	err := r.closeStore()
	r.closeStore = nil
	return err
}

// Close releases the store and the shared Redis client.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if err := r.CloseStore(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if r.Redis != nil {
		if err := cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		r.Redis = nil
	}
	if err := errors.Join(errs...); err != nil {
		middleware.Logger.Warn("runtime close", slog.String("error", err.Error()))
		return err
	}
	return nil
}
