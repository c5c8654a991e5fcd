// Package app builds the service components from configuration. Both
// binaries share it so the API and the CLI resolve backends the same way.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Anilcodes01/proto-book/internal/config"
	"github.com/Anilcodes01/proto-book/internal/pipeline"
	"github.com/Anilcodes01/proto-book/internal/render"
	"github.com/Anilcodes01/proto-book/internal/storage"
	"github.com/Anilcodes01/proto-book/internal/store"
	"github.com/Anilcodes01/proto-book/internal/templates"
)

// RecordStore is a book store that can be health-checked and closed.
type RecordStore interface {
	store.BookStore
	Ping(ctx context.Context) error
	Close() error
}

// ArtifactStore is an artifact backend that can be health-checked and closed.
type ArtifactStore interface {
	pipeline.ArtifactStore
	Ping(ctx context.Context) error
	Close() error
}

func OpenRecordStore(ctx context.Context, cfg config.DatabaseConfig) (RecordStore, error) {
	switch cfg.Backend {
	case config.DatabaseBackendMemory:
		return store.NewMemoryBookStore(), nil
	case config.DatabaseBackendPostgres:
		s, err := store.NewPostgresBookStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DatabaseBackendRedis:
		s, err := store.NewRedisBookStore(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database backend: %s", cfg.Backend)
	}
}

// OpenArtifactStore connects the configured backend. With ensureBucket set,
// a missing MinIO bucket is created.
func OpenArtifactStore(ctx context.Context, cfg config.StorageConfig, ensureBucket bool) (ArtifactStore, error) {
	switch cfg.Backend {
	case config.StorageBackendMinIO:
		client, err := storage.NewClient(storage.Config{
			Endpoint:   cfg.Endpoint,
			Access:     cfg.AccessKey,
			Secret:     cfg.SecretKey,
			Bucket:     cfg.Bucket,
			UseSSL:     cfg.UseSSL,
			PublicHost: cfg.PublicHost,
		})
		if err != nil {
			return nil, err
		}
		if ensureBucket {
			if err := client.EnsureBucket(ctx); err != nil {
				return nil, err
			}
		}
		return client, nil
	case config.StorageBackendGCS:
		client, err := storage.NewGCSClient(ctx, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// NewLocator returns a fresh locator. Share one instance between the renderer
// and health checks so a bundled browser is resolved only once.
func NewLocator(cfg config.RendererConfig) render.Locator {
	if cfg.Mode == config.RendererModeHosted {
		return render.NewBundledLocator(cfg.DownloadDir)
	}
	return render.LocalLocator{Path: cfg.BrowserPath}
}

func NewRenderer(cfg config.RendererConfig, locator render.Locator, logger zerolog.Logger) *render.Renderer {
	return render.New(
		locator,
		render.RodLauncher{NoSandbox: cfg.NoSandbox},
		render.Options{SettleTimeout: cfg.SettleTimeout, MinPDFBytes: cfg.MinPDFBytes},
		logger,
	)
}

// NewTemplateCache serves templates from cfg.Dir when set, falling back to
// the built-in styles for names the directory does not provide.
func NewTemplateCache(cfg config.TemplatesConfig, logger zerolog.Logger) (*templates.Cache, error) {
	if cfg.Dir == "" {
		return templates.NewCache(templates.EmbeddedSource{}, logger), nil
	}
	dir, err := templates.NewDirSource(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return templates.NewCache(templates.FallbackSource{dir, templates.EmbeddedSource{}}, logger), nil
}
