// Package app assembles the service: configuration in, wired components
// out.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/newsloom/newsloom/internal/cache"
	"github.com/newsloom/newsloom/internal/config"
	"github.com/newsloom/newsloom/internal/crawler"
	"github.com/newsloom/newsloom/internal/ingest"
	"github.com/newsloom/newsloom/internal/logging"
	"github.com/newsloom/newsloom/internal/query"
	"github.com/newsloom/newsloom/internal/search"
	"github.com/newsloom/newsloom/internal/store"
)

// App holds every long-lived component of the service.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Pool    *pgxpool.Pool
	Cache   cache.Cache
	Index   search.Index
	Browser crawler.Browser
	Crawler *crawler.Crawler
	Ingest  *ingest.Service
	Query   *query.Service

	redis *cache.Redis
}

// New builds the full component graph. On error, everything already
// opened is torn down again.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	if cfg.DB.Migrate {
		if err := store.Migrate(cfg.DB.DSN); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		a.Logger.Info("migrations applied")
	}

	pool, err := store.Connect(ctx, store.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return err
	}
	a.Pool = pool

	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		a.redis = redisCache
		a.Cache = redisCache
		a.Logger.Info("cache backend ready", zap.String("addr", cfg.Redis.Addr))
	} else {
		a.Cache = cache.NewMemory()
		a.Logger.Info("using in-memory cache")
	}

	index, err := search.NewBleve(cfg.Search.Path)
	if err != nil {
		return err
	}
	a.Index = index

	browser, err := crawler.NewChromeBrowser(cfg.Crawler.UserAgent, cfg.Crawler.NavTimeout)
	if err != nil {
		return err
	}
	a.Browser = browser
	a.Crawler = crawler.New(browser, crawler.Config{
		StartURL:           cfg.Crawler.StartURL,
		SettleInterval:     cfg.Crawler.SettleInterval,
		SettlePolls:        cfg.Crawler.SettlePolls,
		MaxPages:           cfg.Crawler.MaxPages,
		CommentConcurrency: cfg.Crawler.CommentConcurrency,
		DomainQPS:          cfg.Crawler.DomainQPS,
	}, a.Logger)

	users := store.NewUserStore(pool)
	articles := store.NewArticleStore(pool)
	comments := store.NewCommentStore(pool)

	a.Ingest = ingest.New(users, articles, comments, a.Cache, a.Index, a.Logger)
	a.Query = query.New(articles, comments, a.Cache, a.Logger)
	return nil
}

// Ready reports whether the database is reachable.
func (a *App) Ready(ctx context.Context) error {
	if a.Pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	return a.Pool.Ping(ctx)
}

// Close releases every component in reverse wiring order.
func (a *App) Close() {
	if a.Browser != nil {
		a.Browser.Close()
	}
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			a.Logger.Warn("closing search index failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("closing redis failed", zap.Error(err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	_ = a.Logger.Sync()
}
