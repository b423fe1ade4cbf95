package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/config"
	"github.com/kailas-cloud/petmatch/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/petmatch/internal/db/redis"
	"github.com/kailas-cloud/petmatch/internal/domain"
	logpkg "github.com/kailas-cloud/petmatch/internal/logger"
	"github.com/kailas-cloud/petmatch/internal/metrics"
	"github.com/kailas-cloud/petmatch/internal/repository/featcache"
	"github.com/kailas-cloud/petmatch/internal/repository/lease"
	matchrepo "github.com/kailas-cloud/petmatch/internal/repository/match"
	petrepo "github.com/kailas-cloud/petmatch/internal/repository/pet"
	openaiFeat "github.com/kailas-cloud/petmatch/internal/transport/openai"
	"github.com/kailas-cloud/petmatch/internal/usecase/automatch"
	"github.com/kailas-cloud/petmatch/internal/usecase/features"
	healthuc "github.com/kailas-cloud/petmatch/internal/usecase/health"
	"github.com/kailas-cloud/petmatch/internal/usecase/matching"
	"github.com/kailas-cloud/petmatch/internal/usecase/notify"
)

// petRepository is everything the engine needs from pet storage.
type petRepository interface {
	matching.PetRepository
	automatch.RecentPets
	features.Store
}

// pingFunc adapts a function to health.DBPinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// app is the composition root shared by the serve and sweep commands.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger

	pg    *postgres.DB
	cache *dbRedis.Store

	pets       petRepository
	matches    matching.MatchRepository
	provider   *openaiFeat.Provider
	dispatcher *notify.Dispatcher
	matching   *matching.Service
	sweeper    *automatch.Matcher
	health     *healthuc.Service
}

func loadConfig() (string, config.Config, *zap.Logger, error) {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return "", config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return "", config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return env, cfg, logger, nil
}

func newApp(ctx context.Context) (*app, error) {
	env, cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{env: env, cfg: cfg, logger: logger}

	// Register metrics explicitly (no init())
	metrics.RegisterMatchingMetrics()
	metrics.RegisterFeatureMetrics()

	if err := a.openStores(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}

	ensurer := a.buildFeatures()
	a.dispatcher = notify.NewDispatcher(a.buildNotifier(),
		cfg.Notify.Workers, cfg.Notify.QueueSize, config.Seconds(cfg.Notify.TimeoutSec), logger)

	a.matching = matching.New(a.pets, a.matches, ensurer, a.dispatcher, matching.Settings{
		MinSimilarity:     cfg.Matching.MinSimilarity,
		DefaultPageLimit:  cfg.Matching.DefaultPageSize,
		CandidatePageSize: cfg.Matching.CandidatePageSize,
	})
	a.sweeper = automatch.NewMatcher(a.pets, a.matching, automatch.Settings{
		MaxDays:                cfg.AutoMatch.MaxDays,
		MaxPets:                cfg.AutoMatch.MaxPets,
		RunTimeout:             config.Seconds(cfg.AutoMatch.RunTimeoutSec),
		MaxConsecutiveFailures: cfg.AutoMatch.MaxConsecutiveFailures,
	}, logger)

	a.health = a.buildHealth()
	return a, nil
}

// openStores connects the relational store and the optional cache.
func (a *app) openStores(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("Using in-memory storage; data is lost on restart")
		a.pets = petrepo.NewMemory()
		a.matches = matchrepo.NewMemory()
	case "postgres":
		pg, err := postgres.Connect(ctx, postgres.Config{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.pg = pg
		if err := pg.WaitForReady(ctx, config.Seconds(cfg.Database.ReadinessTimeout)); err != nil {
			return fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database")
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, pg, postgres.MigrateUp, logger); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
		}
		a.pets = petrepo.NewPostgres(pg.Pool)
		a.matches = matchrepo.NewPostgres(pg.Pool)
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	if !cfg.Cache.Enabled() {
		return nil
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Cache.Addrs,
		Password: cfg.Cache.Password,
	})
	if err != nil {
		return fmt.Errorf("create cache store: %w", err)
	}
	a.cache = store
	if err := store.WaitForReady(ctx, config.Seconds(cfg.Cache.ReadinessTimeout)); err != nil {
		return fmt.Errorf("cache not ready: %w", err)
	}
	logger.Info("Connected to cache", zap.String("driver", cfg.Cache.Driver))
	return nil
}

// buildFeatures assembles the provider chain: OpenAI -> Cached -> Instrumented.
// It returns nil when no model is configured.
func (a *app) buildFeatures() matching.FeatureEnsurer {
	fc := a.cfg.Features
	if !fc.Enabled() {
		a.logger.Warn("Feature provider disabled; only pets with stored features are scored")
		return nil
	}

	a.provider = openaiFeat.NewProvider(&openaiFeat.Config{
		APIKey:     fc.APIKey,
		BaseURL:    fc.BaseURL,
		Model:      fc.Model,
		BreedModel: fc.BreedModel,
		Dimensions: fc.Dimensions,
		User:       fc.User,
		Provider:   fc.Provider,
		Logger:     a.logger,
	})

	var provider domain.FeatureProvider = a.provider
	if a.cache != nil {
		provider = featcache.New(provider, a.cache, fc.Model,
			config.Seconds(a.cfg.Cache.FeatureTTLSec), metrics.FeatureCacheTotal, a.logger)
	}
	instrumented := features.NewInstrumentedProvider(provider, fc.Provider, fc.Model,
		config.Seconds(fc.TimeoutSec), a.logger)

	a.logger.Info("Feature provider configured",
		zap.String("provider", fc.Provider),
		zap.String("model", fc.Model),
		zap.Int("dimensions", fc.Dimensions),
		zap.Bool("cached", a.cache != nil),
	)
	return features.New(instrumented, a.pets)
}

func (a *app) buildNotifier() notify.Notifier {
	nc := a.cfg.Notify
	if nc.Driver == "webhook" {
		return notify.NewWebhookNotifier(nc.WebhookURL, nc.WebhookToken, config.Seconds(nc.TimeoutSec))
	}
	return notify.NewLogNotifier(a.logger)
}

func (a *app) buildHealth() *healthuc.Service {
	var db healthuc.DBPinger = pingFunc(func(context.Context) error { return nil })
	if a.pg != nil {
		db = a.pg
	}
	// Pass nil interfaces, not typed nil pointers.
	var cache healthuc.DBPinger
	if a.cache != nil {
		cache = a.cache
	}
	var feat healthuc.FeatureChecker
	if a.provider != nil {
		feat = a.provider
	}
	return healthuc.New(db, cache, feat)
}

// sweepLease returns the cross-replica sweep lease, or nil without a cache.
func (a *app) sweepLease() automatch.Lease {
	if a.cache == nil {
		return nil
	}
	return lease.New(a.cache, "automatch", config.Seconds(a.cfg.AutoMatch.LeaseTTLSec))
}

// close drains pending notifications and releases connections.
func (a *app) close(ctx context.Context) {
	if a.dispatcher != nil {
		drainCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.dispatcher.Close(drainCtx); err != nil {
			a.logger.Warn("Notification queue not fully drained", zap.Error(err))
		}
		cancel()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
	_ = a.logger.Sync()
}
