package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reunite-labs/petmatch/internal/config"
	"github.com/reunite-labs/petmatch/internal/matcher"
	"github.com/reunite-labs/petmatch/internal/resilience"
	"github.com/reunite-labs/petmatch/internal/scorer"
	"github.com/reunite-labs/petmatch/internal/store"
	"github.com/reunite-labs/petmatch/pkg/embedding"
	"github.com/reunite-labs/petmatch/pkg/vision"
)

// matchEnv holds the initialized store and matcher shared by the match,
// rescan, and serve commands.
type matchEnv struct {
	Store   store.Store
	Matcher *matcher.Matcher
}

// Close releases resources held by the environment.
func (e *matchEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "petmatch.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, embedding client, optional vision verifier,
// and the matcher. Callers should defer env.Close().
func initEnv(ctx context.Context) (*matchEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	engine := scorer.NewEngine(scorerConfig(cfg.Matching))

	var opts []matcher.Option
	if cfg.Vision.Key != "" {
		opts = append(opts, matcher.WithVerifier(
			vision.NewClient(cfg.Vision.Key, cfg.Vision.Model),
			matcher.NewHTTPPhotoFetcher(),
		))
		zap.L().Info("vision verification enabled", zap.String("model", cfg.Vision.Model))
	} else {
		zap.L().Debug("PETMATCH_VISION_KEY not set, vision verification disabled")
	}

	m := matcher.New(st, initEmbedder(cfg.Embedding), engine, cfg.Matching, opts...)

	return &matchEnv{Store: st, Matcher: m}, nil
}

// initEmbedder builds the embedding client, or nil when no key is
// configured. Without it matching degrades to attribute-only scoring.
func initEmbedder(ec config.EmbeddingConfig) embedding.Client {
	if ec.Key == "" {
		zap.L().Warn("PETMATCH_EMBEDDING_KEY not set, visual similarity disabled")
		return nil
	}

	retry := resilience.DefaultRetryConfig()
	if ec.MaxAttempts > 0 {
		retry.MaxAttempts = ec.MaxAttempts
	}
	if ec.WaitSecs > 0 {
		retry.DefaultWait = time.Duration(ec.WaitSecs) * time.Second
	}
	retry.OnRetry = resilience.RetryLogger("embedding", "embed")

	return embedding.NewClient(ec.Key,
		embedding.WithBaseURL(ec.BaseURL),
		embedding.WithRetry(retry),
		embedding.WithRateLimit(ec.RatePerSec),
	)
}

func scorerConfig(mc config.MatchingConfig) scorer.Config {
	c := scorer.DefaultConfig()
	if mc.RadiusKm > 0 {
		c.RadiusKm = mc.RadiusKm
	}
	if mc.WindowDays > 0 {
		c.WindowDays = mc.WindowDays
	}
	return c
}
