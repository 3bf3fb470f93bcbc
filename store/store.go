// Package store opens the document store backend selected by configuration.
package store

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-aggregate/config"
	"github.com/asaidimu/go-aggregate/core/persistence"
	"github.com/asaidimu/go-aggregate/memory"
	"github.com/asaidimu/go-aggregate/mongodb"
	"github.com/asaidimu/go-aggregate/sqlite"
	"go.uber.org/zap"
)

// OpenInteractor opens the backend named by cfg.Driver.
func OpenInteractor(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (persistence.DocumentInteractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case "", "memory":
		return memory.NewInteractor(logger), nil
	case "sqlite":
		i, err := sqlite.Open(cfg.SQLite.Path, logger, &sqlite.Options{TablePrefix: cfg.SQLite.TablePrefix})
		if err != nil {
			return nil, err
		}
		return i, nil
	case "mongo":
		i, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  cfg.Mongo.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return i, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Open opens the configured backend and wraps it in a Persistence set up
// with the pipeline settings.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*persistence.Persistence, error) {
	interactor, err := OpenInteractor(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	opts := []persistence.Option{
		persistence.WithParallelism(cfg.Pipeline.Parallelism),
		persistence.WithTypeMismatchPolicy(cfg.Pipeline.Policy()),
	}
	if logger != nil {
		opts = append(opts, persistence.WithLogger(logger))
	}
	p, err := persistence.NewPersistence(ctx, interactor, opts...)
	if err != nil {
		_ = interactor.Close()
		return nil, err
	}
	return p, nil
}
