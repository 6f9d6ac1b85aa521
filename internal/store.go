package internal

import (
	"context"
	"fmt"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/filestore"
	"github.com/dukerupert/goodboy/internal/mongostore"
	"github.com/dukerupert/goodboy/internal/postgres"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Store is implemented by every persistence backend.
type Store interface {
	domain.ProductStore
	domain.UserStore
	domain.OrderStore
	domain.EventLedger
}

// OpenStore connects the configured backend and prepares its schema. The
// returned close function releases connections.
func OpenStore(ctx context.Context, cfg StoreConfig, logger zerolog.Logger) (Store, func(), error) {
	switch cfg.Driver {
	case StoreMongo:
		db, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		store := mongostore.New(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Disconnect(context.Background())
			return nil, nil, err
		}
		logger.Info().Str("database", cfg.MongoDB).Msg("MongoDB store ready")
		return store, func() { _ = store.Disconnect(context.Background()) }, nil

	case StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := RunMigrations(ctx, stdlib.OpenDBFromPool(pool), logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info().Msg("PostgreSQL store ready")
		return postgres.New(pool), pool.Close, nil

	case StoreFile:
		store, err := filestore.Open(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("dir", cfg.DataDir).Msg("File store ready")
		return store, func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
