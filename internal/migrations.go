package internal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/goodboy/migrations"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// RunMigrations applies pending postgres migrations and logs each one.
func RunMigrations(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.MigrationsFS)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		logger.Info().
			Int64("version", r.Source.Version).
			Str("file", r.Source.Path).
			Dur("took", r.Duration).
			Msg("Applied migration")
	}

	return nil
}
