package postgresadapter

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies pending goose migrations embedded in the binary.
func (r *Repository) Migrate(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("resolve sql db handle: %w", err)
	}
	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("open review workflow migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations)
	if err != nil {
		return r.logError("review_repo_migrate_failed", fmt.Errorf("create migration provider: %w", err))
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return r.logError("review_repo_migrate_failed", err)
	}
	r.logger.Info("review workflow schema applied",
		"event", "review_repo_migrated",
		"module", "governance/review-workflow",
		"layer", "adapter",
		"applied", len(results),
	)
	return nil
}
