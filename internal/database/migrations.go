package database

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strings"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return errors.Wrap(err, "create migrations table")
	}

	upFiles, err := migrationNames(migrationFiles)
	if err != nil {
		return err
	}

	for _, fileName := range upFiles {
		version := strings.TrimSuffix(fileName, ".up.sql")

		var count int
		err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = $1", version).Scan(&count)
		if err != nil {
			return errors.Wrapf(err, "check migration %s", version)
		}
		if count > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationFiles, "migrations/"+fileName)
		if err != nil {
			return errors.Wrapf(err, "read migration %s", fileName)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return errors.Wrapf(err, "begin tx for %s", version)
		}

		if _, err := tx.Exec(ctx, string(content)); err != nil {
			_ = tx.Rollback(ctx)
			return errors.Wrapf(err, "execute migration %s", version)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			_ = tx.Rollback(ctx)
			return errors.Wrapf(err, "record migration %s", version)
		}

		if err := tx.Commit(ctx); err != nil {
			return errors.Wrapf(err, "commit migration %s", version)
		}

		logger.Info("applied migration", zap.String("version", version))
	}

	return nil
}

// migrationNames lists the .up.sql files in apply order.
func migrationNames(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "read embedded migrations")
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
