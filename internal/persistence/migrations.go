package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// RowLevelSecurityMigration is the shipped file holding the generated RLS policy.
const RowLevelSecurityMigration = "002_row_level_security.sql"

type migration struct {
	name      string
	sql       string
	generated bool
}

// RunMigrations executes the SQL migrations located in dir in lexical order.
// generated maps a file name to SQL rendered at startup; it replaces that file's
// contents so the schema follows the running configuration.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, dir string, generated map[string]string, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	migrations, err := loadMigrations(dir, generated)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		logger.Info("applying migration", zap.String("file", m.name), zap.Bool("generated", m.generated))
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}

	logger.Info("migrations applied", zap.Int("count", len(migrations)))
	return nil
}

func loadMigrations(dir string, generated map[string]string) ([]migration, error) {
	filenames, err := migrationFiles(dir)
	if err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(generated))
	migrations := make([]migration, 0, len(filenames))
	for _, name := range filenames {
		if sql, ok := generated[name]; ok {
			used[name] = true
			migrations = append(migrations, migration{name: name, sql: sql, generated: true})
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		migrations = append(migrations, migration{name: name, sql: string(content)})
	}

	for name := range generated {
		if !used[name] {
			return nil, fmt.Errorf("generated migration %s has no file in %s", name, dir)
		}
	}
	return migrations, nil
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	filenames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		filenames = append(filenames, entry.Name())
	}
	sort.Strings(filenames)
	return filenames, nil
}
