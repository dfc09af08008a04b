package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate применяет (или откатывает при down) миграции из sourceURL, например file://migrations
func Migrate(databaseURL, sourceURL string, down bool) error {
	m, err := migrate.New(sourceURL, migrationURL(databaseURL))
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// migrationURL переводит DSN на схему драйвера pgx5 для golang-migrate
func migrationURL(databaseURL string) string {
	switch {
	case strings.HasPrefix(databaseURL, "pgx5://"):
		return databaseURL
	case strings.HasPrefix(databaseURL, "postgresql://"):
		return "pgx5://" + strings.TrimPrefix(databaseURL, "postgresql://")
	default:
		return strings.Replace(databaseURL, "postgres://", "pgx5://", 1)
	}
}
