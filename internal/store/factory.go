package store

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/Trajectory/internal/config"
)

// Open builds the backend named by cfg.Driver, applies its schema and seeds
// the default catalog.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "memory":
		s = NewMemoryStore()
	case "sqlite":
		s, err = NewSQLiteStore(ctx, cfg.SQLitePath)
	case "postgres":
		var pg *PostgresStore
		pg, err = NewPostgresStore(ctx, cfg.URL)
		if err == nil {
			if err = pg.Migrate(ctx); err != nil {
				_ = pg.Close()
			}
		}
		s = pg
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.EnsureCatalog(ctx, DefaultCourses); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	return s, nil
}
