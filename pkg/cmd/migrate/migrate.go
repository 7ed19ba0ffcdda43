package migrate

import (
	"context"
	"fmt"
	"log"

	"github.com/igolaizola/beatoven/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string
}

// Run migrates the database schema to the latest version.
func Run(ctx context.Context, cfg *Config) error {
	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("migrate: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("migrate: couldn't start orm store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Println("migrate: database migrated")
	return nil
}
