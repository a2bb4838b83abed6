package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"

	"licensegate/internal/config"
)

// Connect opens the embedded SQLite store. The busy timeout keeps concurrent
// writers queueing on the file lock instead of failing with SQLITE_BUSY.
func Connect(cfg *config.Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", cfg.DBPath)

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Str("path", cfg.DBPath).Msg("Connected to database")
	return db, nil
}
