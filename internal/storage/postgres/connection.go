package postgres

import (
	"database/sql"
	"fmt"

	"github.com/ShipLog-Showcase/showcase-backend/config"
	_ "github.com/lib/pq"
)

// NewConnection opens the database/sql handle used by the comments gateway.
func NewConnection(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)

	return db, nil
}
