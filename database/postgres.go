package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"componentlab/api/config"
	"componentlab/api/logger"
)

type DBClient struct {
	DB  *sql.DB
	log *logger.Logger
}

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id              UUID PRIMARY KEY,
	nombre          TEXT NOT NULL,
	email           TEXT NOT NULL,
	hashed_password BYTEA NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (email);
`

func NewPostgresDB(ctx context.Context, cfg config.PostgresConfig, log *logger.Logger) (*DBClient, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	log.Info("Successfully connected to PostgreSQL database")
	return &DBClient{DB: db, log: log}, nil
}

// Migrate creates the users table when it does not exist yet.
func (c *DBClient) Migrate(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, usersSchema); err != nil {
		return fmt.Errorf("failed to migrate users schema: %w", err)
	}
	return nil
}

func (c *DBClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *DBClient) Close() {
	if c.DB == nil {
		return
	}
	if err := c.DB.Close(); err != nil {
		c.log.Error("Error closing database connection", zap.Error(err))
		return
	}
	c.log.Info("PostgreSQL database connection closed")
}
