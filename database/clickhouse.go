package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"componentlab/api/config"
	"componentlab/api/logger"
)

type ClickHouseClient struct {
	Conn clickhouse.Conn
	log  *logger.Logger
}

// interaction_events is append only; ORDER BY matches the paged read path.
const interactionEventsSchema = `
CREATE TABLE IF NOT EXISTS interaction_events (
	id             UUID,
	component_name String,
	action         String,
	timestamp      DateTime64(3, 'UTC'),
	user_type      LowCardinality(String),
	user_ref       Nullable(UUID)
) ENGINE = MergeTree
ORDER BY (timestamp, id)
`

func NewClickHouseDB(ctx context.Context, cfg config.ClickHouseConfig, log *logger.Logger) (*ClickHouseClient, error) {
	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.NativePort)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "componentlab-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("Successfully connected to ClickHouse database via Native TCP",
		zap.String("addr", options.Addr[0]), zap.String("database", cfg.Database))
	return &ClickHouseClient{Conn: conn, log: log}, nil
}

// Migrate creates the interaction_events table when it does not exist yet.
func (c *ClickHouseClient) Migrate(ctx context.Context) error {
	if err := c.Conn.Exec(ctx, interactionEventsSchema); err != nil {
		return fmt.Errorf("failed to migrate interaction_events schema: %w", err)
	}
	return nil
}

func (c *ClickHouseClient) Ping(ctx context.Context) error {
	return c.Conn.Ping(ctx)
}

func (c *ClickHouseClient) Close() {
	if c.Conn == nil {
		return
	}
	if err := c.Conn.Close(); err != nil {
		c.log.Error("Error closing ClickHouse connection", zap.Error(err))
		return
	}
	c.log.Info("ClickHouse connection closed")
}
