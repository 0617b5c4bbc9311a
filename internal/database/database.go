package database

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"github.com/estensen/contract-activity/internal/config"
)

const createActivityTable = `
    CREATE TABLE IF NOT EXISTS contract_activity (
        period           String,
        granularity      LowCardinality(String),
        app_name         String,
        contract_address String,
        active_users     UInt64,
        fetched_at       DateTime
    )
    ENGINE = ReplacingMergeTree(fetched_at)
    ORDER BY (app_name, contract_address, granularity, period)
    `

// NewClickHouseConnection opens and pings a ClickHouse connection.
func NewClickHouseConnection(ctx context.Context, cfg config.ClickHouse, logger *zap.Logger) (clickhouse.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ClickHouse ping failed: %w", err)
	}

	logger.Info("Connected to ClickHouse", zap.String("addr", cfg.Addr), zap.String("database", cfg.Database))
	return conn, nil
}

// EnsureSchema creates the activity table when missing.
func EnsureSchema(ctx context.Context, conn clickhouse.Conn) error {
	if err := conn.Exec(ctx, createActivityTable); err != nil {
		return fmt.Errorf("error creating contract_activity table: %w", err)
	}
	return nil
}
