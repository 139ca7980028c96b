package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/radiusdt/vector-analytics/internal/config"
	"go.uber.org/zap"
)

// ClickHouseDB wraps a ClickHouse connection used for the raw event archive.
type ClickHouseDB struct {
	Conn   clickhouse.Conn
	logger *zap.Logger
}

// NewClickHouseDB opens a ClickHouse connection for the event archive.
func NewClickHouseDB(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Info("connected to ClickHouse",
		zap.String("addr", cfg.Addr),
		zap.String("database", cfg.Database),
	)

	return &ClickHouseDB{
		Conn:   conn,
		logger: logger,
	}, nil
}

// Close closes the ClickHouse connection.
func (db *ClickHouseDB) Close() error {
	if db.Conn != nil {
		db.logger.Info("ClickHouse connection closed")
		return db.Conn.Close()
	}
	return nil
}

// Health checks if ClickHouse is reachable.
func (db *ClickHouseDB) Health(ctx context.Context) error {
	return db.Conn.Ping(ctx)
}
