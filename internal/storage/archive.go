package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/radiusdt/vector-analytics/internal/models"
	"go.uber.org/zap"
)

// EventArchive writes every accepted raw event to ClickHouse for offline
// analysis. The archive is downstream of aggregation and best-effort: an
// insert failure is logged and never fails the ingest.
type EventArchive struct {
	conn   clickhouse.Conn
	logger *zap.Logger
}

func NewEventArchive(conn clickhouse.Conn, logger *zap.Logger) *EventArchive {
	return &EventArchive{conn: conn, logger: logger}
}

// Archive persists one raw event.
func (a *EventArchive) Archive(ctx context.Context, ev *models.PageEvent, geoCountry string) error {
	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO page_events (
			id, timestamp, session_id, path, referrer,
			article_id, time_spent, is_new_visitor, geo_country
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare archive batch: %w", err)
	}

	var timeSpent int64
	if ev.TimeSpent != nil {
		timeSpent = int64(*ev.TimeSpent)
	}

	err = batch.Append(
		uuid.New().String(),
		time.Now().UTC(),
		ev.SessionID,
		ev.Path,
		ev.Referrer,
		ev.ArticleID,
		timeSpent,
		ev.IsNewVisitor,
		geoCountry,
	)
	if err != nil {
		return fmt.Errorf("failed to append event to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send archive batch: %w", err)
	}

	a.logger.Debug("event archived",
		zap.String("session_id", ev.SessionID),
		zap.String("path", ev.Path),
	)
	return nil
}
