package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const realtimeTTL = 48 * time.Hour

// RealtimeCounters mirrors today's page view and visitor counts into
// Redis so the realtime endpoint can answer without touching the
// canonical store. The mirror is best-effort: a Redis outage loses
// realtime freshness, never canonical data.
type RealtimeCounters struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRealtimeCounters(client *redis.Client, logger *zap.Logger) *RealtimeCounters {
	return &RealtimeCounters{client: client, logger: logger}
}

func pageViewKey(date string) string { return fmt.Sprintf("realtime:pv:%s", date) }
func visitorKey(date string) string  { return fmt.Sprintf("realtime:uv:%s", date) }

// RecordPageView bumps today's mirror counters in a single pipeline.
func (r *RealtimeCounters) RecordPageView(ctx context.Context, date string, newVisitor bool) error {
	pipe := r.client.Pipeline()
	pipe.Incr(ctx, pageViewKey(date))
	pipe.Expire(ctx, pageViewKey(date), realtimeTTL)
	if newVisitor {
		pipe.Incr(ctx, visitorKey(date))
		pipe.Expire(ctx, visitorKey(date), realtimeTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record realtime counters: %w", err)
	}
	return nil
}

// RealtimeSnapshot is the realtime endpoint payload.
type RealtimeSnapshot struct {
	Date           string `json:"date"`
	PageViews      int64  `json:"page_views"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

// Today reads the mirror counters for the given date. Missing keys read
// as zero.
func (r *RealtimeCounters) Today(ctx context.Context, date string) (*RealtimeSnapshot, error) {
	pipe := r.client.Pipeline()
	pv := pipe.Get(ctx, pageViewKey(date))
	uv := pipe.Get(ctx, visitorKey(date))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read realtime counters: %w", err)
	}

	snap := &RealtimeSnapshot{Date: date}
	if v, err := pv.Int64(); err == nil {
		snap.PageViews = v
	}
	if v, err := uv.Int64(); err == nil {
		snap.UniqueVisitors = v
	}
	return snap, nil
}
