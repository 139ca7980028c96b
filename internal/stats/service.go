// Package stats answers the dashboard read queries over the aggregate
// counters.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/radiusdt/vector-analytics/internal/models"
	"github.com/radiusdt/vector-analytics/internal/storage"
	"go.uber.org/zap"
)

// Overview is the dashboard landing payload: the standout articles and
// the recent visitor trend.
type Overview struct {
	TopByViews    *models.Article     `json:"top_by_views"`
	TopByShares   *models.Article     `json:"top_by_shares"`
	TopByLikes    *models.Article     `json:"top_by_likes"`
	TotalArticles int                 `json:"total_articles"`
	Visitors      []models.DailyStats `json:"visitors"`
}

// SourceShare is one traffic source summed over the query window.
type SourceShare struct {
	Source     string  `json:"source"`
	Visitors   int64   `json:"visitors"`
	Percentage float64 `json:"percentage"`
}

// KeywordShare is one keyword summed over the query window.
type KeywordShare struct {
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}

const topKeywordLimit = 10

// Service reads the aggregate surfaces. Readers tolerate partially
// written data: they never observe torn counters, only counters that
// lag by the events still in flight.
type Service struct {
	store    storage.AggregateStore
	articles storage.ArticleRepo
	realtime *storage.RealtimeCounters
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store storage.AggregateStore, articles storage.ArticleRepo, realtime *storage.RealtimeCounters, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		articles: articles,
		realtime: realtime,
		logger:   logger,
		now:      time.Now,
	}
}

// window returns the inclusive [from, to] date keys covering the last
// `days` calendar days ending today.
func (s *Service) window(days int) (string, string) {
	now := s.now()
	from := models.DateKey(now.AddDate(0, 0, -(days - 1)))
	to := models.DateKey(now)
	return from, to
}

// Overview computes the standout articles with one linear scan per
// dimension. Ties keep the first article encountered, which is the
// newest published since the repo lists newest first. An empty article
// set yields nil standouts, not an error.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	articles, err := s.articles.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}

	ov := &Overview{TotalArticles: len(articles)}
	for _, a := range articles {
		if ov.TopByViews == nil || a.Views > ov.TopByViews.Views {
			ov.TopByViews = a
		}
		if ov.TopByShares == nil || a.Shares > ov.TopByShares.Shares {
			ov.TopByShares = a
		}
		if ov.TopByLikes == nil || a.Likes > ov.TopByLikes.Likes {
			ov.TopByLikes = a
		}
	}

	from, to := s.window(7)
	visitors, err := s.store.ListDailyRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load visitor trend: %w", err)
	}
	ov.Visitors = visitors

	return ov, nil
}

// Traffic returns the daily rollup rows for the last `days` days, date
// ascending. Days without events are absent rather than zero-filled.
func (s *Service) Traffic(ctx context.Context, days int) ([]models.DailyStats, error) {
	from, to := s.window(days)
	rows, err := s.store.ListDailyRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load traffic: %w", err)
	}
	return rows, nil
}

// Sources sums each traffic source over the window and attaches its
// share of the total. An empty window yields percentages of zero, never
// a division by zero.
func (s *Service) Sources(ctx context.Context, days int) ([]SourceShare, error) {
	from, to := s.window(days)
	rows, err := s.store.ListSourcesRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load traffic sources: %w", err)
	}

	sums := make(map[string]int64)
	var total int64
	for _, r := range rows {
		sums[r.Source] += r.Visitors
		total += r.Visitors
	}

	shares := make([]SourceShare, 0, len(sums))
	for source, visitors := range sums {
		share := SourceShare{Source: source, Visitors: visitors}
		if total > 0 {
			share.Percentage = float64(visitors) / float64(total) * 100
		}
		shares = append(shares, share)
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Visitors != shares[j].Visitors {
			return shares[i].Visitors > shares[j].Visitors
		}
		return shares[i].Source < shares[j].Source
	})
	return shares, nil
}

// Keywords sums each keyword over the window and returns the top ten by
// count, descending.
func (s *Service) Keywords(ctx context.Context, days int) ([]KeywordShare, error) {
	from, to := s.window(days)
	rows, err := s.store.ListKeywordsRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load keywords: %w", err)
	}

	sums := make(map[string]int64)
	for _, r := range rows {
		sums[r.Keyword] += r.Count
	}

	shares := make([]KeywordShare, 0, len(sums))
	for keyword, count := range sums {
		shares = append(shares, KeywordShare{Keyword: keyword, Count: count})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Keyword < shares[j].Keyword
	})
	if len(shares) > topKeywordLimit {
		shares = shares[:topKeywordLimit]
	}
	return shares, nil
}

// Articles lists every article with its engagement counters, newest
// published first.
func (s *Service) Articles(ctx context.Context) ([]*models.Article, error) {
	articles, err := s.articles.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}
	return articles, nil
}

// Realtime returns today's counters from the Redis mirror, falling back
// to the canonical daily row when the mirror is not configured.
func (s *Service) Realtime(ctx context.Context) (*storage.RealtimeSnapshot, error) {
	today := models.DateKey(s.now())

	if s.realtime != nil {
		snap, err := s.realtime.Today(ctx, today)
		if err == nil {
			return snap, nil
		}
		s.logger.Warn("realtime mirror read failed, falling back to store", zap.Error(err))
	}

	d, err := s.store.GetDaily(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to load today's counters: %w", err)
	}
	snap := &storage.RealtimeSnapshot{Date: today}
	if d != nil {
		snap.PageViews = d.PageViews
		snap.UniqueVisitors = d.UniqueVisitors
	}
	return snap, nil
}
