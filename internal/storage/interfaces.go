package storage

import (
	"context"

	"github.com/radiusdt/vector-analytics/internal/models"
)

// PageViewMutation describes what one ingested event contributes to the
// daily rollup. DwellSeconds is nil for enter events.
type PageViewMutation struct {
	NewVisitor   bool
	DwellSeconds *int
}

// AggregateStore is the shared mutable resource of the pipeline. All
// increments are atomic per key: concurrent events for the same date,
// source, keyword or article must not lose updates, and no global lock
// is taken across unrelated keys. Rows are append-or-increment and are
// never deleted.
type AggregateStore interface {
	// ApplyPageView upserts the daily row for date: page_views += 1,
	// unique_visitors += 1 when the event is a new visitor, and the
	// running dwell mean folded in when a dwell sample is present. The
	// mean uses the pre-increment page view count as the prior weight:
	// round((avg*old_pv + dwell) / (old_pv + 1)).
	ApplyPageView(ctx context.Context, date string, mut PageViewMutation) error

	// IncrementSource upserts (date, source) and bumps its visitor count.
	IncrementSource(ctx context.Context, date, source string) error

	// IncrementKeyword upserts (date, keyword) and bumps its count.
	IncrementKeyword(ctx context.Context, date, keyword string) error

	// IncrementArticleViews bumps the views counter of one article.
	IncrementArticleViews(ctx context.Context, articleID string) error

	// GetDaily returns the daily row for date, or nil when absent.
	GetDaily(ctx context.Context, date string) (*models.DailyStats, error)

	// ListDailyRange returns daily rows with from <= date <= to, date
	// ascending. Days without events are absent, not zero rows.
	ListDailyRange(ctx context.Context, from, to string) ([]models.DailyStats, error)

	// ListSourcesRange returns traffic source rows in the window.
	ListSourcesRange(ctx context.Context, from, to string) ([]models.SourceCount, error)

	// ListKeywordsRange returns keyword rows in the window.
	ListKeywordsRange(ctx context.Context, from, to string) ([]models.KeywordCount, error)
}

// ArticleRepo reads the collaborator-owned article counters. Views are
// written through AggregateStore.IncrementArticleViews; likes and shares
// belong to other parts of the site and are read-only here.
type ArticleRepo interface {
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	ListArticles(ctx context.Context) ([]*models.Article, error)
}
