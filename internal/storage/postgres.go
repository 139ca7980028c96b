package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/vector-analytics/internal/models"
)

// PostgresAggregateStore implements AggregateStore using PostgreSQL.
//
// Every mutation is a single INSERT ... ON CONFLICT DO UPDATE or UPDATE
// statement, so concurrent events for the same key serialize on the row
// inside the database instead of racing a read-modify-write in the
// application.
type PostgresAggregateStore struct {
	pool *pgxpool.Pool
}

func NewPostgresAggregateStore(pool *pgxpool.Pool) *PostgresAggregateStore {
	return &PostgresAggregateStore{pool: pool}
}

func (s *PostgresAggregateStore) ApplyPageView(ctx context.Context, date string, mut PageViewMutation) error {
	visitorInc := 0
	if mut.NewVisitor {
		visitorInc = 1
	}

	dwell := 0
	hasDwell := mut.DwellSeconds != nil
	if hasDwell {
		dwell = *mut.DwellSeconds
	}

	// The dwell sample is folded in with the pre-increment page_views as
	// the prior weight, matching what the daily row has always stored.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analytics (date, unique_visitors, page_views, avg_time_seconds, bounce_rate)
		VALUES ($1, $2, 1, $3, 0)
		ON CONFLICT (date) DO UPDATE SET
			page_views = analytics.page_views + 1,
			unique_visitors = analytics.unique_visitors + $2,
			avg_time_seconds = CASE WHEN $4
				THEN ROUND((analytics.avg_time_seconds * analytics.page_views + $3)::numeric
					/ (analytics.page_views + 1))::bigint
				ELSE analytics.avg_time_seconds
			END
	`, date, visitorInc, dwell, hasDwell)

	if err != nil {
		return fmt.Errorf("failed to apply page view for %s: %w", date, err)
	}
	return nil
}

func (s *PostgresAggregateStore) IncrementSource(ctx context.Context, date, source string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO traffic_sources (date, source, visitors)
		VALUES ($1, $2, 1)
		ON CONFLICT (date, source) DO UPDATE SET
			visitors = traffic_sources.visitors + 1
	`, date, source)

	if err != nil {
		return fmt.Errorf("failed to increment source %s/%s: %w", date, source, err)
	}
	return nil
}

func (s *PostgresAggregateStore) IncrementKeyword(ctx context.Context, date, keyword string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO search_keywords (date, keyword, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (date, keyword) DO UPDATE SET
			count = search_keywords.count + 1
	`, date, keyword)

	if err != nil {
		return fmt.Errorf("failed to increment keyword %s/%s: %w", date, keyword, err)
	}
	return nil
}

func (s *PostgresAggregateStore) IncrementArticleViews(ctx context.Context, articleID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE articles SET views = views + 1 WHERE id = $1
	`, articleID)

	if err != nil {
		return fmt.Errorf("failed to increment views for article %s: %w", articleID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article %s not found", articleID)
	}
	return nil
}

func (s *PostgresAggregateStore) GetDaily(ctx context.Context, date string) (*models.DailyStats, error) {
	var d models.DailyStats
	err := s.pool.QueryRow(ctx, `
		SELECT date::text, unique_visitors, page_views, avg_time_seconds, bounce_rate
		FROM analytics WHERE date = $1
	`, date).Scan(&d.Date, &d.UniqueVisitors, &d.PageViews, &d.AvgTimeSeconds, &d.BounceRate)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	return &d, nil
}

func (s *PostgresAggregateStore) ListDailyRange(ctx context.Context, from, to string) ([]models.DailyStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date::text, unique_visitors, page_views, avg_time_seconds, bounce_rate
		FROM analytics
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}
	defer rows.Close()

	var result []models.DailyStats
	for rows.Next() {
		var d models.DailyStats
		if err := rows.Scan(&d.Date, &d.UniqueVisitors, &d.PageViews, &d.AvgTimeSeconds, &d.BounceRate); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *PostgresAggregateStore) ListSourcesRange(ctx context.Context, from, to string) ([]models.SourceCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date::text, source, visitors
		FROM traffic_sources
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC, source ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list traffic sources: %w", err)
	}
	defer rows.Close()

	var result []models.SourceCount
	for rows.Next() {
		var sc models.SourceCount
		if err := rows.Scan(&sc.Date, &sc.Source, &sc.Visitors); err != nil {
			return nil, err
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

func (s *PostgresAggregateStore) ListKeywordsRange(ctx context.Context, from, to string) ([]models.KeywordCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date::text, keyword, count
		FROM search_keywords
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC, keyword ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list search keywords: %w", err)
	}
	defer rows.Close()

	var result []models.KeywordCount
	for rows.Next() {
		var kc models.KeywordCount
		if err := rows.Scan(&kc.Date, &kc.Keyword, &kc.Count); err != nil {
			return nil, err
		}
		result = append(result, kc)
	}
	return result, rows.Err()
}

// PostgresArticleRepo reads article engagement counters.
type PostgresArticleRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresArticleRepo(pool *pgxpool.Pool) *PostgresArticleRepo {
	return &PostgresArticleRepo{pool: pool}
}

func (r *PostgresArticleRepo) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	var a models.Article
	var category *string

	err := r.pool.QueryRow(ctx, `
		SELECT id, title, category, views, likes, shares, published_at
		FROM articles WHERE id = $1
	`, id).Scan(&a.ID, &a.Title, &category, &a.Views, &a.Likes, &a.Shares, &a.PublishedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	if category != nil {
		a.Category = *category
	}
	return &a, nil
}

func (r *PostgresArticleRepo) ListArticles(ctx context.Context) ([]*models.Article, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, category, views, likes, shares, published_at
		FROM articles ORDER BY published_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []*models.Article
	for rows.Next() {
		var a models.Article
		var category *string

		if err := rows.Scan(&a.ID, &a.Title, &category, &a.Views, &a.Likes, &a.Shares, &a.PublishedAt); err != nil {
			return nil, err
		}
		if category != nil {
			a.Category = *category
		}
		articles = append(articles, &a)
	}
	return articles, rows.Err()
}
