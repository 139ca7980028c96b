package storage

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/radiusdt/vector-analytics/internal/models"
)

// InMemoryAggregateStore is the fallback store used when PostgreSQL is
// unavailable, and the store the tests run against. A single mutex
// guards the maps; increments are read-modify-write under the lock so
// they are atomic per key the same way the SQL upserts are.
type InMemoryAggregateStore struct {
	mu       sync.Mutex
	daily    map[string]*models.DailyStats
	sources  map[string]map[string]int64
	keywords map[string]map[string]int64
	articles map[string]*models.Article
}

func NewInMemoryAggregateStore() *InMemoryAggregateStore {
	return &InMemoryAggregateStore{
		daily:    make(map[string]*models.DailyStats),
		sources:  make(map[string]map[string]int64),
		keywords: make(map[string]map[string]int64),
		articles: make(map[string]*models.Article),
	}
}

func (s *InMemoryAggregateStore) ApplyPageView(_ context.Context, date string, mut PageViewMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.daily[date]
	if !ok {
		d = &models.DailyStats{Date: date}
		s.daily[date] = d
	}

	if mut.DwellSeconds != nil {
		// Pre-increment page view count weights the prior mean.
		old := float64(d.AvgTimeSeconds) * float64(d.PageViews)
		d.AvgTimeSeconds = int64(math.Round((old + float64(*mut.DwellSeconds)) / float64(d.PageViews+1)))
	}
	d.PageViews++
	if mut.NewVisitor {
		d.UniqueVisitors++
	}
	return nil
}

func (s *InMemoryAggregateStore) IncrementSource(_ context.Context, date, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.sources[date]
	if !ok {
		day = make(map[string]int64)
		s.sources[date] = day
	}
	day[source]++
	return nil
}

func (s *InMemoryAggregateStore) IncrementKeyword(_ context.Context, date, keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.keywords[date]
	if !ok {
		day = make(map[string]int64)
		s.keywords[date] = day
	}
	day[keyword]++
	return nil
}

func (s *InMemoryAggregateStore) IncrementArticleViews(_ context.Context, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[articleID]
	if !ok {
		a = &models.Article{ID: articleID, PublishedAt: time.Now().UTC()}
		s.articles[articleID] = a
	}
	a.Views++
	return nil
}

func (s *InMemoryAggregateStore) GetDaily(_ context.Context, date string) (*models.DailyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.daily[date]
	if !ok {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (s *InMemoryAggregateStore) ListDailyRange(_ context.Context, from, to string) ([]models.DailyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.DailyStats
	for date, d := range s.daily {
		if date >= from && date <= to {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

func (s *InMemoryAggregateStore) ListSourcesRange(_ context.Context, from, to string) ([]models.SourceCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.SourceCount
	for date, day := range s.sources {
		if date < from || date > to {
			continue
		}
		for source, visitors := range day {
			result = append(result, models.SourceCount{Date: date, Source: source, Visitors: visitors})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Source < result[j].Source
	})
	return result, nil
}

func (s *InMemoryAggregateStore) ListKeywordsRange(_ context.Context, from, to string) ([]models.KeywordCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.KeywordCount
	for date, day := range s.keywords {
		if date < from || date > to {
			continue
		}
		for keyword, count := range day {
			result = append(result, models.KeywordCount{Date: date, Keyword: keyword, Count: count})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Keyword < result[j].Keyword
	})
	return result, nil
}

// SeedArticle installs an article row, replacing any existing counters.
// Used by the fallback path and by tests.
func (s *InMemoryAggregateStore) SeedArticle(a *models.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *a
	s.articles[a.ID] = &copied
}

// GetArticle implements ArticleRepo.
func (s *InMemoryAggregateStore) GetArticle(_ context.Context, id string) (*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

// ListArticles implements ArticleRepo, newest published first.
func (s *InMemoryAggregateStore) ListArticles(_ context.Context) ([]*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	articles := make([]*models.Article, 0, len(s.articles))
	for _, a := range s.articles {
		copied := *a
		articles = append(articles, &copied)
	}
	sort.Slice(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	return articles, nil
}
