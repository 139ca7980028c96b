package stats

import (
	"context"
	"testing"
	"time"

	"github.com/radiusdt/vector-analytics/internal/models"
	"github.com/radiusdt/vector-analytics/internal/storage"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *storage.InMemoryAggregateStore) {
	store := storage.NewInMemoryAggregateStore()
	svc := NewService(store, store, nil, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc, store
}

func dateAgo(days int) string {
	return models.DateKey(testNow.AddDate(0, 0, -days))
}

func TestOverviewPicksStandoutArticles(t *testing.T) {
	svc, store := newTestService()

	store.SeedArticle(&models.Article{
		ID: "a", Title: "First", Views: 100, Likes: 5, Shares: 1,
		PublishedAt: testNow.AddDate(0, 0, -3),
	})
	store.SeedArticle(&models.Article{
		ID: "b", Title: "Second", Views: 40, Likes: 50, Shares: 1,
		PublishedAt: testNow.AddDate(0, 0, -2),
	})
	store.SeedArticle(&models.Article{
		ID: "c", Title: "Third", Views: 40, Likes: 5, Shares: 9,
		PublishedAt: testNow.AddDate(0, 0, -1),
	})

	ov, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}

	if ov.TopByViews == nil || ov.TopByViews.ID != "a" {
		t.Errorf("top by views = %+v, want article a", ov.TopByViews)
	}
	if ov.TopByLikes == nil || ov.TopByLikes.ID != "b" {
		t.Errorf("top by likes = %+v, want article b", ov.TopByLikes)
	}
	if ov.TopByShares == nil || ov.TopByShares.ID != "c" {
		t.Errorf("top by shares = %+v, want article c", ov.TopByShares)
	}
	if ov.TotalArticles != 3 {
		t.Errorf("total articles = %d, want 3", ov.TotalArticles)
	}
}

func TestOverviewTieKeepsNewestPublished(t *testing.T) {
	svc, store := newTestService()

	store.SeedArticle(&models.Article{
		ID: "older", Views: 10, PublishedAt: testNow.AddDate(0, 0, -5),
	})
	store.SeedArticle(&models.Article{
		ID: "newer", Views: 10, PublishedAt: testNow.AddDate(0, 0, -1),
	})

	ov, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}
	if ov.TopByViews.ID != "newer" {
		t.Errorf("tie broke to %q, want the newest published", ov.TopByViews.ID)
	}
}

func TestOverviewEmptyArticleSet(t *testing.T) {
	svc, _ := newTestService()

	ov, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}
	if ov.TopByViews != nil || ov.TopByShares != nil || ov.TopByLikes != nil {
		t.Errorf("empty article set must yield nil standouts: %+v", ov)
	}
	if ov.TotalArticles != 0 {
		t.Errorf("total articles = %d, want 0", ov.TotalArticles)
	}
}

func TestTrafficWindowAscendingWithoutBackfill(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	// Events on three of the last seven days, plus one outside the window.
	for _, daysAgo := range []int{0, 2, 6, 10} {
		store.ApplyPageView(ctx, dateAgo(daysAgo), storage.PageViewMutation{NewVisitor: true})
	}

	rows, err := svc.Traffic(ctx, 7)
	if err != nil {
		t.Fatalf("Traffic failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 days with data, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i-1].Date >= rows[i].Date {
			t.Errorf("rows not ascending: %s then %s", rows[i-1].Date, rows[i].Date)
		}
	}
	if rows[0].Date != dateAgo(6) || rows[len(rows)-1].Date != dateAgo(0) {
		t.Errorf("window bounds wrong: %s .. %s", rows[0].Date, rows[len(rows)-1].Date)
	}
}

func TestSourcesSumWindowWithPercentages(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	for i := 0; i < 3; i++ {
		store.IncrementSource(ctx, dateAgo(0), "twitter.com")
	}
	store.IncrementSource(ctx, dateAgo(1), "twitter.com")
	store.IncrementSource(ctx, dateAgo(1), "news.ycombinator.com")

	shares, err := svc.Sources(ctx, 7)
	if err != nil {
		t.Fatalf("Sources failed: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(shares))
	}
	if shares[0].Source != "twitter.com" || shares[0].Visitors != 4 {
		t.Errorf("unexpected first share: %+v", shares[0])
	}
	if shares[0].Percentage != 80 {
		t.Errorf("twitter percentage = %v, want 80", shares[0].Percentage)
	}
	if shares[1].Percentage != 20 {
		t.Errorf("hn percentage = %v, want 20", shares[1].Percentage)
	}
}

func TestSourcesEmptyWindow(t *testing.T) {
	svc, _ := newTestService()

	shares, err := svc.Sources(context.Background(), 30)
	if err != nil {
		t.Fatalf("Sources failed: %v", err)
	}
	if len(shares) != 0 {
		t.Errorf("expected no shares, got %+v", shares)
	}
}

func TestKeywordsTopTenDescending(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	keywords := []string{"k0", "k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8", "k9", "k10", "k11"}
	for i, kw := range keywords {
		for j := 0; j <= i; j++ {
			store.IncrementKeyword(ctx, dateAgo(0), kw)
		}
	}

	shares, err := svc.Keywords(ctx, 7)
	if err != nil {
		t.Fatalf("Keywords failed: %v", err)
	}
	if len(shares) != 10 {
		t.Fatalf("expected 10 keywords, got %d", len(shares))
	}
	if shares[0].Keyword != "k11" || shares[0].Count != 12 {
		t.Errorf("unexpected top keyword: %+v", shares[0])
	}
	for i := 1; i < len(shares); i++ {
		if shares[i-1].Count < shares[i].Count {
			t.Errorf("shares not descending at %d: %+v", i, shares)
		}
	}
}

func TestRealtimeFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	store.ApplyPageView(ctx, dateAgo(0), storage.PageViewMutation{NewVisitor: true})
	store.ApplyPageView(ctx, dateAgo(0), storage.PageViewMutation{})

	snap, err := svc.Realtime(ctx)
	if err != nil {
		t.Fatalf("Realtime failed: %v", err)
	}
	if snap.PageViews != 2 || snap.UniqueVisitors != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.Date != dateAgo(0) {
		t.Errorf("snapshot date = %s, want today", snap.Date)
	}
}

func TestRealtimeEmptyDay(t *testing.T) {
	svc, _ := newTestService()

	snap, err := svc.Realtime(context.Background())
	if err != nil {
		t.Fatalf("Realtime failed: %v", err)
	}
	if snap.PageViews != 0 || snap.UniqueVisitors != 0 {
		t.Errorf("expected zero counters, got %+v", snap)
	}
}
