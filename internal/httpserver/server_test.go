package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/radiusdt/vector-analytics/internal/config"
	"github.com/radiusdt/vector-analytics/internal/models"
	"go.uber.org/zap"
)

func newTestHandler() http.Handler {
	cfg := &config.Config{
		Metrics: config.MetricsConfig{Enabled: false},
		Tracking: config.TrackingConfig{
			SiteOrigin:     "https://example.com",
			SessionTimeout: 30 * time.Minute,
		},
	}
	return NewServer(&Dependencies{
		Config: cfg,
		Logger: zap.NewNop(),
	})
}

func TestTrackAnalyticsAcceptsValidEvent(t *testing.T) {
	h := newTestHandler()

	body := `{"sessionId":"s-1","path":"/article/abc123","referrer":"https://twitter.com/x","articleId":"abc123","isNewVisitor":true}`
	req := httptest.NewRequest(http.MethodPost, "/track/analytics", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !resp["success"] {
		t.Errorf("expected success=true, got %v", resp)
	}
}

func TestTrackAnalyticsRejectsInvalidJSON(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/track/analytics", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTrackAnalyticsRejectsMissingSessionID(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/track/analytics", strings.NewReader(`{"path":"/"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sessionId") {
		t.Errorf("error body should name the field: %s", rec.Body.String())
	}
}

func TestTrackAnalyticsMethodNotAllowed(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/track/analytics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestTrackAnalyticsPreflight(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodOptions, "/track/analytics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("preflight response missing CORS headers")
	}
}

func TestTrackKeyword(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/track/keyword", strings.NewReader(`{"keyword":"golang"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/stats/keywords", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "golang") {
		t.Errorf("keyword missing from stats: %s", rec.Body.String())
	}
}

func TestStatsTrafficReflectsIngestedEvents(t *testing.T) {
	h := newTestHandler()

	bodies := []string{
		`{"sessionId":"s-1","path":"/","isNewVisitor":true}`,
		`{"sessionId":"s-1","path":"/about","isNewVisitor":false}`,
		`{"sessionId":"s-1","path":"/","isNewVisitor":false}`,
	}
	for _, body := range bodies {
		req := httptest.NewRequest(http.MethodPost, "/track/analytics", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("track status = %d", rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/stats/traffic?days=7", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var rows []models.DailyStats
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one daily row, got %d", len(rows))
	}
	if rows[0].PageViews != 3 || rows[0].UniqueVisitors != 1 {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}

func TestStatsEndpointsReturnEmptyCollections(t *testing.T) {
	h := newTestHandler()

	for _, path := range []string{"/stats/traffic", "/stats/sources", "/stats/keywords", "/stats/articles"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
			continue
		}
		body := strings.TrimSpace(rec.Body.String())
		if body != "[]" {
			t.Errorf("%s body = %s, want []", path, body)
		}
	}
}

func TestStatsRealtimeEmptyDay(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/stats/realtime", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var snap struct {
		PageViews      int64 `json:"page_views"`
		UniqueVisitors int64 `json:"unique_visitors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if snap.PageViews != 0 || snap.UniqueVisitors != 0 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestServerRunsWithoutGeoResolver(t *testing.T) {
	cfg := &config.Config{
		Metrics: config.MetricsConfig{Enabled: false},
		Geo:     config.GeoConfig{Enabled: true, DatabasePath: "/nonexistent.mmdb"},
		Tracking: config.TrackingConfig{
			SiteOrigin:     "https://example.com",
			SessionTimeout: 30 * time.Minute,
		},
	}
	// The resolver is owned by the caller; a nil one means events are
	// archived without a country, never a startup failure.
	h := NewServer(&Dependencies{
		Config: cfg,
		Logger: zap.NewNop(),
	})

	body := `{"sessionId":"s-1","path":"/","isNewVisitor":true}`
	req := httptest.NewRequest(http.MethodPost, "/track/analytics", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}
