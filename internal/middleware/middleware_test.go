package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/radiusdt/vector-analytics/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthSkipsPublicPaths(t *testing.T) {
	auth := NewAuthMiddleware(config.AuthConfig{
		Enabled:   true,
		MasterKey: "secret",
		SkipPaths: []string{"/health", "/track/analytics", "/track/keyword"},
	}, zap.NewNop())
	h := auth.Handler(okHandler())

	for _, path := range []string{"/health", "/track/analytics", "/track/keyword"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200 without a key", path, rec.Code)
		}
	}
}

func TestAuthRejectsProtectedPathWithoutKey(t *testing.T) {
	auth := NewAuthMiddleware(config.AuthConfig{
		Enabled:   true,
		MasterKey: "secret",
		SkipPaths: []string{"/health"},
	}, zap.NewNop())
	h := auth.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/stats/overview", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthAcceptsValidKey(t *testing.T) {
	auth := NewAuthMiddleware(config.AuthConfig{
		Enabled:   true,
		MasterKey: "secret",
	}, zap.NewNop())
	h := auth.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/stats/overview", nil)
	req.Header.Set(AuthHeaderName, "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRejectsWrongKey(t *testing.T) {
	auth := NewAuthMiddleware(config.AuthConfig{
		Enabled:   true,
		MasterKey: "secret",
	}, zap.NewNop())
	h := auth.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/stats/overview", nil)
	req.Header.Set(AuthHeaderName, "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRateLimitRejectsAfterBurst(t *testing.T) {
	rl := NewRateLimitMiddleware(config.RateLimitConfig{
		Enabled:    true,
		TrackRPS:   1,
		TrackBurst: 2,
		StatsRPS:   1,
		StatsBurst: 2,
	}, zap.NewNop())
	h := rl.Handler(okHandler())

	var rejected int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/track/analytics", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			rejected++
		}
	}

	if rejected == 0 {
		t.Error("expected rejections once the burst was exhausted")
	}
}

func TestRateLimitBudgetsAreIndependent(t *testing.T) {
	rl := NewRateLimitMiddleware(config.RateLimitConfig{
		Enabled:    true,
		TrackRPS:   1,
		TrackBurst: 1,
		StatsRPS:   1,
		StatsBurst: 5,
	}, zap.NewNop())
	h := rl.Handler(okHandler())

	// Exhaust the track budget.
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/track/analytics", nil)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/stats/overview", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("stats request hit the track budget: status = %d", rec.Code)
	}
}

func TestRecoveryConvertsPanicTo500(t *testing.T) {
	recov := NewRecoveryMiddleware(zap.NewNop())
	h := recov.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestNewLoggerHonorsLevelAndFormat(t *testing.T) {
	cases := []struct {
		level   string
		format  string
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"debug", "json", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"warn", "console", zapcore.WarnLevel, zapcore.InfoLevel},
		{"bogus", "json", zapcore.InfoLevel, zapcore.DebugLevel},
	}

	for _, tc := range cases {
		logger, err := NewLogger(tc.level, tc.format)
		if err != nil {
			t.Fatalf("NewLogger(%q, %q) failed: %v", tc.level, tc.format, err)
		}
		if !logger.Core().Enabled(tc.enabled) {
			t.Errorf("NewLogger(%q, %q): level %v should be enabled", tc.level, tc.format, tc.enabled)
		}
		if logger.Core().Enabled(tc.muted) {
			t.Errorf("NewLogger(%q, %q): level %v should be muted", tc.level, tc.format, tc.muted)
		}
		logger.Sync()
	}
}

func TestGetClientIPHandlesIPv6RemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:80"

	if ip := GetClientIP(req); ip != "::1" {
		t.Errorf("ip = %q, want ::1", ip)
	}

	req.RemoteAddr = "10.0.0.9"
	if ip := GetClientIP(req); ip != "10.0.0.9" {
		t.Errorf("portless address mangled: %q", ip)
	}
}

func TestGetClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")

	if ip := GetClientIP(req); ip != "203.0.113.7" {
		t.Errorf("ip = %q, want 203.0.113.7", ip)
	}

	req.Header.Del("X-Forwarded-For")
	if ip := GetClientIP(req); ip != "10.0.0.1" {
		t.Errorf("ip = %q, want 10.0.0.1", ip)
	}
}
