package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/radiusdt/vector-analytics/internal/config"
	"github.com/radiusdt/vector-analytics/internal/database"
	"github.com/radiusdt/vector-analytics/internal/geo"
	"github.com/radiusdt/vector-analytics/internal/ingest"
	"github.com/radiusdt/vector-analytics/internal/metrics"
	"github.com/radiusdt/vector-analytics/internal/middleware"
	"github.com/radiusdt/vector-analytics/internal/models"
	"github.com/radiusdt/vector-analytics/internal/stats"
	"github.com/radiusdt/vector-analytics/internal/storage"
	"go.uber.org/zap"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB      *database.PostgresDB
	Redis   *database.RedisDB
	Archive *database.ClickHouseDB
	Geo     *geo.Resolver
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server wraps HTTP handlers and the analytics services.
type Server struct {
	ingestService *ingest.Service
	statsService  *stats.Service
	logger        *zap.Logger
	config        *config.Config
	metrics       *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	// Initialize the aggregate store
	var store storage.AggregateStore
	var articles storage.ArticleRepo

	if deps.DB != nil {
		store = storage.NewPostgresAggregateStore(deps.DB.Pool)
		articles = storage.NewPostgresArticleRepo(deps.DB.Pool)
	} else {
		memStore := storage.NewInMemoryAggregateStore()
		store = memStore
		articles = memStore
	}

	// Realtime mirror
	var realtime *storage.RealtimeCounters
	if deps.Redis != nil {
		realtime = storage.NewRealtimeCounters(deps.Redis.Client, deps.Logger)
	}

	// Raw event archive
	var archive *storage.EventArchive
	if deps.Archive != nil {
		archive = storage.NewEventArchive(deps.Archive.Conn, deps.Logger)
	}

	ingestSvc := ingest.NewService(store, deps.Config.Tracking.SiteOrigin, ingest.Options{
		Realtime: realtime,
		Archive:  archive,
		Geo:      deps.Geo,
		Metrics:  deps.Metrics,
	}, deps.Logger)

	statsSvc := stats.NewService(store, articles, realtime, deps.Logger)

	s := &Server{
		ingestService: ingestSvc,
		statsService:  statsSvc,
		logger:        deps.Logger,
		config:        deps.Config,
		metrics:       deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Tracking endpoints
	mux.HandleFunc("/track/analytics", s.handleTrackAnalytics)
	mux.HandleFunc("/track/keyword", s.handleTrackKeyword)

	// Dashboard read endpoints
	mux.HandleFunc("/stats/overview", s.handleOverview)
	mux.HandleFunc("/stats/traffic", s.handleTraffic)
	mux.HandleFunc("/stats/sources", s.handleSources)
	mux.HandleFunc("/stats/keywords", s.handleKeywords)
	mux.HandleFunc("/stats/articles", s.handleArticles)
	mux.HandleFunc("/stats/realtime", s.handleRealtime)

	return mux
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Tracking ----

func (s *Server) handleTrackAnalytics(w http.ResponseWriter, r *http.Request) {
	s.corsHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev models.PageEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.ingestService.Ingest(r.Context(), &ev, middleware.GetClientIP(r)); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			s.errorResponse(w, verr.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("ingest error", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, map[string]bool{"success": true})
}

func (s *Server) handleTrackKeyword(w http.ResponseWriter, r *http.Request) {
	s.corsHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev models.KeywordEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.ingestService.IngestKeyword(r.Context(), &ev); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			s.errorResponse(w, verr.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("keyword ingest error", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, map[string]bool{"success": true})
}

// ---- Dashboard Reads ----

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ov, err := s.statsService.Overview(r.Context())
	if err != nil {
		s.logger.Error("failed to build overview", zap.Error(err))
		s.errorResponse(w, "failed to build overview", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, ov)
}

func (s *Server) handleTraffic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rows, err := s.statsService.Traffic(r.Context(), s.daysParam(r, 7))
	if err != nil {
		s.logger.Error("failed to get traffic", zap.Error(err))
		s.errorResponse(w, "failed to get traffic", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []models.DailyStats{}
	}
	s.jsonResponse(w, rows)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	shares, err := s.statsService.Sources(r.Context(), s.daysParam(r, 30))
	if err != nil {
		s.logger.Error("failed to get sources", zap.Error(err))
		s.errorResponse(w, "failed to get sources", http.StatusInternalServerError)
		return
	}
	if shares == nil {
		shares = []stats.SourceShare{}
	}
	s.jsonResponse(w, shares)
}

func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	shares, err := s.statsService.Keywords(r.Context(), s.daysParam(r, 30))
	if err != nil {
		s.logger.Error("failed to get keywords", zap.Error(err))
		s.errorResponse(w, "failed to get keywords", http.StatusInternalServerError)
		return
	}
	if shares == nil {
		shares = []stats.KeywordShare{}
	}
	s.jsonResponse(w, shares)
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	articles, err := s.statsService.Articles(r.Context())
	if err != nil {
		s.logger.Error("failed to list articles", zap.Error(err))
		s.errorResponse(w, "failed to list articles", http.StatusInternalServerError)
		return
	}
	if articles == nil {
		articles = []*models.Article{}
	}
	s.jsonResponse(w, articles)
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := s.statsService.Realtime(r.Context())
	if err != nil {
		s.logger.Error("failed to get realtime counters", zap.Error(err))
		s.errorResponse(w, "failed to get realtime counters", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, snap)
}

// ---- Helper Methods ----

func (s *Server) daysParam(r *http.Request, def int) int {
	v := r.URL.Query().Get("days")
	if v == "" {
		return def
	}
	days, err := strconv.Atoi(v)
	if err != nil || days < 1 {
		return def
	}
	if days > 365 {
		return 365
	}
	return days
}

func (s *Server) corsHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
