// Package ingest applies accepted tracking events to the aggregate
// counters.
package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/radiusdt/vector-analytics/internal/geo"
	"github.com/radiusdt/vector-analytics/internal/metrics"
	"github.com/radiusdt/vector-analytics/internal/models"
	"github.com/radiusdt/vector-analytics/internal/storage"
	"go.uber.org/zap"
)

// Service validates incoming events and fans their contributions out to
// the counter surfaces. Only the daily rollup failure fails the call;
// traffic sources, article counters, the realtime mirror and the archive
// are best-effort so one broken surface never drops the event.
type Service struct {
	store    storage.AggregateStore
	realtime *storage.RealtimeCounters
	archive  *storage.EventArchive
	geo      *geo.Resolver
	metrics  *metrics.Metrics
	siteHost string
	logger   *zap.Logger
	now      func() time.Time
}

// Options carries the optional collaborators of the service. Any nil
// field disables the corresponding surface.
type Options struct {
	Realtime *storage.RealtimeCounters
	Archive  *storage.EventArchive
	Geo      *geo.Resolver
	Metrics  *metrics.Metrics
}

// NewService creates the ingestion service. siteOrigin is the site's own
// origin; referrers from the same host are internal navigation and are
// not counted as traffic sources.
func NewService(store storage.AggregateStore, siteOrigin string, opts Options, logger *zap.Logger) *Service {
	siteHost := ""
	if u, err := url.Parse(siteOrigin); err == nil {
		siteHost = u.Hostname()
	}

	return &Service{
		store:    store,
		realtime: opts.Realtime,
		archive:  opts.Archive,
		geo:      opts.Geo,
		metrics:  opts.Metrics,
		siteHost: siteHost,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest processes one page event. A validation failure mutates nothing
// and returns a *models.ValidationError; a daily rollup failure returns
// an error with no claim about the other surfaces.
func (s *Service) Ingest(ctx context.Context, ev *models.PageEvent, clientIP string) error {
	start := time.Now()

	if err := ev.Validate(); err != nil {
		if s.metrics != nil {
			s.metrics.ValidationFailures.Inc()
		}
		return err
	}

	date := models.DateKey(s.now())

	mut := storage.PageViewMutation{
		NewVisitor:   ev.IsNewVisitor,
		DwellSeconds: ev.TimeSpent,
	}
	if err := s.store.ApplyPageView(ctx, date, mut); err != nil {
		s.countMutationError("daily")
		return fmt.Errorf("failed to update daily rollup: %w", err)
	}

	if source := s.externalSource(ev.Referrer); source != "" {
		if err := s.store.IncrementSource(ctx, date, source); err != nil {
			s.countMutationError("sources")
			s.logger.Warn("traffic source update failed",
				zap.String("source", source),
				zap.Error(err),
			)
		}
	}

	if ev.ArticleID != "" {
		if err := s.store.IncrementArticleViews(ctx, ev.ArticleID); err != nil {
			s.countMutationError("articles")
			s.logger.Warn("article view update failed",
				zap.String("article_id", ev.ArticleID),
				zap.Error(err),
			)
		}
	}

	if s.realtime != nil {
		if err := s.realtime.RecordPageView(ctx, date, ev.IsNewVisitor); err != nil {
			s.countMutationError("realtime")
			s.logger.Warn("realtime mirror update failed", zap.Error(err))
		}
	}

	if s.archive != nil {
		country := ""
		if s.geo != nil && clientIP != "" {
			country = s.geo.Country(clientIP)
		}
		if err := s.archive.Archive(ctx, ev, country); err != nil {
			s.countMutationError("archive")
			s.logger.Warn("event archive failed", zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.EventsIngested.WithLabelValues("page").Inc()
		s.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}

	s.logger.Debug("event ingested",
		zap.String("session_id", ev.SessionID),
		zap.String("path", ev.Path),
		zap.Bool("new_visitor", ev.IsNewVisitor),
	)
	return nil
}

// IngestKeyword counts one site-search keyword for today. Keywords are
// lowercased and trimmed before counting so casing variants share a row.
func (s *Service) IngestKeyword(ctx context.Context, ev *models.KeywordEvent) error {
	normalized := models.KeywordEvent{Keyword: strings.ToLower(strings.TrimSpace(ev.Keyword))}
	if err := normalized.Validate(); err != nil {
		if s.metrics != nil {
			s.metrics.ValidationFailures.Inc()
		}
		return err
	}

	date := models.DateKey(s.now())

	if err := s.store.IncrementKeyword(ctx, date, normalized.Keyword); err != nil {
		s.countMutationError("keywords")
		return fmt.Errorf("failed to update keyword counter: %w", err)
	}

	if s.metrics != nil {
		s.metrics.EventsIngested.WithLabelValues("keyword").Inc()
	}
	return nil
}

// externalSource extracts the referrer hostname, or "" when the event
// has no referrer, the referrer is unparseable, or it points at the
// site itself.
func (s *Service) externalSource(referrer string) string {
	if referrer == "" {
		return ""
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := u.Hostname()
	if s.siteHost != "" && host == s.siteHost {
		return ""
	}
	return host
}

func (s *Service) countMutationError(group string) {
	if s.metrics != nil {
		s.metrics.MutationErrors.WithLabelValues(group).Inc()
	}
}
