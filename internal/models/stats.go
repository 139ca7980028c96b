package models

import "time"

// DailyStats is the per-day rollup row. Rows are created on the first
// event of a day and only ever incremented afterwards.
type DailyStats struct {
	Date           string  `json:"date"`
	UniqueVisitors int64   `json:"unique_visitors"`
	PageViews      int64   `json:"page_views"`
	AvgTimeSeconds int64   `json:"avg_time_seconds"`
	BounceRate     float64 `json:"bounce_rate"`
}

// SourceCount is the per-(day, referrer host) rollup row.
type SourceCount struct {
	Date     string `json:"date"`
	Source   string `json:"source"`
	Visitors int64  `json:"visitors"`
}

// KeywordCount is the per-(day, keyword) rollup row.
type KeywordCount struct {
	Date    string `json:"date"`
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}

// Article carries the engagement counters attached to an article.
// Likes and shares are written by other parts of the site; this service
// only increments views and reads the rest.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category,omitempty"`
	Views       int64     `json:"views"`
	Likes       int64     `json:"likes"`
	Shares      int64     `json:"shares"`
	PublishedAt time.Time `json:"published_at"`
}

// ArchivedEvent is the raw event row appended to the ClickHouse archive.
type ArchivedEvent struct {
	ID           string
	Timestamp    time.Time
	SessionID    string
	Path         string
	Referrer     string
	ArticleID    string
	TimeSpent    int64
	IsNewVisitor bool
	GeoCountry   string
}
