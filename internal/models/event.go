package models

import (
	"fmt"
	"regexp"
	"time"
)

// ArticlePathPattern matches article detail routes and captures the article id.
var ArticlePathPattern = regexp.MustCompile(`/article/([a-f0-9-]+)`)

// PageEvent is the payload a client sends for both enter and exit signals.
// Exit events additionally carry TimeSpent; enter events leave it nil.
type PageEvent struct {
	SessionID    string `json:"sessionId"`
	Path         string `json:"path"`
	Referrer     string `json:"referrer"`
	ArticleID    string `json:"articleId,omitempty"`
	TimeSpent    *int   `json:"timeSpent,omitempty"`
	IsNewVisitor bool   `json:"isNewVisitor"`
}

// ValidationError describes a rejected payload. Rejections never mutate state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: field %q %s", e.Field, e.Reason)
}

// Validate checks the required fields of an event payload.
func (e *PageEvent) Validate() error {
	if e.SessionID == "" {
		return &ValidationError{Field: "sessionId", Reason: "is required"}
	}
	if e.Path == "" {
		return &ValidationError{Field: "path", Reason: "is required"}
	}
	if e.TimeSpent != nil && *e.TimeSpent < 0 {
		return &ValidationError{Field: "timeSpent", Reason: "must not be negative"}
	}
	return nil
}

// ExtractArticleID returns the article id captured from an article detail
// path, or empty when the path is not an article route.
func ExtractArticleID(path string) string {
	m := ArticlePathPattern.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}

// KeywordEvent is the external search-keyword signal accumulated per day.
type KeywordEvent struct {
	Keyword string `json:"keyword"`
}

// Validate checks the keyword payload.
func (e *KeywordEvent) Validate() error {
	if e.Keyword == "" {
		return &ValidationError{Field: "keyword", Reason: "is required"}
	}
	return nil
}

// DateKey formats a timestamp as the calendar-date key used by every
// aggregate surface.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
