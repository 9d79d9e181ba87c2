package model

import (
	"net/http"
	"net/url"
	"time"
)

// Category groups metrics for the report breakdown.
type Category string

const (
	CategoryOnPage      Category = "on-page"
	CategoryPerformance Category = "performance"
	CategoryCoverage    Category = "coverage"
)

// Categories lists every known category in a fixed order.
var Categories = []Category{CategoryOnPage, CategoryPerformance, CategoryCoverage}

// Severity ranks a finding. Higher values sort first in the report.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Finding is a single issue surfaced by a metric evaluator.
type Finding struct {
	Metric   string   `json:"metric,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	URL      string   `json:"url,omitempty"`
}

// MetricResult is the output of one evaluator over the crawled page set.
// Immutable once produced.
type MetricResult struct {
	Metric   string    `json:"metric"`
	Category Category  `json:"category"`
	Score    int       `json:"score"` // 0-100
	Findings []Finding `json:"findings,omitempty"`
}

// FetchStatus classifies the outcome of fetching one URL.
type FetchStatus string

const (
	FetchOK         FetchStatus = "ok"
	FetchRedirected FetchStatus = "redirected"
	FetchTimeout    FetchStatus = "timeout"
	FetchError      FetchStatus = "error"
)

// PageRecord holds everything the crawler learned about one URL. Owned by the
// crawler for the audit's lifetime; evaluators must treat it as read-only.
type PageRecord struct {
	URL         string
	FinalURL    string
	Status      FetchStatus
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
	Links       []string // absolute in-document anchors
	Resources   []string // images, scripts, stylesheets referenced by the page
	Latency     time.Duration
	Depth       int
	// Probe marks auxiliary fetches (robots.txt, sitemap.xml) that are
	// recorded for evaluators but excluded from crawl statistics.
	Probe bool
}

// Fetched reports whether the page produced usable content.
func (p *PageRecord) Fetched() bool {
	return p.Status == FetchOK || p.Status == FetchRedirected
}

// CrawlTarget describes one audit's crawl scope. Created once per audit,
// immutable.
type CrawlTarget struct {
	Root     *url.URL
	Domain   string // registrable domain derived from Root
	MaxPages int
	MaxDepth int
}

// CrawlStats summarizes crawl completeness for confidence scoring.
type CrawlStats struct {
	Attempted    int
	Fetched      int
	StatusCounts map[int]int
	Aborted      bool
	Duration     time.Duration
}

// AuditReport is the final aggregated result of one audit. Built once, at
// audit completion, immutable thereafter.
type AuditReport struct {
	URL          string           `json:"url"`
	OverallScore int              `json:"overall_score"`
	Grade        string           `json:"grade"`
	Breakdown    map[Category]int `json:"breakdown"`
	Confidence   int              `json:"confidence"`
	Findings     []Finding        `json:"findings"`
	PagesCrawled int              `json:"pages_crawled"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// EventKind tags a ProgressEvent variant.
type EventKind int

const (
	EventCrawlProgress EventKind = iota
	EventStatus
	EventFinished
	EventError
)

// ProgressEvent is one item on an audit's progress stream. Exactly one
// Finished or Error event terminates the stream.
type ProgressEvent struct {
	AuditID  string
	Kind     EventKind
	Fraction float64      // EventCrawlProgress
	Status   string       // EventStatus
	Report   *AuditReport // EventFinished
	Err      string       // EventError
}

// Terminal reports whether the event ends the stream.
func (e ProgressEvent) Terminal() bool {
	return e.Kind == EventFinished || e.Kind == EventError
}
