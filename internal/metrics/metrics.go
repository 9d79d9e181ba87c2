package metrics

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"siteauditor/internal/model"
)

// Evaluator is one independent scoring unit. Implementations must be
// stateless and must not mutate the page records; order of execution across
// evaluators is unspecified.
type Evaluator interface {
	Name() string
	Category() model.Category
	Evaluate(pages []model.PageRecord, target model.CrawlTarget) model.MetricResult
}

// DefaultRegistry returns the built-in metric catalog. The slice is
// constructed fresh on every call so callers can append or remove evaluators
// without touching the crawler or the aggregator.
func DefaultRegistry() []Evaluator {
	return []Evaluator{
		titleTags{},
		metaDescriptions{},
		headingStructure{},
		imageAltText{},
		duplicateContent{},
		pageWeight{},
		resourceCount{},
		redirectChains{},
		cachingHeaders{},
		robotsSitemap{},
		brokenLinks{},
		httpsConsistency{},
		internalLinkHealth{},
	}
}

// RunAll evaluates every registered metric in parallel over the collected
// page set. A failing evaluator is isolated: its result is replaced with a
// zero-score placeholder carrying an error finding and the others proceed.
func RunAll(registry []Evaluator, pages []model.PageRecord, target model.CrawlTarget) []model.MetricResult {
	results := make([]model.MetricResult, len(registry))

	var wg sync.WaitGroup
	for i, ev := range registry {
		wg.Add(1)
		go func(i int, ev Evaluator) {
			defer wg.Done()
			results[i] = safeEvaluate(ev, pages, target)
		}(i, ev)
	}
	wg.Wait()

	return results
}

func safeEvaluate(ev Evaluator, pages []model.PageRecord, target model.CrawlTarget) (res model.MetricResult) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Evaluator %s failed: %v", ev.Name(), r)
			res = model.MetricResult{
				Metric:   ev.Name(),
				Category: ev.Category(),
				Score:    0,
				Findings: []model.Finding{{
					Severity: model.SeverityCritical,
					Message:  fmt.Sprintf("metric evaluation failed: %v", r),
				}},
			}
		}
	}()
	return ev.Evaluate(pages, target)
}

// pageDoc pairs a successfully fetched HTML page with its parsed document.
type pageDoc struct {
	rec *model.PageRecord
	doc *goquery.Document
}

// htmlPages parses every successfully fetched, non-probe HTML page once.
func htmlPages(pages []model.PageRecord) []pageDoc {
	var docs []pageDoc
	for i := range pages {
		rec := &pages[i]
		if rec.Probe || !rec.Fetched() {
			continue
		}
		if !strings.Contains(rec.ContentType, "text/html") {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rec.Body))
		if err != nil {
			continue
		}
		docs = append(docs, pageDoc{rec: rec, doc: doc})
	}
	return docs
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// noPagesResult is the uniform output when nothing usable was crawled.
func noPagesResult(name string, cat model.Category) model.MetricResult {
	return model.MetricResult{
		Metric:   name,
		Category: cat,
		Score:    0,
		Findings: []model.Finding{{
			Severity: model.SeverityWarning,
			Message:  "no pages available for evaluation",
		}},
	}
}
