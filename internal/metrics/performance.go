package metrics

import (
	"fmt"

	"siteauditor/internal/model"
)

// Performance evaluators score what the crawl observed about page delivery:
// transfer weight, referenced resource counts, redirect chains and caching
// headers.

const (
	// pageWeightScale is the body size that maps to a zero page-weight score.
	pageWeightScale = 1 << 20 // 1 MiB
	heavyPageBytes  = 512 << 10
	resourceBudget  = 30
)

type pageWeight struct{}

func (pageWeight) Name() string             { return "page_weight" }
func (pageWeight) Category() model.Category { return model.CategoryPerformance }

func (w pageWeight) Evaluate(pages []model.PageRecord, _ model.CrawlTarget) model.MetricResult {
	var findings []model.Finding
	totalBytes, counted := 0, 0

	for i := range pages {
		rec := &pages[i]
		if rec.Probe || !rec.Fetched() {
			continue
		}
		counted++
		totalBytes += len(rec.Body)
		if len(rec.Body) > heavyPageBytes {
			findings = append(findings, model.Finding{
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("page weighs %d KB", len(rec.Body)/1024),
				URL:      rec.URL,
			})
		}
	}
	if counted == 0 {
		return noPagesResult(w.Name(), w.Category())
	}

	avg := totalBytes / counted
	score := clampScore(100 - avg*100/pageWeightScale)
	return model.MetricResult{Metric: w.Name(), Category: w.Category(), Score: score, Findings: findings}
}

type resourceCount struct{}

func (resourceCount) Name() string             { return "resource_count" }
func (resourceCount) Category() model.Category { return model.CategoryPerformance }

func (r resourceCount) Evaluate(pages []model.PageRecord, _ model.CrawlTarget) model.MetricResult {
	docs := htmlPages(pages)
	if len(docs) == 0 {
		return noPagesResult(r.Name(), r.Category())
	}

	var findings []model.Finding
	total := 0
	for _, p := range docs {
		n := len(p.rec.Resources)
		total += n
		if n > 2*resourceBudget {
			findings = append(findings, model.Finding{
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("page references %d resources", n),
				URL:      p.rec.URL,
			})
		}
	}

	avg := total / len(docs)
	score := 100
	if avg > resourceBudget {
		score = 100 - 2*(avg-resourceBudget)
	}
	return model.MetricResult{Metric: r.Name(), Category: r.Category(), Score: clampScore(score), Findings: findings}
}

type redirectChains struct{}

func (redirectChains) Name() string             { return "redirect_chains" }
func (redirectChains) Category() model.Category { return model.CategoryPerformance }

func (r redirectChains) Evaluate(pages []model.PageRecord, _ model.CrawlTarget) model.MetricResult {
	var findings []model.Finding
	counted, redirected := 0, 0

	for i := range pages {
		rec := &pages[i]
		if rec.Probe || !rec.Fetched() {
			continue
		}
		counted++
		if rec.Status == model.FetchRedirected {
			redirected++
			findings = append(findings, model.Finding{
				Severity: model.SeverityInfo,
				Message:  fmt.Sprintf("redirected to %s", rec.FinalURL),
				URL:      rec.URL,
			})
		}
	}
	if counted == 0 {
		return noPagesResult(r.Name(), r.Category())
	}

	score := clampScore(100 - 10*redirected)
	return model.MetricResult{Metric: r.Name(), Category: r.Category(), Score: score, Findings: findings}
}

type cachingHeaders struct{}

func (cachingHeaders) Name() string             { return "caching_headers" }
func (cachingHeaders) Category() model.Category { return model.CategoryPerformance }

func (c cachingHeaders) Evaluate(pages []model.PageRecord, _ model.CrawlTarget) model.MetricResult {
	var findings []model.Finding
	counted, cached := 0, 0

	for i := range pages {
		rec := &pages[i]
		if rec.Probe || !rec.Fetched() || rec.Header == nil {
			continue
		}
		counted++
		if rec.Header.Get("Cache-Control") != "" || rec.Header.Get("ETag") != "" {
			cached++
		} else {
			findings = append(findings, model.Finding{
				Severity: model.SeverityInfo,
				Message:  "response has no Cache-Control or ETag header",
				URL:      rec.URL,
			})
		}
	}
	if counted == 0 {
		return noPagesResult(c.Name(), c.Category())
	}

	score := cached * 100 / counted
	return model.MetricResult{Metric: c.Name(), Category: c.Category(), Score: clampScore(score), Findings: findings}
}
