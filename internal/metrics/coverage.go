package metrics

import (
	"fmt"
	"net/url"
	"strings"

	"siteauditor/internal/crawler"
	"siteauditor/internal/model"
)

// Coverage evaluators judge crawlability and site health: robots.txt/sitemap
// presence, how many attempted pages broke, HTTPS consistency and internal
// link health.

type robotsSitemap struct{}

func (robotsSitemap) Name() string             { return "robots_sitemap" }
func (robotsSitemap) Category() model.Category { return model.CategoryCoverage }

func (r robotsSitemap) Evaluate(pages []model.PageRecord, target model.CrawlTarget) model.MetricResult {
	hasRobots, hasSitemap := false, false
	for i := range pages {
		rec := &pages[i]
		if !rec.Probe || !rec.Fetched() {
			continue
		}
		if strings.HasSuffix(rec.URL, "/robots.txt") {
			hasRobots = true
		}
		if strings.HasSuffix(rec.URL, "/sitemap.xml") {
			hasSitemap = true
		}
	}

	var findings []model.Finding
	score := 0
	if hasRobots {
		score += 50
	} else {
		findings = append(findings, model.Finding{
			Severity: model.SeverityWarning,
			Message:  "no robots.txt found",
			URL:      target.Root.String(),
		})
	}
	if hasSitemap {
		score += 50
	} else {
		findings = append(findings, model.Finding{
			Severity: model.SeverityWarning,
			Message:  "no sitemap.xml found",
			URL:      target.Root.String(),
		})
	}

	return model.MetricResult{Metric: r.Name(), Category: r.Category(), Score: score, Findings: findings}
}

type brokenLinks struct{}

func (brokenLinks) Name() string             { return "broken_links" }
func (brokenLinks) Category() model.Category { return model.CategoryCoverage }

func (b brokenLinks) Evaluate(pages []model.PageRecord, _ model.CrawlTarget) model.MetricResult {
	var findings []model.Finding
	attempted, broken := 0, 0

	for i := range pages {
		rec := &pages[i]
		if rec.Probe {
			continue
		}
		attempted++
		if !rec.Fetched() {
			broken++
			msg := "page could not be fetched"
			if rec.StatusCode != 0 {
				msg = fmt.Sprintf("page returned HTTP %d", rec.StatusCode)
			}
			findings = append(findings, model.Finding{
				Severity: model.SeverityCritical,
				Message:  msg,
				URL:      rec.URL,
			})
		}
	}
	if attempted == 0 {
		return noPagesResult(b.Name(), b.Category())
	}

	score := clampScore(100 - broken*100/attempted)
	return model.MetricResult{Metric: b.Name(), Category: b.Category(), Score: score, Findings: findings}
}

type httpsConsistency struct{}

func (httpsConsistency) Name() string             { return "https_consistency" }
func (httpsConsistency) Category() model.Category { return model.CategoryCoverage }

func (h httpsConsistency) Evaluate(pages []model.PageRecord, target model.CrawlTarget) model.MetricResult {
	if target.Root.Scheme != "https" {
		return model.MetricResult{
			Metric:   h.Name(),
			Category: h.Category(),
			Score:    40,
			Findings: []model.Finding{{
				Severity: model.SeverityWarning,
				Message:  "target is not served over HTTPS",
				URL:      target.Root.String(),
			}},
		}
	}

	var findings []model.Finding
	counted, insecurePages, insecureLinks := 0, 0, 0

	for i := range pages {
		rec := &pages[i]
		if rec.Probe || !rec.Fetched() {
			continue
		}
		counted++
		if strings.HasPrefix(rec.FinalURL, "http://") {
			insecurePages++
			findings = append(findings, model.Finding{
				Severity: model.SeverityWarning,
				Message:  "page served over plain HTTP on an HTTPS site",
				URL:      rec.FinalURL,
			})
		}
		for _, link := range rec.Links {
			if u, err := url.Parse(link); err == nil &&
				u.Scheme == "http" && crawler.InScope(u, target.Domain) {
				insecureLinks++
			}
		}
	}
	if counted == 0 {
		return noPagesResult(h.Name(), h.Category())
	}
	if insecureLinks > 0 {
		findings = append(findings, model.Finding{
			Severity: model.SeverityInfo,
			Message:  fmt.Sprintf("%d internal links use http:// on an HTTPS site", insecureLinks),
		})
	}

	score := clampScore(100 - 10*insecurePages - insecureLinks)
	return model.MetricResult{Metric: h.Name(), Category: h.Category(), Score: score, Findings: findings}
}

type internalLinkHealth struct{}

func (internalLinkHealth) Name() string             { return "internal_link_health" }
func (internalLinkHealth) Category() model.Category { return model.CategoryCoverage }

func (l internalLinkHealth) Evaluate(pages []model.PageRecord, target model.CrawlTarget) model.MetricResult {
	failed := make(map[string]struct{})
	for i := range pages {
		rec := &pages[i]
		if rec.Probe || rec.Fetched() {
			continue
		}
		if u, err := url.Parse(rec.URL); err == nil {
			failed[crawler.NormalizeURL(u)] = struct{}{}
		}
	}

	var findings []model.Finding
	counted, brokenRefs := 0, 0

	for i := range pages {
		rec := &pages[i]
		if rec.Probe || !rec.Fetched() {
			continue
		}
		counted++
		for _, link := range rec.Links {
			u, err := url.Parse(link)
			if err != nil || !crawler.InScope(u, target.Domain) {
				continue
			}
			if _, bad := failed[crawler.NormalizeURL(u)]; bad {
				brokenRefs++
				findings = append(findings, model.Finding{
					Severity: model.SeverityWarning,
					Message:  fmt.Sprintf("links to broken page %s", link),
					URL:      rec.URL,
				})
			}
		}
	}
	if counted == 0 {
		return noPagesResult(l.Name(), l.Category())
	}

	score := clampScore(100 - 5*brokenRefs)
	return model.MetricResult{Metric: l.Name(), Category: l.Category(), Score: score, Findings: findings}
}
