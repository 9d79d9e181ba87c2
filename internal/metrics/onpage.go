package metrics

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"siteauditor/internal/model"
)

// On-page evaluators inspect the HTML of each crawled page: titles, meta
// descriptions, heading structure, alt-text coverage and duplicate content.

const (
	titleMaxLen = 60
	titleMinLen = 10
	metaMaxLen  = 160
)

type titleTags struct{}

func (titleTags) Name() string             { return "title_tags" }
func (titleTags) Category() model.Category { return model.CategoryOnPage }

func (t titleTags) Evaluate(pages []model.PageRecord, _ model.CrawlTarget) model.MetricResult {
	docs := htmlPages(pages)
	if len(docs) == 0 {
		return noPagesResult(t.Name(), t.Category())
	}

	var findings []model.Finding
	missing, long, short := 0, 0, 0
	byTitle := make(map[string][]string)

	for _, p := range docs {
		title := strings.TrimSpace(p.doc.Find("title").First().Text())
		switch {
		case title == "":
			missing++
			findings = append(findings, model.Finding{
				Severity: model.SeverityCritical,
				Message:  "page has no <title> tag",
				URL:      p.rec.URL,
			})
		case len(title) > titleMaxLen:
			long++
			findings = append(findings, model.Finding{
				Severity: model.SeverityInfo,
				Message:  fmt.Sprintf("title is %d characters, longer than %d", len(title), titleMaxLen),
				URL:      p.rec.URL,
			})
		case len(title) < titleMinLen:
			short++
			findings = append(findings, model.Finding{
				Severity: model.SeverityInfo,
				Message:  fmt.Sprintf("title is %d characters, shorter than %d", len(title), titleMinLen),
				URL:      p.rec.URL,
			})
		}
		if title != "" {
			byTitle[title] = append(byTitle[title], p.rec.URL)
		}
	}

	// Group keys are sorted so findings come out in the same order every run.
	var dupTitles []string
	for title, urls := range byTitle {
		if len(urls) > 1 {
			dupTitles = append(dupTitles, title)
		}
	}
	sort.Strings(dupTitles)
	for _, title := range dupTitles {
		urls := byTitle[title]
		findings = append(findings, model.Finding{
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("title %q shared by %d pages", title, len(urls)),
			URL:      urls[0],
		})
	}
	dupGroups := len(dupTitles)

	score := clampScore(100 - 15*missing - 10*dupGroups - 3*long - 3*short)
	return model.MetricResult{Metric: t.Name(), Category: t.Category(), Score: score, Findings: findings}
}

type metaDescriptions struct{}

func (metaDescriptions) Name() string             { return "meta_descriptions" }
func (metaDescriptions) Category() model.Category { return model.CategoryOnPage }

func (m metaDescriptions) Evaluate(pages []model.PageRecord, _ model.CrawlTarget) model.MetricResult {
	docs := htmlPages(pages)
	if len(docs) == 0 {
		return noPagesResult(m.Name(), m.Category())
	}

	var findings []model.Finding
	missing, long := 0, 0
	byDesc := make(map[string][]string)

	for _, p := range docs {
		desc, _ := p.doc.Find(`meta[name="description"]`).First().Attr("content")
		desc = strings.TrimSpace(desc)
		if desc == "" {
			missing++
			findings = append(findings, model.Finding{
				Severity: model.SeverityWarning,
				Message:  "page has no meta description",
				URL:      p.rec.URL,
			})
			continue
		}
		if len(desc) > metaMaxLen {
			long++
			findings = append(findings, model.Finding{
				Severity: model.SeverityInfo,
				Message:  fmt.Sprintf("meta description is %d characters, longer than %d", len(desc), metaMaxLen),
				URL:      p.rec.URL,
			})
		}
		byDesc[desc] = append(byDesc[desc], p.rec.URL)
	}

	var dupDescs []string
	for desc, urls := range byDesc {
		if len(urls) > 1 {
			dupDescs = append(dupDescs, desc)
		}
	}
	sort.Strings(dupDescs)
	for _, desc := range dupDescs {
		urls := byDesc[desc]
		findings = append(findings, model.Finding{
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("meta description shared by %d pages", len(urls)),
			URL:      urls[0],
		})
	}
	dupGroups := len(dupDescs)

	score := clampScore(100 - 10*missing - 8*dupGroups - 2*long)
	return model.MetricResult{Metric: m.Name(), Category: m.Category(), Score: score, Findings: findings}
}

type headingStructure struct{}

func (headingStructure) Name() string             { return "heading_structure" }
func (headingStructure) Category() model.Category { return model.CategoryOnPage }

func (h headingStructure) Evaluate(pages []model.PageRecord, _ model.CrawlTarget) model.MetricResult {
	docs := htmlPages(pages)
	if len(docs) == 0 {
		return noPagesResult(h.Name(), h.Category())
	}

	var findings []model.Finding
	missingH1, multiH1 := 0, 0

	for _, p := range docs {
		switch n := p.doc.Find("h1").Length(); {
		case n == 0:
			missingH1++
			findings = append(findings, model.Finding{
				Severity: model.SeverityWarning,
				Message:  "page has no <h1> heading",
				URL:      p.rec.URL,
			})
		case n > 1:
			multiH1++
			findings = append(findings, model.Finding{
				Severity: model.SeverityInfo,
				Message:  fmt.Sprintf("page has %d <h1> headings", n),
				URL:      p.rec.URL,
			})
		}
	}

	score := clampScore(100 - 10*missingH1 - 5*multiH1)
	return model.MetricResult{Metric: h.Name(), Category: h.Category(), Score: score, Findings: findings}
}

type imageAltText struct{}

func (imageAltText) Name() string             { return "image_alt_text" }
func (imageAltText) Category() model.Category { return model.CategoryOnPage }

func (i imageAltText) Evaluate(pages []model.PageRecord, _ model.CrawlTarget) model.MetricResult {
	docs := htmlPages(pages)
	if len(docs) == 0 {
		return noPagesResult(i.Name(), i.Category())
	}

	var findings []model.Finding
	total, withAlt := 0, 0

	for _, p := range docs {
		pageMissing := 0
		p.doc.Find("img").Each(func(_ int, s *goquery.Selection) {
			total++
			if alt, ok := s.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
				withAlt++
			} else {
				pageMissing++
			}
		})
		if pageMissing > 0 {
			findings = append(findings, model.Finding{
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("%d images without alt text", pageMissing),
				URL:      p.rec.URL,
			})
		}
	}

	score := 100
	if total > 0 {
		score = withAlt * 100 / total
	}
	return model.MetricResult{Metric: i.Name(), Category: i.Category(), Score: clampScore(score), Findings: findings}
}

type duplicateContent struct{}

func (duplicateContent) Name() string             { return "duplicate_content" }
func (duplicateContent) Category() model.Category { return model.CategoryOnPage }

func (d duplicateContent) Evaluate(pages []model.PageRecord, _ model.CrawlTarget) model.MetricResult {
	docs := htmlPages(pages)
	if len(docs) == 0 {
		return noPagesResult(d.Name(), d.Category())
	}

	var findings []model.Finding
	byHash := make(map[string][]string)

	for _, p := range docs {
		text := strings.Join(strings.Fields(p.doc.Find("body").Text()), " ")
		hash := fmt.Sprintf("%x", md5.Sum([]byte(text)))
		byHash[hash] = append(byHash[hash], p.rec.URL)
	}

	// Ordered by each group's first page URL so output is stable across runs.
	var dupHashes []string
	for hash, urls := range byHash {
		if len(urls) > 1 {
			dupHashes = append(dupHashes, hash)
		}
	}
	sort.Slice(dupHashes, func(i, j int) bool {
		return byHash[dupHashes[i]][0] < byHash[dupHashes[j]][0]
	})
	dupPages := 0
	for _, hash := range dupHashes {
		urls := byHash[hash]
		dupPages += len(urls) - 1
		findings = append(findings, model.Finding{
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("%d pages share identical body content", len(urls)),
			URL:      urls[0],
		})
	}

	score := clampScore(100 - 20*dupPages)
	return model.MetricResult{Metric: d.Name(), Category: d.Category(), Score: score, Findings: findings}
}
