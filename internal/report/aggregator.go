// Package report rolls per-metric results into the final audit report.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"siteauditor/internal/model"
)

// Grade thresholds are fixed: A>=90, B>=80, C>=70, D>=60, F otherwise.
const (
	gradeA = 90
	gradeB = 80
	gradeC = 70
	gradeD = 60
)

const weightTolerance = 1e-6

// Weights maps categories to their share of the overall score.
type Weights map[model.Category]float64

// DefaultWeights returns the standard category weighting.
func DefaultWeights() Weights {
	return Weights{
		model.CategoryOnPage:      0.4,
		model.CategoryPerformance: 0.3,
		model.CategoryCoverage:    0.3,
	}
}

// Validate checks that every category is known, no weight is negative and the
// weights sum to 1.0.
func (w Weights) Validate() error {
	sum := 0.0
	for cat, weight := range w {
		known := false
		for _, c := range model.Categories {
			if cat == c {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown category %q in weights", cat)
		}
		if weight < 0 {
			return fmt.Errorf("weight for %q is negative", cat)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("category weights sum to %.4f, want 1.0", sum)
	}
	return nil
}

// Aggregate combines per-metric results and crawl statistics into the final
// AuditReport. Deterministic: the same inputs always produce an identical
// report, including findings order.
func Aggregate(targetURL string, results []model.MetricResult, stats model.CrawlStats, weights Weights) *model.AuditReport {
	rep := &model.AuditReport{
		URL:          targetURL,
		Breakdown:    make(map[model.Category]int),
		PagesCrawled: stats.Attempted,
		GeneratedAt:  time.Now().UTC(),
	}

	// Per-category sub-score: arithmetic mean of the category's metric
	// scores, ties rounding half up.
	sums := make(map[model.Category]int)
	counts := make(map[model.Category]int)
	for _, r := range results {
		sums[r.Category] += r.Score
		counts[r.Category]++
		for _, f := range r.Findings {
			f.Metric = r.Metric
			rep.Findings = append(rep.Findings, f)
		}
	}
	for _, cat := range model.Categories {
		if counts[cat] > 0 {
			rep.Breakdown[cat] = roundHalfUp(float64(sums[cat]) / float64(counts[cat]))
		}
	}

	// Weighted overall. Categories without any metric result are excluded
	// and the remaining weights renormalized.
	weighted, totalWeight := 0.0, 0.0
	for _, cat := range model.Categories {
		if counts[cat] == 0 {
			continue
		}
		weighted += weights[cat] * float64(rep.Breakdown[cat])
		totalWeight += weights[cat]
	}
	if totalWeight > 0 {
		rep.OverallScore = roundHalfUp(weighted / totalWeight)
	}

	if stats.Fetched > 0 {
		rep.Confidence = stats.Fetched * 100 / stats.Attempted
	} else {
		// A crawl that fetched nothing cannot support any score.
		rep.Confidence = 0
		rep.OverallScore = 0
		rep.Findings = append(rep.Findings, model.Finding{
			Metric:   "crawl",
			Severity: model.SeverityCritical,
			Message:  "crawl failed: no pages could be fetched",
			URL:      targetURL,
		})
	}

	sortFindings(rep.Findings)
	rep.Grade = gradeFor(rep.OverallScore)
	return rep
}

// sortFindings orders findings by severity descending, then metric identifier,
// keeping the evaluator's original order within a metric.
func sortFindings(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return findings[i].Severity > findings[j].Severity
		}
		return findings[i].Metric < findings[j].Metric
	})
}

func gradeFor(score int) string {
	switch {
	case score >= gradeA:
		return "A"
	case score >= gradeB:
		return "B"
	case score >= gradeC:
		return "C"
	case score >= gradeD:
		return "D"
	default:
		return "F"
	}
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
