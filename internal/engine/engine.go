// Package engine exposes the audit entry point: validate a target, run the
// crawl and the metric evaluators, aggregate the report, and stream progress
// to the caller. The engine is transport-agnostic; consumers read plain
// ProgressEvent values from the audit handle.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"siteauditor/internal/config"
	"siteauditor/internal/crawler"
	"siteauditor/internal/metrics"
	"siteauditor/internal/model"
	"siteauditor/internal/report"
)

// ValidationError reports bad input to StartAudit. It is returned
// synchronously; nothing enters the event stream.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Options overrides engine defaults for a single audit. Zero values keep the
// engine configuration; MaxDepth is a pointer because a depth of 0 is a
// legal limit and must stay distinguishable from "not set".
type Options struct {
	MaxPages     int
	MaxDepth     *int
	FetchTimeout time.Duration
	Weights      report.Weights
}

// Engine runs audits. It holds the immutable evaluator registry and the
// defaults shared by all audits; each audit gets its own crawler, frontier
// and stream.
type Engine struct {
	cfg      *config.Config
	registry []metrics.Evaluator
	weights  report.Weights
}

// New builds an engine from validated configuration and an evaluator
// registry. A nil registry selects the default metric catalog.
func New(cfg *config.Config, registry []metrics.Evaluator) (*Engine, error) {
	if registry == nil {
		registry = metrics.DefaultRegistry()
	}
	weights := weightsFromConfig(cfg)
	if err := weights.Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	return &Engine{cfg: cfg, registry: registry, weights: weights}, nil
}

// Audit is the streaming handle returned by StartAudit.
type Audit struct {
	ID     string
	URL    string
	stream *Stream
}

// Events returns the audit's progress stream. It always ends with exactly one
// Finished or Error event, after which the channel is closed.
func (a *Audit) Events() <-chan model.ProgressEvent {
	return a.stream.Events()
}

// StartAudit validates the target and asynchronously runs the audit.
// Invalid input fails here with a *ValidationError; once a handle is
// returned, the caller is guaranteed a terminal event. Cancelling ctx stops
// the crawl promptly and terminates the stream with Error("cancelled").
func (e *Engine) StartAudit(ctx context.Context, rawURL string, opts *Options) (*Audit, error) {
	root, err := crawler.ParseTargetURL(rawURL)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	weights := e.weights
	if opts != nil && opts.Weights != nil {
		weights = opts.Weights
		if err := weights.Validate(); err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
	}

	ccfg := crawler.Config{
		MaxPages:          e.cfg.MaxPages,
		MaxDepth:          e.cfg.MaxDepth,
		Concurrency:       e.cfg.WorkerConcurrency,
		FetchTimeout:      time.Duration(e.cfg.PerFetchTimeoutMs) * time.Millisecond,
		Budget:            time.Duration(e.cfg.AuditBudgetMs) * time.Millisecond,
		RequestsPerSecond: e.cfg.RequestsPerSecond,
	}
	if opts != nil {
		if opts.MaxPages > 0 {
			ccfg.MaxPages = opts.MaxPages
		}
		if opts.MaxDepth != nil {
			ccfg.MaxDepth = *opts.MaxDepth
		}
		if opts.FetchTimeout > 0 {
			ccfg.FetchTimeout = opts.FetchTimeout
		}
	}

	audit := &Audit{ID: newAuditID(), URL: root.String(), stream: newStream()}
	logrus.Infof("Audit %s started for %s (maxPages=%d, depth=%d, workers=%d)",
		audit.ID, audit.URL, ccfg.MaxPages, ccfg.MaxDepth, ccfg.Concurrency)

	go e.run(ctx, audit, ccfg, weights)
	return audit, nil
}

func (e *Engine) run(ctx context.Context, audit *Audit, ccfg crawler.Config, weights report.Weights) {
	s := audit.stream
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Audit %s: internal failure: %v", audit.ID, r)
			s.terminate(model.ProgressEvent{
				AuditID: audit.ID,
				Kind:    model.EventError,
				Err:     fmt.Sprintf("internal error: %v", r),
			})
		}
	}()

	s.publish(model.ProgressEvent{AuditID: audit.ID, Kind: model.EventStatus, Status: "Crawling " + audit.URL})

	c := crawler.New(ccfg, func(fraction float64) {
		s.publish(model.ProgressEvent{AuditID: audit.ID, Kind: model.EventCrawlProgress, Fraction: fraction})
	})

	root, err := crawler.ParseTargetURL(audit.URL)
	if err != nil {
		// Already validated in StartAudit; treat as internal.
		panic(err)
	}

	res, err := c.Run(ctx, root)
	if err != nil {
		logrus.Infof("Audit %s cancelled", audit.ID)
		s.terminate(model.ProgressEvent{AuditID: audit.ID, Kind: model.EventError, Err: "cancelled"})
		return
	}
	if res.Stats.Aborted {
		s.publish(model.ProgressEvent{
			AuditID: audit.ID,
			Kind:    model.EventStatus,
			Status:  "Crawl budget exceeded, evaluating partial results",
		})
	}

	s.publish(model.ProgressEvent{AuditID: audit.ID, Kind: model.EventStatus, Status: "Evaluating metrics"})
	results := metrics.RunAll(e.registry, res.Pages, res.Target)
	rep := report.Aggregate(audit.URL, results, res.Stats, weights)

	logrus.Infof("Audit %s finished: score=%d grade=%s confidence=%d",
		audit.ID, rep.OverallScore, rep.Grade, rep.Confidence)
	s.terminate(model.ProgressEvent{AuditID: audit.ID, Kind: model.EventFinished, Report: rep})
}

func weightsFromConfig(cfg *config.Config) report.Weights {
	if len(cfg.CategoryWeights) == 0 {
		return report.DefaultWeights()
	}
	w := make(report.Weights, len(cfg.CategoryWeights))
	for cat, weight := range cfg.CategoryWeights {
		w[model.Category(cat)] = weight
	}
	return w
}

func newAuditID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
