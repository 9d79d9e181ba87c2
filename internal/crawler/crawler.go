package crawler

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"siteauditor/internal/model"
)

// ErrCancelled is returned by Run when the caller's context is cancelled
// before the crawl completes.
var ErrCancelled = errors.New("crawl cancelled")

// retryBackoff is the delay before the single retry of a transient failure.
const retryBackoff = 500 * time.Millisecond

// Config bounds one crawl.
type Config struct {
	MaxPages          int
	MaxDepth          int
	Concurrency       int
	FetchTimeout      time.Duration
	Budget            time.Duration // whole-audit wall-clock budget
	RequestsPerSecond float64
}

// Result is the fully collected output of one crawl.
type Result struct {
	Target model.CrawlTarget
	Pages  []model.PageRecord
	Stats  model.CrawlStats
}

// Crawler orchestrates Fetcher and Frontier under a bounded worker pool.
// One Crawler runs one audit; no state is shared across audits.
type Crawler struct {
	cfg      Config
	fetcher  *Fetcher
	limiter  *rate.Limiter
	progress func(float64)

	mu           sync.Mutex
	pages        []model.PageRecord
	processed    int
	lastFraction float64
	stats        model.CrawlStats
}

// New creates a crawler. progress receives monotonically non-decreasing
// fractions in [0,1]; it may be nil.
func New(cfg Config, progress func(float64)) *Crawler {
	burst := cfg.Concurrency
	if burst < 1 {
		burst = 1
	}
	return &Crawler{
		cfg:      cfg,
		fetcher:  NewFetcher(cfg.FetchTimeout),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		progress: progress,
		stats:    model.CrawlStats{StatusCounts: make(map[int]int)},
	}
}

// Run crawls the site rooted at root until the frontier drains, the max-page
// limit is reached, or the wall-clock budget expires. A budget expiry marks
// the result as aborted but partial results are still returned for
// evaluation. Only cancellation of ctx itself fails the crawl.
func (c *Crawler) Run(ctx context.Context, root *url.URL) (*Result, error) {
	target := model.CrawlTarget{
		Root:     root,
		Domain:   RegistrableDomain(root.Hostname()),
		MaxPages: c.cfg.MaxPages,
		MaxDepth: c.cfg.MaxDepth,
	}

	budgetCtx, cancelBudget := context.WithTimeout(ctx, c.cfg.Budget)
	defer cancelBudget()

	start := time.Now()
	frontier := NewFrontier(target.Domain, target.MaxPages, target.MaxDepth)

	c.probeSite(budgetCtx, target, frontier)

	if !frontier.Enqueue(root, 0) {
		logrus.Warnf("Root URL %s rejected by frontier", root)
	}

	// Budget expiry or caller cancellation drains the frontier so workers
	// stop promptly; in-flight fetches finish or time out on their own.
	go func() {
		<-budgetCtx.Done()
		frontier.Close()
	}()

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.worker(budgetCtx, id, frontier, target)
		}(i + 1)
	}
	wg.Wait()

	c.mu.Lock()
	c.stats.Duration = time.Since(start)
	result := &Result{Target: target, Pages: c.pages, Stats: c.stats}
	c.mu.Unlock()

	if ctx.Err() != nil {
		return result, ErrCancelled
	}
	result.Stats.Aborted = budgetCtx.Err() != nil

	if c.progress != nil {
		c.progress(1.0)
	}

	logrus.Infof("Crawl of %s finished: %d attempted, %d fetched in %s",
		target.Domain, result.Stats.Attempted, result.Stats.Fetched,
		result.Stats.Duration.Round(time.Millisecond))
	return result, nil
}

func (c *Crawler) worker(ctx context.Context, id int, frontier *Frontier, target model.CrawlTarget) {
	for {
		u, depth, ok := frontier.Next()
		if !ok {
			logrus.Debugf("Worker %d: frontier drained, exiting", id)
			return
		}
		c.processURL(ctx, id, u, depth, frontier, target)
		frontier.Done()
	}
}

func (c *Crawler) processURL(ctx context.Context, id int, u *url.URL, depth int, frontier *Frontier, target model.CrawlTarget) {
	if ctx.Err() != nil {
		return
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}

	rec, err := c.fetchWithRetry(ctx, u, depth)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown in progress; interrupted fetches are not attempts.
			return
		}
		var fe *FetchError
		if errors.As(err, &fe) {
			rec = failureRecord(u, depth, fe)
			logrus.Warnf("Worker %d: %s: %v", id, u, fe)
		} else {
			rec = &model.PageRecord{URL: u.String(), FinalURL: u.String(), Status: model.FetchError, Depth: depth}
			logrus.Warnf("Worker %d: %s: %v", id, u, err)
		}
	} else {
		logrus.Infof("Worker %d fetched %s (depth=%d, status=%d, %dB)", id, u, depth, rec.StatusCode, len(rec.Body))
		c.expand(rec, frontier, target)
	}

	c.record(rec, frontier)
}

// fetchWithRetry applies the crawl retry policy: transient failures (timeout,
// connection error) get exactly one retry after a short backoff; HTTP errors
// are never retried.
func (c *Crawler) fetchWithRetry(ctx context.Context, u *url.URL, depth int) (*model.PageRecord, error) {
	rec, err := c.fetcher.Fetch(ctx, u, depth)
	if err == nil {
		return rec, nil
	}
	var fe *FetchError
	if !errors.As(err, &fe) || !fe.Transient() || ctx.Err() != nil {
		return nil, err
	}

	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return nil, err
	}
	return c.fetcher.Fetch(ctx, u, depth)
}

// expand extracts links and resources from a fetched page and feeds in-scope
// links back into the frontier. Pages whose final URL redirected out of scope
// are recorded but never expanded.
func (c *Crawler) expand(rec *model.PageRecord, frontier *Frontier, target model.CrawlTarget) {
	if !strings.Contains(rec.ContentType, "text/html") {
		return
	}
	final, err := url.Parse(rec.FinalURL)
	if err != nil {
		return
	}
	if rec.Status == model.FetchRedirected {
		frontier.MarkVisited(final)
		if !InScope(final, target.Domain) {
			logrus.Debugf("Redirect target %s left scope, not expanding", rec.FinalURL)
			return
		}
	}

	links, resources := extractLinks(rec.Body, final)
	rec.Links = links
	rec.Resources = resources

	for _, raw := range links {
		lu, err := url.Parse(raw)
		if err != nil {
			continue
		}
		frontier.Enqueue(lu, rec.Depth+1)
	}
}

func (c *Crawler) record(rec *model.PageRecord, frontier *Frontier) {
	c.mu.Lock()
	c.pages = append(c.pages, *rec)
	c.processed++
	c.stats.Attempted++
	if rec.Fetched() {
		c.stats.Fetched++
	}
	if rec.StatusCode != 0 {
		c.stats.StatusCounts[rec.StatusCode]++
	}

	// Progress denominator is the frontier admission count, which only grows
	// as links are discovered. The fraction is clamped below 1.0 until the
	// crawl truly completes, and kept monotone across denominator growth.
	fraction := 0.0
	if admitted := frontier.Admitted(); admitted > 0 {
		fraction = float64(c.processed) / float64(admitted)
	}
	if fraction > 0.99 {
		fraction = 0.99
	}
	if fraction < c.lastFraction {
		fraction = c.lastFraction
	}
	c.lastFraction = fraction
	// Emitted under the lock so concurrent workers cannot reorder fractions
	// on their way to the progress sink.
	if c.progress != nil {
		c.progress(fraction)
	}
	c.mu.Unlock()
}

// probeSite fetches robots.txt and sitemap.xml once per audit. Successful
// probes become Probe PageRecords for the coverage evaluators; a parsed
// robots.txt additionally filters discovered URLs in the frontier.
func (c *Crawler) probeSite(ctx context.Context, target model.CrawlTarget, frontier *Frontier) {
	base := target.Root.Scheme + "://" + target.Root.Host

	for _, path := range []string{"/robots.txt", "/sitemap.xml"} {
		u, err := url.Parse(base + path)
		if err != nil {
			continue
		}
		// Probes honor the same politeness limit as frontier fetches.
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		rec, err := c.fetcher.Fetch(ctx, u, 0)
		if err != nil {
			logrus.Debugf("Probe %s failed: %v", path, err)
			continue
		}
		rec.Probe = true

		if path == "/robots.txt" {
			if data, perr := robotstxt.FromBytes(rec.Body); perr == nil {
				frontier.SetRobots(data.FindGroup(userAgent))
			} else {
				logrus.Debugf("robots.txt unparseable: %v", perr)
			}
		}

		c.mu.Lock()
		c.pages = append(c.pages, *rec)
		c.mu.Unlock()
	}
}

func failureRecord(u *url.URL, depth int, fe *FetchError) *model.PageRecord {
	status := model.FetchError
	if fe.Kind == FailTimeout {
		status = model.FetchTimeout
	}
	return &model.PageRecord{
		URL:        u.String(),
		FinalURL:   u.String(),
		Status:     status,
		StatusCode: fe.Code,
		Depth:      depth,
	}
}

// extractLinks parses an HTML body and splits discovered URLs into page links
// (candidates for crawling) and static resources.
func extractLinks(body []byte, base *url.URL) (links, resources []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil
	}

	seenLinks := make(map[string]struct{})
	seenResources := make(map[string]struct{})

	resolve := func(href string) *url.URL {
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") || strings.HasPrefix(href, "data:") {
			return nil
		}
		u, err := base.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil
		}
		return u
	}

	addResource := func(u *url.URL) {
		abs := u.String()
		if _, ok := seenResources[abs]; !ok {
			seenResources[abs] = struct{}{}
			resources = append(resources, abs)
		}
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u := resolve(href)
		if u == nil {
			return
		}
		if !IsPageURL(u) {
			addResource(u)
			return
		}
		abs := u.String()
		if _, ok := seenLinks[abs]; !ok {
			seenLinks[abs] = struct{}{}
			links = append(links, abs)
		}
	})

	doc.Find("img[src], script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if u := resolve(src); u != nil {
			addResource(u)
		}
	})
	doc.Find(`link[rel="stylesheet"][href], link[rel="icon"][href]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if u := resolve(href); u != nil {
			addResource(u)
		}
	})

	return links, resources
}
