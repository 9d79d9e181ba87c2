package crawler

import (
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

type frontierEntry struct {
	url   *url.URL
	depth int
}

// Frontier is the BFS worklist of URLs pending crawl, with visited-state
// tracking. It is the only shared mutable state among fetch workers; every
// operation is serialized behind a single mutex.
type Frontier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []frontierEntry
	seen     map[string]struct{}
	admitted int
	inFlight int
	maxPages int
	maxDepth int
	domain   string
	robots   *robotstxt.Group
	closed   bool
}

// NewFrontier creates a frontier scoped to the given registrable domain.
// maxPages bounds the total number of URLs ever admitted.
func NewFrontier(domain string, maxPages, maxDepth int) *Frontier {
	f := &Frontier{
		seen:     make(map[string]struct{}),
		maxPages: maxPages,
		maxDepth: maxDepth,
		domain:   domain,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// SetRobots installs the robots.txt group used to filter discovered URLs.
// The root URL itself is always admitted regardless of robots rules.
func (f *Frontier) SetRobots(g *robotstxt.Group) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.robots = g
}

// Enqueue admits a URL if it has not been seen, is in scope, looks like an
// HTML page, respects the depth limit, and the max-page cap has room.
// Returns true if the URL was queued.
func (f *Frontier) Enqueue(u *url.URL, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || depth > f.maxDepth || f.admitted >= f.maxPages {
		return false
	}
	if !InScope(u, f.domain) || !IsPageURL(u) {
		return false
	}
	if depth > 0 && f.robots != nil && !f.robots.Test(u.Path) {
		return false
	}

	norm := NormalizeURL(u)
	if _, ok := f.seen[norm]; ok {
		return false
	}

	f.seen[norm] = struct{}{}
	f.admitted++
	f.queue = append(f.queue, frontierEntry{url: u, depth: depth})
	f.cond.Signal()
	return true
}

// MarkVisited records a URL as seen without queueing it. Idempotent. Used for
// redirect targets so the final URL is not fetched a second time.
func (f *Frontier) MarkVisited(u *url.URL) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[NormalizeURL(u)] = struct{}{}
}

// Next returns the next URL in breadth-first order, blocking while the queue
// is empty but fetches are still in flight (they may discover new links).
// Returns ok=false when the crawl is over: the frontier is closed, or the
// queue is empty with nothing in flight. The caller must invoke Done after
// finishing an entry obtained from Next.
func (f *Frontier) Next() (*url.URL, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed {
			return nil, 0, false
		}
		if len(f.queue) > 0 {
			e := f.queue[0]
			f.queue = f.queue[1:]
			f.inFlight++
			return e.url, e.depth, true
		}
		if f.inFlight == 0 {
			return nil, 0, false
		}
		f.cond.Wait()
	}
}

// Done signals that an entry handed out by Next has been fully processed,
// including any link discovery.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	f.cond.Broadcast()
}

// Close drains the frontier and wakes all blocked workers. Safe to call more
// than once.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.queue = nil
	f.cond.Broadcast()
}

// Admitted returns how many URLs were ever accepted. Monotonically
// non-decreasing; used as the progress denominator.
func (f *Frontier) Admitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admitted
}
