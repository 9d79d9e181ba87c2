package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"siteauditor/internal/model"
)

const (
	maxRedirectHops = 5
	maxBodyBytes    = 5 << 20 // pages larger than this fail with TooLarge
	userAgent       = "siteauditor/1.0 (+https://siteauditor.dev)"
)

var errTooManyRedirects = errors.New("redirect hop limit exceeded")

// FailureKind classifies a fetch failure.
type FailureKind int

const (
	FailTimeout FailureKind = iota
	FailConnection
	FailHTTP
	FailTooLarge
)

func (k FailureKind) String() string {
	switch k {
	case FailTimeout:
		return "timeout"
	case FailConnection:
		return "connection"
	case FailHTTP:
		return "http"
	default:
		return "too-large"
	}
}

// FetchError is a typed per-page fetch failure. It is recorded and counted
// against confidence but never aborts the audit.
type FetchError struct {
	Kind FailureKind
	Code int // HTTP status when Kind is FailHTTP
	Err  error
}

func (e *FetchError) Error() string {
	if e.Kind == FailHTTP {
		return fmt.Sprintf("fetch failed: http status %d", e.Code)
	}
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth one retry.
// HTTP errors are never retried.
func (e *FetchError) Transient() bool {
	return e.Kind == FailTimeout || e.Kind == FailConnection
}

// Fetcher retrieves single URLs over HTTP. It performs no retries; retry
// policy belongs to the Crawler.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewFetcher builds a fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirectHops {
					return errTooManyRedirects
				}
				return nil
			},
		},
	}
}

// Fetch retrieves one URL and returns a PageRecord, or a *FetchError
// describing why the page could not be used.
func (f *Fetcher) Fetch(ctx context.Context, u *url.URL, depth int) (*model.PageRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Kind: FailConnection, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if len(body) > maxBodyBytes {
		return nil, &FetchError{Kind: FailTooLarge, Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}
	latency := time.Since(start)

	if resp.StatusCode >= 400 {
		return nil, &FetchError{Kind: FailHTTP, Code: resp.StatusCode}
	}

	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	status := model.FetchOK
	if NormalizeURL(final) != NormalizeURL(u) {
		status = model.FetchRedirected
	}

	return &model.PageRecord{
		URL:         u.String(),
		FinalURL:    final.String(),
		Status:      status,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Body:        body,
		Latency:     latency,
		Depth:       depth,
	}, nil
}

func classifyTransportError(err error) *FetchError {
	if errors.Is(err, errTooManyRedirects) {
		return &FetchError{Kind: FailConnection, Err: errTooManyRedirects}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Kind: FailTimeout, Err: err}
	}
	return &FetchError{Kind: FailConnection, Err: err}
}
