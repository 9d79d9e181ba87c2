package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"siteauditor/internal/model"
)

func TestFetcherOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "max-age=60")
		fmt.Fprint(w, "<html><head><title>Home</title></head><body>hi</body></html>")
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	u := mustParse(t, srv.URL+"/")
	rec, err := f.Fetch(context.Background(), u, 1)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if rec.Status != model.FetchOK {
		t.Errorf("status = %s, want ok", rec.Status)
	}
	if rec.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.StatusCode)
	}
	if rec.ContentType != "text/html; charset=utf-8" {
		t.Errorf("content type = %q", rec.ContentType)
	}
	if !bytes.Contains(rec.Body, []byte("<title>Home</title>")) {
		t.Error("body not captured")
	}
	if rec.Header.Get("Cache-Control") != "max-age=60" {
		t.Error("headers not captured")
	}
	if rec.Depth != 1 {
		t.Errorf("depth = %d, want 1", rec.Depth)
	}
	if rec.Latency <= 0 {
		t.Error("latency not measured")
	}
}

func TestFetcherHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	_, err := f.Fetch(context.Background(), mustParse(t, srv.URL+"/missing"), 0)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != FailHTTP || fe.Code != http.StatusNotFound {
		t.Errorf("got kind=%s code=%d, want http/404", fe.Kind, fe.Code)
	}
	if fe.Transient() {
		t.Error("HTTP errors must not be retried")
	}
}

func TestFetcherRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>moved here</body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	rec, err := f.Fetch(context.Background(), mustParse(t, srv.URL+"/old"), 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if rec.Status != model.FetchRedirected {
		t.Errorf("status = %s, want redirected", rec.Status)
	}
	if rec.FinalURL != srv.URL+"/new" {
		t.Errorf("final URL = %q, want %q", rec.FinalURL, srv.URL+"/new")
	}
	if rec.URL != srv.URL+"/old" {
		t.Errorf("original URL = %q, want %q", rec.URL, srv.URL+"/old")
	}
}

func TestFetcherRedirectLoop(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	_, err := f.Fetch(context.Background(), mustParse(t, srv.URL+"/a"), 0)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != FailConnection {
		t.Errorf("kind = %s, want connection", fe.Kind)
	}
	if !errors.Is(err, errTooManyRedirects) {
		t.Errorf("expected redirect hop limit error, got %v", fe.Err)
	}
}

func TestFetcherBodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(bytes.Repeat([]byte("x"), maxBodyBytes+10))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	_, err := f.Fetch(context.Background(), mustParse(t, srv.URL+"/huge"), 0)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != FailTooLarge {
		t.Errorf("kind = %s, want too-large", fe.Kind)
	}
	if fe.Transient() {
		t.Error("oversized bodies must not be retried")
	}
}

func TestFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	f := NewFetcher(50 * time.Millisecond)
	_, err := f.Fetch(context.Background(), mustParse(t, srv.URL+"/slow"), 0)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != FailTimeout {
		t.Errorf("kind = %s, want timeout", fe.Kind)
	}
	if !fe.Transient() {
		t.Error("timeouts must be retryable")
	}
}

func TestFetcherConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := srv.URL
	srv.Close()

	f := NewFetcher(time.Second)
	_, err := f.Fetch(context.Background(), mustParse(t, dead+"/"), 0)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != FailConnection {
		t.Errorf("kind = %s, want connection", fe.Kind)
	}
	if !fe.Transient() {
		t.Error("connection failures must be retryable")
	}
}

func TestFetcherSendsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	f := NewFetcher(time.Second)
	if _, err := f.Fetch(context.Background(), mustParse(t, srv.URL), 0); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != userAgent {
		t.Errorf("user agent = %q, want %q", got, userAgent)
	}
}

func TestClassifyTransportError(t *testing.T) {
	if k := classifyTransportError(context.DeadlineExceeded).Kind; k != FailTimeout {
		t.Errorf("deadline exceeded classified as %s", k)
	}
	if k := classifyTransportError(errors.New("dial tcp: connection refused")).Kind; k != FailConnection {
		t.Errorf("plain error classified as %s", k)
	}
	wrapped := &url.Error{Op: "Get", URL: "http://x", Err: errTooManyRedirects}
	if k := classifyTransportError(wrapped).Kind; k != FailConnection {
		t.Errorf("redirect limit classified as %s", k)
	}
}
