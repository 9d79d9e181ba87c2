package metrics

import (
	"testing"

	"siteauditor/internal/model"
)

func probePage(pageURL string) model.PageRecord {
	rec := htmlPage(pageURL, "")
	rec.ContentType = "text/plain"
	rec.Probe = true
	return rec
}

func TestRobotsSitemap(t *testing.T) {
	target := testTarget(t, "https://example.com/")

	cases := []struct {
		name  string
		pages []model.PageRecord
		want  int
	}{
		{"both", []model.PageRecord{probePage("https://example.com/robots.txt"), probePage("https://example.com/sitemap.xml")}, 100},
		{"robots only", []model.PageRecord{probePage("https://example.com/robots.txt")}, 50},
		{"sitemap only", []model.PageRecord{probePage("https://example.com/sitemap.xml")}, 50},
		{"neither", nil, 0},
	}
	for _, c := range cases {
		res := robotsSitemap{}.Evaluate(c.pages, target)
		if res.Score != c.want {
			t.Errorf("%s: score = %d, want %d", c.name, res.Score, c.want)
		}
		if wantFindings := (100 - c.want) / 50; len(res.Findings) != wantFindings {
			t.Errorf("%s: findings = %d, want %d", c.name, len(res.Findings), wantFindings)
		}
	}
}

func TestRobotsSitemapIgnoresRegularPages(t *testing.T) {
	target := testTarget(t, "https://example.com/")
	// A crawled (non-probe) page named like robots.txt must not count.
	pages := []model.PageRecord{htmlPage("https://example.com/robots.txt", "fake")}
	res := robotsSitemap{}.Evaluate(pages, target)
	if res.Score != 0 {
		t.Errorf("score = %d, want 0", res.Score)
	}
}

func TestBrokenLinks(t *testing.T) {
	target := testTarget(t, "https://example.com/")
	pages := []model.PageRecord{
		htmlPage("https://example.com/", "<html></html>"),
		htmlPage("https://example.com/a", "<html></html>"),
		htmlPage("https://example.com/b", "<html></html>"),
		failedPage("https://example.com/gone", 404),
	}

	res := brokenLinks{}.Evaluate(pages, target)

	if res.Score != 75 {
		t.Errorf("score = %d, want 75", res.Score)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(res.Findings))
	}
	f := res.Findings[0]
	if f.Severity != model.SeverityCritical || f.URL != "https://example.com/gone" {
		t.Errorf("finding = %+v", f)
	}
}

func TestHTTPSConsistency(t *testing.T) {
	target := testTarget(t, "https://example.com/")

	clean := htmlPage("https://example.com/", "<html></html>")
	clean.Links = []string{"https://example.com/a"}
	mixed := htmlPage("https://example.com/mixed", "<html></html>")
	mixed.Links = []string{"http://example.com/insecure", "http://other.com/external"}

	res := httpsConsistency{}.Evaluate([]model.PageRecord{clean, mixed}, target)

	// One insecure internal link; external http links are ignored.
	if res.Score != 99 {
		t.Errorf("score = %d, want 99", res.Score)
	}
}

func TestHTTPSConsistencyPlainHTTPTarget(t *testing.T) {
	target := testTarget(t, "http://example.com/")
	res := httpsConsistency{}.Evaluate([]model.PageRecord{htmlPage("http://example.com/", "<html></html>")}, target)

	if res.Score != 40 {
		t.Errorf("score = %d, want fixed 40 for non-HTTPS targets", res.Score)
	}
	if len(res.Findings) != 1 || res.Findings[0].Severity != model.SeverityWarning {
		t.Errorf("findings = %+v", res.Findings)
	}
}

func TestInternalLinkHealth(t *testing.T) {
	target := testTarget(t, "https://example.com/")

	home := htmlPage("https://example.com/", "<html></html>")
	home.Links = []string{"https://example.com/gone", "https://example.com/ok"}
	ok := htmlPage("https://example.com/ok", "<html></html>")
	ok.Links = []string{"https://example.com/gone#section"}

	pages := []model.PageRecord{home, ok, failedPage("https://example.com/gone", 500)}
	res := internalLinkHealth{}.Evaluate(pages, target)

	// Two references to the broken page, fragment normalized away.
	if res.Score != 90 {
		t.Errorf("score = %d, want 90", res.Score)
	}
	if len(res.Findings) != 2 {
		t.Errorf("findings = %d, want 2", len(res.Findings))
	}
}
