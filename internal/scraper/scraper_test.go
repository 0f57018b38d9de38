package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"webresearch/internal/errs"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Test Article</title></head>
<body>
<article>
<h1>The Capital of France</h1>
<p>Paris is the capital and most populous city of France. It has been one of
Europe's major centres of finance, diplomacy, commerce, culture, fashion, and
gastronomy since the seventeenth century.</p>
<p>The City of Paris is the centre of the Île-de-France region, or Paris
Region, with an official population in excess of twelve million people.</p>
</article>
</body></html>`

func testClient(maxChars int) *Client {
	return NewClient(Options{
		MaxChars:          maxChars,
		Timeout:           5 * time.Second,
		AllowPrivateHosts: true, // httptest binds to loopback
	})
}

func TestFetch_ExtractsArticleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	client := testClient(5000)
	content, err := client.Fetch(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if !strings.Contains(content, "Paris is the capital") {
		t.Errorf("extracted content missing article text: %q", content)
	}
	if strings.Contains(content, "<p>") {
		t.Error("extracted content still contains HTML")
	}
}

func TestFetch_CapsContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><article><p>" + strings.Repeat("lorem ipsum dolor sit amet ", 500) + "</p></article></body></html>"))
	}))
	defer srv.Close()

	client := testClient(200)
	content, err := client.Fetch(context.Background(), srv.URL+"/long")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(content) > 200 {
		t.Errorf("content length %d exceeds cap 200", len(content))
	}
}

func TestFetch_InvalidURLRejectedBeforeIO(t *testing.T) {
	client := testClient(5000)

	for _, raw := range []string{"not-a-url", "ftp://example.com/x", "/relative"} {
		_, err := client.Fetch(context.Background(), raw)
		if err == nil {
			t.Errorf("Fetch(%q) should fail", raw)
			continue
		}
		if !errors.Is(err, errs.ErrValidation) {
			t.Errorf("Fetch(%q) error should be a validation error, got %v", raw, err)
		}
	}
}

func TestFetch_HTTPErrorIsRetrievalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := testClient(5000)
	_, err := client.Fetch(context.Background(), srv.URL+"/broken")
	if err == nil {
		t.Fatal("expected error on HTTP 500")
	}
	if !errors.Is(err, errs.ErrRetrieval) {
		t.Errorf("expected retrieval error, got %v", err)
	}
}

func TestFetch_RespectsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	client := testClient(5000)
	if _, err := client.Fetch(context.Background(), srv.URL+"/private/page"); err == nil {
		t.Error("fetch of disallowed path should fail")
	}
	if _, err := client.Fetch(context.Background(), srv.URL+"/public/page"); err != nil {
		t.Errorf("fetch of allowed path failed: %v", err)
	}
}

func TestFetch_CachesResult(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits++
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	client := testClient(5000)
	for i := 0; i < 3; i++ {
		if _, err := client.Fetch(context.Background(), srv.URL+"/cached"); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
	}
	if hits != 1 {
		t.Errorf("expected 1 origin hit after caching, got %d", hits)
	}
}
