package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/markusmobius/go-trafilatura"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"webresearch/internal/errs"
	"webresearch/internal/security"
)

const (
	maxBodyBytes   = 10 * 1024 * 1024
	robotsAgent    = "WebResearchAssistant-Bot"
	fetchUserAgent = "WebResearchAssistant-Bot/1.0"
)

// Options configures a scraper Client.
type Options struct {
	MaxChars          int           // extracted text cap per source
	Timeout           time.Duration // per-fetch budget, enforced here (not by callers)
	AllowPrivateHosts bool          // skip the SSRF check (tests only)
}

// Client fetches a URL and extracts its readable plain-text content.
// Fetches are rate limited globally and results cached for an hour.
type Client struct {
	opts        Options
	cache       *gocache.Cache
	rateLimiter *rate.Limiter
	httpClient  *http.Client
	logger      *logrus.Logger
}

// NewClient creates a scraper client.
func NewClient(opts Options) *Client {
	if opts.MaxChars <= 0 {
		opts.MaxChars = 5000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Client{
		opts:        opts,
		cache:       gocache.New(1*time.Hour, 10*time.Minute),
		rateLimiter: rate.NewLimiter(rate.Limit(10.0), 20), // 10 req/s global
		httpClient:  &http.Client{Timeout: opts.Timeout},
		logger:      logger,
	}
}

// Fetch retrieves urlStr and returns extracted plain text, capped at MaxChars.
// Validation failures are validation errors; everything downstream is a
// retrieval error.
func (c *Client) Fetch(ctx context.Context, urlStr string) (string, error) {
	parsed, err := security.ValidateURL(urlStr)
	if err != nil {
		return "", err
	}
	if !c.opts.AllowPrivateHosts {
		if err := security.CheckSSRF(parsed); err != nil {
			return "", err
		}
	}

	if cached, found := c.cache.Get(urlStr); found {
		return cached.(string), nil
	}

	if allowed := c.checkRobots(parsed); !allowed {
		return "", errs.Retrieval("robots", fmt.Errorf("blocked by robots.txt: %s", urlStr))
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", errs.Retrieval("rate limit", err)
	}

	start := time.Now()
	content, err := c.fetchAndExtract(ctx, parsed)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"url":      urlStr,
			"duration": time.Since(start).String(),
			"error":    err.Error(),
		}).Warn("scrape failed")
		return "", errs.Retrieval("fetch "+urlStr, err)
	}

	if len(content) > c.opts.MaxChars {
		content = content[:c.opts.MaxChars]
	}

	c.logger.WithFields(logrus.Fields{
		"url":      urlStr,
		"chars":    len(content),
		"duration": time.Since(start).String(),
	}).Info("scraped page")

	c.cache.Set(urlStr, content, gocache.DefaultExpiration)
	return content, nil
}

func (c *Client) fetchAndExtract(ctx context.Context, parsed *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL: parsed,
	})
	if err != nil || result == nil || result.ContentText == "" {
		return "", fmt.Errorf("failed to extract content from page")
	}

	return result.ContentText, nil
}

// checkRobots returns whether fetching is allowed. Missing or unreadable
// robots.txt allows the fetch.
func (c *Client) checkRobots(parsed *url.URL) bool {
	robotsURL := parsed.Scheme + "://" + parsed.Host + "/robots.txt"

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(robotsURL)
	if err != nil {
		return true
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return true
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return true
	}

	robotsData, err := robotstxt.FromBytes(body)
	if err != nil {
		return true
	}

	group := robotsData.FindGroup(robotsAgent)
	if group == nil {
		group = robotsData.FindGroup("*")
	}
	if group != nil {
		return group.Test(parsed.Path)
	}
	return true
}
