package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"webresearch/internal/errs"
)

const cacheTTL = 5 * time.Minute

// Result is one search candidate returned by the provider, in provider order.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Client queries a SearXNG instance. No results and provider failures both
// yield an empty slice, never an error: the caller degrades gracefully.
type Client struct {
	baseURL    string
	httpClient *http.Client
	local      *gocache.Cache
	redis      *redis.Client // optional shared cache; nil falls back to local
}

// NewClient creates a SearXNG search client. redisClient may be nil.
func NewClient(baseURL string, timeout time.Duration, redisClient *redis.Client) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		local:      gocache.New(cacheTTL, 10*time.Minute),
		redis:      redisClient,
	}
}

// Search returns up to count candidates for query, in provider order.
func (c *Client) Search(ctx context.Context, query string, count int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, errs.Validation("search query must be at least 2 characters long")
	}
	if count < 1 {
		count = 1
	}
	if count > 20 {
		count = 20
	}

	cacheKey := fmt.Sprintf("search:%s:%d", strings.ToLower(query), count)
	if cached, ok := c.cacheGet(ctx, cacheKey); ok {
		log.Printf("✅ [SEARCH] Cache hit for: '%s'", query)
		return cached, nil
	}

	results, err := c.doSearch(ctx, query, count)
	if err != nil {
		log.Printf("⚠️ [SEARCH] Provider error for '%s': %v", query, err)
		return nil, nil
	}

	if len(results) > 0 {
		c.cacheSet(ctx, cacheKey, results)
	}

	log.Printf("✅ [SEARCH] Found %d results for '%s'", len(results), query)
	return results, nil
}

func (c *Client) doSearch(ctx context.Context, query string, count int) ([]Result, error) {
	searchURL := fmt.Sprintf("%s/search?q=%s&format=json&safesearch=1",
		c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "WebResearchAssistant/1.0 (Bot)")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	results := make([]Result, 0, count)
	for _, r := range payload.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = "No Title"
		}
		results = append(results, Result{
			Title:   title,
			URL:     strings.TrimSpace(r.URL),
			Snippet: strings.TrimSpace(r.Content),
		})
		if len(results) == count {
			break
		}
	}
	return results, nil
}

func (c *Client) cacheGet(ctx context.Context, key string) ([]Result, bool) {
	if c.redis != nil {
		raw, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			var results []Result
			if json.Unmarshal(raw, &results) == nil {
				return results, true
			}
		}
		return nil, false
	}

	if cached, found := c.local.Get(key); found {
		if results, ok := cached.([]Result); ok {
			return results, true
		}
	}
	return nil, false
}

func (c *Client) cacheSet(ctx context.Context, key string, results []Result) {
	if c.redis != nil {
		if raw, err := json.Marshal(results); err == nil {
			if err := c.redis.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
				log.Printf("⚠️ [SEARCH] Failed to cache results in Redis: %v", err)
			}
		}
		return
	}
	c.local.Set(key, results, gocache.DefaultExpiration)
}
