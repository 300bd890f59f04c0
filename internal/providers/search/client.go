// internal/providers/search/client.go
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"community-scout/internal/common/logger"
)

// ErrRateLimited marks a provider 429; callers treat it as a recoverable
// per-page failure.
var ErrRateLimited = errors.New("search provider rate limited")

// Item is one raw record from the search provider, before it becomes a
// models.RawHit. Image is the structured pagemap image, OGImage the
// secondary og:image metatag fallback.
type Item struct {
	Title           string
	Link            string
	Snippet         string
	Image           string
	OGImage         string
	MetaDescription string
}

// Provider is the paginated text-search boundary the fan-out depends on.
type Provider interface {
	Search(ctx context.Context, query string, num, start int) ([]Item, error)
}

type Config struct {
	BaseURL  string
	APIKey   string
	EngineID string
	Timeout  time.Duration
	QPS      int
}

// Client talks to a Google Custom-Search-style JSON API.
type Client struct {
	config  Config
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
	logger  logger.Logger
}

func NewClient(config Config, log logger.Logger) (*Client, error) {
	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid search base URL %q: %w", config.BaseURL, err)
	}

	qps := config.QPS
	if qps <= 0 {
		qps = 5
	}
	return &Client{
		config:  config,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(qps), qps),
		logger: log.With(map[string]interface{}{
			"component": "search-client",
		}),
	}, nil
}

func (c *Client) Search(ctx context.Context, query string, num, start int) ([]Item, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildSearchURL(query, num, start), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned %d", resp.StatusCode)
	}

	var apiResponse struct {
		Items []struct {
			Link    string `json:"link"`
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Pagemap struct {
				CSEImage []struct {
					Src string `json:"src"`
				} `json:"cse_image"`
				Metatags []map[string]string `json:"metatags"`
			} `json:"pagemap"`
		} `json:"items"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(apiResponse.Items))
	for _, raw := range apiResponse.Items {
		item := Item{
			Title:   raw.Title,
			Link:    raw.Link,
			Snippet: raw.Snippet,
		}
		if len(raw.Pagemap.CSEImage) > 0 {
			item.Image = raw.Pagemap.CSEImage[0].Src
		}
		if len(raw.Pagemap.Metatags) > 0 {
			item.MetaDescription = raw.Pagemap.Metatags[0]["og:description"]
			item.OGImage = raw.Pagemap.Metatags[0]["og:image"]
		}
		items = append(items, item)
	}

	c.logger.Debug("search page fetched", map[string]interface{}{
		"query": query,
		"start": start,
		"items": len(items),
	})

	return items, nil
}

func (c *Client) buildSearchURL(query string, num, start int) string {
	searchURL := *c.baseURL
	params := url.Values{}
	params.Add("key", c.config.APIKey)
	params.Add("cx", c.config.EngineID)
	params.Add("q", query)
	params.Add("num", fmt.Sprintf("%d", num))
	if start > 0 {
		params.Add("start", fmt.Sprintf("%d", start))
	}
	searchURL.RawQuery = params.Encode()
	return searchURL.String()
}
