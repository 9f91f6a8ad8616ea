package appstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/storepulse/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultCountry = "us"

// Client queries the Apple App Store through the iTunes lookup/search API
// and the public web storefront (for related apps, which the API does not
// expose).
type Client struct {
	httpClient  *http.Client
	apiBaseURL  string
	webBaseURL  string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new App Store client. rps bounds outbound requests per
// second against Apple's endpoints.
func NewClient(apiBaseURL, webBaseURL string, rps float64, logger *zap.Logger) *Client {
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiBaseURL:  strings.TrimRight(apiBaseURL, "/"),
		webBaseURL:  strings.TrimRight(webBaseURL, "/"),
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 10),
		logger:      logger,
	}
}

// Store identifies this client's marketplace.
func (c *Client) Store() domain.Store {
	return domain.StoreAppStore
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "StorePulse/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return resp, nil
}

// fetchBody performs a rate-limited GET with retries for transient failures
// and returns the response body. 404 maps to ErrAppNotFound and is not retried.
func (c *Client) fetchBody(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			c.logger.Warn("appstore request error",
				zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			if err := backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, domain.ErrAppNotFound
		}
		if resp.StatusCode != http.StatusOK {
			c.logger.Warn("appstore API error",
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode))
			lastErr = fmt.Errorf("%w: status %d", domain.ErrStoreUnavailable, resp.StatusCode)
			if err := backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		return body, nil
	}
	return nil, lastErr
}

// backoff waits before the next retry attempt, aborting as soon as ctx is
// cancelled so a caller's deadline is not spent sleeping.
func backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt*500) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// lookupEnvelope is the common iTunes API response wrapper
type lookupEnvelope struct {
	ResultCount int               `json:"resultCount"`
	Results     []json.RawMessage `json:"results"`
}

// Search returns catalog entries matching term, at most limit of them.
func (c *Client) Search(ctx context.Context, term, country string, limit int) ([]domain.CatalogEntry, error) {
	params := url.Values{}
	params.Add("media", "software")
	params.Add("entity", "software")
	params.Add("term", term)
	params.Add("country", countryOrDefault(country))
	params.Add("limit", strconv.Itoa(limit))

	body, err := c.fetchBody(ctx, fmt.Sprintf("%s/search?%s", c.apiBaseURL, params.Encode()))
	if err != nil {
		return nil, err
	}

	var envelope lookupEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	entries := make([]domain.CatalogEntry, 0, len(envelope.Results))
	for _, raw := range envelope.Results {
		var result struct {
			TrackID int64 `json:"trackId"`
		}
		if err := json.Unmarshal(raw, &result); err != nil || result.TrackID == 0 {
			continue
		}
		entries = append(entries, domain.CatalogEntry{
			ID:    strconv.FormatInt(result.TrackID, 10),
			Store: domain.StoreAppStore,
		})
	}

	c.logger.Debug("appstore search",
		zap.String("term", term), zap.Int("results", len(entries)))
	return entries, nil
}

// rssFeed models the subset of Apple's RSS JSON feeds we consume
type rssFeed struct {
	Feed struct {
		Entry []rssEntry `json:"entry"`
	} `json:"feed"`
}

type rssEntry struct {
	ID struct {
		Attributes struct {
			IMID string `json:"im:id"`
		} `json:"attributes"`
	} `json:"id"`
	Title struct {
		Label string `json:"label"`
	} `json:"title"`
	Content struct {
		Label string `json:"label"`
	} `json:"content"`
}

// List returns entries from a top-apps collection feed
// (e.g. "freeapplications" -> topfreeapplications).
func (c *Client) List(ctx context.Context, collection, country string, limit int) ([]domain.CatalogEntry, error) {
	reqURL := fmt.Sprintf("%s/%s/rss/top%s/limit=%d/json",
		c.apiBaseURL, countryOrDefault(country), collection, limit)

	body, err := c.fetchBody(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var feed rssFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to decode collection feed: %w", err)
	}

	entries := make([]domain.CatalogEntry, 0, len(feed.Feed.Entry))
	for _, entry := range feed.Feed.Entry {
		if entry.ID.Attributes.IMID == "" {
			continue
		}
		entries = append(entries, domain.CatalogEntry{
			ID:    entry.ID.Attributes.IMID,
			Store: domain.StoreAppStore,
		})
	}
	return entries, nil
}

// Detail fetches the full metadata record for one app id.
func (c *Client) Detail(ctx context.Context, id, country string) (*domain.Record, error) {
	params := url.Values{}
	params.Add("id", id)
	params.Add("country", countryOrDefault(country))

	body, err := c.fetchBody(ctx, fmt.Sprintf("%s/lookup?%s", c.apiBaseURL, params.Encode()))
	if err != nil {
		return nil, err
	}

	var envelope lookupEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if envelope.ResultCount == 0 || len(envelope.Results) == 0 {
		return nil, domain.ErrAppNotFound
	}

	rec := domain.NewRecord()
	if err := rec.UnmarshalJSON(envelope.Results[0]); err != nil {
		return nil, fmt.Errorf("failed to decode app record: %w", err)
	}
	return rec, nil
}

// Reviews returns up to limit review texts for an app, most recent first.
// An empty feed is valid: apps without reviews return an empty slice.
func (c *Client) Reviews(ctx context.Context, id, country string, limit int) ([]string, error) {
	reqURL := fmt.Sprintf("%s/%s/rss/customerreviews/page=1/id=%s/sortby=mostrecent/json",
		c.apiBaseURL, countryOrDefault(country), id)

	body, err := c.fetchBody(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var feed rssFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to decode reviews feed: %w", err)
	}

	reviews := make([]string, 0, len(feed.Feed.Entry))
	for _, entry := range feed.Feed.Entry {
		// The feed's first entry describes the app itself and has no content.
		if entry.Content.Label == "" {
			continue
		}
		reviews = append(reviews, entry.Content.Label)
		if len(reviews) >= limit {
			break
		}
	}
	return reviews, nil
}

// alsoBoughtRegex extracts the customersAlsoBoughtApps id list embedded in
// the storefront page's shoebox script.
var alsoBoughtRegex = regexp.MustCompile(`"customersAlsoBoughtApps"\s*:\s*\[([^\]]*)\]`)

var alsoBoughtIDRegex = regexp.MustCompile(`"?(\d+)"?`)

// Similar returns apps related to id. The iTunes API has no related-apps
// endpoint, so this scrapes the id list out of the web storefront page.
func (c *Client) Similar(ctx context.Context, id, country string) ([]domain.CatalogEntry, error) {
	reqURL := fmt.Sprintf("%s/%s/app/id%s", c.webBaseURL, countryOrDefault(country), id)

	body, err := c.fetchBody(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse storefront page: %w", err)
	}

	var entries []domain.CatalogEntry
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		match := alsoBoughtRegex.FindStringSubmatch(s.Text())
		if match == nil {
			return true
		}
		for _, idMatch := range alsoBoughtIDRegex.FindAllStringSubmatch(match[1], -1) {
			entries = append(entries, domain.CatalogEntry{
				ID:    idMatch[1],
				Store: domain.StoreAppStore,
			})
		}
		return false
	})

	return entries, nil
}

func countryOrDefault(country string) string {
	if country == "" {
		return defaultCountry
	}
	return strings.ToLower(country)
}
