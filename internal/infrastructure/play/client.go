package play

import (
	"context"
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

const (
	defaultLanguage = "en"
	defaultCountry  = "us"
)

// Client queries Google Play by scraping the public web store, which has no
// JSON API. Selectors target the store's stable itemprop/data attributes;
// review bodies use the jsname hook the web client renders them with.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new Google Play client. rps bounds outbound requests
// per second; Play throttles aggressively, so keep this low.
func NewClient(baseURL string, rps float64, logger *zap.Logger) *Client {
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 5),
		logger:      logger,
	}
}

// Store identifies this client's marketplace.
func (c *Client) Store() domain.Store {
	return domain.StoreGooglePlay
}

// fetchDocument performs a rate-limited GET and parses the response as HTML.
// 404 maps to ErrAppNotFound.
func (c *Client) fetchDocument(ctx context.Context, reqURL string) (*goquery.Document, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "StorePulse/1.0")
	req.Header.Set("Accept-Language", defaultLanguage)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrAppNotFound
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", domain.ErrStoreUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// detailLinks collects app ids from /store/apps/details links in document
// order, deduplicated, excluding excludeID.
func detailLinks(doc *goquery.Document, excludeID string, limit int) []string {
	seen := make(map[string]bool)
	var ids []string
	doc.Find(`a[href^="/store/apps/details"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		id := u.Query().Get("id")
		if id == "" || id == excludeID || seen[id] {
			return true
		}
		seen[id] = true
		ids = append(ids, id)
		return limit <= 0 || len(ids) < limit
	})
	return ids
}

// Search returns catalog entries matching term, at most limit of them.
func (c *Client) Search(ctx context.Context, term, country string, limit int) ([]domain.CatalogEntry, error) {
	params := url.Values{}
	params.Add("q", term)
	params.Add("c", "apps")
	params.Add("hl", defaultLanguage)
	params.Add("gl", countryOrDefault(country))

	doc, err := c.fetchDocument(ctx, fmt.Sprintf("%s/store/search?%s", c.baseURL, params.Encode()))
	if err != nil {
		return nil, err
	}

	ids := detailLinks(doc, "", limit)
	entries := make([]domain.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, domain.CatalogEntry{ID: id, Store: domain.StoreGooglePlay})
	}

	c.logger.Debug("play search",
		zap.String("term", term), zap.Int("results", len(entries)))
	return entries, nil
}

// List returns entries from a store collection page (e.g. "topselling_free").
func (c *Client) List(ctx context.Context, collection, country string, limit int) ([]domain.CatalogEntry, error) {
	params := url.Values{}
	params.Add("hl", defaultLanguage)
	params.Add("gl", countryOrDefault(country))

	reqURL := fmt.Sprintf("%s/store/apps/collection/%s?%s",
		c.baseURL, url.PathEscape(collection), params.Encode())
	doc, err := c.fetchDocument(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	ids := detailLinks(doc, "", limit)
	entries := make([]domain.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, domain.CatalogEntry{ID: id, Store: domain.StoreGooglePlay})
	}
	return entries, nil
}

var starRatingRegex = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// Detail fetches an app's details page and extracts its metadata.
func (c *Client) Detail(ctx context.Context, id, country string) (*domain.Record, error) {
	doc, err := c.detailsPage(ctx, id, country)
	if err != nil {
		return nil, err
	}

	rec := domain.NewRecord()
	rec.Set("appId", id)
	rec.Set("url", fmt.Sprintf("%s/store/apps/details?id=%s", c.baseURL, id))
	rec.Set("title", strings.TrimSpace(doc.Find(`h1[itemprop="name"]`).First().Text()))
	rec.Set("description", strings.TrimSpace(doc.Find(`div[data-g-id="description"]`).First().Text()))
	rec.Set("developer", strings.TrimSpace(doc.Find(`a[href*="/store/apps/dev"]`).First().Text()))
	rec.Set("genre", strings.TrimSpace(doc.Find(`a[itemprop="genre"]`).First().Text()))

	if label, ok := doc.Find(`div[itemprop="starRating"] [role="img"]`).First().Attr("aria-label"); ok {
		if m := starRatingRegex.FindString(label); m != "" {
			if score, err := strconv.ParseFloat(m, 64); err == nil {
				rec.Set("score", score)
			}
		}
	}

	price := "0"
	if content, ok := doc.Find(`meta[itemprop="price"]`).First().Attr("content"); ok {
		price = content
	}
	rec.Set("price", price)
	rec.Set("free", price == "0")

	return rec, nil
}

// Similar returns the related apps listed on an app's details page.
func (c *Client) Similar(ctx context.Context, id, country string) ([]domain.CatalogEntry, error) {
	doc, err := c.detailsPage(ctx, id, country)
	if err != nil {
		return nil, err
	}

	ids := detailLinks(doc, id, 0)
	entries := make([]domain.CatalogEntry, 0, len(ids))
	for _, relatedID := range ids {
		entries = append(entries, domain.CatalogEntry{ID: relatedID, Store: domain.StoreGooglePlay})
	}
	return entries, nil
}

// Reviews returns up to limit review texts rendered on the details page.
// Play only embeds the most recent handful, so short batches are normal.
func (c *Client) Reviews(ctx context.Context, id, country string, limit int) ([]string, error) {
	doc, err := c.detailsPage(ctx, id, country)
	if err != nil {
		return nil, err
	}

	var reviews []string
	doc.Find(`div[data-review-id] [jsname="bN97Pc"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			reviews = append(reviews, text)
		}
		return len(reviews) < limit
	})
	return reviews, nil
}

func (c *Client) detailsPage(ctx context.Context, id, country string) (*goquery.Document, error) {
	params := url.Values{}
	params.Add("id", id)
	params.Add("hl", defaultLanguage)
	params.Add("gl", countryOrDefault(country))

	return c.fetchDocument(ctx, fmt.Sprintf("%s/store/apps/details?%s", c.baseURL, params.Encode()))
}

func countryOrDefault(country string) string {
	if country == "" {
		return defaultCountry
	}
	return strings.ToLower(country)
}
