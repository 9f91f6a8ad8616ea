package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/storepulse/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// reviewSeparator joins individual review texts into the single reviews field.
const reviewSeparator = " | "

// EnricherConfig holds enrichment stage configuration
type EnricherConfig struct {
	Concurrency int
	ReviewLimit int
	CacheTTL    time.Duration
}

// Enricher attaches detail and review data to catalog entries. Fetches are
// fanned out with a bounded worker pool and joined positionally, so output
// order always matches query-response order regardless of completion order.
type Enricher struct {
	cache       domain.DetailCache
	concurrency int
	reviewLimit int
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewEnricher creates an enricher. cache may be nil to disable detail caching.
func NewEnricher(cache domain.DetailCache, config EnricherConfig, logger *zap.Logger) *Enricher {
	concurrency := config.Concurrency
	if concurrency < 1 {
		concurrency = 8
	}
	reviewLimit := config.ReviewLimit
	if reviewLimit < 1 {
		reviewLimit = 200
	}

	return &Enricher{
		cache:       cache,
		concurrency: concurrency,
		reviewLimit: reviewLimit,
		cacheTTL:    config.CacheTTL,
		logger:      logger,
	}
}

// Enrich produces one enriched record per entry. Failure policy:
//   - a failed review fetch keeps the entry, with the reviews field set to
//     the ReviewsUnavailable sentinel;
//   - a failed detail fetch drops that entry and counts it as a partial
//     failure; the rest of the batch is unaffected.
//
// The returned records preserve entry order, minus dropped entries. The
// second return value is the number of entries dropped.
func (e *Enricher) Enrich(ctx context.Context, client domain.StoreClient, entries []domain.CatalogEntry, country string) ([]*domain.Record, int) {
	results := make([]*domain.Record, len(entries))

	g := &errgroup.Group{}
	g.SetLimit(e.concurrency)

	for i, entry := range entries {
		g.Go(func() error {
			results[i] = e.enrichEntry(ctx, client, entry, country)
			return nil
		})
	}
	// Workers never return errors; failures are handled per entry.
	_ = g.Wait()

	records := make([]*domain.Record, 0, len(entries))
	for _, rec := range results {
		if rec != nil {
			records = append(records, rec)
		}
	}

	dropped := len(entries) - len(records)
	if dropped > 0 {
		e.logger.Warn("entries dropped during enrichment",
			zap.String("store", string(client.Store())),
			zap.Int("dropped", dropped),
			zap.Int("total", len(entries)))
	}
	return records, dropped
}

// enrichEntry fetches detail and reviews for one entry concurrently and
// returns the enriched record, or nil if the entry is dropped.
func (e *Enricher) enrichEntry(ctx context.Context, client domain.StoreClient, entry domain.CatalogEntry, country string) *domain.Record {
	reviewsCh := make(chan string, 1)
	go func() {
		reviews, err := client.Reviews(ctx, entry.ID, country, e.reviewLimit)
		if err != nil {
			e.logger.Warn("review fetch failed",
				zap.String("store", string(client.Store())),
				zap.String("id", entry.ID),
				zap.Error(err))
			reviewsCh <- domain.ReviewsUnavailable
			return
		}
		reviewsCh <- strings.Join(reviews, reviewSeparator)
	}()

	rec, err := e.detail(ctx, client, entry, country)
	reviews := <-reviewsCh
	if err != nil {
		e.logger.Warn("detail fetch failed, dropping entry",
			zap.String("store", string(client.Store())),
			zap.String("id", entry.ID),
			zap.Error(err))
		return nil
	}

	rec.Set(domain.ReviewsField, reviews)
	return rec
}

// detail returns the entry's detail record, preferring pre-populated detail,
// then the cache, then the store client.
func (e *Enricher) detail(ctx context.Context, client domain.StoreClient, entry domain.CatalogEntry, country string) (*domain.Record, error) {
	if entry.Detail != nil {
		return entry.Detail.Clone(), nil
	}

	key := cacheKey(client.Store(), entry.ID, country)
	if e.cache != nil {
		if rec, err := e.cache.Get(ctx, key); err == nil {
			return rec, nil
		}
	}

	rec, err := client.Detail(ctx, entry.ID, country)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, rec, e.cacheTTL); err != nil {
			e.logger.Warn("detail cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return rec, nil
}

func cacheKey(store domain.Store, id, country string) string {
	if country == "" {
		country = "us"
	}
	return fmt.Sprintf("detail:%s:%s:%s", store, id, country)
}
