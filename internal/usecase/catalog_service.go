package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/storepulse/backend/internal/domain"
	"go.uber.org/zap"
)

// Exporter accepts enriched result pairs for detached persistence. Enqueue
// returns the job id tracking the export.
type Exporter interface {
	Enqueue(pair *domain.StorePair) (string, error)
}

// fetchFunc is the per-route strategy: how to turn a request into catalog
// entries for one store. Search, collection and similar differ only here;
// everything downstream is shared.
type fetchFunc func(ctx context.Context, client domain.StoreClient) ([]domain.CatalogEntry, error)

// CatalogService runs the fan-out pipeline behind every route: fetch entries
// per store, enrich them, hand the result to the exporter and return it.
type CatalogService struct {
	appStore   domain.StoreClient
	googlePlay domain.StoreClient
	enricher   *Enricher
	exporter   Exporter
	logger     *zap.Logger
}

// NewCatalogService creates the service. exporter may be nil to disable
// detached persistence (used in tests).
func NewCatalogService(
	appStore domain.StoreClient,
	googlePlay domain.StoreClient,
	enricher *Enricher,
	exporter Exporter,
	logger *zap.Logger,
) *CatalogService {
	return &CatalogService{
		appStore:   appStore,
		googlePlay: googlePlay,
		enricher:   enricher,
		exporter:   exporter,
		logger:     logger,
	}
}

// Search fetches and enriches search results from both stores.
func (s *CatalogService) Search(ctx context.Context, term, country string, limit int) (*domain.StorePair, string, error) {
	if term == "" || limit < 1 {
		return nil, "", domain.ErrInvalidRequest
	}
	return s.run(ctx, country, func(ctx context.Context, client domain.StoreClient) ([]domain.CatalogEntry, error) {
		return client.Search(ctx, term, country, limit)
	})
}

// Collection fetches and enriches a store collection from both stores.
func (s *CatalogService) Collection(ctx context.Context, collection, country string, limit int) (*domain.StorePair, string, error) {
	if collection == "" || country == "" || limit < 1 {
		return nil, "", domain.ErrInvalidRequest
	}
	return s.run(ctx, country, func(ctx context.Context, client domain.StoreClient) ([]domain.CatalogEntry, error) {
		return client.List(ctx, collection, country, limit)
	})
}

// Similar resolves appName to each store's best match via a one-result
// search, then fetches and enriches that app's related apps. A store with no
// match contributes an empty list, not an error.
func (s *CatalogService) Similar(ctx context.Context, appName, country string) (*domain.StorePair, string, error) {
	if appName == "" || country == "" {
		return nil, "", domain.ErrInvalidRequest
	}
	return s.run(ctx, country, func(ctx context.Context, client domain.StoreClient) ([]domain.CatalogEntry, error) {
		matches, err := client.Search(ctx, appName, country, 1)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, nil
		}
		return client.Similar(ctx, matches[0].ID, country)
	})
}

// run executes fetch+enrich for both stores independently. One store's
// failure empties that store's result; the request fails only when both
// stores fail. The enriched pair is enqueued for detached export before
// returning.
func (s *CatalogService) run(ctx context.Context, country string, fetch fetchFunc) (*domain.StorePair, string, error) {
	type storeResult struct {
		records []*domain.Record
		err     error
	}

	var wg sync.WaitGroup
	results := make(map[domain.Store]*storeResult, 2)
	for _, client := range []domain.StoreClient{s.appStore, s.googlePlay} {
		result := &storeResult{}
		results[client.Store()] = result

		wg.Add(1)
		go func() {
			defer wg.Done()

			entries, err := fetch(ctx, client)
			if err != nil {
				s.logger.Error("store fetch failed",
					zap.String("store", string(client.Store())),
					zap.Error(err))
				result.err = err
				return
			}
			result.records, _ = s.enricher.Enrich(ctx, client, entries, country)
		}()
	}
	wg.Wait()

	appStore := results[domain.StoreAppStore]
	googlePlay := results[domain.StoreGooglePlay]
	if appStore.err != nil && googlePlay.err != nil {
		return nil, "", fmt.Errorf("%w: all stores failed", domain.ErrStoreUnavailable)
	}

	pair := &domain.StorePair{
		AppStore:   emptyIfNil(appStore.records),
		GooglePlay: emptyIfNil(googlePlay.records),
	}

	jobID := ""
	if s.exporter != nil {
		id, err := s.exporter.Enqueue(pair)
		if err != nil {
			s.logger.Warn("export enqueue failed", zap.Error(err))
		} else {
			jobID = id
		}
	}

	return pair, jobID, nil
}

// emptyIfNil keeps response arrays as [] rather than null in JSON.
func emptyIfNil(records []*domain.Record) []*domain.Record {
	if records == nil {
		return []*domain.Record{}
	}
	return records
}
