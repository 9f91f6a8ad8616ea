package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/storepulse/backend/internal/domain"
)

// stubStoreClient is a deterministic in-memory store client. Per-entry
// latency and failures are configurable to exercise ordering and isolation.
type stubStoreClient struct {
	store       domain.Store
	entries     []domain.CatalogEntry
	details     map[string]*domain.Record
	reviews     map[string][]string
	latency     map[string]time.Duration
	failDetail  map[string]bool
	failReviews map[string]bool
	searchErr   error

	mu          sync.Mutex
	detailCalls int
}

func newStubClient(store domain.Store) *stubStoreClient {
	return &stubStoreClient{
		store:       store,
		details:     make(map[string]*domain.Record),
		reviews:     make(map[string][]string),
		latency:     make(map[string]time.Duration),
		failDetail:  make(map[string]bool),
		failReviews: make(map[string]bool),
	}
}

// addApp registers n as a catalog entry with a detail record and one review.
func (s *stubStoreClient) addApp(id, title string) {
	s.entries = append(s.entries, domain.CatalogEntry{ID: id, Store: s.store})
	rec := domain.NewRecord()
	rec.Set("appId", id)
	rec.Set("title", title)
	s.details[id] = rec
	s.reviews[id] = []string{"nice app " + id}
}

func (s *stubStoreClient) Store() domain.Store { return s.store }

func (s *stubStoreClient) Search(ctx context.Context, term, country string, limit int) ([]domain.CatalogEntry, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	return s.entries[:limit], nil
}

func (s *stubStoreClient) List(ctx context.Context, collection, country string, limit int) ([]domain.CatalogEntry, error) {
	return s.Search(ctx, collection, country, limit)
}

func (s *stubStoreClient) Similar(ctx context.Context, id, country string) ([]domain.CatalogEntry, error) {
	var related []domain.CatalogEntry
	for _, entry := range s.entries {
		if entry.ID != id {
			related = append(related, entry)
		}
	}
	return related, nil
}

func (s *stubStoreClient) Detail(ctx context.Context, id, country string) (*domain.Record, error) {
	s.mu.Lock()
	s.detailCalls++
	s.mu.Unlock()

	time.Sleep(s.latency[id])
	if s.failDetail[id] {
		return nil, fmt.Errorf("%w: stub detail failure", domain.ErrStoreUnavailable)
	}
	rec, ok := s.details[id]
	if !ok {
		return nil, domain.ErrAppNotFound
	}
	return rec.Clone(), nil
}

func (s *stubStoreClient) Reviews(ctx context.Context, id, country string, limit int) ([]string, error) {
	if s.failReviews[id] {
		return nil, errors.New("stub review failure")
	}
	reviews := s.reviews[id]
	if limit < len(reviews) {
		reviews = reviews[:limit]
	}
	return reviews, nil
}
