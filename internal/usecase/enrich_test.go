package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/storepulse/backend/internal/domain"
	"github.com/storepulse/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEnricher(c domain.DetailCache) *Enricher {
	return NewEnricher(c, EnricherConfig{
		Concurrency: 4,
		ReviewLimit: 200,
		CacheTTL:    time.Minute,
	}, zap.NewNop())
}

func TestEnrich_AttachesDetailAndReviews(t *testing.T) {
	client := newStubClient(domain.StoreAppStore)
	client.addApp("1", "First")
	client.addApp("2", "Second")

	enricher := newTestEnricher(nil)
	records, dropped := enricher.Enrich(context.Background(), client, client.entries, "us")

	require.Len(t, records, 2)
	assert.Equal(t, 0, dropped)

	title, _ := records[0].Get("title")
	assert.Equal(t, "First", title)
	reviews, ok := records[0].Get(domain.ReviewsField)
	require.True(t, ok)
	assert.Equal(t, "nice app 1", reviews)
}

func TestEnrich_PositionalOrderUnderLatencyJitter(t *testing.T) {
	client := newStubClient(domain.StoreAppStore)
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("%d", i)
		client.addApp(id, "App "+id)
	}
	// Earlier entries finish last; output order must not change.
	client.latency["0"] = 60 * time.Millisecond
	client.latency["1"] = 40 * time.Millisecond
	client.latency["2"] = 20 * time.Millisecond

	enricher := newTestEnricher(nil)
	records, dropped := enricher.Enrich(context.Background(), client, client.entries, "us")

	require.Len(t, records, 6)
	assert.Equal(t, 0, dropped)
	for i, rec := range records {
		id, _ := rec.Get("appId")
		assert.Equal(t, fmt.Sprintf("%d", i), id)
	}
}

func TestEnrich_ReviewFailureKeepsEntryWithSentinel(t *testing.T) {
	client := newStubClient(domain.StoreGooglePlay)
	client.addApp("a", "Alpha")
	client.addApp("b", "Beta")
	client.addApp("c", "Gamma")
	client.failReviews["b"] = true

	enricher := newTestEnricher(nil)
	records, dropped := enricher.Enrich(context.Background(), client, client.entries, "us")

	// Batch size is unchanged by a review failure.
	require.Len(t, records, 3)
	assert.Equal(t, 0, dropped)

	reviews, _ := records[1].Get(domain.ReviewsField)
	assert.Equal(t, domain.ReviewsUnavailable, reviews)

	reviews, _ = records[0].Get(domain.ReviewsField)
	assert.Equal(t, "nice app a", reviews)
}

func TestEnrich_DetailFailureDropsOnlyThatEntry(t *testing.T) {
	client := newStubClient(domain.StoreAppStore)
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		client.addApp(id, "App "+id)
	}
	client.failDetail["3"] = true

	enricher := newTestEnricher(nil)
	records, dropped := enricher.Enrich(context.Background(), client, client.entries, "us")

	require.Len(t, records, 4)
	assert.Equal(t, 1, dropped)

	var ids []string
	for _, rec := range records {
		id, _ := rec.Get("appId")
		ids = append(ids, id.(string))
	}
	assert.Equal(t, []string{"1", "2", "4", "5"}, ids)
}

func TestEnrich_UsesPrepopulatedDetail(t *testing.T) {
	client := newStubClient(domain.StoreGooglePlay)
	detail := domain.NewRecord()
	detail.Set("appId", "x")
	detail.Set("title", "Prefetched")
	client.reviews["x"] = []string{"solid"}
	entries := []domain.CatalogEntry{{ID: "x", Store: domain.StoreGooglePlay, Detail: detail}}

	enricher := newTestEnricher(nil)
	records, dropped := enricher.Enrich(context.Background(), client, entries, "us")

	require.Len(t, records, 1)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, 0, client.detailCalls)

	title, _ := records[0].Get("title")
	assert.Equal(t, "Prefetched", title)
	// The caller's record must not pick up the reviews field.
	_, ok := detail.Get(domain.ReviewsField)
	assert.False(t, ok)
}

func TestEnrich_DetailCacheCutsSecondFetch(t *testing.T) {
	client := newStubClient(domain.StoreAppStore)
	client.addApp("1", "Cached")

	enricher := newTestEnricher(cache.NewMemoryDetailCache())

	ctx := context.Background()
	_, _ = enricher.Enrich(ctx, client, client.entries, "us")
	_, _ = enricher.Enrich(ctx, client, client.entries, "us")

	assert.Equal(t, 1, client.detailCalls)
}

func TestEnrich_ReviewJoinUsesSeparator(t *testing.T) {
	client := newStubClient(domain.StoreAppStore)
	client.addApp("1", "Multi")
	client.reviews["1"] = []string{"first review", "second review", "third review"}

	enricher := newTestEnricher(nil)
	records, _ := enricher.Enrich(context.Background(), client, client.entries, "us")

	require.Len(t, records, 1)
	reviews, _ := records[0].Get(domain.ReviewsField)
	assert.Equal(t, "first review | second review | third review", reviews)
}
