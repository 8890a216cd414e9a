package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu        sync.Mutex
	data      map[string][]byte
	getError  error
	setError  error
	getCalled bool
	setCalled bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// MockSearchProvider is a mock implementation of domain.SearchProvider
type MockSearchProvider struct {
	mu          sync.Mutex
	response    *domain.SearchResponse
	searchError error
	calls       int
	lastQuery   string
	queries     []string
}

func NewMockSearchProvider(response *domain.SearchResponse) *MockSearchProvider {
	return &MockSearchProvider{response: response}
}

func (m *MockSearchProvider) Search(ctx context.Context, query string) (*domain.SearchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastQuery = query
	m.queries = append(m.queries, query)
	if m.searchError != nil {
		return nil, m.searchError
	}
	return m.response, nil
}

func (m *MockSearchProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// blockingProvider holds back the "slow" query until release is closed
type blockingProvider struct {
	started   chan string
	release   chan struct{}
	responses map[string]*domain.SearchResponse
}

func (b *blockingProvider) Search(ctx context.Context, query string) (*domain.SearchResponse, error) {
	b.started <- query
	if query == "slow" {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return b.responses[query], nil
}

func rawResult(title, extension string, rating float64, reviews int) domain.RawResult {
	r := domain.RawResult{Title: &title, Rating: &rating, Reviews: &reviews}
	if extension != "" {
		r.RichSnippet = &domain.RichSnippet{Top: &domain.RichSnippetBlock{Extensions: []string{extension}}}
	}
	return r
}

// threeResults has two products inside 10000-50000 KSH and one above it
func threeResults() *domain.SearchResponse {
	return &domain.SearchResponse{
		OrganicResults: []domain.RawResult{
			rawResult("Budget Phone", "$100", 3.5, 2),            // 14500 KSH
			rawResult("Flagship Phone", "$500", 4.9, 900),        // 72500 KSH
			rawResult("Midrange Phone", "$200 to $300", 4.5, 40), // 36250 KSH
		},
	}
}

func phoneCriteria() domain.SearchCriteria {
	return domain.SearchCriteria{ProductName: "phone", MinPrice: 10000, MaxPrice: 50000}
}

func newTestService(p domain.SearchProvider, cache domain.CacheRepository, ttl time.Duration) *SearchService {
	return NewSearchService(p, cache, provider.NewNormalizer(), zap.NewNop(), SearchServiceConfig{CacheTTL: ttl})
}

func TestNewSearchService(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		svc := NewSearchService(NewMockSearchProvider(nil), nil, nil, nil, SearchServiceConfig{})

		require.NotNil(t, svc)
		assert.Equal(t, DefaultFetchTimeout, svc.fetchTimeout)
		assert.NotNil(t, svc.normalizer)
		assert.NotNil(t, svc.logger)
	})

	t.Run("starts idle and empty", func(t *testing.T) {
		svc := newTestService(NewMockSearchProvider(nil), nil, 0)

		snap := svc.Snapshot()
		assert.Equal(t, domain.SearchStateIdle, snap.State)
		assert.False(t, snap.Loading)
		assert.Nil(t, snap.Criteria)
		assert.Empty(t, snap.Products)
		assert.Nil(t, snap.RecommendedProductID)
		assert.Equal(t, domain.OutcomeNone, snap.Outcome.Kind)
	})
}

func TestSearch_EndToEnd(t *testing.T) {
	mockProvider := NewMockSearchProvider(threeResults())
	svc := newTestService(mockProvider, nil, 0)

	snap, err := svc.Search(context.Background(), phoneCriteria())

	require.NoError(t, err)
	assert.Equal(t, "phone", mockProvider.lastQuery)
	assert.Equal(t, domain.SearchStateSettled, snap.State)
	assert.False(t, snap.Loading)
	require.Len(t, snap.Products, 2)
	assert.Equal(t, "Budget Phone", snap.Products[0].Title)
	assert.Equal(t, "Midrange Phone", snap.Products[1].Title)
	assert.Equal(t, domain.SuccessOutcome(3, 2), snap.Outcome)
	assert.Nil(t, snap.RecommendedProductID)

	best, ok := svc.Recommend()
	require.True(t, ok)

	after := svc.Snapshot()
	require.NotNil(t, after.RecommendedProductID)
	assert.Equal(t, best.ID, *after.RecommendedProductID)

	recommended, found := after.RecommendedProduct()
	require.True(t, found)
	assert.Contains(t, []string{"Budget Phone", "Midrange Phone"}, recommended.Title)
}

func TestSearch_TrimsCriteria(t *testing.T) {
	mockProvider := NewMockSearchProvider(threeResults())
	svc := newTestService(mockProvider, nil, 0)

	criteria := phoneCriteria()
	criteria.ProductName = "  phone  "
	criteria.Specifications = " 8GB "

	snap, err := svc.Search(context.Background(), criteria)

	require.NoError(t, err)
	assert.Equal(t, "phone", mockProvider.lastQuery)
	require.NotNil(t, snap.Criteria)
	assert.Equal(t, "phone", snap.Criteria.ProductName)
	assert.Equal(t, "8GB", snap.Criteria.Specifications)
}

func TestSearch_NoMatchesIsSuccess(t *testing.T) {
	svc := newTestService(NewMockSearchProvider(threeResults()), nil, 0)

	criteria := phoneCriteria()
	criteria.MinPrice = 1
	criteria.MaxPrice = 10

	snap, err := svc.Search(context.Background(), criteria)

	require.NoError(t, err)
	assert.Empty(t, snap.Products)
	assert.Equal(t, domain.SuccessOutcome(3, 0), snap.Outcome)
	assert.False(t, snap.Outcome.Failed())

	_, ok := svc.Recommend()
	assert.False(t, ok)
	assert.Nil(t, svc.Snapshot().RecommendedProductID)
}

func TestSearch_ProviderFailure(t *testing.T) {
	mockProvider := NewMockSearchProvider(threeResults())
	svc := newTestService(mockProvider, nil, 0)

	_, err := svc.Search(context.Background(), phoneCriteria())
	require.NoError(t, err)
	_, ok := svc.Recommend()
	require.True(t, ok)

	mockProvider.searchError = errors.Join(domain.ErrProviderFailure, errors.New("status 500"))

	snap, err := svc.Search(context.Background(), phoneCriteria())

	assert.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Equal(t, domain.SearchStateSettled, snap.State)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Products)
	assert.Nil(t, snap.RecommendedProductID)
	assert.True(t, snap.Outcome.Failed())
	assert.Contains(t, snap.Outcome.Reason, "status 500")
}

func TestSearch_NilResponseIsFailure(t *testing.T) {
	svc := newTestService(NewMockSearchProvider(nil), nil, 0)

	snap, err := svc.Search(context.Background(), phoneCriteria())

	assert.ErrorIs(t, err, domain.ErrProviderPayload)
	assert.True(t, snap.Outcome.Failed())
}

func TestSearch_InvalidCriteriaLeavesStateUntouched(t *testing.T) {
	mockProvider := NewMockSearchProvider(threeResults())
	svc := newTestService(mockProvider, nil, 0)

	before, err := svc.Search(context.Background(), phoneCriteria())
	require.NoError(t, err)

	tests := []struct {
		name     string
		criteria domain.SearchCriteria
	}{
		{name: "blank name", criteria: domain.SearchCriteria{ProductName: "  ", MinPrice: 0, MaxPrice: 10}},
		{name: "inverted range", criteria: domain.SearchCriteria{ProductName: "tv", MinPrice: 100, MaxPrice: 10}},
		{name: "negative min", criteria: domain.SearchCriteria{ProductName: "tv", MinPrice: -5, MaxPrice: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := svc.Search(context.Background(), tt.criteria)

			assert.ErrorIs(t, err, domain.ErrInvalidCriteria)
			assert.Equal(t, before, snap)
		})
	}

	assert.Equal(t, 1, mockProvider.Calls())
}

func TestSearch_Cache(t *testing.T) {
	ctx := context.Background()

	t.Run("second search is served from cache", func(t *testing.T) {
		mockProvider := NewMockSearchProvider(threeResults())
		cache := NewMockCacheRepository()
		svc := newTestService(mockProvider, cache, time.Minute)

		first, err := svc.Search(ctx, phoneCriteria())
		require.NoError(t, err)
		assert.True(t, cache.setCalled)

		criteria := phoneCriteria()
		criteria.ProductName = "  PHONE "
		second, err := svc.Search(ctx, criteria)
		require.NoError(t, err)

		assert.Equal(t, 1, mockProvider.Calls())
		require.Len(t, second.Products, len(first.Products))
		for i := range first.Products {
			assert.Equal(t, first.Products[i].Title, second.Products[i].Title)
			assert.Equal(t, first.Products[i].PriceKSH, second.Products[i].PriceKSH)
		}
	})

	t.Run("distinct names never share an entry", func(t *testing.T) {
		pairs := [][2]string{
			{"3.5mm jack", "35mm jack"},
			{"C++ book", "C book"},
			{"手机", "电脑"},
			{"phone!", "phone"},
		}

		for _, pair := range pairs {
			t.Run(pair[0]+" vs "+pair[1], func(t *testing.T) {
				mockProvider := NewMockSearchProvider(threeResults())
				svc := newTestService(mockProvider, NewMockCacheRepository(), time.Minute)

				for _, name := range pair {
					criteria := phoneCriteria()
					criteria.ProductName = name
					_, err := svc.Search(ctx, criteria)
					require.NoError(t, err)
				}

				assert.Equal(t, []string{pair[0], pair[1]}, mockProvider.queries)
			})
		}
	})

	t.Run("zero ttl disables cache", func(t *testing.T) {
		mockProvider := NewMockSearchProvider(threeResults())
		cache := NewMockCacheRepository()
		svc := newTestService(mockProvider, cache, 0)

		_, err := svc.Search(ctx, phoneCriteria())
		require.NoError(t, err)
		_, err = svc.Search(ctx, phoneCriteria())
		require.NoError(t, err)

		assert.Equal(t, 2, mockProvider.Calls())
		assert.False(t, cache.getCalled)
		assert.False(t, cache.setCalled)
	})

	t.Run("cache write failure does not fail search", func(t *testing.T) {
		cache := NewMockCacheRepository()
		cache.setError = errors.New("cache full")
		svc := newTestService(NewMockSearchProvider(threeResults()), cache, time.Minute)

		snap, err := svc.Search(ctx, phoneCriteria())

		require.NoError(t, err)
		assert.Len(t, snap.Products, 2)
	})

	t.Run("corrupt entry is dropped and refetched", func(t *testing.T) {
		mockProvider := NewMockSearchProvider(threeResults())
		cache := NewMockCacheRepository()
		cache.data[generateCacheKey("phone")] = []byte("{not json")
		svc := newTestService(mockProvider, cache, time.Minute)

		snap, err := svc.Search(ctx, phoneCriteria())

		require.NoError(t, err)
		assert.Len(t, snap.Products, 2)
		assert.Equal(t, 1, mockProvider.Calls())
		exists, _ := cache.Exists(ctx, generateCacheKey("phone"))
		assert.True(t, exists)
	})
}

func TestSearch_StaleResponseIsDiscarded(t *testing.T) {
	fast := "Fast Result"
	slow := "Slow Result"
	bp := &blockingProvider{
		started: make(chan string, 2),
		release: make(chan struct{}),
		responses: map[string]*domain.SearchResponse{
			"slow": {OrganicResults: []domain.RawResult{rawResult(slow, "$100", 4, 1)}},
			"fast": {OrganicResults: []domain.RawResult{rawResult(fast, "$100", 4, 1)}},
		},
	}
	svc := newTestService(bp, nil, 0)

	type result struct {
		snap domain.Snapshot
		err  error
	}
	slowDone := make(chan result, 1)
	go func() {
		criteria := phoneCriteria()
		criteria.ProductName = "slow"
		snap, err := svc.Search(context.Background(), criteria)
		slowDone <- result{snap, err}
	}()

	require.Equal(t, "slow", <-bp.started)

	criteria := phoneCriteria()
	criteria.ProductName = "fast"
	fastSnap, err := svc.Search(context.Background(), criteria)
	require.NoError(t, err)
	require.Len(t, fastSnap.Products, 1)
	assert.Equal(t, fast, fastSnap.Products[0].Title)
	<-bp.started

	close(bp.release)
	slowResult := <-slowDone

	assert.ErrorIs(t, slowResult.err, domain.ErrStaleResponse)

	final := svc.Snapshot()
	assert.Equal(t, fastSnap.Generation, final.Generation)
	require.Len(t, final.Products, 1)
	assert.Equal(t, fast, final.Products[0].Title)
	assert.Equal(t, "fast", final.Criteria.ProductName)
}

func TestSearch_LoadingWhileInFlight(t *testing.T) {
	bp := &blockingProvider{
		started:   make(chan string, 1),
		release:   make(chan struct{}),
		responses: map[string]*domain.SearchResponse{"slow": threeResults()},
	}
	svc := newTestService(bp, nil, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		criteria := phoneCriteria()
		criteria.ProductName = "slow"
		_, _ = svc.Search(context.Background(), criteria)
	}()

	<-bp.started
	inFlight := svc.Snapshot()
	assert.True(t, inFlight.Loading)
	assert.Equal(t, domain.SearchStateSearching, inFlight.State)

	close(bp.release)
	<-done

	settled := svc.Snapshot()
	assert.False(t, settled.Loading)
	assert.Equal(t, domain.SearchStateSettled, settled.State)
}

func TestSearch_FetchTimeout(t *testing.T) {
	bp := &blockingProvider{
		started:   make(chan string, 1),
		release:   make(chan struct{}),
		responses: map[string]*domain.SearchResponse{},
	}
	svc := NewSearchService(bp, nil, nil, zap.NewNop(), SearchServiceConfig{FetchTimeout: 20 * time.Millisecond})

	criteria := phoneCriteria()
	criteria.ProductName = "slow"
	snap, err := svc.Search(context.Background(), criteria)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, snap.Outcome.Failed())
	assert.False(t, snap.Loading)
}

func TestSubscribe(t *testing.T) {
	svc := newTestService(NewMockSearchProvider(threeResults()), nil, 0)

	updates, unsubscribe := svc.Subscribe()

	initial := <-updates
	assert.Equal(t, domain.SearchStateIdle, initial.State)

	_, err := svc.Search(context.Background(), phoneCriteria())
	require.NoError(t, err)

	// the searching snapshot was replaced by the settled one
	latest := <-updates
	assert.Equal(t, domain.SearchStateSettled, latest.State)
	assert.Len(t, latest.Products, 2)

	_, ok := svc.Recommend()
	require.True(t, ok)
	withPick := <-updates
	assert.NotNil(t, withPick.RecommendedProductID)

	unsubscribe()
	unsubscribe()

	_, open := <-updates
	assert.False(t, open)
}

func TestRecommend_WhileSearchInFlight(t *testing.T) {
	// A sits on the first band's midpoint, B on the second's
	bp := &blockingProvider{
		started: make(chan string, 2),
		release: make(chan struct{}),
		responses: map[string]*domain.SearchResponse{
			"fast": {OrganicResults: []domain.RawResult{
				rawResult("A", "$100", 4, 0),      // 14500 KSH
				rawResult("B", "$100.02", 4.2, 0), // 14502.9 KSH
			}},
			"slow": {OrganicResults: []domain.RawResult{}},
		},
	}
	svc := newTestService(bp, nil, 0)

	first := domain.SearchCriteria{ProductName: "fast", MinPrice: 14000, MaxPrice: 15000}
	settled, err := svc.Search(context.Background(), first)
	require.NoError(t, err)
	require.Len(t, settled.Products, 2)
	<-bp.started

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Search(context.Background(), domain.SearchCriteria{ProductName: "slow", MinPrice: 14000, MaxPrice: 15005.8})
	}()
	<-bp.started
	require.Equal(t, domain.SearchStateSearching, svc.Snapshot().State)

	best, ok := svc.Recommend()

	require.True(t, ok)
	assert.Equal(t, "A", best.Title)
	assert.InDelta(t, 60, best.Score, 1e-9)

	close(bp.release)
	<-done
}

func TestRecommend_BeforeAnySearch(t *testing.T) {
	svc := newTestService(NewMockSearchProvider(nil), nil, 0)

	_, ok := svc.Recommend()

	assert.False(t, ok)
	assert.Nil(t, svc.Snapshot().RecommendedProductID)
}

func TestGenerateCacheKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Phone", "search:phone"},
		{"  Galaxy   S24!  ", "search:galaxy s24!"},
		{"ｐｈｏｎｅ", "search:phone"},
		{"3.5mm Jack", "search:3.5mm jack"},
		{"手机", "search:手机"},
		{"", "search:"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, generateCacheKey(tt.input))
		})
	}
}
