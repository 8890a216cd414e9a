package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/provider"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// DefaultFetchTimeout bounds a single provider round trip
const DefaultFetchTimeout = 30 * time.Second

// SearchServiceConfig holds configuration for the search service
type SearchServiceConfig struct {
	// CacheTTL of zero disables response caching
	CacheTTL           time.Duration
	FetchTimeout       time.Duration
	EnableDebugLogging bool
}

// SearchService runs searches and owns the resulting state: the current
// products, loading flag, criteria, recommendation and last outcome.
// Only the most recently submitted search may update that state.
type SearchService struct {
	provider     domain.SearchProvider
	cache        domain.CacheRepository
	normalizer   *provider.Normalizer
	scorer       *RecommendationScorer
	validator    *CriteriaValidator
	cacheTTL     time.Duration
	fetchTimeout time.Duration
	logger       *zap.Logger

	mu            sync.RWMutex
	generation    uint64
	state         domain.SearchState
	loading       bool
	criteria      *domain.SearchCriteria
	products      []domain.Product
	// criteria the current products were settled with; differs from
	// criteria while a newer search is in flight
	productsFor   *domain.SearchCriteria
	recommendedID *string
	outcome       domain.SearchOutcome
	subscribers   map[int]chan domain.Snapshot
	nextSubID     int
}

// NewSearchService creates a new search service with dependencies.
// cache may be nil, in which case every search goes to the provider.
func NewSearchService(
	searchProvider domain.SearchProvider,
	cache domain.CacheRepository,
	normalizer *provider.Normalizer,
	logger *zap.Logger,
	config SearchServiceConfig,
) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = provider.NewNormalizer()
	}

	fetchTimeout := config.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	return &SearchService{
		provider:     searchProvider,
		cache:        cache,
		normalizer:   normalizer,
		scorer:       NewRecommendationScorer(logger, config.EnableDebugLogging),
		validator:    NewCriteriaValidator(),
		cacheTTL:     config.CacheTTL,
		fetchTimeout: fetchTimeout,
		logger:       logger.Named("search"),
		state:        domain.SearchStateIdle,
		outcome:      domain.SearchOutcome{Kind: domain.OutcomeNone},
		subscribers:  make(map[int]chan domain.Snapshot),
	}
}

// Search runs one search to completion.
// Flow: validate -> mark searching -> cache or provider -> normalize -> filter -> publish.
//
// Invalid criteria return ErrInvalidCriteria and leave the state untouched.
// A failed fetch empties the product list and records a failure outcome; the
// error is also returned. If a newer search started meanwhile the result is
// discarded and ErrStaleResponse is returned.
func (s *SearchService) Search(ctx context.Context, criteria domain.SearchCriteria) (domain.Snapshot, error) {
	criteria.ProductName = strings.TrimSpace(criteria.ProductName)
	criteria.Specifications = strings.TrimSpace(criteria.Specifications)

	if err := s.validator.Validate(criteria); err != nil {
		return s.Snapshot(), err
	}

	generation := s.begin(criteria)

	response, err := s.fetch(ctx, criteria.ProductName)
	if err != nil {
		s.logger.Warn("search failed",
			zap.Uint64("generation", generation),
			zap.String("product", criteria.ProductName),
			zap.Error(err))

		snap, applied := s.settle(generation, nil, domain.FailureOutcome(err.Error()))
		if !applied {
			return snap, domain.ErrStaleResponse
		}
		return snap, err
	}

	products := s.normalizer.NormalizeAll(response.OrganicResults)
	filtered := FilterByPriceRange(products, criteria)

	s.logger.Info("search settled",
		zap.Uint64("generation", generation),
		zap.String("product", criteria.ProductName),
		zap.Int("results", len(products)),
		zap.Int("matched", len(filtered)))

	snap, applied := s.settle(generation, filtered, domain.SuccessOutcome(len(products), len(filtered)))
	if !applied {
		return snap, domain.ErrStaleResponse
	}
	return snap, nil
}

// Recommend scores the current products against the criteria they were
// found with and records the winner. With no products it does nothing and
// returns false.
func (s *SearchService) Recommend() (domain.ScoredProduct, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.products) == 0 || s.productsFor == nil {
		return domain.ScoredProduct{}, false
	}

	best, ok := s.scorer.Recommend(s.products, *s.productsFor)
	if !ok {
		return domain.ScoredProduct{}, false
	}

	id := best.ID
	s.recommendedID = &id
	s.publishLocked()

	return best, true
}

// Snapshot returns a copy of the current state
func (s *SearchService) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot on every state change,
// starting with the current one. A slow reader only sees the latest snapshot.
// The returned func unsubscribes and closes the channel.
func (s *SearchService) Subscribe() (<-chan domain.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++

	ch := make(chan domain.Snapshot, 1)
	ch <- s.snapshotLocked()
	s.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
	return ch, unsubscribe
}

// begin moves to the searching state and returns the new generation
func (s *SearchService) begin(criteria domain.SearchCriteria) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.state = domain.SearchStateSearching
	s.loading = true
	s.criteria = &criteria
	s.recommendedID = nil
	s.publishLocked()

	return s.generation
}

// settle applies a finished search if it is still the latest one
func (s *SearchService) settle(generation uint64, products []domain.Product, outcome domain.SearchOutcome) (domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		s.logger.Debug("discarding stale search",
			zap.Uint64("generation", generation),
			zap.Uint64("current", s.generation))
		return s.snapshotLocked(), false
	}

	if products == nil {
		products = []domain.Product{}
	}

	s.state = domain.SearchStateSettled
	s.loading = false
	s.products = products
	if s.criteria != nil {
		settledFor := *s.criteria
		s.productsFor = &settledFor
	}
	s.recommendedID = nil
	s.outcome = outcome
	s.publishLocked()

	return s.snapshotLocked(), true
}

// fetch returns the provider response, consulting the cache first
func (s *SearchService) fetch(ctx context.Context, productName string) (*domain.SearchResponse, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", domain.ErrProviderFailure)
	}

	cacheKey := generateCacheKey(productName)

	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		s.logger.Debug("cache hit", zap.String("key", cacheKey))
		return cached, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	response, err := s.provider.Search(fetchCtx, productName)
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, fmt.Errorf("%w: empty response", domain.ErrProviderPayload)
	}

	if err := s.setInCache(ctx, cacheKey, response); err != nil {
		s.logger.Warn("failed to cache response", zap.String("key", cacheKey), zap.Error(err))
	}

	return response, nil
}

// getFromCache retrieves a provider response from cache
func (s *SearchService) getFromCache(ctx context.Context, key string) (*domain.SearchResponse, error) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, domain.ErrCacheMiss
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var response domain.SearchResponse
	if err := json.Unmarshal(data, &response); err != nil {
		// A corrupt entry is as good as a miss
		_ = s.cache.Delete(ctx, key)
		return nil, errors.Join(domain.ErrCacheMiss, err)
	}
	return &response, nil
}

// setInCache stores a provider response in cache
func (s *SearchService) setInCache(ctx context.Context, key string, response *domain.SearchResponse) error {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil
	}

	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, data, s.cacheTTL)
}

// snapshotLocked copies the state; the caller must hold mu
func (s *SearchService) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		Generation: s.generation,
		State:      s.state,
		Loading:    s.loading,
		Products:   make([]domain.Product, len(s.products)),
		Outcome:    s.outcome,
	}
	copy(snap.Products, s.products)

	if s.criteria != nil {
		criteria := *s.criteria
		snap.Criteria = &criteria
	}
	if s.recommendedID != nil {
		id := *s.recommendedID
		snap.RecommendedProductID = &id
	}
	return snap
}

// publishLocked pushes the current snapshot to every subscriber, replacing
// any snapshot they have not read yet; the caller must hold mu
func (s *SearchService) publishLocked() {
	if len(s.subscribers) == 0 {
		return
	}

	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// generateCacheKey creates a normalized cache key for a product name.
// Format: "search:{normalized_product_name}"
func generateCacheKey(productName string) string {
	return "search:" + normalizeForCacheKey(productName)
}

// normalizeForCacheKey folds compatibility forms (NFKC), case and runs of
// whitespace. No other character is dropped: names that differ in
// punctuation or script must not share a key.
func normalizeForCacheKey(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.Join(strings.Fields(s), " ")))
}
