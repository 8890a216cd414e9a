package usecase

import (
	"math"

	"github.com/pricescout/backend/internal/domain"
	"go.uber.org/zap"
)

// Score weights
const (
	ratingWeight         = 10.0 // per rating point, max 50
	reviewsCap           = 3    // review counts saturate here
	reviewsWeight        = 10.0 // per capped review, max 30
	priceScoreMax        = 20.0 // product priced exactly at the band midpoint
	priceDistancePenalty = 2.0  // points lost per KSH away from the midpoint
)

// RecommendationScorer ranks products and picks the single best one
type RecommendationScorer struct {
	logger             *zap.Logger
	enableDebugLogging bool
}

// NewRecommendationScorer creates a scorer. A nil logger disables logging.
func NewRecommendationScorer(logger *zap.Logger, enableDebugLogging bool) *RecommendationScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationScorer{
		logger:             logger.Named("recommend"),
		enableDebugLogging: enableDebugLogging,
	}
}

// Score computes the desirability of a product for the given criteria:
//   - rating × 10 when a rating is present
//   - min(reviews, 3) × 10 when there are reviews
//   - max(0, 20 − |priceKsh − midPrice| × 2) when a price is present
func (s *RecommendationScorer) Score(product domain.Product, criteria domain.SearchCriteria) float64 {
	score := 0.0

	if product.Rating != nil {
		score += *product.Rating * ratingWeight
	}

	if product.ReviewsCount > 0 {
		score += float64(min(product.ReviewsCount, reviewsCap)) * reviewsWeight
	}

	if product.PriceKSH != nil {
		distance := math.Abs(*product.PriceKSH - criteria.MidPrice())
		score += math.Max(0, priceScoreMax-distance*priceDistancePenalty)
	}

	return score
}

// ScoreAll scores every product, preserving order
func (s *RecommendationScorer) ScoreAll(products []domain.Product, criteria domain.SearchCriteria) []domain.ScoredProduct {
	scored := make([]domain.ScoredProduct, 0, len(products))
	for _, product := range products {
		scored = append(scored, domain.ScoredProduct{
			Product: product,
			Score:   s.Score(product, criteria),
		})
	}
	return scored
}

// Recommend returns the highest scoring product. On ties the earliest product
// wins. The bool is false when products is empty.
func (s *RecommendationScorer) Recommend(products []domain.Product, criteria domain.SearchCriteria) (domain.ScoredProduct, bool) {
	if len(products) == 0 {
		return domain.ScoredProduct{}, false
	}

	scored := s.ScoreAll(products, criteria)
	best := scored[0]
	for i, candidate := range scored {
		if s.enableDebugLogging {
			s.logger.Debug("candidate",
				zap.String("id", candidate.ID),
				zap.String("title", candidate.Title),
				zap.Float64("score", candidate.Score))
		}
		if i > 0 && candidate.Score > best.Score {
			best = candidate
		}
	}

	if s.enableDebugLogging {
		s.logger.Debug("best product",
			zap.String("id", best.ID),
			zap.String("title", best.Title),
			zap.Float64("score", best.Score))
	}

	return best, true
}
