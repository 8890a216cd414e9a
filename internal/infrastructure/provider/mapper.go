package provider

import (
	"github.com/google/uuid"
	"github.com/pricescout/backend/internal/domain"
)

// Normalizer converts provider results into domain products
type Normalizer struct {
	usdToKSH float64
	newID    func() string
}

// NewNormalizer creates a normalizer using the fixed USD to KSH rate
func NewNormalizer() *Normalizer {
	return NewNormalizerWithRate(domain.DefaultUSDToKSH)
}

// NewNormalizerWithRate creates a normalizer with a custom conversion rate.
// A non-positive rate falls back to the default.
func NewNormalizerWithRate(usdToKSH float64) *Normalizer {
	if usdToKSH <= 0 {
		usdToKSH = domain.DefaultUSDToKSH
	}
	return &Normalizer{
		usdToKSH: usdToKSH,
		newID:    uuid.NewString,
	}
}

// Rate returns the USD to KSH conversion rate in use
func (n *Normalizer) Rate() float64 {
	return n.usdToKSH
}

// Normalize maps one provider result to a Product. It never fails: absent
// fields get their documented fallback.
func (n *Normalizer) Normalize(result domain.RawResult) domain.Product {
	product := domain.Product{
		ID:          n.newID(),
		Title:       stringOr(result.Title, domain.FallbackTitle),
		URL:         stringOr(result.URL, domain.FallbackURL),
		Description: stringOr(result.Description, domain.FallbackDescription),
		Vendor:      stringOr(result.Domain, domain.FallbackVendor),
		ImageURL:    stringOr(result.Thumbnail, domain.FallbackImageURL),
	}

	if result.Rating != nil {
		rating := *result.Rating
		product.Rating = &rating
	}

	if result.Reviews != nil && *result.Reviews > 0 {
		product.ReviewsCount = *result.Reviews
	}

	if usd, ok := ExtractPrice(result); ok {
		ksh := usd * n.usdToKSH
		product.PriceUSD = &usd
		product.PriceKSH = &ksh
	}

	return product
}

// NormalizeAll maps every result, preserving order
func (n *Normalizer) NormalizeAll(results []domain.RawResult) []domain.Product {
	products := make([]domain.Product, 0, len(results))
	for _, result := range results {
		products = append(products, n.Normalize(result))
	}
	return products
}

func stringOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}
