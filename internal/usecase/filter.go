package usecase

import "github.com/pricescout/backend/internal/domain"

// FilterByPriceRange keeps products whose KSH price lies in [MinPrice, MaxPrice].
// Products without a price are dropped. Input order is preserved.
func FilterByPriceRange(products []domain.Product, criteria domain.SearchCriteria) []domain.Product {
	filtered := make([]domain.Product, 0, len(products))
	for _, product := range products {
		if !product.HasPrice() {
			continue
		}
		price := *product.PriceKSH
		if price >= criteria.MinPrice && price <= criteria.MaxPrice {
			filtered = append(filtered, product)
		}
	}
	return filtered
}
