package domain

// USD to KSH conversion applied to every extracted price.
const DefaultUSDToKSH = 145.0

// Fallback values used when a provider result omits a field.
const (
	FallbackTitle       = "No Title"
	FallbackURL         = "#"
	FallbackDescription = "No Description"
	FallbackVendor      = "Unknown Vendor"
	FallbackImageURL    = "https://via.placeholder.com/200"
)

// SearchCriteria is what a user submits: a product name, optional
// specifications and a price band in KSH.
type SearchCriteria struct {
	ProductName    string  `json:"productName" validate:"required,nonblank"`
	Specifications string  `json:"specifications,omitempty"`
	MinPrice       float64 `json:"minPrice" validate:"gte=0"`
	MaxPrice       float64 `json:"maxPrice" validate:"gte=1,gtefield=MinPrice"`
}

// MidPrice returns the centre of the requested price band
func (c SearchCriteria) MidPrice() float64 {
	return (c.MinPrice + c.MaxPrice) / 2
}

// Product is the canonical product built from one provider result.
// PriceKSH is set exactly when PriceUSD is set.
type Product struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Description  string   `json:"description"`
	Vendor       string   `json:"vendor"`
	ImageURL     string   `json:"imageUrl"`
	Rating       *float64 `json:"rating"`
	ReviewsCount int      `json:"reviewsCount"`
	PriceUSD     *float64 `json:"priceUsd"`
	PriceKSH     *float64 `json:"priceKsh"`
}

// HasPrice reports whether a price could be extracted for the product
func (p Product) HasPrice() bool {
	return p.PriceKSH != nil
}

// ScoredProduct pairs a product with its recommendation score
type ScoredProduct struct {
	Product
	Score float64 `json:"score"`
}
