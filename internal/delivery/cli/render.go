package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/pricescout/backend/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const disclaimer = "Disclaimer: Product information and prices are sourced from web searches and may not be 100% accurate."

// resultView is the machine-readable shape of a search result
type resultView struct {
	Criteria      *criteriaView `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	Outcome       string        `json:"outcome" yaml:"outcome"`
	Reason        string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Total         int           `json:"total" yaml:"total"`
	Matched       int           `json:"matched" yaml:"matched"`
	RecommendedID *string       `json:"recommendedProductId" yaml:"recommendedProductId"`
	ExchangeRate  float64       `json:"exchangeRate" yaml:"exchangeRate"`
	Products      []productView `json:"products" yaml:"products"`
}

type criteriaView struct {
	ProductName    string  `json:"productName" yaml:"productName"`
	Specifications string  `json:"specifications,omitempty" yaml:"specifications,omitempty"`
	MinPrice       float64 `json:"minPrice" yaml:"minPrice"`
	MaxPrice       float64 `json:"maxPrice" yaml:"maxPrice"`
}

type productView struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	URL          string   `json:"url" yaml:"url"`
	Description  string   `json:"description" yaml:"description"`
	Vendor       string   `json:"vendor" yaml:"vendor"`
	ImageURL     string   `json:"imageUrl" yaml:"imageUrl"`
	Rating       *float64 `json:"rating" yaml:"rating"`
	ReviewsCount int      `json:"reviewsCount" yaml:"reviewsCount"`
	PriceUSD     *float64 `json:"priceUsd" yaml:"priceUsd"`
	PriceKSH     *float64 `json:"priceKsh" yaml:"priceKsh"`
	Recommended  bool     `json:"recommended" yaml:"recommended"`
}

// Renderer writes snapshots for humans or machines
type Renderer struct {
	printer      *message.Printer
	exchangeRate float64
}

// NewRenderer creates a renderer quoting the given USD to KSH rate in its footer
func NewRenderer(exchangeRate float64) *Renderer {
	if exchangeRate <= 0 {
		exchangeRate = domain.DefaultUSDToKSH
	}
	return &Renderer{
		printer:      message.NewPrinter(language.English),
		exchangeRate: exchangeRate,
	}
}

// Render writes snap to w in the requested format
func (r *Renderer) Render(w io.Writer, snap domain.Snapshot, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return r.renderText(w, snap)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r.view(snap))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r.view(snap)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func (r *Renderer) view(snap domain.Snapshot) resultView {
	v := resultView{
		Outcome:       string(snap.Outcome.Kind),
		Reason:        snap.Outcome.Reason,
		Total:         snap.Outcome.Total,
		Matched:       snap.Outcome.Matched,
		RecommendedID: snap.RecommendedProductID,
		ExchangeRate:  r.exchangeRate,
		Products:      make([]productView, 0, len(snap.Products)),
	}
	if c := snap.Criteria; c != nil {
		v.Criteria = &criteriaView{
			ProductName:    c.ProductName,
			Specifications: c.Specifications,
			MinPrice:       c.MinPrice,
			MaxPrice:       c.MaxPrice,
		}
	}
	for _, p := range snap.Products {
		v.Products = append(v.Products, productView{
			ID:           p.ID,
			Title:        p.Title,
			URL:          p.URL,
			Description:  p.Description,
			Vendor:       p.Vendor,
			ImageURL:     p.ImageURL,
			Rating:       p.Rating,
			ReviewsCount: p.ReviewsCount,
			PriceUSD:     p.PriceUSD,
			PriceKSH:     p.PriceKSH,
			Recommended:  isRecommended(snap, p),
		})
	}
	return v
}

func (r *Renderer) renderText(w io.Writer, snap domain.Snapshot) error {
	var b strings.Builder

	switch {
	case snap.Criteria == nil:
		b.WriteString("No search has been run yet.\n")
	case snap.Outcome.Failed():
		fmt.Fprintf(&b, "Search for %q failed: %s\n", snap.Criteria.ProductName, snap.Outcome.Reason)
	case len(snap.Products) == 0:
		b.WriteString("No Results Found\n")
		fmt.Fprintf(&b, "No products found within the specified price range (%s)\n", r.priceRange(*snap.Criteria))
	default:
		fmt.Fprintf(&b, "Search Results for %q\n", snap.Criteria.ProductName)
		fmt.Fprintf(&b, "Price Range: %s\n", r.priceRange(*snap.Criteria))
		fmt.Fprintf(&b, "Found: %d products within your price range\n", len(snap.Products))
		for i, p := range snap.Products {
			b.WriteString("\n")
			r.writeProduct(&b, i+1, p, isRecommended(snap, p))
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Exchange Rate: 1 USD = %s KSH\n", r.amount(r.exchangeRate))
	b.WriteString(disclaimer + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) writeProduct(b *strings.Builder, n int, p domain.Product, recommended bool) {
	marker := ""
	if recommended {
		marker = " [RECOMMENDED]"
	}
	fmt.Fprintf(b, "%d. %s%s\n", n, p.Title, marker)
	if p.Description != domain.FallbackDescription {
		fmt.Fprintf(b, "   %s\n", p.Description)
	}
	if p.Rating != nil && *p.Rating != 0 {
		fmt.Fprintf(b, "   Rating: %s (%s out of 5)\n", stars(*p.Rating), r.amount(*p.Rating))
	}
	if p.ReviewsCount > 0 {
		fmt.Fprintf(b, "   Reviews: %s\n", r.printer.Sprintf("%d", p.ReviewsCount))
	}
	fmt.Fprintf(b, "   Vendor: %s\n", p.Vendor)
	fmt.Fprintf(b, "   Price: %s\n", r.price(p.PriceKSH))
	fmt.Fprintf(b, "   %s\n", p.URL)
}

func (r *Renderer) priceRange(c domain.SearchCriteria) string {
	return fmt.Sprintf("KSH %s - KSH %s", r.amount(c.MinPrice), r.amount(c.MaxPrice))
}

// price renders a KSH amount; a missing or zero price is "Not available"
func (r *Renderer) price(ksh *float64) string {
	if ksh == nil || *ksh == 0 {
		return "Not available"
	}
	return "KSH " + r.amount(*ksh)
}

// amount groups thousands and keeps at most two decimals: 14500 -> "14,500"
func (r *Renderer) amount(v float64) string {
	return r.printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(2)))
}

// stars draws five stars, filling floor(rating) of them
func stars(rating float64) string {
	filled := int(math.Floor(rating))
	filled = max(0, min(5, filled))
	return strings.Repeat("★", filled) + strings.Repeat("☆", 5-filled)
}

func isRecommended(snap domain.Snapshot, p domain.Product) bool {
	return snap.RecommendedProductID != nil && *snap.RecommendedProductID == p.ID
}
