package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/version"
	"go.uber.org/zap"
)

// SearchOrchestrator is the subset of the search service the handlers use
type SearchOrchestrator interface {
	Search(ctx context.Context, criteria domain.SearchCriteria) (domain.Snapshot, error)
	Recommend() (domain.ScoredProduct, bool)
	Snapshot() domain.Snapshot
	Subscribe() (<-chan domain.Snapshot, func())
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	search SearchOrchestrator
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler. A nil search service makes the
// product endpoints answer 503.
func NewHandler(search SearchOrchestrator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		search: search,
		logger: logger.Named("http"),
	}
}

// RecommendationResponse is the body of POST /products/recommend
type RecommendationResponse struct {
	RecommendedProductID *string         `json:"recommendedProductId"`
	Product              *domain.Product `json:"product,omitempty"`
	Score                *float64        `json:"score,omitempty"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricescout-backend",
		"version": version.Version,
	})
}

// SearchProducts handles product search requests.
// 200 with the settled snapshot, 400 for bad criteria, 409 when a newer
// search replaced this one, 502 when the provider call failed.
func (h *Handler) SearchProducts(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var criteria domain.SearchCriteria
	if err := c.ShouldBindJSON(&criteria); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	snap, err := h.search.Search(c.Request.Context(), criteria)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, snap)
	case errors.Is(err, domain.ErrInvalidCriteria):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStaleResponse):
		c.JSON(http.StatusConflict, gin.H{
			"error":    "superseded by a newer search",
			"snapshot": snap,
		})
	default:
		h.logger.Warn("search request failed",
			zap.String("product", criteria.ProductName),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, snap)
	}
}

// GetProducts returns the current search state
func (h *Handler) GetProducts(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	c.JSON(http.StatusOK, h.search.Snapshot())
}

// RecommendProduct picks the best of the current products
func (h *Handler) RecommendProduct(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	best, ok := h.search.Recommend()
	if !ok {
		c.JSON(http.StatusOK, RecommendationResponse{})
		return
	}

	id := best.ID
	score := best.Score
	product := best.Product
	c.JSON(http.StatusOK, RecommendationResponse{
		RecommendedProductID: &id,
		Product:              &product,
		Score:                &score,
	})
}

// StreamEvents pushes a "snapshot" server-sent event on every state change
// until the client disconnects.
func (h *Handler) StreamEvents(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	updates, unsubscribe := h.search.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", snap)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (h *Handler) ready(c *gin.Context) bool {
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search service not configured"})
		return false
	}
	return true
}
