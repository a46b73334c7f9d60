package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/search"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/services"
)

// allPageSize is the sentinel per_page value meaning "show everything";
// it is capped to the configured maximum
const allPageSize = 9999

// PageLimits bounds listing page sizes
type PageLimits struct {
	Default int
	Max     int
}

// SearchHandler exposes the variable-product listing and the attribute
// taxonomy
type SearchHandler struct {
	service services.SearchServiceInterface
	limits  PageLimits
	logger  *logrus.Entry
}

func NewSearchHandler(service services.SearchServiceInterface, limits PageLimits, logger *logrus.Logger) *SearchHandler {
	if limits.Default <= 0 {
		limits.Default = 25
	}
	if limits.Max <= 0 {
		limits.Max = 500
	}
	return &SearchHandler{
		service: service,
		limits:  limits,
		logger:  logger.WithField("component", "handlers.search"),
	}
}

// Search lists variable products with their variations
// @Summary Search variable products by text and attribute filters
// @Tags search
// @Produce json
// @Param search query string false "Title or SKU fragment"
// @Param attrs query []string false "Attribute filters as taxonomy|value"
// @Param operator query string false "Filter combination: and (default) or or"
// @Param page query int false "Page number"
// @Param per_page query int false "Page size; 9999 means all"
// @Success 200 {object} models.SearchResponse
// @Router /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(h.limits.Default)))
	if perPage == allPageSize || perPage > h.limits.Max {
		perPage = h.limits.Max
	}
	if perPage < 1 {
		perPage = h.limits.Default
	}

	input := services.SearchInput{
		Query:    c.Query("search"),
		Pairs:    search.ParsePairs(c.QueryArray("attrs")),
		Operator: search.ParseOperator(c.Query("operator")),
		Page:     page,
		PerPage:  perPage,
	}

	result, err := h.service.Search(c.Request.Context(), input)
	if err != nil {
		h.logger.WithError(err).Error("Search failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to search products",
			},
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Attributes lists the attribute taxonomies with their terms
// @Summary List attribute taxonomies and terms
// @Tags search
// @Produce json
// @Success 200 {array} models.AttributeWithTerms
// @Router /attributes [get]
func (h *SearchHandler) Attributes(c *gin.Context) {
	attributes, err := h.service.Attributes(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Attribute listing failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to list attributes",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"attributes": attributes})
}
