package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/services"
)

// BulkHandler exposes the bulk price and default-attribute operations
type BulkHandler struct {
	service services.BulkServiceInterface
	logger  *logrus.Entry
}

func NewBulkHandler(service services.BulkServiceInterface, logger *logrus.Logger) *BulkHandler {
	return &BulkHandler{
		service: service,
		logger:  logger.WithField("component", "handlers.bulk"),
	}
}

func requestUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if s, ok := userID.(string); ok {
			return s
		}
	}
	return ""
}

// Update applies or previews a bulk price change
// @Summary Bulk update variation prices
// @Tags bulk
// @Accept json
// @Produce json
// @Param request body models.UpdateRequest true "Update request"
// @Success 200 {object} services.UpdateResult
// @Router /update [post]
func (h *BulkHandler) Update(c *gin.Context) {
	var req models.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	input := services.UpdateInput{
		VariationIDs: req.Variations,
		Mode:         models.PriceMode(req.Mode),
		Value:        req.Value,
		Target:       models.PriceTarget(req.Target),
		Label:        req.OperationLabel,
		UserID:       requestUserID(c),
	}

	if req.DryRun != nil && *req.DryRun {
		result, err := h.service.PreviewUpdate(c.Request.Context(), input)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	result, err := h.service.ApplyUpdate(c.Request.Context(), input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SetDefaults applies or previews a bulk default-attribute change
// @Summary Bulk set default attributes on variable products
// @Tags bulk
// @Accept json
// @Produce json
// @Param request body models.SetDefaultsRequest true "Defaults request"
// @Success 200 {object} services.DefaultsResult
// @Router /set-defaults [post]
func (h *BulkHandler) SetDefaults(c *gin.Context) {
	var req models.SetDefaultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	defaults := make(map[uuid.UUID]map[string]string, len(req.Defaults))
	for rawID, attrs := range req.Defaults {
		pid, err := uuid.Parse(rawID)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "VALIDATION_ERROR",
					Message: "Invalid product id in defaults map: " + rawID,
					Field:   "defaults",
				},
			})
			return
		}
		defaults[pid] = attrs
	}

	input := services.DefaultsInput{
		ProductIDs: req.ProductIDs,
		Defaults:   defaults,
		Label:      req.OperationLabel,
		UserID:     requestUserID(c),
	}

	if req.DryRun != nil && *req.DryRun {
		result, err := h.service.PreviewDefaults(c.Request.Context(), input)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	result, err := h.service.ApplyDefaults(c.Request.Context(), input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Undo reverts or previews the revert of a logged operation
// @Summary Undo a bulk operation
// @Tags bulk
// @Accept json
// @Produce json
// @Param request body models.UndoRequest true "Undo request"
// @Success 200 {object} services.UndoResult
// @Router /undo [post]
func (h *BulkHandler) Undo(c *gin.Context) {
	var req models.UndoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	if req.OperationID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "operation_id is required",
				Field:   "operation_id",
			},
		})
		return
	}

	if req.DryRun != nil && *req.DryRun {
		result, err := h.service.PreviewUndo(c.Request.Context(), req.OperationID)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	result, err := h.service.Undo(c.Request.Context(), services.UndoInput{
		OperationID: req.OperationID,
		Items:       req.Items,
		UserID:      requestUserID(c),
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *BulkHandler) respondServiceError(c *gin.Context, err error) {
	var capacityErr *services.CapacityError
	switch {
	case errors.As(err, &capacityErr):
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CAPACITY_EXCEEDED",
				Message: capacityErr.Error(),
			},
		})
	case errors.Is(err, services.ErrNoVariations),
		errors.Is(err, services.ErrNoProducts),
		errors.Is(err, services.ErrNoDefaults),
		errors.Is(err, services.ErrInvalidTarget):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
	case errors.Is(err, services.ErrOperationNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: "Operation not found",
			},
		})
	default:
		h.logger.WithError(err).Error("Bulk operation failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to process bulk operation",
			},
		})
	}
}
