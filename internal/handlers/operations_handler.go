package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/repository"
)

const defaultOperationsLimit = 50

// OperationsHandler exposes the change log: recent operations, per-row
// detail and spreadsheet export
type OperationsHandler struct {
	changelog repository.ChangeLogRepositoryInterface
	logger    *logrus.Entry
}

func NewOperationsHandler(changelog repository.ChangeLogRepositoryInterface, logger *logrus.Logger) *OperationsHandler {
	return &OperationsHandler{
		changelog: changelog,
		logger:    logger.WithField("component", "handlers.operations"),
	}
}

// List returns recent operations, newest first
// @Summary List recent bulk operations
// @Tags operations
// @Produce json
// @Param limit query int false "Maximum operations to return"
// @Success 200 {array} models.OperationSummary
// @Router /operations [get]
func (h *OperationsHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultOperationsLimit)))
	if limit < 1 || limit > 500 {
		limit = defaultOperationsLimit
	}

	summaries, err := h.changelog.RecentOperations(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list operations")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to list operations",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"operations": summaries})
}

// Rows returns the individual change rows of one operation
// @Summary Get the change rows of an operation
// @Tags operations
// @Produce json
// @Param id path string true "Operation ID"
// @Success 200 {array} models.PriceChange
// @Router /operations/{id} [get]
func (h *OperationsHandler) Rows(c *gin.Context) {
	operationID := c.Param("id")

	rows, err := h.changelog.OperationRows(c.Request.Context(), operationID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load operation rows")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to load operation",
			},
		})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: "Operation not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"operation_id": operationID, "changes": rows})
}

// Export streams one operation's change rows as an XLSX workbook
// @Summary Export an operation's changes as a spreadsheet
// @Tags operations
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Operation ID"
// @Router /operations/{id}/export [get]
func (h *OperationsHandler) Export(c *gin.Context) {
	operationID := c.Param("id")

	rows, err := h.changelog.OperationRows(c.Request.Context(), operationID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load operation rows")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to load operation",
			},
		})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: "Operation not found",
			},
		})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Changes"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	headers := []string{"Variation ID", "Product ID", "Type", "Old Value", "New Value", "Mode", "Value", "Target", "Reverted", "Changed At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	for i := range headers {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 22)
	}

	for i, row := range rows {
		values := []interface{}{
			row.VariationID.String(),
			row.ProductID.String(),
			string(row.ChangeType),
			derefOr(row.OldValue, ""),
			derefOr(row.NewValue, "(write failed)"),
			row.Mode,
			row.Value,
			row.Target,
			row.Reverted,
			row.CreatedAt.Format(time.RFC3339),
		}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=operation_%s.xlsx", operationID))
	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Error("Failed to stream workbook")
	}
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
