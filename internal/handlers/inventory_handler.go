package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bulk-inventory-service/internal/clients"
	"bulk-inventory-service/internal/clients/shopify"
	"bulk-inventory-service/internal/middleware"
	"bulk-inventory-service/internal/models"
	"bulk-inventory-service/internal/services"
	"bulk-inventory-service/internal/spreadsheet"
)

const (
	defaultMaxUploadBytes = 10 << 20
	exportFilename        = "inventory-export"
)

// InventoryHandler serves spreadsheet import and export for the embedded admin UI
type InventoryHandler struct {
	service        *services.BulkInventoryService
	provider       services.DirectoryProvider
	maxUploadBytes int64
	logger         *logrus.Entry
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(service *services.BulkInventoryService, provider services.DirectoryProvider, maxUploadBytes int64, logger *logrus.Logger) *InventoryHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &InventoryHandler{
		service:        service,
		provider:       provider,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.WithField("component", "inventory_handler"),
	}
}

// ListLocations returns the store's locations
// @Summary List store locations
// @Tags inventory
// @Produce json
// @Security ShopDomain
// @Success 200 {object} models.SuccessResponse{data=[]models.Location}
// @Failure 401 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /locations [get]
func (h *InventoryHandler) ListLocations(c *gin.Context) {
	directory, ok := h.directory(c)
	if !ok {
		return
	}

	locations, err := h.service.ListLocations(c.Request.Context(), directory)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: locations})
}

// ImportInventory reconciles an uploaded spreadsheet against the store
// @Summary Import inventory quantities
// @Description Sets available quantities from a CSV or XLSX file. Rows that fail or are skipped are returned with their reason.
// @Tags inventory
// @Accept multipart/form-data
// @Produce json
// @Security ShopDomain
// @Param file formData file true "CSV or XLSX file"
// @Param locationId formData string false "Location id, or all to read the location from each row" default(all)
// @Param format query string false "xlsx to download failed and skipped rows as a workbook"
// @Success 200 {object} models.SuccessResponse{data=models.ReconciliationResult}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /inventory/import [post]
func (h *InventoryHandler) ImportInventory(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse("FILE_REQUIRED", "Please upload a CSV or XLSX file"))
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, models.NewErrorResponse("FILE_TOO_LARGE",
			fmt.Sprintf("File exceeds the %d MB limit", h.maxUploadBytes>>20)))
		return
	}

	directory, ok := h.directory(c)
	if !ok {
		return
	}

	result, err := h.service.ReconcileImport(c.Request.Context(), directory, services.ImportRequest{
		Shop:       middleware.GetShop(c),
		Filename:   header.Filename,
		File:       file,
		LocationID: c.PostForm("locationId"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if strings.EqualFold(c.Query("format"), "xlsx") {
		report, err := services.BuildImportReport(result)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename=inventory-import-report.xlsx")
		c.Data(http.StatusOK, spreadsheet.ContentTypeXLSX, report)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: result})
}

// ExportInventory downloads the store's inventory as a spreadsheet
// @Summary Export inventory
// @Tags inventory
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Security ShopDomain
// @Param locationId query string false "Location id or all" default(all)
// @Param format query string false "xlsx or csv" default(xlsx)
// @Success 200 {file} file
// @Failure 502 {object} models.ErrorResponse
// @Router /inventory/export [get]
func (h *InventoryHandler) ExportInventory(c *gin.Context) {
	directory, ok := h.directory(c)
	if !ok {
		return
	}

	req := services.ExportRequest{
		Shop:       middleware.GetShop(c),
		LocationID: c.DefaultQuery("locationId", models.AllLocationsID),
	}

	if strings.EqualFold(c.Query("format"), "csv") {
		data, err := h.service.ExportInventoryCSV(c.Request.Context(), directory, req)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", exportFilename))
		c.Data(http.StatusOK, "text/csv", data)
		return
	}

	data, err := h.service.ExportInventory(c.Request.Context(), directory, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", exportFilename))
	c.Data(http.StatusOK, spreadsheet.ContentTypeXLSX, data)
}

// directory builds the shop's directory client, writing the error response on failure
func (h *InventoryHandler) directory(c *gin.Context) (clients.CommerceDirectory, bool) {
	directory, err := h.provider.ForShop(c.Request.Context(), middleware.GetShop(c))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return directory, true
}

// respondError maps whole-operation errors to status codes
func (h *InventoryHandler) respondError(c *gin.Context, err error) {
	log := h.logger.WithFields(logrus.Fields{
		"shop":       middleware.GetShop(c),
		"request_id": middleware.GetRequestID(c),
	}).WithError(err)

	switch {
	case errors.Is(err, services.ErrInvalidFile):
		log.Info("Rejected unreadable upload")
		c.JSON(http.StatusBadRequest, models.NewErrorResponse("PARSE_ERROR", err.Error()))
	case errors.Is(err, shopify.ErrInvalidShop):
		c.JSON(http.StatusBadRequest, models.NewErrorResponse("INVALID_SHOP", "shop must be a myshopify.com domain"))
	case errors.Is(err, services.ErrLocationNotFound):
		c.JSON(http.StatusNotFound, models.NewErrorResponse("LOCATION_NOT_FOUND", err.Error()))
	case errors.Is(err, models.ErrCredentialsNotFound):
		log.Warn("Shop has no stored credentials")
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse("SHOP_NOT_INSTALLED", "No access token is stored for this shop"))
	case errors.Is(err, services.ErrDirectoryUnavailable):
		log.Error("Commerce platform request failed")
		c.JSON(http.StatusBadGateway, models.NewErrorResponse("DIRECTORY_UNAVAILABLE", "The store could not be reached, please try again"))
	default:
		log.Error("Bulk inventory request failed")
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("INTERNAL_ERROR", "Something went wrong"))
	}
}
