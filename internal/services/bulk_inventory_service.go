package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"bulk-inventory-service/internal/clients"
	"bulk-inventory-service/internal/models"
	"bulk-inventory-service/internal/spreadsheet"
)

const (
	ExportSheetName = "Inventory"

	// maxExportPages stops a runaway cursor loop
	maxExportPages = 10000
)

var (
	// ErrInvalidFile means the upload could not be read as a spreadsheet
	ErrInvalidFile = errors.New("invalid spreadsheet file")

	// ErrLocationNotFound means the selected location id is not in the store
	ErrLocationNotFound = errors.New("selected location not found")

	// ErrDirectoryUnavailable means a listing call to the store failed
	ErrDirectoryUnavailable = errors.New("commerce directory unavailable")
)

// EventPublisher receives summaries of finished imports and exports
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, shop string, mode models.LocationMode, result *models.ReconciliationResult) error
	PublishExportCompleted(ctx context.Context, shop, locationFilter string, rowCount int) error
}

// ImportRequest is one spreadsheet import
type ImportRequest struct {
	Shop       string
	Filename   string
	File       io.Reader
	LocationID string
}

// ExportRequest is one spreadsheet export
type ExportRequest struct {
	Shop       string
	LocationID string
	PageSize   int
}

// BulkInventoryService runs imports and exports against a store directory
type BulkInventoryService struct {
	engine    *ReconciliationEngine
	publisher EventPublisher
	logger    *logrus.Entry
}

// NewBulkInventoryService creates a new bulk inventory service. publisher may be nil.
func NewBulkInventoryService(engine *ReconciliationEngine, publisher EventPublisher, logger *logrus.Logger) *BulkInventoryService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BulkInventoryService{
		engine:    engine,
		publisher: publisher,
		logger:    logger.WithField("component", "bulk_inventory_service"),
	}
}

// ListLocations returns the store's locations for the location picker
func (s *BulkInventoryService) ListLocations(ctx context.Context, directory clients.CommerceDirectory) ([]models.Location, error) {
	locations, err := directory.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	return locations, nil
}

// ReconcileImport decodes the upload and reconciles it against the store
func (s *BulkInventoryService) ReconcileImport(ctx context.Context, directory clients.CommerceDirectory, req ImportRequest) (*models.ReconciliationResult, error) {
	rows, err := spreadsheet.DecodeFile(req.Filename, req.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file must have a header row and at least one data row", ErrInvalidFile)
	}

	mode, err := s.resolveMode(ctx, directory, req.LocationID)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"shop":     req.Shop,
		"filename": req.Filename,
		"rows":     len(rows),
		"all":      mode.IsAll(),
	})
	log.Info("Starting inventory import")

	result, err := s.engine.Reconcile(ctx, rows, mode, directory)
	if err != nil {
		log.WithError(err).Error("Inventory import aborted")
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishImportCompleted(ctx, req.Shop, mode, result); err != nil {
			log.WithError(err).Warn("Failed to publish import event")
		}
	}

	return result, nil
}

// resolveMode turns the location selector into a LocationMode. Single mode
// needs the location's name, so the store is asked for its locations.
func (s *BulkInventoryService) resolveMode(ctx context.Context, directory clients.CommerceDirectory, locationID string) (models.LocationMode, error) {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" || strings.EqualFold(locationID, models.AllLocationsID) {
		return models.AllLocations(), nil
	}

	locations, err := directory.ListLocations(ctx)
	if err != nil {
		return models.LocationMode{}, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	loc, ok := FindLocationByID(locations, locationID)
	if !ok {
		return models.LocationMode{}, fmt.Errorf("%w: %s", ErrLocationNotFound, locationID)
	}
	return models.SingleLocation(loc), nil
}

// ExportInventory pages through every product and returns an XLSX workbook
func (s *BulkInventoryService) ExportInventory(ctx context.Context, directory clients.CommerceDirectory, req ExportRequest) ([]byte, error) {
	records, err := s.exportRecords(ctx, directory, req)
	if err != nil {
		return nil, err
	}

	data, err := spreadsheet.Encode(records, ExportSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

// ExportInventoryCSV is ExportInventory with a CSV body
func (s *BulkInventoryService) ExportInventoryCSV(ctx context.Context, directory clients.CommerceDirectory, req ExportRequest) ([]byte, error) {
	records, err := s.exportRecords(ctx, directory, req)
	if err != nil {
		return nil, err
	}
	return spreadsheet.EncodeCSV(records)
}

func (s *BulkInventoryService) exportRecords(ctx context.Context, directory clients.CommerceDirectory, req ExportRequest) ([]models.Row, error) {
	var products []models.Product
	opts := &clients.ListOptions{Limit: req.PageSize}
	for page := 0; page < maxExportPages; page++ {
		result, err := directory.ListProducts(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
		}
		products = append(products, result.Products...)
		if !result.HasMore || result.NextCursor == "" {
			break
		}
		opts.Cursor = result.NextCursor
	}

	exportRows := FlattenInventory(products, req.LocationID)
	s.logger.WithFields(logrus.Fields{
		"shop":     req.Shop,
		"products": len(products),
		"rows":     len(exportRows),
		"location": req.LocationID,
	}).Info("Inventory export built")

	if s.publisher != nil {
		if err := s.publisher.PublishExportCompleted(ctx, req.Shop, req.LocationID, len(exportRows)); err != nil {
			s.logger.WithError(err).Warn("Failed to publish export event")
		}
	}

	return ExportRowsToRecords(exportRows), nil
}

// BuildImportReport puts failed and skipped rows of a result into a workbook
func BuildImportReport(result *models.ReconciliationResult) ([]byte, error) {
	return spreadsheet.EncodeSheets(
		spreadsheet.Sheet{Name: "Failed", Rows: result.FailedRows},
		spreadsheet.Sheet{Name: "Skipped", Rows: result.SkippedRows},
	)
}
