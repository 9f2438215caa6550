package services

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"bulk-inventory-service/internal/clients"
	"bulk-inventory-service/internal/models"
)

// MockDirectory is a mock implementation of clients.CommerceDirectory
type MockDirectory struct {
	mock.Mock
}

var _ clients.CommerceDirectory = (*MockDirectory)(nil)

func (m *MockDirectory) ListLocations(ctx context.Context) ([]models.Location, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Location), args.Error(1)
}

func (m *MockDirectory) FindVariantBySKU(ctx context.Context, sku string) (*models.VariantInventorySnapshot, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VariantInventorySnapshot), args.Error(1)
}

func (m *MockDirectory) SetInventoryQuantity(ctx context.Context, input models.InventorySetInput) (*models.InventorySetResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventorySetResult), args.Error(1)
}

func (m *MockDirectory) ListProducts(ctx context.Context, opts *clients.ListOptions) (*clients.ProductsResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.ProductsResult), args.Error(1)
}

// MockPublisher is a mock implementation of EventPublisher
type MockPublisher struct {
	mock.Mock
}

var _ EventPublisher = (*MockPublisher)(nil)

func (m *MockPublisher) PublishImportCompleted(ctx context.Context, shop string, mode models.LocationMode, result *models.ReconciliationResult) error {
	args := m.Called(ctx, shop, mode, result)
	return args.Error(0)
}

func (m *MockPublisher) PublishExportCompleted(ctx context.Context, shop, locationFilter string, rowCount int) error {
	args := m.Called(ctx, shop, locationFilter, rowCount)
	return args.Error(0)
}

// MockCredentialSource is a mock implementation of CredentialSource
type MockCredentialSource struct {
	mock.Mock
}

func (m *MockCredentialSource) GetShopifyCredentials(ctx context.Context, shop string) (*models.ShopifyCredentials, error) {
	args := m.Called(ctx, shop)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShopifyCredentials), args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var (
	locMain     = models.Location{ID: "gid://shopify/Location/1", Name: "Main Warehouse", IsActive: true}
	locBackroom = models.Location{ID: "gid://shopify/Location/2", Name: "Backroom", IsActive: true}
)

// snapshot builds a variant stocked at the given location ids
func snapshot(sku, itemID string, levels map[string]int) *models.VariantInventorySnapshot {
	return &models.VariantInventorySnapshot{
		VariantID:            "variant-" + sku,
		SKU:                  sku,
		InventoryItemID:      itemID,
		PerLocationAvailable: levels,
	}
}

// importRow builds a sheet row with the three columns the engine reads
func importRow(sku string, location, qty interface{}) models.Row {
	return models.RowOf(
		models.ColumnProductTitle, "Shirt",
		models.ColumnSKU, sku,
		models.ColumnInventoryLocation, location,
		models.ColumnQuantityAvailable, qty,
	)
}
