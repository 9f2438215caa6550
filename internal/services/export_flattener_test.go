package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulk-inventory-service/internal/models"
)

func level(locID, locName string, available int) models.InventoryLevel {
	return models.InventoryLevel{
		LocationID:   locID,
		LocationName: locName,
		Quantities:   []models.NamedQuantity{{Name: "available", Quantity: available}},
	}
}

func shirtCatalog() []models.Product {
	return []models.Product{{
		ID:    "p1",
		Title: "Shirt",
		Variants: []models.Variant{
			{
				SKU:             "S-RED-M",
				SelectedOptions: []models.SelectedOption{{Name: "Color", Value: "Red"}, {Name: "Size", Value: "M"}},
				InventoryLevels: []models.InventoryLevel{level("L1", "Main", 10), level("L2", "Back", 0)},
			},
			{
				SKU:             "S-BLUE-L",
				SelectedOptions: []models.SelectedOption{{Name: "Color", Value: "Blue"}, {Name: "Size", Value: "L"}},
			},
		},
	}}
}

func TestFlattenInventory_AllLocations(t *testing.T) {
	rows := FlattenInventory(shirtCatalog(), "")

	require.Len(t, rows, 3)

	assert.Equal(t, "S-RED-M", rows[0].SKU)
	assert.Equal(t, "Main", rows[0].InventoryLocation)
	assert.Equal(t, 10, *rows[0].QuantityAvailable)
	assert.Equal(t, "Red", rows[0].Option1Value)
	assert.Equal(t, "M", rows[0].Option2Value)
	assert.Equal(t, "", rows[0].Option3Value)

	assert.Equal(t, "Back", rows[1].InventoryLocation)
	assert.Equal(t, 0, *rows[1].QuantityAvailable)

	assert.Equal(t, "S-BLUE-L", rows[2].SKU)
	assert.Equal(t, "N/A", rows[2].InventoryLocation)
	assert.Equal(t, 0, *rows[2].QuantityAvailable)
}

func TestFlattenInventory_AllKeywordMatchesUnset(t *testing.T) {
	assert.Equal(t, FlattenInventory(shirtCatalog(), ""), FlattenInventory(shirtCatalog(), models.AllLocationsID))
}

func TestFlattenInventory_SingleLocation(t *testing.T) {
	rows := FlattenInventory(shirtCatalog(), "L2")

	require.Len(t, rows, 1)
	assert.Equal(t, "S-RED-M", rows[0].SKU)
	assert.Equal(t, "Back", rows[0].InventoryLocation)
}

func TestFlattenInventory_NoDataSentinel(t *testing.T) {
	rows := FlattenInventory(shirtCatalog(), "L404")

	require.Len(t, rows, 1)
	assert.Equal(t, "No data found", rows[0].ProductTitle)
	assert.Equal(t, "", rows[0].SKU)
	assert.Nil(t, rows[0].QuantityAvailable)

	assert.Equal(t, rows, FlattenInventory(nil, ""))
}

func TestFlattenInventory_ExtraOptionsAreDropped(t *testing.T) {
	products := []models.Product{{
		Title: "Kit",
		Variants: []models.Variant{{
			SKU: "K-1",
			SelectedOptions: []models.SelectedOption{
				{Name: "A", Value: "1"}, {Name: "B", Value: "2"}, {Name: "C", Value: "3"}, {Name: "D", Value: "4"},
			},
			InventoryLevels: []models.InventoryLevel{level("L1", "Main", 1)},
		}},
	}}

	rows := FlattenInventory(products, "")

	require.Len(t, rows, 1)
	assert.Equal(t, [3]string{"1", "2", "3"}, [3]string{rows[0].Option1Value, rows[0].Option2Value, rows[0].Option3Value})
}

func TestFlattenInventory_MissingAvailableDefaultsToZero(t *testing.T) {
	products := []models.Product{{
		Title: "Mug",
		Variants: []models.Variant{{
			SKU: "M-1",
			InventoryLevels: []models.InventoryLevel{{
				LocationID:   "L1",
				LocationName: "Main",
				Quantities:   []models.NamedQuantity{{Name: "on_hand", Quantity: 5}},
			}},
		}},
	}}

	rows := FlattenInventory(products, "")

	require.Len(t, rows, 1)
	assert.Equal(t, 0, *rows[0].QuantityAvailable)
}

func TestExportRowsToRecords_UsesExportHeaders(t *testing.T) {
	records := ExportRowsToRecords(FlattenInventory(shirtCatalog(), ""))

	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, models.ExportHeaders, r.Keys())
	}
}
