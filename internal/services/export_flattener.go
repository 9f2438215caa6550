package services

import "bulk-inventory-service/internal/models"

const (
	placeholderLocation = "N/A"
	noDataTitle         = "No data found"
	exportOptionColumns = 3
)

// FlattenInventory turns products into one export line per variant and
// location. An empty filter or "all" exports every location and gives
// unstocked variants a placeholder line; a location id keeps only that
// location's levels.
func FlattenInventory(products []models.Product, locationFilter string) []models.ExportRow {
	filtered := locationFilter != "" && locationFilter != models.AllLocationsID

	var rows []models.ExportRow
	for _, product := range products {
		for _, variant := range product.Variants {
			options := optionValues(variant.SelectedOptions)
			base := models.ExportRow{
				ProductTitle: product.Title,
				SKU:          variant.SKU,
				Option1Value: options[0],
				Option2Value: options[1],
				Option3Value: options[2],
			}

			emitted := 0
			for _, level := range variant.InventoryLevels {
				if filtered && level.LocationID != locationFilter {
					continue
				}
				row := base
				row.InventoryLocation = level.LocationName
				row.QuantityAvailable = intPtr(level.Available())
				rows = append(rows, row)
				emitted++
			}

			if !filtered && emitted == 0 {
				row := base
				row.InventoryLocation = placeholderLocation
				row.QuantityAvailable = intPtr(0)
				rows = append(rows, row)
			}
		}
	}

	if len(rows) == 0 {
		return []models.ExportRow{{ProductTitle: noDataTitle}}
	}
	return rows
}

// ExportRowsToRecords converts export lines to spreadsheet rows
func ExportRowsToRecords(exportRows []models.ExportRow) []models.Row {
	records := make([]models.Row, 0, len(exportRows))
	for _, r := range exportRows {
		records = append(records, r.ToRow())
	}
	return records
}

func optionValues(selected []models.SelectedOption) [exportOptionColumns]string {
	var values [exportOptionColumns]string
	for i := 0; i < len(selected) && i < exportOptionColumns; i++ {
		values[i] = selected[i].Value
	}
	return values
}

func intPtr(i int) *int {
	return &i
}
