package models

// Column headers shared by the import contract and the export file
const (
	ColumnProductTitle      = "Product Title"
	ColumnSKU               = "SKU"
	ColumnOption1Value      = "Option1 Value"
	ColumnOption2Value      = "Option2 Value"
	ColumnOption3Value      = "Option3 Value"
	ColumnInventoryLocation = "Inventory Location"
	ColumnQuantityAvailable = "Quantity Available"

	// Reason fields appended to reported rows
	ColumnError  = "Error"
	ColumnReason = "Reason"
)

// ExportHeaders is the fixed column order of an inventory export
var ExportHeaders = []string{
	ColumnProductTitle,
	ColumnSKU,
	ColumnOption1Value,
	ColumnOption2Value,
	ColumnOption3Value,
	ColumnInventoryLocation,
	ColumnQuantityAvailable,
}

// AllLocationsID is the location selector meaning "every location"
const AllLocationsID = "all"

// Location is a stock-keeping site in the store
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// VariantInventorySnapshot is a variant's available quantity per location id
type VariantInventorySnapshot struct {
	VariantID            string         `json:"variantId"`
	SKU                  string         `json:"sku"`
	InventoryItemID      string         `json:"inventoryItemId"`
	PerLocationAvailable map[string]int `json:"perLocationAvailable"`
}

// InventorySetInput is an absolute quantity write for one item at one location
type InventorySetInput struct {
	InventoryItemID       string
	LocationID            string
	Quantity              int
	Reason                string
	IgnoreCompareQuantity bool
}

// FieldError is an application-level error reported by a mutation
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InventorySetResult is the outcome of an inventory write
type InventorySetResult struct {
	FieldErrors []FieldError `json:"fieldErrors,omitempty"`
}

// OK reports whether the write was accepted
func (r *InventorySetResult) OK() bool {
	return r == nil || len(r.FieldErrors) == 0
}

// Product is a product with its variants and their inventory levels
type Product struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}

// Variant is one purchasable configuration of a product
type Variant struct {
	ID              string           `json:"id"`
	SKU             string           `json:"sku"`
	SelectedOptions []SelectedOption `json:"selectedOptions"`
	InventoryItemID string           `json:"inventoryItemId"`
	InventoryLevels []InventoryLevel `json:"inventoryLevels"`
}

// SelectedOption is an option name/value pair such as Size/M
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// InventoryLevel is the stock of one inventory item at one location
type InventoryLevel struct {
	LocationID   string          `json:"locationId"`
	LocationName string          `json:"locationName"`
	Quantities   []NamedQuantity `json:"quantities"`
}

// NamedQuantity is a quantity bucket such as "available" or "on_hand"
type NamedQuantity struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Available returns the "available" quantity, 0 when the level does not report one
func (l InventoryLevel) Available() int {
	for _, q := range l.Quantities {
		if q.Name == "available" {
			return q.Quantity
		}
	}
	return 0
}

// ExportRow is one denormalized line of an inventory export
type ExportRow struct {
	ProductTitle      string
	SKU               string
	Option1Value      string
	Option2Value      string
	Option3Value      string
	InventoryLocation string
	QuantityAvailable *int
}

// ToRow converts the export line to a spreadsheet row in ExportHeaders order
func (e ExportRow) ToRow() Row {
	r := NewRow()
	r.Set(ColumnProductTitle, StringValue(e.ProductTitle))
	r.Set(ColumnSKU, StringValue(e.SKU))
	r.Set(ColumnOption1Value, StringValue(e.Option1Value))
	r.Set(ColumnOption2Value, StringValue(e.Option2Value))
	r.Set(ColumnOption3Value, StringValue(e.Option3Value))
	r.Set(ColumnInventoryLocation, StringValue(e.InventoryLocation))
	if e.QuantityAvailable != nil {
		r.Set(ColumnQuantityAvailable, NumberValue(float64(*e.QuantityAvailable)))
	} else {
		r.Set(ColumnQuantityAvailable, EmptyValue())
	}
	return r
}

// LocationModeKind selects how an import resolves each row's location
type LocationModeKind int

const (
	ModeSingleLocation LocationModeKind = iota + 1
	ModeAllLocations
)

// LocationMode is chosen once per import
type LocationMode struct {
	Kind     LocationModeKind
	Location Location
}

// SingleLocation targets one pre-selected location
func SingleLocation(loc Location) LocationMode {
	return LocationMode{Kind: ModeSingleLocation, Location: loc}
}

// AllLocations lets each row pick its location by name
func AllLocations() LocationMode {
	return LocationMode{Kind: ModeAllLocations}
}

// IsAll reports whether rows choose their own location
func (m LocationMode) IsAll() bool {
	return m.Kind == ModeAllLocations
}

// ReconciliationResult summarizes one import
type ReconciliationResult struct {
	Total       int      `json:"total"`
	Updated     int      `json:"updated"`
	Errors      []string `json:"errors"`
	FailedRows  []Row    `json:"failedRows"`
	SkippedRows []Row    `json:"skippedRows"`
}

// NewReconciliationResult returns an empty result with non-nil lists
func NewReconciliationResult(total int) *ReconciliationResult {
	return &ReconciliationResult{
		Total:       total,
		Errors:      []string{},
		FailedRows:  []Row{},
		SkippedRows: []Row{},
	}
}
