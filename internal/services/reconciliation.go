package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"bulk-inventory-service/internal/clients"
	"bulk-inventory-service/internal/models"
)

// Row-level failure and skip reasons shown to merchants
const (
	ReasonInvalidQuantity    = "Invalid or missing quantity value"
	ReasonMissingLocation    = "please add proper location"
	ReasonDuplicateRow       = "You have identical row having same SKU and location"
	ReasonVariantNotFound    = "Variant not found"
	ReasonLocationNotStocked = "SKU don't have this location"
	ReasonQuantityMatches    = "Quantity already matches"

	inventorySetReason = "correction"
)

type outcomeKind int

const (
	outcomeIgnored outcomeKind = iota
	outcomeUpdated
	outcomeSkipped
	outcomeFailed
)

// rowOutcome is the result of one row's pipeline
type rowOutcome struct {
	kind   outcomeKind
	reason string
}

func updated() rowOutcome { return rowOutcome{kind: outcomeUpdated} }
func skipped(reason string) rowOutcome { return rowOutcome{kind: outcomeSkipped, reason: reason} }
func failed(reason string) rowOutcome { return rowOutcome{kind: outcomeFailed, reason: reason} }

// ReconciliationEngine applies spreadsheet quantities to a store, one row at a time
type ReconciliationEngine struct {
	logger *logrus.Entry
}

// NewReconciliationEngine creates a new reconciliation engine
func NewReconciliationEngine(logger *logrus.Logger) *ReconciliationEngine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReconciliationEngine{logger: logger.WithField("component", "reconciliation_engine")}
}

// reconcileRun is the state of one Reconcile call
type reconcileRun struct {
	mode      models.LocationMode
	locations []models.Location
	directory clients.CommerceDirectory
	seen      map[string]struct{}
}

// Reconcile compares each row's quantity with the store and writes the
// difference. Row problems are reported in the result; the only error
// returned is a failure to list locations in all-locations mode.
func (e *ReconciliationEngine) Reconcile(ctx context.Context, rows []models.Row, mode models.LocationMode, directory clients.CommerceDirectory) (*models.ReconciliationResult, error) {
	run := &reconcileRun{
		mode:      mode,
		directory: directory,
		seen:      make(map[string]struct{}),
	}
	if mode.IsAll() {
		locations, err := directory.ListLocations(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
		}
		run.locations = locations
	}

	result := models.NewReconciliationResult(len(rows))
	for i, row := range rows {
		outcome := e.processRow(ctx, run, row)
		sku := strings.TrimSpace(row.Text(models.ColumnSKU))

		switch outcome.kind {
		case outcomeUpdated:
			result.Updated++
		case outcomeSkipped:
			result.SkippedRows = append(result.SkippedRows, row.With(reasonColumn(row, models.ColumnReason), outcome.reason))
		case outcomeFailed:
			result.FailedRows = append(result.FailedRows, row.With(reasonColumn(row, models.ColumnError), outcome.reason))
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d (SKU %s): %s", i+2, sku, outcome.reason))
			e.logger.WithFields(logrus.Fields{
				"row":    i + 2,
				"sku":    sku,
				"reason": outcome.reason,
			}).Debug("Row failed")
		}
	}

	e.logger.WithFields(logrus.Fields{
		"total":   result.Total,
		"updated": result.Updated,
		"failed":  len(result.FailedRows),
		"skipped": len(result.SkippedRows),
	}).Info("Reconciliation finished")

	return result, nil
}

// processRow runs the pipeline for one row; the first failing step decides the outcome
func (e *ReconciliationEngine) processRow(ctx context.Context, run *reconcileRun, row models.Row) (outcome rowOutcome) {
	sku := strings.TrimSpace(row.Text(models.ColumnSKU))
	if sku == "" || sku == models.ColumnSKU {
		return rowOutcome{kind: outcomeIgnored}
	}

	qtyValue, _ := row.Get(models.ColumnQuantityAvailable)
	desired, ok := qtyValue.Int()
	if !ok {
		return failed(ReasonInvalidQuantity)
	}

	sheetLocation := strings.TrimSpace(row.Text(models.ColumnInventoryLocation))
	if sheetLocation == "" {
		return failed(ReasonMissingLocation)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{"sku": sku, "panic": r}).Error("Row processing panicked")
			outcome = failed(fmt.Sprint(r))
		}
	}()

	target, reason := run.resolveLocation(sheetLocation)
	if reason != "" {
		return failed(reason)
	}

	key := sku + "|" + target.Name
	if _, dup := run.seen[key]; dup {
		return failed(ReasonDuplicateRow)
	}
	run.seen[key] = struct{}{}

	variant, err := run.directory.FindVariantBySKU(ctx, sku)
	if err != nil {
		return failed(err.Error())
	}
	if variant == nil {
		return failed(ReasonVariantNotFound)
	}

	current, stocked := variant.PerLocationAvailable[target.ID]
	if !stocked {
		return failed(ReasonLocationNotStocked)
	}
	if current == desired {
		return skipped(ReasonQuantityMatches)
	}

	res, err := run.directory.SetInventoryQuantity(ctx, models.InventorySetInput{
		InventoryItemID:       variant.InventoryItemID,
		LocationID:            target.ID,
		Quantity:              desired,
		Reason:                inventorySetReason,
		IgnoreCompareQuantity: true,
	})
	if err != nil {
		return failed(err.Error())
	}
	if !res.OK() {
		return failed(res.FieldErrors[0].Message)
	}

	e.logger.WithFields(logrus.Fields{
		"sku":      sku,
		"location": target.Name,
		"from":     current,
		"to":       desired,
	}).Debug("Inventory updated")
	return updated()
}

// reasonColumn picks the column for a row's reason. An uploaded sheet may
// already carry a column with that name; it is kept and the reason goes
// under "Error (2)", "Error (3)" and so on.
func reasonColumn(row models.Row, name string) string {
	key := name
	for n := 2; ; n++ {
		if _, taken := row.Get(key); !taken {
			return key
		}
		key = fmt.Sprintf("%s (%d)", name, n)
	}
}

// resolveLocation maps the sheet's location text to a store location. A
// non-empty reason means the row fails.
func (r *reconcileRun) resolveLocation(sheetLocation string) (models.Location, string) {
	if !r.mode.IsAll() {
		selected := r.mode.Location
		if !strings.EqualFold(sheetLocation, strings.TrimSpace(selected.Name)) {
			return models.Location{}, fmt.Sprintf("Location mismatch: '%s' ≠ '%s'", sheetLocation, selected.Name)
		}
		return selected, ""
	}

	if loc, ok := FindLocationByName(r.locations, sheetLocation); ok {
		return loc, ""
	}
	return models.Location{}, fmt.Sprintf("Location '%s' not found in store", sheetLocation)
}

// FindLocationByName matches a location name ignoring case and surrounding spaces
func FindLocationByName(locations []models.Location, name string) (models.Location, bool) {
	name = strings.TrimSpace(name)
	for _, loc := range locations {
		if strings.EqualFold(strings.TrimSpace(loc.Name), name) {
			return loc, true
		}
	}
	return models.Location{}, false
}

// FindLocationByID returns the location with id
func FindLocationByID(locations []models.Location, id string) (models.Location, bool) {
	for _, loc := range locations {
		if loc.ID == id {
			return loc, true
		}
	}
	return models.Location{}, false
}
