package clients

import (
	"context"
	"errors"
	"fmt"

	"bulk-inventory-service/internal/models"
)

// CommerceDirectory is the store data an import or export needs. It is built
// per request from the calling shop's credentials.
type CommerceDirectory interface {
	// ListLocations returns every location of the store
	ListLocations(ctx context.Context) ([]models.Location, error)

	// FindVariantBySKU returns the first variant whose SKU matches, or nil when none does
	FindVariantBySKU(ctx context.Context, sku string) (*models.VariantInventorySnapshot, error)

	// SetInventoryQuantity writes an absolute available quantity
	SetInventoryQuantity(ctx context.Context, input models.InventorySetInput) (*models.InventorySetResult, error)

	// ListProducts returns one page of products with variants and inventory levels
	ListProducts(ctx context.Context, opts *ListOptions) (*ProductsResult, error)
}

// ListOptions contains common pagination options
type ListOptions struct {
	Limit  int
	Cursor string
}

// ProductsResult contains paginated product results
type ProductsResult struct {
	Products   []models.Product
	NextCursor string
	HasMore    bool
}

var (
	// ErrThrottled is returned when the platform's query cost budget is exhausted
	ErrThrottled = errors.New("request throttled by commerce platform")

	// ErrCircuitOpen is returned without calling the platform after repeated failures
	ErrCircuitOpen = errors.New("commerce platform unavailable: circuit open")
)

// APIError is a non-2xx HTTP response from the platform
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Shopify API error (status %d): %s", e.StatusCode, e.Body)
}

// GraphQLError is a top-level entry of a GraphQL "errors" array
type GraphQLError struct {
	Message    string                 `json:"message"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Code returns extensions.code, "" when absent
func (e GraphQLError) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// GraphQLErrors is the full "errors" array of a failed query
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	if len(e) == 0 {
		return "graphql error"
	}
	if len(e) == 1 {
		return "graphql error: " + e[0].Message
	}
	return fmt.Sprintf("graphql error: %s (and %d more)", e[0].Message, len(e)-1)
}

// Throttled reports whether any entry carries the THROTTLED code
func (e GraphQLErrors) Throttled() bool {
	for _, gqlErr := range e {
		if gqlErr.Code() == "THROTTLED" {
			return true
		}
	}
	return false
}
