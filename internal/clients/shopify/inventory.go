package shopify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"bulk-inventory-service/internal/clients"
	"bulk-inventory-service/internal/models"
)

const locationsQuery = `query Locations($first: Int!, $after: String) {
  locations(first: $first, after: $after, includeInactive: true) {
    pageInfo { hasNextPage endCursor }
    nodes { id name isActive }
  }
}`

const variantBySKUQuery = `query VariantBySKU($first: Int!, $query: String!, $levels: Int!) {
  productVariants(first: $first, query: $query) {
    nodes {
      id
      sku
      inventoryItem {
        id
        inventoryLevels(first: $levels) {
          nodes {
            location { id }
            quantities(names: ["available"]) { name quantity }
          }
        }
      }
    }
  }
}`

const inventorySetQuantitiesMutation = `mutation InventorySetQuantities($input: InventorySetQuantitiesInput!) {
  inventorySetQuantities(input: $input) {
    inventoryAdjustmentGroup { reason }
    userErrors { field message }
  }
}`

const productsQuery = `query Products($first: Int!, $after: String) {
  products(first: $first, after: $after, sortKey: TITLE) {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      title
      variants(first: 100) {
        nodes {
          id
          sku
          selectedOptions { name value }
          inventoryItem {
            id
            inventoryLevels(first: 50) {
              nodes {
                location { id name }
                quantities(names: ["available"]) { name quantity }
              }
            }
          }
        }
      }
    }
  }
}`

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type gqlLocation struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

type gqlQuantity struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type gqlInventoryLevel struct {
	Location   gqlLocation   `json:"location"`
	Quantities []gqlQuantity `json:"quantities"`
}

type gqlInventoryItem struct {
	ID              string `json:"id"`
	InventoryLevels struct {
		Nodes []gqlInventoryLevel `json:"nodes"`
	} `json:"inventoryLevels"`
}

type gqlVariant struct {
	ID              string                  `json:"id"`
	SKU             string                  `json:"sku"`
	SelectedOptions []models.SelectedOption `json:"selectedOptions"`
	InventoryItem   *gqlInventoryItem       `json:"inventoryItem"`
}

type gqlProduct struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Variants struct {
		Nodes []gqlVariant `json:"nodes"`
	} `json:"variants"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// ListLocations pages through every location, inactive ones included
func (c *Client) ListLocations(ctx context.Context) ([]models.Location, error) {
	var locations []models.Location
	cursor := ""
	for {
		vars := map[string]interface{}{"first": 250}
		if cursor != "" {
			vars["after"] = cursor
		}

		var data struct {
			Locations struct {
				PageInfo pageInfo      `json:"pageInfo"`
				Nodes    []gqlLocation `json:"nodes"`
			} `json:"locations"`
		}
		if err := c.graphqlRequest(ctx, "locations", locationsQuery, vars, &data); err != nil {
			return nil, fmt.Errorf("failed to list locations: %w", err)
		}

		for _, node := range data.Locations.Nodes {
			locations = append(locations, models.Location{ID: node.ID, Name: node.Name, IsActive: node.IsActive})
		}
		if !data.Locations.PageInfo.HasNextPage || data.Locations.PageInfo.EndCursor == "" {
			break
		}
		cursor = data.Locations.PageInfo.EndCursor
	}

	c.logger.WithField("count", len(locations)).Debug("Listed locations")
	return locations, nil
}

// FindVariantBySKU searches by SKU and returns the hit whose SKU matches.
// Catalog search tokenizes and ignores case, so near matches are dropped; an
// exact match wins over one that differs only in case.
func (c *Client) FindVariantBySKU(ctx context.Context, sku string) (*models.VariantInventorySnapshot, error) {
	vars := map[string]interface{}{
		"first":  lookupCandidates,
		"query":  buildSearchQuery("sku", sku),
		"levels": levelsPerItem,
	}

	var data struct {
		ProductVariants struct {
			Nodes []gqlVariant `json:"nodes"`
		} `json:"productVariants"`
	}
	if err := c.graphqlRequest(ctx, "productVariants", variantBySKUQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("failed to look up SKU %q: %w", sku, err)
	}

	var match *gqlVariant
	for i := range data.ProductVariants.Nodes {
		node := &data.ProductVariants.Nodes[i]
		if node.InventoryItem == nil {
			continue
		}
		if node.SKU == sku {
			match = node
			break
		}
		if match == nil && strings.EqualFold(strings.TrimSpace(node.SKU), sku) {
			match = node
		}
	}
	if match == nil {
		return nil, nil
	}

	snapshot := &models.VariantInventorySnapshot{
		VariantID:            match.ID,
		SKU:                  match.SKU,
		InventoryItemID:      match.InventoryItem.ID,
		PerLocationAvailable: make(map[string]int, len(match.InventoryItem.InventoryLevels.Nodes)),
	}
	for _, level := range match.InventoryItem.InventoryLevels.Nodes {
		snapshot.PerLocationAvailable[level.Location.ID] = availableOf(level.Quantities)
	}
	if match.SKU != sku {
		c.logger.WithFields(logrus.Fields{"sku": sku, "matched": match.SKU}).Debug("SKU matched ignoring case")
	}
	return snapshot, nil
}

// SetInventoryQuantity sets the "available" quantity of one item at one location
func (c *Client) SetInventoryQuantity(ctx context.Context, input models.InventorySetInput) (*models.InventorySetResult, error) {
	reason := input.Reason
	if reason == "" {
		reason = "correction"
	}
	vars := map[string]interface{}{
		"input": map[string]interface{}{
			"name":                  "available",
			"reason":                reason,
			"ignoreCompareQuantity": input.IgnoreCompareQuantity,
			"quantities": []map[string]interface{}{
				{
					"inventoryItemId": input.InventoryItemID,
					"locationId":      input.LocationID,
					"quantity":        input.Quantity,
				},
			},
		},
	}

	var data struct {
		InventorySetQuantities struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"inventorySetQuantities"`
	}
	if err := c.graphqlRequest(ctx, "inventorySetQuantities", inventorySetQuantitiesMutation, vars, &data); err != nil {
		return nil, err
	}

	result := &models.InventorySetResult{}
	for _, ue := range data.InventorySetQuantities.UserErrors {
		result.FieldErrors = append(result.FieldErrors, models.FieldError{
			Field:   strings.Join(ue.Field, "."),
			Message: ue.Message,
		})
	}
	if !result.OK() {
		c.logger.WithFields(logrus.Fields{
			"inventory_item_id": input.InventoryItemID,
			"location_id":       input.LocationID,
			"message":           result.FieldErrors[0].Message,
		}).Info("Inventory update rejected")
	}
	return result, nil
}

// ListProducts returns one page of products sorted by title
func (c *Client) ListProducts(ctx context.Context, opts *clients.ListOptions) (*clients.ProductsResult, error) {
	limit := c.pageSize
	cursor := ""
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		cursor = opts.Cursor
	}

	vars := map[string]interface{}{"first": limit}
	if cursor != "" {
		vars["after"] = cursor
	}

	var data struct {
		Products struct {
			PageInfo pageInfo     `json:"pageInfo"`
			Nodes    []gqlProduct `json:"nodes"`
		} `json:"products"`
	}
	if err := c.graphqlRequest(ctx, "products", productsQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]models.Product, 0, len(data.Products.Nodes))
	for _, p := range data.Products.Nodes {
		products = append(products, convertProduct(p))
	}

	return &clients.ProductsResult{
		Products:   products,
		NextCursor: data.Products.PageInfo.EndCursor,
		HasMore:    data.Products.PageInfo.HasNextPage,
	}, nil
}

func convertProduct(p gqlProduct) models.Product {
	product := models.Product{
		ID:       p.ID,
		Title:    p.Title,
		Variants: make([]models.Variant, 0, len(p.Variants.Nodes)),
	}
	for _, v := range p.Variants.Nodes {
		variant := models.Variant{
			ID:              v.ID,
			SKU:             v.SKU,
			SelectedOptions: v.SelectedOptions,
		}
		if v.InventoryItem != nil {
			variant.InventoryItemID = v.InventoryItem.ID
			for _, level := range v.InventoryItem.InventoryLevels.Nodes {
				quantities := make([]models.NamedQuantity, 0, len(level.Quantities))
				for _, q := range level.Quantities {
					quantities = append(quantities, models.NamedQuantity{Name: q.Name, Quantity: q.Quantity})
				}
				variant.InventoryLevels = append(variant.InventoryLevels, models.InventoryLevel{
					LocationID:   level.Location.ID,
					LocationName: level.Location.Name,
					Quantities:   quantities,
				})
			}
		}
		product.Variants = append(product.Variants, variant)
	}
	return product
}

func availableOf(quantities []gqlQuantity) int {
	for _, q := range quantities {
		if q.Name == "available" {
			return q.Quantity
		}
	}
	return 0
}

// buildSearchQuery quotes value for the Admin API search syntax
func buildSearchQuery(field, value string) string {
	return field + ":" + strconv.Quote(value)
}
