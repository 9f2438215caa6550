package shopify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulk-inventory-service/internal/clients"
	"bulk-inventory-service/internal/models"
)

type capturedRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// newTestClient points a client at handler with a fast retry policy
func newTestClient(t *testing.T, handler func(w http.ResponseWriter, req capturedRequest)) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/"+DefaultAPIVersion+"/graphql.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req capturedRequest
		require.NoError(t, json.Unmarshal(body, &req))

		w.Header().Set("Content-Type", "application/json")
		handler(w, req)
	}))
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 10
	cfg.Retry = &clients.RetryConfig{
		MaxRetries:      2,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      5 * time.Millisecond,
		BackoffFactor:   2,
		RetryableStatus: []int{429, 500, 502, 503, 504},
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client, err := NewClient("test-shop", "shpat_test", cfg, logger)
	require.NoError(t, err)
	return client
}

func writeData(w http.ResponseWriter, data string) {
	io.WriteString(w, `{"data":`+data+`}`)
}

func TestNormalizeShopDomain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare handle", "my-store", "my-store.myshopify.com"},
		{"url with scheme and slash", "https://My-Store.myshopify.com/", "my-store.myshopify.com"},
		{"padded domain", " my-store.myshopify.com ", "my-store.myshopify.com"},
		{"blank", "  ", ""},
		{"custom domain", "shop.example.com", ""},
		{"lookalike suffix", "my-store.myshopify.com.evil.io", ""},
		{"loopback ip", "127.0.0.1", ""},
		{"metadata host", "169.254.169.254", ""},
		{"metadata host with port", "169.254.169.254:443", ""},
		{"foreign host", "attacker.example.com", ""},
		{"port", "my-store.myshopify.com:8080", ""},
		{"path", "my-store.myshopify.com/admin", ""},
		{"userinfo", "evil.io@my-store.myshopify.com", ""},
		{"leading hyphen", "-store", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeShopDomain(tt.in))
		})
	}
}

func TestNewClient_RejectsForeignHost(t *testing.T) {
	_, err := NewClient("169.254.169.254", "token", DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrInvalidShop)
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient("test-shop", "", DefaultConfig(), nil)
	assert.Error(t, err)

	_, err = NewClient("", "token", DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestListLocations_FollowsPagination(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		assert.True(t, strings.HasPrefix(req.Query, "query Locations"))
		if atomic.AddInt32(&calls, 1) == 1 {
			assert.Nil(t, req.Variables["after"])
			writeData(w, `{"locations":{"pageInfo":{"hasNextPage":true,"endCursor":"c1"},"nodes":[{"id":"gid://shopify/Location/1","name":"Main","isActive":true}]}}`)
			return
		}
		assert.Equal(t, "c1", req.Variables["after"])
		writeData(w, `{"locations":{"pageInfo":{"hasNextPage":false,"endCursor":"c2"},"nodes":[{"id":"gid://shopify/Location/2","name":"Backroom","isActive":false}]}}`)
	})

	locations, err := client.ListLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Location{
		{ID: "gid://shopify/Location/1", Name: "Main", IsActive: true},
		{ID: "gid://shopify/Location/2", Name: "Backroom", IsActive: false},
	}, locations)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFindVariantBySKU_ExactMatchOnly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		assert.Equal(t, `sku:"A-1"`, req.Variables["query"])
		assert.Equal(t, float64(lookupCandidates), req.Variables["first"])
		writeData(w, `{"productVariants":{"nodes":[
			{"id":"v0","sku":"A-10","inventoryItem":{"id":"i0","inventoryLevels":{"nodes":[]}}},
			{"id":"v1","sku":"A-1","inventoryItem":{"id":"i1","inventoryLevels":{"nodes":[
				{"location":{"id":"L1"},"quantities":[{"name":"available","quantity":7}]},
				{"location":{"id":"L2"},"quantities":[{"name":"available","quantity":0}]}
			]}}}
		]}}`)
	})

	snapshot, err := client.FindVariantBySKU(context.Background(), "A-1")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "v1", snapshot.VariantID)
	assert.Equal(t, "i1", snapshot.InventoryItemID)
	assert.Equal(t, map[string]int{"L1": 7, "L2": 0}, snapshot.PerLocationAvailable)
}

func TestFindVariantBySKU_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		writeData(w, `{"productVariants":{"nodes":[{"id":"v0","sku":"A-10","inventoryItem":{"id":"i0","inventoryLevels":{"nodes":[]}}}]}}`)
	})

	snapshot, err := client.FindVariantBySKU(context.Background(), "A-1")
	assert.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestFindVariantBySKU_MatchesIgnoringCase(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		writeData(w, `{"productVariants":{"nodes":[
			{"id":"v0","sku":"a-10","inventoryItem":{"id":"i0","inventoryLevels":{"nodes":[]}}},
			{"id":"v1","sku":"a-1","inventoryItem":{"id":"i1","inventoryLevels":{"nodes":[
				{"location":{"id":"L1"},"quantities":[{"name":"available","quantity":3}]}
			]}}}
		]}}`)
	})

	snapshot, err := client.FindVariantBySKU(context.Background(), "A-1")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "v1", snapshot.VariantID)
	assert.Equal(t, "a-1", snapshot.SKU)
	assert.Equal(t, map[string]int{"L1": 3}, snapshot.PerLocationAvailable)
}

func TestFindVariantBySKU_ExactCaseWins(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		writeData(w, `{"productVariants":{"nodes":[
			{"id":"v0","sku":"a-1","inventoryItem":{"id":"i0","inventoryLevels":{"nodes":[]}}},
			{"id":"v1","sku":"A-1","inventoryItem":{"id":"i1","inventoryLevels":{"nodes":[]}}}
		]}}`)
	})

	snapshot, err := client.FindVariantBySKU(context.Background(), "A-1")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "v1", snapshot.VariantID)
}

func TestSetInventoryQuantity_SendsAbsoluteWrite(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		assert.True(t, strings.HasPrefix(req.Query, "mutation InventorySetQuantities"))

		input := req.Variables["input"].(map[string]interface{})
		assert.Equal(t, "available", input["name"])
		assert.Equal(t, "correction", input["reason"])
		assert.Equal(t, true, input["ignoreCompareQuantity"])

		quantities := input["quantities"].([]interface{})
		require.Len(t, quantities, 1)
		q := quantities[0].(map[string]interface{})
		assert.Equal(t, "i1", q["inventoryItemId"])
		assert.Equal(t, "L1", q["locationId"])
		assert.Equal(t, float64(12), q["quantity"])

		writeData(w, `{"inventorySetQuantities":{"inventoryAdjustmentGroup":{"reason":"correction"},"userErrors":[]}}`)
	})

	result, err := client.SetInventoryQuantity(context.Background(), models.InventorySetInput{
		InventoryItemID:       "i1",
		LocationID:            "L1",
		Quantity:              12,
		IgnoreCompareQuantity: true,
	})
	require.NoError(t, err)
	assert.True(t, result.OK())
}

func TestSetInventoryQuantity_UserErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		writeData(w, `{"inventorySetQuantities":{"inventoryAdjustmentGroup":null,"userErrors":[{"field":["input","quantities","0","locationId"],"message":"The specified location could not be found."}]}}`)
	})

	result, err := client.SetInventoryQuantity(context.Background(), models.InventorySetInput{InventoryItemID: "i1", LocationID: "L9", Quantity: 1})
	require.NoError(t, err)
	require.False(t, result.OK())
	assert.Equal(t, "input.quantities.0.locationId", result.FieldErrors[0].Field)
	assert.Equal(t, "The specified location could not be found.", result.FieldErrors[0].Message)
}

func TestGraphQLRequest_RetriesThrottledQueries(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		if atomic.AddInt32(&calls, 1) == 1 {
			io.WriteString(w, `{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`)
			return
		}
		writeData(w, `{"locations":{"pageInfo":{"hasNextPage":false},"nodes":[]}}`)
	})

	locations, err := client.ListLocations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, locations)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGraphQLRequest_ReturnsAPIError(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"errors":"[API] Invalid API key or access token"}`)
	})

	_, err := client.ListLocations(context.Background())
	require.Error(t, err)

	var apiErr *clients.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGraphQLRequest_QueryErrorsAreNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		atomic.AddInt32(&calls, 1)
		io.WriteString(w, `{"errors":[{"message":"Field 'bogus' doesn't exist on type 'Query'"}]}`)
	})

	_, err := client.FindVariantBySKU(context.Background(), "A-1")
	require.Error(t, err)

	var gqlErrs clients.GraphQLErrors
	require.ErrorAs(t, err, &gqlErrs)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, clients.CircuitClosed, client.breaker.State())
}

func TestGraphQLRequest_BreakerOpensOnOutage(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client.breaker = clients.NewCircuitBreaker(1, time.Minute)

	_, err := client.ListLocations(context.Background())
	require.Error(t, err)
	assert.Equal(t, clients.CircuitOpen, client.breaker.State())

	before := atomic.LoadInt32(&calls)
	_, err = client.ListLocations(context.Background())
	assert.ErrorIs(t, err, clients.ErrCircuitOpen)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestListProducts_ConvertsVariantsAndLevels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		assert.Equal(t, float64(25), req.Variables["first"])
		assert.Equal(t, "after-1", req.Variables["after"])
		writeData(w, `{"products":{"pageInfo":{"hasNextPage":true,"endCursor":"after-2"},"nodes":[
			{"id":"p1","title":"Shirt","variants":{"nodes":[
				{"id":"v1","sku":"S-M","selectedOptions":[{"name":"Size","value":"M"}],
				 "inventoryItem":{"id":"i1","inventoryLevels":{"nodes":[
					{"location":{"id":"L1","name":"Main"},"quantities":[{"name":"available","quantity":3}]}
				 ]}}}
			]}}
		]}}`)
	})

	page, err := client.ListProducts(context.Background(), &clients.ListOptions{Limit: 25, Cursor: "after-1"})
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Equal(t, "after-2", page.NextCursor)
	require.Len(t, page.Products, 1)

	variant := page.Products[0].Variants[0]
	assert.Equal(t, "S-M", variant.SKU)
	assert.Equal(t, "i1", variant.InventoryItemID)
	assert.Equal(t, []models.SelectedOption{{Name: "Size", Value: "M"}}, variant.SelectedOptions)
	require.Len(t, variant.InventoryLevels, 1)
	assert.Equal(t, "Main", variant.InventoryLevels[0].LocationName)
	assert.Equal(t, 3, variant.InventoryLevels[0].Available())
}
