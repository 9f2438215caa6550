package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bulk-inventory-service/internal/clients/shopify"
	"bulk-inventory-service/internal/models"
)

const (
	ShopDomainHeader = "X-Shopify-Shop-Domain"
	RequestIDHeader  = "X-Request-ID"
	APIKeyHeader     = "X-API-Key"

	shopKey      = "shop"
	requestIDKey = "requestId"
)

// SecurityHeaders adds security headers to responses. The app is framed by
// the Shopify admin, so framing is restricted with CSP instead of X-Frame-Options.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", "frame-ancestors https://admin.shopify.com https://*.myshopify.com")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Next()
	}
}

// CORS handles Cross-Origin Resource Sharing for the admin origins. Entries
// may use one wildcard, e.g. https://*.myshopify.com.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", ShopDomainHeader, RequestIDHeader, APIKeyHeader}
	config.ExposeHeaders = []string{"Content-Disposition", RequestIDHeader}
	config.MaxAge = 12 * time.Hour

	for _, o := range allowedOrigins {
		if o == "*" {
			config.AllowAllOrigins = true
		}
	}
	if config.AllowAllOrigins || len(allowedOrigins) == 0 {
		// AllowAllOrigins and AllowCredentials cannot both be true
		config.AllowAllOrigins = true
		config.AllowCredentials = false
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowWildcard = true
		config.AllowCredentials = true
	}

	return cors.New(config)
}

// RequestLogger logs one line per request with logrus and tags it with a request id
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"shop":       GetShop(c),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}

// ShopMiddleware extracts the shop domain from the Shopify header or the shop
// query parameter. A shop that is not a myshopify.com domain is rejected.
func ShopMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(ShopDomainHeader))
		if raw == "" {
			raw = strings.TrimSpace(c.Query("shop"))
		}
		if raw != "" {
			shop := shopify.NormalizeShopDomain(raw)
			if shop == "" {
				c.AbortWithStatusJSON(http.StatusBadRequest, models.NewErrorResponse("INVALID_SHOP", "shop must be a myshopify.com domain"))
				return
			}
			c.Set(shopKey, shop)
		}
		c.Next()
	}
}

// RequireAPIKey guards internal routes with a shared secret sent in
// X-API-Key. An empty key rejects every request.
func RequireAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(APIKeyHeader)
		if key == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewErrorResponse("UNAUTHORIZED", "a valid API key is required"))
			return
		}
		c.Next()
	}
}

// RequireShop ensures a shop domain is present
func RequireShop() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetShop(c) == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.NewErrorResponse("SHOP_REQUIRED", "shop domain is required"))
			return
		}
		c.Next()
	}
}

// GetShop retrieves the shop domain from the context
func GetShop(c *gin.Context) string {
	return c.GetString(shopKey)
}

// GetRequestID retrieves the request id from the context
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
