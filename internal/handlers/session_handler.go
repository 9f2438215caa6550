package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bulk-inventory-service/internal/clients/shopify"
	"bulk-inventory-service/internal/models"
	"bulk-inventory-service/internal/repository"
)

// SessionStore persists shop sessions
type SessionStore interface {
	Upsert(ctx context.Context, session *models.ShopSession) error
	Delete(ctx context.Context, shop string) error
}

// SessionHandler lets the install flow hand over and revoke offline tokens
type SessionHandler struct {
	store  SessionStore
	logger *logrus.Entry
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store SessionStore, logger *logrus.Logger) *SessionHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionHandler{store: store, logger: logger.WithField("component", "session_handler")}
}

// UpsertSession stores the access token of a shop
// @Summary Store a shop session
// @Tags sessions
// @Accept json
// @Produce json
// @Param shop path string true "Shop domain"
// @Param request body models.UpsertSessionRequest true "Offline access token"
// @Success 200 {object} models.SuccessResponse{data=models.ShopSession}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security APIKey
// @Router /sessions/{shop} [put]
func (h *SessionHandler) UpsertSession(c *gin.Context) {
	shop, ok := shopParam(c)
	if !ok {
		return
	}

	var req models.UpsertSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse("VALIDATION_ERROR", err.Error()))
		return
	}

	session := &models.ShopSession{Shop: shop, AccessToken: req.AccessToken, Scope: req.Scope}
	if err := h.store.Upsert(c.Request.Context(), session); err != nil {
		h.logger.WithField("shop", shop).WithError(err).Error("Failed to store session")
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("INTERNAL_ERROR", "Failed to store session"))
		return
	}

	h.logger.WithField("shop", shop).Info("Stored shop session")
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: session})
}

// DeleteSession removes the access token of a shop
// @Summary Delete a shop session
// @Tags sessions
// @Param shop path string true "Shop domain"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security APIKey
// @Router /sessions/{shop} [delete]
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	shop, ok := shopParam(c)
	if !ok {
		return
	}

	err := h.store.Delete(c.Request.Context(), shop)
	if errors.Is(err, repository.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, models.NewErrorResponse("NOT_FOUND", "No session stored for this shop"))
		return
	}
	if err != nil {
		h.logger.WithField("shop", shop).WithError(err).Error("Failed to delete session")
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("INTERNAL_ERROR", "Failed to delete session"))
		return
	}

	c.Status(http.StatusNoContent)
}

// shopParam normalizes the :shop path segment, answering 400 when it is not a
// myshopify.com domain
func shopParam(c *gin.Context) (string, bool) {
	shop := shopify.NormalizeShopDomain(c.Param("shop"))
	if shop == "" {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse("INVALID_SHOP", "shop must be a myshopify.com domain"))
		return "", false
	}
	return shop, true
}
