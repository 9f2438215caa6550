package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bulk-inventory-service/internal/models"
)

// ErrSessionNotFound is returned when no session exists for a shop
var ErrSessionNotFound = fmt.Errorf("shop session not found: %w", models.ErrCredentialsNotFound)

// SessionRepository handles database operations for shop sessions
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetByShop retrieves the session of a shop
func (r *SessionRepository) GetByShop(ctx context.Context, shop string) (*models.ShopSession, error) {
	var session models.ShopSession
	err := r.db.WithContext(ctx).First(&session, "shop = ?", shop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Upsert stores a session, replacing the token and scope of an existing one
func (r *SessionRepository) Upsert(ctx context.Context, session *models.ShopSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop"}},
			DoUpdates: clause.AssignmentColumns([]string{"access_token", "scope", "updated_at"}),
		}).
		Create(session).Error
}

// Delete removes the session of a shop, typically after the app is uninstalled
func (r *SessionRepository) Delete(ctx context.Context, shop string) error {
	result := r.db.WithContext(ctx).Where("shop = ?", shop).Delete(&models.ShopSession{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetShopifyCredentials makes the session store a credential source
func (r *SessionRepository) GetShopifyCredentials(ctx context.Context, shop string) (*models.ShopifyCredentials, error) {
	session, err := r.GetByShop(ctx, shop)
	if err != nil {
		return nil, err
	}
	return &models.ShopifyCredentials{
		Shop:        session.Shop,
		AccessToken: session.AccessToken,
		Scope:       session.Scope,
	}, nil
}
