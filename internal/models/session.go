package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrCredentialsNotFound means no credential source holds a token for the shop
var ErrCredentialsNotFound = errors.New("no credentials stored for shop")

// ShopSession stores the offline Admin API token issued to the app for a shop
type ShopSession struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Shop        string    `gorm:"type:varchar(255);not null;uniqueIndex:uq_shop_sessions_shop" json:"shop"`
	AccessToken string    `gorm:"type:text;not null" json:"-"`
	Scope       string    `gorm:"type:text" json:"scope"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for ShopSession
func (ShopSession) TableName() string {
	return "shop_sessions"
}

// ShopifyCredentials are what a directory client needs to call the Admin API
type ShopifyCredentials struct {
	Shop        string `json:"shop"`
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope,omitempty"`
}

// UpsertSessionRequest is the body of PUT /api/v1/sessions/:shop
type UpsertSessionRequest struct {
	AccessToken string `json:"accessToken" binding:"required"`
	Scope       string `json:"scope"`
}
