package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bulk-inventory-service/internal/models"
)

type cachedCredentials struct {
	creds   *models.ShopifyCredentials
	fetched time.Time
}

// secretAccessor is the part of the Secret Manager client used here
type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPSecretManager reads per-shop Shopify credentials from Google Cloud Secret Manager
type GCPSecretManager struct {
	client    secretAccessor
	closer    func() error
	projectID string
	mu        sync.RWMutex
	cached    map[string]cachedCredentials
	ttl       time.Duration
}

// NewGCPSecretManager connects with application default credentials
func NewGCPSecretManager(ctx context.Context, projectID string) (*GCPSecretManager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secret manager client: %w", err)
	}

	sm := newManager(client, projectID)
	sm.closer = client.Close
	return sm, nil
}

func newManager(client secretAccessor, projectID string) *GCPSecretManager {
	return &GCPSecretManager{
		client:    client,
		projectID: projectID,
		cached:    map[string]cachedCredentials{},
		ttl:       5 * time.Minute,
	}
}

func (sm *GCPSecretManager) Close() error {
	if sm.closer != nil {
		return sm.closer()
	}
	return nil
}

// BuildSecretName constructs the secret name for a shop
// Format: projects/{project}/secrets/shopify-{shop}
func (sm *GCPSecretManager) BuildSecretName(shop string) string {
	return fmt.Sprintf("projects/%s/secrets/shopify-%s", sm.projectID, secretID(strings.ToLower(shop)))
}

// GetShopifyCredentials returns the shop's credentials. A missing secret is
// reported as models.ErrCredentialsNotFound so other sources can be tried.
func (sm *GCPSecretManager) GetShopifyCredentials(ctx context.Context, shop string) (*models.ShopifyCredentials, error) {
	secretName := sm.BuildSecretName(shop)

	sm.mu.RLock()
	hit, ok := sm.cached[secretName]
	sm.mu.RUnlock()
	if ok && time.Since(hit.fetched) < sm.ttl {
		return hit.creds, nil
	}

	result, err := sm.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName + "/versions/latest",
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: secret %s", models.ErrCredentialsNotFound, secretName)
		}
		return nil, fmt.Errorf("reading secret %s: %w", secretName, err)
	}

	var creds models.ShopifyCredentials
	if err := json.Unmarshal(result.GetPayload().GetData(), &creds); err != nil {
		return nil, fmt.Errorf("secret %s is not a credentials document: %w", secretName, err)
	}
	if creds.Shop == "" {
		creds.Shop = shop
	}

	sm.mu.Lock()
	sm.cached[secretName] = cachedCredentials{creds: &creds, fetched: time.Now()}
	sm.mu.Unlock()

	return &creds, nil
}

// InvalidateCache drops cached credentials for a shop
func (sm *GCPSecretManager) InvalidateCache(shop string) {
	sm.mu.Lock()
	delete(sm.cached, sm.BuildSecretName(shop))
	sm.mu.Unlock()
}

// secretID maps a shop domain onto the secret id alphabet [A-Za-z0-9_-]
func secretID(shop string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, shop)
}
