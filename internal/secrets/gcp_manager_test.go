package secrets

import (
	"context"
	"errors"
	"testing"

	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bulk-inventory-service/internal/models"
)

type fakeAccessor struct {
	payloads map[string]string
	err      error
	calls    int
}

func (f *fakeAccessor) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.payloads[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(data)},
	}, nil
}

func TestBuildSecretName(t *testing.T) {
	sm := newManager(&fakeAccessor{}, "my-project")
	assert.Equal(t, "projects/my-project/secrets/shopify-my-store-myshopify-com", sm.BuildSecretName("My-Store.myshopify.com"))
}

func TestGetShopifyCredentials_ReadsAndCaches(t *testing.T) {
	fake := &fakeAccessor{payloads: map[string]string{
		"projects/p/secrets/shopify-my-store-myshopify-com/versions/latest": `{"access_token":"shpat_1","scope":"write_inventory"}`,
	}}
	sm := newManager(fake, "p")

	creds, err := sm.GetShopifyCredentials(context.Background(), "my-store.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat_1", creds.AccessToken)
	assert.Equal(t, "my-store.myshopify.com", creds.Shop)

	_, err = sm.GetShopifyCredentials(context.Background(), "my-store.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	sm.InvalidateCache("my-store.myshopify.com")
	_, err = sm.GetShopifyCredentials(context.Background(), "my-store.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}

func TestGetShopifyCredentials_MissingSecret(t *testing.T) {
	sm := newManager(&fakeAccessor{}, "p")

	_, err := sm.GetShopifyCredentials(context.Background(), "other.myshopify.com")
	assert.ErrorIs(t, err, models.ErrCredentialsNotFound)
}

func TestGetShopifyCredentials_AccessFailure(t *testing.T) {
	sm := newManager(&fakeAccessor{err: status.Error(codes.PermissionDenied, "denied")}, "p")

	_, err := sm.GetShopifyCredentials(context.Background(), "my-store.myshopify.com")
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrCredentialsNotFound))
}

func TestGetShopifyCredentials_BadPayload(t *testing.T) {
	fake := &fakeAccessor{payloads: map[string]string{
		"projects/p/secrets/shopify-my-store-myshopify-com/versions/latest": `not json`,
	}}
	sm := newManager(fake, "p")

	_, err := sm.GetShopifyCredentials(context.Background(), "my-store.myshopify.com")
	assert.Error(t, err)
}
