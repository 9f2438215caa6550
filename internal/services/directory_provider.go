package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bulk-inventory-service/internal/clients"
	"bulk-inventory-service/internal/clients/shopify"
	"bulk-inventory-service/internal/models"
)

const (
	// clientIdleTTL drops clients of shops that stopped sending requests
	clientIdleTTL = 30 * time.Minute
	// maxCachedClients bounds the cache; the least recently used goes first
	maxCachedClients = 1000
)

// CredentialSource looks up Admin API credentials for a shop
type CredentialSource interface {
	GetShopifyCredentials(ctx context.Context, shop string) (*models.ShopifyCredentials, error)
}

// DirectoryProvider builds a CommerceDirectory for the shop making a request
type DirectoryProvider interface {
	ForShop(ctx context.Context, shop string) (clients.CommerceDirectory, error)
}

// ShopifyDirectoryProvider resolves credentials from its sources in order and
// returns a Shopify client bound to them. Clients are kept per shop so the
// rate limiter and breaker span requests; a rotated token replaces the client.
// Idle clients expire and the cache is capped.
type ShopifyDirectoryProvider struct {
	sources []CredentialSource
	config  shopify.Config
	logger  *logrus.Logger

	mu         sync.Mutex
	clients    map[string]*cachedClient
	idleTTL    time.Duration
	maxClients int
	now        func() time.Time
}

type cachedClient struct {
	accessToken string
	client      *shopify.Client
	lastUsed    time.Time
}

var _ DirectoryProvider = (*ShopifyDirectoryProvider)(nil)

// NewShopifyDirectoryProvider creates a provider; nil sources are ignored
func NewShopifyDirectoryProvider(config shopify.Config, logger *logrus.Logger, sources ...CredentialSource) *ShopifyDirectoryProvider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &ShopifyDirectoryProvider{
		config:     config,
		logger:     logger,
		clients:    make(map[string]*cachedClient),
		idleTTL:    clientIdleTTL,
		maxClients: maxCachedClients,
		now:        time.Now,
	}
	for _, src := range sources {
		if src != nil {
			p.sources = append(p.sources, src)
		}
	}
	return p
}

// ForShop returns a client for shop
func (p *ShopifyDirectoryProvider) ForShop(ctx context.Context, shop string) (clients.CommerceDirectory, error) {
	raw := shop
	shop = shopify.NormalizeShopDomain(shop)
	if shop == "" {
		return nil, fmt.Errorf("%w: %q", shopify.ErrInvalidShop, raw)
	}
	creds, err := p.lookup(ctx, shop)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.evictIdle(now)
	if cached, ok := p.clients[shop]; ok && cached.accessToken == creds.AccessToken {
		cached.lastUsed = now
		return cached.client, nil
	}
	client, err := shopify.NewClient(shop, creds.AccessToken, p.config, p.logger)
	if err != nil {
		return nil, err
	}
	if _, ok := p.clients[shop]; !ok && len(p.clients) >= p.maxClients {
		p.evictOldest()
	}
	p.clients[shop] = &cachedClient{accessToken: creds.AccessToken, client: client, lastUsed: now}
	return client, nil
}

// evictIdle drops clients unused for idleTTL; callers hold mu
func (p *ShopifyDirectoryProvider) evictIdle(now time.Time) {
	for shop, cached := range p.clients {
		if now.Sub(cached.lastUsed) > p.idleTTL {
			delete(p.clients, shop)
		}
	}
}

// evictOldest drops the least recently used client; callers hold mu
func (p *ShopifyDirectoryProvider) evictOldest() {
	var oldest string
	var oldestAt time.Time
	for shop, cached := range p.clients {
		if oldest == "" || cached.lastUsed.Before(oldestAt) {
			oldest, oldestAt = shop, cached.lastUsed
		}
	}
	if oldest != "" {
		delete(p.clients, oldest)
		p.logger.WithField("shop", oldest).Debug("Evicted cached Shopify client")
	}
}

func (p *ShopifyDirectoryProvider) lookup(ctx context.Context, shop string) (*models.ShopifyCredentials, error) {
	var lastErr error
	for _, src := range p.sources {
		creds, err := src.GetShopifyCredentials(ctx, shop)
		if err == nil && creds != nil && creds.AccessToken != "" {
			return creds, nil
		}
		if err != nil && !errors.Is(err, models.ErrCredentialsNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("failed to load credentials for %s: %w", shop, lastErr)
	}
	return nil, fmt.Errorf("%w: %s", models.ErrCredentialsNotFound, shop)
}
