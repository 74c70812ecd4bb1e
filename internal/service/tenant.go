package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/boddenberg/dealdesk-bfa/internal/infra/cache"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/client"
)

// DefaultTenant keys per-tenant state when neither the request nor the
// configuration names a tenant.
const DefaultTenant = "default"

// tenantStateTTL is how long an idle tenant's board or feed is kept.
const tenantStateTTL = 30 * time.Minute

func tenantOf(ctx context.Context, fallback string) string {
	if creds, ok := client.CredentialsFrom(ctx); ok && creds.TenantID != "" {
		return creds.TenantID
	}
	if fallback != "" {
		return fallback
	}
	return DefaultTenant
}

// callerKey fingerprints the caller's token so cached reads are only served
// back to the credentials the backend accepted them for.
func callerKey(ctx context.Context) string {
	creds, _ := client.CredentialsFrom(ctx)
	sum := sha256.Sum256([]byte(creds.Token))
	return hex.EncodeToString(sum[:8])
}

// tenantState holds per-tenant values. A tenant is only registered after
// the backend answered a load for it, and idle tenants expire.
type tenantState[T any] struct {
	items *cache.InMemory[T]
}

func newTenantState[T any](ttl time.Duration, onEvict func(tenant string)) *tenantState[T] {
	items := cache.New[T](ttl)
	if onEvict != nil {
		items.OnEvict(func(tenant string, _ T) { onEvict(tenant) })
	}
	return &tenantState[T]{items: items}
}

func (t *tenantState[T]) get(tenant string) (T, bool) {
	return t.items.Get(tenant)
}

// keep registers v for tenant and restarts its expiry.
func (t *tenantState[T]) keep(tenant string, v T) {
	t.items.Set(tenant, v)
}

func (t *tenantState[T]) count() int {
	return t.items.Len()
}

func (t *tenantState[T]) stop() {
	t.items.Stop()
}
