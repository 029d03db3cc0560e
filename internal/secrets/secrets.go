// Package secrets resolves provider credentials per tenant. A missing
// credential degrades the dependent feature; it is never an error.
package secrets

import "context"

// Provider names with tenant-scoped credentials.
const (
	ProviderFirmographics = "firmographics"
	ProviderSalesforce    = "salesforce"
)

// Resolver looks up an optional secret for a (tenant, provider) pair.
// An absent credential returns ("", nil); errors are reserved for lookup
// infrastructure failures.
type Resolver interface {
	Get(ctx context.Context, tenantID, provider string) (string, error)
}

// Static resolves secrets from an in-memory map, typically loaded from
// configuration: tenant → provider → secret, with a "*" tenant fallback.
type Static struct {
	byTenant map[string]map[string]string
}

// NewStatic creates a Static resolver over config-provided secrets.
func NewStatic(byTenant map[string]map[string]string) *Static {
	if byTenant == nil {
		byTenant = map[string]map[string]string{}
	}
	return &Static{byTenant: byTenant}
}

// Get returns the tenant's secret for provider, falling back to the "*"
// tenant, or "" when neither is configured.
func (s *Static) Get(_ context.Context, tenantID, provider string) (string, error) {
	if secret := s.byTenant[tenantID][provider]; secret != "" {
		return secret, nil
	}
	return s.byTenant["*"][provider], nil
}
