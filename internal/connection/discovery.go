package connection

import (
	"unifiedai/internal/catalog"
	"unifiedai/pkg/aitypes"
)

// Discovery reads the catalogue only and works in any state.

func (m *Manager) currentCatalog() *catalog.Catalog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog
}

// GetAvailableProviders returns the provider names in catalogue order.
func (m *Manager) GetAvailableProviders() []string {
	return m.currentCatalog().Providers()
}

// GetProviderConfigs returns copies of a provider's configurations.
// An unknown provider is an *aitypes.InvalidParameterError.
func (m *Manager) GetProviderConfigs(provider string) ([]aitypes.ProviderConfig, error) {
	cat := m.currentCatalog()
	if !cat.HasProvider(provider) {
		return nil, &aitypes.InvalidParameterError{Field: "provider", Value: provider, Message: "unknown provider"}
	}
	return cat.Configs(provider)
}

// GetSupportedAPI returns the API types one configuration can be reached with.
func (m *Manager) GetSupportedAPI(provider string, configIndex int) ([]aitypes.APIType, error) {
	cat := m.currentCatalog()
	if !cat.HasProvider(provider) {
		return nil, &aitypes.InvalidParameterError{Field: "provider", Value: provider, Message: "unknown provider"}
	}
	types, err := cat.SupportedAPITypes(provider, configIndex)
	if err != nil {
		return nil, &aitypes.InvalidParameterError{Field: "config_index", Message: "out of range", Cause: err}
	}
	return types, nil
}

// GetAPITypes returns every API type used anywhere in the catalogue, sorted.
func (m *Manager) GetAPITypes() []aitypes.APIType {
	return m.currentCatalog().APITypes()
}

// GetProvidersForAPI returns, per provider, the configurations reachable with apiType.
func (m *Manager) GetProvidersForAPI(apiType aitypes.APIType) map[string][]aitypes.ProviderConfig {
	return m.currentCatalog().FilterByAPIType(apiType)
}
