package catalog

import "unifiedai/pkg/aitypes"

// ResolutionStatus is the closed set of outcomes of resolving a catalogue selection.
type ResolutionStatus int

// Resolution outcomes.
const (
	ResolutionOK ResolutionStatus = iota
	ResolutionInvalidProvider
	ResolutionInvalidIndex
	ResolutionUnsupportedAPIType
)

// String returns a readable name for the status.
func (s ResolutionStatus) String() string {
	switch s {
	case ResolutionOK:
		return "ok"
	case ResolutionInvalidProvider:
		return "invalid-provider"
	case ResolutionInvalidIndex:
		return "invalid-index"
	case ResolutionUnsupportedAPIType:
		return "unsupported-api-type"
	default:
		return "unknown"
	}
}

// Resolution is the result of Resolve. Config and Endpoint are only set when Status is ResolutionOK.
type Resolution struct {
	Status   ResolutionStatus
	Config   aitypes.ProviderConfig
	Endpoint string

	// ConfigCount is the number of configurations the provider offers (0 for unknown providers)
	ConfigCount int
}

// OK reports whether the selection resolved.
func (r Resolution) OK() bool {
	return r.Status == ResolutionOK
}

// Resolve maps (provider, index, apiType) onto a configuration and endpoint.
// Checks run in order: provider, index, API type.
func (c *Catalog) Resolve(provider string, index int, apiType aitypes.APIType) Resolution {
	configs, ok := c.providers[provider]
	if !ok {
		return Resolution{Status: ResolutionInvalidProvider}
	}
	if index < 0 || index >= len(configs) {
		return Resolution{Status: ResolutionInvalidIndex, ConfigCount: len(configs)}
	}

	cfg := configs[index].Clone()
	if !cfg.Supports(apiType) {
		return Resolution{Status: ResolutionUnsupportedAPIType, Config: cfg, ConfigCount: len(configs)}
	}
	return Resolution{
		Status:      ResolutionOK,
		Config:      cfg,
		Endpoint:    cfg.APIEndpoints[apiType],
		ConfigCount: len(configs),
	}
}
