// Package catalog provides the read-only provider catalogue: an ordered index of
// providers, their configurations, and the API types each configuration can be reached with.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"unifiedai/internal/data/embedded"
	"unifiedai/internal/logger"
	"unifiedai/pkg/aitypes"
)

// Catalog is an immutable provider → configurations index.
// All getters return copies, so a Catalog may be shared freely between goroutines.
type Catalog struct {
	order     []string
	providers map[string][]aitypes.ProviderConfig
}

// Default parses the catalogue compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embedded.ProvidersCatalogData)
}

// Load reads and parses a catalogue file. YAML and JSON are both accepted.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &aitypes.CatalogueError{Message: fmt.Sprintf("failed to read %s", path), Cause: err}
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, err
	}
	logger.ServiceOperation("catalog", "load", path, "providers", len(cat.order))
	return cat, nil
}

// Parse decodes catalogue bytes, keeping providers in document order, and validates
// that every configuration names a model and an endpoint for each supported API type.
func Parse(data []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &aitypes.CatalogueError{Message: "failed to parse catalogue", Cause: err}
	}

	cat := &Catalog{providers: make(map[string][]aitypes.ProviderConfig)}
	if len(doc.Content) == 0 {
		return cat, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &aitypes.CatalogueError{Message: "catalogue root must be a mapping of provider names"}
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		if name == "" {
			return nil, &aitypes.CatalogueError{Message: "empty provider name"}
		}
		if _, dup := cat.providers[name]; dup {
			return nil, &aitypes.CatalogueError{Provider: name, Message: "duplicate provider"}
		}

		var configs []aitypes.ProviderConfig
		if err := root.Content[i+1].Decode(&configs); err != nil {
			return nil, &aitypes.CatalogueError{Provider: name, Message: "invalid configuration list", Cause: err}
		}
		for idx, cfg := range configs {
			if err := validateConfig(name, idx, cfg); err != nil {
				return nil, err
			}
		}

		cat.order = append(cat.order, name)
		cat.providers[name] = configs
	}

	return cat, nil
}

func validateConfig(provider string, index int, cfg aitypes.ProviderConfig) error {
	if strings.TrimSpace(cfg.ModelName) == "" {
		return &aitypes.CatalogueError{Provider: provider, ConfigIndex: index,
			Message: fmt.Sprintf("config %d has no model_name", index)}
	}
	if len(cfg.APISupported) == 0 {
		return &aitypes.CatalogueError{Provider: provider, ConfigIndex: index,
			Message: fmt.Sprintf("config %d has empty api_supported", index)}
	}
	for _, apiType := range cfg.APISupported {
		if strings.TrimSpace(cfg.APIEndpoints[apiType]) == "" {
			return &aitypes.CatalogueError{Provider: provider, ConfigIndex: index,
				Message: fmt.Sprintf("config %d supports %q but has no endpoint for it", index, apiType)}
		}
	}
	return nil
}

// Providers returns provider names in catalogue order.
func (c *Catalog) Providers() []string {
	return append([]string(nil), c.order...)
}

// HasProvider reports whether name is a known provider.
func (c *Catalog) HasProvider(name string) bool {
	_, ok := c.providers[name]
	return ok
}

// Configs returns copies of a provider's configurations in index order.
func (c *Catalog) Configs(provider string) ([]aitypes.ProviderConfig, error) {
	configs, ok := c.providers[provider]
	if !ok {
		return nil, c.unknownProvider(provider)
	}
	out := make([]aitypes.ProviderConfig, len(configs))
	for i, cfg := range configs {
		out[i] = cfg.Clone()
	}
	return out, nil
}

// Config returns a copy of one configuration.
func (c *Catalog) Config(provider string, index int) (aitypes.ProviderConfig, error) {
	configs, ok := c.providers[provider]
	if !ok {
		return aitypes.ProviderConfig{}, c.unknownProvider(provider)
	}
	if index < 0 || index >= len(configs) {
		return aitypes.ProviderConfig{}, &aitypes.CatalogueError{Provider: provider, ConfigIndex: index,
			Message: fmt.Sprintf("config index %d out of range [0, %d)", index, len(configs))}
	}
	return configs[index].Clone(), nil
}

// SupportedAPITypes returns the API types declared for one configuration.
func (c *Catalog) SupportedAPITypes(provider string, index int) ([]aitypes.APIType, error) {
	cfg, err := c.Config(provider, index)
	if err != nil {
		return nil, err
	}
	return cfg.APISupported, nil
}

// Endpoint returns the URL for one configuration and API type.
func (c *Catalog) Endpoint(provider string, index int, apiType aitypes.APIType) (string, error) {
	cfg, err := c.Config(provider, index)
	if err != nil {
		return "", err
	}
	if !cfg.Supports(apiType) {
		return "", &aitypes.UnsupportedAPITypeError{APIType: apiType, Supported: cfg.APISupported}
	}
	return cfg.APIEndpoints[apiType], nil
}

// FilterByAPIType returns, per provider, the configurations that support apiType.
// Providers with no matching configuration are omitted.
func (c *Catalog) FilterByAPIType(apiType aitypes.APIType) map[string][]aitypes.ProviderConfig {
	out := make(map[string][]aitypes.ProviderConfig)
	for _, name := range c.order {
		for _, cfg := range c.providers[name] {
			if cfg.Supports(apiType) {
				out[name] = append(out[name], cfg.Clone())
			}
		}
	}
	return out
}

// APITypes returns the sorted union of API types declared anywhere in the catalogue.
func (c *Catalog) APITypes() []aitypes.APIType {
	seen := make(map[aitypes.APIType]struct{})
	for _, configs := range c.providers {
		for _, cfg := range configs {
			for _, t := range cfg.APISupported {
				seen[t] = struct{}{}
			}
		}
	}
	out := make([]aitypes.APIType, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Catalog) unknownProvider(provider string) error {
	return &aitypes.CatalogueError{Provider: provider, ConfigIndex: -1,
		Message: fmt.Sprintf("unknown provider (available: %s)", strings.Join(c.order, ", "))}
}
