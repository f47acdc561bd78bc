// Package embedded provides access to data files compiled into the binary.
package embedded

import _ "embed"

// ProvidersCatalogData contains the embedded default provider catalogue YAML data.
//
//go:embed providers.yaml
var ProvidersCatalogData []byte
