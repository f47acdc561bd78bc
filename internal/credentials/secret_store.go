package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SecretStore holds API keys read from a secrets file.
//
// Two layouts are accepted and may be mixed in one file:
//
//	OPENROUTER:
//	  "0": {secret_api_key: sk-...}
//	  "1": {secret_api_key: sk-...}
//	gpt-4o-mini: sk-...          # flat config_name -> key
type SecretStore struct {
	byIndex map[string]map[int]string
	byName  map[string]string
}

type secretEntry struct {
	SecretAPIKey string `yaml:"secret_api_key"`
}

// NewSecretStore returns an empty store.
func NewSecretStore() *SecretStore {
	return &SecretStore{
		byIndex: make(map[string]map[int]string),
		byName:  make(map[string]string),
	}
}

// LoadSecretStore reads a secrets file. A missing file yields an empty store.
func LoadSecretStore(path string) (*SecretStore, error) {
	if path == "" {
		return NewSecretStore(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewSecretStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secret store %s: %w", path, err)
	}
	store, err := ParseSecretStore(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse secret store %s: %w", path, err)
	}
	return store, nil
}

// ParseSecretStore decodes secret store bytes (YAML or JSON).
func ParseSecretStore(data []byte) (*SecretStore, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	store := NewSecretStore()
	for key, node := range raw {
		switch node.Kind {
		case yaml.ScalarNode:
			store.byName[key] = node.Value
		case yaml.MappingNode:
			var entries map[string]secretEntry
			if err := node.Decode(&entries); err != nil {
				return nil, fmt.Errorf("provider %s: %w", key, err)
			}
			indexed := make(map[int]string, len(entries))
			for idxText, entry := range entries {
				idx, err := strconv.Atoi(idxText)
				if err != nil || idx < 0 {
					return nil, fmt.Errorf("provider %s: config index %q is not a non-negative integer", key, idxText)
				}
				indexed[idx] = entry.SecretAPIKey
			}
			store.byIndex[key] = indexed
		default:
			return nil, fmt.Errorf("entry %s: expected a key string or an index mapping", key)
		}
	}
	return store, nil
}

// Set stores a key for (provider, index).
func (s *SecretStore) Set(provider string, index int, secret string) {
	if s.byIndex[provider] == nil {
		s.byIndex[provider] = make(map[int]string)
	}
	s.byIndex[provider][index] = secret
}

// SetByName stores a key under a configuration name.
func (s *SecretStore) SetByName(configName string, secret string) {
	s.byName[configName] = secret
}

// Lookup returns the key for (provider, index) and whether an entry exists.
func (s *SecretStore) Lookup(provider string, index int) (string, bool) {
	entries, ok := s.byIndex[provider]
	if !ok {
		return "", false
	}
	secret, ok := entries[index]
	return secret, ok
}

// LookupByName returns the key stored under a configuration name.
func (s *SecretStore) LookupByName(configName string) (string, bool) {
	if configName == "" {
		return "", false
	}
	secret, ok := s.byName[configName]
	return secret, ok
}
