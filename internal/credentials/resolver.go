// Package credentials resolves API keys for (provider, config index) pairs.
//
// Lookup order, first hit wins:
//  1. process environment <PROVIDER>_API_KEY
//  2. dotenv files, later files overriding earlier ones
//  3. secret store entry for (provider, index)
//  4. secret store entry for the configuration name
//
// A key that exists but is blank stops the search and is reported as empty,
// which callers treat differently from a key that was never configured.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/joho/godotenv"

	"unifiedai/internal/catalog"
	"unifiedai/internal/logger"
	"unifiedai/pkg/aitypes"
)

// Resolver looks up credentials. Successful lookups are cached for the resolver's lifetime;
// misses are never cached so a key added later is picked up on the next call.
type Resolver struct {
	store     *SecretStore
	envFiles  []string
	lookupEnv func(string) (string, bool)

	dotenvOnce sync.Once
	dotenv     map[string]string
	dotenvErr  error

	mu         sync.RWMutex
	catalog    *catalog.Catalog
	cache      map[cacheKey]aitypes.Credential
	generation uint64
}

type cacheKey struct {
	provider string
	index    int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSecretStore attaches a secret store.
func WithSecretStore(store *SecretStore) Option {
	return func(r *Resolver) {
		if store != nil {
			r.store = store
		}
	}
}

// WithDotEnvFiles adds dotenv files. Missing files are skipped.
func WithDotEnvFiles(paths ...string) Option {
	return func(r *Resolver) {
		r.envFiles = append(r.envFiles, paths...)
	}
}

// WithLookupEnv replaces os.LookupEnv, mainly for tests.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.lookupEnv = fn
		}
	}
}

// NewResolver creates a resolver over a catalogue. The catalogue supplies configuration
// names for the by-name secret store fallback and may be nil.
func NewResolver(cat *catalog.Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:   cat,
		store:     NewSecretStore(),
		lookupEnv: os.LookupEnv,
		cache:     make(map[cacheKey]aitypes.Credential),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnvVarName returns the environment variable consulted for a provider:
// upper-cased, with every non-alphanumeric rune replaced by an underscore.
func EnvVarName(provider string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(provider) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String() + "_API_KEY"
}

// Resolve finds the credential for (provider, configIndex). The returned error is non-nil
// only when a configured source could not be read; an absent key is reported through State.
func (r *Resolver) Resolve(provider string, configIndex int) (aitypes.Credential, error) {
	key := cacheKey{provider: provider, index: configIndex}

	r.mu.RLock()
	cached, ok := r.cache[key]
	cat := r.catalog
	generation := r.generation
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	cred, err := r.lookup(cat, provider, configIndex)
	if err != nil {
		return aitypes.Credential{}, err
	}

	logger.ServiceOperation("credentials", "resolve", "provider", provider, "index", configIndex,
		"state", cred.State.String(), "source", cred.Source, "fingerprint", aitypes.Fingerprint(cred.Secret))

	if cred.State == aitypes.CredentialFound {
		r.mu.Lock()
		// A lookup that raced with Invalidate or SetCatalog is not cached.
		if r.generation == generation {
			r.cache[key] = cred
		}
		r.mu.Unlock()
	}
	return cred, nil
}

// Invalidate drops every cached credential.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.resetCacheLocked()
	r.mu.Unlock()
}

// SetCatalog switches the catalogue used for configuration-name lookups and drops every
// cached credential: after a reload a config index may name a different configuration.
func (r *Resolver) SetCatalog(cat *catalog.Catalog) {
	r.mu.Lock()
	r.catalog = cat
	r.resetCacheLocked()
	r.mu.Unlock()
	logger.ServiceOperation("credentials", "set catalog", "cleared", true)
}

func (r *Resolver) resetCacheLocked() {
	r.cache = make(map[cacheKey]aitypes.Credential)
	r.generation++
}

func (r *Resolver) lookup(cat *catalog.Catalog, provider string, configIndex int) (aitypes.Credential, error) {
	envName := EnvVarName(provider)
	base := aitypes.Credential{Provider: provider, ConfigIndex: configIndex, Source: aitypes.SourceNone}

	if value, ok := r.lookupEnv(envName); ok {
		return found(base, value, aitypes.SourceEnvironment, envName), nil
	}

	dotenv, err := r.loadDotEnv()
	if err != nil {
		return aitypes.Credential{}, err
	}
	if value, ok := dotenv[envName]; ok {
		return found(base, value, aitypes.SourceDotEnv, envName), nil
	}

	if value, ok := r.store.Lookup(provider, configIndex); ok {
		return found(base, value, aitypes.SourceSecretStore, fmt.Sprintf("%s[%d]", provider, configIndex)), nil
	}

	if cat != nil {
		if cfg, err := cat.Config(provider, configIndex); err == nil {
			if value, ok := r.store.LookupByName(cfg.ConfigName); ok {
				return found(base, value, aitypes.SourceSecretStoreName, cfg.ConfigName), nil
			}
		}
	}

	base.State = aitypes.CredentialNotFound
	return base, nil
}

func found(base aitypes.Credential, value string, source aitypes.CredentialSource, sourceKey string) aitypes.Credential {
	base.Source = source
	base.SourceKey = sourceKey
	base.Secret = strings.TrimSpace(value)
	if base.Secret == "" {
		base.State = aitypes.CredentialEmpty
	} else {
		base.State = aitypes.CredentialFound
	}
	return base
}

// loadDotEnv merges the configured dotenv files once. Later files override earlier ones.
func (r *Resolver) loadDotEnv() (map[string]string, error) {
	r.dotenvOnce.Do(func() {
		merged := make(map[string]string)
		for _, path := range r.envFiles {
			values, err := godotenv.Read(path)
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debug("Dotenv file not found, skipping", "path", path)
				continue
			}
			if err != nil {
				r.dotenvErr = fmt.Errorf("failed to load dotenv file %s: %w", path, err)
				return
			}
			for k, v := range values {
				merged[k] = v
			}
		}
		r.dotenv = merged
	})
	return r.dotenv, r.dotenvErr
}
