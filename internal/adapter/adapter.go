// Package adapter implements the protocol adapters behind aitypes.CompatibleClient.
//
// Each wire style registers a Factory under its API type tag from an init function.
// New looks the tag up and builds a client bound to one endpoint, model and key.
package adapter

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"unifiedai/internal/logger"
	"unifiedai/pkg/aitypes"
)

// Settings carries construction options shared by every adapter.
type Settings struct {
	// Debug wraps the HTTP transport with request/response logging
	Debug bool

	// Transport overrides the base round tripper (tests and custom proxies)
	Transport http.RoundTripper
}

// Option configures Settings.
type Option func(*Settings)

// WithDebugTransport enables HTTP exchange logging at debug level.
func WithDebugTransport(enabled bool) Option {
	return func(s *Settings) {
		s.Debug = enabled
	}
}

// WithTransport replaces the base HTTP round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Settings) {
		s.Transport = rt
	}
}

// Factory builds an adapter for validated connection parameters.
type Factory func(params aitypes.ConnectionParams, settings Settings) (aitypes.CompatibleClient, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[aitypes.APIType]Factory)
)

// Register installs a factory for an API type. Registering the same tag twice is an error.
func Register(apiType aitypes.APIType, factory Factory) error {
	if apiType == "" {
		return fmt.Errorf("adapter API type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("adapter factory for %s cannot be nil", apiType)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := factories[apiType]; exists {
		return fmt.Errorf("adapter %s already registered", apiType)
	}
	factories[apiType] = factory
	return nil
}

func mustRegister(apiType aitypes.APIType, factory Factory) {
	if err := Register(apiType, factory); err != nil {
		panic(err)
	}
}

// Registered returns the API types with an installed adapter, sorted.
func Registered() []aitypes.APIType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]aitypes.APIType, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsRegistered reports whether an adapter exists for apiType.
func IsRegistered(apiType aitypes.APIType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[apiType]
	return ok
}

// New constructs the adapter for params.APIType. Unknown tags yield
// *aitypes.UnsupportedAPITypeError; blank endpoint, model or key yield
// *aitypes.InvalidParameterError.
func New(params aitypes.ConnectionParams, opts ...Option) (aitypes.CompatibleClient, error) {
	registryMu.RLock()
	factory, ok := factories[params.APIType]
	registryMu.RUnlock()
	if !ok {
		return nil, &aitypes.UnsupportedAPITypeError{APIType: params.APIType, Supported: Registered()}
	}

	if err := validateParams(params); err != nil {
		return nil, err
	}

	settings := Settings{}
	for _, opt := range opts {
		opt(&settings)
	}

	if params.Timeouts.Connect <= 0 || params.Timeouts.Read <= 0 {
		params.Timeouts = aitypes.DefaultTimeouts()
	}

	client, err := factory(params.Clone(), settings)
	if err != nil {
		return nil, err
	}
	logger.ServiceOperation("adapter", "create", "api_type", params.APIType, "provider", params.Provider,
		"model", params.ModelName, "key", params.KeyFingerprint())
	return client, nil
}

func validateParams(params aitypes.ConnectionParams) error {
	if strings.TrimSpace(params.EndpointURL) == "" {
		return &aitypes.InvalidParameterError{Field: "endpoint_url", Message: "must not be empty"}
	}
	if strings.TrimSpace(params.ModelName) == "" {
		return &aitypes.InvalidParameterError{Field: "model_name", Message: "must not be empty"}
	}
	if strings.TrimSpace(params.APIKey) == "" {
		return &aitypes.InvalidParameterError{Field: "api_key", Message: "must not be empty"}
	}
	return nil
}
