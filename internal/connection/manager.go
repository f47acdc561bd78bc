// Package connection turns catalogue selections into live chat sessions.
//
// A Manager starts unconfigured. ConfigureAPI resolves a (provider, config index, API type)
// triple plus its credential into connection parameters; every later CreateChatClient builds
// a fresh adapter from those parameters and registers the session. Reconfiguring replaces the
// parameters for future sessions only.
package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"unifiedai/internal/adapter"
	"unifiedai/internal/catalog"
	"unifiedai/internal/chat"
	"unifiedai/internal/logger"
	"unifiedai/internal/metrics"
	"unifiedai/pkg/aitypes"
)

// SessionIDPrefix prefixes generated session ids.
const SessionIDPrefix = "session_"

// CredentialResolver resolves API keys. *credentials.Resolver satisfies it.
type CredentialResolver interface {
	Resolve(provider string, configIndex int) (aitypes.Credential, error)
}

// CatalogAware is implemented by resolvers that read configuration names from the
// catalogue. ReplaceCatalog hands them the new one.
type CatalogAware interface {
	SetCatalog(cat *catalog.Catalog)
}

// ClientFactory builds an adapter for one session.
type ClientFactory func(params aitypes.ConnectionParams) (aitypes.CompatibleClient, error)

// Manager owns the current configuration and the sessions created from it.
// All methods are safe for concurrent use.
type Manager struct {
	resolver  CredentialResolver
	factory   ClientFactory
	collector *metrics.Collector
	newID     func() string
	debug     bool
	transport http.RoundTripper
	registry  *chat.Registry

	mu       sync.RWMutex
	catalog  *catalog.Catalog
	timeouts aitypes.Timeouts
	params   *aitypes.ConnectionParams
}

// Option configures a Manager.
type Option func(*Manager)

// WithFactory replaces the adapter factory, mainly for tests.
func WithFactory(factory ClientFactory) Option {
	return func(m *Manager) {
		if factory != nil {
			m.factory = factory
		}
	}
}

// WithTimeouts sets the connect and read timeouts given to new sessions.
// Non-positive values are ignored.
func WithTimeouts(t aitypes.Timeouts) Option {
	return func(m *Manager) {
		if t.Validate() == nil {
			m.timeouts = t
		}
	}
}

// WithMetrics records adapter calls and session counts in collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(m *Manager) {
		m.collector = collector
	}
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithDebugTransport logs every HTTP exchange made by the default adapters.
func WithDebugTransport(enabled bool) Option {
	return func(m *Manager) {
		m.debug = enabled
	}
}

// WithTransport sets the base HTTP round tripper of the default adapters, for proxies
// and tests. Nil keeps the adapters' own transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(m *Manager) {
		m.transport = rt
	}
}

// New creates an unconfigured manager. The catalogue and resolver are required.
func New(cat *catalog.Catalog, resolver CredentialResolver, opts ...Option) (*Manager, error) {
	if cat == nil {
		return nil, &aitypes.InvalidParameterError{Field: "catalog", Message: "must not be nil"}
	}
	if resolver == nil {
		return nil, &aitypes.InvalidParameterError{Field: "resolver", Message: "must not be nil"}
	}
	m := &Manager{
		catalog:  cat,
		resolver: resolver,
		timeouts: aitypes.DefaultTimeouts(),
		newID:    func() string { return SessionIDPrefix + uuid.NewString() },
		registry: chat.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.factory == nil {
		debug, transport := m.debug, m.transport
		m.factory = func(params aitypes.ConnectionParams) (aitypes.CompatibleClient, error) {
			return adapter.New(params, adapter.WithDebugTransport(debug), adapter.WithTransport(transport))
		}
	}
	return m, nil
}

// ConfigureAPI selects the configuration used by future sessions. On any failure the
// previous configuration is kept.
//
// Selection misses return *aitypes.InvalidParameterError; an API type the configuration does
// not list additionally wraps *aitypes.UnsupportedAPITypeError. A missing or blank credential
// returns *aitypes.AuthenticationError.
func (m *Manager) ConfigureAPI(provider string, configIndex int, apiType aitypes.APIType) error {
	m.mu.RLock()
	cat := m.catalog
	timeouts := m.timeouts
	m.mu.RUnlock()

	res := cat.Resolve(provider, configIndex, apiType)
	switch res.Status {
	case catalog.ResolutionOK:
	case catalog.ResolutionInvalidProvider:
		return &aitypes.InvalidParameterError{
			Field:   "provider",
			Value:   provider,
			Message: fmt.Sprintf("unknown provider (available: %s)", strings.Join(cat.Providers(), ", ")),
		}
	case catalog.ResolutionInvalidIndex:
		return &aitypes.InvalidParameterError{
			Field:   "config_index",
			Value:   fmt.Sprint(configIndex),
			Message: fmt.Sprintf("out of range for %s [0, %d)", provider, res.ConfigCount),
		}
	case catalog.ResolutionUnsupportedAPIType:
		return &aitypes.InvalidParameterError{
			Field:   "api_type",
			Value:   string(apiType),
			Message: fmt.Sprintf("not supported by %s[%d]", provider, configIndex),
			Cause:   &aitypes.UnsupportedAPITypeError{APIType: apiType, Supported: res.Config.APISupported},
		}
	default:
		return fmt.Errorf("unexpected resolution status %s", res.Status)
	}

	cred, err := m.resolver.Resolve(provider, configIndex)
	if err != nil {
		return fmt.Errorf("failed to resolve credential for %s[%d]: %w", provider, configIndex, err)
	}
	switch cred.State {
	case aitypes.CredentialFound:
	case aitypes.CredentialEmpty:
		return &aitypes.AuthenticationError{Provider: provider, ConfigIndex: configIndex,
			Reason: fmt.Sprintf("API key from %s is empty", cred.SourceKey)}
	default:
		return &aitypes.AuthenticationError{Provider: provider, ConfigIndex: configIndex,
			Reason: "no API key found in environment, dotenv files or secret store"}
	}

	params := aitypes.ConnectionParams{
		Provider:         provider,
		ConfigIndex:      configIndex,
		ConfigName:       res.Config.ConfigName,
		APIType:          apiType,
		EndpointURL:      res.Endpoint,
		ModelName:        res.Config.ModelName,
		InitConfigMsg:    res.Config.InitConfigMsg,
		APIKey:           cred.Secret,
		CredentialSource: cred.Source,
		Timeouts:         timeouts,
		Hints: aitypes.AdapterHints{
			Headers:         res.Config.Headers,
			RequestFormat:   res.Config.RequestFormat,
			ResponsePath:    res.Config.ResponsePath,
			ContextMessages: res.Config.ContextMessages,
		},
	}

	m.mu.Lock()
	m.params = &params
	m.mu.Unlock()

	logger.ServiceOperation("connection", "configure", "params", params.String(), "source", cred.Source)
	return nil
}

// ValidateConfiguration reports whether a configuration is selected, carries a non-blank
// key and is still offered by the current catalogue.
func (m *Manager) ValidateConfiguration() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.params == nil || strings.TrimSpace(m.params.APIKey) == "" {
		return false
	}
	return m.catalog.Resolve(m.params.Provider, m.params.ConfigIndex, m.params.APIType).OK()
}

// ConnectionParams returns a copy of the current configuration.
func (m *Manager) ConnectionParams() (aitypes.ConnectionParams, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.params == nil {
		return aitypes.ConnectionParams{}, false
	}
	return m.params.Clone(), true
}

// IsConfigured reports whether ConfigureAPI has succeeded at least once.
func (m *Manager) IsConfigured() bool {
	_, ok := m.ConnectionParams()
	return ok
}

// ConfigureTimeouts changes the timeouts for sessions created from now on, including
// sessions of the current configuration. Live sessions keep their own timeouts.
func (m *Manager) ConfigureTimeouts(connect, read time.Duration) error {
	t := aitypes.Timeouts{Connect: connect, Read: read}
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts = t
	if m.params != nil {
		m.params.Timeouts = t
	}
	return nil
}

// ReplaceCatalog swaps the catalogue used for discovery and future configuration. The current
// configuration is kept; ValidateConfiguration reports whether it is still offered. A
// CatalogAware resolver is switched to the new catalogue and loses its cached credentials.
func (m *Manager) ReplaceCatalog(cat *catalog.Catalog) {
	if cat == nil {
		return
	}
	m.mu.Lock()
	m.catalog = cat
	m.mu.Unlock()
	if aware, ok := m.resolver.(CatalogAware); ok {
		aware.SetCatalog(cat)
	}
	logger.ServiceOperation("connection", "replace catalog", "providers", len(cat.Providers()))
}

// CreateChatClient builds a session from the current configuration and registers it.
// An empty sessionID is replaced by a generated one. A taken id returns
// *aitypes.DuplicateSessionError and leaves the registered session untouched.
func (m *Manager) CreateChatClient(sessionID string) (*chat.ChatClient, error) {
	params, ok := m.ConnectionParams()
	if !ok {
		return nil, &aitypes.StateError{Op: "create chat client", State: "unconfigured"}
	}

	id := sessionID
	if id == "" {
		id = m.newID()
	} else if strings.TrimSpace(id) == "" {
		return nil, &aitypes.InvalidParameterError{Field: "session_id", Value: sessionID, Message: "must not be blank"}
	}
	if err := m.registry.Reserve(id); err != nil {
		return nil, err
	}

	client, err := m.factory(params)
	if err != nil {
		m.registry.Release(id)
		return nil, err
	}
	client = adapter.Instrument(client, m.collector, params.Provider)

	session, err := chat.NewChatClient(id, params, client, m.sessionClosed)
	if err != nil {
		m.registry.Release(id)
		_ = client.Close()
		return nil, err
	}
	if err := m.registry.Register(session); err != nil {
		m.registry.Release(id)
		_ = client.Close()
		return nil, err
	}
	m.collector.SessionOpened()
	return session, nil
}

func (m *Manager) sessionClosed(session *chat.ChatClient) {
	m.registry.Remove(session)
	m.collector.SessionClosed()
}

// WithChatClient creates a session, passes it to fn and closes it afterwards, also when fn
// returns an error or panics. Close failures are joined to fn's error.
func (m *Manager) WithChatClient(ctx context.Context, sessionID string, fn func(*chat.ChatClient) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	session, err := m.CreateChatClient(sessionID)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close session %s: %w", session.ID(), closeErr))
		}
	}()
	return fn(session)
}

// CloseAllClients closes and deregisters every live session. Every session is attempted;
// failures come back as one joined error. Calling it again is a no-op.
func (m *Manager) CloseAllClients() error {
	count := m.registry.Len()
	err := m.registry.CloseAll()
	logger.ServiceOperation("connection", "close all", "sessions", count, "failed", err != nil)
	return err
}

// Session returns the live session registered under id.
func (m *Manager) Session(id string) (*chat.ChatClient, bool) {
	return m.registry.Get(id)
}

// SessionIDs returns the ids of the live sessions, sorted.
func (m *Manager) SessionIDs() []string {
	return m.registry.IDs()
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	return m.registry.Len()
}
