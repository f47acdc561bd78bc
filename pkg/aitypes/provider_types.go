// Package aitypes defines the shared data structures for unified AI provider access.
// This file contains the catalogue, connection and conversation types used across the module.
package aitypes

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// APIType identifies a wire protocol style that an adapter speaks.
type APIType string

// Known API type tags. A catalogue may declare a tag for which no adapter is registered.
const (
	APITypeOpenAI         APIType = "openai"
	APITypeRequests       APIType = "requests"
	APITypeAnthropic      APIType = "anthropic"
	APITypeGemini         APIType = "gemini"
	APITypeHuggingFaceHub APIType = "huggingface_hub"
)

// String returns the tag as written in catalogue files.
func (a APIType) String() string {
	return string(a)
}

// Role is the author of a chat message.
type Role string

// Chat roles understood by every adapter.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultSystemMessage seeds a conversation when a configuration has no init_config_msg.
const DefaultSystemMessage = "You are a helpful AI assistant."

// Default transport timeouts applied when nothing else is configured.
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultReadTimeout    = 60 * time.Second
)

// ChatMessage is one turn of a conversation. Order within a history is significant.
type ChatMessage struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// ProviderConfig is one configuration (model + endpoints) offered by a provider.
type ProviderConfig struct {
	// ConfigName is the display label of this configuration
	ConfigName string `yaml:"config_name" json:"config_name"`

	// ModelURL is informational and never validated
	ModelURL string `yaml:"model_url" json:"model_url"`

	// ModelName is the model identifier sent to the remote service
	ModelName string `yaml:"model_name" json:"model_name"`

	// InitConfigMsg is the system prompt that seeds new conversations
	InitConfigMsg string `yaml:"init_config_msg" json:"init_config_msg"`

	// APISupported is the ordered set of API types this configuration can be reached with
	APISupported []APIType `yaml:"api_supported" json:"api_supported"`

	// APIEndpoints maps every supported API type to its URL
	APIEndpoints map[APIType]string `yaml:"api_endpoints" json:"api_endpoints"`

	// Headers are extra HTTP headers sent by the generic REST adapter
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// RequestFormat selects the generic REST payload shape ("messages" or "prompt")
	RequestFormat string `yaml:"request_format,omitempty" json:"request_format,omitempty"`

	// ResponsePath is a gjson path locating the reply text in a generic REST response
	ResponsePath string `yaml:"response_path,omitempty" json:"response_path,omitempty"`

	// ContextMessages bounds the trailing history sent with the "prompt" request format
	ContextMessages int `yaml:"context_messages,omitempty" json:"context_messages,omitempty"`
}

// Supports reports whether apiType is listed in APISupported.
func (p ProviderConfig) Supports(apiType APIType) bool {
	for _, t := range p.APISupported {
		if t == apiType {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can never mutate catalogue state.
func (p ProviderConfig) Clone() ProviderConfig {
	out := p
	out.APISupported = append([]APIType(nil), p.APISupported...)
	if p.APIEndpoints != nil {
		out.APIEndpoints = make(map[APIType]string, len(p.APIEndpoints))
		for k, v := range p.APIEndpoints {
			out.APIEndpoints[k] = v
		}
	}
	if p.Headers != nil {
		out.Headers = make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

// Timeouts bounds connection establishment and waiting for a response.
type Timeouts struct {
	Connect time.Duration `json:"connect" yaml:"connect"`
	Read    time.Duration `json:"read" yaml:"read"`
}

// DefaultTimeouts returns the 30s connect / 60s read pair.
func DefaultTimeouts() Timeouts {
	return Timeouts{Connect: DefaultConnectTimeout, Read: DefaultReadTimeout}
}

// Validate rejects non-positive durations.
func (t Timeouts) Validate() error {
	if t.Connect <= 0 {
		return &InvalidParameterError{Field: "connect_timeout", Value: t.Connect.String(), Message: "must be positive"}
	}
	if t.Read <= 0 {
		return &InvalidParameterError{Field: "read_timeout", Value: t.Read.String(), Message: "must be positive"}
	}
	return nil
}

// AdapterHints carries the optional per-configuration knobs read by the generic REST adapter.
type AdapterHints struct {
	Headers         map[string]string
	RequestFormat   string
	ResponsePath    string
	ContextMessages int
}

// ConnectionParams is the fully resolved tuple a session is built from.
// It is a value type: each session holds its own copy.
type ConnectionParams struct {
	Provider         string
	ConfigIndex      int
	ConfigName       string
	APIType          APIType
	EndpointURL      string
	ModelName        string
	InitConfigMsg    string
	APIKey           string
	CredentialSource CredentialSource
	Timeouts         Timeouts
	Hints            AdapterHints
}

// Clone returns a copy that shares no maps with the receiver.
func (c ConnectionParams) Clone() ConnectionParams {
	out := c
	if c.Hints.Headers != nil {
		out.Hints.Headers = make(map[string]string, len(c.Hints.Headers))
		for k, v := range c.Hints.Headers {
			out.Hints.Headers[k] = v
		}
	}
	return out
}

// SystemMessage returns the init message, falling back to DefaultSystemMessage.
func (c ConnectionParams) SystemMessage() string {
	if strings.TrimSpace(c.InitConfigMsg) == "" {
		return DefaultSystemMessage
	}
	return c.InitConfigMsg
}

// KeyFingerprint returns a short, non-reversible tag of the API key for logs.
func (c ConnectionParams) KeyFingerprint() string {
	return Fingerprint(c.APIKey)
}

// String renders the parameters without exposing the API key.
func (c ConnectionParams) String() string {
	return fmt.Sprintf("%s[%d] %s via %s (%s) key=%s",
		c.Provider, c.ConfigIndex, c.ModelName, c.APIType, c.EndpointURL, c.KeyFingerprint())
}

// Fingerprint hashes a secret into an 8 hex character tag. Empty secrets yield "none".
func Fingerprint(secret string) string {
	if secret == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("%x", sum)[:8]
}
