package aitypes

import (
	"context"
	"time"
)

// CompatibleClient is the uniform completion interface every protocol adapter implements.
// A client is bound to one endpoint, model and credential for its whole life.
type CompatibleClient interface {
	// Send transmits the full ordered history and returns the assistant reply text.
	Send(ctx context.Context, history []ChatMessage) (string, error)

	// ConfigureRESTTimeouts sets connect and read timeouts. Adapters whose transport
	// is owned by a vendor SDK accept the call and keep their defaults.
	ConfigureRESTTimeouts(connect, read time.Duration) error

	// APIType returns the wire protocol tag of this adapter.
	APIType() APIType

	// ModelName returns the model identifier sent with each request.
	ModelName() string

	// Close releases transport resources. Calling it more than once is safe.
	Close() error
}
