// Package chat implements chat sessions over a protocol adapter and the registry
// that tracks the live sessions of a connection manager.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"unifiedai/internal/logger"
	"unifiedai/pkg/aitypes"
)

// ChatClient is one conversation bound to one adapter and one set of connection parameters.
//
// A ChatClient must not be used by several goroutines for SendMessage at once; the caller
// serialises its own turns. Close may be called from any goroutine.
type ChatClient struct {
	id     string
	params aitypes.ConnectionParams
	client aitypes.CompatibleClient

	// onClose runs once after the adapter is released (registry removal, metrics)
	onClose func(*ChatClient)

	mu      sync.Mutex
	history []aitypes.ChatMessage
	closed  bool
}

// NewChatClient wraps an adapter. History starts with one system message built from the
// configuration's init message (or aitypes.DefaultSystemMessage). A blank API key is rejected.
func NewChatClient(id string, params aitypes.ConnectionParams, client aitypes.CompatibleClient, onClose func(*ChatClient)) (*ChatClient, error) {
	if strings.TrimSpace(params.APIKey) == "" {
		return nil, &aitypes.AuthenticationError{
			Provider:    params.Provider,
			ConfigIndex: params.ConfigIndex,
			Reason:      "API key is empty",
		}
	}
	if client == nil {
		return nil, &aitypes.InvalidParameterError{Field: "client", Message: "adapter must not be nil"}
	}

	c := &ChatClient{
		id:      id,
		params:  params.Clone(),
		client:  client,
		onClose: onClose,
	}
	c.history = c.seed()
	logger.SessionEvent(id, "create", "provider", params.Provider, "model", params.ModelName, "api_type", params.APIType)
	return c, nil
}

func (c *ChatClient) seed() []aitypes.ChatMessage {
	return []aitypes.ChatMessage{{Role: aitypes.RoleSystem, Content: c.params.SystemMessage()}}
}

// ID returns the session id.
func (c *ChatClient) ID() string {
	return c.id
}

// ModelName returns the model this session talks to.
func (c *ChatClient) ModelName() string {
	return c.params.ModelName
}

// APIType returns the wire protocol of the underlying adapter.
func (c *ChatClient) APIType() aitypes.APIType {
	return c.params.APIType
}

// ConnectionParams returns a copy of the parameters the session was built from.
func (c *ChatClient) ConnectionParams() aitypes.ConnectionParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Clone()
}

// IsConnected reports whether the session can still send messages.
func (c *ChatClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// IsClosed reports whether Close has been called.
func (c *ChatClient) IsClosed() bool {
	return !c.IsConnected()
}

// HistoryLen returns the number of messages in the conversation.
func (c *ChatClient) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// History returns a copy of the conversation.
func (c *ChatClient) History() []aitypes.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]aitypes.ChatMessage(nil), c.history...)
}

// SendMessage appends text as a user message, sends the whole conversation and appends the
// reply. If the adapter fails, the user message stays in the history, no assistant message
// is added and the adapter's error is returned unchanged.
func (c *ChatClient) SendMessage(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &aitypes.InvalidParameterError{Field: "message", Message: "must not be empty"}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", &aitypes.StateError{Op: "send message", State: "session " + c.id + " is closed"}
	}
	c.history = append(c.history, aitypes.ChatMessage{Role: aitypes.RoleUser, Content: text})
	snapshot := append([]aitypes.ChatMessage(nil), c.history...)
	c.mu.Unlock()

	reply, err := c.client.Send(ctx, snapshot)
	if err != nil {
		logger.Debug("Chat message failed", "session", c.id, "error", err)
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// Closed while the call was in flight; the reply is returned but not recorded.
		return reply, nil
	}
	c.history = append(c.history, aitypes.ChatMessage{Role: aitypes.RoleAssistant, Content: reply})
	logger.SessionEvent(c.id, "reply", "history", len(c.history), "reply_length", len(reply))
	return reply, nil
}

// ConfigureRESTTimeouts forwards new connect and read bounds to the adapter. The session's
// parameters change only when the adapter accepted them.
func (c *ChatClient) ConfigureRESTTimeouts(connect, read time.Duration) error {
	if c.IsClosed() {
		return &aitypes.StateError{Op: "configure timeouts", State: "session " + c.id + " is closed"}
	}
	if err := c.client.ConfigureRESTTimeouts(connect, read); err != nil {
		return err
	}
	c.mu.Lock()
	c.params.Timeouts = aitypes.Timeouts{Connect: connect, Read: read}
	c.mu.Unlock()
	return nil
}

// ClearChatHistory resets the conversation to the seed system message.
// It has no effect on a closed session.
func (c *ChatClient) ClearChatHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.history = c.seed()
	logger.SessionEvent(c.id, "clear")
}

// Close releases the adapter and deregisters the session. Only the first call has any effect.
func (c *ChatClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.history = nil
	c.mu.Unlock()

	err := c.client.Close()
	if c.onClose != nil {
		c.onClose(c)
	}
	logger.SessionEvent(c.id, "close")
	return err
}
