package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"unifiedai/internal/logger"
	"unifiedai/pkg/aitypes"
)

// anthropicMaxTokens caps each reply; the Messages API requires an explicit limit.
const anthropicMaxTokens = 4096

func init() {
	mustRegister(aitypes.APITypeAnthropic, newAnthropicClient)
}

// AnthropicClient speaks the Anthropic Messages API through the official SDK.
type AnthropicClient struct {
	params   aitypes.ConnectionParams
	settings Settings

	mu         sync.Mutex
	ready      bool
	client     anthropic.Client
	httpClient *http.Client
	closed     bool
}

func newAnthropicClient(params aitypes.ConnectionParams, settings Settings) (aitypes.CompatibleClient, error) {
	return &AnthropicClient{params: params, settings: settings}, nil
}

// initializeClientIfNeeded builds the SDK client on first use. Must hold c.mu.
func (c *AnthropicClient) initializeClientIfNeeded() {
	if c.ready {
		return
	}
	c.httpClient = newHTTPClient(c.params.Timeouts, c.settings)
	options := []option.RequestOption{
		option.WithAPIKey(c.params.APIKey),
		option.WithBaseURL(c.params.EndpointURL),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	}
	for k, v := range c.params.Hints.Headers {
		options = append(options, option.WithHeader(k, v))
	}
	c.client = anthropic.NewClient(options...)
	logger.Debug("Anthropic client initialized", "base_url", c.params.EndpointURL)
	c.ready = true
}

// APIType returns aitypes.APITypeAnthropic.
func (c *AnthropicClient) APIType() aitypes.APIType {
	return aitypes.APITypeAnthropic
}

// ModelName returns the configured model.
func (c *AnthropicClient) ModelName() string {
	return c.params.ModelName
}

// Timeouts returns the connect/read pair used for the next request.
func (c *AnthropicClient) Timeouts() aitypes.Timeouts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Timeouts
}

// ConfigureRESTTimeouts replaces the connect/read pair. The SDK client is rebuilt on
// the next Send; a request already in flight keeps the old bounds.
func (c *AnthropicClient) ConfigureRESTTimeouts(connect, read time.Duration) error {
	timeouts := aitypes.Timeouts{Connect: connect, Read: read}
	if err := timeouts.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &aitypes.StateError{Op: "configure timeouts", State: "client is closed"}
	}
	closeIdle(c.httpClient)
	c.params.Timeouts = timeouts
	c.ready = false
	logger.Debug("SDK timeouts configured", "api_type", aitypes.APITypeAnthropic, "connect", connect, "read", read)
	return nil
}

// Close releases pooled connections.
func (c *AnthropicClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	closeIdle(c.httpClient)
	return nil
}

// Send converts the history to Messages API form. System messages are joined
// into the top-level system prompt.
func (c *AnthropicClient) Send(ctx context.Context, history []aitypes.ChatMessage) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", &aitypes.StateError{Op: "send", State: "client is closed"}
	}
	c.initializeClientIfNeeded()
	client := c.client
	c.mu.Unlock()

	var systemParts []string
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case aitypes.RoleSystem:
			systemParts = append(systemParts, m.Content)
		case aitypes.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.params.ModelName),
		MaxTokens: anthropicMaxTokens,
		Messages:  messages,
	}
	if len(systemParts) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(systemParts, "\n\n")}}
	}

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", sdkError(c.params, apiErr.StatusCode, errorMessage([]byte(apiErr.RawJSON())), err)
		}
		return "", transportError(c.params, err)
	}

	var content strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(content.String()) == "" {
		return "", conversionError(aitypes.APITypeAnthropic, "no text content in message", []byte(message.RawJSON()), nil)
	}

	logger.Debug("Anthropic response received", "content_length", content.Len())
	return content.String(), nil
}
