package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"unifiedai/internal/logger"
	"unifiedai/pkg/aitypes"
)

func init() {
	mustRegister(aitypes.APITypeOpenAI, newOpenAIClient)
}

// OpenAIClient speaks the OpenAI chat-completions protocol through the official SDK.
// The endpoint is used as the SDK base URL, so any compatible service works.
type OpenAIClient struct {
	params   aitypes.ConnectionParams
	settings Settings

	mu         sync.Mutex
	ready      bool
	client     openai.Client
	httpClient *http.Client
	closed     bool
}

func newOpenAIClient(params aitypes.ConnectionParams, settings Settings) (aitypes.CompatibleClient, error) {
	return &OpenAIClient{params: params, settings: settings}, nil
}

// initializeClientIfNeeded builds the SDK client on first use. Must hold c.mu.
func (c *OpenAIClient) initializeClientIfNeeded() {
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
	c.client = openai.NewClient(options...)
	logger.Debug("OpenAI client initialized", "base_url", c.params.EndpointURL)
	c.ready = true
}

// APIType returns aitypes.APITypeOpenAI.
func (c *OpenAIClient) APIType() aitypes.APIType {
	return aitypes.APITypeOpenAI
}

// ModelName returns the configured model.
func (c *OpenAIClient) ModelName() string {
	return c.params.ModelName
}

// Timeouts returns the connect/read pair used for the next request.
func (c *OpenAIClient) Timeouts() aitypes.Timeouts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Timeouts
}

// ConfigureRESTTimeouts replaces the connect/read pair. The SDK client is rebuilt on
// the next Send; a request already in flight keeps the old bounds.
func (c *OpenAIClient) ConfigureRESTTimeouts(connect, read time.Duration) error {
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
	logger.Debug("SDK timeouts configured", "api_type", aitypes.APITypeOpenAI, "connect", connect, "read", read)
	return nil
}

// Close releases pooled connections.
func (c *OpenAIClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	closeIdle(c.httpClient)
	return nil
}

// Send submits the full history as a chat completion and returns the first choice.
func (c *OpenAIClient) Send(ctx context.Context, history []aitypes.ChatMessage) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", &aitypes.StateError{Op: "send", State: "client is closed"}
	}
	c.initializeClientIfNeeded()
	client := c.client
	c.mu.Unlock()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case aitypes.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case aitypes.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.params.ModelName),
		Messages: messages,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", sdkError(c.params, apiErr.StatusCode, apiErr.Message, err)
		}
		return "", transportError(c.params, err)
	}

	if len(completion.Choices) == 0 {
		return "", conversionError(aitypes.APITypeOpenAI, "no choices in completion", []byte(completion.RawJSON()), nil)
	}
	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", conversionError(aitypes.APITypeOpenAI, "empty message content", []byte(completion.RawJSON()), nil)
	}

	logger.Debug("OpenAI response received", "content_length", len(content))
	return content, nil
}
