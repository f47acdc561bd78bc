package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"unifiedai/internal/logger"
	"unifiedai/pkg/aitypes"
)

func init() {
	mustRegister(aitypes.APITypeGemini, newGeminiClient)
}

// GeminiClient speaks the Gemini generateContent API through the genai SDK.
type GeminiClient struct {
	params   aitypes.ConnectionParams
	settings Settings

	mu         sync.Mutex
	client     *genai.Client
	httpClient *http.Client
	closed     bool
}

func newGeminiClient(params aitypes.ConnectionParams, settings Settings) (aitypes.CompatibleClient, error) {
	return &GeminiClient{params: params, settings: settings}, nil
}

// initializeClientIfNeeded creates the SDK client on first use. Must hold c.mu.
func (c *GeminiClient) initializeClientIfNeeded(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	c.httpClient = newHTTPClient(c.params.Timeouts, c.settings)
	headers := http.Header{}
	for k, v := range c.params.Hints.Headers {
		headers.Set(k, v)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     c.params.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: c.params.EndpointURL,
			Headers: headers,
		},
	})
	if err != nil {
		return &aitypes.InvalidParameterError{Field: "gemini_client", Message: "failed to create client", Cause: err}
	}
	c.client = client
	logger.Debug("Gemini client initialized", "base_url", c.params.EndpointURL)
	return nil
}

// APIType returns aitypes.APITypeGemini.
func (c *GeminiClient) APIType() aitypes.APIType {
	return aitypes.APITypeGemini
}

// ModelName returns the configured model.
func (c *GeminiClient) ModelName() string {
	return c.params.ModelName
}

// Timeouts returns the connect/read pair used for the next request.
func (c *GeminiClient) Timeouts() aitypes.Timeouts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Timeouts
}

// ConfigureRESTTimeouts replaces the connect/read pair. The SDK client is rebuilt on
// the next Send; a request already in flight keeps the old bounds.
func (c *GeminiClient) ConfigureRESTTimeouts(connect, read time.Duration) error {
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
	c.client = nil
	logger.Debug("SDK timeouts configured", "api_type", aitypes.APITypeGemini, "connect", connect, "read", read)
	return nil
}

// Close releases pooled connections.
func (c *GeminiClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	closeIdle(c.httpClient)
	return nil
}

// Send maps assistant turns to the "model" role and system messages to the system instruction.
func (c *GeminiClient) Send(ctx context.Context, history []aitypes.ChatMessage) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", &aitypes.StateError{Op: "send", State: "client is closed"}
	}
	if err := c.initializeClientIfNeeded(ctx); err != nil {
		c.mu.Unlock()
		return "", err
	}
	client := c.client
	c.mu.Unlock()

	var systemParts []string
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case aitypes.RoleSystem:
			systemParts = append(systemParts, m.Content)
		case aitypes.RoleAssistant:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	config := &genai.GenerateContentConfig{}
	if len(systemParts) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser)
	}

	result, err := client.Models.GenerateContent(ctx, c.params.ModelName, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", sdkError(c.params, apiErr.Code, apiErr.Message, err)
		}
		return "", transportError(c.params, err)
	}

	var content strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text == "" || part.Thought {
				continue
			}
			content.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(content.String()) == "" {
		return "", conversionError(aitypes.APITypeGemini, "no text content in candidates", nil, nil)
	}

	logger.Debug("Gemini response received", "content_length", content.Len())
	return content.String(), nil
}
