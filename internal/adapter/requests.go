package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tidwall/gjson"

	"unifiedai/internal/logger"
	"unifiedai/internal/version"
	"unifiedai/pkg/aitypes"
)

// Request body shapes for the generic REST adapter.
const (
	FormatMessages = "messages"
	FormatPrompt   = "prompt"
)

// responsePaths are tried in order when a configuration names no response_path.
var responsePaths = []string{
	"choices.0.message.content",
	"choices.0.text",
	"generated_text",
	"0.generated_text",
	"output",
	"text",
	"content",
	"response",
}

func init() {
	mustRegister(aitypes.APITypeRequests, newRESTClient)
}

// RESTClient talks to any HTTP endpoint that accepts a JSON body and a bearer key.
type RESTClient struct {
	params aitypes.ConnectionParams

	settings Settings

	mu         sync.Mutex
	httpClient *http.Client
	closed     bool
}

type restMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type restMessagesRequest struct {
	Model    string        `json:"model"`
	Messages []restMessage `json:"messages"`
}

type restPromptRequest struct {
	Model   string        `json:"model"`
	Inputs  string        `json:"inputs"`
	Context []restMessage `json:"context,omitempty"`
}

func newRESTClient(params aitypes.ConnectionParams, settings Settings) (aitypes.CompatibleClient, error) {
	switch params.Hints.RequestFormat {
	case "", FormatMessages, FormatPrompt:
	default:
		return nil, &aitypes.InvalidParameterError{
			Field:   "request_format",
			Value:   params.Hints.RequestFormat,
			Message: "expected messages or prompt",
		}
	}
	return &RESTClient{
		params:     params,
		settings:   settings,
		httpClient: newHTTPClient(params.Timeouts, settings),
	}, nil
}

// APIType returns aitypes.APITypeRequests.
func (c *RESTClient) APIType() aitypes.APIType {
	return aitypes.APITypeRequests
}

// ModelName returns the configured model.
func (c *RESTClient) ModelName() string {
	return c.params.ModelName
}

// Timeouts returns the active connect/read pair.
func (c *RESTClient) Timeouts() aitypes.Timeouts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Timeouts
}

// ConfigureRESTTimeouts rebuilds the transport with new timeouts. Both must be positive.
func (c *RESTClient) ConfigureRESTTimeouts(connect, read time.Duration) error {
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
	c.httpClient = newHTTPClient(timeouts, c.settings)
	logger.Debug("REST timeouts configured", "connect", connect, "read", read)
	return nil
}

// Close releases pooled connections.
func (c *RESTClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	closeIdle(c.httpClient)
	return nil
}

// Send posts the conversation and extracts the reply text.
func (c *RESTClient) Send(ctx context.Context, history []aitypes.ChatMessage) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", &aitypes.StateError{Op: "send", State: "client is closed"}
	}
	httpClient := c.httpClient
	c.mu.Unlock()

	payload, err := c.buildPayload(history)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.params.EndpointURL, bytes.NewReader(payload))
	if err != nil {
		return "", &aitypes.InvalidParameterError{Field: "endpoint_url", Value: c.params.EndpointURL, Message: "cannot build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Authorization", "Bearer "+c.params.APIKey)
	for k, v := range c.params.Hints.Headers {
		req.Header.Set(k, v)
	}

	logger.Debug("REST request", "endpoint", c.params.EndpointURL, "model", c.params.ModelName, "messages", len(history))

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", transportError(c.params, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(c.params, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Debug("REST request rejected", "status", resp.StatusCode)
		return "", statusError(c.params, resp.StatusCode, body)
	}

	return c.extractText(body)
}

func (c *RESTClient) buildPayload(history []aitypes.ChatMessage) ([]byte, error) {
	var request interface{}
	if c.params.Hints.RequestFormat == FormatPrompt {
		request = promptRequest(c.params.ModelName, history, c.params.Hints.ContextMessages)
	} else {
		messages := make([]restMessage, len(history))
		for i, m := range history {
			messages[i] = restMessage{Role: string(m.Role), Content: m.Content}
		}
		request = restMessagesRequest{Model: c.params.ModelName, Messages: messages}
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return payload, nil
}

// promptRequest sends the last user message as inputs plus up to contextSize
// earlier non-system messages as context.
func promptRequest(model string, history []aitypes.ChatMessage, contextSize int) restPromptRequest {
	last := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == aitypes.RoleUser {
			last = i
			break
		}
	}
	req := restPromptRequest{Model: model}
	if last < 0 {
		return req
	}
	req.Inputs = history[last].Content

	if contextSize > 0 {
		var earlier []restMessage
		for _, m := range history[:last] {
			if m.Role != aitypes.RoleSystem {
				earlier = append(earlier, restMessage{Role: string(m.Role), Content: m.Content})
			}
		}
		if len(earlier) > contextSize {
			earlier = earlier[len(earlier)-contextSize:]
		}
		req.Context = earlier
	}
	return req
}

// extractText locates the reply in body. Malformed JSON gets one repair attempt.
func (c *RESTClient) extractText(body []byte) (string, error) {
	data := body
	if !gjson.ValidBytes(data) {
		repaired, err := jsonrepair.JSONRepair(string(body))
		if err != nil || !gjson.Valid(repaired) {
			return "", conversionError(aitypes.APITypeRequests, "response is not valid JSON", body, err)
		}
		logger.Debug("REST response repaired", "original_length", len(body), "repaired_length", len(repaired))
		data = []byte(repaired)
	}

	paths := responsePaths
	if c.params.Hints.ResponsePath != "" {
		paths = []string{c.params.Hints.ResponsePath}
	}

	for _, path := range paths {
		r := gjson.GetBytes(data, path)
		if !r.Exists() || r.Type != gjson.String {
			continue
		}
		text := r.String()
		if strings.TrimSpace(text) == "" {
			return "", conversionError(aitypes.APITypeRequests, fmt.Sprintf("empty reply at %s", path), body, nil)
		}
		return text, nil
	}

	return "", conversionError(aitypes.APITypeRequests, "no reply text found in response", body, nil)
}
