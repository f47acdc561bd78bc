package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifiedai/pkg/aitypes"
)

func newRESTForTest(t *testing.T, params aitypes.ConnectionParams) *RESTClient {
	t.Helper()
	client, err := New(params)
	require.NoError(t, err)
	rest, ok := client.(*RESTClient)
	require.True(t, ok)
	t.Cleanup(func() { _ = rest.Close() })
	return rest
}

func TestRESTClient_SendMessagesFormat(t *testing.T) {
	var captured map[string]interface{}
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hi there"}}]}`))
	}))
	defer server.Close()

	params := testParams(aitypes.APITypeRequests, server.URL+"/v1/chat/completions")
	params.Hints.Headers = map[string]string{"X-Title": "unifiedai"}
	client := newRESTForTest(t, params)

	reply, err := client.Send(context.Background(), testHistory())
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)

	assert.Equal(t, "Bearer sk-test", headers.Get("Authorization"))
	assert.Equal(t, "unifiedai", headers.Get("X-Title"))
	assert.True(t, strings.HasPrefix(headers.Get("User-Agent"), "unifiedai/"))
	assert.Equal(t, "test-model", captured["model"])
	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "Be brief.", first["content"])
}

func TestRESTClient_SendPromptFormat(t *testing.T) {
	var captured restPromptRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = w.Write([]byte(`[{"generated_text":"forty-two"}]`))
	}))
	defer server.Close()

	params := testParams(aitypes.APITypeRequests, server.URL)
	params.Hints.RequestFormat = FormatPrompt
	params.Hints.ResponsePath = "0.generated_text"
	params.Hints.ContextMessages = 2
	client := newRESTForTest(t, params)

	history := []aitypes.ChatMessage{
		{Role: aitypes.RoleSystem, Content: "sys"},
		{Role: aitypes.RoleUser, Content: "q1"},
		{Role: aitypes.RoleAssistant, Content: "a1"},
		{Role: aitypes.RoleUser, Content: "q2"},
		{Role: aitypes.RoleAssistant, Content: "a2"},
		{Role: aitypes.RoleUser, Content: "q3"},
	}
	reply, err := client.Send(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "forty-two", reply)
	assert.Equal(t, "q3", captured.Inputs)
	require.Len(t, captured.Context, 2)
	assert.Equal(t, "q2", captured.Context[0].Content)
	assert.Equal(t, "a2", captured.Context[1].Content)
}

func TestRESTClient_ResponseExtraction(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"chat completion", `{"choices":[{"message":{"content":"a"}}]}`, "a", false},
		{"legacy completion", `{"choices":[{"text":"b"}]}`, "b", false},
		{"generated text list", `[{"generated_text":"c"}]`, "c", false},
		{"plain output", `{"output":"d"}`, "d", false},
		{"trailing comma repaired", `{"response": "e",}`, "e", false},
		{"empty content", `{"choices":[{"message":{"content":""}}]}`, "", true},
		{"no known field", `{"foo":"bar"}`, "", true},
		{"null content", `{"choices":[{"message":{"content":null}}]}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newRESTForTest(t, testParams(aitypes.APITypeRequests, server.URL))
			reply, err := client.Send(context.Background(), testHistory())
			if tt.wantErr {
				var convErr *aitypes.ResponseConversionError
				require.ErrorAs(t, err, &convErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestRESTClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Invalid API key"}}`,
			check: func(t *testing.T, err error) {
				var authErr *aitypes.AuthenticationError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, 401, authErr.StatusCode)
				assert.Equal(t, "Invalid API key", authErr.Reason)
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			body:   `{"error":"no access"}`,
			check: func(t *testing.T, err error) {
				var authErr *aitypes.AuthenticationError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, "no access", authErr.Reason)
			},
		},
		{
			name:   "server error with text body",
			status: http.StatusBadGateway,
			body:   "upstream exploded",
			check: func(t *testing.T, err error) {
				var connErr *aitypes.ConnectionError
				require.ErrorAs(t, err, &connErr)
				assert.Equal(t, 502, connErr.StatusCode)
				assert.Equal(t, "upstream exploded", connErr.Message)
				assert.True(t, aitypes.IsRetryable(err))
			},
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   `{"message":"model not found"}`,
			check: func(t *testing.T, err error) {
				var connErr *aitypes.ConnectionError
				require.ErrorAs(t, err, &connErr)
				assert.Equal(t, "model not found", connErr.Message)
				assert.False(t, aitypes.IsRetryable(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newRESTForTest(t, testParams(aitypes.APITypeRequests, server.URL))
			_, err := client.Send(context.Background(), testHistory())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRESTClient_TimeoutLeavesClientUsable(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"text":"fast"}`))
	}))
	defer server.Close()

	client := newRESTForTest(t, testParams(aitypes.APITypeRequests, server.URL))
	require.NoError(t, client.ConfigureRESTTimeouts(time.Second, 100*time.Millisecond))

	_, err := client.Send(context.Background(), testHistory())
	var connErr *aitypes.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.True(t, connErr.Timeout)

	slow.Store(false)
	reply, err := client.Send(context.Background(), testHistory())
	require.NoError(t, err)
	assert.Equal(t, "fast", reply)
}

func TestRESTClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := newRESTForTest(t, testParams(aitypes.APITypeRequests, url))
	_, err := client.Send(context.Background(), testHistory())
	var connErr *aitypes.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 0, connErr.StatusCode)
}

func TestRESTClient_ConfigureRESTTimeouts(t *testing.T) {
	client := newRESTForTest(t, testParams(aitypes.APITypeRequests, "https://x.example"))

	require.NoError(t, client.ConfigureRESTTimeouts(5*time.Second, 10*time.Second))
	assert.Equal(t, aitypes.Timeouts{Connect: 5 * time.Second, Read: 10 * time.Second}, client.Timeouts())

	var paramErr *aitypes.InvalidParameterError
	assert.ErrorAs(t, client.ConfigureRESTTimeouts(0, time.Second), &paramErr)
	assert.ErrorAs(t, client.ConfigureRESTTimeouts(time.Second, -time.Second), &paramErr)
	assert.Equal(t, 5*time.Second, client.Timeouts().Connect, "rejected values leave timeouts unchanged")

	require.NoError(t, client.Close())
	var stateErr *aitypes.StateError
	assert.ErrorAs(t, client.ConfigureRESTTimeouts(time.Second, time.Second), &stateErr)
}

func TestRESTClient_RejectsUnknownRequestFormat(t *testing.T) {
	params := testParams(aitypes.APITypeRequests, "https://x.example")
	params.Hints.RequestFormat = "xml"
	_, err := New(params)
	var paramErr *aitypes.InvalidParameterError
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "request_format", paramErr.Field)
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer sk-secret")
	h.Set("x-api-key", "sk-other")
	h.Set("Content-Type", "application/json")

	out := redactHeaders(h)
	assert.Equal(t, "[REDACTED]", out["Authorization"])
	assert.Equal(t, "[REDACTED]", out["X-Api-Key"])
	assert.Equal(t, "application/json", out["Content-Type"])
}

type recordingTransport struct {
	requests atomic.Int32
	body     string
}

func (rt *recordingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rt.requests.Add(1)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(rt.body)),
		Request:    r,
	}, nil
}

func TestRESTClient_WithTransport(t *testing.T) {
	rt := &recordingTransport{body: `{"generated_text":"no network needed"}`}
	client, err := New(testParams(aitypes.APITypeRequests, "http://unreachable.invalid/generate"), WithTransport(rt), WithDebugTransport(true))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	reply, err := client.Send(context.Background(), testHistory())
	require.NoError(t, err)
	assert.Equal(t, "no network needed", reply)
	assert.Equal(t, int32(1), rt.requests.Load())

	require.NoError(t, client.ConfigureRESTTimeouts(time.Second, time.Second))
	_, err = client.Send(context.Background(), testHistory())
	require.NoError(t, err)
	assert.Equal(t, int32(2), rt.requests.Load(), "the transport survives a timeout change")
}
