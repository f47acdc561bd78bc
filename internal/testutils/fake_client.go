package testutils

import (
	"context"
	"sync"
	"time"

	"unifiedai/pkg/aitypes"
)

// FakeClient is a scripted aitypes.CompatibleClient.
// Replies are consumed in order; once they run out the last one repeats.
type FakeClient struct {
	mu       sync.Mutex
	apiType  aitypes.APIType
	model    string
	replies  []string
	errs     []error
	calls    [][]aitypes.ChatMessage
	timeouts aitypes.Timeouts
	closeErr error
	closes   int
}

// NewFakeClient creates a fake that answers with replies.
func NewFakeClient(apiType aitypes.APIType, model string, replies ...string) *FakeClient {
	if len(replies) == 0 {
		replies = []string{"ok"}
	}
	return &FakeClient{apiType: apiType, model: model, replies: replies}
}

// FailWith queues errors returned by the next Send calls, in order.
func (f *FakeClient) FailWith(errs ...error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, errs...)
	return f
}

// FailClose makes Close return err.
func (f *FakeClient) FailClose(err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeErr = err
	return f
}

// Send implements aitypes.CompatibleClient.
func (f *FakeClient) Send(ctx context.Context, messages []aitypes.ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]aitypes.ChatMessage(nil), messages...))
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

// ConfigureRESTTimeouts implements aitypes.CompatibleClient.
func (f *FakeClient) ConfigureRESTTimeouts(connect, read time.Duration) error {
	t := aitypes.Timeouts{Connect: connect, Read: read}
	if err := t.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = t
	return nil
}

// APIType implements aitypes.CompatibleClient.
func (f *FakeClient) APIType() aitypes.APIType { return f.apiType }

// ModelName implements aitypes.CompatibleClient.
func (f *FakeClient) ModelName() string { return f.model }

// Close implements aitypes.CompatibleClient.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

// Calls returns the message lists passed to Send.
func (f *FakeClient) Calls() [][]aitypes.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]aitypes.ChatMessage(nil), f.calls...)
}

// CloseCount returns how many times Close was called.
func (f *FakeClient) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// Timeouts returns the last timeouts accepted by ConfigureRESTTimeouts.
func (f *FakeClient) Timeouts() aitypes.Timeouts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timeouts
}
