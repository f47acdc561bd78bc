package chat

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifiedai/internal/testutils"
	"unifiedai/pkg/aitypes"
)

func registeredSession(t *testing.T, r *Registry, id string, fake *testutils.FakeClient) *ChatClient {
	t.Helper()
	if fake == nil {
		fake = testutils.NewFakeClient(aitypes.APITypeOpenAI, "m")
	}
	session, err := NewChatClient(id, testParams(), fake, func(c *ChatClient) { r.Remove(c) })
	require.NoError(t, err)
	require.NoError(t, r.Register(session))
	return session
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	session := registeredSession(t, r, "b", nil)
	registeredSession(t, r, "a", nil)

	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Same(t, session, got)
	assert.Equal(t, []string{"a", "b"}, r.IDs())
	assert.Equal(t, 2, r.Len())

	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Error(t, r.Register(nil))
}

func TestRegistry_DuplicateKeepsExisting(t *testing.T) {
	r := NewRegistry()
	first := registeredSession(t, r, "dup", nil)

	second, err := NewChatClient("dup", testParams(), testutils.NewFakeClient(aitypes.APITypeOpenAI, "m"), nil)
	require.NoError(t, err)

	err = r.Register(second)
	var dupErr *aitypes.DuplicateSessionError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "dup", dupErr.SessionID)
	assert.ErrorAs(t, r.Reserve("dup"), &dupErr)

	got, _ := r.Get("dup")
	assert.Same(t, first, got)
}

func TestRegistry_ReserveHoldsID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Reserve("pending"))

	var dupErr *aitypes.DuplicateSessionError
	require.ErrorAs(t, r.Reserve("pending"), &dupErr, "a reserved id cannot be reserved twice")
	assert.Equal(t, "pending", dupErr.SessionID)

	_, ok := r.Get("pending")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.IDs())

	session := registeredSession(t, r, "pending", nil)
	got, ok := r.Get("pending")
	require.True(t, ok)
	assert.Same(t, session, got)

	require.NoError(t, session.Close())
	assert.NoError(t, r.Reserve("pending"), "closing frees the id")

	r.Release("pending")
	assert.NoError(t, r.Reserve("pending"), "released ids can be reserved again")
}

func TestRegistry_CloseDeregisters(t *testing.T) {
	r := NewRegistry()
	session := registeredSession(t, r, "s1", nil)

	require.NoError(t, session.Close())
	_, ok := r.Get("s1")
	assert.False(t, ok)
	assert.False(t, r.Remove(session), "second removal is a no-op")
}

func TestRegistry_RemoveIgnoresStaleSession(t *testing.T) {
	r := NewRegistry()
	stale, err := NewChatClient("s1", testParams(), testutils.NewFakeClient(aitypes.APITypeOpenAI, "m"), nil)
	require.NoError(t, err)
	current := registeredSession(t, r, "s1", nil)

	assert.False(t, r.Remove(stale))
	got, ok := r.Get("s1")
	require.True(t, ok)
	assert.Same(t, current, got)
}

func TestRegistry_CloseAllAggregatesFailures(t *testing.T) {
	r := NewRegistry()
	registeredSession(t, r, "ok", nil)
	registeredSession(t, r, "bad1", testutils.NewFakeClient(aitypes.APITypeOpenAI, "m").FailClose(errors.New("first failure")))
	registeredSession(t, r, "bad2", testutils.NewFakeClient(aitypes.APITypeOpenAI, "m").FailClose(errors.New("second failure")))

	err := r.CloseAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close session bad1: first failure")
	assert.Contains(t, err.Error(), "close session bad2: second failure")
	assert.Equal(t, 0, r.Len())

	assert.NoError(t, r.CloseAll(), "closing an empty registry succeeds")
}

func TestRegistry_ConcurrentRegisterAndClose(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := NewChatClient(fmt.Sprintf("s%d", i), testParams(),
				testutils.NewFakeClient(aitypes.APITypeOpenAI, "m"), func(c *ChatClient) { r.Remove(c) })
			if err != nil {
				return
			}
			if r.Register(session) == nil && i%2 == 0 {
				_ = session.Close()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 25, r.Len())
}
