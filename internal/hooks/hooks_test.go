package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/witness/internal/config"
	"github.com/soyeahso/witness/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var called bool
	m.On(EventServerStart, "test", func(_ context.Context, p Payload) error {
		called = true
		assert.Equal(t, EventServerStart, p.Event)
		return nil
	})

	m.Emit(context.Background(), EventServerStart, nil)
	assert.True(t, called)
}

func TestManager_Emit_MultipleHandlers(t *testing.T) {
	m := testManager()

	var order []string
	m.On(EventInteractionRecorded, "first", func(_ context.Context, _ Payload) error {
		order = append(order, "first")
		return nil
	})
	m.On(EventInteractionRecorded, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), EventInteractionRecorded, nil)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManager_Emit_WithData(t *testing.T) {
	m := testManager()

	var gotData map[string]any
	m.On(EventInteractionRecorded, "test", func(_ context.Context, p Payload) error {
		gotData = p.Data
		return nil
	})

	m.Emit(context.Background(), EventInteractionRecorded, map[string]any{
		"witnessId":  "smoke_GET_api-users_00000000_20260208T1430",
		"statusCode": 200,
	})

	assert.Equal(t, "smoke_GET_api-users_00000000_20260208T1430", gotData["witnessId"])
	assert.Equal(t, 200, gotData["statusCode"])
}

func TestManager_Emit_HandlerError(t *testing.T) {
	m := testManager()

	var secondCalled bool
	m.On(EventServerStart, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventServerStart, "second", func(_ context.Context, _ Payload) error {
		secondCalled = true
		return nil
	})

	// Should not panic; second handler should still run
	m.Emit(context.Background(), EventServerStart, nil)
	assert.True(t, secondCalled)
}

func TestManager_Emit_NoHandlers(t *testing.T) {
	m := testManager()
	// Should not panic
	m.Emit(context.Background(), EventServerStop, nil)
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var callCount int
	m.On(EventServerStart, "removable", func(_ context.Context, _ Payload) error {
		callCount++
		return nil
	})

	m.Emit(context.Background(), EventServerStart, nil)
	assert.Equal(t, 1, callCount)

	m.Off(EventServerStart, "removable")
	m.Emit(context.Background(), EventServerStart, nil)
	assert.Equal(t, 1, callCount) // should not have been called again
}

func TestManager_Off_KeepsOthers(t *testing.T) {
	m := testManager()

	var keepCalled int
	m.On(EventServerStart, "remove-me", func(_ context.Context, _ Payload) error { return nil })
	m.On(EventServerStart, "keep-me", func(_ context.Context, _ Payload) error {
		keepCalled++
		return nil
	})

	m.Off(EventServerStart, "remove-me")
	m.Emit(context.Background(), EventServerStart, nil)
	assert.Equal(t, 1, keepCalled)
}

func TestManager_EmitAsync(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)

	m.On(EventInteractionReplayed, "async1", func(_ context.Context, _ Payload) error {
		count.Add(1)
		wg.Done()
		return nil
	})
	m.On(EventInteractionReplayed, "async2", func(_ context.Context, _ Payload) error {
		count.Add(1)
		wg.Done()
		return nil
	})

	m.EmitAsync(context.Background(), EventInteractionReplayed, nil)

	// Wait with timeout
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not complete in time")
	}

	assert.Equal(t, int32(2), count.Load())
}

func TestManager_Count(t *testing.T) {
	m := testManager()

	assert.Equal(t, 0, m.Count(EventServerStart))

	m.On(EventServerStart, "h1", func(_ context.Context, _ Payload) error { return nil })
	assert.Equal(t, 1, m.Count(EventServerStart))

	m.On(EventServerStart, "h2", func(_ context.Context, _ Payload) error { return nil })
	assert.Equal(t, 2, m.Count(EventServerStart))
}

func TestManager_Events(t *testing.T) {
	m := testManager()

	m.On(EventServerStart, "h1", func(_ context.Context, _ Payload) error { return nil })
	m.On(EventInteractionRecorded, "h2", func(_ context.Context, _ Payload) error { return nil })

	events := m.Events()
	assert.Len(t, events, 2)
	assert.Contains(t, events, EventServerStart)
	assert.Contains(t, events, EventInteractionRecorded)
}

func TestAllEvents_NotEmpty(t *testing.T) {
	require.NotEmpty(t, AllEvents)
	assert.Contains(t, AllEvents, EventServerStart)
	assert.Contains(t, AllEvents, EventInteractionRecorded)
}

func TestCommandHandler_ReceivesPayload(t *testing.T) {
	out := filepath.Join(t.TempDir(), "payload.json")
	h := CommandHandler("cat > "+out, time.Second)

	err := h(context.Background(), Payload{
		Event: EventInteractionRecorded,
		Data:  map[string]any{"witnessId": "smoke_GET_root_00000000_20260208T1430"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"event":"interaction.recorded","data":{"witnessId":"smoke_GET_root_00000000_20260208T1430"}}`,
		string(data))
}

func TestCommandHandler_EventEnv(t *testing.T) {
	out := filepath.Join(t.TempDir(), "event.txt")
	h := CommandHandler(`printf %s "$WITNESS_HOOK_EVENT" > `+out, time.Second)

	require.NoError(t, h(context.Background(), Payload{Event: EventServerStop}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, EventServerStop, string(data))
}

func TestCommandHandler_FailureCarriesStderr(t *testing.T) {
	h := CommandHandler("echo boom >&2; exit 3", time.Second)

	err := h(context.Background(), Payload{Event: EventServerStart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCommandHandler_Timeout(t *testing.T) {
	h := CommandHandler("sleep 5", 50*time.Millisecond)

	start := time.Now()
	err := h(context.Background(), Payload{Event: EventServerStart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRegisterCommands(t *testing.T) {
	m := testManager()

	n := RegisterCommands(m, config.HooksConfig{
		InteractionRecorded: []config.HookEntry{{Command: "true"}, {Command: "  "}},
		ServerStart:         []config.HookEntry{{Command: "true", Timeout: 500}},
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.Count(EventInteractionRecorded))
	assert.Equal(t, 1, m.Count(EventServerStart))
	assert.Equal(t, 0, m.Count(EventInteractionReplayed))
}
