package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	sendErr error
	closed  bool
}

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r, err := NewRouter(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return r
}

func TestRouter_PublishReachesSubscribers(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	topic := TableTopic("t-1")

	a := &fakeConn{}
	b := &fakeConn{}
	r.Subscribe(ctx, a, topic)
	r.Subscribe(ctx, b, topic)

	require.NoError(t, r.Publish(ctx, topic, "order:update", map[string]string{"id": "o-1"}))

	require.Len(t, a.received(), 1)
	require.Len(t, b.received(), 1)
	assert.Equal(t, a.received()[0], b.received()[0], "one frame encoded per publish")

	var envelope struct {
		Event string          `json:"event"`
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
		TS    string          `json:"ts"`
	}
	require.NoError(t, json.Unmarshal(a.received()[0], &envelope))
	assert.Equal(t, "order:update", envelope.Event)
	assert.Equal(t, "table:t-1", envelope.Topic)
	assert.JSONEq(t, `{"id":"o-1"}`, string(envelope.Data))
	assert.NotEmpty(t, envelope.TS)
}

func TestRouter_TopicsAreIsolated(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	table := &fakeConn{}
	kitchen := &fakeConn{}
	r.Subscribe(ctx, table, TableTopic("t-1"))
	r.Subscribe(ctx, kitchen, RoleTopic(RoleKitchen))

	require.NoError(t, r.Publish(ctx, RoleTopic(RoleKitchen), "order:new_task", nil))

	assert.Empty(t, table.received())
	assert.Len(t, kitchen.received(), 1)
}

func TestRouter_PublishWithoutSubscribersSucceeds(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.Publish(context.Background(), TableTopic("t-9"), "order:update", nil))
}

func TestRouter_UnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	topic := TableTopic("t-1")

	c := &fakeConn{}
	r.Subscribe(ctx, c, topic)
	r.Unsubscribe(ctx, c, topic)

	require.NoError(t, r.Publish(ctx, topic, "order:update", nil))
	assert.Empty(t, c.received(), "at-most-once: no delivery after unsubscribe")

	// Unknown pairs are ignored.
	r.Unsubscribe(ctx, c, topic)
	r.Unsubscribe(ctx, &fakeConn{}, RoleTopic(RoleWaiter))
}

func TestRouter_DuplicateSubscribeIsNoop(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	topic := RoleTopic(RoleWaiter)

	c := &fakeConn{}
	r.Subscribe(ctx, c, topic)
	r.Subscribe(ctx, c, topic)

	require.NoError(t, r.Publish(ctx, topic, "item:ready", nil))
	assert.Len(t, c.received(), 1, "at-most-once per connection")
}

func TestRouter_FailingConnIsDroppedAndClosed(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	topic := TableTopic("t-1")

	healthy := &fakeConn{}
	stale := &fakeConn{sendErr: errors.New("send buffer full")}
	r.Subscribe(ctx, healthy, topic)
	r.Subscribe(ctx, stale, topic)

	// The publish itself succeeds; only the stale subscriber is affected.
	require.NoError(t, r.Publish(ctx, topic, "order:update", nil))
	assert.Len(t, healthy.received(), 1)
	assert.True(t, stale.closed)

	// Dropped means dropped: the next publish skips it entirely.
	stale.sendErr = nil
	require.NoError(t, r.Publish(ctx, topic, "order:update", nil))
	assert.Empty(t, stale.received())
	assert.Len(t, healthy.received(), 2)
}

func TestRouter_DropConnRemovesFromAllTopics(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)

	c := &fakeConn{}
	r.Subscribe(ctx, c, TableTopic("t-1"))
	r.Subscribe(ctx, c, RoleTopic(RoleWaiter))

	r.DropConn(ctx, c)

	require.NoError(t, r.Publish(ctx, TableTopic("t-1"), "order:update", nil))
	require.NoError(t, r.Publish(ctx, RoleTopic(RoleWaiter), "item:ready", nil))
	assert.Empty(t, c.received())
}

// TestRouter_ConcurrentSubscribePublish exercises the registry under racing
// subscribes, unsubscribes, and publishes. Run with -race.
func TestRouter_ConcurrentSubscribePublish(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter(t)
	topic := TableTopic("t-1")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			for range 50 {
				r.Subscribe(ctx, c, topic)
				r.Unsubscribe(ctx, c, topic)
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				_ = r.Publish(ctx, topic, "order:update", map[string]int{"n": 1})
			}
		}()
	}
	wg.Wait()
}

func TestEventEncode_UnmarshalablePayload(t *testing.T) {
	_, err := Event{Name: "order:update", Payload: make(chan int)}.Encode()
	require.Error(t, err)
}
