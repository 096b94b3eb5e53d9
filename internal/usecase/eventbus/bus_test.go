package eventbus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentops/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newEvent(t domain.EventType) domain.Event {
	return domain.Event{Type: t, Timestamp: time.Now(), TaskID: "t1"}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()
	var got atomic.Int32
	bus.Subscribe(domain.EventTaskCompleted, func(_ context.Context, e domain.Event) {
		assert.Equal(t, "t1", e.TaskID)
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventTaskCompleted))
	bus.Publish(context.Background(), newEvent(domain.EventTaskFailed))
	bus.Close()
	assert.Equal(t, int32(1), got.Load())
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()
	var got atomic.Int32
	bus.SubscribeAll(func(context.Context, domain.Event) { got.Add(1) })

	bus.Publish(context.Background(), newEvent(domain.EventTaskStarted))
	bus.Publish(context.Background(), newEvent(domain.EventAgentDisabled))
	bus.Close()
	assert.Equal(t, int32(2), got.Load())
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()
	var typed, all atomic.Int32
	unsubTyped := bus.Subscribe(domain.EventTaskFailed, func(context.Context, domain.Event) { typed.Add(1) })
	unsubAll := bus.SubscribeAll(func(context.Context, domain.Event) { all.Add(1) })

	unsubTyped()
	unsubAll()
	bus.Publish(context.Background(), newEvent(domain.EventTaskFailed))
	bus.Close()
	assert.Zero(t, typed.Load())
	assert.Zero(t, all.Load())
}

func TestHandlersOutliveCancelledPublisher(t *testing.T) {
	bus := newTestBus()
	errs := make(chan error, 1)
	bus.Subscribe(domain.EventTaskFailed, func(ctx context.Context, _ domain.Event) {
		errs <- ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, newEvent(domain.EventTaskFailed))
	bus.Close()
	require.Len(t, errs, 1)
	assert.NoError(t, <-errs)
}

func TestPanickingHandlerIsRecovered(t *testing.T) {
	bus := newTestBus()
	var got atomic.Int32
	bus.Subscribe(domain.EventTaskCompleted, func(context.Context, domain.Event) { panic("boom") })
	bus.Subscribe(domain.EventTaskCompleted, func(context.Context, domain.Event) { got.Add(1) })

	bus.Publish(context.Background(), newEvent(domain.EventTaskCompleted))
	bus.Close()
	assert.Equal(t, int32(1), got.Load())
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	bus := newTestBus()
	var got atomic.Int32
	bus.SubscribeAll(func(context.Context, domain.Event) { got.Add(1) })
	bus.Close()
	bus.Close()
	bus.Publish(context.Background(), newEvent(domain.EventTaskStarted))
	assert.Zero(t, got.Load())
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()
	var got atomic.Int32
	bus.SubscribeAll(func(context.Context, domain.Event) { got.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.EventTaskCompleted))
		}()
	}
	wg.Wait()
	bus.Close()
	assert.Equal(t, int32(20), got.Load())
}
