package eventbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/folio/pkg/channels/gochannel"
	"github.com/dukex/folio/pkg/events"
	"github.com/dukex/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversTypedEvent(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan *events.StatusChanged, 1)

	require.NoError(t, bus.Handle(events.ManuscriptStatusChangedEvent, func(_ context.Context, event events.Event) error {
		received <- event.(*events.StatusChanged)

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	sent := events.StatusChanged{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.ManuscriptStatusChangedEvent, ManuscriptID: "m-1"},
		From:      models.StatusReviewerReviewing,
		To:        models.StatusBackToAdmin,
	}
	require.NoError(t, bus.Publish(ctx, "m-1", sent))

	select {
	case got := <-received:
		assert.Equal(t, models.StatusBackToAdmin, got.To)
		assert.Equal(t, "m-1", got.ManuscriptID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_RedeliversOnHandlerError(t *testing.T) {
	bus := newTestBus(t)

	var calls atomic.Int32

	done := make(chan struct{})

	require.NoError(t, bus.Handle(events.ReviewSubmittedEvent, func(context.Context, events.Event) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}

		close(done)

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))
	require.NoError(t, bus.Publish(ctx, "m-1", events.ReviewSubmitted{ReviewerID: "r1"}))

	select {
	case <-done:
		assert.Equal(t, int32(2), calls.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("event not redelivered")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
