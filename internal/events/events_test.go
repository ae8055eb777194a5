package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewLocalBus()

	var mu sync.Mutex
	var got []string
	record := func(prefix string) Handler {
		return func(_ context.Context, ev NotificationCreated) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, prefix+ev.NotificationID)
			return nil
		}
	}
	require.NoError(t, bus.Subscribe(context.Background(), record("a:")))
	require.NoError(t, bus.Subscribe(context.Background(), record("b:")))

	require.NoError(t, bus.Publish(context.Background(), NotificationCreated{NotificationID: "n1"}))
	bus.Wait()

	assert.ElementsMatch(t, []string{"a:n1", "b:n1"}, got)
}

func TestLocalBusHandlerErrorDoesNotReachPublisher(t *testing.T) {
	bus := NewLocalBus()
	require.NoError(t, bus.Subscribe(context.Background(), func(context.Context, NotificationCreated) error {
		return errors.New("smtp down")
	}))

	assert.NoError(t, bus.Publish(context.Background(), NotificationCreated{NotificationID: "n1"}))
	bus.Wait()
}

func TestLocalBusWithoutSubscribers(t *testing.T) {
	assert.NoError(t, NewLocalBus().Publish(context.Background(), NotificationCreated{}))
}

func TestLocalBusConsumeDeliversOnce(t *testing.T) {
	bus := NewLocalBus()

	var mu sync.Mutex
	calls := 0
	require.NoError(t, bus.Consume(context.Background(), "email-dispatch", func(context.Context, NotificationCreated) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), NotificationCreated{NotificationID: "n1"}))
	bus.Wait()

	assert.Equal(t, 1, calls)
}
