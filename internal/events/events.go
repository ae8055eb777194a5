// Package events carries the notification-created signal from the writers
// of notifications to its consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	NotificationCreatedChannel = "notifications.created"
	NotificationCreatedStream  = "notifications.created.stream"

	streamMaxLen  = 10000
	streamBlock   = 2 * time.Second
	streamBatch   = 16
	payloadField  = "payload"
	retryInterval = time.Second
)

// NotificationCreated is published once per stored notification.
type NotificationCreated struct {
	NotificationID string `json:"notificationId"`
	RecipientID    string `json:"recipientId"`
	Type           string `json:"type"`
}

// Handler processes one event. Errors are logged by the bus.
type Handler func(ctx context.Context, ev NotificationCreated) error

type Bus interface {
	Publish(ctx context.Context, ev NotificationCreated) error
	// Subscribe runs h on every instance for each event until ctx is
	// cancelled.
	Subscribe(ctx context.Context, h Handler) error
	// Consume runs h for each event on exactly one of the instances that
	// consume with the same group.
	Consume(ctx context.Context, group string, h Handler) error
}

// RedisBus publishes every event twice: on a pub/sub channel for
// broadcast subscribers and on a stream read through consumer groups for
// work that must happen once. Delivery is at-most-once in both cases.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, ev NotificationCreated) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: NotificationCreatedStream,
		MaxLen: streamMaxLen,
		Values: map[string]any{payloadField: payload},
	}).Err(); err != nil {
		return err
	}
	return b.client.Publish(ctx, NotificationCreatedChannel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, h Handler) error {
	sub := b.client.Subscribe(ctx, NotificationCreatedChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if ev, ok := decode(msg.Payload); ok {
					run(ctx, h, ev)
				}
			}
		}
	}()
	return nil
}

// Consume joins group on the notification stream. The group is created
// at the stream's end, so only events published afterwards are read.
// Every entry is acknowledged after h returns, whatever the outcome.
func (b *RedisBus) Consume(ctx context.Context, group string, h Handler) error {
	err := b.client.XGroupCreateMkStream(ctx, NotificationCreatedStream, group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}

	consumer := uuid.NewString()
	log := logger.Log.WithField("group", group).WithField("consumer", consumer)
	go func() {
		for {
			streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumer,
				Streams:  []string{NotificationCreatedStream, ">"},
				Count:    streamBatch,
				Block:    streamBlock,
			}).Result()
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				log.WithError(err).Warn("Reading notification stream failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(retryInterval):
				}
				continue
			}

			for _, s := range streams {
				for _, msg := range s.Messages {
					raw, _ := msg.Values[payloadField].(string)
					if ev, ok := decode(raw); ok {
						run(ctx, h, ev)
					}
					if err := b.client.XAck(ctx, NotificationCreatedStream, group, msg.ID).Err(); err != nil {
						log.WithError(err).WithField("entry_id", msg.ID).Warn("Failed to acknowledge notification event")
					}
				}
			}
		}
	}()
	return nil
}

// LocalBus delivers events in-process. It is used when Redis is not
// configured and in tests. With a single instance Consume behaves like
// Subscribe.
type LocalBus struct {
	mu       sync.RWMutex
	handlers []Handler
	ctx      context.Context
	wg       sync.WaitGroup
}

func NewLocalBus() *LocalBus {
	return &LocalBus{ctx: context.Background()}
}

// Publish hands ev to every subscriber on its own goroutine, so the
// publisher never waits on email delivery.
func (b *LocalBus) Publish(_ context.Context, ev NotificationCreated) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			run(b.ctx, h, ev)
		}(h)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctx = context.WithoutCancel(ctx)
	b.handlers = append(b.handlers, h)
	return nil
}

func (b *LocalBus) Consume(ctx context.Context, _ string, h Handler) error {
	return b.Subscribe(ctx, h)
}

// Wait blocks until every delivered event has been handled.
func (b *LocalBus) Wait() {
	b.wg.Wait()
}

func decode(payload string) (NotificationCreated, bool) {
	var ev NotificationCreated
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		logger.Log.WithError(err).Warn("Dropping malformed notification event")
		return ev, false
	}
	return ev, true
}

func run(ctx context.Context, h Handler, ev NotificationCreated) {
	if err := h(ctx, ev); err != nil {
		logger.Log.WithError(err).WithField("notification_id", ev.NotificationID).
			Error("Notification event handler failed")
	}
}
