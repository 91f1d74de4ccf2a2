// Package notify fans out pending-card set changes so the admin console can
// refresh its live view without polling. Delivery is advisory: a lost
// notification costs a delayed refresh, never correctness.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Change describes a mutation of the pending-card set.
type Change struct {
	Kind     string `json:"kind"` // created, refreshed, removed
	UID      string `json:"uid"`
	DeviceID string `json:"device_id,omitempty"`
}

// Notifier is the abstraction over different backends.
type Notifier interface {
	PublishCardChange(ctx context.Context, change Change) error
	Subscribe(ctx context.Context) (<-chan Change, error)
}

// InMemory is a minimal channel-backed notifier for dev/testing.
type InMemory struct {
	mu   sync.Mutex
	subs []chan Change
}

// NewInMemory creates an in-memory notifier.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// PublishCardChange delivers the change to all subscribers without blocking;
// slow subscribers drop notifications.
func (n *InMemory) PublishCardChange(_ context.Context, change Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs {
		select {
		case sub <- change:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of future changes.
func (n *InMemory) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, 16)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	go func() {
		<-ctx.Done()
		n.mu.Lock()
		for i, sub := range n.subs {
			if sub == ch {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				break
			}
		}
		n.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// RedisNotifier publishes changes on a redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier builds a notifier on the given pub/sub channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "taptrack:pending-cards"
	}
	return &RedisNotifier{client: client, channel: channel}
}

// PublishCardChange sends the change as JSON.
func (n *RedisNotifier) PublishCardChange(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// Subscribe streams changes until the context is canceled.
func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan Change, error) {
	sub := n.client.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, err
	}
	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					continue
				}
				out <- change
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
