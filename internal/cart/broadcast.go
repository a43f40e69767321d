package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mercatolabs/cartsync/pkg/logger"
	redispkg "github.com/mercatolabs/cartsync/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

// Handler receives inbound broadcast messages. Handlers run on a goroutine
// owned by the broadcaster, never on the publisher's call stack.
type Handler func(Message)

// Broadcaster is the best-effort pub/sub channel carrying cart snapshots
// between execution contexts that share a storage key.
type Broadcaster interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context, handler Handler) (func(), error)
}

// LocalBroadcaster fans messages out to subscribers within one process. It
// gives several Store instances in the same binary the same convergence
// behavior peers get over the wire, and keeps tests hermetic.
type LocalBroadcaster struct {
	mu   sync.Mutex
	subs map[int]Handler
	next int
}

func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{subs: make(map[int]Handler)}
}

func (b *LocalBroadcaster) Publish(_ context.Context, msg Message) error {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	msg.Items = cloneItems(msg.Items)
	for _, h := range handlers {
		go h(msg)
	}
	return nil
}

func (b *LocalBroadcaster) Subscribe(_ context.Context, handler Handler) (func(), error) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = handler
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
	return cancel, nil
}

type redisPubSub interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channel string) (*goredis.PubSub, error)
	ChannelKey(storageKey string) string
}

// RedisBroadcaster carries cart snapshots over a redis pub/sub channel derived
// from the storage key, so every context sharing the key converges.
type RedisBroadcaster struct {
	client     redisPubSub
	storageKey string
	logg       *logger.Logger
}

func NewRedisBroadcaster(client *redispkg.Client, storageKey string, logg *logger.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, storageKey: storageKey, logg: logg}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.client.ChannelKey(b.storageKey), string(raw))
}

func (b *RedisBroadcaster) Subscribe(ctx context.Context, handler Handler) (func(), error) {
	sub, err := b.client.Subscribe(ctx, b.client.ChannelKey(b.storageKey))
	if err != nil {
		return nil, err
	}

	go func() {
		for raw := range sub.Channel() {
			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				if b.logg != nil {
					b.logg.Warn(ctx, "cart broadcast message malformed, skipping")
				}
				continue
			}
			handler(msg)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Close()
		})
	}
	return cancel, nil
}
