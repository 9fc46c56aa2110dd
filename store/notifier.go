package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"closetai/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ChangeNotifier fans out "outfits of this owner changed" signals. Signals carry no payload; listeners
// re-read the snapshot. Bursts may be coalesced into one signal.
type ChangeNotifier interface {
	Publish(ctx context.Context, ownerID uint) error
	Listen(ctx context.Context, ownerID uint) (<-chan struct{}, error)
}

func OutfitChannel(ownerID uint) string {
	return "outfits:" + strconv.FormatUint(uint64(ownerID), 10)
}

// LocalNotifier only reaches listeners in the same process.
type LocalNotifier struct {
	mu        sync.Mutex
	listeners map[uint]map[chan struct{}]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{listeners: map[uint]map[chan struct{}]struct{}{}}
}

func (n *LocalNotifier) Publish(ctx context.Context, ownerID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.listeners[ownerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *LocalNotifier) Listen(ctx context.Context, ownerID uint) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	if n.listeners[ownerID] == nil {
		n.listeners[ownerID] = map[chan struct{}]struct{}{}
	}
	n.listeners[ownerID][ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.listeners[ownerID], ch)
		if len(n.listeners[ownerID]) == 0 {
			delete(n.listeners, ownerID)
		}
		n.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// RedisNotifier uses redis pub/sub so the worker's writes reach API subscribers.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, ownerID uint) error {
	if err := n.client.Publish(ctx, OutfitChannel(ownerID), "changed").Err(); err != nil {
		return fmt.Errorf("publish outfit change: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Listen(ctx context.Context, ownerID uint) (<-chan struct{}, error) {
	sub := n.client.Subscribe(ctx, OutfitChannel(ownerID))
	// wait for the subscription confirmation so no publish after this call is missed
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe outfit changes: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// subscribe implements OutfitStore.Subscribe on top of a notifier and a snapshot reader.
func subscribe(
	ctx context.Context,
	notifier ChangeNotifier,
	ownerID uint,
	snapshot func(context.Context, uint) (*models.OutfitSnapshot, error),
) (<-chan models.OutfitSnapshot, error) {
	changes, err := notifier.Listen(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	first, err := snapshot(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := make(chan models.OutfitSnapshot, 1)
	out <- *first
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				snap, err := snapshot(ctx, ownerID)
				if err != nil {
					if ctx.Err() == nil {
						log.Ctx(ctx).Warn().Err(err).Uint("owner_id", ownerID).Msg("reload outfit snapshot")
					}
					continue
				}
				select {
				case out <- *snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func publish(ctx context.Context, notifier ChangeNotifier, ownerID uint) {
	if notifier == nil {
		return
	}
	if err := notifier.Publish(ctx, ownerID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Uint("owner_id", ownerID).Msg("outfit change not published")
	}
}
