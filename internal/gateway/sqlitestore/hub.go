package sqlitestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/model"
)

// snapshotFunc loads the current item set for one kind.
type snapshotFunc func(ctx context.Context, kind string) ([]model.Item, error)

// hub fans out per-kind item snapshots to subscribers after every write.
// SQLite has no server-side change stream, so the store itself is the event
// source: each mutation triggers a re-read and push.
type hub struct {
	load snapshotFunc

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	kind string
	ch   chan gateway.Snapshot
}

func newHub(load snapshotFunc) *hub {
	return &hub{load: load, subs: make(map[int]*subscriber)}
}

// Subscribe registers a listener for one report kind and immediately pushes
// the current snapshot. The stream ends when the context is cancelled or
// Unsubscribe is called.
func (s *Store) Subscribe(ctx context.Context, kind string) (*gateway.Subscription, error) {
	if !model.ValidKind(kind) {
		return nil, fmt.Errorf("unknown kind %q: %w", kind, gateway.ErrSubscription)
	}
	return s.hub.subscribe(ctx, kind)
}

func (h *hub) subscribe(ctx context.Context, kind string) (*gateway.Subscription, error) {
	sub := &subscriber{kind: kind, ch: make(chan gateway.Snapshot, 1)}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.ch)
		})
	}

	// Initial snapshot so the consumer never starts empty-handed.
	h.push(ctx, sub)

	// Navigating away cancels the context; tear down so no listener outlives
	// its view.
	go func() {
		<-ctx.Done()
		stop()
	}()

	return gateway.NewSubscription(sub.ch, stop), nil
}

// broadcast pushes a fresh snapshot of one kind to its subscribers.
func (h *hub) broadcast(ctx context.Context, kind string) {
	h.mu.Lock()
	var targets []*subscriber
	for _, sub := range h.subs {
		if sub.kind == kind {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range targets {
		h.push(ctx, sub)
	}
}

// broadcastAll refreshes every subscriber. Used for mutations that do not
// know the item's kind without another read.
func (h *hub) broadcastAll(ctx context.Context) {
	h.broadcast(ctx, model.KindLost)
	h.broadcast(ctx, model.KindFound)
}

func (h *hub) push(ctx context.Context, sub *subscriber) {
	items, err := h.load(ctx, sub.kind)
	snap := gateway.Snapshot{Kind: sub.kind, Items: items}
	if err != nil {
		snap = gateway.Snapshot{Kind: sub.kind, Err: err}
	}

	// Replace a pending notification instead of queueing: subscribers only
	// ever need the latest full snapshot.
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- snap:
	default:
	}
}
