package dynamostore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/model"
)

// Subscribe emulates a change stream by polling the item partition. DynamoDB
// streams need a Lambda consumer, which this process is not, so the poller
// re-reads the kind's items on an interval and only pushes when the set
// actually changed.
func (s *Store) Subscribe(ctx context.Context, kind string) (*gateway.Subscription, error) {
	if !model.ValidKind(kind) {
		return nil, fmt.Errorf("unknown kind %q: %w", kind, gateway.ErrSubscription)
	}
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan gateway.Snapshot, 1)
	go s.poll(ctx, kind, ch)
	return gateway.NewSubscription(ch, cancel), nil
}

// poll is the sole sender on ch, so closing it on cancellation is safe and
// lets a ranging consumer terminate.
func (s *Store) poll(ctx context.Context, kind string, ch chan gateway.Snapshot) {
	defer close(ch)
	ticker := time.NewTicker(s.pollEach)
	defer ticker.Stop()

	var last string
	deliver := func() {
		items, err := s.itemsByKind(ctx, kind)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			last = ""
			push(ch, gateway.Snapshot{Kind: kind, Err: err})
			return
		}
		fp := fingerprint(items)
		if fp == last {
			return
		}
		last = fp
		push(ch, gateway.Snapshot{Kind: kind, Items: items})
	}

	deliver()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deliver()
		}
	}
}

// push replaces any pending snapshot so a slow consumer always wakes up to
// the latest state.
func push(ch chan gateway.Snapshot, snap gateway.Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (s *Store) itemsByKind(ctx context.Context, kind string) ([]model.Item, error) {
	var items []model.Item
	q := gateway.ItemQuery{Kind: kind, Sort: gateway.SortOldest, PageSize: 500}
	for {
		page, err := s.ListPage(ctx, q)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if !page.HasMore {
			return items, nil
		}
		q.After = page.Next
	}
}

// fingerprint condenses an item set into a comparable digest.
func fingerprint(items []model.Item) string {
	raw, _ := json.Marshal(items)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
