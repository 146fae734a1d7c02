// Package workflow enforces the item lifecycle: who may claim an item and
// which status transitions are legal, independent of how persistence is
// performed. The gateway's conditional update is the authoritative
// check-and-set; everything here re-reads stored state rather than trusting
// a cached view.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/model"
)

var (
	// ErrIneligibleClaim is returned for self-claims and claims on items that
	// are no longer unclaimed, including the loser of a concurrent claim race.
	ErrIneligibleClaim = errors.New("item cannot be claimed")

	// ErrUnauthorized is returned when a moderation action is attempted
	// without the admin capability.
	ErrUnauthorized = errors.New("administrator access required")
)

// Workflow executes lifecycle transitions through a gateway.
type Workflow struct {
	gw gateway.Gateway
}

// New creates a workflow backed by the given gateway.
func New(gw gateway.Gateway) *Workflow {
	return &Workflow{gw: gw}
}

// CanClaim reports whether acting user may claim the item. It only gates UI
// affordances; Claim re-validates against stored state.
func CanClaim(item *model.Item, actor *model.Session) bool {
	if item == nil || actor == nil {
		return false
	}
	return item.Status == model.StatusUnclaimed && actor.Identity() != item.ReportedBy
}

// Claim transitions an item from unclaimed to claimed on behalf of the
// acting user. Eligibility is re-checked against the latest stored item, and
// the status transition itself is a conditional update, so of two concurrent
// claims exactly one succeeds and the other fails with ErrIneligibleClaim.
func (w *Workflow) Claim(ctx context.Context, itemID string, actor *model.Session) (*model.Item, error) {
	if actor == nil {
		return nil, fmt.Errorf("claiming item: %w", ErrIneligibleClaim)
	}

	item, err := w.gw.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if actor.Identity() == item.ReportedBy {
		return nil, fmt.Errorf("item %s was reported by the claimant: %w", itemID, ErrIneligibleClaim)
	}
	if item.Status != model.StatusUnclaimed {
		return nil, fmt.Errorf("item %s is %s: %w", itemID, item.Status, ErrIneligibleClaim)
	}

	claimed := model.StatusClaimed
	claimant := actor.Identity()
	err = w.gw.UpdateItem(ctx, itemID,
		gateway.ItemPatch{Status: &claimed, ClaimedBy: &claimant},
		&gateway.Precondition{Status: model.StatusUnclaimed},
	)
	if errors.Is(err, gateway.ErrPreconditionFailed) {
		// Lost the race; the caller re-renders from the corrected server
		// state instead of its optimistic copy.
		return nil, fmt.Errorf("item %s: %w", itemID, errors.Join(ErrIneligibleClaim, err))
	}
	if err != nil {
		return nil, err
	}

	return w.gw.GetItem(ctx, itemID)
}

// Resolve archives a claimed item. Admin only. Resolving an item that is not
// claimed (including one already archived) fails with
// gateway.ErrPreconditionFailed.
func (w *Workflow) Resolve(ctx context.Context, itemID string, actor *model.Session) (*model.Item, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	archived := model.StatusArchived
	err := w.gw.UpdateItem(ctx, itemID,
		gateway.ItemPatch{Status: &archived},
		&gateway.Precondition{Status: model.StatusClaimed},
	)
	if err != nil {
		return nil, err
	}
	return w.gw.GetItem(ctx, itemID)
}

// Unresolve is the deliberate admin exception returning a claimed item to
// unclaimed, clearing its claimant. Archived items never come back.
func (w *Workflow) Unresolve(ctx context.Context, itemID string, actor *model.Session) (*model.Item, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	unclaimed := model.StatusUnclaimed
	none := ""
	err := w.gw.UpdateItem(ctx, itemID,
		gateway.ItemPatch{Status: &unclaimed, ClaimedBy: &none},
		&gateway.Precondition{Status: model.StatusClaimed},
	)
	if err != nil {
		return nil, err
	}
	return w.gw.GetItem(ctx, itemID)
}

// Delete removes an item permanently. Admin only.
func (w *Workflow) Delete(ctx context.Context, itemID string, actor *model.Session) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return w.gw.DeleteItem(ctx, itemID)
}

func requireAdmin(actor *model.Session) error {
	if actor == nil || !actor.IsAdmin {
		return ErrUnauthorized
	}
	return nil
}
