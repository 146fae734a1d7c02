// Package catalog presents a filtered, sorted, paginated view of the item
// set. The engine re-applies the full visibility predicate over whatever
// snapshot it holds, so backend filter hints only ever narrow the fetch,
// never decide visibility.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/model"
	"github.com/unifound/unifound/internal/workflow"
)

// Dimension names a filter axis.
type Dimension string

// Filter dimensions.
const (
	DimensionKind     Dimension = "kind"
	DimensionCategory Dimension = "category"
	DimensionStatus   Dimension = "status"
)

// All is the sentinel filter value matching every item.
const All = "all"

// DefaultPageSize matches the grid the listing view renders.
const DefaultPageSize = 12

// Lister is the slice of the gateway the engine needs for page fetches.
type Lister interface {
	ListPage(ctx context.Context, q gateway.ItemQuery) (gateway.Page, error)
}

// State is the engine's transient view state. It round-trips through the API
// page token so a stateless caller can continue paginating.
type State struct {
	Kind     string           `json:"kind"`
	Category string           `json:"category"`
	Status   string           `json:"status"`
	Query    string           `json:"query,omitempty"`
	Sort     string           `json:"sort"`
	Page     int              `json:"page"`
	Cursors  []gateway.Cursor `json:"cursors,omitempty"`
	HasMore  bool             `json:"has_more"`
}

// NewState returns the view state a freshly opened listing starts from.
func NewState() State {
	return State{Kind: All, Category: All, Status: All, Sort: gateway.SortNewest, Page: 1}
}

// Entry is one visible item with its per-viewer affordances.
type Entry struct {
	model.Item
	Claimable bool `json:"claimable"`
	Editable  bool `json:"editable"`
}

// Engine holds one view's item snapshot and filter/sort/pagination state.
type Engine struct {
	mu       sync.Mutex
	lister   Lister
	pageSize int
	state    State
	items    []model.Item
	degraded bool
}

// New creates an engine with fresh view state.
func New(lister Lister) *Engine {
	return Resume(lister, NewState())
}

// Resume creates an engine continuing from previously exported state.
func Resume(lister Lister, state State) *Engine {
	if state.Page < 1 {
		state.Page = 1
	}
	if state.Sort == "" {
		state.Sort = gateway.SortNewest
	}
	return &Engine{lister: lister, pageSize: DefaultPageSize, state: state}
}

// SetPageSize overrides the page size. Only meaningful before the first fetch.
func (e *Engine) SetPageSize(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > 0 {
		e.pageSize = n
	}
}

// State exports the current view state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.Cursors = append([]gateway.Cursor(nil), e.state.Cursors...)
	return s
}

// SetFilter sets one filter dimension to a concrete value or All. An unknown
// dimension is a programming error and panics. Changing a filter invalidates
// the cursor stack and resets to page 1.
func (e *Engine) SetFilter(dim Dimension, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch dim {
	case DimensionKind:
		e.state.Kind = value
	case DimensionCategory:
		e.state.Category = value
	case DimensionStatus:
		e.state.Status = value
	default:
		panic(fmt.Sprintf("catalog: unknown filter dimension %q", dim))
	}
	e.resetPagination()
}

// SetSearch sets the free-text query. Matching is a case-insensitive
// substring check against title and description.
func (e *Engine) SetSearch(query string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Query = query
}

// SetSort sets the sort order and resets pagination.
func (e *Engine) SetSort(order string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if order != gateway.SortNewest && order != gateway.SortOldest {
		panic(fmt.Sprintf("catalog: unknown sort order %q", order))
	}
	if e.state.Sort != order {
		e.state.Sort = order
		e.resetPagination()
	}
}

func (e *Engine) resetPagination() {
	e.state.Page = 1
	e.state.Cursors = nil
	e.state.HasMore = false
}

// Refresh fetches the current page from the gateway and replaces the held
// snapshot. On failure the previous snapshot stays visible and the view is
// marked degraded.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	q := gateway.ItemQuery{
		Kind:     hint(e.state.Kind),
		Category: hint(e.state.Category),
		Status:   hint(e.state.Status),
		Sort:     e.state.Sort,
		PageSize: e.pageSize,
	}
	if e.state.Page > 1 {
		// A resumed state can carry a page number its cursor stack cannot
		// anchor; fall back to page 1 instead of guessing.
		if len(e.state.Cursors) < e.state.Page-1 {
			e.resetPagination()
		} else {
			q.After = e.state.Cursors[e.state.Page-2]
		}
	}
	e.mu.Unlock()

	page, err := e.lister.ListPage(ctx, q)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.degraded = true
		return fmt.Errorf("refreshing catalog: %w", err)
	}

	e.items = page.Items
	e.degraded = false
	e.state.HasMore = page.HasMore

	// Record the boundary of this page so NextPage can anchor on it.
	e.advanceCursor(page.Next)
	return nil
}

// advanceCursor stores the fetched page's trailing cursor at the stack slot
// for the page after the current one. Called with e.mu held.
func (e *Engine) advanceCursor(next gateway.Cursor) {
	if next == "" {
		return
	}
	slot := e.state.Page - 1
	if slot < len(e.state.Cursors) {
		e.state.Cursors[slot] = next
		return
	}
	e.state.Cursors = append(e.state.Cursors, next)
}

// NextPage advances the pagination cursor and fetches the next page. It is a
// no-op when the last fetch returned a short page.
func (e *Engine) NextPage(ctx context.Context) error {
	e.mu.Lock()
	if !e.state.HasMore || len(e.state.Cursors) < e.state.Page {
		e.mu.Unlock()
		return nil
	}
	e.state.Page++
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// PrevPage replays the previously recorded page boundary. It never goes
// before page 1.
func (e *Engine) PrevPage(ctx context.Context) error {
	e.mu.Lock()
	if e.state.Page <= 1 {
		e.mu.Unlock()
		return nil
	}
	e.state.Page--
	// Drop boundaries past the one anchoring the page after the new current
	// page; they will be re-recorded on the way forward.
	if len(e.state.Cursors) > e.state.Page {
		e.state.Cursors = e.state.Cursors[:e.state.Page]
	}
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// Page returns the 1-based current page number.
func (e *Engine) Page() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Page
}

// HasMore reports whether the last fetch filled a whole page.
func (e *Engine) HasMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.HasMore
}

// Degraded reports whether the view is serving a stale snapshot after a
// fetch or subscription failure.
func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// ApplySnapshot merges one change-stream notification: the full item set for
// one kind replaces that kind's slice of the snapshot. A degraded
// notification keeps the last known-good data and only flips the indicator.
func (e *Engine) ApplySnapshot(snap gateway.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if snap.Err != nil {
		e.degraded = true
		return
	}

	merged := make([]model.Item, 0, len(e.items)+len(snap.Items))
	for _, item := range e.items {
		if item.Kind != snap.Kind {
			merged = append(merged, item)
		}
	}
	merged = append(merged, snap.Items...)
	e.items = merged
	e.degraded = false
}

// Follow consumes a subscription in the background until it closes.
func (e *Engine) Follow(sub *gateway.Subscription) {
	go func() {
		for snap := range sub.C {
			e.ApplySnapshot(snap)
		}
	}()
}

// List produces the visible entries: the held snapshot filtered by the three
// dimensions and the search query, sorted, with per-viewer affordances. It
// has no side effects.
func (e *Engine) List(viewer *model.Session) []Entry {
	e.mu.Lock()
	state := e.state
	items := append([]model.Item(nil), e.items...)
	e.mu.Unlock()

	visible := items[:0]
	for _, item := range items {
		if Visible(item, state) {
			visible = append(visible, item)
		}
	}

	sortItems(visible, state.Sort)

	entries := make([]Entry, len(visible))
	for i, item := range visible {
		entries[i] = Entry{
			Item:      item,
			Claimable: workflow.CanClaim(&item, viewer),
			Editable:  viewer != nil && (viewer.IsAdmin || viewer.Identity() == item.ReportedBy),
		}
	}
	return entries
}

// Visible applies the combined filter predicate. The dimensions are
// independent, so the order they were set in never changes the result.
func Visible(item model.Item, s State) bool {
	if !matches(s.Kind, item.Kind) {
		return false
	}
	if !matches(s.Category, item.Category) {
		return false
	}
	if !matches(s.Status, item.Status) {
		return false
	}
	if s.Query == "" {
		return true
	}
	q := strings.ToLower(s.Query)
	return strings.Contains(strings.ToLower(item.Title), q) ||
		strings.Contains(strings.ToLower(item.Description), q)
}

func matches(filter, value string) bool {
	return filter == "" || filter == All || filter == value
}

func hint(filter string) string {
	if filter == All {
		return ""
	}
	return filter
}

// sortItems orders by occurrence time with creation time and id as
// tiebreaks. Newest keeps the most recently created item first on ties.
func sortItems(items []model.Item, order string) {
	newest := order != gateway.SortOldest
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			if newest {
				return a.OccurredAt.After(b.OccurredAt)
			}
			return a.OccurredAt.Before(b.OccurredAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if newest {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if newest {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}
