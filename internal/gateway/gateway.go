// Package gateway defines the contract between the application core and the
// hosted backends that own persistence, change notifications, and asset
// storage. Two implementations exist: sqlitestore (local, also the test
// backend) and dynamostore (DynamoDB + S3).
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/unifound/unifound/internal/model"
)

// Failure classes. Implementations wrap these so callers can branch with
// errors.Is without caring which backend produced the failure.
var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrPersistenceFailed  = errors.New("persistence failed")
	ErrUploadFailed       = errors.New("asset upload failed")
	ErrSubscription       = errors.New("subscription error")
	ErrConflict           = errors.New("already exists")
	ErrBadCursor          = errors.New("malformed cursor")
)

// Sort orders for listings. Both compare by the reported occurrence time with
// the server-assigned creation time as tiebreak.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
)

// Cursor is an opaque page-boundary marker. Callers hold on to it to fetch
// the following page and must treat it as a black box; each backend encodes
// its own anchor format.
type Cursor string

// ItemQuery describes one page fetch. Empty (or "all") filter fields mean no
// constraint on that dimension; they are hints the backend may use to narrow
// the fetch, the catalog engine re-applies the full predicate regardless.
type ItemQuery struct {
	Kind     string
	Category string
	Status   string
	Sort     string
	PageSize int
	After    Cursor
}

// Page is one fetched slice of the item collection.
type Page struct {
	Items []model.Item
	// Next anchors the page after this one.
	Next Cursor
	// HasMore is false once the backend returned a short page.
	HasMore bool
}

// ItemPayload is a validated item-creation request. Status, id, and creation
// time are assigned by the backend.
type ItemPayload struct {
	Kind        string
	Category    string
	Title       string
	Description string
	Location    string
	OccurredAt  time.Time
	ReportedBy  string
	ImageRef    string
}

// ItemPatch is a partial update. Nil fields are left untouched; a pointer to
// the empty string clears the field.
type ItemPatch struct {
	Status    *string
	ClaimedBy *string
}

// Precondition makes an update atomically conditional: the patch applies only
// if the stored item still has the expected status, otherwise the backend
// fails with ErrPreconditionFailed. This is the single mechanism that decides
// concurrent claim races.
type Precondition struct {
	Status string
}

// Snapshot is one change-stream notification: the full current item set for
// one report kind. Err is set instead of Items when the stream degraded; the
// consumer keeps its previous snapshot in that case.
type Snapshot struct {
	Kind  string
	Items []model.Item
	Err   error
}

// Subscription is a live change stream for one report kind. Unsubscribe stops
// delivery and releases the backend resources; it is safe to call twice.
type Subscription struct {
	C    <-chan Snapshot
	stop func()
}

// NewSubscription wraps a snapshot channel and its teardown function.
func NewSubscription(c <-chan Snapshot, stop func()) *Subscription {
	return &Subscription{C: c, stop: stop}
}

// Unsubscribe cancels the stream.
func (s *Subscription) Unsubscribe() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

// Stats are the site-wide counters shown on the landing page and the admin
// dashboard.
type Stats struct {
	Lost     int `json:"lost"`
	Found    int `json:"found"`
	Archived int `json:"archived"`
	Items    int `json:"items"`
	Accounts int `json:"accounts"`
}

// Gateway is the full data-access surface the core depends on.
type Gateway interface {
	// CreateItem stores a new item with status unclaimed and a server-assigned
	// id and creation time, returning the id.
	CreateItem(ctx context.Context, payload ItemPayload) (string, error)

	// GetItem returns the stored item or ErrNotFound.
	GetItem(ctx context.Context, id string) (*model.Item, error)

	// ListPage fetches one page anchored at q.After.
	ListPage(ctx context.Context, q ItemQuery) (Page, error)

	// UpdateItem applies a patch, atomically conditional when pre is non-nil.
	UpdateItem(ctx context.Context, id string, patch ItemPatch, pre *Precondition) error

	// DeleteItem removes an item permanently.
	DeleteItem(ctx context.Context, id string) error

	// Subscribe opens a change stream of full per-kind snapshots.
	Subscribe(ctx context.Context, kind string) (*Subscription, error)

	// UploadAsset stores a binary asset and returns its reference.
	UploadAsset(ctx context.Context, data []byte, suggestedName, mime string) (string, error)

	// AssetURL resolves an asset reference to a fetchable URL.
	AssetURL(ctx context.Context, ref string) (string, error)

	// CreateAccount registers a login. Fails with ErrConflict if the email is
	// already taken.
	CreateAccount(ctx context.Context, email, passwordHash string, isAdmin bool) (*model.Account, error)

	// AccountByEmail returns the account or (nil, nil) if none exists.
	AccountByEmail(ctx context.Context, email string) (*model.Account, error)

	// Stats returns the site-wide counters.
	Stats(ctx context.Context) (Stats, error)
}

// AssetReader is implemented by backends that serve asset bytes through this
// process instead of a hosted object store.
type AssetReader interface {
	AssetData(ctx context.Context, ref string) (data []byte, mime string, err error)
}
