package dynamostore

import (
	"fmt"
	"time"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/model"
)

// Single-table layout. Items share one partition and sort by a fixed-width
// timestamp key so a Query walks them in occurrence order; the id-index GSI
// resolves direct lookups. Accounts live in their own partition keyed by
// email, which makes the uniqueness check a plain conditional put.
const (
	itemPartition    = "ITEM"
	accountPartition = "ACCOUNT"

	// idIndex is the GSI with hash key "id".
	idIndex = "id-index"
)

// itemSK builds the sort key for an item. Both timestamps are zero-padded
// unix nanoseconds so lexicographic order matches chronological order.
func itemSK(occurredAt, createdAt int64, id string) string {
	return fmt.Sprintf("TS#%020d#%020d#%s", occurredAt, createdAt, id)
}

func accountSK(email string) string {
	return "EMAIL#" + email
}

// itemRecord is the DynamoDB shape of a model.Item.
type itemRecord struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`

	ID          string `dynamodbav:"id"`
	Kind        string `dynamodbav:"kind"`
	Category    string `dynamodbav:"category"`
	Title       string `dynamodbav:"title"`
	Description string `dynamodbav:"description"`
	Location    string `dynamodbav:"item_location"`
	OccurredAt  int64  `dynamodbav:"occurred_at"`
	CreatedAt   int64  `dynamodbav:"created_at"`
	Status      string `dynamodbav:"item_status"`
	ReportedBy  string `dynamodbav:"reported_by"`
	ClaimedBy   string `dynamodbav:"claimed_by,omitempty"`
	ImageRef    string `dynamodbav:"image_ref,omitempty"`
}

func newItemRecord(item model.Item) itemRecord {
	occurred := item.OccurredAt.UnixNano()
	created := item.CreatedAt.UnixNano()
	return itemRecord{
		PK:          itemPartition,
		SK:          itemSK(occurred, created, item.ID),
		ID:          item.ID,
		Kind:        item.Kind,
		Category:    item.Category,
		Title:       item.Title,
		Description: item.Description,
		Location:    item.Location,
		OccurredAt:  occurred,
		CreatedAt:   created,
		Status:      item.Status,
		ReportedBy:  item.ReportedBy,
		ClaimedBy:   item.ClaimedBy,
		ImageRef:    item.ImageRef,
	}
}

func (r itemRecord) item() model.Item {
	return model.Item{
		ID:          r.ID,
		Kind:        r.Kind,
		Category:    r.Category,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		OccurredAt:  time.Unix(0, r.OccurredAt).UTC(),
		CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
		Status:      r.Status,
		ReportedBy:  r.ReportedBy,
		ClaimedBy:   r.ClaimedBy,
		ImageRef:    r.ImageRef,
	}
}

// anchorSK rebuilds the sort key a cursor points at.
func anchorSK(a *gateway.Anchor) string {
	return itemSK(a.OccurredAt, a.CreatedAt, a.ID)
}

// accountRecord is the DynamoDB shape of a model.Account.
type accountRecord struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`

	ID           string `dynamodbav:"id"`
	Email        string `dynamodbav:"email"`
	PasswordHash string `dynamodbav:"password_hash"`
	IsAdmin      bool   `dynamodbav:"is_admin"`
	CreatedAt    int64  `dynamodbav:"created_at"`
}

func newAccountRecord(a model.Account) accountRecord {
	return accountRecord{
		PK:           accountPartition,
		SK:           accountSK(a.Email),
		ID:           a.ID,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		IsAdmin:      a.IsAdmin,
		CreatedAt:    a.CreatedAt.UnixNano(),
	}
}

func (r accountRecord) account() *model.Account {
	return &model.Account{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		IsAdmin:      r.IsAdmin,
		CreatedAt:    time.Unix(0, r.CreatedAt).UTC(),
	}
}
