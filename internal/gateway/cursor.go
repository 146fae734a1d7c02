package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/unifound/unifound/internal/model"
)

// Anchor is the decoded form of a page cursor. It pins the position of the
// last item of a page inside the (occurred_at, created_at, id) ordering, so
// a backend can resume after it regardless of concurrent writes.
type Anchor struct {
	OccurredAt int64  `json:"o"`
	CreatedAt  int64  `json:"c"`
	ID         string `json:"id"`
}

// EncodeCursor builds the cursor pointing just after item.
func EncodeCursor(item model.Item) Cursor {
	raw, _ := json.Marshal(Anchor{
		OccurredAt: item.OccurredAt.UnixNano(),
		CreatedAt:  item.CreatedAt.UnixNano(),
		ID:         item.ID,
	})
	return Cursor(base64.RawURLEncoding.EncodeToString(raw))
}

// DecodeCursor parses a cursor. An empty cursor decodes to nil, meaning
// "from the start". A cursor that does not parse fails with ErrBadCursor, a
// client error rather than a backend one.
func DecodeCursor(c Cursor) (*Anchor, error) {
	if c == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return nil, fmt.Errorf("decoding cursor: %w", errors.Join(ErrBadCursor, err))
	}
	var a Anchor
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decoding cursor: %w", errors.Join(ErrBadCursor, err))
	}
	return &a, nil
}
