package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/unifound/unifound/internal/model"
)

func TestCursorRoundTrip(t *testing.T) {
	item := model.Item{
		ID:         "01HV3E8ZJ4",
		OccurredAt: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		CreatedAt:  time.Date(2024, 3, 15, 11, 0, 0, 123, time.UTC),
	}

	anchor, err := DecodeCursor(EncodeCursor(item))
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if anchor.ID != item.ID {
		t.Errorf("expected id %q, got %q", item.ID, anchor.ID)
	}
	if anchor.OccurredAt != item.OccurredAt.UnixNano() || anchor.CreatedAt != item.CreatedAt.UnixNano() {
		t.Errorf("timestamps changed in round trip: %+v", anchor)
	}
}

func TestDecodeCursorEmpty(t *testing.T) {
	anchor, err := DecodeCursor("")
	if err != nil || anchor != nil {
		t.Errorf("expected nil anchor for empty cursor, got %v, %v", anchor, err)
	}
}

func TestDecodeCursorMalformed(t *testing.T) {
	for _, c := range []Cursor{"not/base64!", "bm90IGpzb24"} {
		if _, err := DecodeCursor(c); !errors.Is(err, ErrBadCursor) {
			t.Errorf("cursor %q: expected ErrBadCursor, got %v", c, err)
		}
	}
}
