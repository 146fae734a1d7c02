package report

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/gateway/sqlitestore"
	"github.com/unifound/unifound/internal/model"
)

var reporter = &model.Session{UserID: "u1", Email: "finder@uni.edu"}

func validDraft() Draft {
	return Draft{
		Kind:        model.KindFound,
		Category:    "Accessories",
		Title:       "Blue Wallet",
		Description: "Blue leather wallet",
		Location:    "Library",
		OccurredAt:  "2024-03-15",
	}
}

func fieldNames(t *testing.T, err error) map[string]bool {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	names := make(map[string]bool, len(verr.Fields))
	for _, f := range verr.Fields {
		names[f.Field] = true
	}
	return names
}

func TestValidate(t *testing.T) {
	e := New(sqlitestore.NewTestStore(t))

	payload, err := e.Validate(validDraft())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if payload.Title != "Blue Wallet" || payload.Kind != model.KindFound {
		t.Errorf("unexpected payload: %+v", payload)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !payload.OccurredAt.Equal(want) {
		t.Errorf("expected occurred at %v, got %v", want, payload.OccurredAt)
	}
}

func TestValidateTrimsWhitespace(t *testing.T) {
	e := New(sqlitestore.NewTestStore(t))

	d := validDraft()
	d.Title = "  Blue Wallet  "
	d.Location = "\tLibrary\n"

	payload, err := e.Validate(d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if payload.Title != "Blue Wallet" || payload.Location != "Library" {
		t.Errorf("whitespace not trimmed: %+v", payload)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	e := New(sqlitestore.NewTestStore(t))

	d := Draft{
		Kind:       "misplaced",
		Category:   "Gadgets",
		Title:      "   ",
		OccurredAt: "not-a-date",
	}

	_, err := e.Validate(d)
	names := fieldNames(t, err)
	for _, want := range []string{"title", "description", "location", "kind", "category", "occurred_at"} {
		if !names[want] {
			t.Errorf("expected field error for %s, got %v", want, names)
		}
	}
}

func TestValidateFutureDate(t *testing.T) {
	e := New(sqlitestore.NewTestStore(t))
	e.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

	d := validDraft()
	d.OccurredAt = "2024-03-20"
	if _, err := e.Validate(d); !fieldNames(t, err)["occurred_at"] {
		t.Error("expected future date to be rejected")
	}

	// A date within the skew window still passes.
	d.OccurredAt = "2024-03-16"
	if _, err := e.Validate(d); err != nil {
		t.Errorf("next-day date should pass: %v", err)
	}
}

func TestValidateTimestampDate(t *testing.T) {
	e := New(sqlitestore.NewTestStore(t))

	d := validDraft()
	d.OccurredAt = "2024-03-15T09:30:00Z"
	payload, err := e.Validate(d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if payload.OccurredAt.Hour() != 9 {
		t.Errorf("expected timestamp to be preserved, got %v", payload.OccurredAt)
	}
}

func TestSubmit(t *testing.T) {
	store := sqlitestore.NewTestStore(t)
	e := New(store)
	ctx := context.Background()

	id, err := e.Submit(ctx, validDraft(), reporter)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	item, err := store.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.Status != model.StatusUnclaimed {
		t.Errorf("expected new item to be unclaimed, got %s", item.Status)
	}
	if item.ReportedBy != reporter.Email {
		t.Errorf("expected reporter %s, got %s", reporter.Email, item.ReportedBy)
	}
}

func TestSubmitInvalidDraft(t *testing.T) {
	e := New(sqlitestore.NewTestStore(t))

	d := validDraft()
	d.Title = ""
	if _, err := e.Submit(context.Background(), d, reporter); !fieldNames(t, err)["title"] {
		t.Error("expected validation error before any gateway call")
	}
}

func TestSubmitWithImage(t *testing.T) {
	store := sqlitestore.NewTestStore(t)
	e := New(store)
	ctx := context.Background()

	var buf bytes.Buffer
	jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10)), nil)

	d := validDraft()
	d.Image = buf.Bytes()
	d.ImageName = "wallet.jpg"

	id, err := e.Submit(ctx, d, reporter)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	item, err := store.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.ImageRef == "" {
		t.Error("expected image ref on item")
	}
	if data, mime, err := store.AssetData(ctx, item.ImageRef); err != nil || len(data) == 0 || mime != "image/jpeg" {
		t.Errorf("stored asset broken: %d bytes, %s, %v", len(data), mime, err)
	}
}

func TestSubmitBadImage(t *testing.T) {
	e := New(sqlitestore.NewTestStore(t))

	d := validDraft()
	d.Image = []byte("not an image")

	_, err := e.Submit(context.Background(), d, reporter)
	if !errors.Is(err, gateway.ErrUploadFailed) {
		t.Errorf("expected ErrUploadFailed, got %v", err)
	}
}
