// Package report validates and assembles new lost/found submissions before
// handing them to the data-access gateway.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/imaging"
	"github.com/unifound/unifound/internal/model"
)

// ClockSkew is how far past "now" an occurrence date may lie before it is
// rejected. Reports carry day-granularity dates, so a generous window keeps
// same-day reports valid across timezones.
const ClockSkew = 24 * time.Hour

// Draft is a raw submission as it arrives from the form.
type Draft struct {
	Kind        string
	Category    string
	Title       string
	Description string
	Location    string
	OccurredAt  string
	Image       []byte
	ImageName   string
}

// FieldError describes one invalid draft field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries all field errors of a rejected draft.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "invalid submission: " + strings.Join(names, ", ")
}

// Engine validates drafts and submits them through a gateway. It has no side
// effects of its own.
type Engine struct {
	gw gateway.Gateway

	// now is swappable in tests.
	now func() time.Time
}

// New creates a submission engine backed by the given gateway.
func New(gw gateway.Gateway) *Engine {
	return &Engine{gw: gw, now: time.Now}
}

// Validate normalizes a draft into a creation payload or returns a
// *ValidationError listing every invalid field. Validation never reaches the
// gateway.
func (e *Engine) Validate(d Draft) (*gateway.ItemPayload, error) {
	var fields []FieldError
	invalid := func(field, message string) {
		fields = append(fields, FieldError{Field: field, Message: message})
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		invalid("title", "title is required")
	}
	description := strings.TrimSpace(d.Description)
	if description == "" {
		invalid("description", "description is required")
	}
	location := strings.TrimSpace(d.Location)
	if location == "" {
		invalid("location", "location is required")
	}
	if !model.ValidKind(d.Kind) {
		invalid("kind", "kind must be lost or found")
	}
	if !model.ValidCategory(d.Category) {
		invalid("category", "unknown category")
	}

	occurredAt, err := parseDate(d.OccurredAt)
	if err != nil {
		invalid("occurred_at", "not a valid date")
	} else if occurredAt.After(e.now().Add(ClockSkew)) {
		invalid("occurred_at", "date is in the future")
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	return &gateway.ItemPayload{
		Kind:        d.Kind,
		Category:    d.Category,
		Title:       title,
		Description: description,
		Location:    location,
		OccurredAt:  occurredAt,
	}, nil
}

// Submit validates the draft, uploads the attached image if any, and creates
// the item record with status unclaimed on behalf of the acting user. The
// returned error distinguishes validation, upload, and persistence failures
// so the caller can render a targeted message.
func (e *Engine) Submit(ctx context.Context, d Draft, actor *model.Session) (string, error) {
	payload, err := e.Validate(d)
	if err != nil {
		return "", err
	}

	if len(d.Image) > 0 {
		processed, err := imaging.Process(bytes.NewReader(d.Image))
		if err != nil {
			return "", fmt.Errorf("processing image: %w", errors.Join(gateway.ErrUploadFailed, err))
		}
		ref, err := e.gw.UploadAsset(ctx, processed.Data, assetName(d.ImageName), processed.MIME)
		if err != nil {
			return "", err
		}
		payload.ImageRef = ref
	}

	payload.ReportedBy = actor.Identity()
	return e.gw.CreateItem(ctx, *payload)
}

// parseDate accepts a plain date or a full timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// assetName keeps the uploaded filename but makes it collision-proof.
func assetName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "upload.jpg"
	}
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), name)
}
