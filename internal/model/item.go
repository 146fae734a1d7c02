package model

import (
	"fmt"
	"time"
)

// Item represents a single lost or found report with its claim lifecycle.
type Item struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	OccurredAt  time.Time `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"`
	ReportedBy  string    `json:"reported_by"`
	ClaimedBy   string    `json:"claimed_by,omitempty"`
	ImageRef    string    `json:"image_ref,omitempty"`
}

// Report kinds.
const (
	KindLost  = "lost"
	KindFound = "found"
)

// Item statuses. Claiming moves unclaimed → claimed, an admin resolving the
// case moves claimed → archived. Archived is terminal.
const (
	StatusUnclaimed = "unclaimed"
	StatusClaimed   = "claimed"
	StatusArchived  = "archived"
)

// Categories is the closed set of item categories. Submissions with any other
// value are rejected.
var Categories = []string{
	"Electronics",
	"Documents",
	"Clothing",
	"Accessories",
	"Books",
	"Others",
}

// ValidKind reports whether k is a known report kind.
func ValidKind(k string) bool {
	return k == KindLost || k == KindFound
}

// ValidStatus reports whether s is a known item status.
func ValidStatus(s string) bool {
	return s == StatusUnclaimed || s == StatusClaimed || s == StatusArchived
}

// ValidCategory reports whether c is in the fixed category set.
func ValidCategory(c string) bool {
	for _, cat := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Check verifies the item's structural invariants. Records coming back from a
// storage backend pass through here so a bad write can never leak into the
// catalog unnoticed.
func (i *Item) Check() error {
	if !ValidKind(i.Kind) {
		return fmt.Errorf("item %s: invalid kind %q", i.ID, i.Kind)
	}
	if !ValidCategory(i.Category) {
		return fmt.Errorf("item %s: invalid category %q", i.ID, i.Category)
	}
	if !ValidStatus(i.Status) {
		return fmt.Errorf("item %s: invalid status %q", i.ID, i.Status)
	}

	// claimed_by is set exactly when the item has been claimed (and kept once
	// the case is archived).
	claimed := i.Status == StatusClaimed || i.Status == StatusArchived
	if claimed && i.ClaimedBy == "" {
		return fmt.Errorf("item %s: status %q without claimant", i.ID, i.Status)
	}
	if !claimed && i.ClaimedBy != "" {
		return fmt.Errorf("item %s: unclaimed item has claimant %q", i.ID, i.ClaimedBy)
	}

	// Self-claims are forbidden.
	if i.ClaimedBy != "" && i.ClaimedBy == i.ReportedBy {
		return fmt.Errorf("item %s: reporter and claimant are the same identity", i.ID)
	}

	return nil
}
