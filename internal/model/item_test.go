package model

import (
	"testing"
	"time"
)

func validItem() Item {
	return Item{
		ID:          "01HVX0000000000000000000AA",
		Kind:        KindFound,
		Category:    "Accessories",
		Title:       "Blue Wallet",
		Description: "Blue leather wallet",
		Location:    "Library",
		OccurredAt:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:   time.Now(),
		Status:      StatusUnclaimed,
		ReportedBy:  "a@campus.edu",
	}
}

func TestCheckValid(t *testing.T) {
	item := validItem()
	if err := item.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}

	item.Status = StatusClaimed
	item.ClaimedBy = "b@campus.edu"
	if err := item.Check(); err != nil {
		t.Fatalf("Check claimed: %v", err)
	}

	// Archived items keep their claimant.
	item.Status = StatusArchived
	if err := item.Check(); err != nil {
		t.Fatalf("Check archived: %v", err)
	}
}

func TestCheckClaimantIffClaimed(t *testing.T) {
	item := validItem()
	item.ClaimedBy = "b@campus.edu"
	if err := item.Check(); err == nil {
		t.Error("expected error for unclaimed item with claimant")
	}

	item = validItem()
	item.Status = StatusClaimed
	if err := item.Check(); err == nil {
		t.Error("expected error for claimed item without claimant")
	}
}

func TestCheckSelfClaim(t *testing.T) {
	item := validItem()
	item.Status = StatusClaimed
	item.ClaimedBy = item.ReportedBy
	if err := item.Check(); err == nil {
		t.Error("expected error for self-claim")
	}
}

func TestCheckEnums(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Item)
	}{
		{"unknown kind", func(i *Item) { i.Kind = "misplaced" }},
		{"unknown category", func(i *Item) { i.Category = "Gadgets" }},
		{"unknown status", func(i *Item) { i.Status = "pending" }},
	}

	for _, tt := range tests {
		item := validItem()
		tt.mutate(&item)
		if err := item.Check(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestValidCategory(t *testing.T) {
	for _, c := range Categories {
		if !ValidCategory(c) {
			t.Errorf("ValidCategory(%q) = false", c)
		}
	}
	for _, c := range []string{"", "electronics", "Other", "Misc"} {
		if ValidCategory(c) {
			t.Errorf("ValidCategory(%q) = true", c)
		}
	}
}
