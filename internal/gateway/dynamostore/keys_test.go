package dynamostore

import (
	"sort"
	"testing"
	"time"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/model"
)

func TestItemSKOrder(t *testing.T) {
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	keys := []string{
		itemSK(base.Add(2*time.Hour).UnixNano(), base.UnixNano(), "01A"),
		itemSK(base.UnixNano(), base.UnixNano(), "01B"),
		itemSK(base.UnixNano(), base.Add(time.Minute).UnixNano(), "01A"),
		itemSK(base.Add(48*time.Hour).UnixNano(), base.UnixNano(), "01A"),
	}

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	want := []string{keys[1], keys[2], keys[0], keys[3]}
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("lexicographic order diverges from chronological at %d:\n%v", i, sorted)
		}
	}
}

func TestItemRecordRoundTrip(t *testing.T) {
	item := model.Item{
		ID:          "01HQXK",
		Kind:        model.KindFound,
		Category:    "Accessories",
		Title:       "Blue Wallet",
		Description: "Blue leather wallet",
		Location:    "Library",
		OccurredAt:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:   time.Date(2024, 3, 16, 9, 30, 0, 0, time.UTC),
		Status:      model.StatusClaimed,
		ReportedBy:  "finder@uni.edu",
		ClaimedBy:   "owner@uni.edu",
		ImageRef:    "items/1_wallet.jpg",
	}

	rec := newItemRecord(item)
	if rec.PK != itemPartition {
		t.Errorf("unexpected PK %q", rec.PK)
	}
	if got := rec.item(); got != item {
		t.Errorf("round trip changed item:\ngot  %+v\nwant %+v", got, item)
	}
}

func TestAnchorSKMatchesRecord(t *testing.T) {
	item := model.Item{
		ID:         "01HQXK",
		OccurredAt: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:  time.Date(2024, 3, 16, 9, 30, 0, 0, time.UTC),
	}

	anchor, err := gateway.DecodeCursor(gateway.EncodeCursor(item))
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if got, want := anchorSK(anchor), newItemRecord(item).SK; got != want {
		t.Errorf("cursor does not resume at the item's key:\ngot  %s\nwant %s", got, want)
	}
}

func TestAccountRecordRoundTrip(t *testing.T) {
	account := model.Account{
		ID:           "01HQXM",
		Email:        "admin@uni.edu",
		PasswordHash: "$2a$10$abc",
		IsAdmin:      true,
		CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	rec := newAccountRecord(account)
	if rec.SK != "EMAIL#admin@uni.edu" {
		t.Errorf("unexpected SK %q", rec.SK)
	}
	if got := rec.account(); *got != account {
		t.Errorf("round trip changed account:\ngot  %+v\nwant %+v", got, account)
	}
}

func TestFingerprint(t *testing.T) {
	a := []model.Item{{ID: "1", Status: model.StatusUnclaimed}}
	b := []model.Item{{ID: "1", Status: model.StatusClaimed}}

	if fingerprint(a) == fingerprint(b) {
		t.Error("status change should alter the fingerprint")
	}
	if fingerprint(a) != fingerprint([]model.Item{{ID: "1", Status: model.StatusUnclaimed}}) {
		t.Error("identical sets should share a fingerprint")
	}
}
