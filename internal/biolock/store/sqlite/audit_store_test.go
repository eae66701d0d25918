package sqlite_test

import (
	"context"
	"testing"
	"time"

	sqlitestore "github.com/adiprasetyo/biolock/internal/biolock/store/sqlite"
	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

func TestAccessEventStore_RecordAndRecent(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	as := sqlitestore.NewAccessEventStore(conn, w)

	base := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	identityID := int64(1)

	events := []types.AccessEvent{
		{IdentityID: &identityID, Method: types.MethodFingerprint, Timestamp: base, Success: true, Message: "template 7 resolved"},
		{IdentityID: &identityID, Method: types.MethodFace, Timestamp: base.Add(3 * time.Second), Success: true, Message: "match 0.72"},
		{Method: types.MethodFingerprint, Timestamp: base.Add(time.Minute), Success: false, Message: "unknown fingerprint"},
	}
	for i, ev := range events {
		if err := as.Record(context.Background(), ev); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	recent, err := as.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}

	// Newest first.
	if recent[0].Method != types.MethodFingerprint || recent[0].Success {
		t.Errorf("expected newest event to be the failed fingerprint, got %+v", recent[0])
	}
	if recent[0].IdentityID != nil {
		t.Error("expected nil identity for unknown fingerprint event")
	}
	if recent[1].Method != types.MethodFace {
		t.Errorf("expected second event method=face, got %q", recent[1].Method)
	}
	if recent[1].IdentityID == nil || *recent[1].IdentityID != identityID {
		t.Errorf("expected identity id %d, got %v", identityID, recent[1].IdentityID)
	}
	if !recent[1].Timestamp.Equal(base.Add(3 * time.Second)) {
		t.Errorf("timestamp not round-tripped: %v", recent[1].Timestamp)
	}
}

func TestUnknownCaptureStore_RecordAndRecent(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	us := sqlitestore.NewUnknownCaptureStore(conn, w)

	base := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	if err := us.Record(context.Background(), types.UnknownCapture{
		Timestamp: base,
		ImagePath: "data/unknown/unknown_20260215_120000.jpg",
		Note:      "unknown fingerprint",
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	recent, err := us.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 capture, got %d", len(recent))
	}
	if recent[0].ImagePath == "" || recent[0].Note != "unknown fingerprint" {
		t.Errorf("capture not round-tripped: %+v", recent[0])
	}
}

func TestUnknownCaptureStore_PruneOlderThan(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	us := sqlitestore.NewUnknownCaptureStore(conn, w)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := types.UnknownCapture{Timestamp: base, ImagePath: "data/unknown/old.jpg"}
	fresh := types.UnknownCapture{Timestamp: base.AddDate(0, 1, 0), ImagePath: "data/unknown/fresh.jpg"}
	for _, c := range []types.UnknownCapture{old, fresh} {
		if err := us.Record(context.Background(), c); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	removed, err := us.PruneOlderThan(context.Background(), base.AddDate(0, 0, 15))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if len(removed) != 1 || removed[0] != "data/unknown/old.jpg" {
		t.Fatalf("expected only the old image path, got %v", removed)
	}

	recent, err := us.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].ImagePath != "data/unknown/fresh.jpg" {
		t.Fatalf("expected only the fresh capture to survive, got %+v", recent)
	}
}
