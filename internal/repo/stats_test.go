package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-studio-backend/internal/domain"
)

func TestServicesStats_CountError_NoTable(t *testing.T) {
	db := newBareDB(t)
	if _, _, err := ServicesStats(context.Background(), db, ServiceFilter{}); err == nil {
		t.Fatalf("expected error due to missing services table")
	}
}

func TestServicesStats_ZeroRows(t *testing.T) {
	db := newTestDB(t)
	count, maxAt, err := ServicesStats(context.Background(), db, ServiceFilter{})
	if err != nil {
		t.Fatalf("ServicesStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestServicesStats_FilterAndMax(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c1 := seedClient(t, db, "a@example.com", "Ada", "Rossi")
	c2 := seedClient(t, db, "b@example.com", "Bea", "Verdi")

	s1 := seedService(t, db, c1.ID, 1, domain.StatusCreated)
	s2 := seedService(t, db, c1.ID, 2, domain.StatusCreated)
	s3 := seedService(t, db, c2.ID, 1, domain.StatusCreated)

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max for c1
	t3 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)   // other client
	for id, ts := range map[uint]time.Time{s1.ID: t1, s2.ID: t2, s3.ID: t3} {
		if err := db.Exec("UPDATE services SET updated_at = ? WHERE id = ?", ts, id).Error; err != nil {
			t.Fatalf("set updated_at: %v", err)
		}
	}

	count, maxAt, err := ServicesStats(ctx, db, ServiceFilter{ClientID: &c1.ID})
	if err != nil {
		t.Fatalf("ServicesStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected max %v, got %v", t2, maxAt)
	}
}

func TestServiceStatusCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c1 := seedClient(t, db, "a@example.com", "Ada", "Rossi")
	c2 := seedClient(t, db, "b@example.com", "Bea", "Verdi")

	seedService(t, db, c1.ID, 1, domain.StatusCreated)
	seedService(t, db, c1.ID, 2, domain.StatusCreated)
	seedService(t, db, c1.ID, 3, domain.StatusApproved)
	gone := seedService(t, db, c1.ID, 4, domain.StatusApproved)
	seedService(t, db, c2.ID, 1, domain.StatusInProgress)
	if err := SetServiceFlag(ctx, db, gone.ID, "soft_deleted", true); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	got, err := ServiceStatusCounts(ctx, db, ServiceFilter{ClientID: &c1.ID})
	if err != nil {
		t.Fatalf("ServiceStatusCounts: %v", err)
	}
	want := map[domain.ServiceStatus]int64{domain.StatusCreated: 2, domain.StatusApproved: 1}
	if len(got) != len(want) || got[domain.StatusCreated] != 2 || got[domain.StatusApproved] != 1 {
		t.Fatalf("client counts = %v, want %v", got, want)
	}

	all, err := ServiceStatusCounts(ctx, db, ServiceFilter{Deleted: IncludeDeleted})
	if err != nil {
		t.Fatalf("ServiceStatusCounts(all): %v", err)
	}
	if all[domain.StatusApproved] != 2 || all[domain.StatusInProgress] != 1 {
		t.Fatalf("all counts = %v", all)
	}
}
