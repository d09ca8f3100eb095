package domain

import (
	"testing"
	"time"
)

func TestIdempotency_InsertAndUniqueKey(t *testing.T) {
	db := newDomainDB(t)

	now := time.Now().UTC()
	rec := &Idempotency{
		ID:         "11111111-1111-4111-8111-111111111111",
		UserID:     "u1",
		Scope:      "services.create",
		Key:        "k1",
		ResourceID: "42",
		Status:     201,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", rec.ID).Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.ResourceID != "42" || got.Scope != "services.create" || got.Status != 201 {
		t.Fatalf("unexpected row: %+v", got)
	}

	dup := *rec
	dup.ID = "22222222-2222-4222-8222-222222222222"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation on (user_id, scope, key)")
	}

	// Same key in another scope is a different request.
	other := *rec
	other.ID = "33333333-3333-4333-8333-333333333333"
	other.Scope = "documents.upload"
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("insert other scope: %v", err)
	}
}
