package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-studio-backend/internal/domain"
)

func TestClients_GetSearchAndPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := seedClient(t, db, "ada@example.com", "Ada", "Rossi")
	b := seedClient(t, db, "bea@example.com", "Bea", "Rossetti")
	seedClient(t, db, "carlo@example.com", "Carlo", "Bianchi")

	got, err := GetClient(ctx, db, a.ID)
	if err != nil || got.User.Email != "ada@example.com" {
		t.Fatalf("GetClient = %+v, %v", got, err)
	}
	if _, err := GetClient(ctx, db, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	found, err := SearchClients(ctx, db, "ross", 10)
	if err != nil || len(found) != 2 || found[0].ID != b.ID || found[1].ID != a.ID {
		t.Fatalf("SearchClients = %+v, %v", found, err)
	}

	byName, err := FindClientByGivenName(ctx, db, "Carlo")
	if err != nil || byName.User.FamilyName != "Bianchi" {
		t.Fatalf("FindClientByGivenName = %+v, %v", byName, err)
	}

	n, err := CountClients(ctx, db)
	if err != nil || n != 3 {
		t.Fatalf("CountClients = %d, %v", n, err)
	}
	page, err := ListClientsPage(ctx, db, 2, 10)
	if err != nil || len(page) != 1 || page[0].User.GivenName != "Carlo" {
		t.Fatalf("ListClientsPage = %+v, %v", page, err)
	}
}

func TestEmployees_ListByRoleAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	code := 4242
	notary := seedEmployee(t, db, "n@example.com", domain.RoleNotary, &code)
	asst := seedEmployee(t, db, "a@example.com", domain.RoleAssistant, nil)

	all, err := ListEmployees(ctx, db, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("ListEmployees = %+v, %v", all, err)
	}
	notaries, err := ListEmployees(ctx, db, domain.RoleNotary)
	if err != nil || len(notaries) != 1 || notaries[0].ID != notary.ID || *notaries[0].NotaryCode != code {
		t.Fatalf("notaries = %+v, %v", notaries, err)
	}

	// The assistant is also registered as a client and owns a service.
	cl := &domain.Client{UserID: asst.UserID}
	if err := CreateClient(ctx, db, cl); err != nil {
		t.Fatalf("client for employee user: %v", err)
	}
	other := seedClient(t, db, "x@example.com", "X", "Y")
	s := seedService(t, db, other.ID, 1, domain.StatusCreated)
	if err := UpdateServiceFields(ctx, db, s.ID, map[string]any{"created_by_id": asst.ID}); err != nil {
		t.Fatalf("set creator: %v", err)
	}
	if err := AssignEmployee(ctx, db, s.ID, asst.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if err := DeleteEmployee(ctx, db, asst.ID); err != nil {
		t.Fatalf("DeleteEmployee: %v", err)
	}
	if _, err := GetEmployee(ctx, db, asst.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("employee still present: %v", err)
	}
	if _, err := GetUser(ctx, db, asst.UserID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("user still present: %v", err)
	}
	if _, err := GetClientByUser(ctx, db, asst.UserID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("client row still present: %v", err)
	}
	kept, err := GetService(ctx, db, s.ID)
	if err != nil || kept.CreatedByID != nil || len(kept.Employees) != 0 {
		t.Fatalf("service after employee removal = %+v, %v", kept, err)
	}

	if err := DeleteEmployee(ctx, db, asst.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestUsers_EmailAndPassword(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedClient(t, db, "ada@example.com", "Ada", "Rossi")

	u, err := GetUserByEmail(ctx, db, "ada@example.com")
	if err != nil || u.ID != c.UserID {
		t.Fatalf("GetUserByEmail = %+v, %v", u, err)
	}
	if err := UpdateUserPassword(ctx, db, u.ID, "new-hash"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	u, _ = GetUser(ctx, db, u.ID)
	if u.PasswordHash != "new-hash" {
		t.Fatalf("hash not updated")
	}
	if err := UpdateUserPassword(ctx, db, 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	dup := &domain.User{Email: "ada@example.com", GivenName: "A", FamilyName: "B", PasswordHash: "x", Role: domain.UserClient}
	if err := CreateUser(ctx, db, dup); !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestDocuments_LinkAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedClient(t, db, "ada@example.com", "Ada", "Rossi")
	s := seedService(t, db, c.ID, 1, domain.StatusCreated)

	d := &domain.Document{ClientID: c.ID, Filename: "id.pdf", Type: domain.DocIdentityCard, StorageKey: "clients/1/a-id.pdf", Size: 3}
	if err := CreateDocument(ctx, db, d); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := LinkDocument(ctx, db, s.ID, d.ID); err != nil {
			t.Fatalf("LinkDocument #%d: %v", i, err)
		}
	}
	byClient, err := ListDocumentsByClient(ctx, db, c.ID)
	if err != nil || len(byClient) != 1 {
		t.Fatalf("ListDocumentsByClient = %+v, %v", byClient, err)
	}
	bySvc, err := ListDocumentsByService(ctx, db, s.ID)
	if err != nil || len(bySvc) != 1 || bySvc[0].ID != d.ID {
		t.Fatalf("ListDocumentsByService = %+v, %v", bySvc, err)
	}
	if err := UpdateDocumentContent(ctx, db, d.ID, "id-v2.pdf", "application/pdf", 10); err != nil {
		t.Fatalf("UpdateDocumentContent: %v", err)
	}
	got, _ := GetDocument(ctx, db, d.ID)
	if got.Filename != "id-v2.pdf" || got.Size != 10 {
		t.Fatalf("document not updated: %+v", got)
	}
	if err := UpdateDocumentContent(ctx, db, 999, "x", "", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotaryCodeInUse(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	code := 77
	seedEmployee(t, db, "n@example.com", domain.RoleNotary, &code)

	if used, err := NotaryCodeInUse(ctx, db, 77); err != nil || !used {
		t.Fatalf("NotaryCodeInUse(77) = %v, %v", used, err)
	}
	if used, err := NotaryCodeInUse(ctx, db, 78); err != nil || used {
		t.Fatalf("NotaryCodeInUse(78) = %v, %v", used, err)
	}
}
