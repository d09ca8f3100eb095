package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-studio-backend/internal/domain"
)

func person(email, given, family string) PersonInput {
	return PersonInput{Email: email, GivenName: given, FamilyName: family, Password: "s3cret-pass"}
}

func TestRegisterClient(t *testing.T) {
	d := NewDirectoryService(newTestDB(t))
	ctx := context.Background()

	c, err := d.RegisterClient(ctx, person("  Ada@Example.com ", " Ada ", "Rossi"))
	if err != nil {
		t.Fatalf("RegisterClient: %v", err)
	}
	if c.User.Email != "ada@example.com" || c.User.GivenName != "Ada" || c.User.Role != domain.UserClient {
		t.Fatalf("user = %+v", c.User)
	}
	if c.User.PasswordHash == "" || c.User.PasswordHash == "s3cret-pass" {
		t.Fatal("password not hashed")
	}

	if _, err := d.RegisterClient(ctx, person("ADA@example.com", "Other", "Person")); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email: %v", err)
	}
	if _, err := d.RegisterClient(ctx, person("x@example.com", "", "Rossi")); !errors.Is(err, ErrInvalidPerson) {
		t.Fatalf("blank name: %v", err)
	}
	weak := person("y@example.com", "Y", "Z")
	weak.Password = "short"
	if _, err := d.RegisterClient(ctx, weak); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password: %v", err)
	}
}

func TestRegisterEmployee_Variants(t *testing.T) {
	d := NewDirectoryService(newTestDB(t))
	ctx := context.Background()

	n, err := d.RegisterEmployee(ctx, person("n@example.com", "Nora", "Bianchi"), "Notary", ptr(12345))
	if err != nil {
		t.Fatalf("notary: %v", err)
	}
	if !n.IsNotary() || n.User.Role != domain.UserNotary || *n.NotaryCode != 12345 {
		t.Fatalf("notary = %+v", n)
	}

	a, err := d.RegisterEmployee(ctx, person("a@example.com", "Aldo", "Conti"), "accountant", nil)
	if err != nil || a.Role != domain.RoleAccountant || a.User.Role != domain.UserEmployee {
		t.Fatalf("accountant = %+v, %v", a, err)
	}

	cases := []struct {
		name  string
		email string
		role  string
		code  *int
		want  error
	}{
		{"unknown role", "r@example.com", "janitor", nil, ErrInvalidRole},
		{"notary without code", "m@example.com", "notary", nil, domain.ErrNotaryCodeRequired},
		{"code on assistant", "s@example.com", "assistant", ptr(9), domain.ErrNotaryCodeNotAllowed},
		{"duplicate code", "d@example.com", "notary", ptr(12345), ErrNotaryCodeTaken},
		{"duplicate email", "n@example.com", "assistant", nil, ErrEmailTaken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.RegisterEmployee(ctx, person(tc.email, "G", "F"), tc.role, tc.code)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	all, _ := d.ListEmployees(ctx)
	notaries, _ := d.ListNotaries(ctx)
	if len(all) != 2 || len(notaries) != 1 || notaries[0].ID != n.ID {
		t.Fatalf("employees = %d, notaries = %d", len(all), len(notaries))
	}
}

func TestSearchAndFindClients(t *testing.T) {
	d := NewDirectoryService(newTestDB(t))
	ctx := context.Background()

	ada, _ := d.RegisterClient(ctx, person("ada@example.com", "Ada", "Rossi"))
	_, _ = d.RegisterClient(ctx, person("bruno@example.com", "Bruno", "Rossini"))
	_, _ = d.RegisterClient(ctx, person("carla@example.com", "Carla", "Verdi"))

	got, err := d.SearchClients(ctx, "ROSS")
	if err != nil || len(got) != 2 {
		t.Fatalf("search ROSS = %d, %v", len(got), err)
	}
	got, _ = d.SearchClients(ctx, "%")
	if len(got) != 0 {
		t.Fatalf("wildcard-only query matched %d", len(got))
	}
	got, _ = d.SearchClients(ctx, "   ")
	if got == nil || len(got) != 0 {
		t.Fatalf("blank query = %v", got)
	}

	c, err := d.FindClientByName(ctx, "Ada")
	if err != nil || c.ID != ada.ID {
		t.Fatalf("FindClientByName = %v, %v", c, err)
	}
	if _, err := d.FindClientByName(ctx, "Nobody"); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("missing name: %v", err)
	}
	if _, err := d.GetClient(ctx, 999); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("missing client: %v", err)
	}

	page, total, err := d.ListClients(ctx, 2, 2)
	if err != nil || total != 3 || len(page) != 1 {
		t.Fatalf("ListClients page 2 = %d of %d, %v", len(page), total, err)
	}
}

func TestDeleteEmployee_KeepsServices(t *testing.T) {
	db := newTestDB(t)
	d := NewDirectoryService(db)
	s, _ := newStudio(t, db)
	ctx := context.Background()

	e, err := d.RegisterEmployee(ctx, person("e@example.com", "Elio", "Ferri"), "assistant", nil)
	if err != nil {
		t.Fatalf("RegisterEmployee: %v", err)
	}
	id, err := d.EmployeeIDByUser(ctx, e.UserID)
	if err != nil || id != e.ID {
		t.Fatalf("EmployeeIDByUser = %d, %v", id, err)
	}

	c := seedClient(t, db, "Ada", "Rossi")
	svc := mustCreate(t, s, CreateServiceInput{ClientID: c.ID, CreatorEmployeeID: &e.ID})

	if err := d.DeleteEmployee(ctx, e.ID); err != nil {
		t.Fatalf("DeleteEmployee: %v", err)
	}
	if _, err := d.GetEmployee(ctx, e.ID); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("employee still present: %v", err)
	}
	got, err := s.Get(ctx, svc.ID)
	if err != nil {
		t.Fatalf("service removed with its creator: %v", err)
	}
	if got.CreatedByID != nil || len(got.Employees) != 0 {
		t.Fatalf("stale creator links: %+v", got)
	}
	if err := d.DeleteEmployee(ctx, e.ID); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("delete twice: %v", err)
	}
	if _, err := d.EmployeeIDByUser(ctx, e.UserID); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("lookup deleted: %v", err)
	}
}
