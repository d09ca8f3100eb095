package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&User{}, &Client{}, &Employee{}, &Document{}, &Service{},
		&ClientCounter{}, &ServiceCodeSequence{}, &Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(User{}).TableName():                "users",
		(Client{}).TableName():              "clients",
		(Employee{}).TableName():            "employees",
		(Service{}).TableName():             "services",
		(Document{}).TableName():            "documents",
		(ClientCounter{}).TableName():       "client_counters",
		(ServiceCodeSequence{}).TableName(): "service_code_sequences",
		(Idempotency{}).TableName():         "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndJoinTables(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()

	for _, idx := range []string{"ux_services_client_seq", "ux_services_code"} {
		if !m.HasIndex(&Service{}, idx) {
			t.Fatalf("expected index %s on services", idx)
		}
	}
	if !m.HasIndex(&Idempotency{}, "ux_user_scope_key") {
		t.Fatalf("expected index ux_user_scope_key on idempotency")
	}
	for _, tbl := range []string{"employee_services", "service_documents"} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected join table %s", tbl)
		}
	}
}

func TestService_UniqueConstraints(t *testing.T) {
	db := newDomainDB(t)

	u := &User{Email: "a@example.com", GivenName: "Ada", FamilyName: "Rossi", PasswordHash: "x", Role: UserClient}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	c := &Client{UserID: u.ID}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}

	now := time.Now().UTC()
	first := &Service{ClientID: c.ID, SequenceCode: 1, ServiceCode: "SERV-000001", RequestedAt: now, Status: StatusCreated, Type: TypeDeed}
	if err := db.Omit("Client", "CreatedBy", "Employees", "Documents").Create(first).Error; err != nil {
		t.Fatalf("insert service: %v", err)
	}

	dupSeq := &Service{ClientID: c.ID, SequenceCode: 1, ServiceCode: "SERV-000002", RequestedAt: now, Status: StatusCreated, Type: TypeDeed}
	if err := db.Omit("Client", "CreatedBy", "Employees", "Documents").Create(dupSeq).Error; err == nil {
		t.Fatalf("expected (client_id, sequence_code) violation")
	}

	dupCode := &Service{ClientID: c.ID, SequenceCode: 2, ServiceCode: "SERV-000001", RequestedAt: now, Status: StatusCreated, Type: TypeDeed}
	if err := db.Omit("Client", "CreatedBy", "Employees", "Documents").Create(dupCode).Error; err == nil {
		t.Fatalf("expected service_code violation")
	}
}

func TestEmployee_Validate(t *testing.T) {
	code := 1234
	zero := 0
	cases := []struct {
		name string
		emp  Employee
		want error
	}{
		{"notary with code", Employee{Role: RoleNotary, NotaryCode: &code}, nil},
		{"notary without code", Employee{Role: RoleNotary}, ErrNotaryCodeRequired},
		{"notary with zero code", Employee{Role: RoleNotary, NotaryCode: &zero}, ErrNotaryCodeRequired},
		{"assistant", Employee{Role: RoleAssistant}, nil},
		{"accountant with code", Employee{Role: RoleAccountant, NotaryCode: &code}, ErrNotaryCodeNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.emp.Validate(); got != tc.want {
				t.Fatalf("Validate() = %v; want %v", got, tc.want)
			}
		})
	}
	if !(Employee{Role: RoleNotary}).IsNotary() || (Employee{Role: RoleEmployee}).IsNotary() {
		t.Fatalf("IsNotary mismatch")
	}
}
