package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-studio-backend/internal/domain"
)

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newBareDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newBareDB opens a private in-memory database without any tables.
func newBareDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedClient(t *testing.T, db *gorm.DB, email, given, family string) *domain.Client {
	t.Helper()
	u := &domain.User{Email: email, GivenName: given, FamilyName: family, PasswordHash: "x", Role: domain.UserClient}
	if err := CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	c := &domain.Client{UserID: u.ID}
	if err := CreateClient(context.Background(), db, c); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	c.User = *u
	return c
}

func seedEmployee(t *testing.T, db *gorm.DB, email string, role domain.EmployeeRole, code *int) *domain.Employee {
	t.Helper()
	ur := domain.UserEmployee
	if role == domain.RoleNotary {
		ur = domain.UserNotary
	}
	u := &domain.User{Email: email, GivenName: "E", FamilyName: email, PasswordHash: "x", Role: ur}
	if err := CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	e := &domain.Employee{UserID: u.ID, Role: role, NotaryCode: code}
	if err := CreateEmployee(context.Background(), db, e); err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	return e
}

func seedService(t *testing.T, db *gorm.DB, clientID uint, seq int64, status domain.ServiceStatus) *domain.Service {
	t.Helper()
	now := time.Now().UTC()
	due := now.AddDate(0, 3, 0)
	s := &domain.Service{
		ClientID:      clientID,
		SequenceCode:  seq,
		ServiceCode:   fmt.Sprintf("SERV-%06d", int64(clientID)*1000+seq),
		RequestedAt:   now,
		DeliveryDueAt: &due,
		Status:        status,
		Type:          domain.TypeDeed,
	}
	if err := CreateService(context.Background(), db, s); err != nil {
		t.Fatalf("seed service: %v", err)
	}
	return s
}
