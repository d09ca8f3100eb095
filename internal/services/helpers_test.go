package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/repo"
)

// ---------- test helpers ----------

var t0 = time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)

func newBareDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
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

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newBareDB(t)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newStudio(t *testing.T, db *gorm.DB) (*StudioService, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(t0)
	lg := zerolog.Nop()
	return NewStudioService(db, NewCodeGenerator(db, clk, lg), clk, lg), clk
}

func seedClient(t *testing.T, db *gorm.DB, given, family string) *domain.Client {
	t.Helper()
	u := &domain.User{
		Email:        uuid.NewString() + "@example.com",
		GivenName:    given,
		FamilyName:   family,
		PasswordHash: "x",
		Role:         domain.UserClient,
	}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	c := &domain.Client{UserID: u.ID}
	if err := repo.CreateClient(context.Background(), db, c); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	c.User = *u
	return c
}

func seedEmployee(t *testing.T, db *gorm.DB, role domain.EmployeeRole, code *int) *domain.Employee {
	t.Helper()
	ur := domain.UserEmployee
	if role == domain.RoleNotary {
		ur = domain.UserNotary
	}
	u := &domain.User{Email: uuid.NewString() + "@example.com", GivenName: "E", FamilyName: "Staff", PasswordHash: "x", Role: ur}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	e := &domain.Employee{UserID: u.ID, Role: role, NotaryCode: code}
	if err := repo.CreateEmployee(context.Background(), db, e); err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	return e
}

func mustCreate(t *testing.T, s *StudioService, in CreateServiceInput) *domain.Service {
	t.Helper()
	if in.Type == "" {
		in.Type = domain.TypeDeed
	}
	svc, err := s.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return svc
}

func ids(list []domain.Service) []uint {
	out := make([]uint, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func sameIDs(got []domain.Service, want ...uint) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func ptr[T any](v T) *T { return &v }
