package cleanup

import (
	"context"
	"errors"
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

var testNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:sweep_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedClient(t *testing.T, db *gorm.DB) uint {
	t.Helper()
	u := &domain.User{Email: uuid.NewString() + "@example.com", GivenName: "Ada", FamilyName: "Rossi", PasswordHash: "x", Role: domain.UserClient}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	c := &domain.Client{UserID: u.ID}
	if err := repo.CreateClient(context.Background(), db, c); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return c.ID
}

// seed inserts a service with the given request and due offsets in days from
// testNow. A nil due leaves the delivery date empty.
func seed(t *testing.T, db *gorm.DB, clientID uint, seq int64, reqDays int, dueDays *int) uint {
	t.Helper()
	s := &domain.Service{
		ClientID:     clientID,
		SequenceCode: seq,
		ServiceCode:  fmt.Sprintf("SERV-%06d", seq),
		RequestedAt:  testNow.AddDate(0, 0, reqDays),
		Status:       domain.StatusCreated,
		Type:         domain.TypeDeed,
	}
	if dueDays != nil {
		due := testNow.AddDate(0, 0, *dueDays)
		s.DeliveryDueAt = &due
	}
	if err := repo.CreateService(context.Background(), db, s); err != nil {
		t.Fatalf("seed service: %v", err)
	}
	return s.ID
}

func days(n int) *int { return &n }

func newSweeper(t *testing.T, db *gorm.DB) (*Sweeper, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(testNow)
	return New(db, clk, zerolog.Nop()), clk
}

func loadService(t *testing.T, db *gorm.DB, id uint) (*domain.Service, bool) {
	t.Helper()
	var s domain.Service
	err := db.First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	if err != nil {
		t.Fatalf("load service %d: %v", id, err)
	}
	return &s, true
}

func TestRunOnce_SoftFlagsExpired(t *testing.T) {
	db := newTestDB(t)
	cid := seedClient(t, db)

	live := seed(t, db, cid, 1, -10, days(80))
	overdue := seed(t, db, cid, 2, -30, days(-1))
	inverted := seed(t, db, cid, 3, 0, days(-5))
	dueToday := seed(t, db, cid, 4, -20, days(0))
	undated := seed(t, db, cid, 5, -400, nil)

	sw, _ := newSweeper(t, db)
	n, err := sw.RunOnce(context.Background(), Options{Soft: true})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 2 {
		t.Fatalf("affected = %d, want 2", n)
	}

	for id, wantDeleted := range map[uint]bool{
		live: false, overdue: true, inverted: true, dueToday: false, undated: false,
	} {
		s, ok := loadService(t, db, id)
		if !ok {
			t.Fatalf("service %d removed in soft mode", id)
		}
		if s.SoftDeleted != wantDeleted {
			t.Errorf("service %d soft_deleted = %v, want %v", id, s.SoftDeleted, wantDeleted)
		}
	}

	// A second pass finds nothing new to flag.
	n, err = sw.RunOnce(context.Background(), Options{Soft: true})
	if err != nil || n != 0 {
		t.Fatalf("second pass = (%d, %v), want (0, nil)", n, err)
	}
}

func TestRunOnce_HardRemovesRows(t *testing.T) {
	db := newTestDB(t)
	cid := seedClient(t, db)

	live := seed(t, db, cid, 1, -10, days(80))
	overdue := seed(t, db, cid, 2, -30, days(-1))

	sw, _ := newSweeper(t, db)
	n, err := sw.RunOnce(context.Background(), Options{})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("affected = %d, want 1", n)
	}
	if _, ok := loadService(t, db, overdue); ok {
		t.Fatal("overdue service still present")
	}
	if _, ok := loadService(t, db, live); !ok {
		t.Fatal("live service removed")
	}
}

func TestRunOnce_DryRunChangesNothing(t *testing.T) {
	db := newTestDB(t)
	cid := seedClient(t, db)
	overdue := seed(t, db, cid, 1, -30, days(-1))

	sw, _ := newSweeper(t, db)
	n, err := sw.RunOnce(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("affected = %d, want 1", n)
	}
	s, ok := loadService(t, db, overdue)
	if !ok || s.SoftDeleted {
		t.Fatalf("dry run modified the service: present=%v", ok)
	}
}

func TestRunOnce_SkipsUnreadableDates(t *testing.T) {
	db := newTestDB(t)
	cid := seedClient(t, db)
	id := seed(t, db, cid, 1, -30, days(-1))
	if err := db.Exec("UPDATE services SET delivery_due_at = ? WHERE id = ?", "not a date", id).Error; err != nil {
		t.Fatalf("corrupt date: %v", err)
	}

	sw, _ := newSweeper(t, db)
	n, err := sw.RunOnce(context.Background(), Options{Soft: true})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 0 {
		t.Fatalf("affected = %d, want 0", n)
	}
	if s, ok := loadService(t, db, id); !ok || s.SoftDeleted {
		t.Fatal("service with unreadable date was touched")
	}
}

func TestRunOnce_MissingTableFails(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrator().DropTable(&domain.Service{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	sw, _ := newSweeper(t, db)
	if _, err := sw.RunOnce(context.Background(), Options{}); err == nil {
		t.Fatal("expected error when services table is missing")
	}
}

func TestStart_FirstPassWithoutWaiting(t *testing.T) {
	db := newTestDB(t)
	cid := seedClient(t, db)
	overdue := seed(t, db, cid, 1, -30, days(-1))

	sw, _ := newSweeper(t, db)
	passes := make(chan int, 1)
	sw.afterPass = func(n int, err error) {
		if err != nil {
			t.Errorf("pass error: %v", err)
		}
		passes <- n
	}

	// The clock never moves; a daily interval must not delay the first sweep.
	sw.Start(context.Background(), 24*time.Hour, Options{Soft: true})
	defer sw.Stop()

	select {
	case n := <-passes:
		if n != 1 {
			t.Fatalf("startup pass affected %d, want 1", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no pass at startup")
	}
	if s, _ := loadService(t, db, overdue); s == nil || !s.SoftDeleted {
		t.Fatal("startup pass did not flag the overdue service")
	}
}

func TestStart_RunsOnInterval(t *testing.T) {
	db := newTestDB(t)
	cid := seedClient(t, db)
	seed(t, db, cid, 1, -30, days(-1))

	sw, clk := newSweeper(t, db)
	passes := make(chan int, 4)
	sw.afterPass = func(n int, err error) {
		if err != nil {
			t.Errorf("pass error: %v", err)
		}
		passes <- n
	}

	sw.Start(context.Background(), time.Hour, Options{Soft: true})
	defer sw.Stop()

	want := []int{1, 0, 0}
	for i, w := range want {
		if i > 0 {
			if err := clk.WaitAdvance(time.Hour, 5*time.Second, 1); err != nil {
				t.Fatalf("advance %d: %v", i, err)
			}
		}
		select {
		case n := <-passes:
			if n != w {
				t.Fatalf("pass %d affected %d, want %d", i, n, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for pass %d", i)
		}
	}
}

func TestStop_Idempotent(t *testing.T) {
	sw, _ := newSweeper(t, newTestDB(t))
	sw.Stop()
	sw.Start(context.Background(), time.Minute, Options{})
	sw.Start(context.Background(), time.Minute, Options{}) // no second loop
	sw.Stop()
	sw.Stop()
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	cases := []any{
		time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC),
		"2025-01-31",
		"2025-01-31 08:15:00",
		"2025-01-31T08:15:00Z",
		"2025-01-31 08:15:00.123+00:00",
		[]byte("2025-01-31"),
	}
	for _, in := range cases {
		got, ok := parseDate(in)
		if !ok || !got.Equal(want) {
			t.Errorf("parseDate(%v) = (%v, %v), want %v", in, got, ok, want)
		}
	}
	for _, in := range []any{nil, "", "31/01/2025", 42, time.Time{}} {
		if _, ok := parseDate(in); ok {
			t.Errorf("parseDate(%v) accepted", in)
		}
	}
}
