// Package cleanup expires services whose delivery window has passed.
//
// A service is removed (or flagged, in soft mode) when its delivery date
// precedes its request date or when today is after the delivery date.
// Services without a delivery date, or with dates that cannot be read, are
// never touched.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-studio-backend/internal/observability"
	"github.com/tbourn/go-studio-backend/internal/repo"
)

// Options controls a sweep pass.
type Options struct {
	// DryRun counts the services that would be affected without changing them.
	DryRun bool
	// Soft flags services as deleted instead of removing the rows.
	Soft bool
}

// Sweeper runs expiration passes on demand or on a timer. Passes never
// overlap.
type Sweeper struct {
	DB    *gorm.DB
	Clock clock.Clock
	Log   zerolog.Logger

	runMu sync.Mutex // one pass at a time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// afterPass, when set, observes every background pass.
	afterPass func(n int, err error)
}

// New constructs a Sweeper. A nil clk uses the wall clock.
func New(db *gorm.DB, clk clock.Clock, lg zerolog.Logger) *Sweeper {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Sweeper{DB: db, Clock: clk, Log: lg}
}

var sweepTracer = observability.Tracer("cleanup/Sweeper")

// RunOnce evaluates every service with a delivery date and returns how many
// were (or, in dry-run mode, would be) expired. Failures on single records
// are logged and skipped; only a failure to read the candidate set is
// returned.
func (s *Sweeper) RunOnce(ctx context.Context, opts Options) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, span := sweepTracer.Start(ctx, "RunOnce")
	defer span.End()

	rows, err := repo.ListDueDateRows(ctx, s.DB)
	if err != nil {
		observability.SweepRuns.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("list sweep candidates: %w", err)
	}

	today := dateOf(s.Clock.Now())
	expired := make([]repo.DueDateRow, 0)
	for _, r := range rows {
		req, ok1 := parseDate(r.RequestedAt)
		due, ok2 := parseDate(r.DeliveryDueAt)
		if !ok1 || !ok2 {
			s.Log.Debug().Uint("service_id", r.ID).Msg("sweep: unreadable dates, skipping")
			continue
		}
		if due.Before(req) || today.After(due) {
			expired = append(expired, r)
		}
	}

	mode := "hard"
	if opts.Soft {
		mode = "soft"
	}

	n := 0
	if opts.DryRun {
		mode = "dry_run"
		for _, r := range expired {
			// Already flagged rows would not change in soft mode.
			if !(opts.Soft && r.SoftDeleted) {
				n++
			}
		}
	} else {
		for _, r := range expired {
			changed, err := s.expire(ctx, r, opts.Soft)
			if err != nil {
				s.Log.Error().Err(err).Uint("service_id", r.ID).Msg("sweep: failed to expire service")
				continue
			}
			if changed {
				n++
			}
		}
	}

	observability.SweepRuns.WithLabelValues("ok").Inc()
	observability.SweepDeleted.WithLabelValues(mode).Add(float64(n))
	s.Log.Info().
		Int("affected", n).
		Int("candidates", len(rows)).
		Str("mode", mode).
		Msg("sweep finished")
	return n, nil
}

func (s *Sweeper) expire(ctx context.Context, r repo.DueDateRow, soft bool) (bool, error) {
	if soft {
		if r.SoftDeleted {
			return false, nil
		}
		return true, repo.SetServiceFlag(ctx, s.DB, r.ID, "soft_deleted", true)
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.DeleteService(ctx, tx, r.ID)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Start runs a pass at once and then every interval until ctx ends or Stop
// is called. The next wait starts only after the previous pass returned. Calling Start on
// a running sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration, opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		pass := func() {
			n, err := s.safeRun(ctx, opts)
			if s.afterPass != nil {
				s.afterPass(n, err)
			}
		}
		pass()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.Clock.After(interval):
				pass()
			}
		}
	}(s.done)

	s.Log.Info().Dur("interval", interval).Bool("soft", opts.Soft).Bool("dry_run", opts.DryRun).Msg("sweeper started")
}

// Stop ends the background loop and waits for a running pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// safeRun shields the loop from panics in a pass.
func (s *Sweeper) safeRun(ctx context.Context, opts Options) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.SweepRuns.WithLabelValues("error").Inc()
			err = fmt.Errorf("sweep panic: %v", rec)
			s.Log.Error().Interface("panic", rec).Msg("sweep: recovered from panic")
		}
	}()
	n, err = s.RunOnce(ctx, opts)
	if err != nil {
		s.Log.Error().Err(err).Msg("sweep failed")
	}
	return n, err
}

// dateLayouts lists the textual date formats accepted for stored dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate reduces a stored value to a UTC calendar date.
func parseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return dateOf(t), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return dateOf(*t), true
	case []byte:
		return parseDate(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if p, err := time.Parse(layout, s); err == nil {
				return dateOf(p), true
			}
		}
	}
	return time.Time{}, false
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
