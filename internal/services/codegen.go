package services

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-studio-backend/internal/observability"
	"github.com/tbourn/go-studio-backend/internal/repo"
)

// CodeSource hands out globally unique service codes. attempt counts the
// earlier codes for the same service that were rejected as duplicates.
type CodeSource interface {
	Next(ctx context.Context, attempt int) string
}

// CodeGenerator produces "SERV-%06d" codes from the database. It prefers a
// native sequence, falls back to the side table's generated id and, when both
// fail, to a timestamp code. Next therefore always returns a value.
type CodeGenerator struct {
	DB    *gorm.DB
	Clock clock.Clock
	Log   zerolog.Logger
}

// NewCodeGenerator wires a generator to db. A nil clk uses the wall clock.
func NewCodeGenerator(db *gorm.DB, clk clock.Clock, lg zerolog.Logger) *CodeGenerator {
	if clk == nil {
		clk = clock.WallClock
	}
	return &CodeGenerator{DB: db, Clock: clk, Log: lg}
}

// Next returns the next service code. The timestamp fallback moves attempt
// seconds ahead of the clock so that a retry does not repeat a code already
// taken within the same second.
func (g *CodeGenerator) Next(ctx context.Context, attempt int) string {
	if repo.SupportsSequences(g.DB) {
		n, err := repo.NextSequenceValue(ctx, g.DB)
		if err == nil {
			return FormatServiceCode(n)
		}
		g.Log.Warn().Err(err).Msg("service code sequence unavailable; using side table")
		observability.CodeFallbacks.WithLabelValues("sequence").Inc()
	}

	n, err := repo.NextSideTableValue(ctx, g.DB)
	if err == nil {
		return FormatServiceCode(n)
	}
	g.Log.Warn().Err(err).Msg("service code side table unavailable; using timestamp code")
	observability.CodeFallbacks.WithLabelValues("side_table").Inc()

	return TimestampServiceCode(g.Clock.Now().Add(time.Duration(attempt) * time.Second))
}

// FormatServiceCode renders n as "SERV-000042".
func FormatServiceCode(n int64) string {
	return fmt.Sprintf("SERV-%06d", n)
}

// TimestampServiceCode renders t (in UTC) as "SERV-YYYYMMDDHHMMSS".
func TimestampServiceCode(t time.Time) string {
	return "SERV-" + t.UTC().Format("20060102150405")
}
