// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds the aggregate queries over services: the
// ETag inputs of the listing endpoint and the per-status summary.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-studio-backend/internal/domain"
)

// ServicesStats returns the number of services matching f and the greatest
// UpdatedAt among them. When nothing matches, count is 0 and maxUpdatedAt
// is nil.
func ServicesStats(ctx context.Context, db *gorm.DB, f ServiceFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	if count, err = CountServices(ctx, db, f); err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	q := f.apply(db.WithContext(ctx).Model(&domain.Service{}))
	if err = q.Select("services.updated_at").Order("services.updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// ServiceStatusCounts groups the services matching f by status. Statuses
// without services are absent from the map.
func ServiceStatusCounts(ctx context.Context, db *gorm.DB, f ServiceFilter) (map[domain.ServiceStatus]int64, error) {
	var rows []struct {
		Status domain.ServiceStatus
		N      int64
	}
	q := f.apply(db.WithContext(ctx).Model(&domain.Service{}))
	if err := q.Select("services.status AS status, COUNT(*) AS n").Group("services.status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[domain.ServiceStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
