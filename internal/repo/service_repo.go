// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Service
// model: inserts, filtered listings, conditional status updates, flag flips
// and removal.
//
// Error semantics:
//   - Missing services surface as ErrNotFound (gorm.ErrRecordNotFound).
//   - Flag and status updates report the number of affected rows so callers
//     can tell "missing" from "guard not satisfied".
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-studio-backend/internal/domain"
)

// DeletedFilter selects how soft-deleted services are treated by listings.
type DeletedFilter int

const (
	// ExcludeDeleted hides soft-deleted services (active listings).
	ExcludeDeleted DeletedFilter = iota
	// OnlyDeleted returns soft-deleted services only.
	OnlyDeleted
	// IncludeDeleted applies no soft-delete filter.
	IncludeDeleted
)

// ServiceFilter narrows service listings. Zero values mean "no constraint",
// except Deleted whose zero value excludes soft-deleted rows.
type ServiceFilter struct {
	ClientID   *uint
	EmployeeID *uint // assigned employee
	// NotCreatedBy keeps services whose creator is unset or differs.
	NotCreatedBy *uint
	Statuses     []domain.ServiceStatus
	Archived     *bool
	Deleted      DeletedFilter
}

func (f ServiceFilter) apply(q *gorm.DB) *gorm.DB {
	if f.EmployeeID != nil {
		q = q.Joins("JOIN employee_services ON employee_services.service_id = services.id AND employee_services.employee_id = ?", *f.EmployeeID)
	}
	if f.ClientID != nil {
		q = q.Where("services.client_id = ?", *f.ClientID)
	}
	if f.NotCreatedBy != nil {
		q = q.Where("(services.created_by_id IS NULL OR services.created_by_id <> ?)", *f.NotCreatedBy)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("services.status IN ?", f.Statuses)
	}
	if f.Archived != nil {
		q = q.Where("services.archived = ?", *f.Archived)
	}
	switch f.Deleted {
	case ExcludeDeleted:
		q = q.Where("services.soft_deleted = ?", false)
	case OnlyDeleted:
		q = q.Where("services.soft_deleted = ?", true)
	}
	return q
}

// CreateService inserts s without upserting any association.
func CreateService(ctx context.Context, db *gorm.DB, s *domain.Service) error {
	return db.WithContext(ctx).Omit(clause.Associations).Create(s).Error
}

// GetService fetches a service (soft-deleted included) with its assigned
// employees and documents.
func GetService(ctx context.Context, db *gorm.DB, id uint) (*domain.Service, error) {
	var s domain.Service
	err := db.WithContext(ctx).
		Preload("Employees", func(q *gorm.DB) *gorm.DB { return q.Order("employees.id asc") }).
		Preload("Employees.User").
		Preload("Documents").
		First(&s, id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetServiceByCode fetches a service by its global code (soft-deleted included).
func GetServiceByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Service, error) {
	var s domain.Service
	err := db.WithContext(ctx).
		Preload("Employees").
		Preload("Documents").
		Where("service_code = ?", code).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ServiceExists reports whether a service row with id exists.
func ServiceExists(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Service{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// CountServices returns how many services match f.
func CountServices(ctx context.Context, db *gorm.DB, f ServiceFilter) (int64, error) {
	var n int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Service{})).Count(&n).Error
	return n, err
}

// ListServices returns services matching f ordered by id. A limit <= 0
// returns every match.
func ListServices(ctx context.Context, db *gorm.DB, f ServiceFilter, offset, limit int) ([]domain.Service, error) {
	q := f.apply(db.WithContext(ctx).Model(&domain.Service{})).
		Preload("Employees").
		Order("services.id asc")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	var out []domain.Service
	err := q.Find(&out).Error
	return out, err
}

// DueDateRow is the raw view of a service the expiration sweep evaluates.
// Dates are left as the driver returns them (time.Time, string or []byte)
// so rows written by older tooling can still be interpreted.
type DueDateRow struct {
	ID            uint
	RequestedAt   any
	DeliveryDueAt any
	SoftDeleted   bool
}

// ListDueDateRows returns every service that has a delivery date, in id
// order. Rows are fully read before returning, so callers may write to the
// database while walking the result.
func ListDueDateRows(ctx context.Context, db *gorm.DB) ([]DueDateRow, error) {
	rows, err := db.WithContext(ctx).
		Model(&domain.Service{}).
		Select("id, requested_at, delivery_due_at, soft_deleted").
		Where("delivery_due_at IS NOT NULL").
		Order("id asc").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DueDateRow
	for rows.Next() {
		var r DueDateRow
		if err := rows.Scan(&r.ID, &r.RequestedAt, &r.DeliveryDueAt, &r.SoftDeleted); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateServiceStatus moves a service from one status to another only if it
// is currently in from. It returns the number of affected rows (0 or 1).
func UpdateServiceStatus(ctx context.Context, db *gorm.DB, id uint, from, to domain.ServiceStatus) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Service{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// SetServiceFlag sets a boolean column (archived or soft_deleted) on a
// service. It returns ErrNotFound when the service does not exist; setting a
// flag to its current value succeeds.
func SetServiceFlag(ctx context.Context, db *gorm.DB, id uint, column string, value bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Service{}).
		Where("id = ?", id).
		Updates(map[string]any{column: value, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateServiceFields applies a column map to a service.
func UpdateServiceFields(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.Service{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignEmployee links an employee to a service. Re-assigning is a no-op.
func AssignEmployee(ctx context.Context, db *gorm.DB, serviceID, employeeID uint) error {
	return db.WithContext(ctx).Exec(
		"INSERT INTO employee_services (service_id, employee_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		serviceID, employeeID,
	).Error
}

// ListAssignedEmployees returns the employees linked to a service.
func ListAssignedEmployees(ctx context.Context, db *gorm.DB, serviceID uint) ([]domain.Employee, error) {
	var out []domain.Employee
	err := db.WithContext(ctx).
		Preload("User").
		Joins("JOIN employee_services ON employee_services.employee_id = employees.id").
		Where("employee_services.service_id = ?", serviceID).
		Order("employees.id asc").
		Find(&out).Error
	return out, err
}

// DeleteService removes a service row and its association rows. Run inside a
// transaction. It returns ErrNotFound when nothing was deleted.
func DeleteService(ctx context.Context, tx *gorm.DB, id uint) error {
	db := tx.WithContext(ctx)
	if err := db.Exec("DELETE FROM employee_services WHERE service_id = ?", id).Error; err != nil {
		return err
	}
	if err := db.Exec("DELETE FROM service_documents WHERE service_id = ?", id).Error; err != nil {
		return err
	}
	res := db.Delete(&domain.Service{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
