// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for users, clients
// and employees.
//
// Functions follow the thin repository approach: no business rules, only
// persistence and query composition. Missing rows surface as ErrNotFound.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-studio-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateUser inserts u and fills its generated ID.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).Create(u).Error
}

// GetUser fetches a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by email (exact match).
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserPassword replaces the stored password hash.
func UpdateUserPassword(ctx context.Context, db *gorm.DB, id uint, hash string) error {
	res := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateClient inserts c (without touching its User association).
func CreateClient(ctx context.Context, db *gorm.DB, c *domain.Client) error {
	return db.WithContext(ctx).Omit("User").Create(c).Error
}

// GetClient fetches a client with its user.
func GetClient(ctx context.Context, db *gorm.DB, id uint) (*domain.Client, error) {
	var c domain.Client
	if err := db.WithContext(ctx).Preload("User").First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClientByUser fetches the client row for a user, if any.
func GetClientByUser(ctx context.Context, db *gorm.DB, userID uint) (*domain.Client, error) {
	var c domain.Client
	if err := db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CountClients returns the number of clients.
func CountClients(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Client{}).Count(&n).Error
	return n, err
}

// ListClientsPage returns a page of clients ordered by id.
func ListClientsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Client, error) {
	var out []domain.Client
	err := db.WithContext(ctx).
		Preload("User").
		Order("clients.id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SearchClients returns clients whose given or family name contains pattern.
// pattern must already be lower-cased; matching is done on LOWER(column).
func SearchClients(ctx context.Context, db *gorm.DB, pattern string, limit int) ([]domain.Client, error) {
	like := "%" + pattern + "%"
	var out []domain.Client
	err := db.WithContext(ctx).
		Preload("User").
		Joins("JOIN users ON users.id = clients.user_id").
		Where("LOWER(users.given_name) LIKE ? OR LOWER(users.family_name) LIKE ?", like, like).
		Order("users.family_name asc, users.given_name asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// FindClientByGivenName returns the first client whose given name equals name.
func FindClientByGivenName(ctx context.Context, db *gorm.DB, name string) (*domain.Client, error) {
	var c domain.Client
	err := db.WithContext(ctx).
		Preload("User").
		Joins("JOIN users ON users.id = clients.user_id").
		Where("users.given_name = ?", name).
		Order("clients.id asc").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateEmployee inserts e (without touching its User association).
func CreateEmployee(ctx context.Context, db *gorm.DB, e *domain.Employee) error {
	return db.WithContext(ctx).Omit("User").Create(e).Error
}

// GetEmployee fetches an employee with its user.
func GetEmployee(ctx context.Context, db *gorm.DB, id uint) (*domain.Employee, error) {
	var e domain.Employee
	if err := db.WithContext(ctx).Preload("User").First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEmployeeByUser fetches the employee row for a user, if any.
func GetEmployeeByUser(ctx context.Context, db *gorm.DB, userID uint) (*domain.Employee, error) {
	var e domain.Employee
	if err := db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// NotaryCodeInUse reports whether a notary already holds code.
func NotaryCodeInUse(ctx context.Context, db *gorm.DB, code int) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Employee{}).Where("notary_code = ?", code).Count(&n).Error
	return n > 0, err
}

// ListEmployees returns employees, optionally restricted to one role.
func ListEmployees(ctx context.Context, db *gorm.DB, role domain.EmployeeRole) ([]domain.Employee, error) {
	q := db.WithContext(ctx).Preload("User").Order("employees.id asc")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var out []domain.Employee
	err := q.Find(&out).Error
	return out, err
}

// DeleteEmployee removes an employee together with its assignments, the
// client row sharing its user (if any) and the user itself. Services it
// created keep existing with created_by cleared. Run inside a transaction.
func DeleteEmployee(ctx context.Context, tx *gorm.DB, id uint) error {
	db := tx.WithContext(ctx)

	var e domain.Employee
	if err := db.First(&e, id).Error; err != nil {
		return err
	}
	if err := db.Exec("DELETE FROM employee_services WHERE employee_id = ?", id).Error; err != nil {
		return err
	}
	if err := db.Model(&domain.Service{}).Where("created_by_id = ?", id).
		Update("created_by_id", nil).Error; err != nil {
		return err
	}
	if err := db.Delete(&domain.Employee{}, id).Error; err != nil {
		return err
	}
	if err := db.Where("user_id = ?", e.UserID).Delete(&domain.Client{}).Error; err != nil {
		return err
	}
	return db.Delete(&domain.User{}, e.UserID).Error
}
