// Package services – DirectoryService
//
// DirectoryService manages the people the studio works with: clients and
// employees (notaries, accountants, assistants). Each of them owns exactly
// one user account; registration creates both rows in one transaction.
package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-studio-backend/internal/auth"
	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/repo"
	"github.com/tbourn/go-studio-backend/internal/utils"
)

// PersonInput carries the user fields shared by clients and employees.
type PersonInput struct {
	Email      string
	GivenName  string
	FamilyName string
	Phone      string
	Password   string
}

// DirectoryService provides client and employee registration and lookup.
type DirectoryService struct {
	DB *gorm.DB

	// SearchLimit caps SearchClients results.
	SearchLimit int
	// SearchLocale drives case folding of search terms.
	SearchLocale language.Tag
}

// NewDirectoryService constructs a DirectoryService with default limits.
func NewDirectoryService(db *gorm.DB) *DirectoryService {
	return &DirectoryService{DB: db, SearchLimit: 50, SearchLocale: language.Und}
}

// RegisterClient creates a user with the client role and its client row.
func (s *DirectoryService) RegisterClient(ctx context.Context, in PersonInput) (*domain.Client, error) {
	u, err := s.newUser(in, domain.UserClient)
	if err != nil {
		return nil, err
	}
	c := &domain.Client{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.createUser(ctx, tx, u); err != nil {
			return err
		}
		c.UserID = u.ID
		return repo.CreateClient(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	return repo.GetClient(ctx, s.DB, c.ID)
}

// RegisterEmployee creates a user and an employee with the given role.
// Notaries must carry a positive registration code; other roles must not.
func (s *DirectoryService) RegisterEmployee(ctx context.Context, in PersonInput, role string, notaryCode *int) (*domain.Employee, error) {
	r, ok := domain.ParseEmployeeRole(role)
	if !ok {
		return nil, ErrInvalidRole
	}
	e := &domain.Employee{Role: r, NotaryCode: notaryCode}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	userRole := domain.UserEmployee
	if e.IsNotary() {
		userRole = domain.UserNotary
	}
	u, err := s.newUser(in, userRole)
	if err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if e.IsNotary() {
			used, err := repo.NotaryCodeInUse(ctx, tx, *e.NotaryCode)
			if err != nil {
				return err
			}
			if used {
				return ErrNotaryCodeTaken
			}
		}
		if err := s.createUser(ctx, tx, u); err != nil {
			return err
		}
		e.UserID = u.ID
		if err := repo.CreateEmployee(ctx, tx, e); err != nil {
			if repo.IsUniqueViolation(err) {
				return ErrNotaryCodeTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repo.GetEmployee(ctx, s.DB, e.ID)
}

func (s *DirectoryService) newUser(in PersonInput, role domain.UserRole) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	given := strings.TrimSpace(in.GivenName)
	family := strings.TrimSpace(in.FamilyName)
	if email == "" || given == "" || family == "" {
		return nil, ErrInvalidPerson
	}
	if len(in.Password) < auth.MinPasswordLen {
		return nil, ErrWeakPassword
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		Email:        email,
		GivenName:    given,
		FamilyName:   family,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         role,
	}, nil
}

func (s *DirectoryService) createUser(ctx context.Context, tx *gorm.DB, u *domain.User) error {
	if _, err := repo.GetUserByEmail(ctx, tx, u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if err := repo.CreateUser(ctx, tx, u); err != nil {
		if repo.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// ListClients returns a page of clients and the total count.
func (s *DirectoryService) ListClients(ctx context.Context, page, pageSize int) ([]domain.Client, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = utils.DefaultPageSize
	}
	total, err := repo.CountClients(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Client{}, 0, nil
	}
	items, err := repo.ListClientsPage(ctx, s.DB, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// GetClient returns a client with its user details.
func (s *DirectoryService) GetClient(ctx context.Context, id uint) (*domain.Client, error) {
	c, err := repo.GetClient(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrClientNotFound
	}
	return c, err
}

// SearchClients matches q against given and family names, ignoring case.
// A blank query returns no results.
func (s *DirectoryService) SearchClients(ctx context.Context, q string) ([]domain.Client, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []domain.Client{}, nil
	}
	term := cases.Lower(s.SearchLocale).String(q)
	term = strings.NewReplacer(`\`, "", "%", "", "_", "").Replace(term)
	if term == "" {
		return []domain.Client{}, nil
	}
	return repo.SearchClients(ctx, s.DB, term, s.SearchLimit)
}

// FindClientByName returns the first client whose given name equals name.
func (s *DirectoryService) FindClientByName(ctx context.Context, name string) (*domain.Client, error) {
	c, err := repo.FindClientByGivenName(ctx, s.DB, strings.TrimSpace(name))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrClientNotFound
	}
	return c, err
}

// ListEmployees returns every employee.
func (s *DirectoryService) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	return repo.ListEmployees(ctx, s.DB, "")
}

// ListNotaries returns the employees with the notary role.
func (s *DirectoryService) ListNotaries(ctx context.Context) ([]domain.Employee, error) {
	return repo.ListEmployees(ctx, s.DB, domain.RoleNotary)
}

// GetEmployee returns an employee with its user details.
func (s *DirectoryService) GetEmployee(ctx context.Context, id uint) (*domain.Employee, error) {
	e, err := repo.GetEmployee(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrEmployeeNotFound
	}
	return e, err
}

// EmployeeIDByUser resolves the employee id of a user account.
func (s *DirectoryService) EmployeeIDByUser(ctx context.Context, userID uint) (uint, error) {
	e, err := repo.GetEmployeeByUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrEmployeeNotFound
		}
		return 0, err
	}
	return e.ID, nil
}

// DeleteEmployee removes an employee, its user account and any client row
// of the same user. Services it opened are kept.
func (s *DirectoryService) DeleteEmployee(ctx context.Context, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.DeleteEmployee(ctx, tx, id)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrEmployeeNotFound
	}
	return err
}
