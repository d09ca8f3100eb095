package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-studio-backend/internal/auth"
	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/repo"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token      string
	ExpiresAt  time.Time
	User       domain.User
	EmployeeID *uint
	ClientID   *uint
}

// Account is the user behind a token together with its staff and client
// records, when present.
type Account struct {
	User       domain.User
	EmployeeID *uint
	ClientID   *uint
}

// AuthService verifies credentials and issues access tokens. Notaries must
// also present their registration code.
type AuthService struct {
	DB     *gorm.DB
	Tokens *auth.Tokens
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, tokens *auth.Tokens) *AuthService {
	return &AuthService{DB: db, Tokens: tokens}
}

// Login checks email, password and (for notaries) the notary code, then
// issues a token. Every mismatch yields ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string, notaryCode *int) (*LoginResult, error) {
	u, emp, err := s.verify(ctx, email, password, notaryCode)
	if err != nil {
		return nil, err
	}

	p := auth.Principal{UserID: u.ID, Role: string(u.Role)}
	if emp != nil {
		p.EmployeeID = &emp.ID
	}
	if c, err := repo.GetClientByUser(ctx, s.DB, u.ID); err == nil {
		p.ClientID = &c.ID
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	tok, exp, err := s.Tokens.Issue(p)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: tok, ExpiresAt: exp, User: *u, EmployeeID: p.EmployeeID, ClientID: p.ClientID}, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, email, oldPassword, newPassword string, notaryCode *int) error {
	if len(newPassword) < auth.MinPasswordLen {
		return ErrWeakPassword
	}
	u, _, err := s.verify(ctx, email, oldPassword, notaryCode)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return repo.UpdateUserPassword(ctx, s.DB, u.ID, hash)
}

// CurrentUser loads the account of an authenticated user. A user removed
// after the token was issued yields ErrInvalidCredentials.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*Account, error) {
	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	acc := &Account{User: *u}
	if emp, err := repo.GetEmployeeByUser(ctx, s.DB, u.ID); err == nil {
		acc.EmployeeID = &emp.ID
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if c, err := repo.GetClientByUser(ctx, s.DB, u.ID); err == nil {
		acc.ClientID = &c.ID
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	return acc, nil
}

func (s *AuthService) verify(ctx context.Context, email, password string, notaryCode *int) (*domain.User, *domain.Employee, error) {
	u, err := repo.GetUserByEmail(ctx, s.DB, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	emp, err := repo.GetEmployeeByUser(ctx, s.DB, u.ID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, nil, err
		}
		emp = nil
	}
	if emp != nil && emp.IsNotary() {
		if notaryCode == nil || emp.NotaryCode == nil || *notaryCode != *emp.NotaryCode {
			return nil, nil, ErrInvalidCredentials
		}
	}
	return u, emp, nil
}
