// Package handlers exposes the studio's REST endpoints.
//
// Handlers are transport-thin: they validate input, call the application
// services through the interfaces below and translate results into HTTP
// responses.
package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-studio-backend/internal/cleanup"
	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/services"
	"github.com/tbourn/go-studio-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// StudioService is the service lifecycle as used by the HTTP layer.
type StudioService interface {
	Create(ctx context.Context, in services.CreateServiceInput) (*domain.Service, error)
	Get(ctx context.Context, id uint) (*domain.Service, error)
	FindByCode(ctx context.Context, code string) (*domain.Service, error)
	List(ctx context.Context, clientID *uint, page, pageSize int) ([]domain.Service, int64, error)
	StatusCounts(ctx context.Context, clientID *uint) (map[domain.ServiceStatus]int64, error)
	ListDeleted(ctx context.Context) ([]domain.Service, error)
	ListPendingApproval(ctx context.Context) ([]domain.Service, error)
	ListApproved(ctx context.Context, clientID *uint) ([]domain.Service, error)

	ListWorkToDo(ctx context.Context, employeeID uint) ([]domain.Service, error)
	ListInProgress(ctx context.Context, employeeID uint) ([]domain.Service, error)
	ListCompleted(ctx context.Context, employeeID uint) ([]domain.Service, error)
	ListFinalized(ctx context.Context, employeeID uint) ([]domain.Service, error)
	ListSharedWithEmployee(ctx context.Context, employeeID uint) ([]domain.Service, error)

	Initialize(ctx context.Context, id uint) (*domain.Service, error)
	ForwardForApproval(ctx context.Context, id uint) (*domain.Service, error)
	Approve(ctx context.Context, id uint) (*domain.Service, error)
	Reject(ctx context.Context, id uint) (*domain.Service, error)

	AssignEmployee(ctx context.Context, serviceID, employeeID uint) error
	ListAssignedEmployees(ctx context.Context, serviceID uint) ([]domain.Employee, error)

	Modify(ctx context.Context, id uint, p services.ServicePatch) (*domain.Service, error)
	SetArchived(ctx context.Context, id uint, archived bool) (*domain.Service, error)
	SoftDelete(ctx context.Context, id uint) error
	Restore(ctx context.Context, id uint) error
	HardDelete(ctx context.Context, id uint) error
}

// ArchiveService serves the archive views.
type ArchiveService interface {
	Archive(ctx context.Context, id uint) (*domain.Service, error)
	Unarchive(ctx context.Context, id uint) (*domain.Service, error)
	ListArchived(ctx context.Context) ([]domain.Service, error)
	GetArchived(ctx context.Context, id uint) (*domain.Service, error)
	DeleteArchived(ctx context.Context, id uint) (bool, error)
}

// DirectoryService manages clients and employees.
type DirectoryService interface {
	RegisterClient(ctx context.Context, in services.PersonInput) (*domain.Client, error)
	RegisterEmployee(ctx context.Context, in services.PersonInput, role string, notaryCode *int) (*domain.Employee, error)
	ListClients(ctx context.Context, page, pageSize int) ([]domain.Client, int64, error)
	GetClient(ctx context.Context, id uint) (*domain.Client, error)
	SearchClients(ctx context.Context, q string) ([]domain.Client, error)
	FindClientByName(ctx context.Context, name string) (*domain.Client, error)
	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	ListNotaries(ctx context.Context) ([]domain.Employee, error)
	GetEmployee(ctx context.Context, id uint) (*domain.Employee, error)
	EmployeeIDByUser(ctx context.Context, userID uint) (uint, error)
	DeleteEmployee(ctx context.Context, id uint) error
}

// AuthService handles logins, password changes and the current account.
type AuthService interface {
	Login(ctx context.Context, email, password string, notaryCode *int) (*services.LoginResult, error)
	ChangePassword(ctx context.Context, email, oldPassword, newPassword string, notaryCode *int) error
	CurrentUser(ctx context.Context, userID uint) (*services.Account, error)
}

// DocumentService stores and serves client documents.
type DocumentService interface {
	Upload(ctx context.Context, in services.UploadInput) (*domain.Document, error)
	ListForClient(ctx context.Context, clientID uint) ([]domain.Document, error)
	ListForService(ctx context.Context, serviceID uint) ([]domain.Document, error)
	Replace(ctx context.Context, id uint, filename, contentType string, body io.Reader) (*domain.Document, error)
	Open(ctx context.Context, id uint) (*domain.Document, io.ReadCloser, error)
	AttachToService(ctx context.Context, serviceID, docID uint) error
}

// Sweeper runs the expiration sweep on demand.
type Sweeper interface {
	RunOnce(ctx context.Context, opts cleanup.Options) (int, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints.
type Handlers struct {
	studio  StudioService
	archive ArchiveService
	dir     DirectoryService
	auth    AuthService
	docs    DocumentService
	sweeper Sweeper

	// IdempotencyTTL bounds how long a POST /services key is remembered.
	IdempotencyTTL time.Duration
	// SweepOptions are the defaults for POST /maintenance/cleanup.
	SweepOptions cleanup.Options
}

// New constructs Handlers bound to the given services.
func New(studio StudioService, archive ArchiveService, dir DirectoryService, authSvc AuthService, docs DocumentService, sweeper Sweeper) *Handlers {
	return &Handlers{
		studio:         studio,
		archive:        archive,
		dir:            dir,
		auth:           authSvc,
		docs:           docs,
		sweeper:        sweeper,
		IdempotencyTTL: 24 * time.Hour,
		SweepOptions:   cleanup.Options{Soft: true},
	}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params,
// returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(c.Query("page"), c.Query("page_size"))
}

// pathID parses a positive numeric path parameter. On failure it writes a
// 400 and returns false.
func pathID(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || n == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return uint(n), true
}

// queryID parses an optional positive numeric query parameter. A missing
// value yields (nil, true).
func queryID(c *gin.Context, name string) (*uint, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
		return nil, false
	}
	id := uint(n)
	return &id, true
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *gin.Context, name string, def bool) (bool, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a boolean")
		return false, false
	}
	return b, true
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
