// Service HTTP handlers.
//
// This file exposes the service lifecycle:
//   - POST   /services                       (create, Idempotency-Key aware)
//   - GET    /services                       (paginated, ETag support)
//   - GET    /services/{id}, /services/code/{code}
//   - PATCH  /services/{id}
//   - POST   /services/{id}/{initialize,forward,approve,reject}
//   - DELETE /services/{id}, /services/{id}/hard; POST /services/{id}/restore
//   - PUT    /services/{id}/employees/{employeeId}, GET /services/{id}/employees
//   - GET    /services/{deleted,pending-approval,approved}
//   - GET    /employees/{id}/services/{todo,in-progress,completed,finalized,shared}
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/http/middleware"
	"github.com/tbourn/go-studio-backend/internal/repo"
	"github.com/tbourn/go-studio-backend/internal/services"
)

//
// DTOs
//

// CreateServiceRequest is the JSON payload for opening a service. Codes and
// dates are normally left to the server.
type CreateServiceRequest struct {
	ClientID          uint       `json:"client_id" binding:"required" example:"12"`
	Type              string     `json:"type" binding:"required" example:"deed"`
	SequenceCode      *int64     `json:"sequence_code,omitempty" example:"3"`
	ServiceCode       *string    `json:"service_code,omitempty" example:"SERV-000042"`
	RequestedAt       *time.Time `json:"requested_at,omitempty" example:"2025-01-31T09:00:00Z"`
	DeliveryDueAt     *time.Time `json:"delivery_due_at,omitempty" example:"2025-04-30T09:00:00Z"`
	CreatorEmployeeID *uint      `json:"creator_employee_id,omitempty" example:"4"`
}

// PatchServiceRequest lists the mutable service attributes. Omitted fields
// are left unchanged.
type PatchServiceRequest struct {
	Type          *string    `json:"type,omitempty" example:"estimate"`
	RequestedAt   *time.Time `json:"requested_at,omitempty"`
	DeliveryDueAt *time.Time `json:"delivery_due_at,omitempty"`
}

// SetArchivedRequest toggles the archived flag.
type SetArchivedRequest struct {
	Archived *bool `json:"archived" binding:"required"`
}

// ServiceStatsResponse summarizes active services by status.
type ServiceStatsResponse struct {
	Total    int64            `json:"total"     example:"12"`
	ByStatus map[string]int64 `json:"by_status"`
}

// ListServicesResponse wraps a page of services and pagination information.
type ListServicesResponse struct {
	Services   []domain.Service `json:"services"`
	Pagination Pagination       `json:"pagination"`
}

//
// Create / read
//

// CreateService godoc
// @ID          createService
// @Summary     Open a service
// @Description Creates a service in CREATED with per-client sequence and global code. Retrying with the same Idempotency-Key returns the service created first.
// @Tags        Services
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateServiceRequest  true  "Service payload"
// @Success     201  {object}  domain.Service
// @Success     200  {object}  domain.Service  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Client or employee not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Code already in use"
// @Failure     503  {object}  handlers.ErrorResponse  "Counter temporarily unavailable"
// @Router      /services [post]
func (h *Handlers) CreateService(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ClientID == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "client_id and type are required")
		return
	}

	idemKey, hasKey := middleware.GetIdempotencyKey(c)
	db := h.studioDB()
	if hasKey && db != nil {
		if prev := h.replayService(ctx, db, c, idemKey); prev != nil {
			c.Header(middleware.HeaderIdempotencyReplayed, "true")
			ok(c, http.StatusOK, prev)
			return
		}
	}

	t, _ := domain.ParseServiceType(req.Type)
	in := services.CreateServiceInput{
		ClientID:          req.ClientID,
		Type:              t,
		SequenceCode:      req.SequenceCode,
		ServiceCode:       req.ServiceCode,
		RequestedAt:       req.RequestedAt,
		DeliveryDueAt:     req.DeliveryDueAt,
		CreatorEmployeeID: req.CreatorEmployeeID,
	}
	if in.CreatorEmployeeID == nil {
		if id, ok := middleware.EmployeeIDFrom(c); ok {
			in.CreatorEmployeeID = &id
		}
	}

	svc, err := h.studio.Create(ctx, in)
	if err != nil {
		failErr(c, err)
		return
	}

	// Best effort: a lost record only means a retry creates a second service.
	if hasKey && db != nil {
		_, err := repo.CreateIdempotency(ctx, db,
			middleware.IdempotencyUser(c), middleware.IdempotencyScope(c), idemKey,
			strconv.FormatUint(uint64(svc.ID), 10), http.StatusCreated, h.IdempotencyTTL)
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
		}
	}

	created(c, svc.ID, svc)
}

func (h *Handlers) replayService(ctx context.Context, db *gorm.DB, c *gin.Context, key string) *domain.Service {
	rec, err := repo.GetIdempotency(ctx, db, middleware.IdempotencyUser(c), middleware.IdempotencyScope(c), key, time.Now().UTC())
	if err != nil {
		return nil
	}
	id, err := strconv.ParseUint(rec.ResourceID, 10, 64)
	if err != nil {
		return nil
	}
	svc, err := h.studio.Get(ctx, uint(id))
	if err != nil {
		return nil
	}
	return svc
}

// studioDB returns the database behind the concrete StudioService, if any.
func (h *Handlers) studioDB() *gorm.DB {
	if svc, ok := h.studio.(*services.StudioService); ok {
		return svc.DB
	}
	return nil
}

// ListServices godoc
// @ID          listServices
// @Summary     List active services (paginated)
// @Description Returns a page of services that are not soft-deleted, optionally for one client. Supports weak ETag via If-None-Match.
// @Tags        Services
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       client_id      query   int     false  "Only this client's services"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListServicesResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /services [get]
func (h *Handlers) ListServices(c *gin.Context) {
	ctx := c.Request.Context()
	clientID, valid := queryID(c, "client_id")
	if !valid {
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.studioDB(); db != nil {
		count, maxTS, err := repo.ServicesStats(ctx, db, repo.ServiceFilter{ClientID: clientID})
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			scope := "all"
			if clientID != nil {
				scope = strconv.FormatUint(uint64(*clientID), 10)
			}
			etag := fmt.Sprintf(`W/"services:%s:%d:%d:%d:%d"`, scope, page, pageSize, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.studio.List(ctx, clientID, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListServicesResponse{
		Services:   nonNil(items),
		Pagination: newPagination(page, pageSize, total),
	})
}

// ServiceStats godoc
// @ID          serviceStats
// @Summary     Count active services by status
// @Description Every status is listed, including those with no services. Soft-deleted services are not counted.
// @Tags        Services
// @Produce     json
// @Param       client_id  query  int  false  "Only this client's services"
// @Success     200  {object}  handlers.ServiceStatsResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /services/stats [get]
func (h *Handlers) ServiceStats(c *gin.Context) {
	clientID, valid := queryID(c, "client_id")
	if !valid {
		return
	}
	counts, err := h.studio.StatusCounts(c.Request.Context(), clientID)
	if err != nil {
		failErr(c, err)
		return
	}
	resp := ServiceStatsResponse{ByStatus: make(map[string]int64, len(counts))}
	for st, n := range counts {
		resp.ByStatus[string(st)] = n
		resp.Total += n
	}
	ok(c, http.StatusOK, resp)
}

// GetService godoc
// @ID          getService
// @Summary     Get a service
// @Description Soft-deleted services are returned too.
// @Tags        Services
// @Produce     json
// @Param       id  path  int  true  "Service ID"
// @Success     200  {object}  domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id} [get]
func (h *Handlers) GetService(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	svc, err := h.studio.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, svc)
}

// GetServiceByCode godoc
// @ID          getServiceByCode
// @Summary     Find a service by its code
// @Tags        Services
// @Produce     json
// @Param       code  path  string  true  "Service code"  example(SERV-000042)
// @Success     200  {object}  domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/code/{code} [get]
func (h *Handlers) GetServiceByCode(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code required")
		return
	}
	svc, err := h.studio.FindByCode(c.Request.Context(), code)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, svc)
}

// PatchService godoc
// @ID          patchService
// @Summary     Modify a service
// @Description Updates type and dates. Unknown types are ignored; the delivery date must not precede the request date.
// @Tags        Services
// @Accept      json
// @Produce     json
// @Param       id    path  int  true  "Service ID"
// @Param       body  body  handlers.PatchServiceRequest  true  "Patch"
// @Success     200  {object}  domain.Service
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id} [patch]
func (h *Handlers) PatchService(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req PatchServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	svc, err := h.studio.Modify(c.Request.Context(), id, services.ServicePatch{
		Type:          req.Type,
		RequestedAt:   req.RequestedAt,
		DeliveryDueAt: req.DeliveryDueAt,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, svc)
}

//
// Lifecycle
//

type transitionFunc func(ctx context.Context, id uint) (*domain.Service, error)

func (h *Handlers) transition(c *gin.Context, fn transitionFunc) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	svc, err := fn(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, svc)
}

// InitializeService godoc
// @ID          initializeService
// @Summary     Start work on a service (CREATED → IN_PROGRESS)
// @Tags        Lifecycle
// @Produce     json
// @Param       id  path  int  true  "Service ID"
// @Success     200  {object}  domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Wrong state"
// @Router      /services/{id}/initialize [post]
func (h *Handlers) InitializeService(c *gin.Context) { h.transition(c, h.studio.Initialize) }

// ForwardService godoc
// @ID          forwardService
// @Summary     Forward for approval (IN_PROGRESS → PENDING_APPROVAL)
// @Tags        Lifecycle
// @Produce     json
// @Param       id  path  int  true  "Service ID"
// @Success     200  {object}  domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Wrong state"
// @Router      /services/{id}/forward [post]
func (h *Handlers) ForwardService(c *gin.Context) { h.transition(c, h.studio.ForwardForApproval) }

// ApproveService godoc
// @ID          approveService
// @Summary     Approve (PENDING_APPROVAL → APPROVED)
// @Tags        Lifecycle
// @Produce     json
// @Param       id  path  int  true  "Service ID"
// @Success     200  {object}  domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Wrong state"
// @Router      /services/{id}/approve [post]
func (h *Handlers) ApproveService(c *gin.Context) { h.transition(c, h.studio.Approve) }

// RejectService godoc
// @ID          rejectService
// @Summary     Reject (PENDING_APPROVAL → REJECTED)
// @Tags        Lifecycle
// @Produce     json
// @Param       id  path  int  true  "Service ID"
// @Success     200  {object}  domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Wrong state"
// @Router      /services/{id}/reject [post]
func (h *Handlers) RejectService(c *gin.Context) { h.transition(c, h.studio.Reject) }

//
// Assignment
//

// AssignEmployee godoc
// @ID          assignEmployee
// @Summary     Assign an employee to a service
// @Description Assigning twice is a no-op.
// @Tags        Services
// @Param       id          path  int  true  "Service ID"
// @Param       employeeId  path  int  true  "Employee ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id}/employees/{employeeId} [put]
func (h *Handlers) AssignEmployee(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	empID, valid := pathID(c, "employeeId")
	if !valid {
		return
	}
	if err := h.studio.AssignEmployee(c.Request.Context(), id, empID); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ListAssignedEmployees godoc
// @ID          listAssignedEmployees
// @Summary     Employees assigned to a service
// @Tags        Services
// @Produce     json
// @Param       id  path  int  true  "Service ID"
// @Success     200  {array}   domain.Employee
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id}/employees [get]
func (h *Handlers) ListAssignedEmployees(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	emps, err := h.studio.ListAssignedEmployees(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(emps))
}

//
// Deletion
//

// SoftDeleteService godoc
// @ID          softDeleteService
// @Summary     Soft-delete a service
// @Tags        Services
// @Param       id  path  int  true  "Service ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id} [delete]
func (h *Handlers) SoftDeleteService(c *gin.Context) { h.mutate(c, h.studio.SoftDelete) }

// RestoreService godoc
// @ID          restoreService
// @Summary     Restore a soft-deleted service
// @Tags        Services
// @Param       id  path  int  true  "Service ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id}/restore [post]
func (h *Handlers) RestoreService(c *gin.Context) { h.mutate(c, h.studio.Restore) }

// HardDeleteService godoc
// @ID          hardDeleteService
// @Summary     Permanently delete a service
// @Tags        Services
// @Param       id  path  int  true  "Service ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id}/hard [delete]
func (h *Handlers) HardDeleteService(c *gin.Context) { h.mutate(c, h.studio.HardDelete) }

func (h *Handlers) mutate(c *gin.Context, fn func(ctx context.Context, id uint) error) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := fn(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// SetServiceArchived godoc
// @ID          setServiceArchived
// @Summary     Set the archived flag
// @Tags        Archive
// @Accept      json
// @Produce     json
// @Param       id    path  int  true  "Service ID"
// @Param       body  body  handlers.SetArchivedRequest  true  "Flag"
// @Success     200  {object}  domain.Service
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id}/archived [put]
func (h *Handlers) SetServiceArchived(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req SetArchivedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Archived == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "archived (bool) required")
		return
	}
	svc, err := h.studio.SetArchived(c.Request.Context(), id, *req.Archived)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, svc)
}

//
// Listings
//

// ListDeletedServices godoc
// @ID          listDeletedServices
// @Summary     Soft-deleted services
// @Tags        Services
// @Produce     json
// @Success     200  {array}  domain.Service
// @Router      /services/deleted [get]
func (h *Handlers) ListDeletedServices(c *gin.Context) {
	h.list(c, func(ctx context.Context) ([]domain.Service, error) { return h.studio.ListDeleted(ctx) })
}

// ListPendingApproval godoc
// @ID          listPendingApproval
// @Summary     Services awaiting approval
// @Tags        Services
// @Produce     json
// @Success     200  {array}  domain.Service
// @Router      /services/pending-approval [get]
func (h *Handlers) ListPendingApproval(c *gin.Context) {
	h.list(c, func(ctx context.Context) ([]domain.Service, error) { return h.studio.ListPendingApproval(ctx) })
}

// ListApproved godoc
// @ID          listApproved
// @Summary     Approved services
// @Tags        Services
// @Produce     json
// @Param       client_id  query  int  false  "Only this client's services"
// @Success     200  {array}   domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/approved [get]
func (h *Handlers) ListApproved(c *gin.Context) {
	clientID, valid := queryID(c, "client_id")
	if !valid {
		return
	}
	h.list(c, func(ctx context.Context) ([]domain.Service, error) { return h.studio.ListApproved(ctx, clientID) })
}

// ListClientApproved godoc
// @ID          listClientApproved
// @Summary     A client's approved services
// @Tags        Clients
// @Produce     json
// @Param       id  path  int  true  "Client ID"
// @Success     200  {array}   domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /clients/{id}/services/approved [get]
func (h *Handlers) ListClientApproved(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	h.list(c, func(ctx context.Context) ([]domain.Service, error) { return h.studio.ListApproved(ctx, &id) })
}

// EmployeeServices returns a handler for one of the employee work lists:
// todo, in-progress, completed, finalized or shared.
//
// @ID          listEmployeeServices
// @Summary     An employee's work list
// @Tags        Employees
// @Produce     json
// @Param       id    path  int     true  "Employee ID"
// @Param       list  path  string  true  "List"  Enums(todo, in-progress, completed, finalized, shared)
// @Success     200  {array}   domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /employees/{id}/services/{list} [get]
func (h *Handlers) EmployeeServices(list string) gin.HandlerFunc {
	var fn func(ctx context.Context, employeeID uint) ([]domain.Service, error)
	switch list {
	case "todo":
		fn = h.studio.ListWorkToDo
	case "in-progress":
		fn = h.studio.ListInProgress
	case "completed":
		fn = h.studio.ListCompleted
	case "finalized":
		fn = h.studio.ListFinalized
	case "shared":
		fn = h.studio.ListSharedWithEmployee
	default:
		panic("handlers: unknown employee list " + list)
	}
	return func(c *gin.Context) {
		id, valid := pathID(c, "id")
		if !valid {
			return
		}
		h.list(c, func(ctx context.Context) ([]domain.Service, error) { return fn(ctx, id) })
	}
}

func (h *Handlers) list(c *gin.Context, fn func(ctx context.Context) ([]domain.Service, error)) {
	items, err := fn(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}
