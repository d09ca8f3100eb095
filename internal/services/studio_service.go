// Package services – StudioService
//
// This file implements StudioService, which owns the lifecycle of services:
// creation with per-client sequence and global code allocation, the
// CREATED → IN_PROGRESS → PENDING_APPROVAL → APPROVED|REJECTED pipeline,
// employee assignment, soft/hard deletion and the employee work listings.
//
// Status changes are conditional updates; a losing racer sees zero affected
// rows and gets ErrInvalidTransition (or ErrServiceNotFound) instead of
// overwriting a newer status.
package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/observability"
	"github.com/tbourn/go-studio-backend/internal/repo"
	"github.com/tbourn/go-studio-backend/internal/utils"
)

// CreateServiceInput carries the parameters of a new service. Optional
// fields are nil when not supplied.
type CreateServiceInput struct {
	ClientID          uint
	Type              domain.ServiceType
	SequenceCode      *int64
	ServiceCode       *string
	RequestedAt       *time.Time
	DeliveryDueAt     *time.Time
	CreatorEmployeeID *uint
}

// ServicePatch lists the mutable attributes of a service. Nil fields are left
// untouched. Type holds the raw value; unknown types are ignored.
type ServicePatch struct {
	Type          *string
	RequestedAt   *time.Time
	DeliveryDueAt *time.Time
}

// StudioService coordinates service persistence and lifecycle transitions.
type StudioService struct {
	DB      *gorm.DB
	Codes   CodeSource
	Archive *ArchiveService
	Clock   clock.Clock
	Log     zerolog.Logger

	// DeliveryMonths is the default delivery window in calendar months.
	DeliveryMonths int
}

// NewStudioService constructs a StudioService with the default delivery
// window. A nil clk uses the wall clock.
func NewStudioService(db *gorm.DB, codes CodeSource, clk clock.Clock, lg zerolog.Logger) *StudioService {
	if clk == nil {
		clk = clock.WallClock
	}
	return &StudioService{
		DB:             db,
		Codes:          codes,
		Archive:        NewArchiveService(db),
		Clock:          clk,
		Log:            lg,
		DeliveryMonths: domain.DefaultDeliveryMonths,
	}
}

var studioTracer = observability.Tracer("services/StudioService")

// maxCodeAttempts bounds how many generated codes Create tries before it
// reports a conflict.
const maxCodeAttempts = 5

// Create registers a new service in CREATED.
//
// The per-client sequence is drawn in its own transaction before the service
// row is written, so a failed insert consumes the value without reusing it.
// A generated service code that turns out to be taken is replaced by a fresh
// one. An unknown creator employee is ignored.
func (s *StudioService) Create(ctx context.Context, in CreateServiceInput) (*domain.Service, error) {
	ctx, span := studioTracer.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.Int("client.id", int(in.ClientID)),
			attribute.String("service.type", string(in.Type)),
		),
	)
	defer span.End()

	if !in.Type.Valid() {
		return nil, ErrInvalidServiceType
	}

	client, err := repo.GetClient(ctx, s.DB, in.ClientID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	requested := s.Clock.Now().UTC()
	if in.RequestedAt != nil {
		requested = *in.RequestedAt
	}
	var due time.Time
	if in.DeliveryDueAt != nil {
		if in.DeliveryDueAt.Before(requested) {
			return nil, ErrInvalidDeliveryWindow
		}
		due = *in.DeliveryDueAt
	} else {
		due = domain.AddMonthsClamped(requested, s.deliveryMonths())
	}

	creator := in.CreatorEmployeeID
	if creator != nil {
		if _, err := repo.GetEmployee(ctx, s.DB, *creator); err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				return nil, err
			}
			s.Log.Debug().Uint("employee_id", *creator).Msg("creator employee not found; service left unassigned")
			creator = nil
		}
	}

	var seq int64
	if in.SequenceCode != nil {
		seq = *in.SequenceCode
	} else {
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			n, err := repo.NextClientSequence(ctx, tx, client.ID)
			seq = n
			return err
		})
		if err != nil {
			return nil, transientStore(err)
		}
	}

	code := ""
	if in.ServiceCode != nil {
		code = strings.TrimSpace(*in.ServiceCode)
	}
	generated := code == ""

	var svc *domain.Service
	for attempt := 0; ; attempt++ {
		if generated {
			code = s.Codes.Next(ctx, attempt)
		}
		svc = &domain.Service{
			ClientID:         client.ID,
			SequenceCode:     seq,
			ServiceCode:      code,
			ClientGivenName:  client.User.GivenName,
			ClientFamilyName: client.User.FamilyName,
			RequestedAt:      requested,
			DeliveryDueAt:    &due,
			Status:           domain.StatusCreated,
			Type:             in.Type,
			CreatedByID:      creator,
		}
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := repo.CreateService(ctx, tx, svc); err != nil {
				return err
			}
			if creator != nil {
				return repo.AssignEmployee(ctx, tx, svc.ID, *creator)
			}
			return nil
		})
		if err == nil {
			break
		}
		if !repo.IsUniqueViolation(err) {
			return nil, err
		}
		if !generated || attempt+1 >= maxCodeAttempts {
			return nil, ErrServiceConflict
		}
		s.Log.Warn().Str("service_code", code).Int("attempt", attempt+1).Msg("service code taken; generating another")
	}

	observability.ServicesCreated.Inc()
	s.Log.Info().
		Uint("service_id", svc.ID).
		Str("service_code", svc.ServiceCode).
		Int64("sequence_code", svc.SequenceCode).
		Msg("service created")

	return repo.GetService(ctx, s.DB, svc.ID)
}

// Get returns a service by id, soft-deleted ones included.
func (s *StudioService) Get(ctx context.Context, id uint) (*domain.Service, error) {
	svc, err := repo.GetService(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrServiceNotFound
	}
	return svc, err
}

// FindByCode returns a service by its global code, soft-deleted ones included.
func (s *StudioService) FindByCode(ctx context.Context, code string) (*domain.Service, error) {
	svc, err := repo.GetServiceByCode(ctx, s.DB, strings.TrimSpace(code))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrServiceNotFound
	}
	return svc, err
}

// StatusCounts reports how many active services sit in each status,
// optionally for one client. Every status is present, zero or not.
func (s *StudioService) StatusCounts(ctx context.Context, clientID *uint) (map[domain.ServiceStatus]int64, error) {
	got, err := repo.ServiceStatusCounts(ctx, s.DB, repo.ServiceFilter{ClientID: clientID})
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ServiceStatus]int64, len(domain.Statuses))
	for _, st := range domain.Statuses {
		out[st] = got[st]
	}
	return out, nil
}

// List returns a page of active services, optionally for one client, and
// the total count.
func (s *StudioService) List(ctx context.Context, clientID *uint, page, pageSize int) ([]domain.Service, int64, error) {
	ctx, span := studioTracer.Start(ctx, "List",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = utils.DefaultPageSize
	}
	f := repo.ServiceFilter{ClientID: clientID}

	total, err := repo.CountServices(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Service{}, 0, nil
	}
	items, err := repo.ListServices(ctx, s.DB, f, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// ListDeleted returns the soft-deleted services.
func (s *StudioService) ListDeleted(ctx context.Context) ([]domain.Service, error) {
	return repo.ListServices(ctx, s.DB, repo.ServiceFilter{Deleted: repo.OnlyDeleted}, 0, 0)
}

// ListWorkToDo returns the CREATED services assigned to an employee.
func (s *StudioService) ListWorkToDo(ctx context.Context, employeeID uint) ([]domain.Service, error) {
	return s.listForEmployee(ctx, employeeID, repo.ServiceFilter{
		Statuses: []domain.ServiceStatus{domain.StatusCreated},
	})
}

// ListInProgress returns the IN_PROGRESS services assigned to an employee.
func (s *StudioService) ListInProgress(ctx context.Context, employeeID uint) ([]domain.Service, error) {
	return s.listForEmployee(ctx, employeeID, repo.ServiceFilter{
		Statuses: []domain.ServiceStatus{domain.StatusInProgress},
	})
}

// ListCompleted returns the APPROVED, REJECTED or DELIVERED services
// assigned to an employee.
func (s *StudioService) ListCompleted(ctx context.Context, employeeID uint) ([]domain.Service, error) {
	return s.listForEmployee(ctx, employeeID, repo.ServiceFilter{
		Statuses: []domain.ServiceStatus{domain.StatusApproved, domain.StatusRejected, domain.StatusDelivered},
	})
}

// ListFinalized returns the APPROVED or REJECTED services assigned to an
// employee.
func (s *StudioService) ListFinalized(ctx context.Context, employeeID uint) ([]domain.Service, error) {
	return s.listForEmployee(ctx, employeeID, repo.ServiceFilter{
		Statuses: []domain.ServiceStatus{domain.StatusApproved, domain.StatusRejected},
	})
}

// ListSharedWithEmployee returns services assigned to an employee that were
// opened by someone else (or by nobody).
func (s *StudioService) ListSharedWithEmployee(ctx context.Context, employeeID uint) ([]domain.Service, error) {
	return s.listForEmployee(ctx, employeeID, repo.ServiceFilter{NotCreatedBy: &employeeID})
}

// ListPendingApproval returns every active service awaiting approval.
func (s *StudioService) ListPendingApproval(ctx context.Context) ([]domain.Service, error) {
	return repo.ListServices(ctx, s.DB, repo.ServiceFilter{
		Statuses: []domain.ServiceStatus{domain.StatusPendingApproval},
	}, 0, 0)
}

// ListApproved returns approved active services, optionally for one client.
func (s *StudioService) ListApproved(ctx context.Context, clientID *uint) ([]domain.Service, error) {
	if clientID != nil {
		if _, err := repo.GetClient(ctx, s.DB, *clientID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrClientNotFound
			}
			return nil, err
		}
	}
	return repo.ListServices(ctx, s.DB, repo.ServiceFilter{
		ClientID: clientID,
		Statuses: []domain.ServiceStatus{domain.StatusApproved},
	}, 0, 0)
}

func (s *StudioService) listForEmployee(ctx context.Context, employeeID uint, f repo.ServiceFilter) ([]domain.Service, error) {
	if _, err := repo.GetEmployee(ctx, s.DB, employeeID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}
	f.EmployeeID = &employeeID
	return repo.ListServices(ctx, s.DB, f, 0, 0)
}

// Initialize moves a CREATED service to IN_PROGRESS.
func (s *StudioService) Initialize(ctx context.Context, id uint) (*domain.Service, error) {
	return s.transition(ctx, id, domain.StatusCreated, domain.StatusInProgress)
}

// ForwardForApproval moves an IN_PROGRESS service to PENDING_APPROVAL.
func (s *StudioService) ForwardForApproval(ctx context.Context, id uint) (*domain.Service, error) {
	return s.transition(ctx, id, domain.StatusInProgress, domain.StatusPendingApproval)
}

// Approve moves a PENDING_APPROVAL service to APPROVED.
func (s *StudioService) Approve(ctx context.Context, id uint) (*domain.Service, error) {
	return s.transition(ctx, id, domain.StatusPendingApproval, domain.StatusApproved)
}

// Reject moves a PENDING_APPROVAL service to REJECTED.
func (s *StudioService) Reject(ctx context.Context, id uint) (*domain.Service, error) {
	return s.transition(ctx, id, domain.StatusPendingApproval, domain.StatusRejected)
}

func (s *StudioService) transition(ctx context.Context, id uint, from, to domain.ServiceStatus) (*domain.Service, error) {
	ctx, span := studioTracer.Start(ctx, "Transition",
		trace.WithAttributes(
			attribute.Int("service.id", int(id)),
			attribute.String("status.from", string(from)),
			attribute.String("status.to", string(to)),
		),
	)
	defer span.End()

	if !domain.CanTransition(from, to) {
		return nil, ErrInvalidTransition
	}

	var out *domain.Service
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repo.UpdateServiceStatus(ctx, tx, id, from, to)
		if err != nil {
			return err
		}
		if n == 0 {
			ok, err := repo.ServiceExists(ctx, tx, id)
			if err != nil {
				return err
			}
			if !ok {
				return ErrServiceNotFound
			}
			return ErrInvalidTransition
		}
		out, err = repo.GetService(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.ServiceTransitions.WithLabelValues(string(to)).Inc()
	s.Log.Info().Uint("service_id", id).Str("from", string(from)).Str("to", string(to)).Msg("service status changed")
	return out, nil
}

// AssignEmployee adds an employee to the service's assigned set. Assigning
// the same employee again is a no-op.
func (s *StudioService) AssignEmployee(ctx context.Context, serviceID, employeeID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.ServiceExists(ctx, tx, serviceID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrServiceNotFound
		}
		if _, err := repo.GetEmployee(ctx, tx, employeeID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrEmployeeNotFound
			}
			return err
		}
		return repo.AssignEmployee(ctx, tx, serviceID, employeeID)
	})
}

// ListAssignedEmployees returns the employees assigned to a service.
func (s *StudioService) ListAssignedEmployees(ctx context.Context, serviceID uint) ([]domain.Employee, error) {
	ok, err := repo.ServiceExists(ctx, s.DB, serviceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrServiceNotFound
	}
	return repo.ListAssignedEmployees(ctx, s.DB, serviceID)
}

// SoftDelete hides a service from active listings.
func (s *StudioService) SoftDelete(ctx context.Context, id uint) error {
	return s.setDeleted(ctx, id, true)
}

// Restore clears the soft-delete flag.
func (s *StudioService) Restore(ctx context.Context, id uint) error {
	return s.setDeleted(ctx, id, false)
}

func (s *StudioService) setDeleted(ctx context.Context, id uint, v bool) error {
	err := repo.SetServiceFlag(ctx, s.DB, id, "soft_deleted", v)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrServiceNotFound
	}
	return err
}

// HardDelete removes a service and its assignment and document links.
func (s *StudioService) HardDelete(ctx context.Context, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.DeleteService(ctx, tx, id)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrServiceNotFound
	}
	return err
}

// SetArchived sets the archived flag.
func (s *StudioService) SetArchived(ctx context.Context, id uint, archived bool) (*domain.Service, error) {
	return s.Archive.SetArchived(ctx, id, archived)
}

// Modify applies a patch to a service and returns the updated record.
// An unknown type is skipped; the resulting delivery window must not end
// before it starts.
func (s *StudioService) Modify(ctx context.Context, id uint, p ServicePatch) (*domain.Service, error) {
	ctx, span := studioTracer.Start(ctx, "Modify",
		trace.WithAttributes(attribute.Int("service.id", int(id))),
	)
	defer span.End()

	var out *domain.Service
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.GetService(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrServiceNotFound
			}
			return err
		}

		fields := map[string]any{}
		if p.Type != nil {
			if t, ok := domain.ParseServiceType(*p.Type); ok {
				fields["type"] = t
			} else {
				s.Log.Debug().Uint("service_id", id).Str("type", *p.Type).Msg("ignoring unknown service type")
			}
		}
		requested := cur.RequestedAt
		if p.RequestedAt != nil {
			requested = *p.RequestedAt
			fields["requested_at"] = requested
		}
		due := cur.DeliveryDueAt
		if p.DeliveryDueAt != nil {
			due = p.DeliveryDueAt
			fields["delivery_due_at"] = *due
		}
		if due != nil && due.Before(requested) {
			return ErrInvalidDeliveryWindow
		}

		if err := repo.UpdateServiceFields(ctx, tx, id, fields); err != nil {
			return err
		}
		out, err = repo.GetService(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StudioService) deliveryMonths() int {
	if s.DeliveryMonths > 0 {
		return s.DeliveryMonths
	}
	return domain.DefaultDeliveryMonths
}

// transientStore marks lock and connection failures as retryable.
func transientStore(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", ErrTransientStore, err)
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"database is locked", "busy", "lock timeout", "deadlock", "could not serialize", "connection refused", "connection reset"} {
		if strings.Contains(msg, p) {
			return fmt.Errorf("%w: %w", ErrTransientStore, err)
		}
	}
	return err
}
