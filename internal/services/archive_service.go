package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/repo"
)

// ArchiveService flips the archived flag on services. It does not look at
// the lifecycle status: a service can be archived in any state.
type ArchiveService struct {
	DB *gorm.DB
}

// NewArchiveService constructs an ArchiveService.
func NewArchiveService(db *gorm.DB) *ArchiveService {
	return &ArchiveService{DB: db}
}

// Archive marks a service archived. Archiving twice returns the same record.
func (s *ArchiveService) Archive(ctx context.Context, id uint) (*domain.Service, error) {
	return s.SetArchived(ctx, id, true)
}

// Unarchive clears the archived flag.
func (s *ArchiveService) Unarchive(ctx context.Context, id uint) (*domain.Service, error) {
	return s.SetArchived(ctx, id, false)
}

// SetArchived sets the archived flag and returns the current record.
func (s *ArchiveService) SetArchived(ctx context.Context, id uint, archived bool) (*domain.Service, error) {
	var out *domain.Service
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.SetServiceFlag(ctx, tx, id, "archived", archived); err != nil {
			return err
		}
		var err error
		out, err = repo.GetService(ctx, tx, id)
		return err
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrServiceNotFound
	}
	return out, err
}

// ListArchived returns archived services that are not soft-deleted.
func (s *ArchiveService) ListArchived(ctx context.Context) ([]domain.Service, error) {
	yes := true
	return repo.ListServices(ctx, s.DB, repo.ServiceFilter{Archived: &yes}, 0, 0)
}

// GetArchived returns a service only if it is archived.
func (s *ArchiveService) GetArchived(ctx context.Context, id uint) (*domain.Service, error) {
	svc, err := repo.GetService(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	if !svc.Archived {
		return nil, ErrNotArchived
	}
	return svc, nil
}

// DeleteArchived hard-deletes a service if it is archived. It reports
// whether a row was removed; a missing or unarchived service yields false
// with no error.
func (s *ArchiveService) DeleteArchived(ctx context.Context, id uint) (bool, error) {
	deleted := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc, err := repo.GetService(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil
			}
			return err
		}
		if !svc.Archived {
			return nil
		}
		if err := repo.DeleteService(ctx, tx, id); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}
