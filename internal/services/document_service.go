// Package services – DocumentService
//
// DocumentService stores client documents: the bytes go to a storage.Store
// under "clients/<id>/<uuid>-<name>" and the metadata to the documents
// table. A document belongs to one client and may be linked to any of that
// client's services.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/repo"
	"github.com/tbourn/go-studio-backend/internal/storage"
)

// UploadInput describes a new document.
type UploadInput struct {
	ClientID    uint
	Type        string
	Filename    string
	ContentType string
	Body        io.Reader
	ServiceID   *uint
}

// DocumentService coordinates blob storage and document metadata.
type DocumentService struct {
	DB    *gorm.DB
	Store storage.Store
	Log   zerolog.Logger

	// MaxBytes caps a single upload; 0 disables the check.
	MaxBytes int64
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(db *gorm.DB, store storage.Store, maxBytes int64, lg zerolog.Logger) *DocumentService {
	return &DocumentService{DB: db, Store: store, MaxBytes: maxBytes, Log: lg}
}

// Upload stores a document for a client and optionally links it to one of
// the client's services.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*domain.Document, error) {
	dt, ok := domain.ParseDocumentType(in.Type)
	if !ok {
		return nil, ErrInvalidDocumentType
	}
	if _, err := repo.GetClient(ctx, s.DB, in.ClientID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if in.ServiceID != nil {
		if err := s.checkServiceOwner(ctx, s.DB, *in.ServiceID, in.ClientID); err != nil {
			return nil, err
		}
	}

	name := safeFilename(in.Filename)
	key := fmt.Sprintf("clients/%d/%s-%s", in.ClientID, uuid.NewString(), name)
	size, err := s.put(ctx, key, in.Body, in.ContentType)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ClientID:    in.ClientID,
		Filename:    name,
		Type:        dt,
		StorageKey:  key,
		ContentType: in.ContentType,
		Size:        size,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateDocument(ctx, tx, doc); err != nil {
			return err
		}
		if in.ServiceID != nil {
			return repo.LinkDocument(ctx, tx, *in.ServiceID, doc.ID)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, key)
		return nil, err
	}
	return doc, nil
}

// ListForClient returns a client's documents.
func (s *DocumentService) ListForClient(ctx context.Context, clientID uint) ([]domain.Document, error) {
	if _, err := repo.GetClient(ctx, s.DB, clientID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return repo.ListDocumentsByClient(ctx, s.DB, clientID)
}

// ListForService returns the documents linked to a service.
func (s *DocumentService) ListForService(ctx context.Context, serviceID uint) ([]domain.Document, error) {
	ok, err := repo.ServiceExists(ctx, s.DB, serviceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrServiceNotFound
	}
	return repo.ListDocumentsByService(ctx, s.DB, serviceID)
}

// Replace overwrites a document's content, keeping its id and links.
func (s *DocumentService) Replace(ctx context.Context, id uint, filename, contentType string, body io.Reader) (*domain.Document, error) {
	doc, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	size, err := s.put(ctx, doc.StorageKey, body, contentType)
	if err != nil {
		return nil, err
	}
	name := doc.Filename
	if strings.TrimSpace(filename) != "" {
		name = safeFilename(filename)
	}
	if err := repo.UpdateDocumentContent(ctx, s.DB, id, name, contentType, size); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

// Open returns a document and a reader over its content. The caller closes
// the reader.
func (s *DocumentService) Open(ctx context.Context, id uint) (*domain.Document, io.ReadCloser, error) {
	doc, err := s.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, err
	}
	return doc, rc, nil
}

// AttachToService links an existing document to a service of the same
// client. Linking twice is a no-op.
func (s *DocumentService) AttachToService(ctx context.Context, serviceID, docID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := repo.GetDocument(ctx, tx, docID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}
		if err := s.checkServiceOwner(ctx, tx, serviceID, doc.ClientID); err != nil {
			return err
		}
		return repo.LinkDocument(ctx, tx, serviceID, docID)
	})
}

func (s *DocumentService) get(ctx context.Context, id uint) (*domain.Document, error) {
	doc, err := repo.GetDocument(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	return doc, err
}

func (s *DocumentService) checkServiceOwner(ctx context.Context, db *gorm.DB, serviceID, clientID uint) error {
	svc, err := repo.GetService(ctx, db, serviceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrServiceNotFound
		}
		return err
	}
	if svc.ClientID != clientID {
		return ErrDocumentClientMismatch
	}
	return nil
}

// put validates body against the size limit and writes it under key.
// Content is read fully before the store is touched, so a rejected upload
// never replaces existing bytes.
func (s *DocumentService) put(ctx context.Context, key string, body io.Reader, contentType string) (int64, error) {
	if body == nil {
		return 0, ErrEmptyDocument
	}
	r := body
	if s.MaxBytes > 0 {
		r = io.LimitReader(body, s.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	switch {
	case len(data) == 0:
		return 0, ErrEmptyDocument
	case s.MaxBytes > 0 && int64(len(data)) > s.MaxBytes:
		return 0, ErrDocumentTooLarge
	}
	return s.Store.Put(ctx, key, bytes.NewReader(data), contentType)
}

func (s *DocumentService) discard(ctx context.Context, key string) {
	if err := s.Store.Delete(ctx, key); err != nil {
		s.Log.Warn().Err(err).Str("key", key).Msg("failed to remove blob")
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeFilename keeps the base name of an upload and replaces characters
// that are awkward in object keys.
func safeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "document"
	}
	if len(name) > 120 {
		name = name[len(name)-120:]
	}
	return name
}
