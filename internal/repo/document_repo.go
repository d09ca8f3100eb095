// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Document
// model and its links to services.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-studio-backend/internal/domain"
)

// CreateDocument inserts d (without touching its Client association).
func CreateDocument(ctx context.Context, db *gorm.DB, d *domain.Document) error {
	return db.WithContext(ctx).Omit("Client").Create(d).Error
}

// GetDocument fetches a document by id.
func GetDocument(ctx context.Context, db *gorm.DB, id uint) (*domain.Document, error) {
	var d domain.Document
	if err := db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDocumentsByClient returns a client's documents, oldest first.
func ListDocumentsByClient(ctx context.Context, db *gorm.DB, clientID uint) ([]domain.Document, error) {
	var out []domain.Document
	err := db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListDocumentsByService returns the documents linked to a service.
func ListDocumentsByService(ctx context.Context, db *gorm.DB, serviceID uint) ([]domain.Document, error) {
	var out []domain.Document
	err := db.WithContext(ctx).
		Joins("JOIN service_documents ON service_documents.document_id = documents.id").
		Where("service_documents.service_id = ?", serviceID).
		Order("documents.id asc").
		Find(&out).Error
	return out, err
}

// UpdateDocumentContent records new file metadata after the bytes were
// replaced in storage.
func UpdateDocumentContent(ctx context.Context, db *gorm.DB, id uint, filename, contentType string, size int64) error {
	res := db.WithContext(ctx).Model(&domain.Document{}).Where("id = ?", id).Updates(map[string]any{
		"filename":     filename,
		"content_type": contentType,
		"size":         size,
		"updated_at":   time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkDocument attaches a document to a service. Linking twice is a no-op.
func LinkDocument(ctx context.Context, db *gorm.DB, serviceID, documentID uint) error {
	return db.WithContext(ctx).Exec(
		"INSERT INTO service_documents (service_id, document_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		serviceID, documentID,
	).Error
}
