// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds the counters behind service identifiers:
// the per-client sequence and the global service code sources.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-studio-backend/internal/domain"
)

// NextClientSequence returns the next sequence value for clientID and
// advances the stored counter. It must run inside a transaction (tx).
//
// The counter row is created lazily with next_value = 1, so the first
// service of a client always receives 1. The row is then read under an
// exclusive lock where the dialect supports it; on SQLite the single-writer
// database lock gives the same serialization.
func NextClientSequence(ctx context.Context, tx *gorm.DB, clientID uint) (int64, error) {
	db := tx.WithContext(ctx)

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.ClientCounter{ClientID: clientID, NextValue: 1}).Error; err != nil {
		return 0, err
	}

	q := db
	if SupportsRowLocks(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c domain.ClientCounter
	if err := q.Where("client_id = ?", clientID).First(&c).Error; err != nil {
		return 0, err
	}

	if err := db.Model(&domain.ClientCounter{}).
		Where("client_id = ?", clientID).
		Update("next_value", gorm.Expr("next_value + 1")).Error; err != nil {
		return 0, err
	}
	return c.NextValue, nil
}

// NextSequenceValue draws from the native service code sequence. Only valid
// when SupportsSequences(db) is true.
func NextSequenceValue(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Raw("SELECT nextval('" + serviceCodeSequence + "')").Scan(&n).Error
	return n, err
}

// NextSideTableValue inserts a row into the side table and returns its
// generated id.
func NextSideTableValue(ctx context.Context, db *gorm.DB) (int64, error) {
	rec := &domain.ServiceCodeSequence{}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return 0, err
	}
	return int64(rec.ID), nil
}
