package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTransitionStore implements reconciliation.TransitionStore using GORM.
// It is the durable guard backend: records survive restarts and are shared
// by every replica that talks to the same database.
type GormTransitionStore struct {
	db *gorm.DB
}

// NewGormTransitionStore creates a new GormTransitionStore
func NewGormTransitionStore(db *gorm.DB) *GormTransitionStore {
	return &GormTransitionStore{db: db}
}

// FindActive returns the active record for key, or shared.ErrNotFound
func (s *GormTransitionStore) FindActive(ctx context.Context, key reconciliation.TransitionKey) (*reconciliation.TransitionRecord, error) {
	var model models.TransitionRecordModel
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND kind = ? AND from_state = ? AND to_state = ? AND applied = ? AND superseded_at IS NULL",
			key.OrderID, key.Kind, key.From, key.To, true).
		Order("applied_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// MarkApplied supersedes the active records of the same order and kind and
// inserts rec in one transaction
func (s *GormTransitionStore) MarkApplied(ctx context.Context, rec *reconciliation.TransitionRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&models.TransitionRecordModel{}).
			Where("order_id = ? AND kind = ? AND superseded_at IS NULL", rec.Key.OrderID, rec.Key.Kind).
			Update("superseded_at", now).Error; err != nil {
			return err
		}
		return tx.Create(models.TransitionRecordModelFromDomain(rec)).Error
	})
}

// ListByOrder returns all records of an order, oldest first
func (s *GormTransitionStore) ListByOrder(ctx context.Context, orderID int64) ([]*reconciliation.TransitionRecord, error) {
	var rows []models.TransitionRecordModel
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("applied_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*reconciliation.TransitionRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var _ reconciliation.TransitionStore = (*GormTransitionStore)(nil)
