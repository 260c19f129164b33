package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormIntentRepository implements reconciliation.IntentRepository using GORM
type GormIntentRepository struct {
	db *gorm.DB
}

// NewGormIntentRepository creates a new GormIntentRepository
func NewGormIntentRepository(db *gorm.DB) *GormIntentRepository {
	return &GormIntentRepository{db: db}
}

// Save persists a new intent
func (r *GormIntentRepository) Save(ctx context.Context, intent *reconciliation.Intent) error {
	return r.db.WithContext(ctx).Create(models.IntentModelFromDomain(intent)).Error
}

// Update updates an existing intent
func (r *GormIntentRepository) Update(ctx context.Context, intent *reconciliation.Intent) error {
	intent.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.IntentModel{}).
		Where("id = ?", intent.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(models.IntentModelFromDomain(intent))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID retrieves an intent, or a not-found error
func (r *GormIntentRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.Intent, error) {
	var model models.IntentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("intent", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRetryable retrieves partial-failure intents due for retry
func (r *GormIntentRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*reconciliation.Intent, error) {
	var rows []models.IntentModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND attempts < max_attempts AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			reconciliation.IntentPartialFailure, before).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toIntents(rows), nil
}

// FindStale retrieves intents stuck in one of statuses since before
func (r *GormIntentRepository) FindStale(ctx context.Context, statuses []reconciliation.IntentStatus, before time.Time, limit int) ([]*reconciliation.Intent, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	var rows []models.IntentModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toIntents(rows), nil
}

// FindByStatus lists intents newest first; an empty status lists all
func (r *GormIntentRepository) FindByStatus(ctx context.Context, status reconciliation.IntentStatus, page shared.Page) ([]*reconciliation.Intent, int64, error) {
	page = page.Normalize()
	query := r.db.WithContext(ctx).Model(&models.IntentModel{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.IntentModel
	if err := query.
		Order("created_at DESC").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toIntents(rows), total, nil
}

// CountByStatus returns count of intents for each status
func (r *GormIntentRepository) CountByStatus(ctx context.Context) (map[reconciliation.IntentStatus]int64, error) {
	type statusCount struct {
		Status reconciliation.IntentStatus
		Count  int64
	}

	var results []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.IntentModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[reconciliation.IntentStatus]int64, len(results))
	for _, c := range results {
		counts[c.Status] = c.Count
	}
	return counts, nil
}

func toIntents(rows []models.IntentModel) []*reconciliation.Intent {
	out := make([]*reconciliation.Intent, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ reconciliation.IntentRepository = (*GormIntentRepository)(nil)
