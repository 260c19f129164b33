package persistence

import (
	"context"

	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"github.com/erp/order-reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMovementRepository implements stock.MovementRepository using GORM.
// The table is append-only.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Save appends a movement
func (r *GormMovementRepository) Save(ctx context.Context, m *stock.Movement) error {
	return r.db.WithContext(ctx).Create(models.StockMovementModelFromDomain(m)).Error
}

// FindByProduct lists movements of a product, newest first
func (r *GormMovementRepository) FindByProduct(ctx context.Context, productID int64, page shared.Page) ([]*stock.Movement, int64, error) {
	page = page.Normalize()
	query := r.db.WithContext(ctx).Model(&models.StockMovementModel{}).Where("product_id = ?", productID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.StockMovementModel
	if err := query.Order("created_at DESC").Offset(page.Offset).Limit(page.Limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toMovements(rows), total, nil
}

// FindByIntent lists movements recorded for a reconciliation intent, oldest first
func (r *GormMovementRepository) FindByIntent(ctx context.Context, intentID uuid.UUID) ([]*stock.Movement, error) {
	var rows []models.StockMovementModel
	if err := r.db.WithContext(ctx).Where("intent_id = ?", intentID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toMovements(rows), nil
}

// FindByOrder lists movements recorded against an order, oldest first
func (r *GormMovementRepository) FindByOrder(ctx context.Context, orderID int64) ([]*stock.Movement, error) {
	var rows []models.StockMovementModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toMovements(rows), nil
}

func toMovements(rows []models.StockMovementModel) []*stock.Movement {
	out := make([]*stock.Movement, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// GormTransactionJournal implements receivable.TransactionJournal using GORM
type GormTransactionJournal struct {
	db *gorm.DB
}

// NewGormTransactionJournal creates a new GormTransactionJournal
func NewGormTransactionJournal(db *gorm.DB) *GormTransactionJournal {
	return &GormTransactionJournal{db: db}
}

// Save appends a transaction
func (j *GormTransactionJournal) Save(ctx context.Context, tx *receivable.BalanceTransaction) error {
	return j.db.WithContext(ctx).Create(models.BalanceTransactionModelFromDomain(tx)).Error
}

// FindByCustomer lists transactions of a customer, most recent first
func (j *GormTransactionJournal) FindByCustomer(ctx context.Context, customerID int64, page shared.Page) ([]*receivable.BalanceTransaction, int64, error) {
	page = page.Normalize()
	query := j.db.WithContext(ctx).Model(&models.BalanceTransactionModel{}).Where("customer_id = ?", customerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.BalanceTransactionModel
	if err := query.Order("transaction_date DESC").Offset(page.Offset).Limit(page.Limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toBalanceTransactions(rows), total, nil
}

// FindByIntent lists transactions recorded for a reconciliation intent, oldest first
func (j *GormTransactionJournal) FindByIntent(ctx context.Context, intentID uuid.UUID) ([]*receivable.BalanceTransaction, error) {
	var rows []models.BalanceTransactionModel
	if err := j.db.WithContext(ctx).Where("intent_id = ?", intentID).Order("transaction_date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toBalanceTransactions(rows), nil
}

func toBalanceTransactions(rows []models.BalanceTransactionModel) []*receivable.BalanceTransaction {
	out := make([]*receivable.BalanceTransaction, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// GormAdjustmentRepository implements reconciliation.AdjustmentRepository using GORM
type GormAdjustmentRepository struct {
	db *gorm.DB
}

// NewGormAdjustmentRepository creates a new GormAdjustmentRepository
func NewGormAdjustmentRepository(db *gorm.DB) *GormAdjustmentRepository {
	return &GormAdjustmentRepository{db: db}
}

// Save persists a new adjustment record
func (r *GormAdjustmentRepository) Save(ctx context.Context, rec *reconciliation.AdjustmentRecord) error {
	return r.db.WithContext(ctx).Create(models.AdjustmentModelFromDomain(rec)).Error
}

// FindByOrder lists adjustments of an order, oldest first
func (r *GormAdjustmentRepository) FindByOrder(ctx context.Context, orderID int64) ([]*reconciliation.AdjustmentRecord, error) {
	var rows []models.AdjustmentModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*reconciliation.AdjustmentRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var (
	_ stock.MovementRepository            = (*GormMovementRepository)(nil)
	_ receivable.TransactionJournal       = (*GormTransactionJournal)(nil)
	_ reconciliation.AdjustmentRepository = (*GormAdjustmentRepository)(nil)
)
