package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/contextx"
)

// transactionRepository 账务流水仓储实现
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建账务流水仓储
func NewTransactionRepository(db *gorm.DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Save(ctx context.Context, txn *domain.Transaction) error {
	return r.getDB(ctx).WithContext(ctx).Create(txn).Error
}

func (r *transactionRepository) Get(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := r.getDB(ctx).WithContext(ctx).Where("transaction_id = ?", transactionID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) FindCompletedByOrder(ctx context.Context, fundID, orderID string, txnType domain.TransactionType) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := r.getDB(ctx).WithContext(ctx).
		Where("fund_id = ? AND order_id = ? AND type = ? AND status = ?",
			fundID, orderID, txnType, domain.TransactionStatusCompleted).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) FindCompletedByDeliveryAndOrder(ctx context.Context, fundID, deliveryID, orderID string) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := r.getDB(ctx).WithContext(ctx).
		Where("fund_id = ? AND delivery_id = ? AND order_id = ? AND type IN ? AND status = ?",
			fundID, deliveryID, orderID,
			[]domain.TransactionType{domain.TransactionTypePayment, domain.TransactionTypeBonus, domain.TransactionTypeSurplus},
			domain.TransactionStatusCompleted).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) List(ctx context.Context, filter domain.TransactionFilter, page, limit int) ([]*domain.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Transaction{})
	if filter.FundID != "" {
		query = query.Where("fund_id = ?", filter.FundID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OrderID != "" {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.DeliveryID != "" {
		query = query.Where("delivery_id = ?", filter.DeliveryID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []*domain.Transaction
	err := query.Order("id desc").Limit(limit).Offset((page - 1) * limit).Find(&txns).Error
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

func (r *transactionRepository) Recent(ctx context.Context, fundID string, limit int) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	err := r.getDB(ctx).WithContext(ctx).
		Where("fund_id = ?", fundID).
		Order("id desc").Limit(limit).Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// SumSince 金额绝对值求和，出账流水以负数存储
func (r *transactionRepository) SumSince(ctx context.Context, fundID string, types []domain.TransactionType, since time.Time) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.getDB(ctx).WithContext(ctx).Model(&domain.Transaction{}).
		Select("SUM(ABS(amount))").
		Where("fund_id = ? AND type IN ? AND status = ? AND created_at >= ?",
			fundID, types, domain.TransactionStatusCompleted, since).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *transactionRepository) CountSince(ctx context.Context, fundID string, types []domain.TransactionType, since time.Time) (int64, error) {
	var count int64
	err := r.getDB(ctx).WithContext(ctx).Model(&domain.Transaction{}).
		Where("fund_id = ? AND type IN ? AND status = ? AND created_at >= ?",
			fundID, types, domain.TransactionStatusCompleted, since).
		Count(&count).Error
	return count, err
}

func (r *transactionRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}
