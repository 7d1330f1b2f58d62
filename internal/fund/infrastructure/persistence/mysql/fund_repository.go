// 包 mysql 资金池核心的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/contextx"
)

// fundRepository 资金池仓储实现
type fundRepository struct {
	db *gorm.DB
}

// NewFundRepository 创建资金池仓储
func NewFundRepository(db *gorm.DB) domain.FundRepository {
	return &fundRepository{db: db}
}

// Save 保存资金池（带乐观锁）
// 更新条件包含版本号，RowsAffected 为 0 即并发冲突。
func (r *fundRepository) Save(ctx context.Context, fund *domain.Fund) error {
	db := r.getDB(ctx)

	if fund.ID == 0 {
		return db.WithContext(ctx).Create(fund).Error
	}

	currentVersion := fund.Version
	result := db.WithContext(ctx).Model(&domain.Fund{}).
		Where("fund_id = ? AND version = ?", fund.FundID, currentVersion).
		Updates(map[string]any{
			"current_balance":        fund.CurrentBalance,
			"total_contributions":    fund.TotalContributions,
			"total_payments":         fund.TotalPayments,
			"emergency_reserve":      fund.EmergencyReserve,
			"marketplace_commission": fund.MarketplaceCommission,
			"logistic_fee":           fund.LogisticFee,
			"solidarity_pool":        fund.SolidarityPool,
			"daily_roi":              fund.DailyROI,
			"weekly_roi":             fund.WeeklyROI,
			"monthly_roi":            fund.MonthlyROI,
			"break_even_point":       fund.BreakEvenPoint,
			"governance":             fund.Governance,
			"status":                 fund.Status,
			"version":                currentVersion + 1,
			"updated_at":             time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}

	fund.Version = currentVersion + 1
	return nil
}

func (r *fundRepository) Get(ctx context.Context, fundID string) (*domain.Fund, error) {
	var fund domain.Fund
	err := r.getDB(ctx).WithContext(ctx).Where("fund_id = ?", fundID).First(&fund).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &fund, nil
}

// GetActive 返回唯一的逻辑资金池
func (r *fundRepository) GetActive(ctx context.Context) (*domain.Fund, error) {
	var fund domain.Fund
	err := r.getDB(ctx).WithContext(ctx).Order("id asc").First(&fund).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &fund, nil
}

// WithTx 在单个数据库事务中执行 fn，事务句柄通过 context 透传
func (r *fundRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

func (r *fundRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}
