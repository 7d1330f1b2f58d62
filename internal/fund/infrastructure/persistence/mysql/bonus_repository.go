package mysql

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/contextx"
)

// bonusRepository 奖金记录仓储实现
type bonusRepository struct {
	db *gorm.DB
}

// NewBonusRepository 创建奖金仓储
func NewBonusRepository(db *gorm.DB) domain.BonusRepository {
	return &bonusRepository{db: db}
}

// Save 依赖 (courier_id, week_number, year, bonus_type) 唯一索引兜底幂等
func (r *bonusRepository) Save(ctx context.Context, bonus *domain.DeliveryBonus) error {
	err := r.getDB(ctx).WithContext(ctx).Create(bonus).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateBonus
		}
		return err
	}
	return nil
}

func (r *bonusRepository) FindForPeriod(ctx context.Context, courierID string, week, year int, bonusType domain.BonusType) (*domain.DeliveryBonus, error) {
	var bonus domain.DeliveryBonus
	err := r.getDB(ctx).WithContext(ctx).
		Where("courier_id = ? AND week_number = ? AND year = ? AND bonus_type = ? AND status <> ?",
			courierID, week, year, bonusType, domain.BonusStatusCancelled).
		First(&bonus).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bonus, nil
}

func (r *bonusRepository) UpdateStatus(ctx context.Context, bonusID string, status domain.BonusStatus) error {
	result := r.getDB(ctx).WithContext(ctx).Model(&domain.DeliveryBonus{}).
		Where("bonus_id = ?", bonusID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *bonusRepository) ListByPeriod(ctx context.Context, week, year int) ([]*domain.DeliveryBonus, error) {
	var bonuses []*domain.DeliveryBonus
	err := r.getDB(ctx).WithContext(ctx).
		Where("week_number = ? AND year = ?", week, year).
		Order("id asc").Find(&bonuses).Error
	if err != nil {
		return nil, err
	}
	return bonuses, nil
}

// Statistics 奖金聚合统计（排除已取消）
func (r *bonusRepository) Statistics(ctx context.Context) (*domain.BonusStatistics, error) {
	type row struct {
		BonusType domain.BonusType
		Count     int64
		Amount    string
	}

	var rows []row
	err := r.getDB(ctx).WithContext(ctx).Model(&domain.DeliveryBonus{}).
		Select("bonus_type, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("status <> ?", domain.BonusStatusCancelled).
		Group("bonus_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &domain.BonusStatistics{
		TotalAmount:  decimal.Zero,
		CountByType:  make(map[domain.BonusType]int64),
		AmountByType: make(map[domain.BonusType]decimal.Decimal),
	}
	for _, rw := range rows {
		amount, err := decimal.NewFromString(rw.Amount)
		if err != nil {
			return nil, err
		}
		stats.TotalCount += rw.Count
		stats.TotalAmount = stats.TotalAmount.Add(amount)
		stats.CountByType[rw.BonusType] = rw.Count
		stats.AmountByType[rw.BonusType] = amount
	}
	return stats, nil
}

func (r *bonusRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}
