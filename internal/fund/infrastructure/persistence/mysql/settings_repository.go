package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/contextx"
)

// settingsRepository 配置仓储实现
type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository 创建配置仓储
func NewSettingsRepository(db *gorm.DB) domain.SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	var settings domain.Settings
	err := r.getDB(ctx).WithContext(ctx).
		Where("settings_key = ?", domain.DefaultSettingsKey).
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

// Save 版本化保存配置
func (r *settingsRepository) Save(ctx context.Context, settings *domain.Settings) error {
	db := r.getDB(ctx)

	if settings.ID == 0 {
		return db.WithContext(ctx).Create(settings).Error
	}

	currentVersion := settings.Version
	result := db.WithContext(ctx).Model(&domain.Settings{}).
		Where("settings_key = ? AND version = ?", settings.SettingsKey, currentVersion).
		Updates(map[string]any{
			"commission_rate":  settings.CommissionRate,
			"solidarity_rate":  settings.SolidarityRate,
			"fee_base":         settings.FeeBase,
			"fee_min":          settings.FeeMin,
			"fee_max":          settings.FeeMax,
			"commission_share": settings.CommissionShare,
			"fee_share":        settings.FeeShare,
			"solidarity_share": settings.SolidarityShare,
			"withdrawal_limit": settings.WithdrawalLimit,
			"bonus_tiers":      settings.BonusTiers,
			"governance":       settings.Governance,
			"zones":            settings.Zones,
			"demand":           settings.Demand,
			"change_history":   settings.ChangeHistory,
			"version":          currentVersion + 1,
			"updated_at":       time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}

	settings.Version = currentVersion + 1
	return nil
}

func (r *settingsRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}
