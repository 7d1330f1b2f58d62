package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/logger"
)

// SettingsService 费率与策略配置管理
type SettingsService struct {
	settings domain.SettingsRepository
	auditor  *Auditor
}

// NewSettingsService 创建配置服务
func NewSettingsService(settings domain.SettingsRepository, auditor *Auditor) *SettingsService {
	return &SettingsService{settings: settings, auditor: auditor}
}

// GetSettings 读取当前配置
func (s *SettingsService) GetSettings(ctx context.Context) (*domain.Settings, error) {
	return s.settings.Get(ctx)
}

// UpdateSettings 部分更新配置
// nil 字段保持不变；每个变更字段都进入变更历史；保存前整体校验。
func (s *SettingsService) UpdateSettings(ctx context.Context, cmd UpdateSettingsCommand) (*domain.Settings, error) {
	if strings.TrimSpace(cmd.AdminID) == "" {
		return nil, fmt.Errorf("%w: admin id is required", domain.ErrValidation)
	}

	for attempt := 0; ; attempt++ {
		cfg, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}

		changed := applySettingsUpdate(cfg, cmd)
		if changed == 0 {
			return cfg, nil
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		err = s.settings.Save(ctx, cfg)
		if err == nil {
			s.auditor.Record(ctx, domain.AuditSettings, "settings_updated",
				"", domain.DefaultSettingsKey, cmd.AdminID, map[string]any{
					"changed_fields": changed,
					"reason":         cmd.Reason,
				})
			logger.Info(ctx, "settings updated", "admin_id", cmd.AdminID, "changed_fields", changed)
			return cfg, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) || attempt >= maxConflictRetries {
			return nil, err
		}
		logger.Warn(ctx, "settings update hit version conflict, retrying", "attempt", attempt+1)
	}
}

// applySettingsUpdate 将非 nil 字段写入配置并记录变更，返回变更字段数
func applySettingsUpdate(cfg *domain.Settings, cmd UpdateSettingsCommand) int {
	changed := 0
	setDecimal := func(field string, target *decimal.Decimal, value *decimal.Decimal) {
		if value == nil || target.Equal(*value) {
			return
		}
		cfg.AppendChange(cmd.AdminID, field, target.String(), value.String())
		*target = *value
		changed++
	}

	setDecimal("commission_rate", &cfg.CommissionRate, cmd.MarketplaceCommissionRate)
	setDecimal("solidarity_rate", &cfg.SolidarityRate, cmd.SolidarityRate)
	setDecimal("fee_base", &cfg.FeeBase, cmd.LogisticFeeBase)
	setDecimal("fee_min", &cfg.FeeMin, cmd.LogisticFeeMin)
	setDecimal("fee_max", &cfg.FeeMax, cmd.LogisticFeeMax)
	setDecimal("commission_share", &cfg.CommissionShare, cmd.CommissionShare)
	setDecimal("fee_share", &cfg.FeeShare, cmd.FeeShare)
	setDecimal("solidarity_share", &cfg.SolidarityShare, cmd.SolidarityShare)

	if cmd.BonusTiers != nil {
		cfg.AppendChange(cmd.AdminID, "bonus_tiers", fmt.Sprintf("%d tiers", len(cfg.BonusTiers)), fmt.Sprintf("%d tiers", len(cmd.BonusTiers)))
		cfg.BonusTiers = cmd.BonusTiers
		changed++
	}
	if cmd.Governance != nil {
		cfg.AppendChange(cmd.AdminID, "governance", "", "policy replaced")
		cfg.Governance = *cmd.Governance
		changed++
	}
	if cmd.Zones != nil {
		cfg.AppendChange(cmd.AdminID, "zones", fmt.Sprintf("%d zones", len(cfg.Zones)), fmt.Sprintf("%d zones", len(cmd.Zones)))
		cfg.Zones = cmd.Zones
		changed++
	}
	if cmd.Demand != nil {
		cfg.AppendChange(cmd.AdminID, "demand", "", "demand multipliers replaced")
		cfg.Demand = *cmd.Demand
		changed++
	}
	return changed
}

// EnsureSettings 启动引导：配置缺失时写入默认值
func (s *SettingsService) EnsureSettings(ctx context.Context) (*domain.Settings, error) {
	cfg, err := s.settings.Get(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	cfg = domain.DefaultSettings()
	if err := s.settings.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("bootstrap settings: %w", err)
	}
	logger.Info(ctx, "default settings bootstrapped", "settings_key", cfg.SettingsKey)
	return cfg, nil
}
