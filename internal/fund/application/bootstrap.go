package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/logger"
)

// Bootstrapper 启动引导：确保资金池与配置存在
type Bootstrapper struct {
	funds    domain.FundRepository
	settings *SettingsService
}

// NewBootstrapper 创建引导器
func NewBootstrapper(funds domain.FundRepository, settings *SettingsService) *Bootstrapper {
	return &Bootstrapper{funds: funds, settings: settings}
}

// Ensure 幂等引导：缺失时创建默认配置与空资金池
func (b *Bootstrapper) Ensure(ctx context.Context, fundID string) error {
	cfg, err := b.settings.EnsureSettings(ctx)
	if err != nil {
		return err
	}

	_, err = b.funds.GetActive(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	fund := domain.NewFund(fundID)
	fund.Governance.EmergencyThreshold = cfg.Governance.EmergencyThreshold
	fund.Governance.SurplusThreshold = cfg.Governance.SurplusThreshold
	if err := b.funds.Save(ctx, fund); err != nil {
		return fmt.Errorf("bootstrap fund: %w", err)
	}
	logger.Info(ctx, "empty fund bootstrapped", "fund_id", fundID)
	return nil
}
