package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
)

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("部分更新带变更历史", func(t *testing.T) {
		repo := newFakeSettingsRepo(domain.DefaultSettings())
		svc := NewSettingsService(repo, newTestAuditor())

		newRate := decimal.NewFromFloat(0.13)
		newFee := decimal.NewFromFloat(0.6)
		updated, err := svc.UpdateSettings(ctx, UpdateSettingsCommand{
			MarketplaceCommissionRate: &newRate,
			LogisticFeeBase:           &newFee,
			AdminID:                   "admin-1",
			Reason:                    "quarterly review",
		})
		require.NoError(t, err)
		assert.True(t, updated.CommissionRate.Equal(newRate))
		assert.True(t, updated.FeeBase.Equal(newFee))
		require.Len(t, updated.ChangeHistory, 2)
		assert.Equal(t, "admin-1", updated.ChangeHistory[0].ChangedBy)

		// 未触及的字段保持默认
		assert.True(t, updated.SolidarityRate.Equal(decimal.NewFromFloat(0.15)))
	})

	t.Run("非法组合被整体拒绝", func(t *testing.T) {
		repo := newFakeSettingsRepo(domain.DefaultSettings())
		svc := NewSettingsService(repo, newTestAuditor())

		badShare := decimal.NewFromFloat(0.9)
		_, err := svc.UpdateSettings(ctx, UpdateSettingsCommand{
			CommissionShare: &badShare,
			AdminID:         "admin-1",
		})
		require.ErrorIs(t, err, domain.ErrValidation)

		// 存储未被污染
		cfg, _ := repo.Get(ctx)
		assert.True(t, cfg.CommissionShare.Equal(decimal.NewFromFloat(0.60)))
		assert.Empty(t, cfg.ChangeHistory)
	})

	t.Run("无变更时不落盘", func(t *testing.T) {
		repo := newFakeSettingsRepo(domain.DefaultSettings())
		svc := NewSettingsService(repo, newTestAuditor())
		before, _ := repo.Get(ctx)

		same := before.CommissionRate
		updated, err := svc.UpdateSettings(ctx, UpdateSettingsCommand{
			MarketplaceCommissionRate: &same,
			AdminID:                   "admin-1",
		})
		require.NoError(t, err)
		assert.Equal(t, before.Version, updated.Version)
		assert.Empty(t, updated.ChangeHistory)
	})

	t.Run("缺少操作者被拒绝", func(t *testing.T) {
		svc := NewSettingsService(newFakeSettingsRepo(domain.DefaultSettings()), newTestAuditor())
		_, err := svc.UpdateSettings(ctx, UpdateSettingsCommand{})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestEnsureSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("缺失时写入默认配置", func(t *testing.T) {
		repo := newFakeSettingsRepo(nil)
		svc := NewSettingsService(repo, newTestAuditor())

		cfg, err := svc.EnsureSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultSettingsKey, cfg.SettingsKey)

		stored, err := repo.Get(ctx)
		require.NoError(t, err)
		require.NoError(t, stored.Validate())
	})

	t.Run("已存在时原样返回", func(t *testing.T) {
		existing := domain.DefaultSettings()
		existing.CommissionRate = decimal.NewFromFloat(0.2)
		repo := newFakeSettingsRepo(existing)
		svc := NewSettingsService(repo, newTestAuditor())

		cfg, err := svc.EnsureSettings(ctx)
		require.NoError(t, err)
		assert.True(t, cfg.CommissionRate.Equal(decimal.NewFromFloat(0.2)))
	})
}

func TestBootstrapper(t *testing.T) {
	ctx := context.Background()

	t.Run("空库引导出配置与资金池", func(t *testing.T) {
		store := newFakeStore(nil)
		svc := NewSettingsService(newFakeSettingsRepo(nil), newTestAuditor())
		b := NewBootstrapper(store, svc)

		require.NoError(t, b.Ensure(ctx, "FUND-BOOT"))

		fund, err := store.GetActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, "FUND-BOOT", fund.FundID)
		assert.Equal(t, domain.FundStatusActive, fund.Status)
		assert.True(t, fund.CurrentBalance.IsZero())
		assert.True(t, fund.Governance.EmergencyThreshold.Equal(decimal.NewFromFloat(0.1)))
	})

	t.Run("重复引导幂等", func(t *testing.T) {
		store := newFakeStore(domain.NewFund("FUND-EXIST"))
		svc := NewSettingsService(newFakeSettingsRepo(domain.DefaultSettings()), newTestAuditor())
		b := NewBootstrapper(store, svc)

		require.NoError(t, b.Ensure(ctx, "FUND-NEW"))
		fund, _ := store.GetActive(ctx)
		assert.Equal(t, "FUND-EXIST", fund.FundID, "existing fund must not be replaced")
	})
}
