package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
)

type governanceFixture struct {
	svc      *GovernanceService
	store    *fakeStore
	settings *fakeSettingsRepo
	bonuses  *fakeBonusRepo
	stats    *fakeStatsProvider
}

func newGovernanceFixture(t *testing.T, fund *domain.Fund, stats []domain.CourierWeekStats) *governanceFixture {
	t.Helper()
	store := newFakeStore(fund)
	settings := newFakeSettingsRepo(domain.DefaultSettings())
	auditor := newTestAuditor()
	payments := NewPaymentService(store, &fakeTxnRepo{store: store}, auditor, nil)
	bonuses := newFakeBonusRepo()
	provider := &fakeStatsProvider{stats: stats}
	svc := NewGovernanceService(store, &fakeTxnRepo{store: store}, settings, provider, payments, bonuses, auditor, nil)
	return &governanceFixture{svc: svc, store: store, settings: settings, bonuses: bonuses, stats: provider}
}

// 直接预置窗口内的流水与一致的资金池快照
func seedLedger(t *testing.T, store *fakeStore, contributions, payments int64) {
	t.Helper()
	ctx := context.Background()
	fund, err := store.GetActive(ctx)
	require.NoError(t, err)

	if contributions > 0 {
		require.NoError(t, store.SaveTxn(ctx, &domain.Transaction{
			TransactionID: "TXN-SEED-IN",
			FundID:        fund.FundID,
			Type:          domain.TransactionTypeContribution,
			Amount:        decimal.NewFromInt(contributions),
			Status:        domain.TransactionStatusCompleted,
		}))
	}
	if payments > 0 {
		require.NoError(t, store.SaveTxn(ctx, &domain.Transaction{
			TransactionID: "TXN-SEED-OUT",
			FundID:        fund.FundID,
			Type:          domain.TransactionTypePayment,
			Amount:        decimal.NewFromInt(-payments),
			Status:        domain.TransactionStatusCompleted,
		}))
	}

	fund.CurrentBalance = decimal.NewFromInt(contributions - payments)
	fund.TotalContributions = decimal.NewFromInt(contributions)
	fund.TotalPayments = decimal.NewFromInt(payments)
	require.NoError(t, store.Save(ctx, fund))
}

// 余额比与窗口盈利率解耦时直接覆写累计值
func overrideFundTotals(t *testing.T, store *fakeStore, balance, contributions, payments int64) {
	t.Helper()
	ctx := context.Background()
	fund, err := store.GetActive(ctx)
	require.NoError(t, err)
	fund.CurrentBalance = decimal.NewFromInt(balance)
	fund.TotalContributions = decimal.NewFromInt(contributions)
	fund.TotalPayments = decimal.NewFromInt(payments)
	require.NoError(t, store.Save(ctx, fund))
}

func TestAnalyzeFund(t *testing.T) {
	ctx := context.Background()

	t.Run("盈余场景产出分配决策", func(t *testing.T) {
		f := newGovernanceFixture(t, domain.NewFund("FUND-TEST"), nil)
		seedLedger(t, f.store, 200, 150)

		decision, err := f.svc.AnalyzeFund(ctx)
		require.NoError(t, err)
		// 盈利率 25%、余额比 0.25：规则 4 命中
		assert.Equal(t, domain.ActionDistributeBonus, decision.Action)
		assert.True(t, decision.Metrics.Profitability.Equal(decimal.NewFromInt(25)))
		assert.NotEmpty(t, decision.DecisionID)
	})

	t.Run("危急场景产出紧急决策", func(t *testing.T) {
		f := newGovernanceFixture(t, domain.NewFund("FUND-TEST"), nil)
		seedLedger(t, f.store, 1000, 950)

		decision, err := f.svc.AnalyzeFund(ctx)
		require.NoError(t, err)
		// 余额比 0.05：规则 1 优先于一切
		assert.Equal(t, domain.ActionEmergencyFund, decision.Action)
	})
}

func TestImplementDecision(t *testing.T) {
	ctx := context.Background()

	t.Run("加费决策更新配置并盖下调整时间戳", func(t *testing.T) {
		f := newGovernanceFixture(t, domain.NewFund("FUND-TEST"), nil)
		// 历史余额充裕（余额比 0.5）但本窗口盈利率仅 4%
		seedLedger(t, f.store, 100, 96)
		overrideFundTotals(t, f.store, 500, 1000, 500)

		decision, err := f.svc.AnalyzeFund(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.ActionIncreaseFee, decision.Action)

		require.NoError(t, f.svc.ImplementDecision(ctx, decision))

		cfg, _ := f.settings.Get(ctx)
		assert.True(t, cfg.FeeBase.Equal(decision.NewValue), "fee=%s want=%s", cfg.FeeBase, decision.NewValue)
		require.NotEmpty(t, cfg.ChangeHistory)
		assert.Equal(t, "fee_base", cfg.ChangeHistory[len(cfg.ChangeHistory)-1].Field)

		fund, _ := f.store.GetActive(ctx)
		require.NotNil(t, fund.Governance.LastAdjustedAt)
		require.Len(t, fund.Governance.AdjustmentHistory, 1)

		// 最小间隔内的再次调整被拒绝
		again, err := f.svc.AnalyzeFund(ctx)
		require.NoError(t, err)
		if again.Action == domain.ActionIncreaseFee || again.Action == domain.ActionAdjustRates {
			err = f.svc.ImplementDecision(ctx, again)
			assert.ErrorIs(t, err, domain.ErrAdjustmentTooFrequent)
		}
	})

	t.Run("间隔到期后允许再次调整", func(t *testing.T) {
		f := newGovernanceFixture(t, domain.NewFund("FUND-TEST"), nil)
		seedLedger(t, f.store, 100, 96)
		overrideFundTotals(t, f.store, 500, 1000, 500)

		fund, _ := f.store.GetActive(ctx)
		past := time.Now().Add(-48 * time.Hour)
		fund.Governance.LastAdjustedAt = &past
		require.NoError(t, f.store.Save(ctx, fund))

		decision, err := f.svc.AnalyzeFund(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.ActionIncreaseFee, decision.Action)
		assert.NoError(t, f.svc.ImplementDecision(ctx, decision))
	})

	t.Run("紧急决策切换状态并留痕", func(t *testing.T) {
		f := newGovernanceFixture(t, domain.NewFund("FUND-TEST"), nil)
		seedLedger(t, f.store, 1000, 950)

		decision, err := f.svc.AnalyzeFund(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.ActionEmergencyFund, decision.Action)

		require.NoError(t, f.svc.ImplementDecision(ctx, decision))

		fund, _ := f.store.GetActive(ctx)
		assert.Equal(t, domain.FundStatusEmergency, fund.Status)

		txns := f.store.allTxns()
		last := txns[len(txns)-1]
		assert.Equal(t, domain.TransactionTypeAdjustment, last.Type)
		assert.True(t, last.Amount.IsZero())
	})

	t.Run("恢复决策回到活跃状态", func(t *testing.T) {
		fund := domain.NewFund("FUND-TEST")
		fund.EnterEmergency()
		f := newGovernanceFixture(t, fund, nil)
		// 窗口盈利率 15%、余额比 0.3：健康但不触发盈余分配
		seedLedger(t, f.store, 100, 85)
		overrideFundTotals(t, f.store, 300, 1000, 700)

		decision, err := f.svc.AnalyzeFund(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.ActionResumeOperations, decision.Action)

		require.NoError(t, f.svc.ImplementDecision(ctx, decision))
		got, _ := f.store.GetActive(ctx)
		assert.Equal(t, domain.FundStatusActive, got.Status)
	})

	t.Run("盈余分配均分给活跃快递员", func(t *testing.T) {
		stats := []domain.CourierWeekStats{
			eligibleStats("C-1"), eligibleStats("C-2"), eligibleStats("C-3"),
		}
		f := newGovernanceFixture(t, domain.NewFund("FUND-TEST"), stats)
		seedLedger(t, f.store, 200, 150)

		decision, err := f.svc.AnalyzeFund(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.ActionDistributeBonus, decision.Action)

		require.NoError(t, f.svc.ImplementDecision(ctx, decision))

		// 池子 = 50 * 0.10 = 5，人均约 1.666667
		fund, _ := f.store.GetActive(ctx)
		require.NoError(t, fund.CheckInvariant())
		perCourier := decimal.NewFromInt(5).Div(decimal.NewFromInt(3)).Round(6)
		expected := decimal.NewFromInt(150).Add(perCourier.Mul(decimal.NewFromInt(3)))
		assert.True(t, fund.TotalPayments.Equal(expected), "payments=%s want=%s", fund.TotalPayments, expected)

		year, week := time.Now().ISOWeek()
		list, _ := f.bonuses.ListByPeriod(ctx, week, year)
		require.Len(t, list, 3)
		for _, b := range list {
			assert.Equal(t, domain.BonusTypeSurplus, b.BonusType)
			assert.Equal(t, domain.BonusStatusPaid, b.Status)
			assert.True(t, b.Amount.Equal(perCourier))
		}
	})
}

func TestRefreshFundMetrics(t *testing.T) {
	ctx := context.Background()
	f := newGovernanceFixture(t, domain.NewFund("FUND-TEST"), nil)
	seedLedger(t, f.store, 400, 300)

	require.NoError(t, f.svc.RefreshFundMetrics(ctx))

	fund, _ := f.store.GetActive(ctx)
	assert.True(t, fund.DailyROI.Equal(decimal.NewFromInt(25)), "daily=%s", fund.DailyROI)
	assert.True(t, fund.WeeklyROI.Equal(decimal.NewFromInt(25)))
	assert.True(t, fund.MonthlyROI.Equal(decimal.NewFromInt(25)))
	assert.True(t, fund.BreakEvenPoint.Equal(fund.TotalPayments))
}
