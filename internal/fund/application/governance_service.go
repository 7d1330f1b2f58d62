package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/idgen"
	"github.com/wyfcoding/logisticfund/pkg/logger"
	"github.com/wyfcoding/logisticfund/pkg/metrics"
)

// 盈利率分析的滚动窗口
const governanceWindow = 7 * 24 * time.Hour

// GovernanceService 治理决策引擎
// 周期性分析资金池指标并产出离散决策，随后按动作落地。
type GovernanceService struct {
	funds    domain.FundRepository
	txns     domain.TransactionRepository
	settings domain.SettingsRepository
	stats    domain.CourierStatsProvider
	payments *PaymentService
	bonuses  domain.BonusRepository
	auditor  *Auditor
	metrics  *metrics.Metrics
}

// NewGovernanceService 创建治理服务
func NewGovernanceService(
	funds domain.FundRepository,
	txns domain.TransactionRepository,
	settings domain.SettingsRepository,
	stats domain.CourierStatsProvider,
	payments *PaymentService,
	bonuses domain.BonusRepository,
	auditor *Auditor,
	m *metrics.Metrics,
) *GovernanceService {
	return &GovernanceService{
		funds:    funds,
		txns:     txns,
		settings: settings,
		stats:    stats,
		payments: payments,
		bonuses:  bonuses,
		auditor:  auditor,
		metrics:  m,
	}
}

// 计入注资窗口与支付窗口的流水类型
var (
	inflowTypes  = []domain.TransactionType{domain.TransactionTypeContribution}
	outflowTypes = []domain.TransactionType{
		domain.TransactionTypePayment,
		domain.TransactionTypeBonus,
		domain.TransactionTypeSurplus,
	}
)

// AnalyzeFund 采集滚动窗口指标并产出治理决策（不落地）
func (s *GovernanceService) AnalyzeFund(ctx context.Context) (*domain.GovernanceDecision, error) {
	fund, err := s.funds.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	m, err := s.collectMetrics(ctx, fund)
	if err != nil {
		return nil, err
	}

	decision := domain.Decide(cfg.Governance, *m, cfg.FeeBase, cfg.FeeMin, fund.Status)
	decision.DecisionID = fmt.Sprintf("GOV-%d", idgen.GenID())

	if s.metrics != nil {
		s.metrics.GovernanceDecisionsTotal.WithLabelValues(string(decision.Action)).Inc()
	}
	s.auditor.Record(ctx, domain.AuditGovernance, "governance_analyzed",
		fund.FundID, decision.DecisionID, "scheduler", map[string]any{
			"action":        string(decision.Action),
			"reason":        decision.Reason,
			"profitability": m.Profitability.String(),
			"balance_ratio": m.BalanceRatio.String(),
			"health":        string(m.Health),
			"risk":          string(m.Risk),
		})
	logger.Info(ctx, "governance analysis produced decision",
		"decision_id", decision.DecisionID, "action", decision.Action,
		"profitability", m.Profitability, "balance_ratio", m.BalanceRatio,
		"health", m.Health, "risk", m.Risk)
	return &decision, nil
}

// RunGovernanceCycle 分析并立即落地，调度器入口
func (s *GovernanceService) RunGovernanceCycle(ctx context.Context) (*domain.GovernanceDecision, error) {
	decision, err := s.AnalyzeFund(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.ImplementDecision(ctx, decision); err != nil {
		return decision, err
	}
	return decision, nil
}

// ImplementDecision 按动作落地治理决策
// 费率类动作受最小调整间隔约束，过频时返回 ErrAdjustmentTooFrequent。
func (s *GovernanceService) ImplementDecision(ctx context.Context, decision *domain.GovernanceDecision) error {
	switch decision.Action {
	case domain.ActionMaintain:
		return nil
	case domain.ActionEmergencyFund:
		return s.implementEmergency(ctx, decision)
	case domain.ActionResumeOperations:
		return s.implementResume(ctx, decision)
	case domain.ActionIncreaseFee, domain.ActionAdjustRates:
		return s.implementFeeChange(ctx, decision)
	case domain.ActionDistributeBonus:
		return s.implementSurplusDistribution(ctx, decision)
	default:
		return fmt.Errorf("%w: unknown governance action %q", domain.ErrValidation, decision.Action)
	}
}

func (s *GovernanceService) collectMetrics(ctx context.Context, fund *domain.Fund) (*domain.FundMetrics, error) {
	since := time.Now().Add(-governanceWindow)
	inflow, err := s.txns.SumSince(ctx, fund.FundID, inflowTypes, since)
	if err != nil {
		return nil, fmt.Errorf("sum window contributions: %w", err)
	}
	outflow, err := s.txns.SumSince(ctx, fund.FundID, outflowTypes, since)
	if err != nil {
		return nil, fmt.Errorf("sum window payments: %w", err)
	}

	profitability := domain.Profitability(inflow, outflow)
	balanceRatio := fund.BalanceRatio()
	return &domain.FundMetrics{
		WindowContributions: inflow,
		WindowPayments:      outflow,
		Profitability:       profitability,
		BalanceRatio:        balanceRatio,
		Health:              domain.ClassifyHealth(balanceRatio, profitability),
		Risk:                domain.ClassifyRisk(balanceRatio, profitability),
	}, nil
}

func (s *GovernanceService) implementEmergency(ctx context.Context, decision *domain.GovernanceDecision) error {
	return s.applyFundChange(ctx, decision, func(fund *domain.Fund) error {
		if fund.Status == domain.FundStatusEmergency {
			return nil
		}
		fund.EnterEmergency()
		return nil
	})
}

func (s *GovernanceService) implementResume(ctx context.Context, decision *domain.GovernanceDecision) error {
	return s.applyFundChange(ctx, decision, func(fund *domain.Fund) error {
		if fund.Status != domain.FundStatusEmergency {
			return fmt.Errorf("%w: fund is not in emergency", domain.ErrValidation)
		}
		fund.Resume()
		return nil
	})
}

// implementFeeChange 调整物流费基数：配置落新值，资金池留痕
func (s *GovernanceService) implementFeeChange(ctx context.Context, decision *domain.GovernanceDecision) error {
	fund, err := s.funds.GetActive(ctx)
	if err != nil {
		return err
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if last := fund.Governance.LastAdjustedAt; last != nil {
		interval := time.Duration(cfg.Governance.AdjustmentIntervalHours) * time.Hour
		if time.Since(*last) < interval {
			return domain.ErrAdjustmentTooFrequent
		}
	}
	if decision.NewValue.Equal(cfg.FeeBase) {
		logger.Info(ctx, "fee change skipped, already at target", "fee_base", cfg.FeeBase)
		return nil
	}

	oldFee := cfg.FeeBase
	cfg.FeeBase = decision.NewValue
	cfg.AppendChange("governance-engine", "fee_base", oldFee.String(), decision.NewValue.String())
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.settings.Save(ctx, cfg); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	return s.applyFundChange(ctx, decision, func(fund *domain.Fund) error { return nil })
}

// implementSurplusDistribution 盈余分配：余额的配置比例均分给本周期合格快递员
func (s *GovernanceService) implementSurplusDistribution(ctx context.Context, decision *domain.GovernanceDecision) error {
	fund, err := s.funds.GetActive(ctx)
	if err != nil {
		return err
	}

	pool := fund.CurrentBalance.Mul(decision.NewValue)
	if !pool.IsPositive() {
		logger.Info(ctx, "surplus pool empty, nothing to distribute", "decision_id", decision.DecisionID)
		return nil
	}

	year, week := time.Now().ISOWeek()
	courierStats, err := s.stats.ListActiveCourierStats(ctx, week, year)
	if err != nil {
		return fmt.Errorf("list courier stats: %w", err)
	}
	if len(courierStats) == 0 {
		logger.Warn(ctx, "no active couriers for surplus distribution", "decision_id", decision.DecisionID)
		return nil
	}

	perCourier := pool.Div(decimal.NewFromInt(int64(len(courierStats)))).Round(6)
	if !perCourier.IsPositive() {
		return nil
	}

	var paid, failed int
	total := decimal.Zero
	for _, cs := range courierStats {
		bonus := &domain.DeliveryBonus{
			BonusID:    fmt.Sprintf("BON-%d", idgen.GenID()),
			FundID:     fund.FundID,
			CourierID:  cs.CourierID,
			BonusType:  domain.BonusTypeSurplus,
			WeekNumber: week,
			Year:       year,
			Amount:     perCourier,
			Status:     domain.BonusStatusPending,
		}
		if err := s.bonuses.Save(ctx, bonus); err != nil {
			// 本周期已经分配过的快递员直接跳过
			if !errors.Is(err, domain.ErrDuplicateBonus) {
				failed++
				logger.Error(ctx, "surplus bonus save failed", "courier_id", cs.CourierID, "error", err)
			}
			continue
		}

		detail := domain.TransactionDetail{Bonus: &domain.BonusDetail{
			BonusID:   bonus.BonusID,
			BonusType: string(domain.BonusTypeSurplus),
			CourierID: cs.CourierID,
			Week:      week,
			Year:      year,
		}}
		deliveryKey := fmt.Sprintf("SURPLUS-%s", decision.DecisionID)
		orderKey := fmt.Sprintf("%s-%s", decision.DecisionID, cs.CourierID)
		if _, err := s.payments.Disburse(ctx, domain.TransactionTypeSurplus, deliveryKey, orderKey, perCourier, detail); err != nil {
			failed++
			logger.Error(ctx, "surplus disbursement failed", "courier_id", cs.CourierID, "error", err)
			continue
		}
		if err := s.bonuses.UpdateStatus(ctx, bonus.BonusID, domain.BonusStatusPaid); err != nil {
			logger.Error(ctx, "surplus paid but status update failed", "bonus_id", bonus.BonusID, "error", err)
		}
		paid++
		total = total.Add(perCourier)
	}

	if err := s.applyFundChange(ctx, decision, func(fund *domain.Fund) error { return nil }); err != nil {
		return err
	}
	s.auditor.Record(ctx, domain.AuditGovernance, "surplus_distributed",
		fund.FundID, decision.DecisionID, "governance-engine", map[string]any{
			"pool":        pool.String(),
			"per_courier": perCourier.String(),
			"paid":        paid,
			"failed":      failed,
			"total":       total.String(),
		})
	logger.Info(ctx, "surplus distribution finished",
		"decision_id", decision.DecisionID, "paid", paid, "failed", failed, "total", total)
	return nil
}

// applyFundChange 在资金池事务内执行变更、追加决策历史与留痕流水
func (s *GovernanceService) applyFundChange(ctx context.Context, decision *domain.GovernanceDecision, mutate func(*domain.Fund) error) error {
	err := s.funds.WithTx(ctx, func(txCtx context.Context) error {
		fund, err := s.funds.GetActive(txCtx)
		if err != nil {
			return err
		}
		if err := mutate(fund); err != nil {
			return err
		}

		cfg, err := s.settings.Get(txCtx)
		if err == nil {
			// 阈值快照跟随配置
			fund.Governance.EmergencyThreshold = cfg.Governance.EmergencyThreshold
			fund.Governance.SurplusThreshold = cfg.Governance.SurplusThreshold
		}
		fund.AppendDecision(*decision)

		marker := &domain.Transaction{
			TransactionID: fmt.Sprintf("TXN-%d", idgen.GenID()),
			FundID:        fund.FundID,
			Type:          domain.TransactionTypeAdjustment,
			Amount:        decimal.Zero,
			Detail: domain.TransactionDetail{Adjustment: &domain.AdjustmentDetail{
				Action:   decision.Action,
				Reason:   decision.Reason,
				OldValue: decision.OldValue,
				NewValue: decision.NewValue,
			}},
			Status: domain.TransactionStatusCompleted,
		}
		if err := s.txns.Save(txCtx, marker); err != nil {
			return err
		}
		return s.funds.Save(txCtx, fund)
	})
	if err != nil {
		return err
	}

	s.auditor.Record(ctx, domain.AuditGovernance, "decision_implemented",
		"", decision.DecisionID, "governance-engine", map[string]any{
			"action":    string(decision.Action),
			"old_value": decision.OldValue.String(),
			"new_value": decision.NewValue.String(),
		})
	return nil
}

// RefreshFundMetrics 刷新资金池滚动收益指标与余额仪表
func (s *GovernanceService) RefreshFundMetrics(ctx context.Context) error {
	return s.funds.WithTx(ctx, func(txCtx context.Context) error {
		fund, err := s.funds.GetActive(txCtx)
		if err != nil {
			return err
		}

		now := time.Now()
		windows := []struct {
			since  time.Time
			target *decimal.Decimal
		}{
			{now.Add(-24 * time.Hour), &fund.DailyROI},
			{now.Add(-7 * 24 * time.Hour), &fund.WeeklyROI},
			{now.Add(-30 * 24 * time.Hour), &fund.MonthlyROI},
		}
		for _, w := range windows {
			inflow, err := s.txns.SumSince(txCtx, fund.FundID, inflowTypes, w.since)
			if err != nil {
				return err
			}
			outflow, err := s.txns.SumSince(txCtx, fund.FundID, outflowTypes, w.since)
			if err != nil {
				return err
			}
			*w.target = domain.Profitability(inflow, outflow)
		}
		fund.BreakEvenPoint = fund.TotalPayments

		if s.metrics != nil {
			balance, _ := fund.CurrentBalance.Float64()
			s.metrics.FundBalance.Set(balance)
		}
		return s.funds.Save(txCtx, fund)
	})
}
