package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/idgen"
	"github.com/wyfcoding/logisticfund/pkg/logger"
	"github.com/wyfcoding/logisticfund/pkg/metrics"
)

// BonusService 奖金引擎
// 周奖金与特别奖金的批处理：计算、落库（周期唯一）、经支付服务出账。
type BonusService struct {
	funds    domain.FundRepository
	bonuses  domain.BonusRepository
	stats    domain.CourierStatsProvider
	settings domain.SettingsRepository
	payments *PaymentService
	auditor  *Auditor
	metrics  *metrics.Metrics
}

// NewBonusService 创建奖金服务
func NewBonusService(
	funds domain.FundRepository,
	bonuses domain.BonusRepository,
	stats domain.CourierStatsProvider,
	settings domain.SettingsRepository,
	payments *PaymentService,
	auditor *Auditor,
	m *metrics.Metrics,
) *BonusService {
	return &BonusService{
		funds:    funds,
		bonuses:  bonuses,
		stats:    stats,
		settings: settings,
		payments: payments,
		auditor:  auditor,
		metrics:  m,
	}
}

// CalculateWeeklyBonus 计算但不发放，用于预览接口
func (s *BonusService) CalculateWeeklyBonus(ctx context.Context, stats domain.CourierWeekStats) (*domain.BonusCalculation, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	calc := domain.CalculateWeeklyBonus(cfg, stats)
	return &calc, nil
}

// ProcessWeeklyBonuses 处理一个结算周期的全部周奖金
// 单个快递员失败不阻断批次，结果里分别计数。每人每周期至多一份由唯一键兜底。
func (s *BonusService) ProcessWeeklyBonuses(ctx context.Context, week, year int) (*BonusBatchResult, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	fund, err := s.funds.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	courierStats, err := s.stats.ListActiveCourierStats(ctx, week, year)
	if err != nil {
		return nil, fmt.Errorf("list courier stats: %w", err)
	}

	result := &BonusBatchResult{WeekNumber: week, Year: year, TotalPaid: decimal.Zero}
	for _, cs := range courierStats {
		calc := domain.CalculateWeeklyBonus(cfg, cs)
		if !calc.Eligibility.Eligible || !calc.Amount.IsPositive() {
			result.Skipped++
			continue
		}

		paid, err := s.grantAndPay(ctx, fund.FundID, &domain.DeliveryBonus{
			BonusID:     fmt.Sprintf("BON-%d", idgen.GenID()),
			FundID:      fund.FundID,
			CourierID:   cs.CourierID,
			BonusType:   domain.BonusTypeWeekly,
			WeekNumber:  week,
			Year:        year,
			Amount:      calc.Amount,
			Eligibility: calc.Eligibility,
			Breakdown:   calc.Breakdown,
			Status:      domain.BonusStatusPending,
		})
		switch {
		case errors.Is(err, domain.ErrDuplicateBonus):
			result.Skipped++
		case err != nil:
			result.Failed++
			logger.Error(ctx, "weekly bonus failed",
				"courier_id", cs.CourierID, "week", week, "year", year, "error", err)
		default:
			result.Processed++
			result.TotalPaid = result.TotalPaid.Add(paid)
		}
	}

	s.auditor.Record(ctx, domain.AuditBonus, "weekly_bonuses_processed",
		fund.FundID, fmt.Sprintf("W%d-%d", week, year), "scheduler", map[string]any{
			"week":       week,
			"year":       year,
			"processed":  result.Processed,
			"skipped":    result.Skipped,
			"failed":     result.Failed,
			"total_paid": result.TotalPaid.String(),
		})
	logger.Info(ctx, "weekly bonus batch finished",
		"week", week, "year", year,
		"processed", result.Processed, "skipped", result.Skipped, "failed", result.Failed,
		"total_paid", result.TotalPaid)
	return result, nil
}

// ProcessSpecialBonuses 处理特别奖金（极速/高评分/高单量/高可靠性，非互斥）
func (s *BonusService) ProcessSpecialBonuses(ctx context.Context, week, year int) (*BonusBatchResult, error) {
	fund, err := s.funds.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	courierStats, err := s.stats.ListActiveCourierStats(ctx, week, year)
	if err != nil {
		return nil, fmt.Errorf("list courier stats: %w", err)
	}

	result := &BonusBatchResult{WeekNumber: week, Year: year, TotalPaid: decimal.Zero}
	for _, cs := range courierStats {
		amount, items := domain.CalculateSpecialBonus(cs)
		if !amount.IsPositive() {
			result.Skipped++
			continue
		}

		paid, err := s.grantAndPay(ctx, fund.FundID, &domain.DeliveryBonus{
			BonusID:      fmt.Sprintf("BON-%d", idgen.GenID()),
			FundID:       fund.FundID,
			CourierID:    cs.CourierID,
			BonusType:    domain.BonusTypeSpecial,
			WeekNumber:   week,
			Year:         year,
			Amount:       amount,
			SpecialItems: items,
			Status:       domain.BonusStatusPending,
		})
		switch {
		case errors.Is(err, domain.ErrDuplicateBonus):
			result.Skipped++
		case err != nil:
			result.Failed++
			logger.Error(ctx, "special bonus failed",
				"courier_id", cs.CourierID, "week", week, "year", year, "error", err)
		default:
			result.Processed++
			result.TotalPaid = result.TotalPaid.Add(paid)
		}
	}

	logger.Info(ctx, "special bonus batch finished",
		"week", week, "year", year,
		"processed", result.Processed, "skipped", result.Skipped, "failed", result.Failed,
		"total_paid", result.TotalPaid)
	return result, nil
}

// grantAndPay 落库一条奖金记录并经支付服务出账
// 出账用合成键 (BONUS-<bonusID>, <类型>-<周期>-<快递员>) 幂等。
// 周期内已有未出账记录（上次余额不足等）时对该记录补发，不新建。
func (s *BonusService) grantAndPay(ctx context.Context, fundID string, bonus *domain.DeliveryBonus) (decimal.Decimal, error) {
	existing, err := s.bonuses.FindForPeriod(ctx, bonus.CourierID, bonus.WeekNumber, bonus.Year, bonus.BonusType)
	if err != nil {
		return decimal.Zero, err
	}
	switch {
	case existing != nil && existing.Status == domain.BonusStatusPaid:
		return decimal.Zero, domain.ErrDuplicateBonus
	case existing != nil:
		bonus = existing
	default:
		if err := s.bonuses.Save(ctx, bonus); err != nil {
			return decimal.Zero, err
		}
		if err := s.bonuses.UpdateStatus(ctx, bonus.BonusID, domain.BonusStatusApproved); err != nil {
			return decimal.Zero, err
		}
	}

	detail := domain.TransactionDetail{Bonus: &domain.BonusDetail{
		BonusID:   bonus.BonusID,
		BonusType: string(bonus.BonusType),
		CourierID: bonus.CourierID,
		Week:      bonus.WeekNumber,
		Year:      bonus.Year,
	}}
	if bonus.BonusType == domain.BonusTypeWeekly {
		b := bonus.Breakdown
		detail.Bonus.Breakdown = &b
	}

	deliveryKey := fmt.Sprintf("BONUS-%s", bonus.BonusID)
	orderKey := fmt.Sprintf("%s-%d-%d-%s", bonus.BonusType, bonus.Year, bonus.WeekNumber, bonus.CourierID)
	txnType := domain.TransactionTypeBonus
	if bonus.BonusType == domain.BonusTypeSurplus {
		txnType = domain.TransactionTypeSurplus
	}

	payResult, err := s.payments.Disburse(ctx, txnType, deliveryKey, orderKey, bonus.Amount, detail)
	if err != nil {
		// 记录保持 approved，待资金恢复后人工或下一轮补发
		return decimal.Zero, fmt.Errorf("disburse bonus %s: %w", bonus.BonusID, err)
	}

	if err := s.bonuses.UpdateStatus(ctx, bonus.BonusID, domain.BonusStatusPaid); err != nil {
		logger.Error(ctx, "bonus paid but status update failed", "bonus_id", bonus.BonusID, "error", err)
	}

	if s.metrics != nil {
		s.metrics.LedgerOpsTotal.WithLabelValues("bonus", "success").Inc()
	}
	s.auditor.Record(ctx, domain.AuditBonus, "bonus_paid",
		fundID, bonus.BonusID, "scheduler", map[string]any{
			"courier_id":     bonus.CourierID,
			"bonus_type":     string(bonus.BonusType),
			"week":           bonus.WeekNumber,
			"year":           bonus.Year,
			"amount":         bonus.Amount.String(),
			"transaction_id": payResult.TransactionID,
		})
	return bonus.Amount, nil
}

// GetBonusStatistics 奖金聚合统计
func (s *BonusService) GetBonusStatistics(ctx context.Context) (*domain.BonusStatistics, error) {
	return s.bonuses.Statistics(ctx)
}

// ListBonusesByPeriod 按周期列出奖金记录
func (s *BonusService) ListBonusesByPeriod(ctx context.Context, week, year int) ([]*domain.DeliveryBonus, error) {
	return s.bonuses.ListByPeriod(ctx, week, year)
}
