package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/idgen"
	"github.com/wyfcoding/logisticfund/pkg/logger"
	"github.com/wyfcoding/logisticfund/pkg/metrics"
)

// 乐观锁冲突的最大重试次数
const maxConflictRetries = 3

// ContributionService 订单缴款处理服务
type ContributionService struct {
	funds    domain.FundRepository
	txns     domain.TransactionRepository
	settings domain.SettingsRepository
	auditor  *Auditor
	metrics  *metrics.Metrics
}

// NewContributionService 创建缴款服务
func NewContributionService(
	funds domain.FundRepository,
	txns domain.TransactionRepository,
	settings domain.SettingsRepository,
	auditor *Auditor,
	m *metrics.Metrics,
) *ContributionService {
	return &ContributionService{funds: funds, txns: txns, settings: settings, auditor: auditor, metrics: m}
}

// ProcessOrderContribution 处理订单缴款
// 以 orderID 幂等：重复请求返回首次入账结果且不再动账。
// 余额变更与流水追加在同一事务内提交，版本冲突时有限重试。
func (s *ContributionService) ProcessOrderContribution(ctx context.Context, cmd ProcessContributionCommand) (*ContributionResult, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	breakdown, err := domain.ComputeContribution(cfg, cmd.OrderValue, cmd.Zone, cmd.PeakHours, cmd.Priority)
	if err != nil {
		return nil, err
	}

	var result *ContributionResult
	for attempt := 0; ; attempt++ {
		result, err = s.creditOnce(ctx, cmd.OrderID, breakdown)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) || attempt >= maxConflictRetries {
			if s.metrics != nil {
				s.metrics.LedgerOpsTotal.WithLabelValues("contribution", "error").Inc()
			}
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.ConflictRetriesTotal.Inc()
		}
		logger.Warn(ctx, "contribution hit version conflict, retrying",
			"order_id", cmd.OrderID, "attempt", attempt+1)
	}

	if result.Duplicate {
		if s.metrics != nil {
			s.metrics.LedgerOpsTotal.WithLabelValues("contribution", "duplicate").Inc()
		}
		logger.Info(ctx, "duplicate contribution ignored", "order_id", cmd.OrderID, "transaction_id", result.TransactionID)
		return result, nil
	}

	if s.metrics != nil {
		s.metrics.LedgerOpsTotal.WithLabelValues("contribution", "success").Inc()
		credited, _ := result.CreditedAmount.Float64()
		s.metrics.FundContributionsTotal.Add(credited)
		balance, _ := result.Balance.Float64()
		s.metrics.FundBalance.Set(balance)
	}
	s.auditor.Record(ctx, domain.AuditContribution, "contribution_processed",
		result.FundID, result.TransactionID, "system", map[string]any{
			"order_id":        cmd.OrderID,
			"order_value":     cmd.OrderValue.String(),
			"credited_amount": result.CreditedAmount.String(),
			"zone":            cmd.Zone,
		})
	logger.Info(ctx, "order contribution credited",
		"order_id", cmd.OrderID, "credited_amount", result.CreditedAmount, "balance", result.Balance)
	return result, nil
}

// creditOnce 单次事务尝试：幂等检查、入账、流水与余额同事务落盘
func (s *ContributionService) creditOnce(ctx context.Context, orderID string, breakdown domain.ContributionBreakdown) (*ContributionResult, error) {
	var result *ContributionResult
	err := s.funds.WithTx(ctx, func(txCtx context.Context) error {
		fund, err := s.funds.GetActive(txCtx)
		if err != nil {
			return err
		}

		existing, err := s.txns.FindCompletedByOrder(txCtx, fund.FundID, orderID, domain.TransactionTypeContribution)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &ContributionResult{
				TransactionID:  existing.TransactionID,
				FundID:         existing.FundID,
				OrderID:        orderID,
				CreditedAmount: existing.Amount,
				Breakdown:      existing.Detail.Contribution,
				Balance:        fund.CurrentBalance,
				Duplicate:      true,
			}
			return nil
		}

		if err := fund.Credit(breakdown); err != nil {
			return err
		}

		txn := &domain.Transaction{
			TransactionID: fmt.Sprintf("TXN-%d", idgen.GenID()),
			FundID:        fund.FundID,
			OrderID:       orderID,
			Type:          domain.TransactionTypeContribution,
			Amount:        breakdown.CreditedAmount,
			Detail:        domain.TransactionDetail{Contribution: &breakdown},
			Status:        domain.TransactionStatusCompleted,
		}
		if err := s.txns.Save(txCtx, txn); err != nil {
			return err
		}
		if err := s.funds.Save(txCtx, fund); err != nil {
			return err
		}

		result = &ContributionResult{
			TransactionID:  txn.TransactionID,
			FundID:         fund.FundID,
			OrderID:        orderID,
			CreditedAmount: breakdown.CreditedAmount,
			Breakdown:      &breakdown,
			Balance:        fund.CurrentBalance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
