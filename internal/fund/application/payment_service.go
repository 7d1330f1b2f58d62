package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/idgen"
	"github.com/wyfcoding/logisticfund/pkg/logger"
	"github.com/wyfcoding/logisticfund/pkg/metrics"
)

// PaymentService 配送支付服务
// 奖金与盈余发放复用同一条出账路径，只是流水类型与明细不同。
type PaymentService struct {
	funds   domain.FundRepository
	txns    domain.TransactionRepository
	auditor *Auditor
	metrics *metrics.Metrics
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	funds domain.FundRepository,
	txns domain.TransactionRepository,
	auditor *Auditor,
	m *metrics.Metrics,
) *PaymentService {
	return &PaymentService{funds: funds, txns: txns, auditor: auditor, metrics: m}
}

// ProcessDeliveryPayment 处理配送支付
// 以 (deliveryID, orderID) 幂等。余额不足时资金池升级为紧急状态并返回 ErrInsufficientFunds。
func (s *PaymentService) ProcessDeliveryPayment(ctx context.Context, cmd ProcessPaymentCommand) (*PaymentResult, error) {
	if strings.TrimSpace(cmd.DeliveryID) == "" || strings.TrimSpace(cmd.OrderID) == "" {
		return nil, fmt.Errorf("%w: delivery id and order id are required", domain.ErrValidation)
	}
	if cmd.BasePayment.IsNegative() || cmd.Bonus.IsNegative() {
		return nil, fmt.Errorf("%w: payment amounts must not be negative", domain.ErrValidation)
	}
	total := cmd.BasePayment.Add(cmd.Bonus)
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: total payment must be positive", domain.ErrValidation)
	}

	detail := domain.TransactionDetail{Payment: &domain.PaymentDetail{
		BasePayment:   cmd.BasePayment,
		BonusAmount:   cmd.Bonus,
		DeliveryLevel: cmd.DeliveryLevel,
		Performance:   cmd.Performance,
	}}
	result, err := s.debit(ctx, debitRequest{
		txnType:    domain.TransactionTypePayment,
		deliveryID: cmd.DeliveryID,
		orderID:    cmd.OrderID,
		amount:     total,
		detail:     detail,
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate {
		s.auditor.Record(ctx, domain.AuditPayment, "delivery_payment_processed",
			result.FundID, result.TransactionID, "system", map[string]any{
				"delivery_id": cmd.DeliveryID,
				"order_id":    cmd.OrderID,
				"courier_id":  cmd.CourierID,
				"total_paid":  result.TotalPaid.String(),
			})
		logger.Info(ctx, "delivery payment debited",
			"delivery_id", cmd.DeliveryID, "order_id", cmd.OrderID, "total_paid", result.TotalPaid, "balance", result.Balance)
	}
	return result, nil
}

// Disburse 为奖金/盈余发放出账，调用方负责构造唯一的合成 (deliveryID, orderID) 键
func (s *PaymentService) Disburse(ctx context.Context, txnType domain.TransactionType, deliveryID, orderID string, amount decimal.Decimal, detail domain.TransactionDetail) (*PaymentResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: disburse amount must be positive", domain.ErrValidation)
	}
	return s.debit(ctx, debitRequest{
		txnType:    txnType,
		deliveryID: deliveryID,
		orderID:    orderID,
		amount:     amount,
		detail:     detail,
	})
}

type debitRequest struct {
	txnType    domain.TransactionType
	deliveryID string
	orderID    string
	amount     decimal.Decimal
	detail     domain.TransactionDetail
}

func (s *PaymentService) debit(ctx context.Context, req debitRequest) (*PaymentResult, error) {
	op := string(req.txnType)

	var result *PaymentResult
	var err error
	for attempt := 0; ; attempt++ {
		result, err = s.debitOnce(ctx, req)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrInsufficientFunds) {
			s.escalateEmergency(ctx, req)
			if s.metrics != nil {
				s.metrics.LedgerOpsTotal.WithLabelValues(op, "insufficient_funds").Inc()
			}
			return nil, err
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) || attempt >= maxConflictRetries {
			if s.metrics != nil {
				s.metrics.LedgerOpsTotal.WithLabelValues(op, "error").Inc()
			}
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.ConflictRetriesTotal.Inc()
		}
		logger.Warn(ctx, "payment hit version conflict, retrying",
			"delivery_id", req.deliveryID, "order_id", req.orderID, "attempt", attempt+1)
	}

	if s.metrics != nil {
		if result.Duplicate {
			s.metrics.LedgerOpsTotal.WithLabelValues(op, "duplicate").Inc()
		} else {
			s.metrics.LedgerOpsTotal.WithLabelValues(op, "success").Inc()
			paid, _ := result.TotalPaid.Float64()
			s.metrics.FundPaymentsTotal.Add(paid)
			balance, _ := result.Balance.Float64()
			s.metrics.FundBalance.Set(balance)
		}
	}
	return result, nil
}

func (s *PaymentService) debitOnce(ctx context.Context, req debitRequest) (*PaymentResult, error) {
	var result *PaymentResult
	err := s.funds.WithTx(ctx, func(txCtx context.Context) error {
		fund, err := s.funds.GetActive(txCtx)
		if err != nil {
			return err
		}
		existing, err := s.txns.FindCompletedByDeliveryAndOrder(txCtx, fund.FundID, req.deliveryID, req.orderID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &PaymentResult{
				TransactionID: existing.TransactionID,
				FundID:        existing.FundID,
				DeliveryID:    req.deliveryID,
				OrderID:       req.orderID,
				TotalPaid:     existing.Amount.Abs(),
				Balance:       fund.CurrentBalance,
				Duplicate:     true,
			}
			return nil
		}

		// 幂等回放不受状态限制，新出账要求资金池处于活跃状态
		if fund.Status != domain.FundStatusActive {
			return domain.ErrFundNotActive
		}

		if err := fund.Debit(req.amount); err != nil {
			return err
		}

		txn := &domain.Transaction{
			TransactionID: fmt.Sprintf("TXN-%d", idgen.GenID()),
			FundID:        fund.FundID,
			OrderID:       req.orderID,
			DeliveryID:    req.deliveryID,
			Type:          req.txnType,
			Amount:        req.amount.Neg(),
			Detail:        req.detail,
			Status:        domain.TransactionStatusCompleted,
		}
		if err := s.txns.Save(txCtx, txn); err != nil {
			return err
		}
		if err := s.funds.Save(txCtx, fund); err != nil {
			return err
		}

		result = &PaymentResult{
			TransactionID: txn.TransactionID,
			FundID:        fund.FundID,
			DeliveryID:    req.deliveryID,
			OrderID:       req.orderID,
			TotalPaid:     req.amount,
			Balance:       fund.CurrentBalance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// escalateEmergency 余额不足后的升级：独立事务切换紧急状态并留痕
// 主出账事务已回滚，这里只改状态，冲突时放弃（说明并行请求已经升级过）。
func (s *PaymentService) escalateEmergency(ctx context.Context, req debitRequest) {
	err := s.funds.WithTx(ctx, func(txCtx context.Context) error {
		fund, err := s.funds.GetActive(txCtx)
		if err != nil {
			return err
		}
		if fund.Status == domain.FundStatusEmergency {
			return nil
		}
		fund.EnterEmergency()

		marker := &domain.Transaction{
			TransactionID: fmt.Sprintf("TXN-%d", idgen.GenID()),
			FundID:        fund.FundID,
			OrderID:       req.orderID,
			DeliveryID:    req.deliveryID,
			Type:          domain.TransactionTypeEmergency,
			Amount:        decimal.Zero,
			Detail: domain.TransactionDetail{Adjustment: &domain.AdjustmentDetail{
				Action: domain.ActionEmergencyFund,
				Reason: fmt.Sprintf("insufficient funds for %s of %s", req.txnType, req.amount),
			}},
			Status: domain.TransactionStatusCompleted,
		}
		if err := s.txns.Save(txCtx, marker); err != nil {
			return err
		}
		if err := s.funds.Save(txCtx, fund); err != nil {
			return err
		}

		s.auditor.Record(ctx, domain.AuditPayment, "fund_entered_emergency",
			fund.FundID, marker.TransactionID, "system", map[string]any{
				"delivery_id": req.deliveryID,
				"order_id":    req.orderID,
				"requested":   req.amount.String(),
				"balance":     fund.CurrentBalance.String(),
			})
		return nil
	})
	if err != nil {
		logger.Error(ctx, "emergency escalation failed",
			"delivery_id", req.deliveryID, "order_id", req.orderID, "error", err)
		return
	}
	logger.Warn(ctx, "fund entered emergency mode after insufficient funds",
		"delivery_id", req.deliveryID, "order_id", req.orderID, "requested", req.amount)
}
