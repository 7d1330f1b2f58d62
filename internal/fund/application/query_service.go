package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
)

// QueryService 资金池只读查询
type QueryService struct {
	funds domain.FundRepository
	txns  domain.TransactionRepository
	audit domain.AuditRepository
}

// NewQueryService 创建查询服务
func NewQueryService(funds domain.FundRepository, txns domain.TransactionRepository, audit domain.AuditRepository) *QueryService {
	return &QueryService{funds: funds, txns: txns, audit: audit}
}

// GetFundStatus 资金池状态视图：余额、来源拆分、健康度与最近流水
func (s *QueryService) GetFundStatus(ctx context.Context) (*FundStatusView, error) {
	fund, err := s.funds.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	since := time.Now().Add(-governanceWindow)
	inflow, err := s.txns.SumSince(ctx, fund.FundID, inflowTypes, since)
	if err != nil {
		return nil, err
	}
	outflow, err := s.txns.SumSince(ctx, fund.FundID, outflowTypes, since)
	if err != nil {
		return nil, err
	}
	recent, err := s.txns.Recent(ctx, fund.FundID, 10)
	if err != nil {
		return nil, err
	}

	profitability := domain.Profitability(inflow, outflow)
	balanceRatio := fund.BalanceRatio()
	return &FundStatusView{
		FundID:             fund.FundID,
		Status:             fund.Status,
		CurrentBalance:     fund.CurrentBalance,
		TotalContributions: fund.TotalContributions,
		TotalPayments:      fund.TotalPayments,
		EmergencyReserve:   fund.EmergencyReserve,
		BalanceRatio:       balanceRatio,
		Profitability:      profitability,
		Health:             domain.ClassifyHealth(balanceRatio, profitability),
		RiskLevel:          domain.ClassifyRisk(balanceRatio, profitability),
		Sources: FundSourcesView{
			MarketplaceCommission: fund.MarketplaceCommission,
			LogisticFee:           fund.LogisticFee,
			SolidarityPool:        fund.SolidarityPool,
		},
		RecentTransactions: recent,
		UpdatedAt:          fund.UpdatedAt,
	}, nil
}

// GetTransactions 按条件分页查询流水
func (s *QueryService) GetTransactions(ctx context.Context, filter domain.TransactionFilter, page, limit int) (*TransactionPage, error) {
	if filter.FundID == "" {
		fund, err := s.funds.GetActive(ctx)
		if err != nil {
			return nil, err
		}
		filter.FundID = fund.FundID
	}

	items, total, err := s.txns.List(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}
	return &TransactionPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// GetTransaction 按流水 ID 查询
func (s *QueryService) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.txns.Get(ctx, transactionID)
}

// GetFundMetrics 周期性指标：daily / weekly / monthly 窗口
func (s *QueryService) GetFundMetrics(ctx context.Context, period string) (*FundMetricsView, error) {
	var window time.Duration
	switch period {
	case "daily":
		window = 24 * time.Hour
	case "weekly", "":
		period = "weekly"
		window = 7 * 24 * time.Hour
	case "monthly":
		window = 30 * 24 * time.Hour
	default:
		return nil, fmt.Errorf("%w: unknown period %q", domain.ErrValidation, period)
	}

	fund, err := s.funds.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	since := time.Now().Add(-window)
	inflow, err := s.txns.SumSince(ctx, fund.FundID, inflowTypes, since)
	if err != nil {
		return nil, err
	}
	outflow, err := s.txns.SumSince(ctx, fund.FundID, outflowTypes, since)
	if err != nil {
		return nil, err
	}
	inCount, err := s.txns.CountSince(ctx, fund.FundID, inflowTypes, since)
	if err != nil {
		return nil, err
	}
	outCount, err := s.txns.CountSince(ctx, fund.FundID, outflowTypes, since)
	if err != nil {
		return nil, err
	}

	return &FundMetricsView{
		Period:            period,
		Contributions:     inflow,
		Payments:          outflow,
		Profitability:     domain.Profitability(inflow, outflow),
		ContributionCount: inCount,
		PaymentCount:      outCount,
		BreakEvenPoint:    fund.BreakEvenPoint,
	}, nil
}

// GetAuditLog 审计日志查询
func (s *QueryService) GetAuditLog(ctx context.Context, category domain.AuditCategory, limit int) ([]*domain.AuditEntry, error) {
	fund, err := s.funds.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.audit.List(ctx, fund.FundID, category, limit)
}
