package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
)

// ProcessContributionCommand 订单缴款命令
type ProcessContributionCommand struct {
	OrderID    string          `json:"order_id" binding:"required"`
	OrderValue decimal.Decimal `json:"order_value" binding:"required"`
	Zone       string          `json:"zone"`
	PeakHours  bool            `json:"peak_hours"`
	Priority   bool            `json:"priority"`
}

// ContributionResult 缴款处理结果
type ContributionResult struct {
	TransactionID  string                        `json:"transaction_id"`
	FundID         string                        `json:"fund_id"`
	OrderID        string                        `json:"order_id"`
	CreditedAmount decimal.Decimal               `json:"credited_amount"`
	Breakdown      *domain.ContributionBreakdown `json:"breakdown"`
	Balance        decimal.Decimal               `json:"balance"`
	Duplicate      bool                          `json:"duplicate"`
}

// ProcessPaymentCommand 配送支付命令
type ProcessPaymentCommand struct {
	DeliveryID    string          `json:"delivery_id" binding:"required"`
	OrderID       string          `json:"order_id" binding:"required"`
	CourierID     string          `json:"courier_id"`
	BasePayment   decimal.Decimal `json:"base_payment"`
	Bonus         decimal.Decimal `json:"bonus"`
	DeliveryLevel string          `json:"delivery_level"`
	Performance   decimal.Decimal `json:"performance"`
}

// PaymentResult 支付处理结果
type PaymentResult struct {
	TransactionID string          `json:"transaction_id"`
	FundID        string          `json:"fund_id"`
	DeliveryID    string          `json:"delivery_id"`
	OrderID       string          `json:"order_id"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Balance       decimal.Decimal `json:"balance"`
	Duplicate     bool            `json:"duplicate"`
}

// BonusBatchResult 批量奖金处理结果
type BonusBatchResult struct {
	WeekNumber int             `json:"week_number"`
	Year       int             `json:"year"`
	Processed  int             `json:"processed"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	TotalPaid  decimal.Decimal `json:"total_paid"`
}

// UpdateSettingsCommand 结算参数更新命令，nil 字段表示保持不变
type UpdateSettingsCommand struct {
	MarketplaceCommissionRate *decimal.Decimal         `json:"marketplace_commission_rate"`
	SolidarityRate            *decimal.Decimal         `json:"solidarity_rate"`
	LogisticFeeBase           *decimal.Decimal         `json:"logistic_fee_base"`
	LogisticFeeMin            *decimal.Decimal         `json:"logistic_fee_min"`
	LogisticFeeMax            *decimal.Decimal         `json:"logistic_fee_max"`
	CommissionShare           *decimal.Decimal         `json:"commission_share"`
	FeeShare                  *decimal.Decimal         `json:"fee_share"`
	SolidarityShare           *decimal.Decimal         `json:"solidarity_share"`
	BonusTiers                []domain.BonusTier       `json:"bonus_tiers"`
	Governance                *domain.GovernancePolicy `json:"governance"`
	Zones                     []domain.ZoneConfig      `json:"zones"`
	Demand                    *domain.DemandConfig     `json:"demand"`
	AdminID                   string                   `json:"admin_id" binding:"required"`
	Reason                    string                   `json:"reason"`
}

// FundStatusView 资金池状态视图
type FundStatusView struct {
	FundID             string                `json:"fund_id"`
	Status             domain.FundStatus     `json:"status"`
	CurrentBalance     decimal.Decimal       `json:"current_balance"`
	TotalContributions decimal.Decimal       `json:"total_contributions"`
	TotalPayments      decimal.Decimal       `json:"total_payments"`
	EmergencyReserve   decimal.Decimal       `json:"emergency_reserve"`
	BalanceRatio       decimal.Decimal       `json:"balance_ratio"`
	Profitability      decimal.Decimal       `json:"profitability"`
	Health             domain.FundHealth     `json:"health"`
	RiskLevel          domain.RiskLevel      `json:"risk_level"`
	Sources            FundSourcesView       `json:"sources"`
	RecentTransactions []*domain.Transaction `json:"recent_transactions"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// FundSourcesView 按来源拆分的累计缴款
type FundSourcesView struct {
	MarketplaceCommission decimal.Decimal `json:"marketplace_commission"`
	LogisticFee           decimal.Decimal `json:"logistic_fee"`
	SolidarityPool        decimal.Decimal `json:"solidarity_pool"`
}

// FundMetricsView 周期性资金指标视图
type FundMetricsView struct {
	Period            string          `json:"period"`
	Contributions     decimal.Decimal `json:"contributions"`
	Payments          decimal.Decimal `json:"payments"`
	Profitability     decimal.Decimal `json:"profitability"`
	ContributionCount int64           `json:"contribution_count"`
	PaymentCount      int64           `json:"payment_count"`
	BreakEvenPoint    decimal.Decimal `json:"break_even_point"`
}

// TransactionPage 流水分页结果
type TransactionPage struct {
	Items []*domain.Transaction `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}
