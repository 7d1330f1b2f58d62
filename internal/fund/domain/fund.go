// 包 domain 物流资金池的领域模型
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FundStatus 资金池状态
type FundStatus string

const (
	FundStatusActive      FundStatus = "active"
	FundStatusSuspended   FundStatus = "suspended"
	FundStatusEmergency   FundStatus = "emergency"
	FundStatusMaintenance FundStatus = "maintenance"
)

// Fund 资金池聚合根
// 单一逻辑资金池，汇集订单抽成并向快递员发放配送费与奖金。
// 不变量：CurrentBalance == TotalContributions - TotalPayments，且两个累计值单调递增。
type Fund struct {
	gorm.Model
	// 资金池 ID（业务主键）
	FundID string `gorm:"column:fund_id;type:varchar(32);uniqueIndex;not null" json:"fund_id"`
	// 当前余额，任何时刻 >= 0
	CurrentBalance decimal.Decimal `gorm:"column:current_balance;type:decimal(32,18);default:0;not null" json:"current_balance"`
	// 累计注资（单调递增）
	TotalContributions decimal.Decimal `gorm:"column:total_contributions;type:decimal(32,18);default:0;not null" json:"total_contributions"`
	// 累计支付（单调递增）
	TotalPayments decimal.Decimal `gorm:"column:total_payments;type:decimal(32,18);default:0;not null" json:"total_payments"`
	// 应急储备金
	EmergencyReserve decimal.Decimal `gorm:"column:emergency_reserve;type:decimal(32,18);default:0;not null" json:"emergency_reserve"`
	// 各来源累计入账（三者之和等于 TotalContributions）
	MarketplaceCommission decimal.Decimal `gorm:"column:marketplace_commission;type:decimal(32,18);default:0;not null" json:"marketplace_commission"`
	LogisticFee           decimal.Decimal `gorm:"column:logistic_fee;type:decimal(32,18);default:0;not null" json:"logistic_fee"`
	SolidarityPool        decimal.Decimal `gorm:"column:solidarity_pool;type:decimal(32,18);default:0;not null" json:"solidarity_pool"`
	// 滚动收益指标（由治理引擎刷新）
	DailyROI       decimal.Decimal `gorm:"column:daily_roi;type:decimal(16,6);default:0" json:"daily_roi"`
	WeeklyROI      decimal.Decimal `gorm:"column:weekly_roi;type:decimal(16,6);default:0" json:"weekly_roi"`
	MonthlyROI     decimal.Decimal `gorm:"column:monthly_roi;type:decimal(16,6);default:0" json:"monthly_roi"`
	BreakEvenPoint decimal.Decimal `gorm:"column:break_even_point;type:decimal(32,18);default:0" json:"break_even_point"`
	// 治理状态（阈值快照与调整历史）
	Governance GovernanceState `gorm:"column:governance;serializer:json" json:"governance"`
	// 状态
	Status FundStatus `gorm:"column:status;type:varchar(20);not null;default:'active'" json:"status"`
	// 乐观锁版本号
	Version int64 `gorm:"column:version;not null;default:0" json:"version"`
}

func (Fund) TableName() string { return "logistic_funds" }

// GovernanceState 资金池上的治理快照
type GovernanceState struct {
	// 紧急与盈余阈值快照，决策时从配置同步
	EmergencyThreshold decimal.Decimal `json:"emergency_threshold"`
	SurplusThreshold   decimal.Decimal `json:"surplus_threshold"`
	// 上次费率调整时间
	LastAdjustedAt *time.Time `json:"last_adjusted_at,omitempty"`
	// 有序的治理决策历史，只追加
	AdjustmentHistory []GovernanceDecision `json:"adjustment_history,omitempty"`
}

// NewFund 创建一个空的活跃资金池
func NewFund(fundID string) *Fund {
	return &Fund{
		FundID:                fundID,
		CurrentBalance:        decimal.Zero,
		TotalContributions:    decimal.Zero,
		TotalPayments:         decimal.Zero,
		EmergencyReserve:      decimal.Zero,
		MarketplaceCommission: decimal.Zero,
		LogisticFee:           decimal.Zero,
		SolidarityPool:        decimal.Zero,
		Status:                FundStatusActive,
	}
}

// Credit 按注资拆分入账
// 要求资金池处于 active 状态且入账金额为正。
func (f *Fund) Credit(b ContributionBreakdown) error {
	if f.Status != FundStatusActive {
		return ErrFundNotActive
	}
	if !b.CreditedAmount.IsPositive() {
		return fmt.Errorf("%w: credited amount must be positive", ErrValidation)
	}

	f.CurrentBalance = f.CurrentBalance.Add(b.CreditedAmount)
	f.TotalContributions = f.TotalContributions.Add(b.CreditedAmount)
	f.MarketplaceCommission = f.MarketplaceCommission.Add(b.CommissionShare)
	f.LogisticFee = f.LogisticFee.Add(b.FeeShare)
	f.SolidarityPool = f.SolidarityPool.Add(b.SolidarityShare)
	return nil
}

// Debit 出账
// 余额不足时返回 ErrInsufficientFunds 并不修改任何字段，由调用方触发紧急升级。
func (f *Fund) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: debit amount must be positive", ErrValidation)
	}
	if f.CurrentBalance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	f.CurrentBalance = f.CurrentBalance.Sub(amount)
	f.TotalPayments = f.TotalPayments.Add(amount)
	return nil
}

// EnterEmergency 切换到紧急模式
func (f *Fund) EnterEmergency() {
	f.Status = FundStatusEmergency
}

// Resume 从紧急模式恢复
func (f *Fund) Resume() {
	f.Status = FundStatusActive
}

// BalanceRatio 余额比 = 当前余额 / max(累计注资, 1)
func (f *Fund) BalanceRatio() decimal.Decimal {
	denom := f.TotalContributions
	if denom.LessThan(decimal.NewFromInt(1)) {
		denom = decimal.NewFromInt(1)
	}
	return f.CurrentBalance.Div(denom)
}

// AppendDecision 追加治理决策到调整历史
func (f *Fund) AppendDecision(d GovernanceDecision) {
	f.Governance.AdjustmentHistory = append(f.Governance.AdjustmentHistory, d)
	if d.Action == ActionIncreaseFee || d.Action == ActionAdjustRates {
		now := d.CreatedAt
		f.Governance.LastAdjustedAt = &now
	}
}

// CheckInvariant 守恒检查：余额 == 累计注资 - 累计支付
// 违反即为设计缺陷，不是可恢复的运行时错误。
func (f *Fund) CheckInvariant() error {
	expected := f.TotalContributions.Sub(f.TotalPayments)
	if !f.CurrentBalance.Equal(expected) {
		return fmt.Errorf("fund %s ledger out of balance: balance=%s contributions=%s payments=%s",
			f.FundID, f.CurrentBalance, f.TotalContributions, f.TotalPayments)
	}
	if f.CurrentBalance.IsNegative() {
		return fmt.Errorf("fund %s has negative balance %s", f.FundID, f.CurrentBalance)
	}
	return nil
}
