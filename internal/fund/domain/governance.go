package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundHealth 资金池健康度
type FundHealth string

const (
	HealthHealthy   FundHealth = "healthy"
	HealthWarning   FundHealth = "warning"
	HealthEmergency FundHealth = "emergency"
)

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// GovernanceAction 治理动作
type GovernanceAction string

const (
	ActionMaintain         GovernanceAction = "maintain"
	ActionAdjustRates      GovernanceAction = "adjust_rates"
	ActionIncreaseFee      GovernanceAction = "increase_fee"
	ActionDistributeBonus  GovernanceAction = "distribute_bonus"
	ActionEmergencyFund    GovernanceAction = "emergency_fund"
	ActionResumeOperations GovernanceAction = "resume_operations"
)

// ImplementationTiming 决策落地节奏
type ImplementationTiming string

const (
	TimingImmediate ImplementationTiming = "immediate"
	TimingGradual   ImplementationTiming = "gradual_14d"
)

// FundMetrics 治理决策的输入指标
// 盈利率与注资/支付来自账务流水的滚动窗口，余额比来自资金池快照。
type FundMetrics struct {
	WindowContributions decimal.Decimal `json:"window_contributions"`
	WindowPayments      decimal.Decimal `json:"window_payments"`
	// 周盈利率 = (注资-支付)/注资*100，注资为零时记 0
	Profitability decimal.Decimal `json:"profitability"`
	// 余额比 = 当前余额 / max(累计注资, 1)
	BalanceRatio decimal.Decimal `json:"balance_ratio"`
	Health       FundHealth      `json:"health"`
	Risk         RiskLevel       `json:"risk"`
}

// Profitability 滚动窗口盈利率
func Profitability(contributions, payments decimal.Decimal) decimal.Decimal {
	if !contributions.IsPositive() {
		return decimal.Zero
	}
	return contributions.Sub(payments).Div(contributions).Mul(decimal.NewFromInt(100))
}

// ClassifyHealth 健康度分类
func ClassifyHealth(balanceRatio, profitability decimal.Decimal) FundHealth {
	switch {
	case balanceRatio.LessThan(decimal.NewFromFloat(0.1)) || profitability.IsNegative():
		return HealthEmergency
	case balanceRatio.LessThan(decimal.NewFromFloat(0.2)) || profitability.LessThan(decimal.NewFromInt(5)):
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// ClassifyRisk 风险等级分类
func ClassifyRisk(balanceRatio, profitability decimal.Decimal) RiskLevel {
	switch {
	case balanceRatio.LessThan(decimal.NewFromFloat(0.05)) || profitability.LessThan(decimal.NewFromInt(-10)):
		return RiskCritical
	case balanceRatio.LessThan(decimal.NewFromFloat(0.15)) || profitability.IsNegative():
		return RiskHigh
	case balanceRatio.LessThan(decimal.NewFromFloat(0.3)) || profitability.LessThan(decimal.NewFromInt(10)):
		return RiskMedium
	default:
		return RiskLow
	}
}

// GovernanceDecision 一次治理分析产出的离散决策，产出后不再修改
type GovernanceDecision struct {
	DecisionID string           `json:"decision_id"`
	Action     GovernanceAction `json:"action"`
	Reason     string           `json:"reason"`
	OldValue   decimal.Decimal  `json:"old_value"`
	NewValue   decimal.Decimal  `json:"new_value"`
	Impact     string           `json:"impact"`
	// 置信度（0-100）
	Confidence     int                  `json:"confidence"`
	Implementation ImplementationTiming `json:"implementation"`
	Metrics        FundMetrics          `json:"metrics"`
	CreatedAt      time.Time            `json:"created_at"`
}

// clampFee 费率始终钳制在 [feeMin, maxFee]
func clampFee(fee, feeMin, maxFee decimal.Decimal) decimal.Decimal {
	if fee.GreaterThan(maxFee) {
		return maxFee
	}
	if fee.LessThan(feeMin) {
		return feeMin
	}
	return fee
}

// Decide 按严格优先级选出唯一治理动作（先命中先生效）：
//  1. 健康度 emergency 或风险 critical → emergency_fund
//  2. 盈利率 < 最低盈利率*0.5 → increase_fee（+15%，有上限）
//  3. 盈利率 < 最低盈利率 → adjust_rates（+5%，有上限，14 天渐进）
//  4. 盈利率 > 盈余阈值 → distribute_bonus（按配置比例分配盈余）
//  5. 其余 → maintain（紧急状态下恢复健康时给出 resume_operations）
func Decide(policy GovernancePolicy, m FundMetrics, feeBase, feeMin decimal.Decimal, status FundStatus) GovernanceDecision {
	now := time.Now()

	switch {
	case m.Health == HealthEmergency || m.Risk == RiskCritical:
		return GovernanceDecision{
			Action:         ActionEmergencyFund,
			Reason:         "fund health emergency or critical risk level",
			OldValue:       m.BalanceRatio,
			NewValue:       m.BalanceRatio,
			Impact:         "suspend normal payment flow until replenished",
			Confidence:     95,
			Implementation: TimingImmediate,
			Metrics:        m,
			CreatedAt:      now,
		}

	case m.Profitability.LessThan(policy.MinProfitability.Mul(decimal.NewFromFloat(0.5))):
		newFee := clampFee(feeBase.Mul(decimal.NewFromFloat(1.15)), feeMin, policy.MaxLogisticFee)
		return GovernanceDecision{
			Action:         ActionIncreaseFee,
			Reason:         "profitability below half of the minimum target",
			OldValue:       feeBase,
			NewValue:       newFee,
			Impact:         "raise logistic fee by 15% to restore margin",
			Confidence:     85,
			Implementation: TimingImmediate,
			Metrics:        m,
			CreatedAt:      now,
		}

	case m.Profitability.LessThan(policy.MinProfitability):
		newFee := clampFee(feeBase.Mul(decimal.NewFromFloat(1.05)), feeMin, policy.MaxLogisticFee)
		return GovernanceDecision{
			Action:         ActionAdjustRates,
			Reason:         "profitability below minimum target",
			OldValue:       feeBase,
			NewValue:       newFee,
			Impact:         "raise logistic fee by 5% gradually",
			Confidence:     75,
			Implementation: TimingGradual,
			Metrics:        m,
			CreatedAt:      now,
		}

	case m.Profitability.GreaterThan(policy.SurplusThreshold):
		return GovernanceDecision{
			Action:         ActionDistributeBonus,
			Reason:         "profitability above surplus threshold",
			OldValue:       decimal.Zero,
			NewValue:       policy.SurplusDistributionRate,
			Impact:         "distribute a share of the balance as surplus bonuses",
			Confidence:     90,
			Implementation: TimingImmediate,
			Metrics:        m,
			CreatedAt:      now,
		}

	case status == FundStatusEmergency && m.Health == HealthHealthy:
		return GovernanceDecision{
			Action:         ActionResumeOperations,
			Reason:         "fund recovered from emergency",
			Impact:         "restore normal payment flow",
			Confidence:     90,
			Implementation: TimingImmediate,
			Metrics:        m,
			CreatedAt:      now,
		}

	default:
		return GovernanceDecision{
			Action:         ActionMaintain,
			Reason:         "fund within healthy operating bounds",
			Impact:         "no change",
			Confidence:     95,
			Implementation: TimingImmediate,
			Metrics:        m,
			CreatedAt:      now,
		}
	}
}
