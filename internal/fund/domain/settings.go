package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TierName 快递员等级
type TierName string

const (
	TierBronze TierName = "bronze"
	TierSilver TierName = "silver"
	TierGold   TierName = "gold"
	TierElite  TierName = "elite"
)

// BonusTier 等级配置：门槛、基础奖金、乘数
type BonusTier struct {
	Name       TierName        `json:"name"`
	Threshold  int             `json:"threshold"`
	BaseBonus  decimal.Decimal `json:"base_bonus"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// GovernancePolicy 治理策略参数
type GovernancePolicy struct {
	// 最低周盈利率（百分比）
	MinProfitability decimal.Decimal `json:"min_profitability"`
	// 物流费上限
	MaxLogisticFee decimal.Decimal `json:"max_logistic_fee"`
	// 紧急阈值（余额比）
	EmergencyThreshold decimal.Decimal `json:"emergency_threshold"`
	// 盈余阈值（盈利率百分比）
	SurplusThreshold decimal.Decimal `json:"surplus_threshold"`
	// 盈余分配比例（占当前余额）
	SurplusDistributionRate decimal.Decimal `json:"surplus_distribution_rate"`
	// 两次费率调整的最小间隔（小时）
	AdjustmentIntervalHours int `json:"adjustment_interval_hours"`
}

// ZoneConfig 配送区域乘数
type ZoneConfig struct {
	Name       string          `json:"name"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// DemandConfig 需求等级乘数
type DemandConfig struct {
	// 高峰时段乘数
	PeakMultiplier decimal.Decimal `json:"peak_multiplier"`
	// 优先配送乘数
	PriorityMultiplier decimal.Decimal `json:"priority_multiplier"`
}

// SettingsChange 配置变更审计记录
type SettingsChange struct {
	ChangedBy string          `json:"changed_by"`
	Field     string          `json:"field"`
	OldValue  string          `json:"old_value"`
	NewValue  string          `json:"new_value"`
	ChangedAt time.Time       `json:"changed_at"`
}

// Settings 费率与策略配置（版本化单行）
// 仅由管理员操作或治理引擎的自动调整修改。
type Settings struct {
	gorm.Model
	// 配置键，单资金池场景下固定一行
	SettingsKey string `gorm:"column:settings_key;type:varchar(32);uniqueIndex;not null" json:"settings_key"`
	// 平台抽成比例（0-1）
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:decimal(8,6);not null" json:"commission_rate"`
	// 互助池比例（对抽成）
	SolidarityRate decimal.Decimal `gorm:"column:solidarity_rate;type:decimal(8,6);not null" json:"solidarity_rate"`
	// 物流费基数与上下限
	FeeBase decimal.Decimal `gorm:"column:fee_base;type:decimal(16,6);not null" json:"fee_base"`
	FeeMin  decimal.Decimal `gorm:"column:fee_min;type:decimal(16,6);not null" json:"fee_min"`
	FeeMax  decimal.Decimal `gorm:"column:fee_max;type:decimal(16,6);not null" json:"fee_max"`
	// 三项入账权重（默认 0.60/0.25/0.15）
	CommissionShare decimal.Decimal `gorm:"column:commission_share;type:decimal(8,6);not null" json:"commission_share"`
	FeeShare        decimal.Decimal `gorm:"column:fee_share;type:decimal(8,6);not null" json:"fee_share"`
	SolidarityShare decimal.Decimal `gorm:"column:solidarity_share;type:decimal(8,6);not null" json:"solidarity_share"`
	// 单笔提现上限
	WithdrawalLimit decimal.Decimal `gorm:"column:withdrawal_limit;type:decimal(32,18);not null" json:"withdrawal_limit"`
	// 四级奖金表，按门槛升序
	BonusTiers []BonusTier `gorm:"column:bonus_tiers;serializer:json" json:"bonus_tiers"`
	// 治理策略
	Governance GovernancePolicy `gorm:"column:governance;serializer:json" json:"governance"`
	// 区域乘数
	Zones []ZoneConfig `gorm:"column:zones;serializer:json" json:"zones"`
	// 需求乘数
	Demand DemandConfig `gorm:"column:demand;serializer:json" json:"demand"`
	// 变更历史，只追加
	ChangeHistory []SettingsChange `gorm:"column:change_history;serializer:json" json:"change_history"`
	// 乐观锁版本号
	Version int64 `gorm:"column:version;not null;default:0" json:"version"`
}

func (Settings) TableName() string { return "logistic_fund_settings" }

// DefaultSettingsKey 单资金池场景下的配置键
const DefaultSettingsKey = "logistic"

// DefaultSettings 返回默认费率与策略
func DefaultSettings() *Settings {
	return &Settings{
		SettingsKey:     DefaultSettingsKey,
		CommissionRate:  decimal.NewFromFloat(0.12),
		SolidarityRate:  decimal.NewFromFloat(0.15),
		FeeBase:         decimal.NewFromFloat(0.5),
		FeeMin:          decimal.NewFromFloat(0.2),
		FeeMax:          decimal.NewFromFloat(3.0),
		CommissionShare: decimal.NewFromFloat(0.60),
		FeeShare:        decimal.NewFromFloat(0.25),
		SolidarityShare: decimal.NewFromFloat(0.15),
		WithdrawalLimit: decimal.NewFromInt(500),
		BonusTiers: []BonusTier{
			{Name: TierBronze, Threshold: 20, BaseBonus: decimal.NewFromInt(10), Multiplier: decimal.NewFromFloat(1.0)},
			{Name: TierSilver, Threshold: 40, BaseBonus: decimal.NewFromInt(20), Multiplier: decimal.NewFromFloat(1.2)},
			{Name: TierGold, Threshold: 60, BaseBonus: decimal.NewFromInt(35), Multiplier: decimal.NewFromFloat(1.5)},
			{Name: TierElite, Threshold: 80, BaseBonus: decimal.NewFromInt(50), Multiplier: decimal.NewFromFloat(2.0)},
		},
		Governance: GovernancePolicy{
			MinProfitability:        decimal.NewFromInt(10),
			MaxLogisticFee:          decimal.NewFromFloat(3.0),
			EmergencyThreshold:      decimal.NewFromFloat(0.1),
			SurplusThreshold:        decimal.NewFromInt(20),
			SurplusDistributionRate: decimal.NewFromFloat(0.10),
			AdjustmentIntervalHours: 24,
		},
		Zones: []ZoneConfig{
			{Name: "urban", Multiplier: decimal.NewFromFloat(1.0)},
			{Name: "suburban", Multiplier: decimal.NewFromFloat(1.2)},
			{Name: "rural", Multiplier: decimal.NewFromFloat(1.5)},
		},
		Demand: DemandConfig{
			PeakMultiplier:     decimal.NewFromFloat(1.3),
			PriorityMultiplier: decimal.NewFromFloat(1.5),
		},
	}
}

// ZoneMultiplier 返回指定区域的乘数，未知区域回退为 1.0
func (s *Settings) ZoneMultiplier(zone string) decimal.Decimal {
	for _, z := range s.Zones {
		if z.Name == zone {
			return z.Multiplier
		}
	}
	return decimal.NewFromInt(1)
}

// DemandMultiplier 根据高峰/优先标记返回需求乘数，优先级更高
func (s *Settings) DemandMultiplier(peakHours, priority bool) decimal.Decimal {
	switch {
	case priority:
		return s.Demand.PriorityMultiplier
	case peakHours:
		return s.Demand.PeakMultiplier
	default:
		return decimal.NewFromInt(1)
	}
}

// TierFor 按周配送量匹配等级，从最高档开始判断
// 不足最低档门槛时仍返回最低档（资格标记由奖金引擎单独给出）。
func (s *Settings) TierFor(weeklyDeliveries int) BonusTier {
	for i := len(s.BonusTiers) - 1; i >= 0; i-- {
		if weeklyDeliveries >= s.BonusTiers[i].Threshold {
			return s.BonusTiers[i]
		}
	}
	return s.BonusTiers[0]
}

// Validate 校验配置自洽性
func (s *Settings) Validate() error {
	one := decimal.NewFromInt(1)
	if !s.CommissionRate.IsPositive() || s.CommissionRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: commission rate must be in (0,1)", ErrValidation)
	}
	if s.SolidarityRate.IsNegative() || s.SolidarityRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: solidarity rate must be in [0,1)", ErrValidation)
	}
	if s.FeeBase.LessThan(s.FeeMin) || s.FeeBase.GreaterThan(s.FeeMax) {
		return fmt.Errorf("%w: fee base must be within [fee_min, fee_max]", ErrValidation)
	}
	if !s.CommissionShare.Add(s.FeeShare).Add(s.SolidarityShare).Equal(one) {
		return fmt.Errorf("%w: contribution shares must sum to 1", ErrValidation)
	}
	if len(s.BonusTiers) == 0 {
		return fmt.Errorf("%w: at least one bonus tier required", ErrValidation)
	}
	for i := 1; i < len(s.BonusTiers); i++ {
		if s.BonusTiers[i].Threshold <= s.BonusTiers[i-1].Threshold {
			return fmt.Errorf("%w: bonus tier thresholds must be strictly ascending", ErrValidation)
		}
	}
	if s.Governance.MaxLogisticFee.LessThan(s.FeeMin) {
		return fmt.Errorf("%w: max logistic fee below fee_min", ErrValidation)
	}
	return nil
}

// AppendChange 记录一条配置变更
func (s *Settings) AppendChange(changedBy, field, oldValue, newValue string) {
	s.ChangeHistory = append(s.ChangeHistory, SettingsChange{
		ChangedBy: changedBy,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedAt: time.Now(),
	})
}
