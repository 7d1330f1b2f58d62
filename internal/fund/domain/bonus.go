package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BonusType 奖金种类
type BonusType string

const (
	BonusTypeWeekly  BonusType = "weekly"
	BonusTypeSpecial BonusType = "special"
	BonusTypeSurplus BonusType = "surplus"
)

// BonusStatus 奖金状态
type BonusStatus string

const (
	BonusStatusPending   BonusStatus = "pending"
	BonusStatusApproved  BonusStatus = "approved"
	BonusStatusPaid      BonusStatus = "paid"
	BonusStatusCancelled BonusStatus = "cancelled"
)

// CourierWeekStats 快递员一周的滚动统计
// 由外部分析系统投喂，本核心只读。
type CourierWeekStats struct {
	CourierID        string          `json:"courier_id"`
	WeekNumber       int             `json:"week_number"`
	Year             int             `json:"year"`
	WeeklyDeliveries int             `json:"weekly_deliveries"`
	TotalDeliveries  int             `json:"total_deliveries"`
	AvgRating        decimal.Decimal `json:"avg_rating"`
	AvgDeliveryTime  decimal.Decimal `json:"avg_delivery_time"`
	Reliability      decimal.Decimal `json:"reliability"`
}

// BonusEligibility 资格检查快照
type BonusEligibility struct {
	MeetsThreshold   bool `json:"meets_threshold"`
	MeetsRating      bool `json:"meets_rating"`
	MeetsReliability bool `json:"meets_reliability"`
	MeetsVolume      bool `json:"meets_volume"`
	Eligible         bool `json:"eligible"`
}

// BonusBreakdown 周奖金六项拆分，各项下限为零
type BonusBreakdown struct {
	Base        decimal.Decimal `json:"base"`
	Performance decimal.Decimal `json:"performance"`
	Speed       decimal.Decimal `json:"speed"`
	Loyalty     decimal.Decimal `json:"loyalty"`
	Volume      decimal.Decimal `json:"volume"`
	Reliability decimal.Decimal `json:"reliability"`
	Total       decimal.Decimal `json:"total"`
}

// SpecialBonusItem 特别奖金单项
type SpecialBonusItem struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// BonusCalculation 一次奖金计算的完整结果
// 不合格时金额为零，但结果（含资格标记）仍然返回以便观测。
type BonusCalculation struct {
	CourierID   string           `json:"courier_id"`
	Tier        BonusTier        `json:"tier"`
	Eligibility BonusEligibility `json:"eligibility"`
	Breakdown   BonusBreakdown   `json:"breakdown"`
	Amount      decimal.Decimal  `json:"amount"`
}

// 周奖金资格基线
var (
	minEligibleRating      = decimal.NewFromFloat(4.0)
	minEligibleReliability = decimal.NewFromFloat(0.85)
	minWeeklyDeliveries    = 20
)

// CalculateWeeklyBonus 计算单个快递员的周奖金
// 等级按周配送量从最高档向下匹配；合格时金额为六个独立分量之和。
func CalculateWeeklyBonus(s *Settings, stats CourierWeekStats) BonusCalculation {
	tier := s.TierFor(stats.WeeklyDeliveries)

	eligibility := BonusEligibility{
		MeetsThreshold:   stats.WeeklyDeliveries >= tier.Threshold,
		MeetsRating:      stats.AvgRating.GreaterThanOrEqual(minEligibleRating),
		MeetsReliability: stats.Reliability.GreaterThanOrEqual(minEligibleReliability),
		MeetsVolume:      stats.WeeklyDeliveries >= minWeeklyDeliveries,
	}
	eligibility.Eligible = eligibility.MeetsThreshold && eligibility.MeetsRating &&
		eligibility.MeetsReliability && eligibility.MeetsVolume

	calc := BonusCalculation{
		CourierID:   stats.CourierID,
		Tier:        tier,
		Eligibility: eligibility,
		Amount:      decimal.Zero,
	}
	if !eligibility.Eligible {
		return calc
	}

	b := BonusBreakdown{
		Base:        tier.BaseBonus,
		Performance: clampZero(stats.AvgRating.Sub(minEligibleRating).Mul(decimal.NewFromInt(5))),
		Loyalty:     decimal.Min(decimal.NewFromInt(int64(stats.TotalDeliveries)).Mul(decimal.NewFromFloat(0.1)), decimal.NewFromInt(10)),
		Volume:      clampZero(decimal.NewFromInt(int64(stats.WeeklyDeliveries - tier.Threshold)).Mul(decimal.NewFromFloat(0.5))),
	}
	if stats.AvgDeliveryTime.LessThan(decimal.NewFromInt(25)) {
		b.Speed = decimal.NewFromInt(2)
	}
	if stats.Reliability.GreaterThanOrEqual(decimal.NewFromFloat(0.95)) {
		b.Reliability = decimal.NewFromInt(5)
	}
	b.Total = b.Base.Add(b.Performance).Add(b.Speed).Add(b.Loyalty).Add(b.Volume).Add(b.Reliability)

	calc.Breakdown = b
	calc.Amount = b.Total
	return calc
}

// CalculateSpecialBonus 计算非互斥的特别奖金
// 条件独立于周奖金：极速、高评分、高单量、高可靠性。
func CalculateSpecialBonus(stats CourierWeekStats) (decimal.Decimal, []SpecialBonusItem) {
	var items []SpecialBonusItem
	total := decimal.Zero

	award := func(name string, amount int64) {
		a := decimal.NewFromInt(amount)
		items = append(items, SpecialBonusItem{Name: name, Amount: a})
		total = total.Add(a)
	}

	if stats.AvgDeliveryTime.LessThan(decimal.NewFromInt(20)) {
		award("speed_demon", 5)
	}
	if stats.AvgRating.GreaterThanOrEqual(decimal.NewFromFloat(4.9)) {
		award("five_star", 10)
	}
	if stats.WeeklyDeliveries > 100 {
		award("century_volume", 20)
	}
	if stats.Reliability.GreaterThanOrEqual(decimal.NewFromFloat(0.98)) {
		award("rock_solid", 15)
	}
	return total, items
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// DeliveryBonus 已授予奖金记录
// (courier_id, week_number, year, bonus_type) 唯一，保证每周期至多一份。
type DeliveryBonus struct {
	gorm.Model
	// 奖金 ID（业务主键）
	BonusID string `gorm:"column:bonus_id;type:varchar(32);uniqueIndex;not null" json:"bonus_id"`
	// 资金池 ID
	FundID string `gorm:"column:fund_id;type:varchar(32);index;not null" json:"fund_id"`
	// 快递员 ID
	CourierID string `gorm:"column:courier_id;type:varchar(64);uniqueIndex:uniq_courier_period;not null" json:"courier_id"`
	// 奖金种类
	BonusType BonusType `gorm:"column:bonus_type;type:varchar(16);uniqueIndex:uniq_courier_period;not null" json:"bonus_type"`
	// 周期
	WeekNumber int `gorm:"column:week_number;uniqueIndex:uniq_courier_period;not null" json:"week_number"`
	Year       int `gorm:"column:year;uniqueIndex:uniq_courier_period;not null" json:"year"`
	// 金额
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(32,18);not null" json:"amount"`
	// 计算时的资格快照与拆分
	Eligibility BonusEligibility `gorm:"column:eligibility;serializer:json" json:"eligibility"`
	Breakdown   BonusBreakdown   `gorm:"column:breakdown;serializer:json" json:"breakdown"`
	// 特别奖金单项（仅 special 类型使用）
	SpecialItems []SpecialBonusItem `gorm:"column:special_items;serializer:json" json:"special_items,omitempty"`
	// 状态：支付流水完成后进入 paid
	Status BonusStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
}

func (DeliveryBonus) TableName() string { return "logistic_delivery_bonuses" }

// BonusStatistics 奖金聚合统计
type BonusStatistics struct {
	TotalCount   int64                     `json:"total_count"`
	TotalAmount  decimal.Decimal           `json:"total_amount"`
	CountByType  map[BonusType]int64       `json:"count_by_type"`
	AmountByType map[BonusType]decimal.Decimal `json:"amount_by_type"`
}
