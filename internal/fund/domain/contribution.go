package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ContributionBreakdown 一笔订单注资的完整拆分
// 三个 share 之和即为实际入账金额 CreditedAmount。
type ContributionBreakdown struct {
	OrderValue     decimal.Decimal `json:"order_value"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	// 原始三项
	MarketplaceCommission decimal.Decimal `json:"marketplace_commission"`
	LogisticFee           decimal.Decimal `json:"logistic_fee"`
	SolidarityPool        decimal.Decimal `json:"solidarity_pool"`
	// 计费因子
	Zone             string          `json:"zone"`
	ZoneMultiplier   decimal.Decimal `json:"zone_multiplier"`
	DemandMultiplier decimal.Decimal `json:"demand_multiplier"`
	PeakHours        bool            `json:"peak_hours"`
	Priority         bool            `json:"priority"`
	// 加权入账
	CommissionShare decimal.Decimal `json:"commission_share"`
	FeeShare        decimal.Decimal `json:"fee_share"`
	SolidarityShare decimal.Decimal `json:"solidarity_share"`
	CreditedAmount  decimal.Decimal `json:"credited_amount"`
}

// ComputeContribution 根据配置计算订单注资拆分
//
//	marketplaceCommission = orderValue * commissionRate
//	logisticFee           = min(feeBase * zoneMultiplier * demandMultiplier, feeMax)
//	solidarityPool        = marketplaceCommission * solidarityRate
//
// 入账金额为三项按配置权重的加权和（默认 60/25/15）。
func ComputeContribution(s *Settings, orderValue decimal.Decimal, zone string, peakHours, priority bool) (ContributionBreakdown, error) {
	if !orderValue.IsPositive() {
		return ContributionBreakdown{}, fmt.Errorf("%w: order value must be positive", ErrValidation)
	}

	zoneMult := s.ZoneMultiplier(zone)
	demandMult := s.DemandMultiplier(peakHours, priority)

	commission := orderValue.Mul(s.CommissionRate)
	fee := s.FeeBase.Mul(zoneMult).Mul(demandMult)
	if fee.GreaterThan(s.FeeMax) {
		fee = s.FeeMax
	}
	solidarity := commission.Mul(s.SolidarityRate)

	b := ContributionBreakdown{
		OrderValue:            orderValue,
		CommissionRate:        s.CommissionRate,
		MarketplaceCommission: commission,
		LogisticFee:           fee,
		SolidarityPool:        solidarity,
		Zone:                  zone,
		ZoneMultiplier:        zoneMult,
		DemandMultiplier:      demandMult,
		PeakHours:             peakHours,
		Priority:              priority,
		CommissionShare:       commission.Mul(s.CommissionShare),
		FeeShare:              fee.Mul(s.FeeShare),
		SolidarityShare:       solidarity.Mul(s.SolidarityShare),
	}
	b.CreditedAmount = b.CommissionShare.Add(b.FeeShare).Add(b.SolidarityShare)
	return b, nil
}
