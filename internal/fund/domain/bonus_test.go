package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateWeeklyBonus(t *testing.T) {
	cfg := DefaultSettings()

	t.Run("铜牌快递员完整拆分", func(t *testing.T) {
		// 周 25 单、评分 4.7、均时 22 分钟、累计 150 单、可靠性 0.92
		calc := CalculateWeeklyBonus(cfg, CourierWeekStats{
			CourierID:        "C-1001",
			WeeklyDeliveries: 25,
			TotalDeliveries:  150,
			AvgRating:        decimal.NewFromFloat(4.7),
			AvgDeliveryTime:  decimal.NewFromInt(22),
			Reliability:      decimal.NewFromFloat(0.92),
		})

		require.True(t, calc.Eligibility.Eligible)
		assert.Equal(t, TierBronze, calc.Tier.Name)
		assert.True(t, calc.Breakdown.Base.Equal(decimal.NewFromInt(10)))
		assert.True(t, calc.Breakdown.Performance.Equal(decimal.NewFromFloat(3.5)), "performance=%s", calc.Breakdown.Performance)
		assert.True(t, calc.Breakdown.Speed.Equal(decimal.NewFromInt(2)))
		assert.True(t, calc.Breakdown.Loyalty.Equal(decimal.NewFromInt(10)))
		assert.True(t, calc.Breakdown.Volume.Equal(decimal.NewFromFloat(2.5)))
		assert.True(t, calc.Breakdown.Reliability.IsZero())
		assert.True(t, calc.Amount.Equal(decimal.NewFromInt(28)), "amount=%s", calc.Amount)
	})

	t.Run("不足最低档门槛仍归铜牌但不合格", func(t *testing.T) {
		calc := CalculateWeeklyBonus(cfg, CourierWeekStats{
			CourierID:        "C-1002",
			WeeklyDeliveries: 19,
			TotalDeliveries:  80,
			AvgRating:        decimal.NewFromFloat(4.8),
			AvgDeliveryTime:  decimal.NewFromInt(20),
			Reliability:      decimal.NewFromFloat(0.99),
		})

		assert.Equal(t, TierBronze, calc.Tier.Name)
		assert.False(t, calc.Eligibility.MeetsThreshold)
		assert.False(t, calc.Eligibility.Eligible)
		assert.True(t, calc.Amount.IsZero())
	})

	t.Run("低评分不合格", func(t *testing.T) {
		calc := CalculateWeeklyBonus(cfg, CourierWeekStats{
			CourierID:        "C-1003",
			WeeklyDeliveries: 50,
			AvgRating:        decimal.NewFromFloat(3.9),
			AvgDeliveryTime:  decimal.NewFromInt(30),
			Reliability:      decimal.NewFromFloat(0.9),
		})
		assert.False(t, calc.Eligibility.MeetsRating)
		assert.False(t, calc.Eligibility.Eligible)
		assert.True(t, calc.Amount.IsZero())
	})

	t.Run("低可靠性不合格", func(t *testing.T) {
		calc := CalculateWeeklyBonus(cfg, CourierWeekStats{
			CourierID:        "C-1004",
			WeeklyDeliveries: 50,
			AvgRating:        decimal.NewFromFloat(4.5),
			AvgDeliveryTime:  decimal.NewFromInt(30),
			Reliability:      decimal.NewFromFloat(0.8),
		})
		assert.False(t, calc.Eligibility.MeetsReliability)
		assert.True(t, calc.Amount.IsZero())
	})

	t.Run("高可靠性拿到可靠性分量", func(t *testing.T) {
		calc := CalculateWeeklyBonus(cfg, CourierWeekStats{
			CourierID:        "C-1005",
			WeeklyDeliveries: 40,
			TotalDeliveries:  500,
			AvgRating:        decimal.NewFromFloat(4.0),
			AvgDeliveryTime:  decimal.NewFromInt(30),
			Reliability:      decimal.NewFromFloat(0.95),
		})

		require.True(t, calc.Eligibility.Eligible)
		assert.Equal(t, TierSilver, calc.Tier.Name)
		assert.True(t, calc.Breakdown.Reliability.Equal(decimal.NewFromInt(5)))
		assert.True(t, calc.Breakdown.Loyalty.Equal(decimal.NewFromInt(10)), "loyalty capped at 10")
		assert.True(t, calc.Breakdown.Speed.IsZero())
	})
}

func TestTierAssignmentMonotonic(t *testing.T) {
	cfg := DefaultSettings()

	cases := []struct {
		deliveries int
		tier       TierName
	}{
		{0, TierBronze},
		{19, TierBronze},
		{20, TierBronze},
		{39, TierBronze},
		{40, TierSilver},
		{59, TierSilver},
		{60, TierGold},
		{79, TierGold},
		{80, TierElite},
		{200, TierElite},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.tier, cfg.TierFor(tc.deliveries).Name, "deliveries=%d", tc.deliveries)
	}

	// 档位随单量单调不降
	rank := map[TierName]int{TierBronze: 0, TierSilver: 1, TierGold: 2, TierElite: 3}
	prev := -1
	for n := 0; n <= 120; n++ {
		cur := rank[cfg.TierFor(n).Name]
		require.GreaterOrEqual(t, cur, prev, "tier dropped at %d deliveries", n)
		prev = cur
	}
}

func TestCalculateSpecialBonus(t *testing.T) {
	t.Run("无资格时为零", func(t *testing.T) {
		total, items := CalculateSpecialBonus(CourierWeekStats{
			WeeklyDeliveries: 30,
			AvgRating:        decimal.NewFromFloat(4.5),
			AvgDeliveryTime:  decimal.NewFromInt(25),
			Reliability:      decimal.NewFromFloat(0.9),
		})
		assert.True(t, total.IsZero())
		assert.Empty(t, items)
	})

	t.Run("条件非互斥可叠加", func(t *testing.T) {
		total, items := CalculateSpecialBonus(CourierWeekStats{
			WeeklyDeliveries: 120,
			AvgRating:        decimal.NewFromFloat(4.95),
			AvgDeliveryTime:  decimal.NewFromInt(18),
			Reliability:      decimal.NewFromFloat(0.99),
		})

		// 5 + 10 + 20 + 15
		assert.True(t, total.Equal(decimal.NewFromInt(50)), "total=%s", total)
		require.Len(t, items, 4)
		names := make([]string, 0, len(items))
		for _, it := range items {
			names = append(names, it.Name)
		}
		assert.ElementsMatch(t, []string{"speed_demon", "five_star", "century_volume", "rock_solid"}, names)
	})

	t.Run("边界值不触发", func(t *testing.T) {
		total, _ := CalculateSpecialBonus(CourierWeekStats{
			WeeklyDeliveries: 100,
			AvgRating:        decimal.NewFromFloat(4.89),
			AvgDeliveryTime:  decimal.NewFromInt(20),
			Reliability:      decimal.NewFromFloat(0.97),
		})
		assert.True(t, total.IsZero())
	})
}
