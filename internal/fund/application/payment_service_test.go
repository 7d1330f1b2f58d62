package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
)

// 预置余额：先走正常注资路径入账若干订单
func fundedFixture(t *testing.T, orders int) (*PaymentService, *fakeStore) {
	t.Helper()
	store := newFakeStore(domain.NewFund("FUND-TEST"))
	contrib := NewContributionService(store, &fakeTxnRepo{store: store}, newFakeSettingsRepo(domain.DefaultSettings()), newTestAuditor(), nil)
	for i := 0; i < orders; i++ {
		_, err := contrib.ProcessOrderContribution(context.Background(), ProcessContributionCommand{
			OrderID:    string(rune('A'+i)) + "-SEED",
			OrderValue: decimal.NewFromInt(1000),
		})
		require.NoError(t, err)
	}
	svc := NewPaymentService(store, &fakeTxnRepo{store: store}, newTestAuditor(), nil)
	return svc, store
}

func TestProcessDeliveryPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("出账并登记流水", func(t *testing.T) {
		svc, store := fundedFixture(t, 1)
		before, _ := store.GetActive(ctx)

		result, err := svc.ProcessDeliveryPayment(ctx, ProcessPaymentCommand{
			DeliveryID:    "DEL-1",
			OrderID:       "ORD-1",
			CourierID:     "C-1",
			BasePayment:   decimal.NewFromInt(5),
			Bonus:         decimal.NewFromInt(2),
			DeliveryLevel: "express",
			Performance:   decimal.NewFromFloat(4.8),
		})
		require.NoError(t, err)
		assert.True(t, result.TotalPaid.Equal(decimal.NewFromInt(7)))

		fund, _ := store.GetActive(ctx)
		require.NoError(t, fund.CheckInvariant())
		assert.True(t, fund.CurrentBalance.Equal(before.CurrentBalance.Sub(decimal.NewFromInt(7))))
		assert.True(t, fund.TotalPayments.Equal(decimal.NewFromInt(7)))

		txns := store.allTxns()
		last := txns[len(txns)-1]
		assert.Equal(t, domain.TransactionTypePayment, last.Type)
		assert.True(t, last.Amount.Equal(decimal.NewFromInt(-7)), "payments are negative amounts")

		// 流水明细携带基础/奖金拆分与配送档位、绩效评分
		require.NotNil(t, last.Detail.Payment)
		assert.True(t, last.Detail.Payment.BasePayment.Equal(decimal.NewFromInt(5)))
		assert.True(t, last.Detail.Payment.BonusAmount.Equal(decimal.NewFromInt(2)))
		assert.Equal(t, "express", last.Detail.Payment.DeliveryLevel)
		assert.True(t, last.Detail.Payment.Performance.Equal(decimal.NewFromFloat(4.8)))
	})

	t.Run("同一配送同一订单幂等", func(t *testing.T) {
		svc, store := fundedFixture(t, 1)

		cmd := ProcessPaymentCommand{
			DeliveryID:  "DEL-DUP",
			OrderID:     "ORD-DUP",
			BasePayment: decimal.NewFromInt(4),
		}
		first, err := svc.ProcessDeliveryPayment(ctx, cmd)
		require.NoError(t, err)

		second, err := svc.ProcessDeliveryPayment(ctx, cmd)
		require.NoError(t, err)
		assert.True(t, second.Duplicate)
		assert.Equal(t, first.TransactionID, second.TransactionID)

		fund, _ := store.GetActive(ctx)
		assert.True(t, fund.TotalPayments.Equal(decimal.NewFromInt(4)), "duplicate must not debit twice")
	})

	t.Run("同一配送不同订单是两笔支付", func(t *testing.T) {
		svc, store := fundedFixture(t, 1)

		_, err := svc.ProcessDeliveryPayment(ctx, ProcessPaymentCommand{
			DeliveryID: "DEL-X", OrderID: "ORD-X1", BasePayment: decimal.NewFromInt(3),
		})
		require.NoError(t, err)
		_, err = svc.ProcessDeliveryPayment(ctx, ProcessPaymentCommand{
			DeliveryID: "DEL-X", OrderID: "ORD-X2", BasePayment: decimal.NewFromInt(3),
		})
		require.NoError(t, err)

		fund, _ := store.GetActive(ctx)
		assert.True(t, fund.TotalPayments.Equal(decimal.NewFromInt(6)))
	})

	t.Run("余额不足时升级紧急且不动账", func(t *testing.T) {
		svc, store := fundedFixture(t, 1)
		before, _ := store.GetActive(ctx)

		_, err := svc.ProcessDeliveryPayment(ctx, ProcessPaymentCommand{
			DeliveryID:  "DEL-BIG",
			OrderID:     "ORD-BIG",
			BasePayment: before.CurrentBalance.Add(decimal.NewFromInt(1)),
		})
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)

		fund, _ := store.GetActive(ctx)
		assert.Equal(t, domain.FundStatusEmergency, fund.Status)
		assert.True(t, fund.CurrentBalance.Equal(before.CurrentBalance), "failed debit must not change balance")
		assert.True(t, fund.TotalPayments.IsZero())
		require.NoError(t, fund.CheckInvariant())

		// 留痕：一笔金额为零的紧急标记流水
		txns := store.allTxns()
		last := txns[len(txns)-1]
		assert.Equal(t, domain.TransactionTypeEmergency, last.Type)
		assert.True(t, last.Amount.IsZero())

		// 紧急状态下后续支付被拒绝
		_, err = svc.ProcessDeliveryPayment(ctx, ProcessPaymentCommand{
			DeliveryID: "DEL-NEXT", OrderID: "ORD-NEXT", BasePayment: decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, domain.ErrFundNotActive)
	})

	t.Run("入参校验", func(t *testing.T) {
		svc, _ := fundedFixture(t, 1)

		_, err := svc.ProcessDeliveryPayment(ctx, ProcessPaymentCommand{OrderID: "ORD-1", BasePayment: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = svc.ProcessDeliveryPayment(ctx, ProcessPaymentCommand{
			DeliveryID: "DEL-1", OrderID: "ORD-1", BasePayment: decimal.NewFromInt(-1),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = svc.ProcessDeliveryPayment(ctx, ProcessPaymentCommand{DeliveryID: "DEL-1", OrderID: "ORD-1"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
