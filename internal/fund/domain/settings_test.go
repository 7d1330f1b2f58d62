package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsValidate(t *testing.T) {
	t.Run("默认配置自洽", func(t *testing.T) {
		require.NoError(t, DefaultSettings().Validate())
	})

	t.Run("抽成比例越界", func(t *testing.T) {
		cfg := DefaultSettings()
		cfg.CommissionRate = decimal.NewFromInt(1)
		assert.ErrorIs(t, cfg.Validate(), ErrValidation)
	})

	t.Run("权重之和必须为一", func(t *testing.T) {
		cfg := DefaultSettings()
		cfg.CommissionShare = decimal.NewFromFloat(0.5)
		assert.ErrorIs(t, cfg.Validate(), ErrValidation)
	})

	t.Run("费基必须落在上下限内", func(t *testing.T) {
		cfg := DefaultSettings()
		cfg.FeeBase = decimal.NewFromInt(5)
		assert.ErrorIs(t, cfg.Validate(), ErrValidation)
	})

	t.Run("档位门槛必须严格递增", func(t *testing.T) {
		cfg := DefaultSettings()
		cfg.BonusTiers[2].Threshold = cfg.BonusTiers[1].Threshold
		assert.ErrorIs(t, cfg.Validate(), ErrValidation)
	})
}

func TestSettingsAppendChange(t *testing.T) {
	cfg := DefaultSettings()
	cfg.AppendChange("admin-1", "fee_base", "0.5", "0.6")
	cfg.AppendChange("admin-1", "commission_rate", "0.12", "0.13")

	require.Len(t, cfg.ChangeHistory, 2)
	assert.Equal(t, "fee_base", cfg.ChangeHistory[0].Field)
	assert.Equal(t, "admin-1", cfg.ChangeHistory[0].ChangedBy)
	assert.False(t, cfg.ChangeHistory[0].ChangedAt.IsZero())
}
