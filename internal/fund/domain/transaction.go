package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType 账务流水类型
type TransactionType string

const (
	TransactionTypeContribution TransactionType = "contribution"
	TransactionTypePayment      TransactionType = "payment"
	TransactionTypeBonus        TransactionType = "bonus"
	TransactionTypeAdjustment   TransactionType = "adjustment"
	TransactionTypeEmergency    TransactionType = "emergency"
	TransactionTypeSurplus      TransactionType = "surplus_distribution"
)

// TransactionStatus 流水状态
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Transaction 账务流水，只追加不修改
// completed/failed 之后不再变更，勘误以新流水追加。
type Transaction struct {
	gorm.Model
	// 流水 ID（业务主键）
	TransactionID string `gorm:"column:transaction_id;type:varchar(32);uniqueIndex;not null" json:"transaction_id"`
	// 资金池 ID
	FundID string `gorm:"column:fund_id;type:varchar(32);index;not null" json:"fund_id"`
	// 关联订单（可为空）
	OrderID string `gorm:"column:order_id;type:varchar(64);index" json:"order_id,omitempty"`
	// 关联配送（可为空）
	DeliveryID string `gorm:"column:delivery_id;type:varchar(64);index" json:"delivery_id,omitempty"`
	// 类型
	Type TransactionType `gorm:"column:type;type:varchar(24);not null;index" json:"type"`
	// 有符号金额：正为入账，负为出账
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(32,18);not null" json:"amount"`
	// 类型相关的明细负载
	Detail TransactionDetail `gorm:"column:detail;serializer:json" json:"detail"`
	// 状态
	Status TransactionStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
}

func (Transaction) TableName() string { return "logistic_fund_transactions" }

// TransactionDetail 按类型区分的明细，只会有一个分支非空
type TransactionDetail struct {
	Contribution *ContributionBreakdown `json:"contribution,omitempty"`
	Payment      *PaymentDetail         `json:"payment,omitempty"`
	Bonus        *BonusDetail           `json:"bonus,omitempty"`
	Adjustment   *AdjustmentDetail      `json:"adjustment,omitempty"`
}

// PaymentDetail 配送支付明细
type PaymentDetail struct {
	BasePayment   decimal.Decimal `json:"base_payment"`
	BonusAmount   decimal.Decimal `json:"bonus_amount"`
	DeliveryLevel string          `json:"delivery_level,omitempty"`
	Performance   decimal.Decimal `json:"performance,omitempty"`
}

// BonusDetail 奖金发放明细
type BonusDetail struct {
	BonusID   string          `json:"bonus_id"`
	BonusType string          `json:"bonus_type"`
	CourierID string          `json:"courier_id"`
	Week      int             `json:"week"`
	Year      int             `json:"year"`
	Breakdown *BonusBreakdown `json:"breakdown,omitempty"`
}

// AdjustmentDetail 治理调整明细
type AdjustmentDetail struct {
	Action   GovernanceAction `json:"action"`
	Reason   string           `json:"reason"`
	OldValue decimal.Decimal  `json:"old_value"`
	NewValue decimal.Decimal  `json:"new_value"`
}

// TransactionFilter 流水查询条件
type TransactionFilter struct {
	FundID     string
	Type       TransactionType
	Status     TransactionStatus
	OrderID    string
	DeliveryID string
}
