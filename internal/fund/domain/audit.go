package domain

import (
	"gorm.io/gorm"
)

// AuditCategory 审计类别
type AuditCategory string

const (
	AuditContribution AuditCategory = "contribution"
	AuditPayment      AuditCategory = "payment"
	AuditBonus        AuditCategory = "bonus"
	AuditGovernance   AuditCategory = "governance"
	AuditSettings     AuditCategory = "settings"
)

// AuditEntry 审计日志条目，只追加
// 写入为尽力而为：审计失败不允许影响主操作。
type AuditEntry struct {
	gorm.Model
	// 条目 ID（业务主键）
	EntryID string `gorm:"column:entry_id;type:varchar(32);uniqueIndex;not null" json:"entry_id"`
	// 资金池 ID
	FundID string `gorm:"column:fund_id;type:varchar(32);index" json:"fund_id"`
	// 类别与动作
	Category AuditCategory `gorm:"column:category;type:varchar(20);not null;index" json:"category"`
	Action   string        `gorm:"column:action;type:varchar(40);not null" json:"action"`
	// 关联业务键（流水/奖金/决策 ID）
	RefID string `gorm:"column:ref_id;type:varchar(64);index" json:"ref_id"`
	// 操作者（系统任务或管理员）
	Actor string `gorm:"column:actor;type:varchar(64)" json:"actor"`
	// 自由负载
	Payload map[string]any `gorm:"column:payload;serializer:json" json:"payload,omitempty"`
}

func (AuditEntry) TableName() string { return "logistic_fund_audit_log" }
