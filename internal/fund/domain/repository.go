package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// FundRepository 资金池仓储接口
// Save 必须以乐观锁（版本号 CAS）落盘，冲突时返回 ErrConcurrentUpdate。
type FundRepository interface {
	Save(ctx context.Context, fund *Fund) error
	Get(ctx context.Context, fundID string) (*Fund, error)
	// GetActive 返回当前唯一的逻辑资金池（任意状态），不存在时返回 ErrNotFound
	GetActive(ctx context.Context) (*Fund, error)
	// WithTx 在单个存储事务中执行 fn，余额变更与流水追加必须同事务提交
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionRepository 账务流水仓储接口
type TransactionRepository interface {
	Save(ctx context.Context, txn *Transaction) error
	Get(ctx context.Context, transactionID string) (*Transaction, error)
	// FindCompletedByOrder 查找订单的已完成注资流水（幂等检查）
	FindCompletedByOrder(ctx context.Context, fundID, orderID string, txnType TransactionType) (*Transaction, error)
	// FindCompletedByDeliveryAndOrder 查找配送支付的已完成流水（幂等检查）
	FindCompletedByDeliveryAndOrder(ctx context.Context, fundID, deliveryID, orderID string) (*Transaction, error)
	// List 按条件分页查询，返回记录与总数
	List(ctx context.Context, filter TransactionFilter, page, limit int) ([]*Transaction, int64, error)
	// Recent 最近 N 条流水
	Recent(ctx context.Context, fundID string, limit int) ([]*Transaction, error)
	// SumSince 统计窗口内指定类型流水的金额绝对值之和
	SumSince(ctx context.Context, fundID string, types []TransactionType, since time.Time) (decimal.Decimal, error)
	// CountSince 统计窗口内流水笔数
	CountSince(ctx context.Context, fundID string, types []TransactionType, since time.Time) (int64, error)
}

// SettingsRepository 配置仓储接口
type SettingsRepository interface {
	// Get 读取当前配置，不存在时返回 ErrNotFound
	Get(ctx context.Context) (*Settings, error)
	// Save 版本化保存，冲突时返回 ErrConcurrentUpdate
	Save(ctx context.Context, settings *Settings) error
}

// BonusRepository 奖金记录仓储接口
type BonusRepository interface {
	// Save 唯一键 (courier_id, week_number, year, bonus_type) 冲突时返回 ErrDuplicateBonus
	Save(ctx context.Context, bonus *DeliveryBonus) error
	// FindForPeriod 返回周期内未取消的奖金记录，不存在时返回 (nil, nil)
	FindForPeriod(ctx context.Context, courierID string, week, year int, bonusType BonusType) (*DeliveryBonus, error)
	UpdateStatus(ctx context.Context, bonusID string, status BonusStatus) error
	ListByPeriod(ctx context.Context, week, year int) ([]*DeliveryBonus, error)
	Statistics(ctx context.Context) (*BonusStatistics, error)
}

// CourierStatsProvider 快递员统计投喂接口
// 周统计来自外部分析系统，本核心视为不可变输入。
type CourierStatsProvider interface {
	ListActiveCourierStats(ctx context.Context, week, year int) ([]CourierWeekStats, error)
}

// AuditRepository 审计日志仓储接口，只追加
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, fundID string, category AuditCategory, limit int) ([]*AuditEntry, error)
}

// AuditPublisher 审计事件流发布接口（kafka），尽力而为
type AuditPublisher interface {
	Publish(ctx context.Context, entry *AuditEntry) error
}
