package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
)

// auditRepository 审计日志仓储实现
// 刻意不走 context 事务：审计写入独立于主事务，失败不影响主操作。
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建审计仓储
func NewAuditRepository(db *gorm.DB) domain.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, fundID string, category domain.AuditCategory, limit int) ([]*domain.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Model(&domain.AuditEntry{})
	if fundID != "" {
		query = query.Where("fund_id = ?", fundID)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var entries []*domain.AuditEntry
	if err := query.Order("id desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
