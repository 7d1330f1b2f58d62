// 包 application 资金池核心的应用层服务
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/idgen"
	"github.com/wyfcoding/logisticfund/pkg/logger"
)

// Auditor 审计记录器
// 异步尽力而为：落库与发流各自带有限重试，任何失败只记日志，绝不反馈给主操作。
type Auditor struct {
	repo      domain.AuditRepository
	publisher domain.AuditPublisher
	// 单测中置为 true 以同步执行
	Sync bool
}

// NewAuditor 创建审计记录器
func NewAuditor(repo domain.AuditRepository, publisher domain.AuditPublisher) *Auditor {
	if publisher == nil {
		publisher = messagingNop{}
	}
	return &Auditor{repo: repo, publisher: publisher}
}

type messagingNop struct{}

func (messagingNop) Publish(context.Context, *domain.AuditEntry) error { return nil }

// Record 记录一条审计条目
func (a *Auditor) Record(ctx context.Context, category domain.AuditCategory, action, fundID, refID, actor string, payload map[string]any) {
	entry := &domain.AuditEntry{
		EntryID:  fmt.Sprintf("AUD-%d", idgen.GenID()),
		FundID:   fundID,
		Category: category,
		Action:   action,
		RefID:    refID,
		Actor:    actor,
		Payload:  payload,
	}

	if a.Sync {
		a.write(context.WithoutCancel(ctx), entry)
		return
	}
	go a.write(context.WithoutCancel(ctx), entry)
}

func (a *Auditor) write(ctx context.Context, entry *domain.AuditEntry) {
	const attempts = 3

	var err error
	for i := 0; i < attempts; i++ {
		if err = a.repo.Append(ctx, entry); err == nil {
			break
		}
		time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
	}
	if err != nil {
		logger.Error(ctx, "audit append failed", "entry_id", entry.EntryID, "action", entry.Action, "error", err)
	}

	if err = a.publisher.Publish(ctx, entry); err != nil {
		logger.Warn(ctx, "audit publish failed", "entry_id", entry.EntryID, "action", entry.Action, "error", err)
	}
}
