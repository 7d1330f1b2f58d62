package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
)

// fakeStore 内存版资金池与流水存储
// 模拟 MySQL 仓储的语义：事务内的变更在出错时整体回滚，
// Save 带版本号 CAS，冲突时返回 ErrConcurrentUpdate。
type fakeStore struct {
	txMu    sync.Mutex // 事务串行化，等价于行锁
	stateMu sync.Mutex

	fund   *domain.Fund
	txns   []*domain.Transaction
	nextID uint

	// 注入 N 次人为版本冲突，用于验证重试路径
	conflictsToInject int
}

func newFakeStore(fund *domain.Fund) *fakeStore {
	s := &fakeStore{nextID: 1}
	if fund != nil {
		f := *fund
		f.ID = s.nextID
		s.nextID++
		s.fund = &f
	}
	return s
}

func (s *fakeStore) Save(_ context.Context, fund *domain.Fund) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.conflictsToInject > 0 {
		s.conflictsToInject--
		return domain.ErrConcurrentUpdate
	}

	if fund.ID == 0 {
		f := *fund
		f.ID = s.nextID
		s.nextID++
		s.fund = &f
		fund.ID = f.ID
		return nil
	}

	if s.fund == nil || s.fund.Version != fund.Version {
		return domain.ErrConcurrentUpdate
	}
	f := *fund
	f.Version++
	s.fund = &f
	fund.Version = f.Version
	return nil
}

func (s *fakeStore) Get(_ context.Context, fundID string) (*domain.Fund, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.fund == nil || s.fund.FundID != fundID {
		return nil, domain.ErrNotFound
	}
	f := *s.fund
	return &f, nil
}

func (s *fakeStore) GetActive(_ context.Context) (*domain.Fund, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.fund == nil {
		return nil, domain.ErrNotFound
	}
	f := *s.fund
	return &f, nil
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.stateMu.Lock()
	var fundSnapshot *domain.Fund
	if s.fund != nil {
		f := *s.fund
		fundSnapshot = &f
	}
	txnSnapshot := make([]*domain.Transaction, len(s.txns))
	copy(txnSnapshot, s.txns)
	s.stateMu.Unlock()

	if err := fn(ctx); err != nil {
		s.stateMu.Lock()
		s.fund = fundSnapshot
		s.txns = txnSnapshot
		s.stateMu.Unlock()
		return err
	}
	return nil
}

func (s *fakeStore) SaveTxn(_ context.Context, txn *domain.Transaction) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	t := *txn
	s.txns = append(s.txns, &t)
	return nil
}

func (s *fakeStore) allTxns() []*domain.Transaction {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	out := make([]*domain.Transaction, len(s.txns))
	copy(out, s.txns)
	return out
}

// fakeTxnRepo 把 fakeStore 适配成 TransactionRepository
type fakeTxnRepo struct{ store *fakeStore }

func (r *fakeTxnRepo) Save(ctx context.Context, txn *domain.Transaction) error {
	return r.store.SaveTxn(ctx, txn)
}

func (r *fakeTxnRepo) Get(_ context.Context, transactionID string) (*domain.Transaction, error) {
	for _, t := range r.store.allTxns() {
		if t.TransactionID == transactionID {
			return t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeTxnRepo) FindCompletedByOrder(_ context.Context, fundID, orderID string, txnType domain.TransactionType) (*domain.Transaction, error) {
	for _, t := range r.store.allTxns() {
		if t.FundID == fundID && t.OrderID == orderID && t.Type == txnType && t.Status == domain.TransactionStatusCompleted {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeTxnRepo) FindCompletedByDeliveryAndOrder(_ context.Context, fundID, deliveryID, orderID string) (*domain.Transaction, error) {
	for _, t := range r.store.allTxns() {
		if t.FundID == fundID && t.DeliveryID == deliveryID && t.OrderID == orderID &&
			t.Status == domain.TransactionStatusCompleted && t.Amount.IsNegative() {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeTxnRepo) List(_ context.Context, filter domain.TransactionFilter, page, limit int) ([]*domain.Transaction, int64, error) {
	var matched []*domain.Transaction
	for _, t := range r.store.allTxns() {
		if filter.FundID != "" && t.FundID != filter.FundID {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		matched = append(matched, t)
	}
	return matched, int64(len(matched)), nil
}

func (r *fakeTxnRepo) Recent(_ context.Context, fundID string, limit int) ([]*domain.Transaction, error) {
	all := r.store.allTxns()
	var out []*domain.Transaction
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if all[i].FundID == fundID {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (r *fakeTxnRepo) SumSince(_ context.Context, fundID string, types []domain.TransactionType, since time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range r.store.allTxns() {
		if t.FundID != fundID || t.Status != domain.TransactionStatusCompleted || t.CreatedAt.Before(since) {
			continue
		}
		for _, typ := range types {
			if t.Type == typ {
				sum = sum.Add(t.Amount.Abs())
				break
			}
		}
	}
	return sum, nil
}

func (r *fakeTxnRepo) CountSince(_ context.Context, fundID string, types []domain.TransactionType, since time.Time) (int64, error) {
	var n int64
	for _, t := range r.store.allTxns() {
		if t.FundID != fundID || t.Status != domain.TransactionStatusCompleted || t.CreatedAt.Before(since) {
			continue
		}
		for _, typ := range types {
			if t.Type == typ {
				n++
				break
			}
		}
	}
	return n, nil
}

// fakeSettingsRepo 版本化配置存储
type fakeSettingsRepo struct {
	mu  sync.Mutex
	cfg *domain.Settings
}

func newFakeSettingsRepo(cfg *domain.Settings) *fakeSettingsRepo {
	r := &fakeSettingsRepo{}
	if cfg != nil {
		c := *cfg
		r.cfg = &c
	}
	return r
}

func (r *fakeSettingsRepo) Get(context.Context) (*domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg == nil {
		return nil, domain.ErrNotFound
	}
	c := *r.cfg
	return &c, nil
}

func (r *fakeSettingsRepo) Save(_ context.Context, cfg *domain.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg != nil && r.cfg.Version != cfg.Version {
		return domain.ErrConcurrentUpdate
	}
	c := *cfg
	c.Version++
	r.cfg = &c
	cfg.Version = c.Version
	return nil
}

// fakeBonusRepo 周期唯一键的奖金存储
type fakeBonusRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.DeliveryBonus
	periods map[string]string // 周期键 -> bonusID
}

func newFakeBonusRepo() *fakeBonusRepo {
	return &fakeBonusRepo{byID: map[string]*domain.DeliveryBonus{}, periods: map[string]string{}}
}

func periodKey(courierID string, week, year int, bonusType domain.BonusType) string {
	return fmt.Sprintf("%s|%s|%d|%d", courierID, bonusType, week, year)
}

func (r *fakeBonusRepo) Save(_ context.Context, bonus *domain.DeliveryBonus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := periodKey(bonus.CourierID, bonus.WeekNumber, bonus.Year, bonus.BonusType)
	if existingID, ok := r.periods[key]; ok {
		if existing := r.byID[existingID]; existing != nil && existing.Status != domain.BonusStatusCancelled {
			return domain.ErrDuplicateBonus
		}
	}
	b := *bonus
	r.byID[b.BonusID] = &b
	r.periods[key] = b.BonusID
	return nil
}

func (r *fakeBonusRepo) FindForPeriod(_ context.Context, courierID string, week, year int, bonusType domain.BonusType) (*domain.DeliveryBonus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.periods[periodKey(courierID, week, year, bonusType)]
	if !ok {
		return nil, nil
	}
	b := r.byID[id]
	if b == nil || b.Status == domain.BonusStatusCancelled {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (r *fakeBonusRepo) UpdateStatus(_ context.Context, bonusID string, status domain.BonusStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byID[bonusID]
	if !ok {
		return domain.ErrNotFound
	}
	b.Status = status
	return nil
}

func (r *fakeBonusRepo) ListByPeriod(_ context.Context, week, year int) ([]*domain.DeliveryBonus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DeliveryBonus
	for _, b := range r.byID {
		if b.WeekNumber == week && b.Year == year {
			c := *b
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeBonusRepo) Statistics(context.Context) (*domain.BonusStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.BonusStatistics{
		TotalAmount:  decimal.Zero,
		CountByType:  map[domain.BonusType]int64{},
		AmountByType: map[domain.BonusType]decimal.Decimal{},
	}
	for _, b := range r.byID {
		stats.TotalCount++
		stats.TotalAmount = stats.TotalAmount.Add(b.Amount)
		stats.CountByType[b.BonusType]++
		cur, ok := stats.AmountByType[b.BonusType]
		if !ok {
			cur = decimal.Zero
		}
		stats.AmountByType[b.BonusType] = cur.Add(b.Amount)
	}
	return stats, nil
}

func (r *fakeBonusRepo) get(bonusID string) *domain.DeliveryBonus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.byID[bonusID]; ok {
		c := *b
		return &c
	}
	return nil
}

// fakeStatsProvider 固定的周统计投喂
type fakeStatsProvider struct {
	stats []domain.CourierWeekStats
}

func (p *fakeStatsProvider) ListActiveCourierStats(context.Context, int, int) ([]domain.CourierWeekStats, error) {
	return p.stats, nil
}

// fakeAuditRepo 内存审计日志
type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

func (r *fakeAuditRepo) Append(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := *entry
	r.entries = append(r.entries, &e)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, fundID string, category domain.AuditCategory, limit int) ([]*domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditEntry
	for _, e := range r.entries {
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func newTestAuditor() *Auditor {
	a := NewAuditor(&fakeAuditRepo{}, nil)
	a.Sync = true
	return a
}
