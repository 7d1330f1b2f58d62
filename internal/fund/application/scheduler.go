package application

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wyfcoding/logisticfund/pkg/config"
	"github.com/wyfcoding/logisticfund/pkg/logger"
)

// Scheduler 定时任务：治理分析、周奖金批处理、指标刷新
type Scheduler struct {
	cron       *cron.Cron
	governance *GovernanceService
	bonuses    *BonusService
	cfg        config.SchedulerConfig
}

// NewScheduler 创建调度器，cron 表达式带秒位
func NewScheduler(governance *GovernanceService, bonuses *BonusService, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		governance: governance,
		bonuses:    bonuses,
		cfg:        cfg,
	}
}

// Start 注册并启动全部任务
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.GovernanceCron, s.runGovernance); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.WeeklyBonusCron, s.runWeeklyBonuses); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.MetricsRefreshCron, s.refreshMetrics); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info(context.Background(), "scheduler started",
		"governance_cron", s.cfg.GovernanceCron,
		"weekly_bonus_cron", s.cfg.WeeklyBonusCron,
		"metrics_refresh_cron", s.cfg.MetricsRefreshCron)
	return nil
}

// Stop 停止调度并等待在途任务
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runGovernance() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if !s.cfg.GovernanceAutoApply {
		if _, err := s.governance.AnalyzeFund(ctx); err != nil {
			logger.Error(ctx, "scheduled governance analysis failed", "error", err)
		}
		return
	}
	if _, err := s.governance.RunGovernanceCycle(ctx); err != nil {
		logger.Error(ctx, "scheduled governance cycle failed", "error", err)
	}
}

// 周一凌晨结算上一个 ISO 周
func (s *Scheduler) runWeeklyBonuses() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	year, week := time.Now().AddDate(0, 0, -7).ISOWeek()
	if _, err := s.bonuses.ProcessWeeklyBonuses(ctx, week, year); err != nil {
		logger.Error(ctx, "scheduled weekly bonus batch failed", "week", week, "year", year, "error", err)
	}
	if _, err := s.bonuses.ProcessSpecialBonuses(ctx, week, year); err != nil {
		logger.Error(ctx, "scheduled special bonus batch failed", "week", week, "year", year, "error", err)
	}
}

func (s *Scheduler) refreshMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.governance.RefreshFundMetrics(ctx); err != nil {
		logger.Error(ctx, "fund metrics refresh failed", "error", err)
	}
}
