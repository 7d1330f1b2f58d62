package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/logisticfund/internal/fund/application"
	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/internal/fund/infrastructure/messaging"
	"github.com/wyfcoding/logisticfund/internal/fund/infrastructure/persistence"
	"github.com/wyfcoding/logisticfund/internal/fund/infrastructure/persistence/mysql"
	fundhttp "github.com/wyfcoding/logisticfund/internal/fund/interfaces/http"
	"github.com/wyfcoding/logisticfund/pkg/cache"
	"github.com/wyfcoding/logisticfund/pkg/config"
	"github.com/wyfcoding/logisticfund/pkg/db"
	"github.com/wyfcoding/logisticfund/pkg/idgen"
	"github.com/wyfcoding/logisticfund/pkg/logger"
	"github.com/wyfcoding/logisticfund/pkg/metrics"
	"github.com/wyfcoding/logisticfund/pkg/middleware"
	"github.com/wyfcoding/logisticfund/pkg/mq"
)

const defaultFundID = "FUND-LOGISTIC-001"

func main() {
	configPath := flag.String("config", "configs/fund/config.toml", "path to config file")
	flag.Parse()

	var cfg config.Config
	if err := config.Load(*configPath, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	logger.Info(ctx, "starting service",
		"service", cfg.ServiceName, "version", cfg.Version, "environment", cfg.Environment)

	if err := idgen.Init(cfg.Fund.NodeID); err != nil {
		logger.Fatal(ctx, "init id generator failed", "error", err)
	}

	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "init database failed", "error", err)
	}
	defer database.Close()

	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(
			&domain.Fund{},
			&domain.Transaction{},
			&domain.Settings{},
			&domain.DeliveryBonus{},
			&domain.AuditEntry{},
			&mysql.CourierWeekStatsModel{},
		); err != nil {
			logger.Fatal(ctx, "auto migrate failed", "error", err)
		}
	}

	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "init redis failed", "error", err)
	}
	defer redisCache.Close()

	var auditPublisher domain.AuditPublisher = messaging.NopAuditPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			GroupID:      cfg.Kafka.GroupID,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Fatal(ctx, "init kafka producer failed", "error", err)
		}
		defer producer.Close()
		auditPublisher = messaging.NewKafkaAuditPublisher(producer, cfg.Kafka.AuditTopic)
	} else {
		logger.Warn(ctx, "no kafka brokers configured, audit stream disabled")
	}

	m := metrics.New("fund")

	// 仓储
	fundRepo := mysql.NewFundRepository(database.DB)
	txnRepo := mysql.NewTransactionRepository(database.DB)
	settingsRepo := persistence.NewCachedSettingsRepository(mysql.NewSettingsRepository(database.DB), redisCache)
	bonusRepo := mysql.NewBonusRepository(database.DB)
	auditRepo := mysql.NewAuditRepository(database.DB)
	statsProvider := mysql.NewCourierStatsRepository(database.DB)

	// 应用服务
	auditor := application.NewAuditor(auditRepo, auditPublisher)
	contributionSvc := application.NewContributionService(fundRepo, txnRepo, settingsRepo, auditor, m)
	paymentSvc := application.NewPaymentService(fundRepo, txnRepo, auditor, m)
	bonusSvc := application.NewBonusService(fundRepo, bonusRepo, statsProvider, settingsRepo, paymentSvc, auditor, m)
	governanceSvc := application.NewGovernanceService(fundRepo, txnRepo, settingsRepo, statsProvider, paymentSvc, bonusRepo, auditor, m)
	settingsSvc := application.NewSettingsService(settingsRepo, auditor)
	querySvc := application.NewQueryService(fundRepo, txnRepo, auditRepo)

	if cfg.Fund.Bootstrap {
		bootstrapper := application.NewBootstrapper(fundRepo, settingsSvc)
		if err := bootstrapper.Ensure(ctx, defaultFundID); err != nil {
			logger.Fatal(ctx, "fund bootstrap failed", "error", err)
		}
	}

	scheduler := application.NewScheduler(governanceSvc, bonusSvc, cfg.Scheduler)
	if err := scheduler.Start(); err != nil {
		logger.Fatal(ctx, "start scheduler failed", "error", err)
	}

	// HTTP
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.GinRecovery(), middleware.GinLogging(), middleware.GinMetrics(m), middleware.GinCORS())
	handler := fundhttp.NewHandler(contributionSvc, paymentSvc, bonusSvc, governanceSvc, settingsSvc, querySvc)
	handler.RegisterRoutes(engine)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Info(ctx, "http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			logger.Info(ctx, "metrics endpoint listening", "port", cfg.Metrics.Port)
			return m.ExposeHTTP(cfg.Metrics.Port)
		})
	}
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info(ctx, "shutting down")

		scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "service exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "service stopped")
}
