// Package metrics 提供 Prometheus helper，包含服务与资金池业务指标
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 资金池余额
	FundBalance prometheus.Gauge
	// 累计注资
	FundContributionsTotal prometheus.Counter
	// 累计支付
	FundPaymentsTotal prometheus.Counter
	// 注资/支付/奖金操作计数
	LedgerOpsTotal *prometheus.CounterVec
	// 乐观锁冲突重试计数
	ConflictRetriesTotal prometheus.Counter
	// 治理决策计数
	GovernanceDecisionsTotal *prometheus.CounterVec
}

// New 创建并注册指标实例
func New(serviceName string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logistic",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logistic",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		FundBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "logistic",
			Subsystem: serviceName,
			Name:      "fund_balance",
			Help:      "Current fund balance",
		}),
		FundContributionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logistic",
			Subsystem: serviceName,
			Name:      "fund_contributions_total",
			Help:      "Cumulative amount credited to the fund",
		}),
		FundPaymentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logistic",
			Subsystem: serviceName,
			Name:      "fund_payments_total",
			Help:      "Cumulative amount debited from the fund",
		}),
		LedgerOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logistic",
			Subsystem: serviceName,
			Name:      "ledger_ops_total",
			Help:      "Ledger operations by type and outcome",
		}, []string{"op", "outcome"}),
		ConflictRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logistic",
			Subsystem: serviceName,
			Name:      "conflict_retries_total",
			Help:      "Optimistic lock conflicts retried",
		}),
		GovernanceDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logistic",
			Subsystem: serviceName,
			Name:      "governance_decisions_total",
			Help:      "Governance decisions by action",
		}, []string{"action"}),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.FundBalance,
		m.FundContributionsTotal,
		m.FundPaymentsTotal,
		m.LedgerOpsTotal,
		m.ConflictRetriesTotal,
		m.GovernanceDecisionsTotal,
	)
	return m
}

// ExposeHTTP 在指定端口暴露 /metrics
func (m *Metrics) ExposeHTTP(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
