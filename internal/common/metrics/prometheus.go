// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	commissionsCreated   *prometheus.CounterVec
	commissionsSkipped   *prometheus.CounterVec
	settlementRecords    *prometheus.CounterVec
	settlementRuns       *prometheus.CounterVec
	settlementDuration   prometheus.Histogram
	withdrawalAudits     *prometheus.CounterVec
	queueMessages        *prometheus.CounterVec
	walletConflicts      prometheus.Counter
}

var (
	defaultMetrics *Metrics
	defaultMu      sync.Mutex
)

// Init 在默认注册表上初始化指标收集器
func Init(namespace string) *Metrics {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultMetrics != nil {
		return defaultMetrics
	}
	defaultMetrics = New(namespace, prometheus.DefaultRegisterer)
	return defaultMetrics
}

// New 在指定注册表上创建指标收集器
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "referral"
	}
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		commissionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commissions_created_total",
				Help:      "Commission records created by the rule engine",
			},
			[]string{"level", "cross_tenant"},
		),
		commissionsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commission_skipped_total",
				Help:      "Commission candidates rejected by a business rule",
			},
			[]string{"reason"},
		),
		settlementRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlement_records_total",
				Help:      "Commission records processed by the settlement job",
			},
			[]string{"result"},
		),
		settlementRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlement_runs_total",
				Help:      "Settlement job ticks",
			},
			[]string{"result"},
		),
		settlementDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "settlement_run_duration_seconds",
				Help:      "Settlement job duration in seconds",
				Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 240},
			},
		),
		withdrawalAudits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "withdrawal_audits_total",
				Help:      "Withdrawal audit actions",
			},
			[]string{"action", "result"},
		),
		queueMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_messages_total",
				Help:      "Queue messages consumed",
			},
			[]string{"queue", "result"},
		),
		walletConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wallet_version_conflicts_total",
				Help:      "Optimistic version conflicts on wallet updates",
			},
		),
	}
}

// GetMetrics 获取默认指标收集器
func GetMetrics() *Metrics {
	return Init("")
}

// Middleware 返回 Gin 中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 跳过 metrics 端点本身
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()

		c.Next()

		m.httpRequestsInFlight.Dec()
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

// Handler 返回 Prometheus HTTP 处理器
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordCommissionCreated 记录生成的佣金
func (m *Metrics) RecordCommissionCreated(level int, crossTenant bool) {
	m.commissionsCreated.WithLabelValues(strconv.Itoa(level), strconv.FormatBool(crossTenant)).Inc()
}

// RecordCommissionSkipped 记录被规则拦截的候选佣金
func (m *Metrics) RecordCommissionSkipped(reason string) {
	m.commissionsSkipped.WithLabelValues(reason).Inc()
}

// RecordSettlementRecord 记录单条结算结果
func (m *Metrics) RecordSettlementRecord(result string) {
	m.settlementRecords.WithLabelValues(result).Inc()
}

// RecordSettlementRun 记录一次结算任务执行
func (m *Metrics) RecordSettlementRun(result string, duration time.Duration) {
	m.settlementRuns.WithLabelValues(result).Inc()
	m.settlementDuration.Observe(duration.Seconds())
}

// RecordWithdrawalAudit 记录提现审核
func (m *Metrics) RecordWithdrawalAudit(action, result string) {
	m.withdrawalAudits.WithLabelValues(action, result).Inc()
}

// RecordQueueMessage 记录队列消费结果
func (m *Metrics) RecordQueueMessage(queue, result string) {
	m.queueMessages.WithLabelValues(queue, result).Inc()
}

// RecordWalletConflict 记录钱包版本冲突
func (m *Metrics) RecordWalletConflict() {
	m.walletConflicts.Inc()
}
