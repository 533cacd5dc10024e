// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Status label values for execution metrics.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
	StatusPanic   = "panic"
	StatusAbort   = "abort"
)

// Result label values for compensation metrics.
const (
	CompensationCompleted = "completed"
	CompensationFailed    = "failed"
	CompensationCrashed   = "crashed"
)

// Collector 指标收集器。nil *Collector 的所有记录方法都是空操作，
// 因此调用方无需在指标禁用时做判空保护。
type Collector struct {
	// 执行指标
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	retriesTotal      *prometheus.CounterVec

	// 补偿指标
	compensationsTotal *prometheus.CounterVec

	// 异步指标
	asyncDispatchesTotal *prometheus.CounterVec
	asyncAwaitsTotal     *prometheus.CounterVec
	asyncCancelsTotal    *prometheus.CounterVec

	// 计划与工作流指标
	planNormalizationsTotal *prometheus.CounterVec
	workflowExecutionsTotal *prometheus.CounterVec
	workflowDuration        *prometheus.HistogramVec

	// 工作池指标
	poolWorkersActive prometheus.Gauge
	poolTasksQueued   prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 在默认 Prometheus 注册表上创建指标收集器。
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer, namespace, logger)
}

// NewCollectorWith 在指定注册表上创建指标收集器，便于测试隔离。
func NewCollectorWith(reg prometheus.Registerer, namespace string, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 执行指标
	c.executionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_executions_total",
			Help:      "Total number of action executions",
		},
		[]string{"action", "status"},
	)

	c.executionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_execution_duration_seconds",
			Help:      "Action execution duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
		[]string{"action"},
	)

	c.retriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_retries_total",
			Help:      "Total number of action retry attempts",
		},
		[]string{"action"},
	)

	// 补偿指标
	c.compensationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Total number of compensation runs",
		},
		[]string{"action", "result"}, // result: completed, failed, crashed
	)

	// 异步指标
	c.asyncDispatchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_dispatches_total",
			Help:      "Total number of asynchronously dispatched actions",
		},
		[]string{"action"},
	)

	c.asyncAwaitsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_awaits_total",
			Help:      "Total number of completed awaits",
		},
		[]string{"action", "status"},
	)

	c.asyncCancelsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_cancels_total",
			Help:      "Total number of async cancellations",
		},
		[]string{"action"},
	)

	// 计划与工作流指标
	c.planNormalizationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_normalizations_total",
			Help:      "Total number of plan normalizations",
		},
		[]string{"result"}, // result: ok, cycle, invalid
	)

	c.workflowExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Total number of workflow executions",
		},
		[]string{"workflow", "status"},
	)

	c.workflowDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"workflow"},
	)

	// 工作池指标
	c.poolWorkersActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_workers_active",
			Help:      "Number of active worker goroutines",
		},
	)

	c.poolTasksQueued = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_tasks_queued",
			Help:      "Number of tasks waiting in the pool queue",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 执行指标记录
// =============================================================================

// RecordExecution 记录一次动作执行
func (c *Collector) RecordExecution(action, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.executionsTotal.WithLabelValues(action, status).Inc()
	c.executionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordRetry 记录一次重试
func (c *Collector) RecordRetry(action string) {
	if c == nil {
		return
	}
	c.retriesTotal.WithLabelValues(action).Inc()
}

// RecordCompensation 记录一次补偿执行
func (c *Collector) RecordCompensation(action, result string) {
	if c == nil {
		return
	}
	c.compensationsTotal.WithLabelValues(action, result).Inc()
}

// =============================================================================
// 📡 异步指标记录
// =============================================================================

// RecordAsyncDispatch 记录一次异步派发
func (c *Collector) RecordAsyncDispatch(action string) {
	if c == nil {
		return
	}
	c.asyncDispatchesTotal.WithLabelValues(action).Inc()
}

// RecordAsyncAwait 记录一次 Await 完成
func (c *Collector) RecordAsyncAwait(action, status string) {
	if c == nil {
		return
	}
	c.asyncAwaitsTotal.WithLabelValues(action, status).Inc()
}

// RecordAsyncCancel 记录一次异步取消
func (c *Collector) RecordAsyncCancel(action string) {
	if c == nil {
		return
	}
	c.asyncCancelsTotal.WithLabelValues(action).Inc()
}

// =============================================================================
// 🎭 计划与工作流指标记录
// =============================================================================

// RecordPlanNormalization 记录一次计划归一化
func (c *Collector) RecordPlanNormalization(result string) {
	if c == nil {
		return
	}
	c.planNormalizationsTotal.WithLabelValues(result).Inc()
}

// RecordWorkflowExecution 记录一次工作流执行
func (c *Collector) RecordWorkflowExecution(workflow, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.workflowExecutionsTotal.WithLabelValues(workflow, status).Inc()
	c.workflowDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

// =============================================================================
// 🏊 工作池指标记录
// =============================================================================

// RecordPoolStats 记录工作池状态
func (c *Collector) RecordPoolStats(activeWorkers, queuedTasks int64) {
	if c == nil {
		return
	}
	c.poolWorkersActive.Set(float64(activeWorkers))
	c.poolTasksQueued.Set(float64(queuedTasks))
}
