package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики жизненного цикла задач. Экспортируются через /metrics
// (promhttp) в каждом бинарнике.
var (
	// TasksSubmitted — принятые Gateway'ем задачи.
	TasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quanta_tasks_submitted_total",
		Help: "Number of tasks accepted for execution.",
	})

	// TasksFinished — задачи, достигшие терминального статуса,
	// по статусам.
	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quanta_tasks_finished_total",
		Help: "Number of tasks that reached a terminal status.",
	}, []string{"status"})

	// TasksDeleted — удалённые задачи.
	TasksDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quanta_tasks_deleted_total",
		Help: "Number of deleted tasks.",
	})

	// ActivityAttempts — попытки исполнения схемы, по исходам
	// (ok, transient, validation).
	ActivityAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quanta_activity_attempts_total",
		Help: "Number of circuit execution attempts by outcome.",
	}, []string{"outcome"})

	// ExecutionDuration — длительность успешных исполнений схем.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quanta_execution_duration_seconds",
		Help:    "Duration of successful circuit executions.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	// WorkflowsClaimed — захваты lease воркером.
	WorkflowsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quanta_workflows_claimed_total",
		Help: "Number of workflow instances claimed by this worker.",
	})

	// WorkflowsResumed — инстансы, возобновлённые из непустой истории.
	WorkflowsResumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quanta_workflows_resumed_total",
		Help: "Number of workflow instances resumed from history.",
	})
)
