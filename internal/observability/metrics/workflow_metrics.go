package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/workdesk/internal/authorization"
	workorderdomain "github.com/smallbiznis/workdesk/internal/workorder/domain"
	"gorm.io/gorm"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonForbidden            = "forbidden"
	ReasonConflict             = "conflict"
	ReasonInvalidTransition    = "invalid_transition"
	ReasonDB                   = "db"
	ReasonUnknown              = "unknown"
)

const (
	StageComplete     = "complete"
	StageDecline      = "decline"
	StageUpdate       = "update"
	StageInvoice      = "invoice"
	StageNotification = "notification"
)

const (
	NotificationOutcomeSent    = "sent"
	NotificationOutcomeFailed  = "failed"
	NotificationOutcomeSkipped = "skipped"
)

// WorkflowMetrics captures work order lifecycle signals scraped from /metrics.
type WorkflowMetrics struct {
	transitions        *prometheus.CounterVec
	completionDuration prometheus.Observer
	stageErrors        *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	lockWait           prometheus.Observer
	transitionCounts   map[string]map[string]prometheus.Counter
}

var (
	workflowMetricsOnce sync.Once
	workflowMetrics     *WorkflowMetrics
)

// Workflow returns the process-wide workflow metrics registry.
func Workflow() *WorkflowMetrics {
	return WorkflowWithConfig(Config{})
}

// WorkflowWithConfig returns the process-wide workflow metrics registry using config labels.
func WorkflowWithConfig(cfg Config) *WorkflowMetrics {
	workflowMetricsOnce.Do(func() {
		workflowMetrics = newWorkflowMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return workflowMetrics
}

func newWorkflowMetrics(registerer prometheus.Registerer, cfg Config) *WorkflowMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "workdesk_work_order_status_transitions_total",
		Help:        "Committed work order status transitions.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})
	completionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "workdesk_work_order_completion_duration_seconds",
		Help:        "Latency of the complete-and-invoice transaction.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	})
	stageErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "workdesk_workflow_errors_total",
		Help:        "Workflow failures by stage and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"stage", "reason"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "workdesk_notification_deliveries_total",
		Help:        "Notification delivery attempts by message kind and outcome.",
		ConstLabels: constLabels,
	}, []string{"kind", "outcome"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "workdesk_work_order_lock_wait_seconds",
		Help:        "Time spent acquiring the per-work-order completion lock.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(transitions, completionDuration, stageErrors, notifications, lockWait)

	transitionCounts := map[string]map[string]prometheus.Counter{}
	for from, targets := range workorderdomain.AllowedTransitions() {
		counters := map[string]prometheus.Counter{}
		for _, to := range targets {
			counters[string(to)] = transitions.WithLabelValues(string(from), string(to))
		}
		transitionCounts[string(from)] = counters
	}

	return &WorkflowMetrics{
		transitions:        transitions,
		completionDuration: completionDuration,
		stageErrors:        stageErrors,
		notifications:      notifications,
		lockWait:           lockWait,
		transitionCounts:   transitionCounts,
	}
}

// IncTransition counts a committed status change.
func (m *WorkflowMetrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	if toCounters, ok := m.transitionCounts[from]; ok {
		if counter, ok := toCounters[to]; ok {
			counter.Inc()
			return
		}
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *WorkflowMetrics) ObserveCompletion(duration time.Duration) {
	if m == nil {
		return
	}
	m.completionDuration.Observe(duration.Seconds())
}

// IncStageError classifies err and counts it against the stage.
func (m *WorkflowMetrics) IncStageError(stage string, err error) {
	if m == nil || err == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage, ClassifyReason(err)).Inc()
}

func (m *WorkflowMetrics) IncNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *WorkflowMetrics) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.lockWait.Observe(duration.Seconds())
}

// ClassifyReason maps workflow errors to low-cardinality reasons.
func ClassifyReason(err error) string {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonDeadlineExceeded
	case isAuthorizationError(err):
		return ReasonForbidden
	case errors.Is(err, workorderdomain.ErrAlreadyCompleted):
		return ReasonConflict
	case errors.Is(err, workorderdomain.ErrInvalidTransition):
		return ReasonInvalidTransition
	case hasPGCode(err, "55P03"):
		return ReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return ReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return ReasonUniqueViolation
	case isDBError(err):
		return ReasonDB
	default:
		return ReasonUnknown
	}
}

// IsRetryable reports whether a failed transaction may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return hasPGCode(err, "40001") || hasPGCode(err, "40P01") || hasPGCode(err, "55P03")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isAuthorizationError(err error) bool {
	return errors.Is(err, authorization.ErrForbidden) ||
		errors.Is(err, authorization.ErrInvalidActor) ||
		errors.Is(err, authorization.ErrInvalidObject) ||
		errors.Is(err, authorization.ErrInvalidAction)
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
