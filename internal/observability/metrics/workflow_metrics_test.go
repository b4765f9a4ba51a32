package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/workdesk/internal/authorization"
	workorderdomain "github.com/smallbiznis/workdesk/internal/workorder/domain"
	"gorm.io/gorm"
)

func TestClassifyReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: ReasonDeadlineExceeded},
		{name: "forbidden", err: fmt.Errorf("complete: %w", authorization.ErrForbidden), want: ReasonForbidden},
		{name: "conflict", err: workorderdomain.ErrAlreadyCompleted, want: ReasonConflict},
		{name: "invalid_transition", err: workorderdomain.ErrInvalidTransition, want: ReasonInvalidTransition},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: ReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: ReasonUniqueViolation},
		{name: "db", err: &pgconn.PgError{Code: "08006"}, want: ReasonDB},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIncTransitionUsesPrecreatedCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newWorkflowMetrics(registry, Config{ServiceName: "workdesk", Environment: "test"})

	m.IncTransition("Pending", "Completed")
	m.IncTransition("Pending", "Completed")

	got := testutil.ToFloat64(m.transitions.WithLabelValues("Pending", "Completed"))
	if got != 2 {
		t.Fatalf("expected 2 transitions, got %v", got)
	}
}

func TestIncNotification(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newWorkflowMetrics(registry, Config{})

	m.IncNotification("work_completed", NotificationOutcomeFailed)

	got := testutil.ToFloat64(m.notifications.WithLabelValues("work_completed", NotificationOutcomeFailed))
	if got != 1 {
		t.Fatalf("expected 1 failed notification, got %v", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("serialization failure should be retryable")
	}
	if IsRetryable(gorm.ErrRecordNotFound) {
		t.Fatalf("not found should not be retryable")
	}
}
