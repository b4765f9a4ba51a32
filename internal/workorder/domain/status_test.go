package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusIsCaseInsensitive(t *testing.T) {
	cases := map[string]Status{
		"completed":   StatusCompleted,
		"COMPLETED":   StatusCompleted,
		" Completed ": StatusCompleted,
		"in_progress": StatusInProgress,
		"InProgress":  StatusInProgress,
		"in-progress": StatusInProgress,
		"pending":     StatusPending,
		"Declined":    StatusDeclined,
	}
	for input, want := range cases {
		got, err := ParseStatus(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseStatus("done")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     error
	}{
		{StatusPending, StatusPending, nil},
		{StatusPending, StatusInProgress, nil},
		{StatusPending, StatusCompleted, nil},
		{StatusPending, StatusDeclined, nil},
		{StatusInProgress, StatusPending, nil},
		{StatusInProgress, StatusInProgress, nil},
		{StatusInProgress, StatusCompleted, nil},
		{StatusInProgress, StatusDeclined, nil},
		{StatusCompleted, StatusPending, ErrInvalidTransition},
		{StatusCompleted, StatusInProgress, ErrInvalidTransition},
		{StatusCompleted, StatusCompleted, ErrAlreadyCompleted},
		{StatusCompleted, StatusDeclined, ErrInvalidTransition},
		{StatusDeclined, StatusPending, nil},
		{StatusDeclined, StatusInProgress, ErrInvalidTransition},
		{StatusDeclined, StatusCompleted, ErrInvalidTransition},
		{StatusDeclined, StatusDeclined, nil},
	}
	for _, tc := range cases {
		err := CanTransition(tc.from, tc.to)
		if tc.want == nil {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
			continue
		}
		assert.ErrorIs(t, err, tc.want, "%s -> %s", tc.from, tc.to)
	}
}

func TestAllowedTransitionsNeverLeaveCompleted(t *testing.T) {
	table := AllowedTransitions()
	assert.Empty(t, table[StatusCompleted])
	for from, targets := range table {
		assert.True(t, from.Valid())
		for _, to := range targets {
			assert.NotEqual(t, from, to)
		}
	}
}

func TestNotificationReportFailed(t *testing.T) {
	report := NotificationReport{Deliveries: []Delivery{{Status: "sent"}, {Status: "skipped"}}}
	assert.False(t, report.Failed())

	report.Deliveries = append(report.Deliveries, Delivery{Status: DeliveryFailed})
	assert.True(t, report.Failed())
}
