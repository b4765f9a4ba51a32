package domain

import "strings"

// Status is the closed set of work order states. Values are stored as written here.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusDeclined   Status = "Declined"
)

// ParseStatus accepts any casing and underscore, dash or space separators.
func ParseStatus(value string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	switch normalized {
	case "pending":
		return StatusPending, nil
	case "inprogress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	case "declined":
		return StatusDeclined, nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusDeclined:
		return true
	default:
		return false
	}
}

// AllowedTransitions lists every permitted change of state; staying in the same state is not listed.
func AllowedTransitions() map[Status][]Status {
	return map[Status][]Status{
		StatusPending:    {StatusInProgress, StatusCompleted, StatusDeclined},
		StatusInProgress: {StatusPending, StatusCompleted, StatusDeclined},
		StatusDeclined:   {StatusPending},
		StatusCompleted:  {},
	}
}

// CanTransition returns nil for an allowed change or a no-op, ErrAlreadyCompleted for a
// repeated completion and ErrInvalidTransition otherwise.
func CanTransition(from, to Status) error {
	if from == to {
		if from == StatusCompleted {
			return ErrAlreadyCompleted
		}
		return nil
	}
	for _, target := range AllowedTransitions()[from] {
		if target == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// Completable are the states a completion may start from.
func Completable() []Status {
	return []Status{StatusPending, StatusInProgress}
}
