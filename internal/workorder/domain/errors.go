package domain

import "errors"

var (
	ErrNotFound               = errors.New("work_order_not_found")
	ErrAlreadyCompleted       = errors.New("work_order_already_completed")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrConcurrentUpdate       = errors.New("work_order_concurrent_update")
	ErrDeclineMessageRequired = errors.New("decline_message_required")
	ErrRecipientNotFound      = errors.New("recipient_not_found")
	ErrInvalidTitle           = errors.New("invalid_title")
	ErrInvalidDepartment      = errors.New("invalid_department")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidPageToken       = errors.New("invalid_page_token")
)
