package server

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/workdesk/internal/auth/domain"
	"github.com/smallbiznis/workdesk/internal/auth/password"
	"github.com/smallbiznis/workdesk/internal/authorization"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/smallbiznis/workdesk/internal/invoice/calculator"
	invoicedomain "github.com/smallbiznis/workdesk/internal/invoice/domain"
	"github.com/smallbiznis/workdesk/internal/providers/email"
	"github.com/smallbiznis/workdesk/internal/providers/pdf"
	"github.com/smallbiznis/workdesk/internal/ratelimit"
	signupdomain "github.com/smallbiznis/workdesk/internal/signup/domain"
	taxdomain "github.com/smallbiznis/workdesk/internal/taxrate/domain"
	workorderdomain "github.com/smallbiznis/workdesk/internal/workorder/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status == http.StatusTooManyRequests {
			c.Header("Retry-After", "60")
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

var registerTagNames sync.Once

// useJSONFieldNames makes gin's validator report json field names instead of Go field names.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON decodes the body and turns binding failures into field-level validation errors.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return bindingError(err)
	}
	return nil
}

func bindingError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequestError()
	}
	out := &ValidationErrors{Errors: make([]ValidationError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid e-mail address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "gte":
		return fe.Field() + " must be greater than or equal to " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, directorydomain.ErrProtectedDepartment):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, authdomain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many attempts",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, pdf.ErrRender),
		errors.Is(err, email.ErrDelivery):
		return http.StatusBadGateway, errorPayload{
			Type:    "dependency_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	signupdomain.ErrInvalidRequest,
	authdomain.ErrInvalidActorKind,
	password.ErrTooShort,
	email.ErrInvalidAddress,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
	auditdomain.ErrInvalidTarget,
	directorydomain.ErrInvalidName,
	directorydomain.ErrInvalidEmail,
	directorydomain.ErrInvalidPassword,
	directorydomain.ErrInvalidDepartment,
	taxdomain.ErrInvalidTaxType,
	taxdomain.ErrInvalidTaxRate,
	calculator.ErrNegativeBase,
	invoicedomain.ErrInvalidWorkOrder,
	invoicedomain.ErrInvalidPageToken,
	workorderdomain.ErrInvalidTransition,
	workorderdomain.ErrInvalidStatus,
	workorderdomain.ErrDeclineMessageRequired,
	workorderdomain.ErrInvalidTitle,
	workorderdomain.ErrInvalidDepartment,
	workorderdomain.ErrInvalidAmount,
	workorderdomain.ErrInvalidPageToken,
}

func isValidationError(err error) bool {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, workorderdomain.ErrAlreadyCompleted),
		errors.Is(err, workorderdomain.ErrConcurrentUpdate),
		errors.Is(err, invoicedomain.ErrInvoiceExists),
		errors.Is(err, ratelimit.ErrLockHeld),
		errors.Is(err, taxdomain.ErrConcurrentUpdate),
		errors.Is(err, directorydomain.ErrEmailTaken),
		errors.Is(err, directorydomain.ErrDepartmentExists),
		errors.Is(err, directorydomain.ErrDepartmentInUse):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, workorderdomain.ErrAlreadyCompleted):
		return "work order is already completed"
	case errors.Is(err, directorydomain.ErrEmailTaken):
		return "email is already registered"
	case errors.Is(err, ratelimit.ErrLockHeld):
		return "work order is being processed"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, workorderdomain.ErrNotFound),
		errors.Is(err, workorderdomain.ErrRecipientNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, directorydomain.ErrDepartmentNotFound),
		errors.Is(err, directorydomain.ErrCompanyNotFound),
		errors.Is(err, directorydomain.ErrEmployeeNotFound),
		errors.Is(err, directorydomain.ErrAdminNotFound),
		errors.Is(err, directorydomain.ErrAccountNotFound),
		errors.Is(err, taxdomain.ErrRateVersionMissing),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request", "invalid_signup_request":
		return "request"
	case "invalid_email_address":
		return "email"
	case "password_too_short":
		return "password"
	case "decline_message_required":
		return "message"
	case "invalid_transition":
		return "status"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request", "invalid_signup_request":
		return "invalid request"
	case "invalid_transition":
		return "status transition is not allowed"
	case "decline_message_required":
		return "message is required"
	case "password_too_short":
		return "password is too short"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog returns the error type and code recorded on the request log line.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if payload.Type != "internal_error" {
		code = err.Error()
	}
	return payload.Type, code
}
