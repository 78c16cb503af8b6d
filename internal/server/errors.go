package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	"github.com/smallbiznis/labdesk/internal/authorization"
	badgedomain "github.com/smallbiznis/labdesk/internal/badge/domain"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	calendardomain "github.com/smallbiznis/labdesk/internal/calendar/domain"
	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
	"github.com/smallbiznis/labdesk/internal/input"
	intakedomain "github.com/smallbiznis/labdesk/internal/intake/domain"
	quizdomain "github.com/smallbiznis/labdesk/internal/quiz/domain"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"github.com/smallbiznis/labdesk/internal/storage"
	trainingdomain "github.com/smallbiznis/labdesk/internal/training/domain"
	"github.com/smallbiznis/labdesk/pkg/db/pagination"
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
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
)

// validationErrors are domain errors caused by the caller's input.
var validationErrors = []error{
	ErrInvalidRequest,
	basketdomain.ErrInvalidBasketID,
	basketdomain.ErrInvalidZone,
	basketdomain.ErrInvalidRequester,
	basketdomain.ErrInvalidTimestamp,
	exemptiondomain.ErrInvalidUser,
	intakedomain.ErrUnknownForm,
	intakedomain.ErrMissingField,
	input.ErrInvalidRow,
	input.ErrEmptyInput,
	input.ErrRangeTooWide,
	registrationdomain.ErrUnknownEmailKind,
	registrationdomain.ErrNoAddresses,
	badgedomain.ErrNoBadges,
	quizdomain.ErrInvalidScore,
	trainingdomain.ErrInvalidSession,
	calendardomain.ErrInvalidEvent,
	calendardomain.ErrInvalidGuest,
	calendardomain.ErrInvalidWindow,
	sheetdomain.ErrRowOutOfRange,
	sheetdomain.ErrUnknownColumn,
	pagination.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
}

var notFoundErrors = []error{
	ErrNotFound,
	basketdomain.ErrNotFound,
	exemptiondomain.ErrNotFound,
	calendardomain.ErrEventNotFound,
	calendardomain.ErrGuestNotFound,
	sheetdomain.ErrTableNotFound,
	storage.ErrObjectNotFound,
}

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

	if code, ok := matchSentinel(err, validationErrors); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: err.Error(),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, context.DeadlineExceeded):
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

// classifyErrorForLog reports the envelope type and code for request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func matchSentinel(err error, sentinels []error) (string, bool) {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

func isNotFoundError(err error) bool {
	_, ok := matchSentinel(err, notFoundErrors)
	return ok
}

func validationErrorField(code string) string {
	switch {
	case code == "invalid_request":
		return "request"
	case code == "missing_required_field":
		return "fields"
	case strings.HasPrefix(code, "invalid_"):
		return strings.TrimPrefix(code, "invalid_")
	case strings.HasPrefix(code, "row_"):
		return "rows"
	default:
		return ""
	}
}
