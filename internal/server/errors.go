package server

import (
	"errors"
	"net/http"
	"strings"

	adjustmentdomain "github.com/cleanbc/obps/internal/adjustment/domain"
	complianceperioddomain "github.com/cleanbc/obps/internal/complianceperiod/domain"
	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	earnedcreditdomain "github.com/cleanbc/obps/internal/earnedcredit/domain"
	"github.com/cleanbc/obps/internal/elicensing/api"
	integrationdomain "github.com/cleanbc/obps/internal/elicensing/integration/domain"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	manualhandlingdomain "github.com/cleanbc/obps/internal/manualhandling/domain"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	penaltydomain "github.com/cleanbc/obps/internal/penalty/domain"
	registrydomain "github.com/cleanbc/obps/internal/registry/domain"
	"github.com/gin-gonic/gin"
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
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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
	case errors.Is(err, ErrForbidden),
		errors.Is(err, earnedcreditdomain.ErrForbiddenRole),
		errors.Is(err, manualhandlingdomain.ErrForbiddenRole):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, earnedcreditdomain.ErrInvalidTransition),
		errors.Is(err, manualhandlingdomain.ErrAlreadyResolved):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, api.ErrTransient):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "billing system unavailable",
		}
	case errors.Is(err, api.ErrRejected):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_rejected",
			Message: "billing system rejected the request",
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

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, obligationdomain.ErrMissingBoroID),
		errors.Is(err, complianceperioddomain.ErrChargeRateNotFound),
		errors.Is(err, adjustmentdomain.ErrNotDecreased),
		errors.Is(err, penaltydomain.ErrNotOverdue),
		errors.Is(err, penaltydomain.ErrNoRateForDate),
		errors.Is(err, manualhandlingdomain.ErrDecisionNeedsComment),
		errors.Is(err, invoicedomain.ErrInterestRateOverlap),
		errors.Is(err, invoicedomain.ErrMultipleCurrentRates):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, compliancereportdomain.ErrVersionNotFound),
		errors.Is(err, obligationdomain.ErrObligationNotFound),
		errors.Is(err, earnedcreditdomain.ErrEarnedCreditNotFound),
		errors.Is(err, penaltydomain.ErrPenaltyNotFound),
		errors.Is(err, manualhandlingdomain.ErrManualHandlingNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, invoicedomain.ErrNoInvoiceForVersion),
		errors.Is(err, integrationdomain.ErrJobNotFound),
		errors.Is(err, registrydomain.ErrOperatorNotFound),
		errors.Is(err, registrydomain.ErrOperationNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
