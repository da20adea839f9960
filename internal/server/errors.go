package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/fundops/internal/audit/domain"
	funddomain "github.com/smallbiznis/fundops/internal/fund/domain"
	pricingdomain "github.com/smallbiznis/fundops/internal/pricing/domain"
	tranchedomain "github.com/smallbiznis/fundops/internal/tranche/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Retriable bool              `json:"retriable,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotFound       = errors.New("not_found")
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
	return ErrInvalidRequest
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: strings.ReplaceAll(code, "_", " "),
				},
			},
		}
	case errors.Is(err, pricingdomain.ErrCapacityConflict):
		// Stale quote: the client re-quotes and retries
		return http.StatusConflict, errorPayload{
			Type:      "conflict",
			Message:   "capacity conflict",
			Retriable: true,
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch err {
	case ErrInvalidRequest,
		funddomain.ErrInvalidOrganization,
		funddomain.ErrInvalidFund,
		pricingdomain.ErrInvalidOrganization,
		pricingdomain.ErrInvalidFund,
		pricingdomain.ErrInvalidTranche,
		pricingdomain.ErrInvalidUnitCount,
		pricingdomain.ErrInvalidTrancheSetup,
		pricingdomain.ErrInsufficientCapacity,
		pricingdomain.ErrNoActiveTranche,
		pricingdomain.ErrTranchesExist,
		pricingdomain.ErrTrancheLocked,
		tranchedomain.ErrInvalidOrganization,
		tranchedomain.ErrInvalidInvestment,
		tranchedomain.ErrInvalidTranche,
		tranchedomain.ErrInvalidFund,
		tranchedomain.ErrInvalidStatus,
		tranchedomain.ErrInvalidTransition,
		tranchedomain.ErrInvalidFundedAmount,
		tranchedomain.ErrInvalidSchedule,
		tranchedomain.ErrScheduleMismatch,
		tranchedomain.ErrScheduleExists,
		auditdomain.ErrInvalidOrganization,
		auditdomain.ErrInvalidPageToken,
		auditdomain.ErrInvalidTimeRange,
		auditdomain.ErrInvalidAction:
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, funddomain.ErrFundNotFound),
		errors.Is(err, pricingdomain.ErrFundNotFound),
		errors.Is(err, pricingdomain.ErrTrancheNotFound),
		errors.Is(err, tranchedomain.ErrInvestmentNotFound),
		errors.Is(err, tranchedomain.ErrTrancheNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
