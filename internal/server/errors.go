package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	contentdomain "github.com/placehub/placehub/internal/content/domain"
	discountdomain "github.com/placehub/placehub/internal/discount/domain"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	placementdomain "github.com/placehub/placehub/internal/placement/domain"
	publishdomain "github.com/placehub/placehub/internal/publish/domain"
	referraldomain "github.com/placehub/placehub/internal/referral/domain"
	rentaldomain "github.com/placehub/placehub/internal/rental/domain"
	sitedomain "github.com/placehub/placehub/internal/site/domain"
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
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate_limited")
	ErrGone         = errors.New("gone")
)

// ErrorHandlingMiddleware renders the last handler error after the chain has
// run. Handlers report failures with AbortWithError and never write error
// bodies themselves, so the status mapping lives in exactly one place.
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

// mapError is the single translation from domain errors to HTTP statuses.
// Every branch matches sentinel errors with errors.Is; message text is never
// inspected.
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
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_balance",
			Message: "insufficient balance",
		}
	case isOwnershipError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrGone):
		return http.StatusGone, errorPayload{
			Type:    "gone",
			Message: "endpoint permanently removed",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, publishdomain.ErrGatewayUnavailable),
		errors.Is(err, publishdomain.ErrGatewayRejected):
		return http.StatusBadGateway, errorPayload{
			Type:    "publish_failed",
			Message: "remote publication failed",
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
	case errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidType),
		errors.Is(err, discountdomain.ErrInvalidSpend),
		errors.Is(err, contentdomain.ErrInvalidVariant),
		errors.Is(err, contentdomain.ErrInvalidTitle),
		errors.Is(err, contentdomain.ErrInvalidLimit),
		errors.Is(err, sitedomain.ErrInvalidDomain),
		errors.Is(err, sitedomain.ErrInvalidPrice),
		errors.Is(err, sitedomain.ErrInvalidVariant),
		errors.Is(err, sitedomain.ErrSiteInactive),
		errors.Is(err, placementdomain.ErrInvalidVariant),
		errors.Is(err, placementdomain.ErrInvalidSchedule),
		errors.Is(err, placementdomain.ErrNoContent),
		errors.Is(err, placementdomain.ErrDuplicateContent),
		errors.Is(err, placementdomain.ErrVariantMismatch),
		errors.Is(err, referraldomain.ErrInvalidCode),
		errors.Is(err, referraldomain.ErrInvalidDeposit),
		errors.Is(err, referraldomain.ErrInvalidReward),
		errors.Is(err, referraldomain.ErrCodeSelfUse),
		errors.Is(err, rentaldomain.ErrInvalidSlots),
		errors.Is(err, rentaldomain.ErrInvalidPrice),
		errors.Is(err, rentaldomain.ErrInvalidRole),
		errors.Is(err, rentaldomain.ErrSelfRental):
		return true
	default:
		return false
	}
}

func isOwnershipError(err error) bool {
	switch {
	case errors.Is(err, contentdomain.ErrNotOwned),
		errors.Is(err, placementdomain.ErrNotOwned),
		errors.Is(err, rentaldomain.ErrNotOwner),
		errors.Is(err, rentaldomain.ErrNotTenant),
		errors.Is(err, rentaldomain.ErrNotParty):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrAccountNotFound),
		errors.Is(err, contentdomain.ErrNotFound),
		errors.Is(err, sitedomain.ErrSiteNotFound),
		errors.Is(err, placementdomain.ErrNotFound),
		errors.Is(err, referraldomain.ErrCodeNotFound),
		errors.Is(err, rentaldomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, contentdomain.ErrExhausted),
		errors.Is(err, placementdomain.ErrNotPlaced),
		errors.Is(err, placementdomain.ErrNotRenewable),
		errors.Is(err, referraldomain.ErrCodeInactive),
		errors.Is(err, referraldomain.ErrCodeExpired),
		errors.Is(err, referraldomain.ErrCodeExhausted),
		errors.Is(err, ledgerdomain.ErrReferralAlreadyActive),
		errors.Is(err, discountdomain.ErrNoTiers),
		errors.Is(err, rentaldomain.ErrStateConflict),
		errors.Is(err, rentaldomain.ErrSlotsInUse):
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

// classifyErrorForLog labels request errors for the access log without
// duplicating the response mapping.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	default:
		return "", payload.Type
	}
}
