package response

import (
	"errors"
	"net/http"

	"github.com/cardex/market-api/internal/types"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stable error codes surfaced to callers. Callers decide whether to retry
// with corrected parameters; nothing is retried server-side.
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeDuplicateResource = "DUPLICATE_RESOURCE"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodePaymentMismatch   = "PAYMENT_MISMATCH"
	ErrCodeRestrictedBuyer   = "RESTRICTED_BUYER"
	ErrCodeSystemPaused      = "SYSTEM_PAUSED"
	ErrCodeOutOfBounds       = "OUT_OF_BOUNDS"
)

// statusFor maps every domain error to its HTTP status and stable code.
// The message is always the sentinel's text so callers can match on it.
var statusFor = []struct {
	err    error
	status int
	code   string
}{
	{types.ErrListingNotFound, http.StatusNotFound, ErrCodeNotFound},
	{types.ErrAssetNotFound, http.StatusNotFound, ErrCodeNotFound},
	{types.ErrDuplicateAsset, http.StatusConflict, ErrCodeDuplicateResource},
	{types.ErrUnauthorized, http.StatusForbidden, ErrCodeForbidden},
	{types.ErrNotSeller, http.StatusForbidden, ErrCodeForbidden},
	{types.ErrNotAssetOwner, http.StatusForbidden, ErrCodeForbidden},
	{types.ErrNotApprovedForMarket, http.StatusForbidden, ErrCodeForbidden},
	{types.ErrAlreadySold, http.StatusConflict, ErrCodeInvalidState},
	{types.ErrAlreadyRetired, http.StatusConflict, ErrCodeInvalidState},
	{types.ErrAlreadyActive, http.StatusConflict, ErrCodeInvalidState},
	{types.ErrOfferExpired, http.StatusConflict, ErrCodeInvalidState},
	{types.ErrAlreadyPaused, http.StatusConflict, ErrCodeInvalidState},
	{types.ErrNotPaused, http.StatusConflict, ErrCodeInvalidState},
	{types.ErrVersionAlreadyLive, http.StatusConflict, ErrCodeInvalidState},
	{types.ErrUnknownVersion, http.StatusBadRequest, ErrCodeBadRequest},
	{types.ErrInvalidPrice, http.StatusBadRequest, ErrCodeBadRequest},
	{types.ErrRestrictedBuyer, http.StatusForbidden, ErrCodeRestrictedBuyer},
	{types.ErrUnderPayment, http.StatusBadRequest, ErrCodePaymentMismatch},
	{types.ErrOverPayment, http.StatusBadRequest, ErrCodePaymentMismatch},
	{types.ErrInsufficientServiceFee, http.StatusBadRequest, ErrCodePaymentMismatch},
	{types.ErrInsufficientBalance, http.StatusBadRequest, ErrCodePaymentMismatch},
	{types.ErrInsufficientAllowance, http.StatusBadRequest, ErrCodePaymentMismatch},
	{types.ErrSystemPaused, http.StatusServiceUnavailable, ErrCodeSystemPaused},
	{types.ErrFeeOutOfBounds, http.StatusBadRequest, ErrCodeOutOfBounds},
}

// Handle processes the error and returns the appropriate response
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	for _, m := range statusFor {
		if errors.Is(err, m.err) {
			fail(c, m.status, m.code, m.err.Error())
			return
		}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	fail(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	fail(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	fail(c, http.StatusConflict, ErrCodeDuplicateResource, message)
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}
