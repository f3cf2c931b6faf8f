package gen

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hbomb79/mediaload/pkg/logger"
	"github.com/labstack/echo/v4"
)

type APIError struct {
	// Human readable error display message. The web UI displays this
	// value directly, so it must be suitable for end users.
	Message string `json:"error"`

	// A machine readable and stable identifier for the error case being represented
	Code string `json:"code"`

	// Used to alter the HTTP response status in accordance with the error
	Status int `json:"-"`

	// Additional message for internal logging only. Will not be included in the message
	// sent to the user.
	InternalMessage string `json:"-"`
}

// Error satisifies the Go error interface and simply exposes the
// message contained by this APIError.
func (err APIError) Error() string {
	return fmt.Sprintf("api error: %s", err.Message)
}

// NewAPIError constructs an APIError with the status and user-facing message provided.
func NewAPIError(status int, code string, message string) APIError {
	return APIError{Status: status, Code: code, Message: message}
}

const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeProbeFailed    = "PROBE_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeForbiddenPath  = "FORBIDDEN_PATH"
	CodeInternal       = "INTERNAL_ERROR"
	CodeUnavailable    = "UNAVAILABLE"
)

// GetHTTPErrorHandler returns an echo HTTP error handler
// which understands how to interpret APIError. Echo's own HTTPErrors are
// rendered using the same JSON shape. Any other error is logged and handed
// off to the fallback handler provided.
func GetHTTPErrorHandler(fallbackHandler echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	log := logger.Get("API")
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}

		var apiErr APIError
		if ok := errors.As(err, &apiErr); ok {
			if apiErr.Status == 0 {
				apiErr.Status = http.StatusInternalServerError
			}
			if len(apiErr.Message) == 0 {
				apiErr.Message = http.StatusText(apiErr.Status)
			}
			if len(apiErr.Code) == 0 {
				apiErr.Code = http.StatusText(apiErr.Status)
			}
			if len(apiErr.InternalMessage) > 0 {
				log.Errorf("Request failure, internal error: %s\n", apiErr.InternalMessage)
			}

			if err := ctx.JSON(apiErr.Status, apiErr); err == nil {
				return
			}
		}

		var httpErr *echo.HTTPError
		if ok := errors.As(err, &httpErr); ok {
			message := http.StatusText(httpErr.Code)
			if m, ok := httpErr.Message.(string); ok && m != "" {
				message = m
			}

			if err := ctx.JSON(httpErr.Code, APIError{Message: message, Code: http.StatusText(httpErr.Code)}); err == nil {
				return
			}
		}

		log.Warnf(
			"%s request to %s caused error response which is not an APIError, falling back to default HTTP error handling: %v\n",
			ctx.Request().Method, ctx.Request().RequestURI, err,
		)
		fallbackHandler(err, ctx)
	}
}
