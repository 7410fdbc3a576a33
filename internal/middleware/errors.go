package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "library/internal/errors"
	"library/internal/lib/sl"
)

// ErrorHandler renders every error as an apperrors.ErrorResponse body.
// Server errors are logged with their cause; the cause is never returned.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body, cause := resolve(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
				slog.String("req_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				sl.Err(cause),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("write error response", sl.Err(err))
		}
	}
}

func resolve(err error) (int, apperrors.ErrorResponse, error) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		cause := error(he)
		if he.Internal != nil {
			cause = he.Internal
		}
		switch msg := he.Message.(type) {
		case apperrors.ErrorResponse:
			return he.Code, msg, cause
		case string:
			return he.Code, apperrors.ErrorResponse{Error: msg, Code: codeForStatus(he.Code)}, cause
		default:
			return he.Code, apperrors.ErrorResponse{Error: http.StatusText(he.Code), Code: codeForStatus(he.Code)}, cause
		}
	}

	mapped := apperrors.MapErrorToHTTP(err)
	return mapped.StatusCode, mapped.ToErrorResponse(), err
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "NOT_AUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "REQUEST_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "THROTTLED"
	}
	if status >= http.StatusInternalServerError {
		return "INTERNAL_ERROR"
	}
	return fmt.Sprintf("HTTP_%d", status)
}
