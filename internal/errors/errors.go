package errors

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrAuthorNotFound is returned when an author is not found.
	ErrAuthorNotFound = errors.New("author not found")
	// ErrBookNotFound is returned when a book is not found.
	ErrBookNotFound = errors.New("book not found")
	// ErrLoanNotFound is returned when a loan is not found.
	ErrLoanNotFound = errors.New("loan not found")
	// ErrNoAvailableCopies is returned when a book has no copies left to lend.
	ErrNoAvailableCopies = errors.New("no available copies of this book")
	// ErrCopyCountConflict is returned when a copy count change would leave
	// available copies outside 0..total or total below the copies on loan.
	ErrCopyCountConflict = errors.New("copy counts changed concurrently or are out of range")
	// ErrPermissionDenied is returned when the caller's role does not allow the action.
	ErrPermissionDenied = errors.New("you do not have permission to perform this action")
	// ErrUnauthenticated is returned when credentials are missing or invalid.
	ErrUnauthenticated = errors.New("authentication credentials were not provided or are invalid")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     map[string][]string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Fields: e.Fields,
	}
}

// ValidationError carries field-level messages. The empty field name holds
// errors that are not tied to one field.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns a ValidationError with a single field message.
func NewValidationError(field, message string) *ValidationError {
	return (&ValidationError{}).Add(field, message)
}

// Add appends a message for field and returns the receiver.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
	return e
}

// HasErrors reports whether any message was added.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns nil when nothing was added, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		msg := strings.Join(e.Fields[k], "; ")
		if k != "" {
			msg = k + ": " + msg
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, ", ")
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "validation failed",
			Code:       "VALIDATION_ERROR",
			Fields:     vErr.Fields,
		}
	}

	switch {
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, ErrUserNotFound.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrAuthorNotFound):
		return NewHTTPError(http.StatusNotFound, ErrAuthorNotFound.Error(), "AUTHOR_NOT_FOUND")
	case errors.Is(err, ErrBookNotFound):
		return NewHTTPError(http.StatusNotFound, ErrBookNotFound.Error(), "BOOK_NOT_FOUND")
	case errors.Is(err, ErrLoanNotFound):
		return NewHTTPError(http.StatusNotFound, ErrLoanNotFound.Error(), "LOAN_NOT_FOUND")
	case errors.Is(err, ErrNoAvailableCopies):
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    ErrNoAvailableCopies.Error(),
			Code:       "NO_AVAILABLE_COPIES",
			Fields:     map[string][]string{"book": {ErrNoAvailableCopies.Error()}},
		}
	case errors.Is(err, ErrPermissionDenied):
		return NewHTTPError(http.StatusForbidden, ErrPermissionDenied.Error(), "PERMISSION_DENIED")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, ErrUnauthenticated.Error(), "NOT_AUTHENTICATED")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
