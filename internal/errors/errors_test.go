package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "book not found", err: ErrBookNotFound, wantStatus: http.StatusNotFound, wantCode: "BOOK_NOT_FOUND"},
		{name: "wrapped loan not found", err: fmt.Errorf("get loan: %w", ErrLoanNotFound), wantStatus: http.StatusNotFound, wantCode: "LOAN_NOT_FOUND"},
		{name: "no copies", err: ErrNoAvailableCopies, wantStatus: http.StatusBadRequest, wantCode: "NO_AVAILABLE_COPIES"},
		{name: "forbidden", err: ErrPermissionDenied, wantStatus: http.StatusForbidden, wantCode: "PERMISSION_DENIED"},
		{name: "unauthenticated", err: ErrUnauthenticated, wantStatus: http.StatusUnauthorized, wantCode: "NOT_AUTHENTICATED"},
		{name: "validation", err: NewValidationError("email", "taken"), wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.StatusCode)
			assert.Equal(t, tt.wantCode, httpErr.Code)
		})
	}
}

func TestMapErrorToHTTP_NoCopiesCarriesBookField(t *testing.T) {
	resp := MapErrorToHTTP(ErrNoAvailableCopies).ToErrorResponse()
	assert.Equal(t, []string{"no available copies of this book"}, resp.Fields["book"])
}

func TestValidationError(t *testing.T) {
	var empty ValidationError
	assert.False(t, empty.HasErrors())
	assert.NoError(t, empty.OrNil())

	v := NewValidationError("password", "Password fields didn't match.").
		Add("username", "A user with that username already exists.")
	assert.True(t, v.HasErrors())
	assert.Equal(t, "password: Password fields didn't match., username: A user with that username already exists.", v.Error())

	wrapped := fmt.Errorf("register: %w", v.OrNil())
	resp := MapErrorToHTTP(wrapped).ToErrorResponse()
	assert.Len(t, resp.Fields, 2)
}
