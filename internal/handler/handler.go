package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
)

// ListResponse is the envelope of every list endpoint.
type ListResponse[T any] struct {
	Count   int64 `json:"count"`
	Results []T   `json:"results"`
}

// MessageResponse carries a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// fail converts err into an echo error carrying the standard body.
func fail(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fail(errors.NewValidationError("", "invalid request body"))
	}
	if err := c.Validate(req); err != nil {
		return fail(err)
	}
	return nil
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, errors.ErrorResponse{
			Error: "not found",
			Code:  "NOT_FOUND",
		})
	}
	return uint(id), nil
}

func parsePage(c echo.Context) (repository.Page, error) {
	var p repository.Page
	verr := &errors.ValidationError{}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			verr.Add("limit", "a positive integer is required")
		}
		p.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			verr.Add("offset", "a non-negative integer is required")
		}
		p.Offset = n
	}
	if err := verr.OrNil(); err != nil {
		return repository.Page{}, fail(err)
	}
	return p.Normalize(), nil
}

func parseUintQuery(c echo.Context, name string) (uint, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fail(errors.NewValidationError(name, "a valid integer is required"))
	}
	return uint(n), nil
}

// parseOptionalDate parses a YYYY-MM-DD field; nil or empty input yields nil.
func parseOptionalDate(field string, s *string, verr *errors.ValidationError) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	d, err := model.ParseDate(*s)
	if err != nil {
		verr.Add(field, "date has wrong format, use YYYY-MM-DD")
		return nil
	}
	return &d
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(model.DateLayout)
	return &s
}

func newList[T any](count int64, results []T) ListResponse[T] {
	if results == nil {
		results = []T{}
	}
	return ListResponse[T]{Count: count, Results: results}
}
