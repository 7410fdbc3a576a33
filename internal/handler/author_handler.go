package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
	"library/internal/service"
)

// AuthorHandler serves the author endpoints.
type AuthorHandler struct {
	svc service.AuthorService
}

// NewAuthorHandler creates a new author handler.
func NewAuthorHandler(svc service.AuthorService) *AuthorHandler {
	return &AuthorHandler{svc: svc}
}

// AuthorRequest is the author write payload. Dates use YYYY-MM-DD.
type AuthorRequest struct {
	Name      string  `json:"name" validate:"required,max=100"`
	Bio       string  `json:"bio"`
	BirthDate *string `json:"birth_date" example:"1929-10-21"`
	DeathDate *string `json:"death_date" example:"2018-01-22"`
}

// AuthorResponse is the author read shape.
type AuthorResponse struct {
	ID        uint    `json:"id"`
	Name      string  `json:"name"`
	Bio       string  `json:"bio"`
	BirthDate *string `json:"birth_date"`
	DeathDate *string `json:"death_date"`
}

func newAuthorResponse(a *model.Author) AuthorResponse {
	return AuthorResponse{
		ID:        a.ID,
		Name:      a.Name,
		Bio:       a.Bio,
		BirthDate: formatDate(a.BirthDate),
		DeathDate: formatDate(a.DeathDate),
	}
}

func (r AuthorRequest) input() (service.AuthorInput, error) {
	verr := &errors.ValidationError{}
	in := service.AuthorInput{
		Name:      r.Name,
		Bio:       r.Bio,
		BirthDate: parseOptionalDate("birth_date", r.BirthDate, verr),
		DeathDate: parseOptionalDate("death_date", r.DeathDate, verr),
	}
	return in, verr.OrNil()
}

// ListAuthors godoc
// @Summary List authors
// @Tags authors
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name contains"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Page offset"
// @Success 200 {object} ListResponse[AuthorResponse]
// @Failure 401 {object} errors.ErrorResponse
// @Router /authors [get]
func (h *AuthorHandler) ListAuthors(c echo.Context) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	authors, total, err := h.svc.ListAuthors(c.Request().Context(), repository.AuthorFilter{
		Search: c.QueryParam("search"),
		Page:   page,
	})
	if err != nil {
		return fail(err)
	}
	out := make([]AuthorResponse, 0, len(authors))
	for i := range authors {
		out = append(out, newAuthorResponse(&authors[i]))
	}
	return c.JSON(http.StatusOK, newList(total, out))
}

// CreateAuthor godoc
// @Summary Create author
// @Tags authors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AuthorRequest true "Author"
// @Success 201 {object} AuthorResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /authors [post]
func (h *AuthorHandler) CreateAuthor(c echo.Context) error {
	var req AuthorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return fail(err)
	}
	author, err := h.svc.CreateAuthor(c.Request().Context(), in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, newAuthorResponse(author))
}

// GetAuthor godoc
// @Summary Get author by id
// @Tags authors
// @Produce json
// @Security BearerAuth
// @Param id path int true "Author ID"
// @Success 200 {object} AuthorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /authors/{id} [get]
func (h *AuthorHandler) GetAuthor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	author, err := h.svc.GetAuthor(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newAuthorResponse(author))
}

// UpdateAuthor godoc
// @Summary Update author
// @Tags authors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Author ID"
// @Param request body AuthorRequest true "Author"
// @Success 200 {object} AuthorResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /authors/{id} [put]
func (h *AuthorHandler) UpdateAuthor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req AuthorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return fail(err)
	}
	author, err := h.svc.UpdateAuthor(c.Request().Context(), id, in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newAuthorResponse(author))
}

// DeleteAuthor godoc
// @Summary Delete author
// @Tags authors
// @Security BearerAuth
// @Param id path int true "Author ID"
// @Success 204
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /authors/{id} [delete]
func (h *AuthorHandler) DeleteAuthor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAuthor(c.Request().Context(), id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}
