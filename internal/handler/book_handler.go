package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
	"library/internal/service"
)

// BookHandler serves the catalog endpoints.
type BookHandler struct {
	svc service.BookService
}

// NewBookHandler creates a new book handler.
func NewBookHandler(svc service.BookService) *BookHandler {
	return &BookHandler{svc: svc}
}

// BookRequest is the book write payload. On update omitted fields are kept.
type BookRequest struct {
	Title           *string      `json:"title" validate:"omitempty,max=200"`
	ISBN            *string      `json:"isbn" validate:"omitempty,max=13"`
	Genre           *model.Genre `json:"genre"`
	AuthorIDs       []uint       `json:"author_ids"`
	PublicationDate *string      `json:"publication_date" example:"1965-08-01"`
	Publisher       *string      `json:"publisher" validate:"omitempty,max=100"`
	Description     *string      `json:"description"`
	TotalCopies     *int         `json:"total_copies" validate:"omitempty,min=0"`
	AvailableCopies *int         `json:"available_copies" validate:"omitempty,min=0"`
}

// BookResponse is the book read shape with nested authors.
type BookResponse struct {
	ID              uint             `json:"id"`
	Title           string           `json:"title"`
	ISBN            string           `json:"isbn"`
	Genre           model.Genre      `json:"genre"`
	Authors         []AuthorResponse `json:"authors"`
	PublicationDate *string          `json:"publication_date"`
	Publisher       string           `json:"publisher"`
	Description     string           `json:"description"`
	TotalCopies     int              `json:"total_copies"`
	AvailableCopies int              `json:"available_copies"`
	IsAvailable     bool             `json:"is_available"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func newBookResponse(b *model.Book) BookResponse {
	authors := make([]AuthorResponse, 0, len(b.Authors))
	for i := range b.Authors {
		authors = append(authors, newAuthorResponse(&b.Authors[i]))
	}
	return BookResponse{
		ID:              b.ID,
		Title:           b.Title,
		ISBN:            b.ISBN,
		Genre:           b.Genre,
		Authors:         authors,
		PublicationDate: formatDate(b.PublicationDate),
		Publisher:       b.Publisher,
		Description:     b.Description,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		IsAvailable:     b.IsAvailable(),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func (r BookRequest) input() (service.BookInput, error) {
	verr := &errors.ValidationError{}
	in := service.BookInput{
		Title:           r.Title,
		ISBN:            r.ISBN,
		Genre:           r.Genre,
		AuthorIDs:       r.AuthorIDs,
		PublicationDate: parseOptionalDate("publication_date", r.PublicationDate, verr),
		Publisher:       r.Publisher,
		Description:     r.Description,
		TotalCopies:     r.TotalCopies,
		AvailableCopies: r.AvailableCopies,
	}
	return in, verr.OrNil()
}

// ListBooks godoc
// @Summary List books
// @Tags books
// @Produce json
// @Security BearerAuth
// @Param genre query string false "Genre"
// @Param author query int false "Author ID"
// @Param search query string false "Title, ISBN or author name contains"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Page offset"
// @Success 200 {object} ListResponse[BookResponse]
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /books [get]
func (h *BookHandler) ListBooks(c echo.Context) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	authorID, err := parseUintQuery(c, "author")
	if err != nil {
		return err
	}
	books, total, err := h.svc.ListBooks(c.Request().Context(), repository.BookFilter{
		Genre:    model.Genre(c.QueryParam("genre")),
		AuthorID: authorID,
		Search:   c.QueryParam("search"),
		Page:     page,
	})
	if err != nil {
		return fail(err)
	}
	out := make([]BookResponse, 0, len(books))
	for i := range books {
		out = append(out, newBookResponse(&books[i]))
	}
	return c.JSON(http.StatusOK, newList(total, out))
}

// CreateBook godoc
// @Summary Create book
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BookRequest true "Book"
// @Success 201 {object} BookResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /books [post]
func (h *BookHandler) CreateBook(c echo.Context) error {
	var req BookRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return fail(err)
	}
	book, err := h.svc.CreateBook(c.Request().Context(), in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, newBookResponse(book))
}

// GetBook godoc
// @Summary Get book by id
// @Tags books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} BookResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /books/{id} [get]
func (h *BookHandler) GetBook(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	book, err := h.svc.GetBook(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newBookResponse(book))
}

// UpdateBook godoc
// @Summary Update book
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param request body BookRequest true "Fields to change"
// @Success 200 {object} BookResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /books/{id} [put]
func (h *BookHandler) UpdateBook(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req BookRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return fail(err)
	}
	book, err := h.svc.UpdateBook(c.Request().Context(), id, in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newBookResponse(book))
}

// DeleteBook godoc
// @Summary Delete book
// @Tags books
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 204
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /books/{id} [delete]
func (h *BookHandler) DeleteBook(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBook(c.Request().Context(), id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}
