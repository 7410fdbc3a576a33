package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"library/internal/errors"
	"library/internal/middleware"
	"library/internal/model"
	"library/internal/repository"
	"library/internal/service"
)

// LoanHandler serves the borrow and return endpoints.
type LoanHandler struct {
	svc service.LoanService
}

// NewLoanHandler creates a new loan handler.
func NewLoanHandler(svc service.LoanService) *LoanHandler {
	return &LoanHandler{svc: svc}
}

// CreateLoanRequest borrows a book for the current user.
type CreateLoanRequest struct {
	Book    uint   `json:"book" validate:"required"`
	DueDate string `json:"due_date" validate:"required" example:"2026-03-24"`
}

// UpdateLoanRequest returns a loan or moves its due date.
type UpdateLoanRequest struct {
	Status  *model.LoanStatus `json:"status" example:"returned"`
	DueDate *string           `json:"due_date" example:"2026-03-31"`
}

// LoanResponse is the loan read shape. Status is the effective status and
// UserName the borrower's full name.
type LoanResponse struct {
	ID           uint             `json:"id"`
	Book         uint             `json:"book"`
	BookTitle    string           `json:"book_title"`
	User         uint             `json:"user"`
	UserName     string           `json:"user_name"`
	BorrowedDate time.Time        `json:"borrowed_date"`
	DueDate      string           `json:"due_date"`
	ReturnedDate *time.Time       `json:"returned_date"`
	Status       model.LoanStatus `json:"status"`
	IsOverdue    bool             `json:"is_overdue"`
}

func newLoanResponse(l *model.BookLoan, now time.Time) LoanResponse {
	resp := LoanResponse{
		ID:           l.ID,
		Book:         l.BookID,
		User:         l.UserID,
		BorrowedDate: l.BorrowedDate,
		DueDate:      l.DueDate.UTC().Format(model.DateLayout),
		ReturnedDate: l.ReturnedDate,
		Status:       l.EffectiveStatus(now),
		IsOverdue:    l.IsOverdue(now),
	}
	if l.Book != nil {
		resp.BookTitle = l.Book.Title
	}
	if l.User != nil {
		resp.UserName = l.User.FullName()
	}
	return resp
}

// ListLoans godoc
// @Summary List loans
// @Description Readers see their own loans; librarians and admins see all.
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param status query string false "borrowed, returned or overdue"
// @Param book query int false "Book ID"
// @Param search query string false "Book title or username contains"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Page offset"
// @Success 200 {object} ListResponse[LoanResponse]
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /loans [get]
func (h *LoanHandler) ListLoans(c echo.Context) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	bookID, err := parseUintQuery(c, "book")
	if err != nil {
		return err
	}
	loans, total, err := h.svc.ListLoans(c.Request().Context(), middleware.CurrentUser(c), repository.LoanFilter{
		BookID: bookID,
		Status: model.LoanStatus(c.QueryParam("status")),
		Search: c.QueryParam("search"),
		Page:   page,
	})
	if err != nil {
		return fail(err)
	}
	now := h.svc.Now()
	out := make([]LoanResponse, 0, len(loans))
	for i := range loans {
		out = append(out, newLoanResponse(&loans[i], now))
	}
	return c.JSON(http.StatusOK, newList(total, out))
}

// CreateLoan godoc
// @Summary Borrow a book
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateLoanRequest true "Loan"
// @Success 201 {object} LoanResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /loans [post]
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req CreateLoanRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	due, err := model.ParseDate(req.DueDate)
	if err != nil {
		return fail(errors.NewValidationError("due_date", "date has wrong format, use YYYY-MM-DD"))
	}
	loan, err := h.svc.CreateLoan(c.Request().Context(), middleware.CurrentUser(c), service.LoanInput{
		BookID:  req.Book,
		DueDate: due,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, newLoanResponse(loan, h.svc.Now()))
}

// GetLoan godoc
// @Summary Get loan by id
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} LoanResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /loans/{id} [get]
func (h *LoanHandler) GetLoan(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	loan, err := h.svc.GetLoan(c.Request().Context(), middleware.CurrentUser(c), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newLoanResponse(loan, h.svc.Now()))
}

// UpdateLoan godoc
// @Summary Return a loan or change its due date
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param request body UpdateLoanRequest true "Fields to change"
// @Success 200 {object} LoanResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /loans/{id} [put]
func (h *LoanHandler) UpdateLoan(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateLoanRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	verr := &errors.ValidationError{}
	due := parseOptionalDate("due_date", req.DueDate, verr)
	if err := verr.OrNil(); err != nil {
		return fail(err)
	}
	loan, err := h.svc.UpdateLoan(c.Request().Context(), middleware.CurrentUser(c), id, service.LoanUpdate{
		Status:  req.Status,
		DueDate: due,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newLoanResponse(loan, h.svc.Now()))
}

// DeleteLoan godoc
// @Summary Delete loan
// @Description Deleting a loan that is still out puts its copy back.
// @Tags loans
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 204
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /loans/{id} [delete]
func (h *LoanHandler) DeleteLoan(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLoan(c.Request().Context(), middleware.CurrentUser(c), id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}
