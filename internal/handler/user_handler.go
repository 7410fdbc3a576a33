package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"library/internal/middleware"
	"library/internal/model"
	"library/internal/repository"
	"library/internal/service"
)

// UserHandler bundles HTTP handlers.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// UpdateProfileRequest lists the editable profile fields.
type UpdateProfileRequest struct {
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Phone     *string `json:"phone" validate:"omitempty,max=15"`
	Address   *string `json:"address"`
}

// UpdateRoleRequest sets a user's role.
type UpdateRoleRequest struct {
	UserType model.UserType `json:"user_type" validate:"required,oneof=reader librarian admin"`
}

// GetProfile godoc
// @Summary Current user's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Router /users/profile [get]
func (h *UserHandler) GetProfile(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

// UpdateProfile godoc
// @Summary Update current user's profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /users/profile [put]
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.svc.UpdateProfile(c.Request().Context(), middleware.CurrentUser(c).ID, service.ProfileInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, user)
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param search query string false "Username, name or email"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Page offset"
// @Success 200 {object} ListResponse[model.User]
// @Failure 403 {object} errors.ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	users, total, err := h.svc.ListUsers(c.Request().Context(), repository.UserFilter{
		Search: c.QueryParam("search"),
		Page:   page,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newList(total, users))
}

// UpdateRole godoc
// @Summary Change a user's role
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body UpdateRoleRequest true "New role"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id}/role [put]
func (h *UserHandler) UpdateRole(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.svc.UpdateRole(c.Request().Context(), id, req.UserType)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, user)
}
