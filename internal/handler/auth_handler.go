package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"library/internal/auth"
	"library/internal/model"
	"library/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
	jwtService  *auth.JWTService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{authService: authService, jwtService: jwtService}
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Username  string         `json:"username" validate:"required,max=150"`
	Email     string         `json:"email" validate:"required,email,max=254"`
	Password  string         `json:"password" validate:"required"`
	Password2 string         `json:"password2" validate:"required"`
	FirstName string         `json:"first_name" validate:"required,max=150"`
	LastName  string         `json:"last_name" validate:"required,max=150"`
	Phone     string         `json:"phone" validate:"omitempty,max=15"`
	Address   string         `json:"address"`
	UserType  model.UserType `json:"user_type" validate:"omitempty,oneof=reader librarian admin"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// LogoutRequest represents a logout request.
type LogoutRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// AuthResponse represents an authentication response.
type AuthResponse struct {
	User    *model.User `json:"user"`
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
}

// RefreshResponse carries a new access token.
type RefreshResponse struct {
	Access string `json:"access"`
}

// Register godoc
// @Summary Register a new reader
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.authService.Register(c.Request().Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		Password2: req.Password2,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
		UserType:  req.UserType,
	})
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusCreated, AuthResponse{
		User:    result.User,
		Access:  result.AccessToken,
		Refresh: result.RefreshToken,
	})
}

// Login godoc
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusOK, AuthResponse{
		User:    result.User,
		Access:  result.AccessToken,
		Refresh: result.RefreshToken,
	})
}

// Refresh godoc
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} RefreshResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/token/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	access, err := h.authService.RefreshToken(c.Request().Context(), req.Refresh)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, RefreshResponse{Access: access})
}

// Logout godoc
// @Summary Logout user
// @Description Revokes the refresh token. A bearer access token, when sent, is blacklisted until it expires.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LogoutRequest true "Refresh token"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var req LogoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.authService.Logout(c.Request().Context(), req.Refresh, h.bearerClaims(c)); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "successfully logged out"})
}

// bearerClaims returns the claims of a valid bearer access token, or nil.
func (h *AuthHandler) bearerClaims(c echo.Context) *auth.Claims {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil
	}
	claims, err := h.jwtService.ValidateToken(token)
	if err != nil || claims.TokenType != auth.TokenTypeAccess {
		return nil
	}
	return claims
}
