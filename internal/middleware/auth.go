package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"library/internal/access"
	"library/internal/auth"
	apperrors "library/internal/errors"
	"library/internal/lib/sl"
	"library/internal/model"
	"library/internal/service"
)

const (
	tokenContextKey = "token"
	userContextKey  = "current_user"
)

// JWT verifies the bearer token signature and expiry and stores the parsed
// *jwt.Token carrying *auth.Claims in the context.
func JWT(secret []byte) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    secret,
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		ContextKey:    tokenContextKey,
		TokenLookup:   "header:" + echo.HeaderAuthorization + ":Bearer ",
		NewClaimsFunc: func(echo.Context) jwt.Claims { return &auth.Claims{} },
		ErrorHandler: func(c echo.Context, err error) error {
			return unauthenticated()
		},
	})
}

// Authenticate resolves the access token set by JWT into the current user.
// Refresh tokens and blacklisted tokens are rejected.
func Authenticate(users service.UserService, tokens auth.TokenStoreInterface, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := CurrentClaims(c)
			if claims == nil || claims.TokenType != auth.TokenTypeAccess {
				return unauthenticated()
			}

			ctx := c.Request().Context()
			blacklisted, err := tokens.IsAccessTokenBlacklisted(ctx, claims.ID)
			if err != nil {
				log.Warn("blacklist lookup failed", sl.Err(err))
			}
			if blacklisted {
				return unauthenticated()
			}

			user, err := users.GetUser(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, apperrors.ErrUserNotFound) {
					return unauthenticated()
				}
				return err
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// Require rejects requests whose current user does not satisfy rule.
func Require(rule access.Rule) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return unauthenticated()
			}
			if !access.Allows(rule, user) {
				return apperrors.ErrPermissionDenied
			}
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c echo.Context) *model.User {
	user, _ := c.Get(userContextKey).(*model.User)
	return user
}

// CurrentClaims returns the verified token claims, or nil.
func CurrentClaims(c echo.Context) *auth.Claims {
	token, ok := c.Get(tokenContextKey).(*jwt.Token)
	if !ok || token == nil {
		return nil
	}
	claims, _ := token.Claims.(*auth.Claims)
	return claims
}

func unauthenticated() error {
	return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
		Error: apperrors.ErrUnauthenticated.Error(),
		Code:  "NOT_AUTHENTICATED",
	})
}
