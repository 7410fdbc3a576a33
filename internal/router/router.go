package router

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"library/internal/access"
	"library/internal/auth"
	"library/internal/config"
	"library/internal/handler"
	"library/internal/metrics"
	"library/internal/middleware"
	"library/internal/service"
)

// Deps carries everything the routes are wired to.
type Deps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Users   service.UserService
	Tokens  auth.TokenStoreInterface

	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Author *handler.AuthorHandler
	Book   *handler.BookHandler
	Loan   *handler.LoanHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, d Deps) {
	e.HTTPErrorHandler = middleware.ErrorHandler(d.Logger)
	e.Validator = NewValidator()

	e.Use(middleware.RequestID())
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}
	e.Use(middleware.Slog(d.Logger))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("1M"))

	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/swagger/index.html")
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))
	}
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	authGroup := api.Group("/auth", middleware.RateLimit(d.Config.AuthRateLimit))
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/login", d.Auth.Login)
	authGroup.POST("/token/refresh", d.Auth.Refresh)
	authGroup.POST("/logout", d.Auth.Logout)

	// Secured routes (require JWT authentication)
	secured := api.Group("",
		middleware.JWT([]byte(d.Config.JWTSecret)),
		middleware.Authenticate(d.Users, d.Tokens, d.Logger),
	)
	staff := middleware.Require(access.LibrarianOrAdmin)
	admin := middleware.Require(access.AdminOnly)

	secured.GET("/users/profile", d.User.GetProfile)
	secured.PUT("/users/profile", d.User.UpdateProfile)
	secured.GET("/users", d.User.ListUsers, staff)
	secured.PUT("/users/:id/role", d.User.UpdateRole, admin)

	secured.GET("/authors", d.Author.ListAuthors)
	secured.POST("/authors", d.Author.CreateAuthor, staff)
	secured.GET("/authors/:id", d.Author.GetAuthor, staff)
	secured.PUT("/authors/:id", d.Author.UpdateAuthor, staff)
	secured.DELETE("/authors/:id", d.Author.DeleteAuthor, staff)

	secured.GET("/books", d.Book.ListBooks)
	secured.GET("/books/:id", d.Book.GetBook)
	secured.POST("/books", d.Book.CreateBook, staff)
	secured.PUT("/books/:id", d.Book.UpdateBook, staff)
	secured.DELETE("/books/:id", d.Book.DeleteBook, staff)

	// Object-level ownership is checked by the loan service.
	secured.GET("/loans", d.Loan.ListLoans)
	secured.POST("/loans", d.Loan.CreateLoan)
	secured.GET("/loans/:id", d.Loan.GetLoan)
	secured.PUT("/loans/:id", d.Loan.UpdateLoan)
	secured.DELETE("/loans/:id", d.Loan.DeleteLoan)
}
