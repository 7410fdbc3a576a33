package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"library/docs"

	"github.com/labstack/echo/v4"

	"library/internal/auth"
	"library/internal/cache"
	"library/internal/config"
	"library/internal/db"
	"library/internal/handler"
	"library/internal/lib/sl"
	"library/internal/metrics"
	"library/internal/repository"
	"library/internal/router"
	"library/internal/service"
)

const shutdownTimeout = 15 * time.Second

// @title Library Management API
// @version 1.0
// @description Library catalogue and lending API with role-based access and JWT authentication.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.MustLoad()
	log := sl.New(os.Stdout, cfg.LogLevel)

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Error("database init", sl.Err(err))
		os.Exit(1)
	}

	migrateSchema := db.Migrate
	if cfg.DBAutoMigrate {
		migrateSchema = db.AutoMigrate
	}
	if err := migrateSchema(gormDB); err != nil {
		log.Error("schema migration", sl.Err(err))
		os.Exit(1)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, running without cache", sl.Err(err))
	}
	cancelPing()

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	authorRepo := repository.NewAuthorRepository(gormDB)
	bookRepo := repository.NewBookRepository(gormDB)
	loanRepo := repository.NewLoanRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTServiceWithTTL(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	tokenStore := auth.NewTokenStore(cacheClient)

	m := metrics.New()

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore)
	userService := service.NewUserService(userRepo, cacheClient)
	authorService := service.NewAuthorService(authorRepo)
	bookService := service.NewBookService(bookRepo, authorRepo, cacheClient)
	loanService := service.NewLoanService(loanRepo, bookService, service.WithMetrics(m))

	m.RegisterOverdueGauge(func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := loanService.CountOverdue(ctx)
		if err != nil {
			log.Warn("count overdue loans", sl.Err(err))
			return 0
		}
		return float64(n)
	})

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Config:  cfg,
		Logger:  log,
		Metrics: m,
		Users:   userService,
		Tokens:  tokenStore,
		Auth:    handler.NewAuthHandler(authService, jwtService),
		User:    handler.NewUserHandler(userService),
		Author:  handler.NewAuthorHandler(authorService),
		Book:    handler.NewBookHandler(bookService),
		Loan:    handler.NewLoanHandler(loanService),
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "http://"), "https://")
	}
	log.Info("swagger documentation available", "url", swaggerURL(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server start", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", sl.Err(err))
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// swaggerURL builds the UI address. SwaggerHost may already carry a scheme.
func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}
