package main

import (
	"context"
	"os"

	"library/internal/config"
	"library/internal/db"
	"library/internal/lib/sl"
	"library/internal/repository"
	"library/internal/seed"
)

func main() {
	cfg := config.MustLoad()
	log := sl.New(os.Stdout, cfg.LogLevel)
	log.Info("starting seed")

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Error("failed to connect to database", sl.Err(err))
		os.Exit(1)
	}

	// The schema must be current before rows are written.
	migrateSchema := db.Migrate
	if cfg.DBAutoMigrate {
		migrateSchema = db.AutoMigrate
	}
	if err := migrateSchema(gormDB); err != nil {
		log.Error("failed to run migrations", sl.Err(err))
		os.Exit(1)
	}

	ctx := context.Background()
	seeder := seed.New(
		repository.NewUserRepository(gormDB),
		repository.NewAuthorRepository(gormDB),
		repository.NewBookRepository(gormDB),
		log,
	)

	created, err := seeder.EnsureAdmin(ctx, cfg.Seed.AdminUsername, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword)
	if err != nil {
		log.Error("failed to bootstrap admin", sl.Err(err))
		os.Exit(1)
	}
	log.Info("admin account ready", "username", cfg.Seed.AdminUsername, "created", created)

	if cfg.Seed.File == "" {
		log.Info("SEED_FILE not set, skipping catalog import")
		return
	}

	log.Info("loading catalog", "source", cfg.Seed.File)
	cat, err := seed.Load(ctx, cfg.Seed.File)
	if err != nil {
		log.Error("failed to load catalog", sl.Err(err))
		os.Exit(1)
	}

	res, err := seeder.Import(ctx, cat)
	if err != nil {
		log.Error("failed to import catalog", sl.Err(err))
		os.Exit(1)
	}
	log.Info("seed completed",
		"authors_created", res.AuthorsCreated,
		"authors_updated", res.AuthorsUpdated,
		"books_created", res.BooksCreated,
		"books_updated", res.BooksUpdated,
		"skipped", res.Skipped,
	)
}
