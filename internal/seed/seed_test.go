package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library/internal/db"
	"library/internal/model"
	"library/internal/repository"
)

const catalogJSON = `{
  "authors": [
    {"name": "Ursula K. Le Guin", "birth_date": "1929-10-21", "death_date": "2018-01-22"},
    {"name": "Terry Pratchett"},
    {"name": "Neil Gaiman"},
    {"name": ""}
  ],
  "books": [
    {"title": "A Wizard of Earthsea", "isbn": "9780547773742", "genre": "fantasy", "authors": ["Ursula K. Le Guin"], "total_copies": 3},
    {"title": "Good Omens", "isbn": "9780060853976", "genre": "fantasy", "authors": ["Terry Pratchett", "Neil Gaiman"], "publication_date": "1990-05-01"},
    {"title": "Bad Genre", "isbn": "1111111111", "genre": "poetry", "authors": ["Neil Gaiman"]},
    {"title": "Ghost Author", "isbn": "2222222222", "genre": "fiction", "authors": ["Nobody"]}
  ]
}`

func newTestSeeder(t *testing.T) (*Seeder, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gormDB))
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := New(
		repository.NewUserRepository(gormDB),
		repository.NewAuthorRepository(gormDB),
		repository.NewBookRepository(gormDB),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return s, gormDB
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON), 0o600))

	cat, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, cat.Authors, 4)
	assert.Len(t, cat.Books, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/catalog.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(catalogJSON))
	}))
	defer srv.Close()

	cat, err = Load(context.Background(), srv.URL+"/catalog.json")
	require.NoError(t, err)
	assert.Equal(t, "A Wizard of Earthsea", cat.Books[0].Title)

	_, err = Load(context.Background(), srv.URL+"/missing.json")
	assert.ErrorContains(t, err, "status code: 404")

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestEnsureAdmin(t *testing.T) {
	s, gormDB := newTestSeeder(t)
	ctx := context.Background()

	_, err := s.EnsureAdmin(ctx, "admin", "admin@example.com", "")
	assert.Error(t, err)
	_, err = s.EnsureAdmin(ctx, "admin", "admin@example.com", "12345678")
	assert.ErrorContains(t, err, "entirely numeric")

	created, err := s.EnsureAdmin(ctx, "admin", "admin@example.com", "s3cure-pass")
	require.NoError(t, err)
	assert.True(t, created)

	var admin model.User
	require.NoError(t, gormDB.Where("username = ?", "admin").First(&admin).Error)
	assert.Equal(t, model.UserTypeAdmin, admin.UserType)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("s3cure-pass")))

	created, err = s.EnsureAdmin(ctx, "admin", "admin@example.com", "other-pass")
	require.NoError(t, err)
	assert.False(t, created)

	reader := &model.User{Username: "ada", Email: "ada@example.com", PasswordHash: "x", UserType: model.UserTypeReader}
	require.NoError(t, gormDB.Create(reader).Error)
	created, err = s.EnsureAdmin(ctx, "ada", "ada@example.com", "")
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, gormDB.First(reader, reader.ID).Error)
	assert.Equal(t, model.UserTypeAdmin, reader.UserType)
}

func TestImport(t *testing.T) {
	s, gormDB := newTestSeeder(t)
	ctx := context.Background()

	cat, err := parse(t)
	require.NoError(t, err)

	res, err := s.Import(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, Result{AuthorsCreated: 3, BooksCreated: 2, Skipped: 3}, res)

	var omens model.Book
	require.NoError(t, gormDB.Preload("Authors").Where("isbn = ?", "9780060853976").First(&omens).Error)
	assert.Len(t, omens.Authors, 2)
	assert.Equal(t, 1, omens.TotalCopies)
	assert.Equal(t, 1, omens.AvailableCopies)
	require.NotNil(t, omens.PublicationDate)
	assert.Equal(t, "1990-05-01", omens.PublicationDate.Format(model.DateLayout))

	var leGuin model.Author
	require.NoError(t, gormDB.Where("name = ?", "Ursula K. Le Guin").First(&leGuin).Error)
	require.NotNil(t, leGuin.DeathDate)

	res, err = s.Import(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, Result{AuthorsUpdated: 3, BooksUpdated: 2, Skipped: 3}, res)

	var count int64
	require.NoError(t, gormDB.Model(&model.Book{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestImport_KeepsCopiesOnLoan(t *testing.T) {
	s, gormDB := newTestSeeder(t)
	ctx := context.Background()

	cat, err := parse(t)
	require.NoError(t, err)
	_, err = s.Import(ctx, cat)
	require.NoError(t, err)

	var book model.Book
	require.NoError(t, gormDB.Where("isbn = ?", "9780547773742").First(&book).Error)
	reader := &model.User{Username: "ada", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, gormDB.Create(reader).Error)
	for i := 0; i < 2; i++ {
		loan := &model.BookLoan{BookID: book.ID, UserID: reader.ID, BorrowedDate: time.Now(), DueDate: time.Now().AddDate(0, 0, 14), Status: model.LoanStatusBorrowed}
		require.NoError(t, repository.NewLoanRepository(gormDB).Borrow(ctx, loan))
	}
	require.NoError(t, gormDB.First(&book, book.ID).Error)
	require.Equal(t, 1, book.AvailableCopies)

	cat.Books[0].TotalCopies = 5
	_, err = s.Import(ctx, cat)
	require.NoError(t, err)
	require.NoError(t, gormDB.First(&book, book.ID).Error)
	assert.Equal(t, 5, book.TotalCopies)
	assert.Equal(t, 3, book.AvailableCopies)

	cat.Books[0].TotalCopies = 1
	res, err := s.Import(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Skipped)
	require.NoError(t, gormDB.First(&book, book.ID).Error)
	assert.Equal(t, 5, book.TotalCopies)
}

func parse(t *testing.T) (*Catalog, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON), 0o600))
	return Load(context.Background(), path)
}
