// Package seed bootstraps an admin account and imports a JSON catalog of
// authors and books. Every step is idempotent: authors are matched by name
// and books by ISBN.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "library/internal/errors"
	"library/internal/lib/sl"
	"library/internal/model"
	"library/internal/repository"
	"library/internal/service"
)

// AuthorRecord is one author in the catalog file.
type AuthorRecord struct {
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	BirthDate string `json:"birth_date"`
	DeathDate string `json:"death_date"`
}

// BookRecord is one book in the catalog file. Authors are referenced by name.
type BookRecord struct {
	Title           string   `json:"title"`
	ISBN            string   `json:"isbn"`
	Genre           string   `json:"genre"`
	Authors         []string `json:"authors"`
	PublicationDate string   `json:"publication_date"`
	Publisher       string   `json:"publisher"`
	Description     string   `json:"description"`
	TotalCopies     int      `json:"total_copies"`
}

// Catalog is the seed file layout.
type Catalog struct {
	Authors []AuthorRecord `json:"authors"`
	Books   []BookRecord   `json:"books"`
}

// Result counts what Import did.
type Result struct {
	AuthorsCreated int
	AuthorsUpdated int
	BooksCreated   int
	BooksUpdated   int
	Skipped        int
}

// Load reads a catalog from a local path or an http(s) URL.
func Load(ctx context.Context, source string) (*Catalog, error) {
	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = fetch(ctx, source)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}

	var cat Catalog
	if err := json.Unmarshal(body, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &cat, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog source returned status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// Seeder writes seed data through the repositories.
type Seeder struct {
	users   repository.UserRepository
	authors repository.AuthorRepository
	books   repository.BookRepository
	log     *slog.Logger
}

// New creates a Seeder.
func New(users repository.UserRepository, authors repository.AuthorRepository, books repository.BookRepository, log *slog.Logger) *Seeder {
	return &Seeder{users: users, authors: authors, books: books, log: log}
}

// EnsureAdmin creates the admin account, or promotes an existing user with
// that username to admin. The password of an existing user is left alone.
func (s *Seeder) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	existing, err := s.users.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("look up admin %s: %w", username, err)
	}
	if existing != nil {
		if existing.UserType == model.UserTypeAdmin {
			return false, nil
		}
		existing.UserType = model.UserTypeAdmin
		if err := s.users.Update(ctx, existing); err != nil {
			return false, fmt.Errorf("promote admin %s: %w", username, err)
		}
		return false, nil
	}

	if password == "" {
		return false, errors.New("admin password is required to create the admin account")
	}
	if problems := service.ValidatePassword(password); len(problems) > 0 {
		return false, fmt.Errorf("admin password rejected: %s", strings.Join(problems, "; "))
	}
	hash, err := service.HashPassword(password)
	if err != nil {
		return false, err
	}
	admin := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		UserType:     model.UserTypeAdmin,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return false, fmt.Errorf("create admin %s: %w", username, err)
	}
	return true, nil
}

// Import upserts the catalog. Invalid records are logged and skipped.
func (s *Seeder) Import(ctx context.Context, cat *Catalog) (Result, error) {
	var res Result
	byName := make(map[string]model.Author)

	for _, rec := range cat.Authors {
		author, created, err := s.upsertAuthor(ctx, rec)
		if err != nil {
			var skip *skipError
			if errors.As(err, &skip) {
				s.log.Warn("skipping author", "name", rec.Name, sl.Err(err))
				res.Skipped++
				continue
			}
			return res, err
		}
		if created {
			res.AuthorsCreated++
		} else {
			res.AuthorsUpdated++
		}
		byName[author.Name] = *author
	}

	for _, rec := range cat.Books {
		created, err := s.upsertBook(ctx, rec, byName)
		if err != nil {
			var skip *skipError
			if errors.As(err, &skip) {
				s.log.Warn("skipping book", "isbn", rec.ISBN, sl.Err(err))
				res.Skipped++
				continue
			}
			return res, err
		}
		if created {
			res.BooksCreated++
		} else {
			res.BooksUpdated++
		}
	}
	return res, nil
}

// skipError marks a record that is invalid on its own and does not abort the import.
type skipError struct{ reason string }

func (e *skipError) Error() string { return e.reason }

func skipf(format string, args ...any) error {
	return &skipError{reason: fmt.Sprintf(format, args...)}
}

func (s *Seeder) upsertAuthor(ctx context.Context, rec AuthorRecord) (*model.Author, bool, error) {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return nil, false, skipf("author name is empty")
	}
	birth, err := optionalDate(rec.BirthDate)
	if err != nil {
		return nil, false, skipf("invalid birth_date %q", rec.BirthDate)
	}
	death, err := optionalDate(rec.DeathDate)
	if err != nil {
		return nil, false, skipf("invalid death_date %q", rec.DeathDate)
	}

	existing, err := s.authors.FindByName(ctx, name)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("error checking author %s: %w", name, err)
	}
	if existing != nil {
		existing.Bio = rec.Bio
		existing.BirthDate = birth
		existing.DeathDate = death
		if err := s.authors.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("error updating author %s: %w", name, err)
		}
		return existing, false, nil
	}

	author := &model.Author{Name: name, Bio: rec.Bio, BirthDate: birth, DeathDate: death}
	if err := s.authors.Create(ctx, author); err != nil {
		return nil, false, fmt.Errorf("error creating author %s: %w", name, err)
	}
	return author, true, nil
}

func (s *Seeder) upsertBook(ctx context.Context, rec BookRecord, byName map[string]model.Author) (bool, error) {
	isbn := strings.TrimSpace(rec.ISBN)
	switch {
	case isbn == "" || len(isbn) > 13:
		return false, skipf("isbn must be 1 to 13 characters")
	case strings.TrimSpace(rec.Title) == "":
		return false, skipf("title is empty")
	case !model.Genre(rec.Genre).Valid():
		return false, skipf("unknown genre %q", rec.Genre)
	case len(rec.Authors) == 0:
		return false, skipf("book has no authors")
	case rec.TotalCopies < 0:
		return false, skipf("total_copies is negative")
	}
	published, err := optionalDate(rec.PublicationDate)
	if err != nil {
		return false, skipf("invalid publication_date %q", rec.PublicationDate)
	}

	authors := make([]model.Author, 0, len(rec.Authors))
	for _, name := range rec.Authors {
		author, ok := byName[name]
		if !ok {
			found, err := s.authors.FindByName(ctx, name)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, skipf("unknown author %q", name)
			}
			if err != nil {
				return false, fmt.Errorf("error checking author %s: %w", name, err)
			}
			author = *found
			byName[name] = author
		}
		authors = append(authors, author)
	}

	total := rec.TotalCopies
	if total == 0 {
		total = 1
	}

	existing, err := s.books.FindByISBN(ctx, isbn)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("error checking book %s: %w", isbn, err)
	}
	if existing != nil {
		active, err := s.books.CountActiveLoans(ctx, existing.ID)
		if err != nil {
			return false, fmt.Errorf("error counting loans of book %s: %w", isbn, err)
		}
		if int64(total) < active {
			return false, skipf("total_copies %d is below the %d copies on loan", total, active)
		}
		existing.Title = rec.Title
		existing.Genre = model.Genre(rec.Genre)
		existing.PublicationDate = published
		existing.Publisher = rec.Publisher
		existing.Description = rec.Description
		delta := total - existing.TotalCopies
		copies := &repository.CopyDelta{Total: delta, Available: delta}
		if err := s.books.Update(ctx, existing, authors, copies); err != nil {
			if errors.Is(err, apperrors.ErrCopyCountConflict) {
				return false, skipf("copy counts of book %s changed during import", isbn)
			}
			return false, fmt.Errorf("error updating book %s: %w", isbn, err)
		}
		return false, nil
	}

	book := &model.Book{
		Title:           rec.Title,
		ISBN:            isbn,
		Genre:           model.Genre(rec.Genre),
		PublicationDate: published,
		Publisher:       rec.Publisher,
		Description:     rec.Description,
		TotalCopies:     total,
		AvailableCopies: total,
		Authors:         authors,
	}
	if err := s.books.Create(ctx, book); err != nil {
		return false, fmt.Errorf("error creating book %s: %w", isbn, err)
	}
	return true, nil
}

func optionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := model.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return &d, nil
}
