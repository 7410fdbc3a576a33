package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"library/internal/cache"
	apperrors "library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
)

const bookCacheTTL = 2 * time.Minute

// BookInput carries book fields. On update nil fields are left unchanged;
// on create Title, ISBN, Genre and AuthorIDs are required.
type BookInput struct {
	Title           *string
	ISBN            *string
	Genre           *model.Genre
	AuthorIDs       []uint
	PublicationDate *time.Time
	Publisher       *string
	Description     *string
	TotalCopies     *int
	AvailableCopies *int
}

// BookService manages the catalog.
type BookService interface {
	CreateBook(ctx context.Context, in BookInput) (*model.Book, error)
	GetBook(ctx context.Context, id uint) (*model.Book, error)
	UpdateBook(ctx context.Context, id uint, in BookInput) (*model.Book, error)
	DeleteBook(ctx context.Context, id uint) error
	ListBooks(ctx context.Context, filter repository.BookFilter) ([]model.Book, int64, error)
	// InvalidateBook drops the cached copy of the book, for callers that
	// change its counters.
	InvalidateBook(ctx context.Context, id uint)
}

type bookService struct {
	books   repository.BookRepository
	authors repository.AuthorRepository
	cache   *cache.Client
}

// NewBookService creates a new book service.
func NewBookService(books repository.BookRepository, authors repository.AuthorRepository, cache *cache.Client) BookService {
	return &bookService{books: books, authors: authors, cache: cache}
}

func (s *bookService) cacheKey(id uint) string {
	return fmt.Sprintf("book:%d", id)
}

func (s *bookService) CreateBook(ctx context.Context, in BookInput) (*model.Book, error) {
	book := &model.Book{TotalCopies: 1}
	verr := &apperrors.ValidationError{}

	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		verr.Add("title", "this field is required")
	}
	if in.ISBN == nil || strings.TrimSpace(*in.ISBN) == "" {
		verr.Add("isbn", "this field is required")
	}
	if in.Genre == nil {
		verr.Add("genre", "this field is required")
	}
	if len(in.AuthorIDs) == 0 {
		verr.Add("author_ids", "this field is required")
	}
	if in.AvailableCopies == nil {
		total := book.TotalCopies
		if in.TotalCopies != nil {
			total = *in.TotalCopies
		}
		in.AvailableCopies = &total
	}

	authors, err := s.apply(ctx, book, in, verr)
	if err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	book.Authors = authors
	if err := s.books.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	return book, nil
}

func (s *bookService) GetBook(ctx context.Context, id uint) (*model.Book, error) {
	var cached model.Book
	if s.cache.GetJSON(ctx, s.cacheKey(id), &cached) {
		return &cached, nil
	}

	book, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, s.cacheKey(id), book, bookCacheTTL)
	return book, nil
}

func (s *bookService) UpdateBook(ctx context.Context, id uint, in BookInput) (*model.Book, error) {
	book, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	verr := &apperrors.ValidationError{}
	oldTotal, oldAvailable := book.TotalCopies, book.AvailableCopies
	if in.TotalCopies != nil && in.AvailableCopies == nil {
		// Keep the number of copies on loan constant.
		available := book.AvailableCopies + *in.TotalCopies - book.TotalCopies
		in.AvailableCopies = &available
	}
	if in.TotalCopies != nil {
		active, err := s.books.CountActiveLoans(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("count active loans: %w", err)
		}
		if int64(*in.TotalCopies) < active {
			verr.Add("total_copies", fmt.Sprintf("%d copies are currently on loan", active))
		}
	}

	authors, err := s.apply(ctx, book, in, verr)
	if err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	// Counters move by delta so loans committed since the read are kept.
	var copies *repository.CopyDelta
	if in.TotalCopies != nil || in.AvailableCopies != nil {
		copies = &repository.CopyDelta{
			Total:     book.TotalCopies - oldTotal,
			Available: book.AvailableCopies - oldAvailable,
		}
	}
	if err := s.books.Update(ctx, book, authors, copies); err != nil {
		if errors.Is(err, apperrors.ErrCopyCountConflict) {
			return nil, apperrors.NewValidationError("available_copies", "copies were borrowed or returned meanwhile, reload the book and retry")
		}
		return nil, fmt.Errorf("update book: %w", err)
	}
	s.InvalidateBook(ctx, id)
	return book, nil
}

func (s *bookService) DeleteBook(ctx context.Context, id uint) error {
	if err := s.books.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrBookNotFound
		}
		return fmt.Errorf("delete book: %w", err)
	}
	s.InvalidateBook(ctx, id)
	return nil
}

func (s *bookService) ListBooks(ctx context.Context, filter repository.BookFilter) ([]model.Book, int64, error) {
	if filter.Genre != "" && !filter.Genre.Valid() {
		return nil, 0, apperrors.NewValidationError("genre", fmt.Sprintf("%q is not a valid choice", filter.Genre))
	}
	books, total, err := s.books.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	return books, total, nil
}

func (s *bookService) InvalidateBook(ctx context.Context, id uint) {
	_ = s.cache.Delete(ctx, s.cacheKey(id))
}

func (s *bookService) find(ctx context.Context, id uint) (*model.Book, error) {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBookNotFound
		}
		return nil, fmt.Errorf("find book: %w", err)
	}
	return book, nil
}

// apply validates in and copies the set fields onto book. It returns the
// resolved authors when AuthorIDs is set, nil otherwise.
func (s *bookService) apply(ctx context.Context, book *model.Book, in BookInput, verr *apperrors.ValidationError) ([]model.Author, error) {
	if in.Title != nil {
		book.Title = strings.TrimSpace(*in.Title)
	}
	if in.ISBN != nil {
		isbn := strings.TrimSpace(*in.ISBN)
		switch {
		case len(isbn) > 13:
			verr.Add("isbn", "ensure this field has no more than 13 characters")
		case isbn != "" && isbn != book.ISBN:
			other, err := s.books.FindByISBN(ctx, isbn)
			if err == nil && other.ID != book.ID {
				verr.Add("isbn", "book with this isbn already exists")
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("check isbn: %w", err)
			}
		}
		book.ISBN = isbn
	}
	if in.Genre != nil {
		if !in.Genre.Valid() {
			verr.Add("genre", fmt.Sprintf("%q is not a valid choice", *in.Genre))
		}
		book.Genre = *in.Genre
	}
	if in.PublicationDate != nil {
		d := model.DateOf(*in.PublicationDate)
		book.PublicationDate = &d
	}
	if in.Publisher != nil {
		book.Publisher = *in.Publisher
	}
	if in.Description != nil {
		book.Description = *in.Description
	}
	if in.TotalCopies != nil {
		book.TotalCopies = *in.TotalCopies
	}
	if in.AvailableCopies != nil {
		book.AvailableCopies = *in.AvailableCopies
	}

	if book.TotalCopies < 0 {
		verr.Add("total_copies", "ensure this value is greater than or equal to 0")
	}
	if book.AvailableCopies < 0 {
		verr.Add("available_copies", "ensure this value is greater than or equal to 0")
	}
	if book.AvailableCopies > book.TotalCopies {
		verr.Add("available_copies", "available copies cannot exceed total copies")
	}

	if in.AuthorIDs == nil {
		return nil, nil
	}
	authors, err := s.authors.FindByIDs(ctx, in.AuthorIDs)
	if err != nil {
		return nil, fmt.Errorf("find authors: %w", err)
	}
	found := make(map[uint]bool, len(authors))
	for _, a := range authors {
		found[a.ID] = true
	}
	for _, id := range in.AuthorIDs {
		if !found[id] {
			verr.Add("author_ids", fmt.Sprintf("invalid pk %d, author does not exist", id))
		}
	}
	return authors, nil
}
