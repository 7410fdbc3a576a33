package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "library/internal/errors"
	"library/internal/model"
)

// CopyDelta shifts a book's copy counters relative to the stored values.
type CopyDelta struct {
	Total     int
	Available int
}

// BookRepository defines catalog persistence operations.
type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	// Update saves the scalar fields except the copy counters, which are
	// reloaded into book. A non-nil authors slice replaces the author set; a
	// non-nil copies delta is applied atomically and fails with
	// ErrCopyCountConflict when it would leave the counters out of bounds.
	Update(ctx context.Context, book *model.Book, authors []model.Author, copies *CopyDelta) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*model.Book, error)
	FindByISBN(ctx context.Context, isbn string) (*model.Book, error)
	List(ctx context.Context, filter BookFilter) ([]model.Book, int64, error)
	CountActiveLoans(ctx context.Context, bookID uint) (int64, error)
}

type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository.
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(ctx context.Context, book *model.Book) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		authors := book.Authors
		book.Authors = nil
		if err := tx.Omit(clause.Associations).Create(book).Error; err != nil {
			return err
		}
		if len(authors) > 0 {
			if err := tx.Model(book).Association("Authors").Append(authors); err != nil {
				return err
			}
		}
		book.Authors = authors
		return nil
	})
}

func (r *bookRepository) Update(ctx context.Context, book *model.Book, authors []model.Author, copies *CopyDelta) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations, "total_copies", "available_copies").Save(book).Error; err != nil {
			return err
		}
		if copies != nil && (copies.Total != 0 || copies.Available != 0) {
			if err := shiftCopies(tx, book.ID, *copies); err != nil {
				return err
			}
		}
		var counts struct {
			TotalCopies     int
			AvailableCopies int
		}
		if err := tx.Model(&model.Book{}).Select("total_copies", "available_copies").Where("id = ?", book.ID).Take(&counts).Error; err != nil {
			return err
		}
		book.TotalCopies = counts.TotalCopies
		book.AvailableCopies = counts.AvailableCopies
		if authors != nil {
			if err := tx.Model(book).Association("Authors").Replace(authors); err != nil {
				return err
			}
			book.Authors = authors
		}
		return nil
	})
}

// shiftCopies applies d only if afterwards 0 <= available <= total and the
// total still covers every open loan.
func shiftCopies(tx *gorm.DB, bookID uint, d CopyDelta) error {
	openLoans := tx.Model(&model.BookLoan{}).
		Select("COUNT(*)").
		Where("book_loans.book_id = books.id AND book_loans.status <> ?", model.LoanStatusReturned)
	res := tx.Model(&model.Book{}).
		Where("id = ?", bookID).
		Where("available_copies + ? BETWEEN 0 AND total_copies + ?", d.Available, d.Total).
		Where("total_copies + ? >= (?)", d.Total, openLoans).
		Updates(map[string]interface{}{
			"total_copies":     gorm.Expr("total_copies + ?", d.Total),
			"available_copies": gorm.Expr("available_copies + ?", d.Available),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrCopyCountConflict
	}
	return nil
}

// Delete removes the book together with its loans and author links.
func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", id).Delete(&model.BookLoan{}).Error; err != nil {
			return err
		}
		book := model.Book{ID: id}
		res := tx.Select("Authors").Delete(&book)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *bookRepository) FindByID(ctx context.Context, id uint) (*model.Book, error) {
	var book model.Book
	if err := r.db.WithContext(ctx).Preload("Authors", orderByName).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	var book model.Book
	if err := r.db.WithContext(ctx).Preload("Authors", orderByName).Where("isbn = ?", isbn).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) List(ctx context.Context, filter BookFilter) ([]model.Book, int64, error) {
	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Book{})
		if filter.Genre != "" {
			q = q.Where("books.genre = ?", filter.Genre)
		}
		if filter.AuthorID != 0 {
			q = q.Where("books.id IN (?)",
				r.db.Table("book_authors").Select("book_id").Where("author_id = ?", filter.AuthorID))
		}
		if filter.Search != "" {
			p := likePattern(filter.Search)
			byAuthor := r.db.Table("book_authors").
				Select("book_authors.book_id").
				Joins("JOIN authors ON authors.id = book_authors.author_id").
				Where(like("authors.name"), p)
			q = q.Where(like("books.title")+" OR "+like("books.isbn")+" OR books.id IN (?)", p, p, byAuthor)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var books []model.Book
	err := filter.Page.apply(query()).
		Preload("Authors", orderByName).
		Order("books.title").Order("books.id").
		Find(&books).Error
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// CountActiveLoans counts loans of the book that have not been returned.
func (r *bookRepository) CountActiveLoans(ctx context.Context, bookID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.BookLoan{}).
		Where("book_id = ? AND status <> ?", bookID, model.LoanStatusReturned).
		Count(&n).Error
	return n, err
}

func orderByName(db *gorm.DB) *gorm.DB {
	return db.Order("authors.name")
}
