package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "library/internal/errors"
	"library/internal/model"
)

// LoanRepository defines loan persistence. Every operation that moves a copy
// runs in one transaction with the copy counter update.
type LoanRepository interface {
	// Borrow takes one available copy of loan.BookID and inserts loan.
	Borrow(ctx context.Context, loan *model.BookLoan) error
	// Return closes loan and puts its copy back. It reports false, changing
	// nothing, when the loan was already closed.
	Return(ctx context.Context, loan *model.BookLoan, returnedAt time.Time) (bool, error)
	UpdateDueDate(ctx context.Context, loan *model.BookLoan, due time.Time) error
	// Delete removes loan, putting its copy back when it was still out.
	Delete(ctx context.Context, loan *model.BookLoan) error
	FindByID(ctx context.Context, id uint) (*model.BookLoan, error)
	List(ctx context.Context, filter LoanFilter) ([]model.BookLoan, int64, error)
	CountOverdue(ctx context.Context, today time.Time) (int64, error)
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository.
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Borrow(ctx context.Context, loan *model.BookLoan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Book{}).
			Where("id = ? AND available_copies > 0", loan.BookID).
			Update("available_copies", gorm.Expr("available_copies - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&model.Book{}).Where("id = ?", loan.BookID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperrors.ErrBookNotFound
			}
			return apperrors.ErrNoAvailableCopies
		}
		return tx.Omit("Book", "User").Create(loan).Error
	})
}

func (r *loanRepository) Return(ctx context.Context, loan *model.BookLoan, returnedAt time.Time) (bool, error) {
	moved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.BookLoan{}).
			Where("id = ? AND status <> ?", loan.ID, model.LoanStatusReturned).
			Updates(map[string]interface{}{
				"status":        model.LoanStatusReturned,
				"returned_date": returnedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := incrementCopies(tx, loan.BookID); err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil || !moved {
		return false, err
	}
	loan.Status = model.LoanStatusReturned
	loan.ReturnedDate = &returnedAt
	return true, nil
}

func (r *loanRepository) UpdateDueDate(ctx context.Context, loan *model.BookLoan, due time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.BookLoan{}).Where("id = ?", loan.ID).Update("due_date", due).Error; err != nil {
		return err
	}
	loan.DueDate = due
	return nil
}

func (r *loanRepository) Delete(ctx context.Context, loan *model.BookLoan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.BookLoan
		if err := tx.First(&current, loan.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.BookLoan{}, loan.ID).Error; err != nil {
			return err
		}
		if current.IsReturned() {
			return nil
		}
		return incrementCopies(tx, current.BookID)
	})
}

func (r *loanRepository) FindByID(ctx context.Context, id uint) (*model.BookLoan, error) {
	var loan model.BookLoan
	if err := r.db.WithContext(ctx).Preload("Book").Preload("User").First(&loan, id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) List(ctx context.Context, filter LoanFilter) ([]model.BookLoan, int64, error) {
	today := model.DateOf(filter.Today)
	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.BookLoan{})
		if filter.UserID != 0 {
			q = q.Where("book_loans.user_id = ?", filter.UserID)
		}
		if filter.BookID != 0 {
			q = q.Where("book_loans.book_id = ?", filter.BookID)
		}
		switch filter.Status {
		case model.LoanStatusReturned:
			q = q.Where("book_loans.status = ?", model.LoanStatusReturned)
		case model.LoanStatusBorrowed:
			q = q.Where("book_loans.status <> ? AND book_loans.due_date >= ?", model.LoanStatusReturned, today)
		case model.LoanStatusOverdue:
			q = q.Where("book_loans.status <> ? AND book_loans.due_date < ?", model.LoanStatusReturned, today)
		}
		if filter.Search != "" {
			p := likePattern(filter.Search)
			q = q.Joins("JOIN books ON books.id = book_loans.book_id").
				Joins("JOIN users ON users.id = book_loans.user_id").
				Where(like("books.title")+" OR "+like("users.username"), p, p)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var loans []model.BookLoan
	err := filter.Page.apply(query()).
		Preload("Book").Preload("User").
		Order("book_loans.borrowed_date DESC").Order("book_loans.id DESC").
		Find(&loans).Error
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

// CountOverdue counts open loans whose due date is before today.
func (r *loanRepository) CountOverdue(ctx context.Context, today time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.BookLoan{}).
		Where("status <> ? AND due_date < ?", model.LoanStatusReturned, model.DateOf(today)).
		Count(&n).Error
	return n, err
}

func incrementCopies(tx *gorm.DB, bookID uint) error {
	res := tx.Model(&model.Book{}).
		Where("id = ?", bookID).
		Update("available_copies", gorm.Expr("available_copies + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Join(apperrors.ErrBookNotFound, gorm.ErrRecordNotFound)
	}
	return nil
}
