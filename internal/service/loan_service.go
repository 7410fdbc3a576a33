package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"library/internal/access"
	apperrors "library/internal/errors"
	"library/internal/metrics"
	"library/internal/model"
	"library/internal/repository"
)

// LoanInput carries a borrow request.
type LoanInput struct {
	BookID  uint
	DueDate time.Time
}

// LoanUpdate carries the editable loan fields. Nil fields are left unchanged.
type LoanUpdate struct {
	Status  *model.LoanStatus
	DueDate *time.Time
}

// LoanService runs the borrow and return workflow.
type LoanService interface {
	CreateLoan(ctx context.Context, actor *model.User, in LoanInput) (*model.BookLoan, error)
	GetLoan(ctx context.Context, actor *model.User, id uint) (*model.BookLoan, error)
	UpdateLoan(ctx context.Context, actor *model.User, id uint, in LoanUpdate) (*model.BookLoan, error)
	DeleteLoan(ctx context.Context, actor *model.User, id uint) error
	// ListLoans lists loans visible to actor. Readers only see their own.
	ListLoans(ctx context.Context, actor *model.User, filter repository.LoanFilter) ([]model.BookLoan, int64, error)
	CountOverdue(ctx context.Context) (int64, error)
	// Now is the clock loans are evaluated against.
	Now() time.Time
}

type loanService struct {
	loans   repository.LoanRepository
	books   BookService
	metrics *metrics.Metrics
	now     func() time.Time
}

// LoanOption configures a LoanService.
type LoanOption func(*loanService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LoanOption {
	return func(s *loanService) { s.now = now }
}

// WithMetrics counts loan events on m.
func WithMetrics(m *metrics.Metrics) LoanOption {
	return func(s *loanService) { s.metrics = m }
}

// NewLoanService creates a new loan service.
func NewLoanService(loans repository.LoanRepository, books BookService, opts ...LoanOption) LoanService {
	s := &loanService{loans: loans, books: books, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *loanService) Now() time.Time {
	return s.now()
}

const pastDueDate = "due date cannot be in the past"

func (s *loanService) dueDateInPast(due time.Time) bool {
	return model.DateOf(due).Before(model.DateOf(s.now()))
}

func (s *loanService) CreateLoan(ctx context.Context, actor *model.User, in LoanInput) (*model.BookLoan, error) {
	if actor == nil {
		return nil, apperrors.ErrUnauthenticated
	}

	verr := &apperrors.ValidationError{}
	book, err := s.books.GetBook(ctx, in.BookID)
	switch {
	case errors.Is(err, apperrors.ErrBookNotFound):
		verr.Add("book", fmt.Sprintf("invalid pk %d, book does not exist", in.BookID))
	case err != nil:
		return nil, err
	case !book.IsAvailable():
		verr.Add("book", apperrors.ErrNoAvailableCopies.Error())
		s.metrics.LoanEvent(metrics.LoanRejected)
	}
	if s.dueDateInPast(in.DueDate) {
		verr.Add("due_date", pastDueDate)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	loan := &model.BookLoan{
		BookID:       book.ID,
		UserID:       actor.ID,
		BorrowedDate: s.now().UTC(),
		DueDate:      model.DateOf(in.DueDate),
		Status:       model.LoanStatusBorrowed,
	}
	if err := s.loans.Borrow(ctx, loan); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNoAvailableCopies):
			s.metrics.LoanEvent(metrics.LoanRejected)
			s.books.InvalidateBook(ctx, book.ID)
			return nil, apperrors.NewValidationError("book", apperrors.ErrNoAvailableCopies.Error())
		case errors.Is(err, apperrors.ErrBookNotFound):
			s.books.InvalidateBook(ctx, book.ID)
			return nil, apperrors.NewValidationError("book", fmt.Sprintf("invalid pk %d, book does not exist", in.BookID))
		}
		return nil, fmt.Errorf("borrow book: %w", err)
	}
	s.books.InvalidateBook(ctx, book.ID)
	s.metrics.LoanEvent(metrics.LoanBorrowed)

	book.AvailableCopies--
	loan.Book = book
	loan.User = actor
	return loan, nil
}

func (s *loanService) GetLoan(ctx context.Context, actor *model.User, id uint) (*model.BookLoan, error) {
	if actor == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	loan, err := s.loans.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLoanNotFound
		}
		return nil, fmt.Errorf("find loan: %w", err)
	}
	if !access.CanAccessLoan(actor, loan) {
		return nil, apperrors.ErrPermissionDenied
	}
	return loan, nil
}

func (s *loanService) UpdateLoan(ctx context.Context, actor *model.User, id uint, in LoanUpdate) (*model.BookLoan, error) {
	loan, err := s.GetLoan(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	verr := &apperrors.ValidationError{}
	returning := false
	if in.Status != nil {
		switch *in.Status {
		case model.LoanStatusReturned:
			returning = !loan.IsReturned()
		case model.LoanStatusBorrowed:
			if loan.IsReturned() {
				verr.Add("status", "a returned loan cannot be borrowed again")
			}
		case model.LoanStatusOverdue:
			verr.Add("status", "overdue is derived from the due date and cannot be set")
		default:
			verr.Add("status", fmt.Sprintf("%q is not a valid choice", *in.Status))
		}
	}
	if in.DueDate != nil {
		if s.dueDateInPast(*in.DueDate) {
			verr.Add("due_date", pastDueDate)
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if in.DueDate != nil {
		if err := s.loans.UpdateDueDate(ctx, loan, model.DateOf(*in.DueDate)); err != nil {
			return nil, fmt.Errorf("update due date: %w", err)
		}
	}
	if returning {
		moved, err := s.loans.Return(ctx, loan, s.now().UTC())
		if err != nil {
			return nil, fmt.Errorf("return loan: %w", err)
		}
		if !moved {
			// Closed by a concurrent request; report the stored state.
			return s.reload(ctx, loan.ID)
		}
		s.books.InvalidateBook(ctx, loan.BookID)
		s.metrics.LoanEvent(metrics.LoanReturned)
		if loan.Book != nil {
			loan.Book.AvailableCopies++
		}
	}
	return loan, nil
}

func (s *loanService) reload(ctx context.Context, id uint) (*model.BookLoan, error) {
	loan, err := s.loans.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLoanNotFound
		}
		return nil, fmt.Errorf("find loan: %w", err)
	}
	return loan, nil
}

func (s *loanService) DeleteLoan(ctx context.Context, actor *model.User, id uint) error {
	loan, err := s.GetLoan(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.loans.Delete(ctx, loan); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrLoanNotFound
		}
		return fmt.Errorf("delete loan: %w", err)
	}
	s.books.InvalidateBook(ctx, loan.BookID)
	s.metrics.LoanEvent(metrics.LoanDeleted)
	return nil
}

func (s *loanService) ListLoans(ctx context.Context, actor *model.User, filter repository.LoanFilter) ([]model.BookLoan, int64, error) {
	if actor == nil {
		return nil, 0, apperrors.ErrUnauthenticated
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperrors.NewValidationError("status", fmt.Sprintf("%q is not a valid choice", filter.Status))
	}
	if !access.SeesAllLoans(actor) {
		filter.UserID = actor.ID
	}
	filter.Today = s.now()

	loans, total, err := s.loans.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}
	return loans, total, nil
}

func (s *loanService) CountOverdue(ctx context.Context) (int64, error) {
	return s.loans.CountOverdue(ctx, s.now())
}
