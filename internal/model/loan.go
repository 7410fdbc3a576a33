package model

import "time"

// LoanStatus represents the status of a book loan.
type LoanStatus string

const (
	LoanStatusBorrowed LoanStatus = "borrowed"
	LoanStatusReturned LoanStatus = "returned"
	// LoanStatusOverdue is derived from the due date and never stored.
	LoanStatusOverdue LoanStatus = "overdue"
)

// Valid reports whether s is a known status.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusBorrowed, LoanStatusReturned, LoanStatusOverdue:
		return true
	}
	return false
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string as a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// BookLoan records one copy of a book lent to a user.
type BookLoan struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	BookID       uint       `json:"book" gorm:"not null;index"`
	UserID       uint       `json:"user" gorm:"not null;index"`
	BorrowedDate time.Time  `json:"borrowed_date" gorm:"not null;index"`
	DueDate      time.Time  `json:"due_date" gorm:"type:date;not null;index"`
	ReturnedDate *time.Time `json:"returned_date"`
	Status       LoanStatus `json:"status" gorm:"type:varchar(10);not null;default:'borrowed';index"`

	Book *Book `json:"-" gorm:"foreignKey:BookID"`
	User *User `json:"-" gorm:"foreignKey:UserID"`
}

// TableName keeps the table name aligned with the migrations.
func (BookLoan) TableName() string {
	return "book_loans"
}

// IsReturned reports whether the loan has been closed.
func (l *BookLoan) IsReturned() bool {
	return l.Status == LoanStatusReturned
}

// IsOverdue reports whether the loan is still out after its due date.
func (l *BookLoan) IsOverdue(now time.Time) bool {
	if l.IsReturned() {
		return false
	}
	return DateOf(now).After(DateOf(l.DueDate))
}

// EffectiveStatus is the status shown to clients: overdue replaces borrowed
// once the due date has passed.
func (l *BookLoan) EffectiveStatus(now time.Time) LoanStatus {
	if l.IsOverdue(now) {
		return LoanStatusOverdue
	}
	if l.IsReturned() {
		return LoanStatusReturned
	}
	return LoanStatusBorrowed
}
