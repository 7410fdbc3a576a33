package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"library/internal/model"
)

const (
	// DefaultLimit is the page size used when none is requested.
	DefaultLimit = 50
	// MaxLimit caps the page size.
	MaxLimit = 200
)

// Page selects a window of a list result.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps limit and offset into their accepted ranges.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return q.Limit(p.Limit).Offset(p.Offset)
}

// UserFilter narrows user listings.
type UserFilter struct {
	Search string
	Page
}

// AuthorFilter narrows author listings.
type AuthorFilter struct {
	Search string
	Page
}

// BookFilter narrows book listings.
type BookFilter struct {
	Genre    model.Genre
	AuthorID uint
	Search   string
	Page
}

// LoanFilter narrows loan listings. UserID 0 means every user.
// Status overdue and borrowed are resolved against Today.
type LoanFilter struct {
	UserID uint
	BookID uint
	Status model.LoanStatus
	Search string
	Today  time.Time
	Page
}

// like is a LIKE predicate on column for patterns built by likePattern.
// SQLite has no default escape character, so it is named.
func like(column string) string {
	return column + " LIKE ? ESCAPE '!'"
}

// likePattern matches s as a literal substring.
func likePattern(s string) string {
	s = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(strings.TrimSpace(s))
	return "%" + s + "%"
}
