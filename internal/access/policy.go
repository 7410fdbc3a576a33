// Package access holds the role predicates that gate every endpoint.
package access

import "library/internal/model"

// Rule names a request-level permission check.
type Rule int

const (
	// Authenticated admits any logged-in user.
	Authenticated Rule = iota
	// LibrarianOrAdmin admits librarians and admins.
	LibrarianOrAdmin
	// AdminOnly admits admins.
	AdminOnly
	// ReaderOnly admits readers.
	ReaderOnly
)

func (r Rule) String() string {
	switch r {
	case Authenticated:
		return "authenticated"
	case LibrarianOrAdmin:
		return "librarian_or_admin"
	case AdminOnly:
		return "admin_only"
	case ReaderOnly:
		return "reader_only"
	}
	return "unknown"
}

// Allows evaluates rule for user. A nil user is anonymous and never allowed.
func Allows(rule Rule, user *model.User) bool {
	if user == nil {
		return false
	}
	switch rule {
	case Authenticated:
		return true
	case LibrarianOrAdmin:
		return user.UserType.IsStaff()
	case AdminOnly:
		return user.UserType == model.UserTypeAdmin
	case ReaderOnly:
		return user.UserType == model.UserTypeReader
	}
	return false
}

// CanAccessLoan is the object-level owner-or-librarian check.
func CanAccessLoan(user *model.User, loan *model.BookLoan) bool {
	if user == nil || loan == nil {
		return false
	}
	if user.UserType.IsStaff() {
		return true
	}
	return loan.UserID == user.ID
}

// SeesAllLoans reports whether loan listings for user are unscoped.
func SeesAllLoans(user *model.User) bool {
	return Allows(LibrarianOrAdmin, user)
}
