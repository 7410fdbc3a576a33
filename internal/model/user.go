package model

import "time"

// UserType is the role a user acts under.
type UserType string

const (
	UserTypeReader    UserType = "reader"
	UserTypeLibrarian UserType = "librarian"
	UserTypeAdmin     UserType = "admin"
)

// Valid reports whether t is one of the known roles.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeReader, UserTypeLibrarian, UserTypeAdmin:
		return true
	}
	return false
}

// IsStaff reports whether t is a librarian or an admin.
func (t UserType) IsStaff() bool {
	return t == UserTypeLibrarian || t == UserTypeAdmin
}

// User represents an authenticated user in the system.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:150;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:254;not null"`
	FirstName    string    `json:"first_name" gorm:"size:150"`
	LastName     string    `json:"last_name" gorm:"size:150"`
	Phone        string    `json:"phone" gorm:"size:15"`
	Address      string    `json:"address" gorm:"type:text"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	UserType     UserType  `json:"user_type" gorm:"type:varchar(10);not null;default:'reader';index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Loans []BookLoan `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// FullName is first and last name joined, or the username when both are empty.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}
