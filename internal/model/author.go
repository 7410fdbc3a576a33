package model

import "time"

// Author writes one or more books.
type Author struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Name      string     `json:"name" gorm:"size:100;not null;index"`
	Bio       string     `json:"bio" gorm:"type:text"`
	BirthDate *time.Time `json:"birth_date" gorm:"type:date"`
	DeathDate *time.Time `json:"death_date" gorm:"type:date"`

	Books []Book `json:"-" gorm:"many2many:book_authors;"`
}
