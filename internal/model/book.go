package model

import "time"

// Genre classifies a book.
type Genre string

const (
	GenreFiction    Genre = "fiction"
	GenreNonFiction Genre = "non-fiction"
	GenreScience    Genre = "science"
	GenreTechnology Genre = "technology"
	GenreHistory    Genre = "history"
	GenreBiography  Genre = "biography"
	GenreFantasy    Genre = "fantasy"
	GenreMystery    Genre = "mystery"
	GenreRomance    Genre = "romance"
	GenreOther      Genre = "other"
)

// Genres lists every accepted genre in display order.
var Genres = []Genre{
	GenreFiction, GenreNonFiction, GenreScience, GenreTechnology, GenreHistory,
	GenreBiography, GenreFantasy, GenreMystery, GenreRomance, GenreOther,
}

// Valid reports whether g is a known genre.
func (g Genre) Valid() bool {
	for _, known := range Genres {
		if g == known {
			return true
		}
	}
	return false
}

// Book is a catalog entry with a physical copy count.
// AvailableCopies is kept between 0 and TotalCopies by the loan workflow.
type Book struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Title           string     `json:"title" gorm:"size:200;not null;index"`
	ISBN            string     `json:"isbn" gorm:"uniqueIndex;size:13;not null"`
	Genre           Genre      `json:"genre" gorm:"type:varchar(20);not null;index"`
	PublicationDate *time.Time `json:"publication_date" gorm:"type:date"`
	Publisher       string     `json:"publisher" gorm:"size:100"`
	Description     string     `json:"description" gorm:"type:text"`
	TotalCopies     int        `json:"total_copies" gorm:"not null"`
	AvailableCopies int        `json:"available_copies" gorm:"not null"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Authors []Author   `json:"authors" gorm:"many2many:book_authors;"`
	Loans   []BookLoan `json:"-" gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
}

// IsAvailable reports whether at least one copy can be lent.
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}
