package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "library/internal/errors"
	"library/internal/model"
)

var today = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Author{}, &model.Book{}, &model.BookLoan{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", PasswordHash: "x", UserType: model.UserTypeReader}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), u))
	return u
}

func seedBook(t *testing.T, db *gorm.DB, title, isbn string, copies int, authors ...model.Author) *model.Book {
	t.Helper()
	b := &model.Book{Title: title, ISBN: isbn, Genre: model.GenreFiction, TotalCopies: copies, AvailableCopies: copies, Authors: authors}
	require.NoError(t, NewBookRepository(db).Create(context.Background(), b))
	return b
}

func availableCopies(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var b model.Book
	require.NoError(t, db.First(&b, id).Error)
	return b.AvailableCopies
}

func TestPage_Normalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultLimit}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: MaxLimit, Offset: 5}, Page{Limit: 1000, Offset: 5}.Normalize())
	assert.Equal(t, Page{Limit: 10}, Page{Limit: 10, Offset: -3}.Normalize())
}

func TestUserRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	ada := seedUser(t, db, "ada")
	seedUser(t, db, "grace")

	got, err := repo.FindByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.ID)

	got, err = repo.FindByEmail(ctx, "grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, "grace", got.Username)

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	dup := &model.User{Username: "ada", Email: "other@example.com", PasswordHash: "x"}
	assert.Error(t, repo.Create(ctx, dup))

	users, total, err := repo.List(ctx, UserFilter{Search: "gra"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "grace", users[0].Username)

	ada.UserType = model.UserTypeLibrarian
	require.NoError(t, repo.Update(ctx, ada))
	got, err = repo.FindByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserTypeLibrarian, got.UserType)
}

func TestAuthorRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuthorRepository(db)
	ctx := context.Background()

	tolkien := &model.Author{Name: "J.R.R. Tolkien"}
	austen := &model.Author{Name: "Jane Austen"}
	require.NoError(t, repo.Create(ctx, tolkien))
	require.NoError(t, repo.Create(ctx, austen))
	book := seedBook(t, db, "The Hobbit", "9780261102217", 1, *tolkien)

	authors, total, err := repo.List(ctx, AuthorFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "J.R.R. Tolkien", authors[0].Name)

	found, err := repo.FindByIDs(ctx, []uint{austen.ID, 404})
	require.NoError(t, err)
	require.Len(t, found, 1)

	byName, err := repo.FindByName(ctx, "Jane Austen")
	require.NoError(t, err)
	assert.Equal(t, austen.ID, byName.ID)

	require.NoError(t, repo.Delete(ctx, tolkien.ID))
	assert.ErrorIs(t, repo.Delete(ctx, tolkien.ID), gorm.ErrRecordNotFound)

	b, err := NewBookRepository(db).FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, b.Authors)
}

func TestBookRepository_ListFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	authors := NewAuthorRepository(db)
	repo := NewBookRepository(db)

	herbert := &model.Author{Name: "Frank Herbert"}
	require.NoError(t, authors.Create(ctx, herbert))
	seedBook(t, db, "Dune", "9780441172719", 2, *herbert)
	seedBook(t, db, "Emma", "9780141439587", 1)
	history := &model.Book{Title: "SPQR", ISBN: "9781631492228", Genre: model.GenreHistory, TotalCopies: 1, AvailableCopies: 1}
	require.NoError(t, repo.Create(ctx, history))

	tests := []struct {
		name   string
		filter BookFilter
		want   []string
	}{
		{"all ordered by title", BookFilter{}, []string{"Dune", "Emma", "SPQR"}},
		{"by genre", BookFilter{Genre: model.GenreHistory}, []string{"SPQR"}},
		{"by author", BookFilter{AuthorID: herbert.ID}, []string{"Dune"}},
		{"search title", BookFilter{Search: "emm"}, []string{"Emma"}},
		{"search isbn", BookFilter{Search: "1631492"}, []string{"SPQR"}},
		{"search author name", BookFilter{Search: "herbert"}, []string{"Dune"}},
		{"paged", BookFilter{Page: Page{Limit: 1, Offset: 1}}, []string{"Emma"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, _, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			var titles []string
			for _, b := range books {
				titles = append(titles, b.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}

	_, total, err := repo.List(ctx, BookFilter{Page: Page{Limit: 1}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestBookRepository_UpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	authors := NewAuthorRepository(db)
	repo := NewBookRepository(db)

	a1 := &model.Author{Name: "Terry Pratchett"}
	a2 := &model.Author{Name: "Neil Gaiman"}
	require.NoError(t, authors.Create(ctx, a1))
	require.NoError(t, authors.Create(ctx, a2))
	book := seedBook(t, db, "Good Omens", "9780060853983", 3, *a1)

	book.Publisher = "Workman"
	require.NoError(t, repo.Update(ctx, book, []model.Author{*a1, *a2}, nil))
	got, err := repo.FindByISBN(ctx, "9780060853983")
	require.NoError(t, err)
	assert.Equal(t, "Workman", got.Publisher)
	require.Len(t, got.Authors, 2)
	assert.Equal(t, "Neil Gaiman", got.Authors[0].Name)

	require.NoError(t, repo.Update(ctx, got, nil, nil))
	got, err = repo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, got.Authors, 2)

	user := seedUser(t, db, "reader")
	loan := &model.BookLoan{BookID: book.ID, UserID: user.ID, BorrowedDate: today, DueDate: today.AddDate(0, 0, 14), Status: model.LoanStatusBorrowed}
	require.NoError(t, NewLoanRepository(db).Borrow(ctx, loan))
	n, err := repo.CountActiveLoans(ctx, book.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repo.Delete(ctx, book.ID))
	_, err = repo.FindByID(ctx, book.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = NewLoanRepository(db).FindByID(ctx, loan.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, book.ID), gorm.ErrRecordNotFound)
}

func TestBookRepository_UpdateKeepsConcurrentLoans(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewBookRepository(db)
	user := seedUser(t, db, "reader")
	book := seedBook(t, db, "Dune", "9780441172719", 2)

	stale, err := repo.FindByID(ctx, book.ID)
	require.NoError(t, err)

	loan := &model.BookLoan{BookID: book.ID, UserID: user.ID, BorrowedDate: today, DueDate: today.AddDate(0, 0, 14), Status: model.LoanStatusBorrowed}
	require.NoError(t, NewLoanRepository(db).Borrow(ctx, loan))
	require.Equal(t, 1, availableCopies(t, db, book.ID))

	stale.Description = "Desert planet"
	require.NoError(t, repo.Update(ctx, stale, nil, nil))
	assert.Equal(t, 1, availableCopies(t, db, book.ID))
	assert.Equal(t, 1, stale.AvailableCopies)
	assert.Equal(t, 2, stale.TotalCopies)

	got, err := repo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desert planet", got.Description)
}

func TestBookRepository_UpdateCopyDelta(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewBookRepository(db)
	user := seedUser(t, db, "reader")
	book := seedBook(t, db, "Dune", "9780441172719", 2)
	loan := &model.BookLoan{BookID: book.ID, UserID: user.ID, BorrowedDate: today, DueDate: today.AddDate(0, 0, 14), Status: model.LoanStatusBorrowed}
	require.NoError(t, NewLoanRepository(db).Borrow(ctx, loan))

	tests := []struct {
		name          string
		delta         CopyDelta
		wantErr       error
		wantTotal     int
		wantAvailable int
	}{
		{name: "grow total", delta: CopyDelta{Total: 3, Available: 3}, wantTotal: 5, wantAvailable: 4},
		{name: "available above total", delta: CopyDelta{Available: 2}, wantErr: apperrors.ErrCopyCountConflict, wantTotal: 5, wantAvailable: 4},
		{name: "available below zero", delta: CopyDelta{Total: -4, Available: -5}, wantErr: apperrors.ErrCopyCountConflict, wantTotal: 5, wantAvailable: 4},
		{name: "total below open loans", delta: CopyDelta{Total: -5, Available: -4}, wantErr: apperrors.ErrCopyCountConflict, wantTotal: 5, wantAvailable: 4},
		{name: "shrink to copies on loan", delta: CopyDelta{Total: -4, Available: -4}, wantTotal: 1, wantAvailable: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, err := repo.FindByID(ctx, book.ID)
			require.NoError(t, err)
			err = repo.Update(ctx, current, nil, &tt.delta)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantTotal, current.TotalCopies)
				assert.Equal(t, tt.wantAvailable, current.AvailableCopies)
			}
			assert.Equal(t, tt.wantAvailable, availableCopies(t, db, book.ID))
		})
	}
}

func TestSearchMatchesWildcardsLiterally(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewAuthorRepository(db)
	for _, name := range []string{"100% Human", "1000 Humans", "Snake_Case", "SnakeXCase", "Wow! Press", "Wow Press"} {
		require.NoError(t, repo.Create(ctx, &model.Author{Name: name}))
	}

	tests := []struct {
		search string
		want   []string
	}{
		{"100%", []string{"100% Human"}},
		{"e_C", []string{"Snake_Case"}},
		{"w!", []string{"Wow! Press"}},
		{"snake", []string{"SnakeXCase", "Snake_Case"}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			authors, _, err := repo.List(ctx, AuthorFilter{Search: tt.search})
			require.NoError(t, err)
			names := make([]string, 0, len(authors))
			for _, a := range authors {
				names = append(names, a.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestLoanRepository_BorrowAndReturn(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewLoanRepository(db)
	user := seedUser(t, db, "reader")
	book := seedBook(t, db, "Dune", "9780441172719", 1)

	first := &model.BookLoan{BookID: book.ID, UserID: user.ID, BorrowedDate: today, DueDate: today.AddDate(0, 0, 14), Status: model.LoanStatusBorrowed}
	require.NoError(t, repo.Borrow(ctx, first))
	assert.NotZero(t, first.ID)
	assert.Equal(t, 0, availableCopies(t, db, book.ID))

	second := &model.BookLoan{BookID: book.ID, UserID: user.ID, BorrowedDate: today, DueDate: today.AddDate(0, 0, 14), Status: model.LoanStatusBorrowed}
	assert.ErrorIs(t, repo.Borrow(ctx, second), apperrors.ErrNoAvailableCopies)
	assert.Zero(t, second.ID)

	missing := &model.BookLoan{BookID: 999, UserID: user.ID, BorrowedDate: today, DueDate: today, Status: model.LoanStatusBorrowed}
	assert.ErrorIs(t, repo.Borrow(ctx, missing), apperrors.ErrBookNotFound)

	returnedAt := today.Add(3 * time.Hour)
	moved, err := repo.Return(ctx, first, returnedAt)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, model.LoanStatusReturned, first.Status)
	assert.Equal(t, 1, availableCopies(t, db, book.ID))

	stale := &model.BookLoan{ID: first.ID, BookID: book.ID, Status: model.LoanStatusBorrowed}
	moved, err = repo.Return(ctx, stale, returnedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, model.LoanStatusBorrowed, stale.Status)
	assert.Nil(t, stale.ReturnedDate)
	assert.Equal(t, 1, availableCopies(t, db, book.ID))

	got, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Book)
	require.NotNil(t, got.User)
	assert.Equal(t, "Dune", got.Book.Title)
	assert.Equal(t, "reader", got.User.Username)
	require.NotNil(t, got.ReturnedDate)
}

func TestLoanRepository_Delete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewLoanRepository(db)
	user := seedUser(t, db, "reader")
	book := seedBook(t, db, "Dune", "9780441172719", 2)

	active := &model.BookLoan{BookID: book.ID, UserID: user.ID, BorrowedDate: today, DueDate: today, Status: model.LoanStatusBorrowed}
	closed := &model.BookLoan{BookID: book.ID, UserID: user.ID, BorrowedDate: today, DueDate: today, Status: model.LoanStatusBorrowed}
	require.NoError(t, repo.Borrow(ctx, active))
	require.NoError(t, repo.Borrow(ctx, closed))
	_, err := repo.Return(ctx, closed, today)
	require.NoError(t, err)
	assert.Equal(t, 1, availableCopies(t, db, book.ID))

	require.NoError(t, repo.Delete(ctx, closed))
	assert.Equal(t, 1, availableCopies(t, db, book.ID))

	require.NoError(t, repo.Delete(ctx, active))
	assert.Equal(t, 2, availableCopies(t, db, book.ID))

	assert.ErrorIs(t, repo.Delete(ctx, active), gorm.ErrRecordNotFound)
}

func TestLoanRepository_ListFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewLoanRepository(db)
	ada := seedUser(t, db, "ada")
	bob := seedUser(t, db, "bob")
	dune := seedBook(t, db, "Dune", "9780441172719", 5)
	emma := seedBook(t, db, "Emma", "9780141439587", 5)

	mk := func(b *model.Book, u *model.User, borrowed time.Time, due time.Time) *model.BookLoan {
		l := &model.BookLoan{BookID: b.ID, UserID: u.ID, BorrowedDate: borrowed, DueDate: due, Status: model.LoanStatusBorrowed}
		require.NoError(t, repo.Borrow(ctx, l))
		return l
	}
	overdue := mk(dune, ada, today.AddDate(0, 0, -20), today.AddDate(0, 0, -1))
	dueToday := mk(emma, ada, today.AddDate(0, 0, -10), today)
	returned := mk(emma, bob, today.AddDate(0, 0, -5), today.AddDate(0, 0, 9))
	_, err := repo.Return(ctx, returned, today)
	require.NoError(t, err)
	current := mk(dune, bob, today, today.AddDate(0, 0, 14))

	ids := func(loans []model.BookLoan) []uint {
		var out []uint
		for _, l := range loans {
			out = append(out, l.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter LoanFilter
		want   []uint
	}{
		{"all newest first", LoanFilter{}, []uint{current.ID, returned.ID, dueToday.ID, overdue.ID}},
		{"scoped to user", LoanFilter{UserID: ada.ID}, []uint{dueToday.ID, overdue.ID}},
		{"by book", LoanFilter{BookID: emma.ID}, []uint{returned.ID, dueToday.ID}},
		{"overdue", LoanFilter{Status: model.LoanStatusOverdue}, []uint{overdue.ID}},
		{"borrowed excludes overdue", LoanFilter{Status: model.LoanStatusBorrowed}, []uint{current.ID, dueToday.ID}},
		{"returned", LoanFilter{Status: model.LoanStatusReturned}, []uint{returned.ID}},
		{"search username", LoanFilter{Search: "bo"}, []uint{current.ID, returned.ID}},
		{"search title", LoanFilter{Search: "emm", UserID: ada.ID}, []uint{dueToday.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Today = today
			loans, total, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(loans))
			assert.EqualValues(t, len(tt.want), total)
		})
	}

	n, err := repo.CountOverdue(ctx, today)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repo.UpdateDueDate(ctx, overdue, today.AddDate(0, 0, 7)))
	n, err = repo.CountOverdue(ctx, today)
	require.NoError(t, err)
	assert.Zero(t, n)
}
