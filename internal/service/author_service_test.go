package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "library/internal/errors"
	"library/internal/model"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestAuthorService_CreateAuthor(t *testing.T) {
	tests := []struct {
		name      string
		input     AuthorInput
		wantField string
	}{
		{name: "valid", input: AuthorInput{Name: " Ursula K. Le Guin ", BirthDate: datePtr(1929, 10, 21), DeathDate: datePtr(2018, 1, 22)}},
		{name: "blank name", input: AuthorInput{Name: "  "}, wantField: "name"},
		{name: "died before birth", input: AuthorInput{Name: "X", BirthDate: datePtr(2000, 1, 1), DeathDate: datePtr(1999, 1, 1)}, wantField: "death_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAuthorRepository)
			if tt.wantField == "" {
				repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Author")).Return(nil)
			}

			svc := NewAuthorService(repo)
			author, err := svc.CreateAuthor(context.Background(), tt.input)
			if tt.wantField != "" {
				var verr *apperrors.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.Fields, tt.wantField)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "Ursula K. Le Guin", author.Name)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestAuthorService_UpdateAndDelete(t *testing.T) {
	repo := new(MockAuthorRepository)
	repo.On("FindByID", mock.Anything, uint(1)).Return(&model.Author{ID: 1, Name: "Old"}, nil)
	repo.On("FindByID", mock.Anything, uint(2)).Return(nil, gorm.ErrRecordNotFound)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*model.Author")).Return(nil)
	repo.On("Delete", mock.Anything, uint(1)).Return(nil)
	repo.On("Delete", mock.Anything, uint(2)).Return(gorm.ErrRecordNotFound)

	svc := NewAuthorService(repo)
	ctx := context.Background()

	author, err := svc.UpdateAuthor(ctx, 1, AuthorInput{Name: "New", Bio: "bio"})
	require.NoError(t, err)
	assert.Equal(t, "New", author.Name)
	assert.Equal(t, "bio", author.Bio)

	_, err = svc.UpdateAuthor(ctx, 2, AuthorInput{Name: "New"})
	assert.ErrorIs(t, err, apperrors.ErrAuthorNotFound)

	assert.NoError(t, svc.DeleteAuthor(ctx, 1))
	assert.ErrorIs(t, svc.DeleteAuthor(ctx, 2), apperrors.ErrAuthorNotFound)
	repo.AssertExpectations(t)
}
