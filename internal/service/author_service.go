package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
)

// AuthorInput carries author fields for create and update.
type AuthorInput struct {
	Name      string
	Bio       string
	BirthDate *time.Time
	DeathDate *time.Time
}

func (in AuthorInput) validate() error {
	verr := &apperrors.ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name", "this field may not be blank")
	}
	if in.BirthDate != nil && in.DeathDate != nil && in.DeathDate.Before(*in.BirthDate) {
		verr.Add("death_date", "death date cannot be before birth date")
	}
	return verr.OrNil()
}

// AuthorService manages authors.
type AuthorService interface {
	CreateAuthor(ctx context.Context, in AuthorInput) (*model.Author, error)
	GetAuthor(ctx context.Context, id uint) (*model.Author, error)
	UpdateAuthor(ctx context.Context, id uint, in AuthorInput) (*model.Author, error)
	DeleteAuthor(ctx context.Context, id uint) error
	ListAuthors(ctx context.Context, filter repository.AuthorFilter) ([]model.Author, int64, error)
}

type authorService struct {
	repo repository.AuthorRepository
}

// NewAuthorService creates a new author service.
func NewAuthorService(repo repository.AuthorRepository) AuthorService {
	return &authorService{repo: repo}
}

func (s *authorService) CreateAuthor(ctx context.Context, in AuthorInput) (*model.Author, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	author := &model.Author{
		Name:      strings.TrimSpace(in.Name),
		Bio:       in.Bio,
		BirthDate: in.BirthDate,
		DeathDate: in.DeathDate,
	}
	if err := s.repo.Create(ctx, author); err != nil {
		return nil, fmt.Errorf("create author: %w", err)
	}
	return author, nil
}

func (s *authorService) GetAuthor(ctx context.Context, id uint) (*model.Author, error) {
	author, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAuthorNotFound
		}
		return nil, fmt.Errorf("find author: %w", err)
	}
	return author, nil
}

func (s *authorService) UpdateAuthor(ctx context.Context, id uint, in AuthorInput) (*model.Author, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	author, err := s.GetAuthor(ctx, id)
	if err != nil {
		return nil, err
	}
	author.Name = strings.TrimSpace(in.Name)
	author.Bio = in.Bio
	author.BirthDate = in.BirthDate
	author.DeathDate = in.DeathDate
	if err := s.repo.Update(ctx, author); err != nil {
		return nil, fmt.Errorf("update author: %w", err)
	}
	return author, nil
}

func (s *authorService) DeleteAuthor(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrAuthorNotFound
		}
		return fmt.Errorf("delete author: %w", err)
	}
	return nil
}

func (s *authorService) ListAuthors(ctx context.Context, filter repository.AuthorFilter) ([]model.Author, int64, error) {
	authors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list authors: %w", err)
	}
	return authors, total, nil
}
