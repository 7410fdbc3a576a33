package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"library/internal/cache"
	apperrors "library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// ProfileInput holds the editable profile fields. Nil fields are left unchanged.
type ProfileInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
}

// UserService exposes domain operations.
type UserService interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUser(ctx context.Context, id uint) (*model.User, error)
	ListUsers(ctx context.Context, filter repository.UserFilter) ([]model.User, int64, error)
	UpdateProfile(ctx context.Context, id uint, in ProfileInput) (*model.User, error)
	UpdateRole(ctx context.Context, id uint, role model.UserType) (*model.User, error)
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client) UserService {
	return &userService{repo: repo, cache: cache}
}

func (s *userService) cacheKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

func (s *userService) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.ID))
	return user, nil
}

// cachedUser mirrors model.User including the password hash, which the JSON
// form of the model omits.
type cachedUser struct {
	model.User
	PasswordHash string `json:"password_hash"`
}

func (s *userService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var cached cachedUser
	if s.cache.GetJSON(ctx, s.cacheKey(id), &cached) {
		user := cached.User
		user.PasswordHash = cached.PasswordHash
		return &user, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	s.cache.SetJSON(ctx, s.cacheKey(id), cachedUser{User: *user, PasswordHash: user.PasswordHash}, userCacheTTL)
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, filter repository.UserFilter) ([]model.User, int64, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id uint, in ProfileInput) (*model.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil && *in.Email != user.Email {
		other, err := s.repo.FindByEmail(ctx, *in.Email)
		switch {
		case err == nil && other.ID != user.ID:
			return nil, apperrors.NewValidationError("email", "a user with that email already exists")
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("check email: %w", err)
		}
		user.Email = *in.Email
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.Address != nil {
		user.Address = *in.Address
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return user, nil
}

func (s *userService) UpdateRole(ctx context.Context, id uint, role model.UserType) (*model.User, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("user_type", fmt.Sprintf("%q is not a valid choice", role))
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	user.UserType = role
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user role: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return user, nil
}

// load reads the user from the database, bypassing the cache before writes.
func (s *userService) load(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
