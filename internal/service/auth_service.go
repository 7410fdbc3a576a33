package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"library/internal/auth"
	apperrors "library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
)

const (
	bcryptCost        = 10
	minPasswordLength = 8
)

var (
	// ErrInvalidCredentials is returned when username or password is incorrect.
	ErrInvalidCredentials = apperrors.NewValidationError("", "invalid credentials")
	// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
	ErrInvalidRefreshToken = fmt.Errorf("invalid or expired refresh token: %w", apperrors.ErrUnauthenticated)
)

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Password2 string
	FirstName string
	LastName  string
	Phone     string
	Address   string
	UserType  model.UserType
}

// AuthResult is a user with a fresh token pair.
type AuthResult struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, username, password string) (*AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error)
	// Logout revokes refreshToken and blacklists the access token described by
	// access until it expires. access may be nil.
	Logout(ctx context.Context, refreshToken string, access *auth.Claims) error
}

type authService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
	now        func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtService: jwtService,
		tokenStore: tokenStore,
		now:        time.Now,
	}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// ValidatePassword returns the strength problems found in password.
func ValidatePassword(password string) []string {
	var problems []string
	if len(password) < minPasswordLength {
		problems = append(problems, fmt.Sprintf("this password is too short, it must contain at least %d characters", minPasswordLength))
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		problems = append(problems, "this password is entirely numeric")
	}
	return problems
}

// Register creates a reader account with a hashed password and logs it in.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	verr := &apperrors.ValidationError{}

	if in.Password != in.Password2 {
		verr.Add("password", "password fields didn't match")
	}
	for _, p := range ValidatePassword(in.Password) {
		verr.Add("password", p)
	}
	if in.UserType != "" && in.UserType != model.UserTypeReader {
		verr.Add("user_type", "self-registration is limited to readers")
	}

	if err := s.checkUnique(ctx, in, verr); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Address:      in.Address,
		PasswordHash: hashed,
		UserType:     model.UserTypeReader,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// A concurrent registration can take the username or email after
		// the check above; the unique index reports it here.
		dup := &apperrors.ValidationError{}
		if cerr := s.checkUnique(ctx, in, dup); cerr == nil && dup.HasErrors() {
			return nil, dup
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issue(ctx, user)
}

// checkUnique adds field errors for a username or email already taken.
func (s *authService) checkUnique(ctx context.Context, in RegisterInput, verr *apperrors.ValidationError) error {
	if _, err := s.userRepo.FindByUsername(ctx, in.Username); err == nil {
		verr.Add("username", "a user with that username already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check username: %w", err)
	}
	if _, err := s.userRepo.FindByEmail(ctx, in.Email); err == nil {
		verr.Add("email", "a user with that email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	return nil
}

// Login authenticates a user and returns access and refresh tokens.
func (s *authService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

func (s *authService) issue(ctx context.Context, user *model.User) (*AuthResult, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID, user.Username, s.jwtService.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &AuthResult{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RefreshToken validates a refresh token and returns a new access token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	storedUserID, storedUsername, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	if storedUserID != claims.UserID || storedUsername != claims.Username {
		return "", ErrInvalidRefreshToken
	}

	accessToken, err := s.jwtService.GenerateAccessToken(claims.UserID, claims.Username)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout invalidates the refresh token and the presented access token.
func (s *authService) Logout(ctx context.Context, refreshToken string, access *auth.Claims) error {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}

	if err := s.tokenStore.DeleteRefreshToken(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	if access != nil && access.ID != "" && access.ExpiresAt != nil {
		ttl := access.ExpiresAt.Sub(s.now())
		if err := s.tokenStore.BlacklistAccessToken(ctx, access.ID, ttl); err != nil {
			return fmt.Errorf("blacklist access token: %w", err)
		}
	}
	return nil
}
