package service

import (
	"context"
	"errors"
	"modelhub/internal/auth"
	"modelhub/internal/database"
	"modelhub/internal/logger"
	"modelhub/internal/models"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService struct {
	users    UserStore
	tokens   *auth.TokenManager
	validate *validator.Validate
	timeout  time.Duration
}

func NewAuthService(users UserStore, tokens *auth.TokenManager, timeout time.Duration) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		validate: newValidator(),
		timeout:  timeout,
	}
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := checkStruct(s.validate, in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.users.CreateUser(ctx, database.CreateUserParams{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, database.ErrUsernameTaken) || errors.Is(err, database.ErrEmailTaken) {
			return nil, validationError("%s", err.Error())
		}
		return nil, storeError("create user", err)
	}

	logger.FromContext(ctx).Info().Int64("user_id", user.ID).Msg("user registered")

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := checkStruct(s.validate, in); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		return nil, storeError("get user by email", err)
	}
	if user == nil || !auth.CheckPasswordHash(in.Password, user.PasswordHash) {
		return nil, newError(ErrUnauthorized, "invalid email or password")
	}

	return s.issue(user)
}

// Authenticate resolves a bearer token to the user it was issued for.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, newError(ErrUnauthorized, "authorization token required")
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, &Error{Kind: ErrUnauthorized, Message: "invalid or expired token", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, storeError("get user", err)
	}
	if user == nil {
		return nil, newError(ErrUnauthorized, "user no longer exists")
	}

	return user, nil
}
