package service

import (
	"context"
	"errors"
	"modelhub/internal/database"
	"modelhub/internal/logger"
	"modelhub/internal/models"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type UpdateProfileInput struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Bio      *string `json:"bio" validate:"omitempty,max=500"`
	Avatar   *string `json:"avatar" validate:"omitempty,max=2048"`
}

type MessageResult struct {
	Message string `json:"message"`
}

type UserService struct {
	users    UserStore
	events   EventStore
	validate *validator.Validate
	timeout  time.Duration
}

func NewUserService(users UserStore, events EventStore, timeout time.Duration) *UserService {
	return &UserService{
		users:    users,
		events:   events,
		validate: newValidator(),
		timeout:  timeout,
	}
}

func (s *UserService) Profile(ctx context.Context, rawID string) (*models.UserProfile, error) {
	id, ok := parseID(rawID)
	if !ok {
		return nil, notFound("user")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	profile, err := s.users.GetUserProfile(ctx, id)
	if err != nil {
		return nil, storeError("get profile", err)
	}
	if profile == nil {
		return nil, notFound("user")
	}
	return profile, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, caller *models.User, rawID string, in UpdateProfileInput) (*models.User, error) {
	id, ok := parseID(rawID)
	if !ok || id != caller.ID {
		return nil, newError(ErrForbidden, "not authorized to update this profile")
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, validationError("username is required")
		}
		in.Username = &username
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		in.Bio = &bio
	}
	if err := checkStruct(s.validate, in); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.users.UpdateUser(ctx, id, database.UpdateUserParams{
		Username: in.Username,
		Bio:      in.Bio,
		Avatar:   in.Avatar,
	})
	if err != nil {
		if errors.Is(err, database.ErrUsernameTaken) {
			return nil, validationError("username is already taken")
		}
		return nil, storeError("update user", err)
	}
	if user == nil {
		return nil, notFound("user")
	}

	return user, nil
}

func (s *UserService) target(ctx context.Context, rawID string) (*models.User, error) {
	id, ok := parseID(rawID)
	if !ok {
		return nil, notFound("user")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeError("get user", err)
	}
	if user == nil {
		return nil, notFound("user")
	}
	return user, nil
}

func (s *UserService) Follow(ctx context.Context, caller *models.User, rawID string) (*MessageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target, err := s.target(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if target.ID == caller.ID {
		return nil, validationError("cannot follow yourself")
	}

	if err := s.users.Follow(ctx, caller.ID, target.ID); err != nil {
		switch {
		case errors.Is(err, database.ErrAlreadyFollowing):
			return nil, newError(ErrConflict, "already following this user")
		case errors.Is(err, database.ErrSelfFollow):
			return nil, validationError("cannot follow yourself")
		case errors.Is(err, database.ErrUserNotFound):
			return nil, notFound("user")
		}
		return nil, storeError("follow user", err)
	}

	payload := map[string]interface{}{
		"followerId":       caller.ID,
		"followerUsername": caller.Username,
	}
	if _, err := s.events.LogEvent(ctx, target.ID, models.EventUserFollowed, payload); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Int64("target_id", target.ID).Msg("failed to log follow event")
	}

	return &MessageResult{Message: "User followed"}, nil
}

// Unfollow removes the relationship. Unfollowing someone not followed is not
// an error.
func (s *UserService) Unfollow(ctx context.Context, caller *models.User, rawID string) (*MessageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target, err := s.target(ctx, rawID)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.Unfollow(ctx, caller.ID, target.ID); err != nil {
		return nil, storeError("unfollow user", err)
	}

	return &MessageResult{Message: "User unfollowed"}, nil
}
