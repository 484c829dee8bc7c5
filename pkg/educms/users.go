package educms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User operations

func (s *service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	username := strings.TrimSpace(req.Username)
	phone := strings.TrimSpace(req.Phone)
	if username == "" {
		return nil, missing("username")
	}
	if phone == "" {
		return nil, missing("phone")
	}
	if req.Password == "" {
		return nil, missing("password")
	}
	role := req.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, invalid("role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &User{
		ID:               uuid.New(),
		Username:         username,
		Phone:            phone,
		PasswordHash:     string(hash),
		Role:             role,
		FavoriteArticles: []uuid.UUID{},
		FavoriteVideos:   []uuid.UUID{},
		FavoritePodcasts: []uuid.UUID{},
		FavoriteCourses:  []uuid.UUID{},
		JoinedCourses:    []uuid.UUID{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repository.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Created user", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.repository.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	courses, err := s.repository.ListUserCourses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses of user %s: %w", id, err)
	}
	user.JoinedCourses = orEmpty(courses)
	return user, nil
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repository.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.GetUser(ctx, user.ID)
}
