package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/repository"
)

// UserService mirrors identity-provider principals as local profiles.
type UserService struct {
	users UserStore
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// EnsureProfile creates or refreshes the caller's profile.
func (s *UserService) EnsureProfile(ctx context.Context, userID, displayName, email string) (*model.User, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	u := &model.User{ID: userID, DisplayName: displayName, Email: email}
	if err := s.users.Upsert(ctx, u); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// GetProfile returns the caller's profile.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
