package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/aussiebroadwan/acctly/internal/auth/domain"
	"github.com/aussiebroadwan/acctly/internal/auth/store"
	"github.com/aussiebroadwan/acctly/pkg/cryptox"
	"github.com/aussiebroadwan/acctly/pkg/idx"
	"github.com/aussiebroadwan/acctly/pkg/slogx"
)

// MinPasswordLength is the shortest password Signup accepts.
const MinPasswordLength = 6

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	digitPattern   = regexp.MustCompile(`[0-9]`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
)

type UserService struct {
	Store     store.Store
	Passwords *cryptox.PasswordHasher
	Clock     Clock
}

// Signup creates an account. The address starts unverified and no second
// factor is enabled.
func (s *UserService) Signup(ctx context.Context, email, password string) (domain.User, error) {
	email = normaliseEmail(email)
	if email == "" {
		return domain.User{}, ErrMissingEmail
	}
	if !emailPattern.MatchString(email) {
		return domain.User{}, ErrInvalidEmail
	}
	if err := CheckPasswordPolicy(password); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Passwords.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.Clock.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch err := s.Store.Users().CreateUser(ctx, user); {
	case errors.Is(err, store.ErrAlreadyExists):
		return domain.User{}, ErrEmailTaken
	case err != nil:
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user signed up", "user_id", user.ID)
	return user, nil
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// CheckPasswordPolicy requires MinPasswordLength characters including a
// digit and a special character.
func CheckPasswordPolicy(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength ||
		strings.TrimSpace(password) == "" ||
		!digitPattern.MatchString(password) ||
		!specialPattern.MatchString(password) {
		return ErrWeakPassword
	}
	return nil
}
