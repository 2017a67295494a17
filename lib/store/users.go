package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/movierec/movierec/models"
)

var (
	// ErrLoginTaken means the login already belongs to an account.
	ErrLoginTaken = errors.New("login already taken")
	// ErrEmailTaken means the email already belongs to an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrBadCredentials covers both unknown login and wrong password.
	ErrBadCredentials = errors.New("invalid login or password")
)

// CreateUser registers a new account with a bcrypt password hash.
// Duplicate login or email surfaces as a typed error the handler maps
// to a user-facing message.
func (s *Store) CreateUser(ctx context.Context, login, displayName, email, password, avatarURL string) (*models.User, error) {
	taken, err := s.loginExists(ctx, login)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrLoginTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Login:        login,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: string(hash),
		AvatarURL:    avatarURL,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// The unique email index is the second constraint that can
		// fire; the login was checked above.
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "unique") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// UserByLogin returns the account with this login, or
// gorm.ErrRecordNotFound.
func (s *Store) UserByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("login = ?", login).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UserByID returns the account with this id, or gorm.ErrRecordNotFound.
func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate checks login and password and returns the account.
// Unknown logins and wrong passwords are indistinguishable to callers.
func (s *Store) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	user, err := s.UserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// UpdateProfile edits the mutable account fields.
func (s *Store) UpdateProfile(ctx context.Context, userID uint, displayName, email, avatarURL string) error {
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"display_name": displayName,
			"email":        email,
			"avatar_url":   avatarURL,
		}).Error
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "unique") {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (s *Store) loginExists(ctx context.Context, login string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("login = ?", login).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check login: %w", err)
	}
	return count > 0, nil
}
