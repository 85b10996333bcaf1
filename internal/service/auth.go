package service

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidLogin is returned for logins that cannot name a keychain owner.
var ErrInvalidLogin = errors.New("invalid login")

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	// UserExists returns true if a user with the given login exists.
	UserExists(ctx context.Context, login string) (bool, error)
	// RegisterUser creates a new user record with the given login.
	RegisterUser(ctx context.Context, login string) error
}

// AuthService registers keychain owners and checks that they exist.
type AuthService struct {
	repo AuthRepository
}

// NewAuthService constructs a new AuthService using the provided repository.
func NewAuthService(repo AuthRepository) *AuthService {
	return &AuthService{repo: repo}
}

// UserExists checks whether a user with the specified login exists.
func (s *AuthService) UserExists(ctx context.Context, login string) (bool, error) {
	return s.repo.UserExists(ctx, login)
}

// RegisterUser registers a new keychain owner. Logins become certificate
// common names and keyring service suffixes, so blank logins and logins
// containing whitespace or path separators are rejected.
func (s *AuthService) RegisterUser(ctx context.Context, login string) error {
	if login == "" || strings.ContainsAny(login, " \t\r\n/\\") {
		return ErrInvalidLogin
	}
	return s.repo.RegisterUser(ctx, login)
}
