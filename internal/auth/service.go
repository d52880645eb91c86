// Package auth handles account registration and password login.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/musicbox/service/internal/user"
)

const bcryptCost = 12

// ErrInvalidCredentials is returned when the email or password is wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenIssuer signs bearer tokens for a user.
type TokenIssuer interface {
	Issue(userID, username string) (string, error)
}

// Result is returned after a successful registration or login.
type Result struct {
	Token string
	User  *user.User
}

// Service contains the business logic for password authentication.
type Service struct {
	users  *user.Service
	issuer TokenIssuer
}

// NewService creates a new auth Service.
func NewService(users *user.Service, issuer TokenIssuer) *Service {
	return &Service{users: users, issuer: issuer}
}

// Register creates an account and issues a token for it.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Result, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, username, email, string(hash))
	if err != nil {
		return nil, err
	}
	return s.result(u)
}

// Login verifies the email and password pair and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if s.users.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.result(u)
}

func (s *Service) result(u *user.User) (*Result, error) {
	token, err := s.issuer.Issue(u.ID, u.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Result{Token: token, User: u}, nil
}
