package service

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/p4solution/portfolio-backend/internal/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotConfigured means no admin credentials were provided at startup,
	// so nobody can log in.
	ErrNotConfigured = errors.New("admin login is not configured")
)

type Session struct {
	Token     string
	ExpiresAt time.Time
	Username  string
	Role      string
}

// AuthService checks the single admin credential pair from the environment.
type AuthService struct {
	tokens   *auth.Tokens
	username string
	password string
}

func NewAuthService(tokens *auth.Tokens, username, password string) *AuthService {
	return &AuthService{tokens: tokens, username: username, password: password}
}

// Login issues a session token when both username and password match.
func (s *AuthService) Login(username, password string) (*Session, error) {
	if s.username == "" || s.password == "" {
		return nil, ErrNotConfigured
	}

	// Evaluate both comparisons so timing does not reveal which one failed.
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password))
	if userOK&passOK != 1 {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(s.username, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, Username: s.username, Role: auth.RoleAdmin}, nil
}
