package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// sessionTTL is how long a login token stays valid.
const sessionTTL = 12 * time.Hour

// AuthService verifies operator credentials and issues session tokens.
// Sessions are held in memory; a restart logs everyone out.
type AuthService struct {
	username     string
	passwordHash string
	logger       *slog.Logger

	mu       sync.Mutex
	sessions map[string]time.Time
	now      func() time.Time
}

// NewAuthService creates an AuthService. passwordHash is a bcrypt hash of
// the operator password.
func NewAuthService(username, passwordHash string, logger *slog.Logger) *AuthService {
	return &AuthService{
		username:     username,
		passwordHash: passwordHash,
		logger:       logger,
		sessions:     make(map[string]time.Time),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies the credentials and returns a fresh session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if username != s.username {
		return "", fmt.Errorf("auth_service: login %q: %w", username, domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "auth_service: failed login attempt",
			slog.String("username", username),
		)
		return "", fmt.Errorf("auth_service: login %q: %w", username, domain.ErrUnauthorized)
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = s.now().Add(sessionTTL)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "auth_service: session issued",
		slog.String("username", username),
	)
	return token, nil
}

// Validate reports whether the token belongs to a live session. Expired
// sessions are evicted on the way out.
func (s *AuthService) Validate(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.sessions[token]
	if !ok {
		return false
	}
	if s.now().After(expires) {
		delete(s.sessions, token)
		return false
	}
	return true
}

// Logout invalidates the token. Unknown tokens are ignored.
func (s *AuthService) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}
