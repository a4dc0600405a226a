// Package auth resolves the tenant behind each request. Passwords are
// bcrypt hashes; sessions are opaque random tokens stored in the database.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/storage"
)

const minPasswordLength = 4

var errInvalidCredentials = core.NewUnauthorizedError("invalid credentials")

type Service struct {
	repo *storage.Repository
	ttl  time.Duration
	now  func() time.Time
	cost int
}

func NewService(repo *storage.Repository, sessionTTL time.Duration) *Service {
	return &Service{
		repo: repo,
		ttl:  sessionTTL,
		now:  time.Now,
		cost: bcrypt.DefaultCost,
	}
}

// Login checks the credentials and opens a new session.
func (s *Service) Login(ctx context.Context, username, password string) (core.Session, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if core.IsNotFoundError(err) {
		return core.Session{}, errInvalidCredentials
	}
	if err != nil {
		return core.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return core.Session{}, errInvalidCredentials
	}

	sess := core.Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		Username:  u.Username,
		ExpiresAt: s.now().Add(s.ttl).UTC().Truncate(time.Second),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return core.Session{}, err
	}
	slog.InfoContext(ctx, "User logged in", log.FieldComponent, log.ComponentAuth, log.FieldOperation, log.OpLogin, log.FieldUserID, u.ID)
	return sess, nil
}

// Logout drops the session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.DeleteSession(ctx, token)
}

// Resolve returns the live session for token or UnauthorizedError.
func (s *Service) Resolve(ctx context.Context, token string) (core.Session, error) {
	if token == "" {
		return core.Session{}, core.NewUnauthorizedError("not authenticated")
	}
	return s.repo.GetSession(ctx, token, s.now())
}

// CreateUser registers a user with the default categories.
func (s *Service) CreateUser(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return core.User{}, core.NewValidationError("username", core.ErrEmptyName)
	}
	hash, err := s.hash(password)
	if err != nil {
		return core.User{}, err
	}
	return s.repo.CreateUser(ctx, username, hash, core.DefaultCategories)
}

// EnsureUser creates the user or, when it already exists, resets its
// password.
func (s *Service) EnsureUser(ctx context.Context, username, password string) (core.User, error) {
	u, err := s.CreateUser(ctx, username, password)
	if !core.IsConflictError(err) {
		return u, err
	}
	existing, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return core.User{}, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return core.User{}, err
	}
	if err := s.repo.UpdatePassword(ctx, existing.ID, hash); err != nil {
		return core.User{}, err
	}
	existing.PasswordHash = hash
	return existing, nil
}

// PurgeExpired removes sessions past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpiredSessions(ctx, s.now())
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", &core.ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", core.NewValidationError("password", err)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
