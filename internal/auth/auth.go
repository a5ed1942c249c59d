// Package auth logs users in with their LeetCode cookies and resolves the
// current user from a session token.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/example/codecycle/internal/database"
	"github.com/example/codecycle/internal/leetcode"
	"github.com/example/codecycle/internal/logger"
	"github.com/example/codecycle/internal/review"
	"github.com/example/codecycle/pkg/models"
)

// ErrMissingFields is returned when a login request lacks a field
var ErrMissingFields = errors.New("missing required fields")

// UserStore persists users and their sealed credentials
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpsertByUsername(ctx context.Context, username, sessionCookie, csrfToken string) (*models.User, error)
}

// Validator checks LeetCode cookies against a username
type Validator interface {
	ValidateCredentials(ctx context.Context, username string, creds leetcode.Credentials) error
}

// Session is the result of a successful login
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// Service authenticates users
type Service struct {
	users     UserStore
	validator Validator
	sealer    *Sealer
	sessions  *Sessions
	log       *logger.Logger
}

// NewService creates an auth service. sealer may be nil, in which case
// logins and credential access fail.
func NewService(users UserStore, validator Validator, sealer *Sealer, sessions *Sessions, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		users:     users,
		validator: validator,
		sealer:    sealer,
		sessions:  sessions,
		log:       log.Component("auth"),
	}
}

// Sessions returns the token issuer
func (s *Service) Sessions() *Sessions {
	return s.sessions
}

// Login validates the cookies with LeetCode, stores them sealed and issues a session
func (s *Service) Login(ctx context.Context, username, sessionCookie, csrfToken string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || sessionCookie == "" || csrfToken == "" {
		return nil, ErrMissingFields
	}
	if s.sealer == nil {
		return nil, errors.New("credential encryption key is not configured")
	}

	creds := leetcode.Credentials{SessionCookie: sessionCookie, CSRFToken: csrfToken}
	if err := s.validator.ValidateCredentials(ctx, username, creds); err != nil {
		return nil, errors.Wrap(review.ErrNotAuthenticated, "invalid LeetCode credentials")
	}

	sealedSession, err := s.sealer.Seal(sessionCookie)
	if err != nil {
		return nil, err
	}
	sealedCSRF, err := s.sealer.Seal(csrfToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpsertByUsername(ctx, strings.ToLower(username), sealedSession, sealedCSRF)
	if err != nil {
		return nil, errors.Wrapf(review.ErrRepositoryUnavailable, "save user: %v", err)
	}

	token, expires, err := s.sessions.Issue(user.ID, user.LeetUsername)
	if err != nil {
		return nil, err
	}
	s.log.Info("user logged in", "user", user.LeetUsername)
	return &Session{User: user, Token: token, ExpiresAt: expires}, nil
}

// ResolveCurrentUser returns the user a session token belongs to.
// A missing, invalid or expired token and an unknown user all give ErrNotAuthenticated.
func (s *Service) ResolveCurrentUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, review.ErrNotAuthenticated
	}
	userID, err := s.sessions.Parse(token)
	if err != nil {
		s.log.Debug("rejected session token", "error", err)
		return nil, review.ErrNotAuthenticated
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, review.ErrNotAuthenticated
	}
	if err != nil {
		return nil, errors.Wrapf(review.ErrRepositoryUnavailable, "load user: %v", err)
	}
	return user, nil
}

// Credentials unseals the user's stored LeetCode cookies
func (s *Service) Credentials(user *models.User) (leetcode.Credentials, error) {
	if user == nil || !user.HasCredentials() {
		return leetcode.Credentials{}, errors.Wrap(review.ErrNotAuthenticated, "no stored LeetCode credentials")
	}
	if s.sealer == nil {
		return leetcode.Credentials{}, errors.New("credential encryption key is not configured")
	}
	session, err := s.sealer.Open(user.SessionCookie)
	if err != nil {
		return leetcode.Credentials{}, errors.Wrap(err, "open session cookie")
	}
	csrf, err := s.sealer.Open(user.CSRFToken)
	if err != nil {
		return leetcode.Credentials{}, errors.Wrap(err, "open csrf token")
	}
	return leetcode.Credentials{SessionCookie: session, CSRFToken: csrf}, nil
}
