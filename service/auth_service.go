package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"go.uber.org/zap"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 60 * time.Minute
)

// Config tunes token lifetimes and refresh behaviour
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RefreshChecksUser makes Refresh confirm the token subject still
	// exists before issuing a new access token
	RefreshChecksUser bool
}

// AuthService handles authentication business logic
type AuthService struct {
	tokenizer ports.Tokenizer
	users     ports.UserRepository
	eventPub  ports.EventPublisher
	logger    *zap.Logger
	now       func() time.Time

	accessTTL         time.Duration
	refreshTTL        time.Duration
	refreshChecksUser bool
}

// Option configures an AuthService
type Option func(*AuthService)

// WithClock replaces the wall clock used to compute token expiry
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *AuthService) { s.logger = logger }
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	users ports.UserRepository,
	eventPub ports.EventPublisher,
	cfg Config,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		tokenizer:         tokenizer,
		users:             users,
		eventPub:          eventPub,
		logger:            zap.NewNop(),
		now:               time.Now,
		accessTTL:         cfg.AccessTTL,
		refreshTTL:        cfg.RefreshTTL,
		refreshChecksUser: cfg.RefreshChecksUser,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessTTL returns the lifetime of issued access tokens
func (s *AuthService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the lifetime of issued refresh tokens
func (s *AuthService) RefreshTTL() time.Duration { return s.refreshTTL }

// Signup registers a new user. It does not issue tokens.
func (s *AuthService) Signup(ctx context.Context, name, email string) (*core.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email is required", core.ErrInvalidInput)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, core.ErrDuplicateUser
	} else if !errors.Is(err, core.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	now := s.now().UTC()
	user := &core.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Insert repeats the email check atomically for concurrent signups
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, core.ErrDuplicateUser) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to store user: %w", err)
	}

	s.publish("signup", func() error { return s.eventPub.PublishSignup(ctx, user.ID, user.Email) })

	return user, nil
}

// Login issues an access and refresh token pair for the user owning email.
//
// The password is accepted but not checked, credential verification is out of
// scope for this service. An unknown email fails with core.ErrInvalidCredentials
// so callers cannot tell missing accounts from bad passwords.
func (s *AuthService) Login(ctx context.Context, email, password string) (*core.Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	now := s.now()
	session := &core.Session{
		User:             user,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}

	session.AccessToken, err = s.tokenizer.Sign(user.ID, session.AccessExpiresAt, core.RoleAccess)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	session.RefreshToken, err = s.tokenizer.Sign(user.ID, session.RefreshExpiresAt, core.RoleRefresh)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	s.publish("login", func() error { return s.eventPub.PublishLogin(ctx, user.ID) })

	return session, nil
}

// Refresh exchanges a valid refresh token for a new access token.
// The refresh token itself is not rotated, so the returned session carries
// no refresh token and no user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*core.Session, error) {
	if refreshToken == "" {
		return nil, core.ErrMissingToken
	}

	claims, ok := s.tokenizer.Verify(refreshToken, core.RoleRefresh)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	if s.refreshChecksUser {
		if _, err := s.users.FindByID(ctx, claims.Subject); err != nil {
			if errors.Is(err, core.ErrUserNotFound) {
				return nil, core.ErrInvalidToken
			}
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
	}

	session := &core.Session{
		AccessExpiresAt: s.now().Add(s.accessTTL),
	}

	var err error
	session.AccessToken, err = s.tokenizer.Sign(claims.Subject, session.AccessExpiresAt, core.RoleAccess)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	s.publish("refresh", func() error { return s.eventPub.PublishRefresh(ctx, claims.Subject) })

	return session, nil
}

// Authenticate resolves an access token to a live user.
// core.ErrMissingToken and core.ErrInvalidToken are expected rejections,
// any other error is a backend failure.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*core.User, error) {
	if accessToken == "" {
		return nil, core.ErrMissingToken
	}

	claims, ok := s.tokenizer.Verify(accessToken, core.RoleAccess)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			// the account was removed after the token was issued
			return nil, core.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	return user, nil
}

// Logout records the end of a session. Cookies are cleared by the transport
// regardless of the outcome. Only a verifiable refresh token produces an event.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	claims, ok := s.tokenizer.Verify(refreshToken, core.RoleRefresh)
	if !ok {
		return
	}
	userID := claims.Subject

	s.publish("logout", func() error { return s.eventPub.PublishLogout(ctx, userID) })
}

// User returns the user with the given id
func (s *AuthService) User(ctx context.Context, id string) (*core.User, error) {
	return s.users.FindByID(ctx, id)
}

// publish never fails the calling operation, the event is best effort
func (s *AuthService) publish(event string, fn func() error) {
	if s.eventPub == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.Warn("failed to publish session event",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
