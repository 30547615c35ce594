package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-report-api/internal/models"
	appErrors "github.com/noah-isme/civic-report-api/pkg/errors"
)

// Authenticator is the authentication provider the session context relies on.
type Authenticator interface {
	SignIn(ctx context.Context, req models.LoginRequest) (*models.AuthSession, error)
	SignUp(ctx context.Context, req models.RegisterRequest) (*models.AuthSession, error)
	SignOut(ctx context.Context, refreshToken, userID string, meta models.RequestMeta) error
	Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.AuthSession, error)
	ValidateToken(token string) (*models.JWTClaims, error)
}

// AdminLookup reads the administrator flag from the profiles table.
type AdminLookup interface {
	AdminByID(ctx context.Context, id string) (bool, error)
	AdminByEmail(ctx context.Context, email string) (bool, error)
}

// SessionService exposes the current identity and its administrator flag.
// The flag is derived again on every identity change and never trusted from
// the token.
type SessionService struct {
	auth        Authenticator
	profiles    AdminLookup
	minPassword int
	logger      *zap.Logger
}

// NewSessionService builds the session context. A nil authenticator puts the
// service in no-backend mode where every operation fails with
// BACKEND_UNAVAILABLE.
func NewSessionService(auth Authenticator, profiles AdminLookup, minPassword int, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minPassword <= 0 {
		minPassword = 6
	}
	return &SessionService{auth: auth, profiles: profiles, minPassword: minPassword, logger: logger}
}

// Available reports whether a backend is configured.
func (s *SessionService) Available() bool {
	return s != nil && s.auth != nil
}

// Login signs in and attaches the derived administrator flag.
func (s *SessionService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthSession, error) {
	if !s.Available() {
		return nil, appErrors.ErrBackendUnavailable
	}
	session, err := s.auth.SignIn(ctx, req)
	if err != nil {
		return nil, err
	}
	s.withRole(ctx, session)
	return session, nil
}

// Register checks the form, then signs up. The returned session is nil when
// the provider requires the email address to be confirmed first.
func (s *SessionService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthSession, error) {
	if !s.Available() {
		return nil, appErrors.ErrBackendUnavailable
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, appErrors.Validation("email is required")
	}
	if req.Password != req.ConfirmPassword {
		return nil, appErrors.Validation("Passwords do not match")
	}
	if len(req.Password) < s.minPassword {
		return nil, appErrors.Validation(fmt.Sprintf("Password must be at least %d characters", s.minPassword))
	}

	session, err := s.auth.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	if session != nil {
		s.withRole(ctx, session)
	}
	return session, nil
}

// Logout revokes the caller's refresh token.
func (s *SessionService) Logout(ctx context.Context, refreshToken string, identity models.Identity, meta models.RequestMeta) error {
	if !s.Available() {
		return appErrors.ErrBackendUnavailable
	}
	return s.auth.SignOut(ctx, refreshToken, identity.ID, meta)
}

// Refresh rotates tokens and re-derives the administrator flag.
func (s *SessionService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.AuthSession, error) {
	if !s.Available() {
		return nil, appErrors.ErrBackendUnavailable
	}
	session, err := s.auth.Refresh(ctx, req)
	if err != nil {
		return nil, err
	}
	s.withRole(ctx, session)
	return session, nil
}

// Identify resolves an access token into the current identity.
func (s *SessionService) Identify(ctx context.Context, accessToken string) (*models.Identity, error) {
	if !s.Available() {
		return nil, appErrors.ErrBackendUnavailable
	}
	claims, err := s.auth.ValidateToken(accessToken)
	if err != nil {
		return nil, err
	}
	return &models.Identity{
		ID:      claims.UserID,
		Email:   claims.Email,
		IsAdmin: s.ResolveAdmin(ctx, claims.UserID, claims.Email),
	}, nil
}

// ResolveAdmin looks the profile up by id, then by email. Any failure or a
// missing profile yields false.
func (s *SessionService) ResolveAdmin(ctx context.Context, id, email string) bool {
	if s.profiles == nil {
		return false
	}
	isAdmin, err := s.profiles.AdminByID(ctx, id)
	if err == nil {
		return isAdmin
	}
	s.logger.Debug("profile lookup by id failed", zap.String("user_id", id), zap.Error(err))

	if email == "" {
		return false
	}
	isAdmin, err = s.profiles.AdminByEmail(ctx, email)
	if err != nil {
		s.logger.Debug("profile lookup by email failed", zap.String("user_id", id), zap.Error(err))
		return false
	}
	return isAdmin
}

func (s *SessionService) withRole(ctx context.Context, session *models.AuthSession) {
	session.User.IsAdmin = s.ResolveAdmin(ctx, session.User.ID, session.User.Email)
}
