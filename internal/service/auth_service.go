package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/auth"
	"github.com/spec-kit/repair-desk/internal/config"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/repository"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

// AuthService manages operator accounts and issues tokens.
type AuthService struct {
	store      repository.Store
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, store repository.Store, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store:      store,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTL),
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// CreateUser registers an account. An empty role means domain.RoleUser.
func (s *AuthService) CreateUser(ctx context.Context, username, password, role string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, invalidField("username", "username is required")
	}
	if password == "" {
		return nil, invalidField("password", "password is required")
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, invalidField("role", "role must be one of [user admin]")
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{Username: username, PasswordHash: hash, Role: role}
	if err := s.store.Repositories().Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalidField("username", "username already registered")
		}
		return nil, storeError("user", err)
	}
	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", user.Role))
	return user, nil
}

// Login authenticates an operator and returns a signed token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	user, err := s.store.Repositories().Users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, storeError("user", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("stored password hash unreadable", zap.Int64("user_id", user.ID), zap.Error(err))
		}
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if auth.NeedsRehash(user.PasswordHash, s.bcryptCost) {
		s.rehash(ctx, user, password)
	}
	token, exp, err := s.tokenMgr.Issue(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// rehash upgrades a hash produced with an outdated cost. Failures keep the old hash.
func (s *AuthService) rehash(ctx context.Context, user *domain.User, password string) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err == nil {
		err = s.store.Repositories().Users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.Warn("password rehash failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if newPassword == "" {
		return invalidField("new_password", "new_password is required")
	}
	repos := s.store.Repositories()
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return storeError("user", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return storeError("user", repos.Users.UpdatePassword(ctx, userID, hash))
}

// ListUsers returns accounts ordered by username.
func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.Repositories().Users.List(ctx)
	if err != nil {
		return nil, storeError("user", err)
	}
	return users, nil
}

// DeleteUser removes an account; references from tickets, history and attachments become null.
func (s *AuthService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.store.Repositories().Users.Delete(ctx, id); err != nil {
		return storeError("user", err)
	}
	s.logger.Info("user deleted", zap.Int64("user_id", id))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
