package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

// AuthService verifies operator credentials.
type AuthService struct {
	users  domain.UserRepository
	audit  *AuditService
	logger *logger.Logger
	now    func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(users domain.UserRepository, audit *AuditService, log *logger.Logger) *AuthService {
	return &AuthService{users: users, audit: audit, logger: log, now: time.Now}
}

// ErrInvalidCredentials is returned for any failed login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Login checks username and password of an active operator.
func (s *AuthService) Login(ctx context.Context, actor domain.Actor, username, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("Failed to record login", logger.String("user", user.Username), logger.Error(err))
	}
	user.LastLoginAt = &now

	actor.UserID = &user.ID
	s.audit.Record(ctx, actor, domain.AuditOperatorLogin, "users", user.ID.String(), nil, nil)
	return user, nil
}

// Me returns the operator behind a token
func (s *AuthService) Me(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// EnsureAdmin creates the bootstrap admin if the username is free.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != domain.KindNotFound {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	s.logger.Info("Bootstrap admin created", logger.String("username", username))
	return nil
}
