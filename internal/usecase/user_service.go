package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

// MinPasswordLength applies to every operator password.
const MinPasswordLength = 8

// UserInput creates an operator account
type UserInput struct {
	Username string
	Password string
	Role     string
}

// UserChanges updates an operator account. Nil fields are left as they are.
type UserChanges struct {
	Username *string
	Password *string
	Role     *string
	IsActive *bool
}

// UserService manages dashboard operator accounts.
type UserService struct {
	users  domain.UserRepository
	audit  *AuditService
	logger *logger.Logger
	cost   int
	now    func() time.Time
}

// NewUserService creates a new UserService
func NewUserService(users domain.UserRepository, audit *AuditService, log *logger.Logger) *UserService {
	return &UserService{users: users, audit: audit, logger: log, cost: bcrypt.DefaultCost, now: time.Now}
}

// List retrieves all operators
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

// Get retrieves one operator
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// Create adds an active operator with a bcrypt-hashed password.
func (s *UserService) Create(ctx context.Context, actor domain.Actor, in UserInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, domain.NewError(domain.KindValidation, "username is required").WithField("username")
	}
	if !domain.ValidRole(in.Role) {
		return nil, domain.NewError(domain.KindValidation, "unknown role %q", in.Role).WithField("role")
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, domain.AuditUserCreated, "users", user.ID.String(), nil, userAuditValues(user))
	s.logger.Info("Operator created", logger.String("username", user.Username), logger.String("role", user.Role))
	return user, nil
}

// Update applies changes to an operator. Operators cannot demote or
// deactivate themselves.
func (s *UserService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, changes UserChanges) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := userAuditValues(user)
	self := actor.UserID != nil && *actor.UserID == id

	if changes.Username != nil {
		username := strings.TrimSpace(*changes.Username)
		if username == "" {
			return nil, domain.NewError(domain.KindValidation, "username is required").WithField("username")
		}
		user.Username = username
	}
	if changes.Role != nil {
		if !domain.ValidRole(*changes.Role) {
			return nil, domain.NewError(domain.KindValidation, "unknown role %q", *changes.Role).WithField("role")
		}
		if self && *changes.Role != user.Role {
			return nil, domain.NewError(domain.KindConflict, "you cannot change your own role").WithField("role")
		}
		user.Role = *changes.Role
	}
	if changes.IsActive != nil {
		if self && !*changes.IsActive {
			return nil, domain.NewError(domain.KindConflict, "you cannot deactivate your own account").WithField("is_active")
		}
		user.IsActive = *changes.IsActive
	}
	passwordChanged := false
	if changes.Password != nil && *changes.Password != "" {
		if user.PasswordHash, err = s.hash(*changes.Password); err != nil {
			return nil, err
		}
		passwordChanged = true
	}

	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	after := userAuditValues(user)
	after["password_changed"] = passwordChanged
	s.audit.Record(ctx, actor, domain.AuditUserUpdated, "users", user.ID.String(), before, after)
	return user, nil
}

func (s *UserService) hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", domain.NewError(domain.KindValidation, "password must be at least %d characters", MinPasswordLength).
			WithField("password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func userAuditValues(u *domain.User) map[string]interface{} {
	return map[string]interface{}{
		"username":  u.Username,
		"role":      u.Role,
		"is_active": u.IsActive,
	}
}
