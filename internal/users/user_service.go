package users

import (
	"fmt"
	"strings"

	"resourcehive/internal/activity"
	"resourcehive/internal/permissions"
	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"
	"resourcehive/pkg/roles"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserService manages accounts. Every mutation requires the manage_users
// permission; role escalation to superuser is refused for non-superusers.
type UserService struct {
	r           *repository.Repository
	users       *UserRepository
	permissions *permissions.PermissionRepository
	arbiter     *permissions.Arbiter
	recorder    *activity.Recorder
	log         *zap.Logger
}

func NewUserService(
	r *repository.Repository,
	users *UserRepository,
	pr *permissions.PermissionRepository,
	arbiter *permissions.Arbiter,
	recorder *activity.Recorder,
	log *zap.Logger,
) *UserService {
	return &UserService{
		r:           r,
		users:       users,
		permissions: pr,
		arbiter:     arbiter,
		recorder:    recorder,
		log:         log,
	}
}

func (s *UserService) Create(actorID int, req *models.CreateUserRequest) (*models.User, error) {
	if err := s.arbiter.Check(actorID, permissions.ManageUsers); err != nil {
		return nil, err
	}
	if !roles.Role(req.Role).IsValid() {
		return nil, apperrors.Newf(apperrors.KindInvalidInput, "Unknown role: %s", req.Role)
	}
	if err := s.guardRoleAssignment(actorID, req.Role); err != nil {
		return nil, err
	}
	if len(req.Password) < 8 {
		return nil, apperrors.InvalidInput("Password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     strings.ToLower(strings.TrimSpace(req.Username)),
		PasswordHash: string(hash),
		Fullname:     req.Fullname,
		Email:        req.Email,
		Phone:        req.Phone,
		Department:   req.Department,
		Role:         req.Role,
		IsActive:     true,
		// New admins start with an empty permission set until granted.
		HasLimitedAccess: roles.Role(req.Role) == roles.Admin,
	}

	err = repository.WithTransaction(s.r.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		userID, err := s.users.InsertUser(tx, user)
		if err != nil {
			return err
		}
		user.ID = userID

		description := fmt.Sprintf("Created user %s with role %s", user.Username, user.Role)
		return s.recorder.Record(tx, actorID, "create_user", user, description)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *UserService) Update(actorID, userID int, req *models.UpdateUserRequest) (*models.User, error) {
	if err := s.arbiter.Check(actorID, permissions.ManageUsers); err != nil {
		return nil, err
	}

	current, err := s.users.GetUser(userID)
	if err != nil {
		return nil, err
	}

	changes := &models.UserChanges{}
	changed := make([]string, 0)

	if req.Password != nil {
		if len(*req.Password) < 8 {
			return nil, apperrors.InvalidInput("Password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		hashString := string(hash)
		changes.PasswordHash = &hashString
		changed = append(changed, "password")
	}
	if req.Fullname != nil && *req.Fullname != current.Fullname {
		changes.Fullname = req.Fullname
		changed = append(changed, "fullname")
	}
	if req.Email != nil && *req.Email != current.Email {
		changes.Email = req.Email
		changed = append(changed, "email")
	}
	if req.Phone != nil && *req.Phone != current.Phone {
		changes.Phone = req.Phone
		changed = append(changed, "phone")
	}
	if req.Department != nil && *req.Department != current.Department {
		changes.Department = req.Department
		changed = append(changed, "department")
	}
	if req.Role != nil && *req.Role != current.Role {
		if !roles.Role(*req.Role).IsValid() {
			return nil, apperrors.Newf(apperrors.KindInvalidInput, "Unknown role: %s", *req.Role)
		}
		if err := s.guardRoleAssignment(actorID, *req.Role); err != nil {
			return nil, err
		}
		changes.Role = req.Role
		changed = append(changed, "role")
	}
	if req.IsActive != nil && *req.IsActive != current.IsActive {
		changes.IsActive = req.IsActive
		changed = append(changed, "is_active")
	}
	if req.AutoEnableAt != nil {
		changes.AutoEnableAt = req.AutoEnableAt
		changed = append(changed, "auto_enable_at")
	}
	if req.HasLimitedAccess != nil && *req.HasLimitedAccess != current.HasLimitedAccess {
		changes.HasLimitedAccess = req.HasLimitedAccess
		changed = append(changed, "has_limited_access")
	}

	if !changes.HasChanges() {
		return current, nil
	}

	err = repository.WithTransaction(s.r.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		if err := s.users.UpdateUser(tx, userID, changes); err != nil {
			return err
		}

		description := fmt.Sprintf("Updated user %s: %s", current.Username, strings.Join(changed, ", "))
		return s.recorder.Record(tx, actorID, "update_user", current, description)
	})
	if err != nil {
		return nil, err
	}

	return s.users.GetUser(userID)
}

// guardRoleAssignment keeps superuser promotion in superuser hands.
func (s *UserService) guardRoleAssignment(actorID int, role string) error {
	if roles.Role(role) != roles.Superuser {
		return nil
	}

	actor, err := s.users.GetUser(actorID)
	if err != nil {
		return err
	}
	if roles.Role(actor.Role) != roles.Superuser {
		return apperrors.PermissionDenied("Only a superuser can assign the superuser role")
	}

	return nil
}

func (s *UserService) Get(actorID, userID int) (*models.User, error) {
	if actorID != userID {
		if err := s.arbiter.Check(actorID, permissions.ManageUsers); err != nil {
			return nil, err
		}
	}
	return s.users.GetUser(userID)
}

func (s *UserService) List(actorID int) ([]models.User, error) {
	if err := s.arbiter.Check(actorID, permissions.ManageUsers); err != nil {
		return nil, err
	}
	return s.users.GetUsers()
}

// GetPermissions returns the full codename map for the permission editor.
func (s *UserService) GetPermissions(actorID, userID int) (map[string]bool, error) {
	if err := s.arbiter.Check(actorID, permissions.ManageUsers); err != nil {
		return nil, err
	}
	return s.arbiter.GrantedCodenames(userID)
}

// SetPermissions replaces an admin's explicit permission set. Granting
// permissions to a plain user is refused; promote them to admin first.
func (s *UserService) SetPermissions(actorID, userID int, codenames []string) error {
	if err := s.arbiter.Check(actorID, permissions.ManageUsers); err != nil {
		return err
	}

	target, err := s.users.GetUser(userID)
	if err != nil {
		return err
	}
	if roles.Role(target.Role) != roles.Admin {
		return apperrors.InvalidInput("Permissions can only be granted to admin accounts")
	}

	if err := s.permissions.SetGrantedCodenames(userID, codenames); err != nil {
		return err
	}

	s.log.Info("updated admin permissions",
		zap.Int("actor_id", actorID),
		zap.Int("user_id", userID),
		zap.Int("granted", len(codenames)))

	return nil
}
