package permissions

import (
	"fmt"

	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"
	"resourcehive/pkg/roles"

	"github.com/doug-martin/goqu/v9"
)

// Admin permission codenames. Every engine operation names exactly one.
const (
	ManageUsers          = "manage_users"
	ApproveSupplyRequest = "approve_supply_request"
	ApproveBorrowRequest = "approve_borrow_request"
	ApproveReservation   = "approve_reservation"
	EditSupply           = "edit_supply"
	EditProperty         = "edit_property"
	ReportBadStock       = "report_bad_stock"
	ReportLostItems      = "report_lost_items"
	ManageLostItems      = "manage_lost_items"
	DeleteArchivedItems  = "delete_archived_items"
	VoidRequest          = "void_request"
)

// AllCodenames lists every known permission, used to seed the table and to
// render the permission editor.
var AllCodenames = []string{
	ManageUsers,
	ApproveSupplyRequest,
	ApproveBorrowRequest,
	ApproveReservation,
	EditSupply,
	EditProperty,
	ReportBadStock,
	ReportLostItems,
	ManageLostItems,
	DeleteArchivedItems,
	VoidRequest,
}

// Arbiter answers allow/deny for (caller, codename) with no side effects.
type Arbiter struct {
	repo *PermissionRepository
}

func NewArbiter(repo *PermissionRepository) *Arbiter {
	return &Arbiter{repo: repo}
}

// Check returns nil when the caller holds the codename. Superusers bypass
// all checks; an admin without limited access holds every codename; a plain
// user holds none.
func (a *Arbiter) Check(userID int, codename string) error {
	caller, err := a.repo.GetCaller(userID)
	if err != nil {
		return err
	}

	if !caller.IsActive {
		return apperrors.PermissionDenied("Your account is disabled")
	}

	if roles.Role(caller.Role) == roles.Superuser {
		return nil
	}

	if roles.Role(caller.Role) != roles.Admin {
		return apperrors.PermissionDenied("You don't have permission to perform this action.")
	}

	if !caller.HasLimitedAccess {
		return nil
	}

	granted, err := a.repo.HasPermission(userID, codename)
	if err != nil {
		return err
	}
	if !granted {
		return apperrors.PermissionDenied("You don't have permission to perform this action.")
	}

	return nil
}

// GrantedCodenames returns the full permission map for the permission editor.
func (a *Arbiter) GrantedCodenames(userID int) (map[string]bool, error) {
	caller, err := a.repo.GetCaller(userID)
	if err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(AllCodenames))

	if roles.Role(caller.Role) == roles.Superuser ||
		(roles.Role(caller.Role) == roles.Admin && !caller.HasLimitedAccess) {
		for _, codename := range AllCodenames {
			result[codename] = true
		}
		return result, nil
	}

	if roles.Role(caller.Role) != roles.Admin {
		for _, codename := range AllCodenames {
			result[codename] = false
		}
		return result, nil
	}

	granted, err := a.repo.GetGrantedCodenames(userID)
	if err != nil {
		return nil, err
	}
	for _, codename := range AllCodenames {
		result[codename] = granted[codename]
	}

	return result, nil
}

// Caller is the slice of the user row the arbiter needs.
type Caller struct {
	ID               int    `db:"id"`
	Role             string `db:"role"`
	IsActive         bool   `db:"is_active"`
	HasLimitedAccess bool   `db:"has_limited_access"`
}

type PermissionRepository struct {
	r *repository.Repository
}

func NewPermissionRepository(r *repository.Repository) *PermissionRepository {
	return &PermissionRepository{r: r}
}

func (pr *PermissionRepository) GetCaller(userID int) (*Caller, error) {
	var caller Caller
	query := pr.r.GoquDBWrapper.
		Select("id", "role", "is_active", "has_limited_access").
		From("users").
		Where(goqu.Ex{"id": userID})

	found, err := query.Executor().ScanStruct(&caller)
	if err != nil {
		return nil, fmt.Errorf("failed to get caller: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "User %d not found", userID)
	}

	return &caller, nil
}

func (pr *PermissionRepository) HasPermission(userID int, codename string) (bool, error) {
	var count int64
	query := pr.r.GoquDBWrapper.
		From(goqu.T("user_admin_permissions").As("uap")).
		Join(
			goqu.T("admin_permissions").As("ap"),
			goqu.On(goqu.Ex{"ap.id": goqu.I("uap.permission_id")}),
		).
		Where(goqu.Ex{"uap.user_id": userID, "ap.codename": codename}).
		Select(goqu.COUNT("*"))

	if _, err := query.Executor().ScanVal(&count); err != nil {
		return false, fmt.Errorf("failed to check permission %s: %w", codename, err)
	}

	return count > 0, nil
}

func (pr *PermissionRepository) GetGrantedCodenames(userID int) (map[string]bool, error) {
	var codenames []string
	query := pr.r.GoquDBWrapper.
		Select("ap.codename").
		From(goqu.T("user_admin_permissions").As("uap")).
		Join(
			goqu.T("admin_permissions").As("ap"),
			goqu.On(goqu.Ex{"ap.id": goqu.I("uap.permission_id")}),
		).
		Where(goqu.Ex{"uap.user_id": userID})

	if err := query.Executor().ScanVals(&codenames); err != nil {
		return nil, fmt.Errorf("failed to list granted permissions: %w", err)
	}

	granted := make(map[string]bool, len(codenames))
	for _, codename := range codenames {
		granted[codename] = true
	}

	return granted, nil
}

// SetGrantedCodenames replaces a user's explicit permission set.
func (pr *PermissionRepository) SetGrantedCodenames(userID int, codenames []string) error {
	return repository.WithTransaction(pr.r.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		if _, err := tx.Delete("user_admin_permissions").
			Where(goqu.Ex{"user_id": userID}).
			Executor().Exec(); err != nil {
			return fmt.Errorf("failed to clear permissions: %w", err)
		}

		for _, codename := range codenames {
			var permissionID int
			found, err := tx.Select("id").
				From("admin_permissions").
				Where(goqu.Ex{"codename": codename}).
				Executor().ScanVal(&permissionID)
			if err != nil {
				return fmt.Errorf("failed to look up permission %s: %w", codename, err)
			}
			if !found {
				return apperrors.Newf(apperrors.KindInvalidInput, "Unknown permission: %s", codename)
			}

			if _, err := tx.Insert("user_admin_permissions").
				Rows(goqu.Record{"user_id": userID, "permission_id": permissionID}).
				Executor().Exec(); err != nil {
				return fmt.Errorf("failed to grant permission %s: %w", codename, err)
			}
		}

		return nil
	})
}

func (pr *PermissionRepository) ListPermissions() ([]models.AdminPermission, error) {
	var permissions []models.AdminPermission
	query := pr.r.GoquDBWrapper.
		Select("id", "codename", "label").
		From("admin_permissions").
		Order(goqu.C("codename").Asc())

	if err := query.Executor().ScanStructs(&permissions); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for permissions: %w", err)
	}

	return permissions, nil
}
