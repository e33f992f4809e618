package users

import (
	"fmt"

	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

type UserRepository struct {
	r *repository.Repository
}

func NewUserRepository(r *repository.Repository) *UserRepository {
	return &UserRepository{r: r}
}

func (ur *UserRepository) userSelect() *goqu.SelectDataset {
	return ur.r.GoquDBWrapper.
		Select("id", "username", "password_hash", "fullname", "email", "phone",
			"department", "role", "is_active", "auto_enable_at", "has_limited_access").
		From("users")
}

func (ur *UserRepository) GetUser(userID int) (*models.User, error) {
	var user models.User
	found, err := ur.userSelect().
		Where(goqu.Ex{"id": userID}).
		Executor().ScanStruct(&user)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement for user: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "User %d not found", userID)
	}

	return &user, nil
}

func (ur *UserRepository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	found, err := ur.userSelect().
		Where(goqu.Ex{"username": username}).
		Executor().ScanStruct(&user)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement for user lookup: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "User %s not found", username)
	}

	return &user, nil
}

func (ur *UserRepository) GetUsers() ([]models.User, error) {
	var users []models.User
	if err := ur.userSelect().
		Order(goqu.C("fullname").Asc()).
		Executor().ScanStructs(&users); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for users: %w", err)
	}

	return users, nil
}

func (ur *UserRepository) InsertUser(tx *goqu.TxDatabase, user *models.User) (int, error) {
	var userID int
	if _, err := tx.Insert("users").Rows(goqu.Record{
		"username":           user.Username,
		"password_hash":      user.PasswordHash,
		"fullname":           user.Fullname,
		"email":              user.Email,
		"phone":              user.Phone,
		"department":         user.Department,
		"role":               user.Role,
		"is_active":          user.IsActive,
		"has_limited_access": user.HasLimitedAccess,
	}).Returning("id").Executor().ScanVal(&userID); err != nil {
		return 0, apperrors.FromDBError(err, "failed to insert user")
	}

	return userID, nil
}

func (ur *UserRepository) UpdateUser(tx *goqu.TxDatabase, userID int, changes *models.UserChanges) error {
	fields := goqu.Record{}
	if changes.PasswordHash != nil {
		fields["password_hash"] = *changes.PasswordHash
	}
	if changes.Fullname != nil {
		fields["fullname"] = *changes.Fullname
	}
	if changes.Email != nil {
		fields["email"] = *changes.Email
	}
	if changes.Phone != nil {
		fields["phone"] = *changes.Phone
	}
	if changes.Department != nil {
		fields["department"] = *changes.Department
	}
	if changes.Role != nil {
		fields["role"] = *changes.Role
	}
	if changes.IsActive != nil {
		fields["is_active"] = *changes.IsActive
	}
	if changes.AutoEnableAt != nil {
		fields["auto_enable_at"] = *changes.AutoEnableAt
	}
	if changes.HasLimitedAccess != nil {
		fields["has_limited_access"] = *changes.HasLimitedAccess
	}
	if len(fields) == 0 {
		return nil
	}

	result, err := tx.Update("users").
		Set(fields).
		Where(goqu.Ex{"id": userID}).
		Executor().Exec()
	if err != nil {
		return apperrors.FromDBError(err, "failed to update user")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "User %d not found", userID)
	}

	return nil
}
