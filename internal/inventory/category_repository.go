package inventory

import (
	"fmt"

	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

type CategoryRepository struct {
	r *repository.Repository
}

func NewCategoryRepository(r *repository.Repository) *CategoryRepository {
	return &CategoryRepository{r: r}
}

func (cr *CategoryRepository) GetSupplyCategories() ([]models.SupplyCategory, error) {
	var categories []models.SupplyCategory
	query := cr.r.GoquDBWrapper.
		Select("id", "name").
		From("supply_categories").
		Order(goqu.C("name").Asc())

	if err := query.Executor().ScanStructs(&categories); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for supply categories: %w", err)
	}

	return categories, nil
}

func (cr *CategoryRepository) CreateSupplyCategory(name string) (*models.SupplyCategory, error) {
	if name == "" {
		return nil, apperrors.InvalidInput("Category name is required")
	}

	category := models.SupplyCategory{Name: name}
	query := cr.r.GoquDBWrapper.Insert("supply_categories").
		Rows(goqu.Record{"name": name}).
		Returning("id")

	if _, err := query.Executor().ScanVal(&category.ID); err != nil {
		return nil, apperrors.FromDBError(err, "failed to insert supply category")
	}

	return &category, nil
}

// DeleteSupplyCategory refuses while any supply references the category.
func (cr *CategoryRepository) DeleteSupplyCategory(categoryID int) error {
	var count int64
	if _, err := cr.r.GoquDBWrapper.
		From("supplies").
		Where(goqu.Ex{"category_id": categoryID}).
		Select(goqu.COUNT("*")).
		Executor().ScanVal(&count); err != nil {
		return fmt.Errorf("failed to count category references: %w", err)
	}
	if count > 0 {
		return apperrors.Newf(apperrors.KindConflict,
			"Category is still referenced by %d supply item(s)", count)
	}

	result, err := cr.r.GoquDBWrapper.Delete("supply_categories").
		Where(goqu.Ex{"id": categoryID}).
		Executor().Exec()
	if err != nil {
		return apperrors.FromDBError(err, "failed to delete supply category")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "Category %d not found", categoryID)
	}

	return nil
}

func (cr *CategoryRepository) GetSubcategories(categoryID int) ([]models.Subcategory, error) {
	var subcategories []models.Subcategory
	query := cr.r.GoquDBWrapper.
		Select("id", "category_id", "name").
		From("supply_subcategories").
		Where(goqu.Ex{"category_id": categoryID}).
		Order(goqu.C("name").Asc())

	if err := query.Executor().ScanStructs(&subcategories); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for subcategories: %w", err)
	}

	return subcategories, nil
}

func (cr *CategoryRepository) CreateSubcategory(categoryID int, name string) (*models.Subcategory, error) {
	if name == "" {
		return nil, apperrors.InvalidInput("Subcategory name is required")
	}

	subcategory := models.Subcategory{CategoryID: categoryID, Name: name}
	query := cr.r.GoquDBWrapper.Insert("supply_subcategories").
		Rows(goqu.Record{"category_id": categoryID, "name": name}).
		Returning("id")

	if _, err := query.Executor().ScanVal(&subcategory.ID); err != nil {
		return nil, apperrors.FromDBError(err, "failed to insert subcategory")
	}

	return &subcategory, nil
}

func (cr *CategoryRepository) GetPropertyCategories() ([]models.PropertyCategory, error) {
	var categories []models.PropertyCategory
	query := cr.r.GoquDBWrapper.
		Select("id", "name").
		From("property_categories").
		Order(goqu.C("name").Asc())

	if err := query.Executor().ScanStructs(&categories); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for property categories: %w", err)
	}

	return categories, nil
}

func (cr *CategoryRepository) CreatePropertyCategory(name string) (*models.PropertyCategory, error) {
	if name == "" {
		return nil, apperrors.InvalidInput("Category name is required")
	}

	category := models.PropertyCategory{Name: name}
	query := cr.r.GoquDBWrapper.Insert("property_categories").
		Rows(goqu.Record{"name": name}).
		Returning("id")

	if _, err := query.Executor().ScanVal(&category.ID); err != nil {
		return nil, apperrors.FromDBError(err, "failed to insert property category")
	}

	return &category, nil
}

func (cr *CategoryRepository) DeletePropertyCategory(categoryID int) error {
	var count int64
	if _, err := cr.r.GoquDBWrapper.
		From("properties").
		Where(goqu.Ex{"category_id": categoryID}).
		Select(goqu.COUNT("*")).
		Executor().ScanVal(&count); err != nil {
		return fmt.Errorf("failed to count category references: %w", err)
	}
	if count > 0 {
		return apperrors.Newf(apperrors.KindConflict,
			"Category is still referenced by %d property item(s)", count)
	}

	result, err := cr.r.GoquDBWrapper.Delete("property_categories").
		Where(goqu.Ex{"id": categoryID}).
		Executor().Exec()
	if err != nil {
		return apperrors.FromDBError(err, "failed to delete property category")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "Category %d not found", categoryID)
	}

	return nil
}
