package inventory

import (
	"fmt"

	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

type PropertyRepository struct {
	r *repository.Repository
}

func NewPropertyRepository(r *repository.Repository) *PropertyRepository {
	return &PropertyRepository{r: r}
}

func (pr *PropertyRepository) propertySelect() *goqu.SelectDataset {
	return pr.r.GoquDBWrapper.
		Select(
			goqu.I("p.id"),
			goqu.I("p.property_number"),
			goqu.I("p.old_property_number"),
			goqu.I("p.serial_number"),
			goqu.I("p.property_name"),
			goqu.I("p.description"),
			goqu.I("p.location"),
			goqu.I("p.accountable_person"),
			goqu.I("p.unit"),
			goqu.I("p.unit_value"),
			goqu.I("p.year_acquired"),
			goqu.I("p.overall_quantity"),
			goqu.I("p.quantity"),
			goqu.I("p.reserved_quantity"),
			goqu.I("p.quantity_per_physical_count"),
			goqu.I("p.condition"),
			goqu.I("p.availability"),
			goqu.I("p.is_archived"),
			goqu.I("p.category_id"),
			goqu.I("c.name").As("category_name"),
		).
		From(goqu.T("properties").As("p")).
		LeftJoin(goqu.T("property_categories").As("c"), goqu.On(goqu.Ex{"c.id": goqu.I("p.category_id")}))
}

func (pr *PropertyRepository) GetProperty(propertyID int) (*models.Property, error) {
	var flat models.FlatPropertyRecord
	found, err := pr.propertySelect().
		Where(goqu.Ex{"p.id": propertyID}).
		Executor().ScanStruct(&flat)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement for property: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Property %d not found", propertyID)
	}

	property := flat.TransformToProperty()
	return &property, nil
}

func (pr *PropertyRepository) GetPropertyByNumber(propertyNumber string) (*models.Property, error) {
	var flat models.FlatPropertyRecord
	found, err := pr.propertySelect().
		Where(goqu.Ex{"p.property_number": propertyNumber}).
		Executor().ScanStruct(&flat)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement for property lookup: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "No property with number %s", propertyNumber)
	}

	property := flat.TransformToProperty()
	return &property, nil
}

func (pr *PropertyRepository) GetProperties(includeArchived bool) ([]models.Property, error) {
	query := pr.propertySelect().Order(goqu.I("p.property_name").Asc())
	if !includeArchived {
		query = query.Where(goqu.Ex{"p.is_archived": false})
	}

	var flats []models.FlatPropertyRecord
	if err := query.Executor().ScanStructs(&flats); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for properties: %w", err)
	}

	properties := make([]models.Property, 0, len(flats))
	for i := range flats {
		properties = append(properties, flats[i].TransformToProperty())
	}

	return properties, nil
}

func (pr *PropertyRepository) InsertProperty(tx *goqu.TxDatabase, property *models.Property) (int, error) {
	record := goqu.Record{
		"property_number":             property.PropertyNumber,
		"old_property_number":         property.OldPropertyNumber,
		"serial_number":               property.SerialNumber,
		"property_name":               property.Name,
		"description":                 property.Description,
		"location":                    property.Location,
		"accountable_person":          property.AccountablePerson,
		"unit":                        property.Unit,
		"unit_value":                  property.UnitValue,
		"year_acquired":               property.YearAcquired,
		"overall_quantity":            property.OverallQuantity,
		"quantity":                    property.Quantity,
		"reserved_quantity":           0,
		"quantity_per_physical_count": property.QuantityPerPhysicalCount,
		"condition":                   property.Condition,
		"availability":                property.Availability,
		"is_archived":                 false,
	}
	if property.Category != nil {
		record["category_id"] = property.Category.ID
	}

	var propertyID int
	if _, err := tx.Insert("properties").Rows(record).Returning("id").Executor().ScanVal(&propertyID); err != nil {
		return 0, apperrors.FromDBError(err, "failed to insert property")
	}

	return propertyID, nil
}

func (pr *PropertyRepository) UpdatePropertyFields(tx *goqu.TxDatabase, propertyID int, fields goqu.Record) error {
	if len(fields) == 0 {
		return nil
	}

	result, err := tx.Update("properties").
		Set(fields).
		Where(goqu.Ex{"id": propertyID}).
		Executor().Exec()
	if err != nil {
		return apperrors.FromDBError(err, "failed to update property")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "Property %d not found", propertyID)
	}

	return nil
}

// GetForUpdate locks the property row before any quantity math. Concurrent
// borrow/reservation approvals on the same property serialize here.
func (pr *PropertyRepository) GetForUpdate(tx *goqu.TxDatabase, propertyID int) (*models.Property, error) {
	var property models.Property
	found, err := tx.
		Select("id", "property_name", "quantity", "reserved_quantity", "overall_quantity",
			"condition", "availability", "is_archived").
		From("properties").
		Where(goqu.Ex{"id": propertyID}).
		ForUpdate(exp.Wait).
		Executor().ScanStruct(&property)
	if err != nil {
		return nil, fmt.Errorf("failed to lock property row: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Property %d not found", propertyID)
	}

	return &property, nil
}

func (pr *PropertyRepository) UpdateQuantities(tx *goqu.TxDatabase, propertyID, quantity, reserved int) error {
	if reserved > quantity {
		return apperrors.Newf(apperrors.KindInsufficientStock,
			"reserved quantity %d would exceed on-hand quantity %d", reserved, quantity)
	}

	if _, err := tx.Update("properties").
		Set(goqu.Record{
			"quantity":          quantity,
			"reserved_quantity": reserved,
		}).
		Where(goqu.Ex{"id": propertyID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update property quantities: %w", err)
	}

	return nil
}

// DeleteProperty removes the property row. Request items referencing the
// property make the delete fail on the foreign key, which FromDBError
// surfaces as a conflict.
func (pr *PropertyRepository) DeleteProperty(tx *goqu.TxDatabase, propertyID int) error {
	result, err := tx.Delete("properties").
		Where(goqu.Ex{"id": propertyID}).
		Executor().Exec()
	if err != nil {
		return apperrors.FromDBError(err, "failed to delete property")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "Property %d not found", propertyID)
	}

	return nil
}

func (pr *PropertyRepository) SetArchived(tx *goqu.TxDatabase, propertyID int, archived bool) error {
	if _, err := tx.Update("properties").
		Set(goqu.Record{"is_archived": archived}).
		Where(goqu.Ex{"id": propertyID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update property archive flag: %w", err)
	}

	return nil
}
