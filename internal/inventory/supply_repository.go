package inventory

import (
	"fmt"

	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

type SupplyRepository struct {
	r *repository.Repository
}

func NewSupplyRepository(r *repository.Repository) *SupplyRepository {
	return &SupplyRepository{r: r}
}

func (sr *SupplyRepository) supplySelect() *goqu.SelectDataset {
	return sr.r.GoquDBWrapper.
		Select(
			goqu.I("s.id"),
			goqu.I("s.barcode"),
			goqu.I("s.supply_name"),
			goqu.I("s.description"),
			goqu.I("s.unit"),
			goqu.I("s.date_received"),
			goqu.I("s.expiration_date"),
			goqu.I("s.available_for_request"),
			goqu.I("s.is_archived"),
			goqu.I("s.category_id"),
			goqu.I("c.name").As("category_name"),
			goqu.I("s.subcategory_id"),
			goqu.I("sc.name").As("subcategory_name"),
			goqu.I("q.current_quantity"),
			goqu.I("q.reserved_quantity"),
			goqu.I("q.minimum_threshold"),
		).
		From(goqu.T("supplies").As("s")).
		LeftJoin(goqu.T("supply_categories").As("c"), goqu.On(goqu.Ex{"c.id": goqu.I("s.category_id")})).
		LeftJoin(goqu.T("supply_subcategories").As("sc"), goqu.On(goqu.Ex{"sc.id": goqu.I("s.subcategory_id")})).
		Join(goqu.T("supply_quantities").As("q"), goqu.On(goqu.Ex{"q.supply_id": goqu.I("s.id")}))
}

func (sr *SupplyRepository) GetSupply(supplyID int) (*models.Supply, error) {
	var flat models.FlatSupplyRecord
	found, err := sr.supplySelect().
		Where(goqu.Ex{"s.id": supplyID}).
		Executor().ScanStruct(&flat)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement for supply: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Supply %d not found", supplyID)
	}

	supply := flat.TransformToSupply()
	return &supply, nil
}

func (sr *SupplyRepository) GetSupplyByBarcode(barcode string) (*models.Supply, error) {
	var flat models.FlatSupplyRecord
	found, err := sr.supplySelect().
		Where(goqu.Ex{"s.barcode": barcode}).
		Executor().ScanStruct(&flat)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement for supply lookup: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "No supply with barcode %s", barcode)
	}

	supply := flat.TransformToSupply()
	return &supply, nil
}

func (sr *SupplyRepository) GetSupplies(includeArchived bool) ([]models.Supply, error) {
	query := sr.supplySelect().Order(goqu.I("s.supply_name").Asc())
	if !includeArchived {
		query = query.Where(goqu.Ex{"s.is_archived": false})
	}

	var flats []models.FlatSupplyRecord
	if err := query.Executor().ScanStructs(&flats); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for supplies: %w", err)
	}

	supplies := make([]models.Supply, 0, len(flats))
	for i := range flats {
		supplies = append(supplies, flats[i].TransformToSupply())
	}

	return supplies, nil
}

func (sr *SupplyRepository) InsertSupply(tx *goqu.TxDatabase, supply *models.Supply) (int, error) {
	record := goqu.Record{
		"barcode":               supply.Barcode,
		"supply_name":           supply.Name,
		"description":           supply.Description,
		"unit":                  supply.Unit,
		"date_received":         supply.DateReceived,
		"expiration_date":       supply.ExpirationDate,
		"available_for_request": supply.AvailableForRequest,
		"is_archived":           false,
	}
	if supply.Category != nil {
		record["category_id"] = supply.Category.ID
	}
	if supply.Subcategory != nil {
		record["subcategory_id"] = supply.Subcategory.ID
	}

	var supplyID int
	if _, err := tx.Insert("supplies").Rows(record).Returning("id").Executor().ScanVal(&supplyID); err != nil {
		return 0, apperrors.FromDBError(err, "failed to insert supply")
	}

	quantity := supply.Quantity
	if quantity == nil {
		quantity = &models.SupplyQuantity{}
	}
	if _, err := tx.Insert("supply_quantities").Rows(goqu.Record{
		"supply_id":         supplyID,
		"current_quantity":  quantity.CurrentQuantity,
		"reserved_quantity": 0,
		"minimum_threshold": quantity.MinimumThreshold,
	}).Executor().Exec(); err != nil {
		return 0, fmt.Errorf("failed to insert supply quantity record: %w", err)
	}

	return supplyID, nil
}

func (sr *SupplyRepository) UpdateSupplyFields(tx *goqu.TxDatabase, supplyID int, fields goqu.Record) error {
	if len(fields) == 0 {
		return nil
	}

	result, err := tx.Update("supplies").
		Set(fields).
		Where(goqu.Ex{"id": supplyID}).
		Executor().Exec()
	if err != nil {
		return apperrors.FromDBError(err, "failed to update supply")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "Supply %d not found", supplyID)
	}

	return nil
}

// GetQuantityForUpdate takes a row-level lock on the quantity record. Every
// approval, claim, and void path must pass through here before reading
// available quantity, which is what serializes concurrent allocations on the
// same supply.
func (sr *SupplyRepository) GetQuantityForUpdate(tx *goqu.TxDatabase, supplyID int) (*models.SupplyQuantity, error) {
	var quantity models.SupplyQuantity
	found, err := tx.
		Select("supply_id", "current_quantity", "reserved_quantity", "minimum_threshold").
		From("supply_quantities").
		Where(goqu.Ex{"supply_id": supplyID}).
		ForUpdate(exp.Wait).
		Executor().ScanStruct(&quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to lock supply quantity row: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Supply %d has no quantity record", supplyID)
	}

	return &quantity, nil
}

// UpdateQuantities writes both buckets and keeps the supply's
// available_for_request flag in sync with current_quantity.
func (sr *SupplyRepository) UpdateQuantities(tx *goqu.TxDatabase, supplyID, current, reserved int) error {
	if reserved > current {
		return apperrors.Newf(apperrors.KindInsufficientStock,
			"reserved quantity %d would exceed current quantity %d", reserved, current)
	}

	if _, err := tx.Update("supply_quantities").
		Set(goqu.Record{
			"current_quantity":  current,
			"reserved_quantity": reserved,
		}).
		Where(goqu.Ex{"supply_id": supplyID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update supply quantities: %w", err)
	}

	if _, err := tx.Update("supplies").
		Set(goqu.Record{"available_for_request": current > 0}).
		Where(goqu.Ex{"id": supplyID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update supply availability flag: %w", err)
	}

	return nil
}

func (sr *SupplyRepository) UpdateThreshold(tx *goqu.TxDatabase, supplyID, threshold int) error {
	if threshold < 0 {
		return apperrors.InvalidInput("Minimum threshold cannot be negative")
	}

	if _, err := tx.Update("supply_quantities").
		Set(goqu.Record{"minimum_threshold": threshold}).
		Where(goqu.Ex{"supply_id": supplyID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update minimum threshold: %w", err)
	}

	return nil
}

func (sr *SupplyRepository) SetArchived(tx *goqu.TxDatabase, supplyID int, archived bool) error {
	if _, err := tx.Update("supplies").
		Set(goqu.Record{"is_archived": archived}).
		Where(goqu.Ex{"id": supplyID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update supply archive flag: %w", err)
	}

	return nil
}

// DeleteSupply removes the supply and its quantity record. Request items
// referencing the supply make the delete fail on the foreign key, which
// FromDBError surfaces as a conflict.
func (sr *SupplyRepository) DeleteSupply(tx *goqu.TxDatabase, supplyID int) error {
	if _, err := tx.Delete("supply_quantities").
		Where(goqu.Ex{"supply_id": supplyID}).
		Executor().Exec(); err != nil {
		return apperrors.FromDBError(err, "failed to delete supply quantity record")
	}

	result, err := tx.Delete("supplies").
		Where(goqu.Ex{"id": supplyID}).
		Executor().Exec()
	if err != nil {
		return apperrors.FromDBError(err, "failed to delete supply")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "Supply %d not found", supplyID)
	}

	return nil
}

func (sr *SupplyRepository) InsertBadStockReport(tx *goqu.TxDatabase, report models.BadStockReport) error {
	if _, err := tx.Insert("bad_stock_reports").Rows(goqu.Record{
		"supply_id":   report.SupplyID,
		"quantity":    report.Quantity,
		"reason":      report.Reason,
		"reported_by": report.ReportedBy,
	}).Executor().Exec(); err != nil {
		return fmt.Errorf("failed to insert bad stock report: %w", err)
	}

	return nil
}
