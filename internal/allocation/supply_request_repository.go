package allocation

import (
	"fmt"

	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

type SupplyRequestRepository struct {
	r *repository.Repository
}

func NewSupplyRequestRepository(r *repository.Repository) *SupplyRequestRepository {
	return &SupplyRequestRepository{r: r}
}

func (rr *SupplyRequestRepository) InsertBatch(tx *goqu.TxDatabase, batch *models.SupplyRequestBatch) (int, error) {
	var batchID int
	if _, err := tx.Insert("supply_request_batches").Rows(goqu.Record{
		"user_id":      batch.UserID,
		"purpose":      batch.Purpose,
		"request_date": batch.RequestDate,
		"status":       batch.Status,
		"remarks":      batch.Remarks,
	}).Returning("id").Executor().ScanVal(&batchID); err != nil {
		return 0, apperrors.FromDBError(err, "failed to insert supply request batch")
	}

	for i := range batch.Items {
		item := &batch.Items[i]
		if _, err := tx.Insert("supply_request_items").Rows(goqu.Record{
			"batch_id":  batchID,
			"supply_id": item.SupplyID,
			"quantity":  item.Quantity,
			"status":    item.Status,
			"remarks":   item.Remarks,
		}).Returning("id").Executor().ScanVal(&item.ID); err != nil {
			return 0, apperrors.FromDBError(err, "failed to insert supply request item")
		}
		item.BatchID = batchID
	}

	return batchID, nil
}

func (rr *SupplyRequestRepository) GetBatch(batchID int) (*models.SupplyRequestBatch, error) {
	var batch models.SupplyRequestBatch
	found, err := rr.r.GoquDBWrapper.
		Select("id", "user_id", "purpose", "request_date", "approved_date", "approved_by",
			"claimed_date", "claimed_by", "completed_date", "status", "remarks").
		From("supply_request_batches").
		Where(goqu.Ex{"id": batchID}).
		Executor().ScanStruct(&batch)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement for supply request batch: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Supply request batch %d not found", batchID)
	}

	if err := rr.r.GoquDBWrapper.
		Select("id", "batch_id", "supply_id", "quantity", "approved_quantity", "claimed_date", "status", "remarks").
		From("supply_request_items").
		Where(goqu.Ex{"batch_id": batchID}).
		Order(goqu.C("id").Asc()).
		Executor().ScanStructs(&batch.Items); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for supply request items: %w", err)
	}

	return &batch, nil
}

// GetBatchForUpdate locks the batch row for the duration of the transaction,
// serializing decisions against claims and voids on the same batch.
func (rr *SupplyRequestRepository) GetBatchForUpdate(tx *goqu.TxDatabase, batchID int) (*models.SupplyRequestBatch, error) {
	var batch models.SupplyRequestBatch
	found, err := tx.
		Select("id", "user_id", "purpose", "request_date", "approved_date", "approved_by",
			"claimed_date", "claimed_by", "completed_date", "status", "remarks").
		From("supply_request_batches").
		Where(goqu.Ex{"id": batchID}).
		ForUpdate(exp.Wait).
		Executor().ScanStruct(&batch)
	if err != nil {
		return nil, fmt.Errorf("failed to lock supply request batch: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Supply request batch %d not found", batchID)
	}

	if err := tx.
		Select("id", "batch_id", "supply_id", "quantity", "approved_quantity", "claimed_date", "status", "remarks").
		From("supply_request_items").
		Where(goqu.Ex{"batch_id": batchID}).
		Order(goqu.C("id").Asc()).
		Executor().ScanStructs(&batch.Items); err != nil {
		return nil, fmt.Errorf("failed to load supply request items: %w", err)
	}

	return &batch, nil
}

func (rr *SupplyRequestRepository) ListBatches(userID int, status string) ([]models.SupplyRequestBatch, error) {
	query := rr.r.GoquDBWrapper.
		Select("id", "user_id", "purpose", "request_date", "approved_date", "approved_by",
			"claimed_date", "claimed_by", "completed_date", "status", "remarks").
		From("supply_request_batches").
		Order(goqu.C("request_date").Desc())
	if userID > 0 {
		query = query.Where(goqu.Ex{"user_id": userID})
	}
	if status != "" {
		query = query.Where(goqu.Ex{"status": status})
	}

	var batches []models.SupplyRequestBatch
	if err := query.Executor().ScanStructs(&batches); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for supply request batches: %w", err)
	}

	return batches, nil
}

func (rr *SupplyRequestRepository) UpdateItem(tx *goqu.TxDatabase, itemID int, fields goqu.Record) error {
	if _, err := tx.Update("supply_request_items").
		Set(fields).
		Where(goqu.Ex{"id": itemID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update supply request item: %w", err)
	}

	return nil
}

func (rr *SupplyRequestRepository) UpdateAllItems(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	if _, err := tx.Update("supply_request_items").
		Set(fields).
		Where(goqu.Ex{"batch_id": batchID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update supply request items: %w", err)
	}

	return nil
}

func (rr *SupplyRequestRepository) UpdateBatch(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	if len(fields) == 0 {
		return nil
	}
	if _, err := tx.Update("supply_request_batches").
		Set(fields).
		Where(goqu.Ex{"id": batchID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update supply request batch: %w", err)
	}

	return nil
}
