package allocation

import (
	"fmt"
	"time"

	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

type ReservationRepository struct {
	r *repository.Repository
}

func NewReservationRepository(r *repository.Repository) *ReservationRepository {
	return &ReservationRepository{r: r}
}

func (rr *ReservationRepository) InsertBatch(tx *goqu.TxDatabase, batch *models.ReservationBatch) (int, error) {
	var batchID int
	if _, err := tx.Insert("reservation_batches").Rows(goqu.Record{
		"user_id":      batch.UserID,
		"purpose":      batch.Purpose,
		"request_date": batch.RequestDate,
		"status":       batch.Status,
		"remarks":      batch.Remarks,
	}).Returning("id").Executor().ScanVal(&batchID); err != nil {
		return 0, apperrors.FromDBError(err, "failed to insert reservation batch")
	}

	for i := range batch.Items {
		item := &batch.Items[i]
		if _, err := tx.Insert("reservation_items").Rows(goqu.Record{
			"batch_id":    batchID,
			"property_id": item.PropertyID,
			"quantity":    item.Quantity,
			"needed_date": item.NeededDate,
			"return_date": item.ReturnDate,
			"status":      item.Status,
			"remarks":     item.Remarks,
		}).Returning("id").Executor().ScanVal(&item.ID); err != nil {
			return 0, apperrors.FromDBError(err, "failed to insert reservation item")
		}
		item.BatchID = batchID
	}

	return batchID, nil
}

func (rr *ReservationRepository) GetBatch(batchID int) (*models.ReservationBatch, error) {
	var batch models.ReservationBatch
	found, err := rr.r.GoquDBWrapper.
		Select("id", "user_id", "purpose", "request_date", "approved_date", "approved_by", "status", "remarks").
		From("reservation_batches").
		Where(goqu.Ex{"id": batchID}).
		Executor().ScanStruct(&batch)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement for reservation batch: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Reservation batch %d not found", batchID)
	}

	if err := rr.r.GoquDBWrapper.
		Select("id", "batch_id", "property_id", "quantity", "needed_date", "return_date", "status", "remarks").
		From("reservation_items").
		Where(goqu.Ex{"batch_id": batchID}).
		Order(goqu.C("id").Asc()).
		Executor().ScanStructs(&batch.Items); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for reservation items: %w", err)
	}

	return &batch, nil
}

func (rr *ReservationRepository) GetBatchForUpdate(tx *goqu.TxDatabase, batchID int) (*models.ReservationBatch, error) {
	var batch models.ReservationBatch
	found, err := tx.
		Select("id", "user_id", "purpose", "request_date", "approved_date", "approved_by", "status", "remarks").
		From("reservation_batches").
		Where(goqu.Ex{"id": batchID}).
		ForUpdate(exp.Wait).
		Executor().ScanStruct(&batch)
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservation batch: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Reservation batch %d not found", batchID)
	}

	if err := tx.
		Select("id", "batch_id", "property_id", "quantity", "needed_date", "return_date", "status", "remarks").
		From("reservation_items").
		Where(goqu.Ex{"batch_id": batchID}).
		Order(goqu.C("id").Asc()).
		Executor().ScanStructs(&batch.Items); err != nil {
		return nil, fmt.Errorf("failed to load reservation items: %w", err)
	}

	return &batch, nil
}

func (rr *ReservationRepository) ListBatches(userID int, status string) ([]models.ReservationBatch, error) {
	query := rr.r.GoquDBWrapper.
		Select("id", "user_id", "purpose", "request_date", "approved_date", "approved_by", "status", "remarks").
		From("reservation_batches").
		Order(goqu.C("request_date").Desc())
	if userID > 0 {
		query = query.Where(goqu.Ex{"user_id": userID})
	}
	if status != "" {
		query = query.Where(goqu.Ex{"status": status})
	}

	var batches []models.ReservationBatch
	if err := query.Executor().ScanStructs(&batches); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for reservation batches: %w", err)
	}

	return batches, nil
}

// ListBatchIDsWithItemsDue finds batches holding approved items whose window
// has opened, for scheduler activation.
func (rr *ReservationRepository) ListBatchIDsWithItemsDue(now time.Time) ([]int, error) {
	var ids []int
	query := rr.r.GoquDBWrapper.
		Select(goqu.DISTINCT("batch_id")).
		From("reservation_items").
		Where(goqu.Ex{"status": models.ItemStatusApproved}).
		Where(goqu.C("needed_date").Lte(now))

	if err := query.Executor().ScanVals(&ids); err != nil {
		return nil, fmt.Errorf("failed to list reservations due for activation: %w", err)
	}

	return ids, nil
}

// ListBatchIDsWithItemsClosed finds batches holding active items whose window
// has closed, for scheduler expiry.
func (rr *ReservationRepository) ListBatchIDsWithItemsClosed(now time.Time) ([]int, error) {
	var ids []int
	query := rr.r.GoquDBWrapper.
		Select(goqu.DISTINCT("batch_id")).
		From("reservation_items").
		Where(goqu.Ex{"status": models.ItemStatusActive}).
		Where(goqu.C("return_date").Lt(now))

	if err := query.Executor().ScanVals(&ids); err != nil {
		return nil, fmt.Errorf("failed to list reservations due for expiry: %w", err)
	}

	return ids, nil
}

func (rr *ReservationRepository) UpdateItem(tx *goqu.TxDatabase, itemID int, fields goqu.Record) error {
	if _, err := tx.Update("reservation_items").
		Set(fields).
		Where(goqu.Ex{"id": itemID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update reservation item: %w", err)
	}

	return nil
}

func (rr *ReservationRepository) UpdateAllItems(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	if _, err := tx.Update("reservation_items").
		Set(fields).
		Where(goqu.Ex{"batch_id": batchID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update reservation items: %w", err)
	}

	return nil
}

func (rr *ReservationRepository) UpdateBatch(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	if len(fields) == 0 {
		return nil
	}
	if _, err := tx.Update("reservation_batches").
		Set(fields).
		Where(goqu.Ex{"id": batchID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update reservation batch: %w", err)
	}

	return nil
}
