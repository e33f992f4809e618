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

type BorrowRequestRepository struct {
	r *repository.Repository
}

func NewBorrowRequestRepository(r *repository.Repository) *BorrowRequestRepository {
	return &BorrowRequestRepository{r: r}
}

func (rr *BorrowRequestRepository) batchSelect() *goqu.SelectDataset {
	return rr.r.GoquDBWrapper.
		Select("id", "user_id", "purpose", "request_date", "approved_date", "approved_by",
			"claimed_date", "claimed_by", "returned_date", "completed_date", "status",
			"remarks", "source_reservation_id").
		From("borrow_request_batches")
}

func (rr *BorrowRequestRepository) InsertBatch(tx *goqu.TxDatabase, batch *models.BorrowRequestBatch) (int, error) {
	record := goqu.Record{
		"user_id":      batch.UserID,
		"purpose":      batch.Purpose,
		"request_date": batch.RequestDate,
		"status":       batch.Status,
		"remarks":      batch.Remarks,
	}
	if batch.SourceReservationID != nil {
		record["source_reservation_id"] = *batch.SourceReservationID
	}

	var batchID int
	if _, err := tx.Insert("borrow_request_batches").Rows(record).
		Returning("id").Executor().ScanVal(&batchID); err != nil {
		return 0, apperrors.FromDBError(err, "failed to insert borrow request batch")
	}

	for i := range batch.Items {
		item := &batch.Items[i]
		if _, err := tx.Insert("borrow_request_items").Rows(goqu.Record{
			"batch_id":         batchID,
			"property_id":      item.PropertyID,
			"quantity":         item.Quantity,
			"return_date":      item.ReturnDate,
			"status":           item.Status,
			"overdue_notified": false,
			"remarks":          item.Remarks,
		}).Returning("id").Executor().ScanVal(&item.ID); err != nil {
			return 0, apperrors.FromDBError(err, "failed to insert borrow request item")
		}
		item.BatchID = batchID
	}

	return batchID, nil
}

func (rr *BorrowRequestRepository) GetBatch(batchID int) (*models.BorrowRequestBatch, error) {
	var batch models.BorrowRequestBatch
	found, err := rr.batchSelect().
		Where(goqu.Ex{"id": batchID}).
		Executor().ScanStruct(&batch)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement for borrow request batch: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Borrow request batch %d not found", batchID)
	}

	if err := rr.r.GoquDBWrapper.
		Select("id", "batch_id", "property_id", "quantity", "approved_quantity", "return_date",
			"actual_return_date", "claimed_date", "status", "overdue_notified", "reminder_sent_on", "remarks").
		From("borrow_request_items").
		Where(goqu.Ex{"batch_id": batchID}).
		Order(goqu.C("id").Asc()).
		Executor().ScanStructs(&batch.Items); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for borrow request items: %w", err)
	}

	return &batch, nil
}

func (rr *BorrowRequestRepository) GetBatchForUpdate(tx *goqu.TxDatabase, batchID int) (*models.BorrowRequestBatch, error) {
	var batch models.BorrowRequestBatch
	found, err := tx.
		Select("id", "user_id", "purpose", "request_date", "approved_date", "approved_by",
			"claimed_date", "claimed_by", "returned_date", "completed_date", "status",
			"remarks", "source_reservation_id").
		From("borrow_request_batches").
		Where(goqu.Ex{"id": batchID}).
		ForUpdate(exp.Wait).
		Executor().ScanStruct(&batch)
	if err != nil {
		return nil, fmt.Errorf("failed to lock borrow request batch: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Borrow request batch %d not found", batchID)
	}

	if err := tx.
		Select("id", "batch_id", "property_id", "quantity", "approved_quantity", "return_date",
			"actual_return_date", "claimed_date", "status", "overdue_notified", "reminder_sent_on", "remarks").
		From("borrow_request_items").
		Where(goqu.Ex{"batch_id": batchID}).
		Order(goqu.C("id").Asc()).
		Executor().ScanStructs(&batch.Items); err != nil {
		return nil, fmt.Errorf("failed to load borrow request items: %w", err)
	}

	return &batch, nil
}

func (rr *BorrowRequestRepository) ListBatches(userID int, status string) ([]models.BorrowRequestBatch, error) {
	query := rr.batchSelect().Order(goqu.C("request_date").Desc())
	if userID > 0 {
		query = query.Where(goqu.Ex{"user_id": userID})
	}
	if status != "" {
		query = query.Where(goqu.Ex{"status": status})
	}

	var batches []models.BorrowRequestBatch
	if err := query.Executor().ScanStructs(&batches); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for borrow request batches: %w", err)
	}

	return batches, nil
}

// ListActiveBatchesForReservation finds live borrows converted from a
// reservation, used to decide whether an expiring window was consumed.
func (rr *BorrowRequestRepository) ListActiveBatchesForReservation(tx *goqu.TxDatabase, reservationID int) ([]models.BorrowRequestBatch, error) {
	var batches []models.BorrowRequestBatch
	if err := tx.
		Select("id", "user_id", "purpose", "request_date", "approved_date", "approved_by",
			"claimed_date", "claimed_by", "returned_date", "completed_date", "status",
			"remarks", "source_reservation_id").
		From("borrow_request_batches").
		Where(goqu.Ex{"source_reservation_id": reservationID}).
		Where(goqu.C("status").NotIn(models.BatchStatusRejected, models.BatchStatusVoided)).
		Executor().ScanStructs(&batches); err != nil {
		return nil, fmt.Errorf("failed to list borrows for reservation: %w", err)
	}

	return batches, nil
}

// OverdueCandidate joins item, batch, property, and borrower for the sweep.
type OverdueCandidate struct {
	ItemID           int       `db:"item_id"`
	BatchID          int       `db:"batch_id"`
	UserID           int       `db:"user_id"`
	PropertyID       int       `db:"property_id"`
	PropertyName     string    `db:"property_name"`
	ApprovedQuantity int       `db:"approved_quantity"`
	ReturnDate       time.Time `db:"return_date"`
	OverdueNotified  bool      `db:"overdue_notified"`
	UserFullname     string    `db:"user_fullname"`
	UserPhone        string    `db:"user_phone"`
}

// ListOverdueCandidates returns active items whose return date has passed,
// plus already-overdue items still awaiting a successful notification.
func (rr *BorrowRequestRepository) ListOverdueCandidates(today time.Time) ([]OverdueCandidate, error) {
	var candidates []OverdueCandidate
	query := rr.r.GoquDBWrapper.
		Select(
			goqu.I("i.id").As("item_id"),
			goqu.I("i.batch_id").As("batch_id"),
			goqu.I("b.user_id").As("user_id"),
			goqu.I("i.property_id").As("property_id"),
			goqu.I("p.property_name").As("property_name"),
			goqu.I("i.approved_quantity").As("approved_quantity"),
			goqu.I("i.return_date").As("return_date"),
			goqu.I("i.overdue_notified").As("overdue_notified"),
			goqu.I("u.fullname").As("user_fullname"),
			goqu.I("u.phone").As("user_phone"),
		).
		From(goqu.T("borrow_request_items").As("i")).
		Join(goqu.T("borrow_request_batches").As("b"), goqu.On(goqu.Ex{"b.id": goqu.I("i.batch_id")})).
		Join(goqu.T("properties").As("p"), goqu.On(goqu.Ex{"p.id": goqu.I("i.property_id")})).
		Join(goqu.T("users").As("u"), goqu.On(goqu.Ex{"u.id": goqu.I("b.user_id")})).
		Where(
			goqu.Or(
				goqu.And(
					goqu.I("i.status").Eq(models.ItemStatusActive),
					goqu.I("i.return_date").Lt(today),
				),
				goqu.And(
					goqu.I("i.status").Eq(models.ItemStatusOverdue),
					goqu.I("i.overdue_notified").IsFalse(),
				),
			),
		).
		Order(goqu.I("b.user_id").Asc(), goqu.I("i.id").Asc())

	if err := query.Executor().ScanStructs(&candidates); err != nil {
		return nil, fmt.Errorf("failed to list overdue candidates: %w", err)
	}

	return candidates, nil
}

// ReminderCandidate carries what the near-overdue email needs.
type ReminderCandidate struct {
	ItemID         int        `db:"item_id"`
	BatchID        int        `db:"batch_id"`
	RequestDate    time.Time  `db:"request_date"`
	ReturnDate     time.Time  `db:"return_date"`
	ReminderSentOn *time.Time `db:"reminder_sent_on"`
	PropertyName   string     `db:"property_name"`
	UserFullname   string     `db:"user_fullname"`
	UserEmail      string     `db:"user_email"`
}

func (rr *BorrowRequestRepository) ListReminderCandidates() ([]ReminderCandidate, error) {
	var candidates []ReminderCandidate
	query := rr.r.GoquDBWrapper.
		Select(
			goqu.I("i.id").As("item_id"),
			goqu.I("i.batch_id").As("batch_id"),
			goqu.I("b.request_date").As("request_date"),
			goqu.I("i.return_date").As("return_date"),
			goqu.I("i.reminder_sent_on").As("reminder_sent_on"),
			goqu.I("p.property_name").As("property_name"),
			goqu.I("u.fullname").As("user_fullname"),
			goqu.I("u.email").As("user_email"),
		).
		From(goqu.T("borrow_request_items").As("i")).
		Join(goqu.T("borrow_request_batches").As("b"), goqu.On(goqu.Ex{"b.id": goqu.I("i.batch_id")})).
		Join(goqu.T("properties").As("p"), goqu.On(goqu.Ex{"p.id": goqu.I("i.property_id")})).
		Join(goqu.T("users").As("u"), goqu.On(goqu.Ex{"u.id": goqu.I("b.user_id")})).
		Where(goqu.I("i.status").Eq(models.ItemStatusActive)).
		Order(goqu.I("i.id").Asc())

	if err := query.Executor().ScanStructs(&candidates); err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}

	return candidates, nil
}

// MarkItemsNotified records a successful overdue SMS so the next sweep does
// not resend for the same items.
func (rr *BorrowRequestRepository) MarkItemsNotified(tx *goqu.TxDatabase, itemIDs []int) error {
	if len(itemIDs) == 0 {
		return nil
	}
	if _, err := tx.Update("borrow_request_items").
		Set(goqu.Record{"overdue_notified": true}).
		Where(goqu.C("id").In(itemIDs)).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to mark items notified: %w", err)
	}

	return nil
}

func (rr *BorrowRequestRepository) UpdateItem(tx *goqu.TxDatabase, itemID int, fields goqu.Record) error {
	if _, err := tx.Update("borrow_request_items").
		Set(fields).
		Where(goqu.Ex{"id": itemID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update borrow request item: %w", err)
	}

	return nil
}

func (rr *BorrowRequestRepository) UpdateAllItems(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	if _, err := tx.Update("borrow_request_items").
		Set(fields).
		Where(goqu.Ex{"batch_id": batchID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update borrow request items: %w", err)
	}

	return nil
}

func (rr *BorrowRequestRepository) UpdateBatch(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	if len(fields) == 0 {
		return nil
	}
	if _, err := tx.Update("borrow_request_batches").
		Set(fields).
		Where(goqu.Ex{"id": batchID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update borrow request batch: %w", err)
	}

	return nil
}
