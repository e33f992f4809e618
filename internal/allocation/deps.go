package allocation

import (
	"context"
	"time"

	"resourcehive/internal/activity"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

// The services talk to their collaborators through these interfaces. The
// container wires in the concrete repositories; service tests substitute
// testify mocks.

type transactor interface {
	InTransaction(fn func(tx *goqu.TxDatabase) error) error
}

type supplyRequestStore interface {
	InsertBatch(tx *goqu.TxDatabase, batch *models.SupplyRequestBatch) (int, error)
	GetBatch(batchID int) (*models.SupplyRequestBatch, error)
	GetBatchForUpdate(tx *goqu.TxDatabase, batchID int) (*models.SupplyRequestBatch, error)
	ListBatches(userID int, status string) ([]models.SupplyRequestBatch, error)
	UpdateItem(tx *goqu.TxDatabase, itemID int, fields goqu.Record) error
	UpdateAllItems(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error
	UpdateBatch(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error
}

type borrowRequestStore interface {
	InsertBatch(tx *goqu.TxDatabase, batch *models.BorrowRequestBatch) (int, error)
	GetBatch(batchID int) (*models.BorrowRequestBatch, error)
	GetBatchForUpdate(tx *goqu.TxDatabase, batchID int) (*models.BorrowRequestBatch, error)
	ListBatches(userID int, status string) ([]models.BorrowRequestBatch, error)
	ListActiveBatchesForReservation(tx *goqu.TxDatabase, reservationID int) ([]models.BorrowRequestBatch, error)
	ListOverdueCandidates(today time.Time) ([]OverdueCandidate, error)
	ListReminderCandidates() ([]ReminderCandidate, error)
	MarkItemsNotified(tx *goqu.TxDatabase, itemIDs []int) error
	UpdateItem(tx *goqu.TxDatabase, itemID int, fields goqu.Record) error
	UpdateAllItems(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error
	UpdateBatch(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error
}

type reservationStore interface {
	InsertBatch(tx *goqu.TxDatabase, batch *models.ReservationBatch) (int, error)
	GetBatch(batchID int) (*models.ReservationBatch, error)
	GetBatchForUpdate(tx *goqu.TxDatabase, batchID int) (*models.ReservationBatch, error)
	ListBatches(userID int, status string) ([]models.ReservationBatch, error)
	ListBatchIDsWithItemsDue(now time.Time) ([]int, error)
	ListBatchIDsWithItemsClosed(now time.Time) ([]int, error)
	UpdateItem(tx *goqu.TxDatabase, itemID int, fields goqu.Record) error
	UpdateAllItems(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error
	UpdateBatch(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error
}

type supplyStock interface {
	GetSupply(supplyID int) (*models.Supply, error)
	GetQuantityForUpdate(tx *goqu.TxDatabase, supplyID int) (*models.SupplyQuantity, error)
	UpdateQuantities(tx *goqu.TxDatabase, supplyID, current, reserved int) error
}

type propertyStock interface {
	GetProperty(propertyID int) (*models.Property, error)
	GetForUpdate(tx *goqu.TxDatabase, propertyID int) (*models.Property, error)
	UpdateQuantities(tx *goqu.TxDatabase, propertyID, quantity, reserved int) error
}

type requesterSource interface {
	GetRequester(userID int) (*RequesterContact, error)
}

type auditRecorder interface {
	Record(tx *goqu.TxDatabase, userID int, action string, entity activity.Loggable, description string) error
	RecordSupplyChange(tx *goqu.TxDatabase, change models.SupplyHistory) error
	RecordPropertyChange(tx *goqu.TxDatabase, change models.PropertyHistory) error
}

type notifier interface {
	NotifyTx(tx *goqu.TxDatabase, userID int, message, remarks string) error
	SendEmail(to, subject, body string)
	SendEmailBlocking(ctx context.Context, to, subject, body string) error
	SendSMSBlocking(ctx context.Context, phone, message string) error
}

type permissionChecker interface {
	Check(userID int, codename string) error
}
