package allocation

import (
	"context"
	"time"

	"resourcehive/internal/activity"
	"resourcehive/internal/metrics"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

// stubTransactor hands the fake transaction straight to the closure so the
// service's transactional flow runs against mocks.
type stubTransactor struct {
	tx *goqu.TxDatabase
}

func (s *stubTransactor) InTransaction(fn func(tx *goqu.TxDatabase) error) error {
	return fn(s.tx)
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

type MockSupplyRequestStore struct {
	mock.Mock
}

func (m *MockSupplyRequestStore) InsertBatch(tx *goqu.TxDatabase, batch *models.SupplyRequestBatch) (int, error) {
	args := m.Called(tx, batch)
	return args.Int(0), args.Error(1)
}

func (m *MockSupplyRequestStore) GetBatch(batchID int) (*models.SupplyRequestBatch, error) {
	args := m.Called(batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SupplyRequestBatch), args.Error(1)
}

func (m *MockSupplyRequestStore) GetBatchForUpdate(tx *goqu.TxDatabase, batchID int) (*models.SupplyRequestBatch, error) {
	args := m.Called(tx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SupplyRequestBatch), args.Error(1)
}

func (m *MockSupplyRequestStore) ListBatches(userID int, status string) ([]models.SupplyRequestBatch, error) {
	args := m.Called(userID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SupplyRequestBatch), args.Error(1)
}

func (m *MockSupplyRequestStore) UpdateItem(tx *goqu.TxDatabase, itemID int, fields goqu.Record) error {
	args := m.Called(tx, itemID, fields)
	return args.Error(0)
}

func (m *MockSupplyRequestStore) UpdateAllItems(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	args := m.Called(tx, batchID, fields)
	return args.Error(0)
}

func (m *MockSupplyRequestStore) UpdateBatch(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	args := m.Called(tx, batchID, fields)
	return args.Error(0)
}

type MockBorrowRequestStore struct {
	mock.Mock
}

func (m *MockBorrowRequestStore) InsertBatch(tx *goqu.TxDatabase, batch *models.BorrowRequestBatch) (int, error) {
	args := m.Called(tx, batch)
	return args.Int(0), args.Error(1)
}

func (m *MockBorrowRequestStore) GetBatch(batchID int) (*models.BorrowRequestBatch, error) {
	args := m.Called(batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BorrowRequestBatch), args.Error(1)
}

func (m *MockBorrowRequestStore) GetBatchForUpdate(tx *goqu.TxDatabase, batchID int) (*models.BorrowRequestBatch, error) {
	args := m.Called(tx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BorrowRequestBatch), args.Error(1)
}

func (m *MockBorrowRequestStore) ListBatches(userID int, status string) ([]models.BorrowRequestBatch, error) {
	args := m.Called(userID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BorrowRequestBatch), args.Error(1)
}

func (m *MockBorrowRequestStore) ListActiveBatchesForReservation(tx *goqu.TxDatabase, reservationID int) ([]models.BorrowRequestBatch, error) {
	args := m.Called(tx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BorrowRequestBatch), args.Error(1)
}

func (m *MockBorrowRequestStore) ListOverdueCandidates(today time.Time) ([]OverdueCandidate, error) {
	args := m.Called(today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]OverdueCandidate), args.Error(1)
}

func (m *MockBorrowRequestStore) ListReminderCandidates() ([]ReminderCandidate, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ReminderCandidate), args.Error(1)
}

func (m *MockBorrowRequestStore) MarkItemsNotified(tx *goqu.TxDatabase, itemIDs []int) error {
	args := m.Called(tx, itemIDs)
	return args.Error(0)
}

func (m *MockBorrowRequestStore) UpdateItem(tx *goqu.TxDatabase, itemID int, fields goqu.Record) error {
	args := m.Called(tx, itemID, fields)
	return args.Error(0)
}

func (m *MockBorrowRequestStore) UpdateAllItems(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	args := m.Called(tx, batchID, fields)
	return args.Error(0)
}

func (m *MockBorrowRequestStore) UpdateBatch(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	args := m.Called(tx, batchID, fields)
	return args.Error(0)
}

type MockReservationStore struct {
	mock.Mock
}

func (m *MockReservationStore) InsertBatch(tx *goqu.TxDatabase, batch *models.ReservationBatch) (int, error) {
	args := m.Called(tx, batch)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationStore) GetBatch(batchID int) (*models.ReservationBatch, error) {
	args := m.Called(batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReservationBatch), args.Error(1)
}

func (m *MockReservationStore) GetBatchForUpdate(tx *goqu.TxDatabase, batchID int) (*models.ReservationBatch, error) {
	args := m.Called(tx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReservationBatch), args.Error(1)
}

func (m *MockReservationStore) ListBatches(userID int, status string) ([]models.ReservationBatch, error) {
	args := m.Called(userID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReservationBatch), args.Error(1)
}

func (m *MockReservationStore) ListBatchIDsWithItemsDue(now time.Time) ([]int, error) {
	args := m.Called(now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockReservationStore) ListBatchIDsWithItemsClosed(now time.Time) ([]int, error) {
	args := m.Called(now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockReservationStore) UpdateItem(tx *goqu.TxDatabase, itemID int, fields goqu.Record) error {
	args := m.Called(tx, itemID, fields)
	return args.Error(0)
}

func (m *MockReservationStore) UpdateAllItems(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	args := m.Called(tx, batchID, fields)
	return args.Error(0)
}

func (m *MockReservationStore) UpdateBatch(tx *goqu.TxDatabase, batchID int, fields goqu.Record) error {
	args := m.Called(tx, batchID, fields)
	return args.Error(0)
}

type MockSupplyStock struct {
	mock.Mock
}

func (m *MockSupplyStock) GetSupply(supplyID int) (*models.Supply, error) {
	args := m.Called(supplyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Supply), args.Error(1)
}

func (m *MockSupplyStock) GetQuantityForUpdate(tx *goqu.TxDatabase, supplyID int) (*models.SupplyQuantity, error) {
	args := m.Called(tx, supplyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SupplyQuantity), args.Error(1)
}

func (m *MockSupplyStock) UpdateQuantities(tx *goqu.TxDatabase, supplyID, current, reserved int) error {
	args := m.Called(tx, supplyID, current, reserved)
	return args.Error(0)
}

type MockPropertyStock struct {
	mock.Mock
}

func (m *MockPropertyStock) GetProperty(propertyID int) (*models.Property, error) {
	args := m.Called(propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyStock) GetForUpdate(tx *goqu.TxDatabase, propertyID int) (*models.Property, error) {
	args := m.Called(tx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyStock) UpdateQuantities(tx *goqu.TxDatabase, propertyID, quantity, reserved int) error {
	args := m.Called(tx, propertyID, quantity, reserved)
	return args.Error(0)
}

type MockRequesterSource struct {
	mock.Mock
}

func (m *MockRequesterSource) GetRequester(userID int) (*RequesterContact, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RequesterContact), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(tx *goqu.TxDatabase, userID int, action string, entity activity.Loggable, description string) error {
	args := m.Called(tx, userID, action, entity, description)
	return args.Error(0)
}

func (m *MockRecorder) RecordSupplyChange(tx *goqu.TxDatabase, change models.SupplyHistory) error {
	args := m.Called(tx, change)
	return args.Error(0)
}

func (m *MockRecorder) RecordPropertyChange(tx *goqu.TxDatabase, change models.PropertyHistory) error {
	args := m.Called(tx, change)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyTx(tx *goqu.TxDatabase, userID int, message, remarks string) error {
	args := m.Called(tx, userID, message, remarks)
	return args.Error(0)
}

func (m *MockNotifier) SendEmail(to, subject, body string) {
	m.Called(to, subject, body)
}

func (m *MockNotifier) SendEmailBlocking(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func (m *MockNotifier) SendSMSBlocking(ctx context.Context, phone, message string) error {
	args := m.Called(ctx, phone, message)
	return args.Error(0)
}

type MockArbiter struct {
	mock.Mock
}

func (m *MockArbiter) Check(userID int, codename string) error {
	args := m.Called(userID, codename)
	return args.Error(0)
}
