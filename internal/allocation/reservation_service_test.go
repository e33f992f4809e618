package allocation

import (
	"testing"
	"time"

	"resourcehive/internal/permissions"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type reservationServiceFixture struct {
	tx           *goqu.TxDatabase
	reservations *MockReservationStore
	borrows      *MockBorrowRequestStore
	properties   *MockPropertyStock
	requesters   *MockRequesterSource
	recorder     *MockRecorder
	bus          *MockNotifier
	arbiter      *MockArbiter
	service      *ReservationService
}

func newReservationServiceFixture() *reservationServiceFixture {
	f := &reservationServiceFixture{
		tx:           new(goqu.TxDatabase),
		reservations: new(MockReservationStore),
		borrows:      new(MockBorrowRequestStore),
		properties:   new(MockPropertyStock),
		requesters:   new(MockRequesterSource),
		recorder:     new(MockRecorder),
		bus:          new(MockNotifier),
		arbiter:      new(MockArbiter),
	}
	f.service = &ReservationService{
		db:           &stubTransactor{tx: f.tx},
		reservations: f.reservations,
		borrows:      f.borrows,
		properties:   f.properties,
		requesters:   f.requesters,
		recorder:     f.recorder,
		bus:          f.bus,
		arbiter:      f.arbiter,
		metrics:      newTestMetrics(),
		loc:          time.UTC,
		log:          zap.NewNop(),
	}
	return f
}

func pendingReservationBatch() *models.ReservationBatch {
	return &models.ReservationBatch{
		ID:     9,
		UserID: 3,
		Status: models.BatchStatusPending,
		Items: []models.ReservationItem{
			{ID: 21, BatchID: 9, PropertyID: 41, Quantity: 3,
				NeededDate: time.Now().UTC().AddDate(0, 0, 2),
				ReturnDate: time.Now().UTC().AddDate(0, 0, 5),
				Status:     models.ItemStatusPending},
		},
	}
}

func TestReservationServiceApproveItem(t *testing.T) {
	t.Run("holds the full requested quantity", func(t *testing.T) {
		f := newReservationServiceFixture()
		batch := pendingReservationBatch()

		f.arbiter.On("Check", 1, permissions.ApproveReservation).Return(nil)
		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(batch, nil)
		f.properties.On("GetForUpdate", f.tx, 41).Return(projector(10, 0), nil)
		f.properties.On("UpdateQuantities", f.tx, 41, 10, 3).Return(nil)
		f.reservations.On("UpdateItem", f.tx, 21, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusApproved
		})).Return(nil)
		f.reservations.On("UpdateBatch", f.tx, 9, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusApproved
		})).Return(nil)
		f.recorder.On("Record", f.tx, 1, "approve_reservation_item", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		err := f.service.ApproveItem(1, 9, 21, "")

		assert.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.service.metrics.ItemsApproved.WithLabelValues("reservation")))
		f.properties.AssertExpectations(t)
	})

	t.Run("fails when the window cannot be covered", func(t *testing.T) {
		f := newReservationServiceFixture()
		batch := pendingReservationBatch()

		f.arbiter.On("Check", 1, permissions.ApproveReservation).Return(nil)
		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(batch, nil)
		f.properties.On("GetForUpdate", f.tx, 41).Return(projector(5, 3), nil)

		err := f.service.ApproveItem(1, 9, 21, "")

		assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientStock))
		f.properties.AssertNotCalled(t, "UpdateQuantities", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("re-approving an approved item is a no-op", func(t *testing.T) {
		f := newReservationServiceFixture()
		batch := pendingReservationBatch()
		batch.Items[0].Status = models.ItemStatusApproved

		f.arbiter.On("Check", 1, permissions.ApproveReservation).Return(nil)
		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(batch, nil)

		err := f.service.ApproveItem(1, 9, 21, "")

		assert.NoError(t, err)
		f.properties.AssertNotCalled(t, "GetForUpdate", mock.Anything, mock.Anything)
		assert.Equal(t, 0.0, testutil.ToFloat64(f.service.metrics.ItemsApproved.WithLabelValues("reservation")))
	})
}

func TestReservationServiceVoidBatch(t *testing.T) {
	t.Run("releases every hold and voids the items", func(t *testing.T) {
		f := newReservationServiceFixture()
		batch := pendingReservationBatch()
		batch.Status = models.BatchStatusApproved
		batch.Items[0].Status = models.ItemStatusApproved

		f.arbiter.On("Check", 1, permissions.VoidRequest).Return(nil)
		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(batch, nil)
		f.properties.On("GetForUpdate", f.tx, 41).Return(projector(10, 3), nil)
		f.properties.On("UpdateQuantities", f.tx, 41, 10, 0).Return(nil)
		f.reservations.On("UpdateAllItems", f.tx, 9, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusVoided
		})).Return(nil)
		f.reservations.On("UpdateBatch", f.tx, 9, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusVoided
		})).Return(nil)
		f.recorder.On("Record", f.tx, 1, "void_reservation_batch", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "venue changed").Return(nil)
		f.requesters.On("GetRequester", 3).
			Return(&RequesterContact{ID: 3, Fullname: "Alice Reyes", Email: "alice@example.edu"}, nil)
		f.bus.On("SendEmail", "alice@example.edu", "Reservation voided", mock.Anything).Return()

		err := f.service.VoidBatch(1, 9, "venue changed")

		assert.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.service.metrics.BatchesVoided.WithLabelValues("reservation")))
		f.properties.AssertExpectations(t)
	})

	t.Run("voiding a voided reservation changes nothing", func(t *testing.T) {
		f := newReservationServiceFixture()
		batch := pendingReservationBatch()
		batch.Status = models.BatchStatusVoided

		f.arbiter.On("Check", 1, permissions.VoidRequest).Return(nil)
		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(batch, nil)

		err := f.service.VoidBatch(1, 9, "double submit")

		assert.NoError(t, err)
		f.reservations.AssertNotCalled(t, "UpdateAllItems", mock.Anything, mock.Anything, mock.Anything)
		f.bus.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 0.0, testutil.ToFloat64(f.service.metrics.BatchesVoided.WithLabelValues("reservation")))
	})
}

func TestReservationServiceActivateDue(t *testing.T) {
	t.Run("opens windows whose needed date has arrived", func(t *testing.T) {
		f := newReservationServiceFixture()
		now := time.Now().UTC()
		batch := pendingReservationBatch()
		batch.Status = models.BatchStatusApproved
		batch.Items[0].Status = models.ItemStatusApproved
		batch.Items[0].NeededDate = now.AddDate(0, 0, -1)

		f.reservations.On("ListBatchIDsWithItemsDue", dateOnly(now)).Return([]int{9}, nil)
		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(batch, nil)
		f.reservations.On("UpdateItem", f.tx, 21, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusActive
		})).Return(nil)
		f.reservations.On("UpdateBatch", f.tx, 9, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusActive
		})).Return(nil)
		f.recorder.On("Record", f.tx, 3, "activate_reservation", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		result, err := f.service.ActivateDue(now)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.ItemsActivated)
		f.reservations.AssertExpectations(t)
	})

	t.Run("leaves future windows untouched", func(t *testing.T) {
		f := newReservationServiceFixture()
		now := time.Now().UTC()
		batch := pendingReservationBatch()
		batch.Status = models.BatchStatusApproved
		batch.Items[0].Status = models.ItemStatusApproved

		f.reservations.On("ListBatchIDsWithItemsDue", dateOnly(now)).Return([]int{9}, nil)
		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(batch, nil)

		result, err := f.service.ActivateDue(now)

		assert.NoError(t, err)
		assert.Equal(t, 0, result.ItemsActivated)
		f.reservations.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReservationServiceExpireClosed(t *testing.T) {
	t.Run("releases the hold of an unconverted window", func(t *testing.T) {
		f := newReservationServiceFixture()
		now := time.Now().UTC()
		batch := pendingReservationBatch()
		batch.Status = models.BatchStatusActive
		batch.Items[0].Status = models.ItemStatusActive
		batch.Items[0].ReturnDate = now.AddDate(0, 0, -1)

		f.reservations.On("ListBatchIDsWithItemsClosed", dateOnly(now)).Return([]int{9}, nil)
		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(batch, nil)
		f.borrows.On("ListActiveBatchesForReservation", f.tx, 9).Return([]models.BorrowRequestBatch{}, nil)
		f.properties.On("GetForUpdate", f.tx, 41).Return(projector(10, 3), nil)
		f.properties.On("UpdateQuantities", f.tx, 41, 10, 0).Return(nil)
		f.reservations.On("UpdateItem", f.tx, 21, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusExpired
		})).Return(nil)
		f.reservations.On("UpdateBatch", f.tx, 9, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusExpired
		})).Return(nil)
		f.recorder.On("Record", f.tx, 3, "expire_reservation", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		result, err := f.service.ExpireClosed(now)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.ItemsExpired)
		f.properties.AssertExpectations(t)
	})

	t.Run("clamps the released hold at zero", func(t *testing.T) {
		f := newReservationServiceFixture()
		now := time.Now().UTC()
		batch := pendingReservationBatch()
		batch.Status = models.BatchStatusActive
		batch.Items[0].Status = models.ItemStatusActive
		batch.Items[0].ReturnDate = now.AddDate(0, 0, -1)

		f.reservations.On("ListBatchIDsWithItemsClosed", dateOnly(now)).Return([]int{9}, nil)
		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(batch, nil)
		f.borrows.On("ListActiveBatchesForReservation", f.tx, 9).Return([]models.BorrowRequestBatch{}, nil)
		f.properties.On("GetForUpdate", f.tx, 41).Return(projector(10, 1), nil)
		f.properties.On("UpdateQuantities", f.tx, 41, 10, 0).Return(nil)
		f.reservations.On("UpdateItem", f.tx, 21, mock.Anything).Return(nil)
		f.reservations.On("UpdateBatch", f.tx, 9, mock.Anything).Return(nil)
		f.recorder.On("Record", f.tx, 3, "expire_reservation", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		_, err := f.service.ExpireClosed(now)

		assert.NoError(t, err)
		f.properties.AssertExpectations(t)
	})

	t.Run("leaves windows consumed by a live borrow to the return cascade", func(t *testing.T) {
		f := newReservationServiceFixture()
		now := time.Now().UTC()
		batch := pendingReservationBatch()
		batch.Status = models.BatchStatusActive
		batch.Items[0].Status = models.ItemStatusActive
		batch.Items[0].ReturnDate = now.AddDate(0, 0, -1)

		f.reservations.On("ListBatchIDsWithItemsClosed", dateOnly(now)).Return([]int{9}, nil)
		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(batch, nil)
		f.borrows.On("ListActiveBatchesForReservation", f.tx, 9).
			Return([]models.BorrowRequestBatch{{ID: 7, Status: models.BatchStatusActive}}, nil)

		result, err := f.service.ExpireClosed(now)

		assert.NoError(t, err)
		assert.Equal(t, 0, result.ItemsExpired)
		f.reservations.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything, mock.Anything)
		f.properties.AssertNotCalled(t, "UpdateQuantities", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReservationServiceSubmit(t *testing.T) {
	t.Run("rejects a needed date before today", func(t *testing.T) {
		f := newReservationServiceFixture()

		_, err := f.service.Submit(3, "Orientation", []ReservationItemInput{
			{PropertyID: 41, Quantity: 2,
				NeededDate: time.Now().AddDate(0, 0, -2),
				ReturnDate: time.Now().AddDate(0, 0, 5)},
		})

		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
	})

	t.Run("rejects a return date before the needed date", func(t *testing.T) {
		f := newReservationServiceFixture()

		_, err := f.service.Submit(3, "Orientation", []ReservationItemInput{
			{PropertyID: 41, Quantity: 2,
				NeededDate: time.Now().AddDate(0, 0, 5),
				ReturnDate: time.Now().AddDate(0, 0, 2)},
		})

		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
	})

	t.Run("stamps the request date in the configured timezone", func(t *testing.T) {
		f := newReservationServiceFixture()
		f.service.loc = time.FixedZone("UTC+8", 8*3600)

		f.properties.On("GetProperty", 41).Return(projector(10, 0), nil)
		f.reservations.On("InsertBatch", f.tx, mock.Anything).Return(9, nil)
		f.recorder.On("Record", f.tx, 3, "submit_reservation", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		batch, err := f.service.Submit(3, "Orientation", []ReservationItemInput{
			{PropertyID: 41, Quantity: 2,
				NeededDate: time.Now().AddDate(0, 0, 2),
				ReturnDate: time.Now().AddDate(0, 0, 5)},
		})

		assert.NoError(t, err)
		_, offset := batch.RequestDate.Zone()
		assert.Equal(t, 8*3600, offset)
	})
}
