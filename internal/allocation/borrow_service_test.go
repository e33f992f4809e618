package allocation

import (
	"context"
	"errors"
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

type borrowServiceFixture struct {
	tx           *goqu.TxDatabase
	requests     *MockBorrowRequestStore
	reservations *MockReservationStore
	properties   *MockPropertyStock
	requesters   *MockRequesterSource
	recorder     *MockRecorder
	bus          *MockNotifier
	arbiter      *MockArbiter
	service      *BorrowRequestService
}

func newBorrowServiceFixture() *borrowServiceFixture {
	f := &borrowServiceFixture{
		tx:           new(goqu.TxDatabase),
		requests:     new(MockBorrowRequestStore),
		reservations: new(MockReservationStore),
		properties:   new(MockPropertyStock),
		requesters:   new(MockRequesterSource),
		recorder:     new(MockRecorder),
		bus:          new(MockNotifier),
		arbiter:      new(MockArbiter),
	}
	f.service = &BorrowRequestService{
		db:           &stubTransactor{tx: f.tx},
		requests:     f.requests,
		reservations: f.reservations,
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

func projector(quantity, reserved int) *models.Property {
	return &models.Property{
		ID:               41,
		Name:             "Projector",
		Quantity:         quantity,
		ReservedQuantity: reserved,
		Condition:        models.ConditionGood,
		Availability:     models.AvailabilityAvailable,
	}
}

func TestBorrowRequestServiceClaimBatch(t *testing.T) {
	t.Run("claiming consumes the hold and activates the items", func(t *testing.T) {
		f := newBorrowServiceFixture()
		batch := &models.BorrowRequestBatch{
			ID:     7,
			UserID: 3,
			Status: models.BatchStatusForClaiming,
			Items: []models.BorrowRequestItem{
				{ID: 13, BatchID: 7, PropertyID: 41, Quantity: 2, ApprovedQuantity: intPtr(2),
					ReturnDate: time.Now().AddDate(0, 0, 7), Status: models.ItemStatusApproved},
			},
		}

		f.arbiter.On("Check", 1, permissions.ApproveBorrowRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)
		f.requesters.On("GetRequester", 3).
			Return(&RequesterContact{ID: 3, Fullname: "Alice Reyes"}, nil)
		f.properties.On("GetForUpdate", f.tx, 41).Return(projector(5, 2), nil)
		f.properties.On("UpdateQuantities", f.tx, 41, 3, 0).Return(nil)
		f.requests.On("UpdateItem", f.tx, 13, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusActive
		})).Return(nil)
		f.recorder.On("RecordPropertyChange", f.tx, mock.MatchedBy(func(change models.PropertyHistory) bool {
			return change.PropertyID == 41 && change.OldValue == "5" && change.NewValue == "3"
		})).Return(nil)
		f.requests.On("UpdateBatch", f.tx, 7, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusActive
		})).Return(nil)
		f.recorder.On("Record", f.tx, 1, "claim_borrow_batch", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		err := f.service.ClaimBatch(1, 7)

		assert.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.service.metrics.BatchesClaimed.WithLabelValues("borrow")))
		f.properties.AssertExpectations(t)
	})

	t.Run("claiming a pending batch fails", func(t *testing.T) {
		f := newBorrowServiceFixture()
		batch := &models.BorrowRequestBatch{ID: 7, UserID: 3, Status: models.BatchStatusPending}

		f.arbiter.On("Check", 1, permissions.ApproveBorrowRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)

		err := f.service.ClaimBatch(1, 7)

		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
		assert.Equal(t, 0.0, testutil.ToFloat64(f.service.metrics.BatchesClaimed.WithLabelValues("borrow")))
	})
}

func TestBorrowRequestServiceReturnBatch(t *testing.T) {
	t.Run("full return restocks units and completes the source reservation", func(t *testing.T) {
		f := newBorrowServiceFixture()
		reservationID := 9
		batch := &models.BorrowRequestBatch{
			ID:                  7,
			UserID:              3,
			Status:              models.BatchStatusActive,
			SourceReservationID: &reservationID,
			Items: []models.BorrowRequestItem{
				{ID: 13, BatchID: 7, PropertyID: 41, Quantity: 2, ApprovedQuantity: intPtr(2),
					ReturnDate: time.Now().AddDate(0, 0, 3), Status: models.ItemStatusActive},
			},
		}
		reservation := &models.ReservationBatch{
			ID:     9,
			UserID: 3,
			Status: models.BatchStatusActive,
			Items: []models.ReservationItem{
				{ID: 21, BatchID: 9, PropertyID: 41, Quantity: 2, Status: models.ItemStatusActive},
			},
		}

		f.arbiter.On("Check", 1, permissions.ApproveBorrowRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)
		f.requesters.On("GetRequester", 3).
			Return(&RequesterContact{ID: 3, Fullname: "Alice Reyes"}, nil)

		// Units come back first, then the cascade re-reads the property to
		// release the reservation's hold.
		f.properties.On("GetForUpdate", f.tx, 41).Return(projector(3, 2), nil).Once()
		f.properties.On("UpdateQuantities", f.tx, 41, 5, 2).Return(nil).Once()
		f.requests.On("UpdateItem", f.tx, 13, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusReturned
		})).Return(nil)
		f.recorder.On("RecordPropertyChange", f.tx, mock.MatchedBy(func(change models.PropertyHistory) bool {
			return change.PropertyID == 41 && change.OldValue == "3" && change.NewValue == "5"
		})).Return(nil)
		f.requests.On("UpdateBatch", f.tx, 7, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusReturned
		})).Return(nil)
		f.recorder.On("Record", f.tx, 1, "return_borrow_batch", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(reservation, nil)
		f.properties.On("GetForUpdate", f.tx, 41).Return(projector(5, 2), nil).Once()
		f.properties.On("UpdateQuantities", f.tx, 41, 5, 0).Return(nil).Once()
		f.reservations.On("UpdateItem", f.tx, 21, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusCompleted
		})).Return(nil)
		f.reservations.On("UpdateBatch", f.tx, 9, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusCompleted
		})).Return(nil)
		f.recorder.On("Record", f.tx, 1, "complete_reservation", mock.Anything, mock.Anything).Return(nil)

		err := f.service.ReturnBatch(1, 7)

		assert.NoError(t, err)
		f.properties.AssertExpectations(t)
		f.reservations.AssertExpectations(t)
	})

	t.Run("cascade clamps the released hold at zero", func(t *testing.T) {
		f := newBorrowServiceFixture()
		reservation := &models.ReservationBatch{
			ID:     9,
			UserID: 3,
			Status: models.BatchStatusActive,
			Items: []models.ReservationItem{
				{ID: 21, BatchID: 9, PropertyID: 41, Quantity: 3, Status: models.ItemStatusActive},
			},
		}

		f.reservations.On("GetBatchForUpdate", f.tx, 9).Return(reservation, nil)
		f.properties.On("GetForUpdate", f.tx, 41).Return(projector(5, 1), nil)
		f.properties.On("UpdateQuantities", f.tx, 41, 5, 0).Return(nil)
		f.reservations.On("UpdateItem", f.tx, 21, mock.Anything).Return(nil)
		f.reservations.On("UpdateBatch", f.tx, 9, mock.Anything).Return(nil)
		f.recorder.On("Record", f.tx, 1, "complete_reservation", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		err := f.service.completeSourceReservation(f.tx, 1, 9)

		assert.NoError(t, err)
		f.properties.AssertExpectations(t)
	})

	t.Run("returning a pending batch fails", func(t *testing.T) {
		f := newBorrowServiceFixture()
		batch := &models.BorrowRequestBatch{ID: 7, UserID: 3, Status: models.BatchStatusPending}

		f.arbiter.On("Check", 1, permissions.ApproveBorrowRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)

		err := f.service.ReturnBatch(1, 7)

		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
	})
}

func TestBorrowRequestServiceVoidBatch(t *testing.T) {
	t.Run("voiding a voided batch changes nothing", func(t *testing.T) {
		f := newBorrowServiceFixture()
		batch := &models.BorrowRequestBatch{ID: 7, UserID: 3, Status: models.BatchStatusVoided}

		f.arbiter.On("Check", 1, permissions.VoidRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)

		err := f.service.VoidBatch(1, 7, "double submit")

		assert.NoError(t, err)
		f.requests.AssertNotCalled(t, "UpdateAllItems", mock.Anything, mock.Anything, mock.Anything)
		f.bus.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 0.0, testutil.ToFloat64(f.service.metrics.BatchesVoided.WithLabelValues("borrow")))
	})
}

func TestBorrowRequestServiceSweepOverdue(t *testing.T) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	candidate := OverdueCandidate{
		ItemID:           13,
		BatchID:          7,
		UserID:           3,
		PropertyID:       41,
		PropertyName:     "Projector",
		ApprovedQuantity: 2,
		ReturnDate:       yesterday,
		UserFullname:     "Alice Reyes",
		UserPhone:        "09171234567",
	}
	overdueBatch := func() *models.BorrowRequestBatch {
		return &models.BorrowRequestBatch{
			ID:     7,
			UserID: 3,
			Status: models.BatchStatusActive,
			Items: []models.BorrowRequestItem{
				{ID: 13, BatchID: 7, PropertyID: 41, Quantity: 2, ApprovedQuantity: intPtr(2),
					ReturnDate: yesterday, Status: models.ItemStatusActive},
			},
		}
	}

	t.Run("marks past-due items and records the notification after a send", func(t *testing.T) {
		f := newBorrowServiceFixture()
		now := time.Now().UTC()

		f.requests.On("ListOverdueCandidates", dateOnly(now)).Return([]OverdueCandidate{candidate}, nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(overdueBatch(), nil)
		f.requests.On("UpdateItem", f.tx, 13, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusOverdue
		})).Return(nil)
		f.requests.On("UpdateBatch", f.tx, 7, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusOverdue
		})).Return(nil)
		f.recorder.On("Record", f.tx, 3, "mark_overdue", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)
		f.bus.On("SendSMSBlocking", mock.Anything, "09171234567", mock.Anything).Return(nil)
		f.requests.On("MarkItemsNotified", f.tx, []int{13}).Return(nil)

		result, err := f.service.SweepOverdue(context.Background(), now)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.ItemsMarked)
		assert.Equal(t, 1, result.UsersNotified)
		assert.Equal(t, 0, result.SendFailures)
		f.requests.AssertExpectations(t)
	})

	t.Run("a failed SMS leaves the item unnotified for the next sweep", func(t *testing.T) {
		f := newBorrowServiceFixture()
		now := time.Now().UTC()

		f.requests.On("ListOverdueCandidates", dateOnly(now)).Return([]OverdueCandidate{candidate}, nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(overdueBatch(), nil)
		f.requests.On("UpdateItem", f.tx, 13, mock.Anything).Return(nil)
		f.requests.On("UpdateBatch", f.tx, 7, mock.Anything).Return(nil)
		f.recorder.On("Record", f.tx, 3, "mark_overdue", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)
		f.bus.On("SendSMSBlocking", mock.Anything, "09171234567", mock.Anything).
			Return(errors.New("gateway timeout"))

		result, err := f.service.SweepOverdue(context.Background(), now)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.ItemsMarked)
		assert.Equal(t, 0, result.UsersNotified)
		assert.Equal(t, 1, result.SendFailures)
		f.requests.AssertNotCalled(t, "MarkItemsNotified", mock.Anything, mock.Anything)
	})

	t.Run("skips borrowers without a phone number", func(t *testing.T) {
		f := newBorrowServiceFixture()
		now := time.Now().UTC()
		noPhone := candidate
		noPhone.UserPhone = ""

		f.requests.On("ListOverdueCandidates", dateOnly(now)).Return([]OverdueCandidate{noPhone}, nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(overdueBatch(), nil)
		f.requests.On("UpdateItem", f.tx, 13, mock.Anything).Return(nil)
		f.requests.On("UpdateBatch", f.tx, 7, mock.Anything).Return(nil)
		f.recorder.On("Record", f.tx, 3, "mark_overdue", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		result, err := f.service.SweepOverdue(context.Background(), now)

		assert.NoError(t, err)
		assert.Equal(t, 0, result.UsersNotified)
		f.bus.AssertNotCalled(t, "SendSMSBlocking", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBorrowRequestServiceSendDueReminders(t *testing.T) {
	t.Run("sends once per day and advances the marker on success", func(t *testing.T) {
		f := newBorrowServiceFixture()
		now := time.Now().UTC()
		due := ReminderCandidate{
			ItemID:       13,
			BatchID:      7,
			RequestDate:  now.AddDate(0, 0, -9),
			ReturnDate:   now.AddDate(0, 0, 1),
			PropertyName: "Projector",
			UserFullname: "Alice Reyes",
			UserEmail:    "alice@example.edu",
		}
		alreadySent := due
		alreadySent.ItemID = 14
		sentOn := dateOnly(now)
		alreadySent.ReminderSentOn = &sentOn

		f.requests.On("ListReminderCandidates").Return([]ReminderCandidate{due, alreadySent}, nil)
		f.bus.On("SendEmailBlocking", mock.Anything, "alice@example.edu", "Return reminder", mock.Anything).
			Return(nil).Once()
		f.requests.On("UpdateItem", f.tx, 13, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["reminder_sent_on"] == dateOnly(now)
		})).Return(nil)

		result, err := f.service.SendDueReminders(context.Background(), now)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Sent)
		assert.Equal(t, 1, result.Skipped)
		f.bus.AssertExpectations(t)
	})
}

func TestBorrowRequestServiceSubmit(t *testing.T) {
	t.Run("stamps the request date in the configured timezone", func(t *testing.T) {
		f := newBorrowServiceFixture()
		f.service.loc = time.FixedZone("UTC+8", 8*3600)

		f.properties.On("GetProperty", 41).Return(projector(5, 0), nil)
		f.requests.On("InsertBatch", f.tx, mock.Anything).Return(7, nil)
		f.recorder.On("Record", f.tx, 3, "submit_borrow_request", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		batch, err := f.service.Submit(3, "Film showing", []BorrowItemInput{
			{PropertyID: 41, Quantity: 2, ReturnDate: time.Now().AddDate(0, 0, 7)},
		}, 0)

		assert.NoError(t, err)
		_, offset := batch.RequestDate.Zone()
		assert.Equal(t, 8*3600, offset)
	})

	t.Run("rejects a return date before today", func(t *testing.T) {
		f := newBorrowServiceFixture()

		_, err := f.service.Submit(3, "Film showing", []BorrowItemInput{
			{PropertyID: 41, Quantity: 2, ReturnDate: time.Now().AddDate(0, 0, -2)},
		}, 0)

		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
		f.requests.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
	})

	t.Run("rejects converting someone else's reservation", func(t *testing.T) {
		f := newBorrowServiceFixture()
		reservation := &models.ReservationBatch{ID: 9, UserID: 8, Status: models.BatchStatusActive}

		f.reservations.On("GetBatch", 9).Return(reservation, nil)

		_, err := f.service.Submit(3, "Film showing", []BorrowItemInput{
			{PropertyID: 41, Quantity: 2, ReturnDate: time.Now().AddDate(0, 0, 7)},
		}, 9)

		assert.True(t, apperrors.IsKind(err, apperrors.KindPermissionDenied))
	})
}
