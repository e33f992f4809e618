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

func intPtr(v int) *int {
	return &v
}

type supplyServiceFixture struct {
	tx         *goqu.TxDatabase
	requests   *MockSupplyRequestStore
	supplies   *MockSupplyStock
	requesters *MockRequesterSource
	recorder   *MockRecorder
	bus        *MockNotifier
	arbiter    *MockArbiter
	service    *SupplyRequestService
}

func newSupplyServiceFixture() *supplyServiceFixture {
	f := &supplyServiceFixture{
		tx:         new(goqu.TxDatabase),
		requests:   new(MockSupplyRequestStore),
		supplies:   new(MockSupplyStock),
		requesters: new(MockRequesterSource),
		recorder:   new(MockRecorder),
		bus:        new(MockNotifier),
		arbiter:    new(MockArbiter),
	}
	f.service = &SupplyRequestService{
		db:         &stubTransactor{tx: f.tx},
		requests:   f.requests,
		supplies:   f.supplies,
		requesters: f.requesters,
		recorder:   f.recorder,
		bus:        f.bus,
		arbiter:    f.arbiter,
		metrics:    newTestMetrics(),
		loc:        time.UTC,
		log:        zap.NewNop(),
	}
	return f
}

func pendingSupplyBatch() *models.SupplyRequestBatch {
	return &models.SupplyRequestBatch{
		ID:     7,
		UserID: 3,
		Status: models.BatchStatusPending,
		Items: []models.SupplyRequestItem{
			{ID: 11, BatchID: 7, SupplyID: 31, Quantity: 5, Status: models.ItemStatusPending},
		},
	}
}

func TestSupplyRequestServiceApproveItem(t *testing.T) {
	t.Run("reserves stock under the row lock", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()

		f.arbiter.On("Check", 1, permissions.ApproveSupplyRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)
		f.supplies.On("GetQuantityForUpdate", f.tx, 31).
			Return(&models.SupplyQuantity{SupplyID: 31, CurrentQuantity: 10, ReservedQuantity: 0}, nil)
		f.supplies.On("UpdateQuantities", f.tx, 31, 10, 5).Return(nil)
		f.requests.On("UpdateItem", f.tx, 11, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusApproved && fields["approved_quantity"] == 5
		})).Return(nil)
		f.requests.On("UpdateBatch", f.tx, 7, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusForClaiming
		})).Return(nil)
		f.recorder.On("Record", f.tx, 1, "approve_supply_item", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "ok").Return(nil)

		err := f.service.ApproveItem(1, 7, 11, 5, "ok")

		assert.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.service.metrics.ItemsApproved.WithLabelValues("supply")))
		f.supplies.AssertExpectations(t)
		f.requests.AssertExpectations(t)
	})

	t.Run("approves at exact availability", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()

		f.arbiter.On("Check", 1, permissions.ApproveSupplyRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)
		f.supplies.On("GetQuantityForUpdate", f.tx, 31).
			Return(&models.SupplyQuantity{SupplyID: 31, CurrentQuantity: 10, ReservedQuantity: 5}, nil)
		f.supplies.On("UpdateQuantities", f.tx, 31, 10, 10).Return(nil)
		f.requests.On("UpdateItem", f.tx, 11, mock.Anything).Return(nil)
		f.requests.On("UpdateBatch", f.tx, 7, mock.Anything).Return(nil)
		f.recorder.On("Record", f.tx, 1, "approve_supply_item", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		err := f.service.ApproveItem(1, 7, 11, 5, "")

		assert.NoError(t, err)
		f.supplies.AssertExpectations(t)
	})

	t.Run("fails when a competing approval already holds the stock", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()

		f.arbiter.On("Check", 1, permissions.ApproveSupplyRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)
		f.supplies.On("GetQuantityForUpdate", f.tx, 31).
			Return(&models.SupplyQuantity{SupplyID: 31, CurrentQuantity: 10, ReservedQuantity: 6}, nil)

		err := f.service.ApproveItem(1, 7, 11, 5, "")

		assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientStock))
		f.supplies.AssertNotCalled(t, "UpdateQuantities", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 0.0, testutil.ToFloat64(f.service.metrics.ItemsApproved.WithLabelValues("supply")))
	})

	t.Run("re-approving an approved item is a no-op", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()
		batch.Items[0].Status = models.ItemStatusApproved
		batch.Items[0].ApprovedQuantity = intPtr(5)

		f.arbiter.On("Check", 1, permissions.ApproveSupplyRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)

		err := f.service.ApproveItem(1, 7, 11, 5, "")

		assert.NoError(t, err)
		f.supplies.AssertNotCalled(t, "GetQuantityForUpdate", mock.Anything, mock.Anything)
		assert.Equal(t, 0.0, testutil.ToFloat64(f.service.metrics.ItemsApproved.WithLabelValues("supply")))
	})

	t.Run("rejects approval on a terminal batch", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()
		batch.Status = models.BatchStatusVoided

		f.arbiter.On("Check", 1, permissions.ApproveSupplyRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)

		err := f.service.ApproveItem(1, 7, 11, 5, "")

		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
	})

	t.Run("denies callers without the approval permission", func(t *testing.T) {
		f := newSupplyServiceFixture()

		f.arbiter.On("Check", 9, permissions.ApproveSupplyRequest).
			Return(apperrors.PermissionDenied("You do not have permission to perform this action"))

		err := f.service.ApproveItem(9, 7, 11, 5, "")

		assert.True(t, apperrors.IsKind(err, apperrors.KindPermissionDenied))
		f.requests.AssertNotCalled(t, "GetBatchForUpdate", mock.Anything, mock.Anything)
	})
}

func TestSupplyRequestServiceRejectItem(t *testing.T) {
	t.Run("rejecting an approved item releases its hold", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()
		batch.Status = models.BatchStatusForClaiming
		batch.Items[0].Status = models.ItemStatusApproved
		batch.Items[0].ApprovedQuantity = intPtr(3)

		f.arbiter.On("Check", 1, permissions.ApproveSupplyRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)
		f.supplies.On("GetQuantityForUpdate", f.tx, 31).
			Return(&models.SupplyQuantity{SupplyID: 31, CurrentQuantity: 10, ReservedQuantity: 3}, nil)
		f.supplies.On("UpdateQuantities", f.tx, 31, 10, 0).Return(nil)
		f.requests.On("UpdateItem", f.tx, 11, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusRejected
		})).Return(nil)
		f.requests.On("UpdateBatch", f.tx, 7, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusRejected
		})).Return(nil)
		f.recorder.On("Record", f.tx, 1, "reject_supply_item", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "out of scope").Return(nil)

		err := f.service.RejectItem(1, 7, 11, "out of scope")

		assert.NoError(t, err)
		f.supplies.AssertExpectations(t)
	})

	t.Run("re-rejecting a rejected item is a no-op", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()
		batch.Items[0].Status = models.ItemStatusRejected

		f.arbiter.On("Check", 1, permissions.ApproveSupplyRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)

		err := f.service.RejectItem(1, 7, 11, "")

		assert.NoError(t, err)
		f.requests.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 0.0, testutil.ToFloat64(f.service.metrics.ItemsRejected.WithLabelValues("supply")))
	})
}

func TestSupplyRequestServiceClaim(t *testing.T) {
	t.Run("claiming deducts both buckets and completes the batch", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()
		batch.Status = models.BatchStatusForClaiming
		batch.Items[0].Status = models.ItemStatusApproved
		batch.Items[0].ApprovedQuantity = intPtr(5)

		f.arbiter.On("Check", 1, permissions.ApproveSupplyRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)
		f.requesters.On("GetRequester", 3).
			Return(&RequesterContact{ID: 3, Fullname: "Alice Reyes", Email: "alice@example.edu"}, nil)
		f.supplies.On("GetQuantityForUpdate", f.tx, 31).
			Return(&models.SupplyQuantity{SupplyID: 31, CurrentQuantity: 10, ReservedQuantity: 5}, nil)
		f.supplies.On("UpdateQuantities", f.tx, 31, 5, 0).Return(nil)
		f.requests.On("UpdateItem", f.tx, 11, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusCompleted
		})).Return(nil)
		f.recorder.On("RecordSupplyChange", f.tx, mock.MatchedBy(func(change models.SupplyHistory) bool {
			return change.SupplyID == 31 &&
				change.FieldName == "current_quantity" &&
				change.OldValue == "10" && change.NewValue == "5" &&
				change.Remarks == "Supply request by Alice Reyes (Batch #7)"
		})).Return(nil)
		f.requests.On("UpdateBatch", f.tx, 7, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusCompleted
		})).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)
		f.recorder.On("Record", f.tx, 1, "claim_supply_batch", mock.Anything, mock.Anything).Return(nil)

		err := f.service.ClaimBatch(1, 7)

		assert.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.service.metrics.BatchesClaimed.WithLabelValues("supply")))
		f.supplies.AssertExpectations(t)
		f.recorder.AssertExpectations(t)
	})

	t.Run("claiming can drain the stock to zero", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()
		batch.Status = models.BatchStatusForClaiming
		batch.Items[0].Status = models.ItemStatusApproved
		batch.Items[0].ApprovedQuantity = intPtr(5)

		f.arbiter.On("Check", 1, permissions.ApproveSupplyRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)
		f.requesters.On("GetRequester", 3).
			Return(&RequesterContact{ID: 3, Fullname: "Alice Reyes"}, nil)
		f.supplies.On("GetQuantityForUpdate", f.tx, 31).
			Return(&models.SupplyQuantity{SupplyID: 31, CurrentQuantity: 5, ReservedQuantity: 5}, nil)
		f.supplies.On("UpdateQuantities", f.tx, 31, 0, 0).Return(nil)
		f.requests.On("UpdateItem", f.tx, 11, mock.Anything).Return(nil)
		f.recorder.On("RecordSupplyChange", f.tx, mock.Anything).Return(nil)
		f.requests.On("UpdateBatch", f.tx, 7, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)
		f.recorder.On("Record", f.tx, 1, "claim_supply_batch", mock.Anything, mock.Anything).Return(nil)

		err := f.service.ClaimBatch(1, 7)

		assert.NoError(t, err)
		f.supplies.AssertExpectations(t)
	})

	t.Run("claiming a completed batch fails without touching stock", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()
		batch.Status = models.BatchStatusCompleted
		batch.Items[0].Status = models.ItemStatusCompleted

		f.arbiter.On("Check", 1, permissions.ApproveSupplyRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)

		err := f.service.ClaimBatch(1, 7)

		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
		f.supplies.AssertNotCalled(t, "GetQuantityForUpdate", mock.Anything, mock.Anything)
		assert.Equal(t, 0.0, testutil.ToFloat64(f.service.metrics.BatchesClaimed.WithLabelValues("supply")))
	})
}

func TestSupplyRequestServiceVoidBatch(t *testing.T) {
	t.Run("voiding releases holds, voids every item and emails the requester", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()
		batch.Status = models.BatchStatusForClaiming
		batch.Items[0].Status = models.ItemStatusApproved
		batch.Items[0].ApprovedQuantity = intPtr(3)
		batch.Items = append(batch.Items, models.SupplyRequestItem{
			ID: 12, BatchID: 7, SupplyID: 32, Quantity: 2, Status: models.ItemStatusRejected,
		})

		f.arbiter.On("Check", 1, permissions.VoidRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)
		f.supplies.On("GetQuantityForUpdate", f.tx, 31).
			Return(&models.SupplyQuantity{SupplyID: 31, CurrentQuantity: 10, ReservedQuantity: 3}, nil)
		f.supplies.On("UpdateQuantities", f.tx, 31, 10, 0).Return(nil)
		f.requests.On("UpdateAllItems", f.tx, 7, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.ItemStatusVoided
		})).Return(nil)
		f.requests.On("UpdateBatch", f.tx, 7, mock.MatchedBy(func(fields goqu.Record) bool {
			return fields["status"] == models.BatchStatusVoided && fields["remarks"] == "event cancelled"
		})).Return(nil)
		f.recorder.On("Record", f.tx, 1, "void_supply_batch", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "event cancelled").Return(nil)
		f.requesters.On("GetRequester", 3).
			Return(&RequesterContact{ID: 3, Fullname: "Alice Reyes", Email: "alice@example.edu"}, nil)
		f.bus.On("SendEmail", "alice@example.edu", "Supply request voided", mock.Anything).Return()

		err := f.service.VoidBatch(1, 7, "event cancelled")

		assert.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.service.metrics.BatchesVoided.WithLabelValues("supply")))
		f.supplies.AssertExpectations(t)
		f.bus.AssertExpectations(t)
	})

	t.Run("voiding a voided batch changes nothing", func(t *testing.T) {
		f := newSupplyServiceFixture()
		batch := pendingSupplyBatch()
		batch.Status = models.BatchStatusVoided

		f.arbiter.On("Check", 1, permissions.VoidRequest).Return(nil)
		f.requests.On("GetBatchForUpdate", f.tx, 7).Return(batch, nil)

		err := f.service.VoidBatch(1, 7, "double submit")

		assert.NoError(t, err)
		f.requests.AssertNotCalled(t, "UpdateAllItems", mock.Anything, mock.Anything, mock.Anything)
		f.bus.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 0.0, testutil.ToFloat64(f.service.metrics.BatchesVoided.WithLabelValues("supply")))
	})

	t.Run("voiding requires a reason", func(t *testing.T) {
		f := newSupplyServiceFixture()

		f.arbiter.On("Check", 1, permissions.VoidRequest).Return(nil)

		err := f.service.VoidBatch(1, 7, "  ")

		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
		f.requests.AssertNotCalled(t, "GetBatchForUpdate", mock.Anything, mock.Anything)
	})
}

func TestSupplyRequestServiceSubmit(t *testing.T) {
	supply := func() *models.Supply {
		return &models.Supply{
			ID:                  31,
			Name:                "Bond paper",
			AvailableForRequest: true,
			Quantity:            &models.SupplyQuantity{SupplyID: 31, CurrentQuantity: 10, ReservedQuantity: 0},
		}
	}

	t.Run("creates a pending batch and notifies the requester", func(t *testing.T) {
		f := newSupplyServiceFixture()

		f.supplies.On("GetSupply", 31).Return(supply(), nil)
		f.requests.On("InsertBatch", f.tx, mock.Anything).Return(7, nil)
		f.recorder.On("Record", f.tx, 3, "submit_supply_request", mock.Anything, mock.Anything).Return(nil)
		f.bus.On("NotifyTx", f.tx, 3, mock.Anything, "").Return(nil)

		batch, err := f.service.Submit(3, "Seminar handouts", []SupplyItemInput{{SupplyID: 31, Quantity: 5}})

		assert.NoError(t, err)
		assert.Equal(t, 7, batch.ID)
		assert.Equal(t, models.BatchStatusPending, batch.Status)
		assert.Equal(t, models.ItemStatusPending, batch.Items[0].Status)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.service.metrics.BatchesSubmitted.WithLabelValues("supply")))
	})

	t.Run("rejects an empty purpose", func(t *testing.T) {
		f := newSupplyServiceFixture()

		_, err := f.service.Submit(3, "  ", []SupplyItemInput{{SupplyID: 31, Quantity: 5}})

		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
	})

	t.Run("rejects a non-positive quantity", func(t *testing.T) {
		f := newSupplyServiceFixture()

		_, err := f.service.Submit(3, "Seminar handouts", []SupplyItemInput{{SupplyID: 31, Quantity: 0}})

		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
	})

	t.Run("rejects a supply closed to requests", func(t *testing.T) {
		f := newSupplyServiceFixture()
		closed := supply()
		closed.AvailableForRequest = false

		f.supplies.On("GetSupply", 31).Return(closed, nil)

		_, err := f.service.Submit(3, "Seminar handouts", []SupplyItemInput{{SupplyID: 31, Quantity: 5}})

		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
	})

	t.Run("rejects a quantity beyond availability", func(t *testing.T) {
		f := newSupplyServiceFixture()

		f.supplies.On("GetSupply", 31).Return(supply(), nil)

		_, err := f.service.Submit(3, "Seminar handouts", []SupplyItemInput{{SupplyID: 31, Quantity: 11}})

		assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientStock))
		f.requests.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
	})
}
