package allocation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"resourcehive/internal/activity"
	"resourcehive/internal/inventory"
	"resourcehive/internal/metrics"
	"resourcehive/internal/notify"
	"resourcehive/internal/permissions"
	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"
)

type SupplyItemInput struct {
	SupplyID int `json:"supply_id" binding:"required"`
	Quantity int `json:"quantity" binding:"required"`
}

// SupplyRequestService drives the consume-stock lifecycle:
// pending -> approved -> claimed (completed), with reject and void branches.
type SupplyRequestService struct {
	db         transactor
	requests   supplyRequestStore
	supplies   supplyStock
	requesters requesterSource
	recorder   auditRecorder
	bus        notifier
	arbiter    permissionChecker
	metrics    *metrics.Metrics
	loc        *time.Location
	log        *zap.Logger
}

func NewSupplyRequestService(
	r *repository.Repository,
	requests *SupplyRequestRepository,
	supplies *inventory.SupplyRepository,
	recorder *activity.Recorder,
	bus *notify.Bus,
	arbiter *permissions.Arbiter,
	m *metrics.Metrics,
	loc *time.Location,
	log *zap.Logger,
) *SupplyRequestService {
	return &SupplyRequestService{
		db:         r,
		requests:   requests,
		supplies:   supplies,
		requesters: NewRequesterRepository(r),
		recorder:   recorder,
		bus:        bus,
		arbiter:    arbiter,
		metrics:    m,
		loc:        loc,
		log:        log,
	}
}

// Submit creates a pending batch. Quantities are checked against available
// stock for feasibility feedback only; nothing is reserved until approval.
func (s *SupplyRequestService) Submit(userID int, purpose string, items []SupplyItemInput) (*models.SupplyRequestBatch, error) {
	if strings.TrimSpace(purpose) == "" {
		return nil, apperrors.InvalidInput("Purpose is required")
	}
	if len(items) == 0 {
		return nil, apperrors.InvalidInput("At least one item is required")
	}

	batch := &models.SupplyRequestBatch{
		UserID:      userID,
		Purpose:     purpose,
		RequestDate: time.Now().In(s.loc),
		Status:      models.BatchStatusPending,
	}

	for _, input := range items {
		if input.Quantity <= 0 {
			return nil, apperrors.InvalidInput("Quantity must be greater than zero")
		}

		supply, err := s.supplies.GetSupply(input.SupplyID)
		if err != nil {
			return nil, err
		}
		if supply.IsArchived || !supply.AvailableForRequest {
			return nil, apperrors.Newf(apperrors.KindInvalidInput, "%s is not available for request", supply.Name)
		}
		if available := supply.Quantity.AvailableQuantity(); input.Quantity > available {
			return nil, apperrors.Newf(apperrors.KindInsufficientStock,
				"Only %d unit(s) of %s available", available, supply.Name)
		}

		batch.Items = append(batch.Items, models.SupplyRequestItem{
			SupplyID: input.SupplyID,
			Quantity: input.Quantity,
			Status:   models.ItemStatusPending,
		})
	}

	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batchID, err := s.requests.InsertBatch(tx, batch)
		if err != nil {
			return err
		}
		batch.ID = batchID

		description := fmt.Sprintf("Submitted supply request with %d item(s): %s", len(batch.Items), purpose)
		if err := s.recorder.Record(tx, userID, "submit_supply_request", batch, description); err != nil {
			return err
		}

		return s.bus.NotifyTx(tx, userID,
			fmt.Sprintf("Your supply request (Batch #%d) has been submitted and is awaiting approval.", batchID), "")
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BatchesSubmitted.WithLabelValues("supply").Inc()
	return batch, nil
}

// ApproveItem reserves stock for one item. The stock check happens under a
// row lock on the supply's quantity record, which serializes concurrent
// approvals on the same supply.
func (s *SupplyRequestService) ApproveItem(actorID, batchID, itemID, approvedQty int, remarks string) error {
	if err := s.arbiter.Check(actorID, permissions.ApproveSupplyRequest); err != nil {
		return err
	}

	approved := false
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batch, err := s.requests.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if models.IsTerminalBatchStatus(batch.Status) {
			return apperrors.Newf(apperrors.KindInvalidTransition, "Batch #%d is already %s", batchID, batch.Status)
		}

		item, err := findSupplyItem(batch, itemID)
		if err != nil {
			return err
		}
		if item.Status == models.ItemStatusApproved {
			return nil
		}
		if item.Status != models.ItemStatusPending {
			return apperrors.Newf(apperrors.KindInvalidTransition, "Item is %s and cannot be approved", item.Status)
		}
		if approvedQty < 1 || approvedQty > item.Quantity {
			return apperrors.Newf(apperrors.KindInvalidInput,
				"Approved quantity must be between 1 and %d", item.Quantity)
		}

		quantity, err := s.supplies.GetQuantityForUpdate(tx, item.SupplyID)
		if err != nil {
			return err
		}
		if available := quantity.AvailableQuantity(); approvedQty > available {
			return apperrors.Newf(apperrors.KindInsufficientStock,
				"Only %d unit(s) available for supply %d", available, item.SupplyID)
		}

		if err := s.supplies.UpdateQuantities(tx, item.SupplyID,
			quantity.CurrentQuantity, quantity.ReservedQuantity+approvedQty); err != nil {
			return err
		}

		if err := s.requests.UpdateItem(tx, item.ID, goqu.Record{
			"status":            models.ItemStatusApproved,
			"approved_quantity": approvedQty,
			"remarks":           remarks,
		}); err != nil {
			return err
		}
		item.Status = models.ItemStatusApproved
		item.ApprovedQuantity = &approvedQty

		batchFields := goqu.Record{}
		if batch.ApprovedDate == nil {
			now := time.Now().In(s.loc)
			batchFields["approved_date"] = now
			batchFields["approved_by"] = actorID
		}
		if newStatus := RecomputeSupplyBatchStatus(CountSupplyItems(batch.Items)); newStatus != batch.Status {
			batchFields["status"] = newStatus
		}
		if err := s.requests.UpdateBatch(tx, batchID, batchFields); err != nil {
			return err
		}

		description := fmt.Sprintf("Approved %d unit(s) of supply %d on batch #%d", approvedQty, item.SupplyID, batchID)
		if err := s.recorder.Record(tx, actorID, "approve_supply_item", batch, description); err != nil {
			return err
		}

		approved = true
		return s.bus.NotifyTx(tx, batch.UserID,
			fmt.Sprintf("An item on your supply request (Batch #%d) was approved for %d unit(s).", batchID, approvedQty),
			remarks)
	})
	if err != nil {
		return err
	}

	if approved {
		s.metrics.ItemsApproved.WithLabelValues("supply").Inc()
	}
	return nil
}

// RejectItem marks one item rejected. Rejecting a previously approved item
// releases its reservation.
func (s *SupplyRequestService) RejectItem(actorID, batchID, itemID int, remarks string) error {
	if err := s.arbiter.Check(actorID, permissions.ApproveSupplyRequest); err != nil {
		return err
	}

	rejected := false
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batch, err := s.requests.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if models.IsTerminalBatchStatus(batch.Status) {
			return apperrors.Newf(apperrors.KindInvalidTransition, "Batch #%d is already %s", batchID, batch.Status)
		}

		item, err := findSupplyItem(batch, itemID)
		if err != nil {
			return err
		}
		if item.Status == models.ItemStatusRejected {
			return nil
		}
		if item.Status != models.ItemStatusPending && item.Status != models.ItemStatusApproved {
			return apperrors.Newf(apperrors.KindInvalidTransition, "Item is %s and cannot be rejected", item.Status)
		}

		if item.Status == models.ItemStatusApproved && item.ApprovedQuantity != nil {
			quantity, err := s.supplies.GetQuantityForUpdate(tx, item.SupplyID)
			if err != nil {
				return err
			}
			if err := s.supplies.UpdateQuantities(tx, item.SupplyID,
				quantity.CurrentQuantity, quantity.ReservedQuantity-*item.ApprovedQuantity); err != nil {
				return err
			}
		}

		if err := s.requests.UpdateItem(tx, item.ID, goqu.Record{
			"status":            models.ItemStatusRejected,
			"approved_quantity": nil,
			"remarks":           remarks,
		}); err != nil {
			return err
		}
		item.Status = models.ItemStatusRejected
		item.ApprovedQuantity = nil

		if newStatus := RecomputeSupplyBatchStatus(CountSupplyItems(batch.Items)); newStatus != batch.Status {
			if err := s.requests.UpdateBatch(tx, batchID, goqu.Record{"status": newStatus}); err != nil {
				return err
			}
		}

		description := fmt.Sprintf("Rejected supply %d on batch #%d", item.SupplyID, batchID)
		if err := s.recorder.Record(tx, actorID, "reject_supply_item", batch, description); err != nil {
			return err
		}

		rejected = true
		return s.bus.NotifyTx(tx, batch.UserID,
			fmt.Sprintf("An item on your supply request (Batch #%d) was rejected.", batchID), remarks)
	})
	if err != nil {
		return err
	}

	if rejected {
		s.metrics.ItemsRejected.WithLabelValues("supply").Inc()
	}
	return nil
}

// ClaimBatch hands every approved item over. Each item's reservation is
// realized as a deduction under the supply's row lock. Already-claimed items
// are skipped, so retrying a claim is safe.
func (s *SupplyRequestService) ClaimBatch(actorID, batchID int) error {
	return s.claim(actorID, batchID, 0)
}

func (s *SupplyRequestService) ClaimItem(actorID, batchID, itemID int) error {
	return s.claim(actorID, batchID, itemID)
}

func (s *SupplyRequestService) claim(actorID, batchID, onlyItemID int) error {
	if err := s.arbiter.Check(actorID, permissions.ApproveSupplyRequest); err != nil {
		return err
	}

	claimed := 0
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batch, err := s.requests.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status != models.BatchStatusForClaiming {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"Batch #%d is %s; only batches awaiting claiming can be claimed", batchID, batch.Status)
		}

		requester, err := s.requesters.GetRequester(batch.UserID)
		if err != nil {
			return err
		}

		for i := range batch.Items {
			item := &batch.Items[i]
			if onlyItemID > 0 && item.ID != onlyItemID {
				continue
			}
			if item.Status == models.ItemStatusCompleted || item.Status == models.ItemStatusRejected {
				continue
			}
			if item.Status != models.ItemStatusApproved {
				return apperrors.Newf(apperrors.KindInvalidTransition, "Item is %s and cannot be claimed", item.Status)
			}

			if err := s.claimItemTx(tx, actorID, batch, item, requester.Fullname); err != nil {
				return err
			}
			claimed++
		}

		if onlyItemID > 0 && claimed == 0 {
			if _, err := findSupplyItem(batch, onlyItemID); err != nil {
				return err
			}
		}

		counts := CountSupplyItems(batch.Items)
		if nonRejected := counts.NonRejected(); nonRejected > 0 && counts.Completed == nonRejected {
			now := time.Now().In(s.loc)
			if err := s.requests.UpdateBatch(tx, batchID, goqu.Record{
				"status":         models.BatchStatusCompleted,
				"claimed_by":     actorID,
				"claimed_date":   now,
				"completed_date": now,
			}); err != nil {
				return err
			}
			if err := s.bus.NotifyTx(tx, batch.UserID,
				fmt.Sprintf("Your supply request (Batch #%d) has been claimed and completed.", batchID), ""); err != nil {
				return err
			}
		}

		if claimed > 0 {
			description := fmt.Sprintf("Claimed %d item(s) on supply request batch #%d", claimed, batchID)
			if err := s.recorder.Record(tx, actorID, "claim_supply_batch", batch, description); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if claimed > 0 {
		s.metrics.BatchesClaimed.WithLabelValues("supply").Inc()
	}
	return nil
}

func (s *SupplyRequestService) claimItemTx(tx *goqu.TxDatabase, actorID int, batch *models.SupplyRequestBatch, item *models.SupplyRequestItem, requesterName string) error {
	if item.ApprovedQuantity == nil {
		return apperrors.Newf(apperrors.KindInvalidTransition, "Item %d has no approved quantity", item.ID)
	}
	approvedQty := *item.ApprovedQuantity

	quantity, err := s.supplies.GetQuantityForUpdate(tx, item.SupplyID)
	if err != nil {
		return err
	}
	if quantity.CurrentQuantity < approvedQty {
		return apperrors.Newf(apperrors.KindInsufficientStock,
			"Supply %d has only %d unit(s) on hand", item.SupplyID, quantity.CurrentQuantity)
	}

	newCurrent := quantity.CurrentQuantity - approvedQty
	newReserved := quantity.ReservedQuantity - approvedQty
	if err := s.supplies.UpdateQuantities(tx, item.SupplyID, newCurrent, newReserved); err != nil {
		return err
	}

	now := time.Now().In(s.loc)
	if err := s.requests.UpdateItem(tx, item.ID, goqu.Record{
		"status":       models.ItemStatusCompleted,
		"claimed_date": now,
	}); err != nil {
		return err
	}
	item.Status = models.ItemStatusCompleted
	item.ClaimedDate = &now

	return s.recorder.RecordSupplyChange(tx, models.SupplyHistory{
		SupplyID:  item.SupplyID,
		FieldName: "current_quantity",
		OldValue:  strconv.Itoa(quantity.CurrentQuantity),
		NewValue:  strconv.Itoa(newCurrent),
		ActorID:   actorID,
		Remarks:   fmt.Sprintf("Supply request by %s (Batch #%d)", requesterName, batch.ID),
	})
}

// VoidBatch cancels a batch awaiting claiming, releasing every reservation it
// holds. All items flip to voided, not only the approved ones. Voiding an
// already-voided batch is a no-op.
func (s *SupplyRequestService) VoidBatch(actorID, batchID int, reason string) error {
	if err := s.arbiter.Check(actorID, permissions.VoidRequest); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return apperrors.InvalidInput("A reason is required to void a request")
	}

	voided := false
	var requesterEmail string
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batch, err := s.requests.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == models.BatchStatusVoided {
			return nil
		}
		if batch.Status != models.BatchStatusForClaiming {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"Batch #%d is %s; only batches awaiting claiming can be voided", batchID, batch.Status)
		}

		for i := range batch.Items {
			item := &batch.Items[i]
			if item.Status != models.ItemStatusApproved || item.ApprovedQuantity == nil {
				continue
			}
			quantity, err := s.supplies.GetQuantityForUpdate(tx, item.SupplyID)
			if err != nil {
				return err
			}
			if err := s.supplies.UpdateQuantities(tx, item.SupplyID,
				quantity.CurrentQuantity, quantity.ReservedQuantity-*item.ApprovedQuantity); err != nil {
				return err
			}
		}

		if err := s.requests.UpdateAllItems(tx, batchID, goqu.Record{"status": models.ItemStatusVoided}); err != nil {
			return err
		}
		if err := s.requests.UpdateBatch(tx, batchID, goqu.Record{
			"status":  models.BatchStatusVoided,
			"remarks": reason,
		}); err != nil {
			return err
		}

		description := fmt.Sprintf("Voided supply request batch #%d: %s", batchID, reason)
		if err := s.recorder.Record(tx, actorID, "void_supply_batch", batch, description); err != nil {
			return err
		}

		if err := s.bus.NotifyTx(tx, batch.UserID,
			fmt.Sprintf("Your supply request (Batch #%d) was voided.", batchID), reason); err != nil {
			return err
		}

		requester, err := s.requesters.GetRequester(batch.UserID)
		if err != nil {
			return err
		}
		requesterEmail = requester.Email

		voided = true
		return nil
	})
	if err != nil {
		return err
	}

	if !voided {
		return nil
	}

	if requesterEmail != "" {
		s.bus.SendEmail(requesterEmail, "Supply request voided",
			fmt.Sprintf("Your supply request (Batch #%d) was voided. Reason: %s", batchID, reason))
	}

	s.metrics.BatchesVoided.WithLabelValues("supply").Inc()
	return nil
}

func (s *SupplyRequestService) GetBatch(batchID int) (*models.SupplyRequestBatch, error) {
	return s.requests.GetBatch(batchID)
}

func (s *SupplyRequestService) ListBatches(userID int, status string) ([]models.SupplyRequestBatch, error) {
	return s.requests.ListBatches(userID, status)
}

func findSupplyItem(batch *models.SupplyRequestBatch, itemID int) (*models.SupplyRequestItem, error) {
	for i := range batch.Items {
		if batch.Items[i].ID == itemID {
			return &batch.Items[i], nil
		}
	}
	return nil, apperrors.Newf(apperrors.KindNotFound, "Item %d not found on batch #%d", itemID, batch.ID)
}
