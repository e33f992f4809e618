package allocation

import (
	"context"
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

type BorrowItemInput struct {
	PropertyID int       `json:"property_id" binding:"required"`
	Quantity   int       `json:"quantity" binding:"required"`
	ReturnDate time.Time `json:"return_date" binding:"required"`
}

// BorrowRequestService drives the take-units lifecycle: pending -> approved
// -> active (claimed) -> returned, with overdue, reject, and void branches.
// A borrow may reference the reservation it converts; returning it cascades
// completion back to that reservation.
type BorrowRequestService struct {
	db           transactor
	requests     borrowRequestStore
	reservations reservationStore
	properties   propertyStock
	requesters   requesterSource
	recorder     auditRecorder
	bus          notifier
	arbiter      permissionChecker
	metrics      *metrics.Metrics
	loc          *time.Location
	log          *zap.Logger
}

func NewBorrowRequestService(
	r *repository.Repository,
	requests *BorrowRequestRepository,
	reservations *ReservationRepository,
	properties *inventory.PropertyRepository,
	recorder *activity.Recorder,
	bus *notify.Bus,
	arbiter *permissions.Arbiter,
	m *metrics.Metrics,
	loc *time.Location,
	log *zap.Logger,
) *BorrowRequestService {
	return &BorrowRequestService{
		db:           r,
		requests:     requests,
		reservations: reservations,
		properties:   properties,
		requesters:   NewRequesterRepository(r),
		recorder:     recorder,
		bus:          bus,
		arbiter:      arbiter,
		metrics:      m,
		loc:          loc,
		log:          log,
	}
}

// Submit creates a pending borrow batch. sourceReservationID links a borrow
// that converts an activated reservation; pass 0 for a standalone borrow.
// Date floors compare calendar days in the configured timezone.
func (s *BorrowRequestService) Submit(userID int, purpose string, items []BorrowItemInput, sourceReservationID int) (*models.BorrowRequestBatch, error) {
	if strings.TrimSpace(purpose) == "" {
		return nil, apperrors.InvalidInput("Purpose is required")
	}
	if len(items) == 0 {
		return nil, apperrors.InvalidInput("At least one item is required")
	}

	now := time.Now().In(s.loc)
	today := dateOnly(now)
	batch := &models.BorrowRequestBatch{
		UserID:      userID,
		Purpose:     purpose,
		RequestDate: now,
		Status:      models.BatchStatusPending,
	}
	if sourceReservationID > 0 {
		reservation, err := s.reservations.GetBatch(sourceReservationID)
		if err != nil {
			return nil, err
		}
		if reservation.UserID != userID {
			return nil, apperrors.PermissionDenied("You can only convert your own reservation")
		}
		batch.SourceReservationID = &reservation.ID
	}

	for _, input := range items {
		if input.Quantity <= 0 {
			return nil, apperrors.InvalidInput("Quantity must be greater than zero")
		}
		if dateOnly(input.ReturnDate.In(s.loc)).Before(today) {
			return nil, apperrors.InvalidInput("Return date cannot be in the past")
		}

		property, err := s.properties.GetProperty(input.PropertyID)
		if err != nil {
			return nil, err
		}
		if property.IsArchived || property.Availability == models.AvailabilityNotAvailable {
			return nil, apperrors.Newf(apperrors.KindInvalidInput, "%s is not available for borrowing", property.Name)
		}
		if available := property.AvailableQuantity(); input.Quantity > available {
			return nil, apperrors.Newf(apperrors.KindInsufficientStock,
				"Only %d unit(s) of %s available", available, property.Name)
		}

		batch.Items = append(batch.Items, models.BorrowRequestItem{
			PropertyID: input.PropertyID,
			Quantity:   input.Quantity,
			ReturnDate: input.ReturnDate,
			Status:     models.ItemStatusPending,
		})
	}

	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batchID, err := s.requests.InsertBatch(tx, batch)
		if err != nil {
			return err
		}
		batch.ID = batchID

		description := fmt.Sprintf("Submitted borrow request with %d item(s): %s", len(batch.Items), purpose)
		if err := s.recorder.Record(tx, userID, "submit_borrow_request", batch, description); err != nil {
			return err
		}

		return s.bus.NotifyTx(tx, userID,
			fmt.Sprintf("Your borrow request (Batch #%d) has been submitted and is awaiting approval.", batchID), "")
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BatchesSubmitted.WithLabelValues("borrow").Inc()
	return batch, nil
}

// ApproveItem reserves property units for one item under the property's row
// lock.
func (s *BorrowRequestService) ApproveItem(actorID, batchID, itemID, approvedQty int, remarks string) error {
	if err := s.arbiter.Check(actorID, permissions.ApproveBorrowRequest); err != nil {
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

		item, err := findBorrowItem(batch, itemID)
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

		property, err := s.properties.GetForUpdate(tx, item.PropertyID)
		if err != nil {
			return err
		}
		if available := property.AvailableQuantity(); approvedQty > available {
			return apperrors.Newf(apperrors.KindInsufficientStock,
				"Only %d unit(s) of %s available", available, property.Name)
		}

		if err := s.properties.UpdateQuantities(tx, item.PropertyID,
			property.Quantity, property.ReservedQuantity+approvedQty); err != nil {
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
		if newStatus := RecomputeBorrowBatchStatus(CountBorrowItems(batch.Items)); newStatus != batch.Status {
			batchFields["status"] = newStatus
		}
		if err := s.requests.UpdateBatch(tx, batchID, batchFields); err != nil {
			return err
		}

		description := fmt.Sprintf("Approved %d unit(s) of property %d on batch #%d", approvedQty, item.PropertyID, batchID)
		if err := s.recorder.Record(tx, actorID, "approve_borrow_item", batch, description); err != nil {
			return err
		}

		approved = true
		return s.bus.NotifyTx(tx, batch.UserID,
			fmt.Sprintf("An item on your borrow request (Batch #%d) was approved for %d unit(s).", batchID, approvedQty),
			remarks)
	})
	if err != nil {
		return err
	}

	if approved {
		s.metrics.ItemsApproved.WithLabelValues("borrow").Inc()
	}
	return nil
}

func (s *BorrowRequestService) RejectItem(actorID, batchID, itemID int, remarks string) error {
	if err := s.arbiter.Check(actorID, permissions.ApproveBorrowRequest); err != nil {
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

		item, err := findBorrowItem(batch, itemID)
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
			property, err := s.properties.GetForUpdate(tx, item.PropertyID)
			if err != nil {
				return err
			}
			if err := s.properties.UpdateQuantities(tx, item.PropertyID,
				property.Quantity, property.ReservedQuantity-*item.ApprovedQuantity); err != nil {
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

		if newStatus := RecomputeBorrowBatchStatus(CountBorrowItems(batch.Items)); newStatus != batch.Status {
			if err := s.requests.UpdateBatch(tx, batchID, goqu.Record{"status": newStatus}); err != nil {
				return err
			}
		}

		description := fmt.Sprintf("Rejected property %d on batch #%d", item.PropertyID, batchID)
		if err := s.recorder.Record(tx, actorID, "reject_borrow_item", batch, description); err != nil {
			return err
		}

		rejected = true
		return s.bus.NotifyTx(tx, batch.UserID,
			fmt.Sprintf("An item on your borrow request (Batch #%d) was rejected.", batchID), remarks)
	})
	if err != nil {
		return err
	}

	if rejected {
		s.metrics.ItemsRejected.WithLabelValues("borrow").Inc()
	}
	return nil
}

// ClaimBatch hands the units over: each approved item goes active, and the
// units physically leave inventory, consuming the reservation taken at
// approval. Already-active items are skipped.
func (s *BorrowRequestService) ClaimBatch(actorID, batchID int) error {
	if err := s.arbiter.Check(actorID, permissions.ApproveBorrowRequest); err != nil {
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

		now := time.Now().In(s.loc)
		for i := range batch.Items {
			item := &batch.Items[i]
			if item.Status != models.ItemStatusApproved || item.ApprovedQuantity == nil {
				continue
			}
			approvedQty := *item.ApprovedQuantity

			property, err := s.properties.GetForUpdate(tx, item.PropertyID)
			if err != nil {
				return err
			}
			if property.Quantity < approvedQty {
				return apperrors.Newf(apperrors.KindInsufficientStock,
					"%s has only %d unit(s) on hand", property.Name, property.Quantity)
			}

			newQuantity := property.Quantity - approvedQty
			if err := s.properties.UpdateQuantities(tx, item.PropertyID,
				newQuantity, property.ReservedQuantity-approvedQty); err != nil {
				return err
			}

			if err := s.requests.UpdateItem(tx, item.ID, goqu.Record{
				"status":       models.ItemStatusActive,
				"claimed_date": now,
			}); err != nil {
				return err
			}
			item.Status = models.ItemStatusActive
			item.ClaimedDate = &now

			if err := s.recorder.RecordPropertyChange(tx, models.PropertyHistory{
				PropertyID: item.PropertyID,
				FieldName:  "quantity",
				OldValue:   strconv.Itoa(property.Quantity),
				NewValue:   strconv.Itoa(newQuantity),
				ActorID:    actorID,
				Remarks: fmt.Sprintf("Borrowed by %s (Batch #%d), due %s",
					requester.Fullname, batchID, item.ReturnDate.Format("2006-01-02")),
			}); err != nil {
				return err
			}
			claimed++
		}

		batchFields := goqu.Record{
			"claimed_by":   actorID,
			"claimed_date": now,
		}
		if newStatus := RecomputeBorrowBatchStatus(CountBorrowItems(batch.Items)); newStatus != batch.Status {
			batchFields["status"] = newStatus
		}
		if err := s.requests.UpdateBatch(tx, batchID, batchFields); err != nil {
			return err
		}

		description := fmt.Sprintf("Released borrowed units for batch #%d", batchID)
		if err := s.recorder.Record(tx, actorID, "claim_borrow_batch", batch, description); err != nil {
			return err
		}

		return s.bus.NotifyTx(tx, batch.UserID,
			fmt.Sprintf("Your borrow request (Batch #%d) is now active. Please return the items on time.", batchID), "")
	})
	if err != nil {
		return err
	}

	if claimed > 0 {
		s.metrics.BatchesClaimed.WithLabelValues("borrow").Inc()
	}
	return nil
}

// ReturnBatch takes every active or overdue item back into inventory. When
// the batch originated from a reservation, full return cascades completion to
// the source reservation.
func (s *BorrowRequestService) ReturnBatch(actorID, batchID int) error {
	return s.returnItems(actorID, batchID, 0)
}

func (s *BorrowRequestService) ReturnItem(actorID, batchID, itemID int) error {
	return s.returnItems(actorID, batchID, itemID)
}

func (s *BorrowRequestService) returnItems(actorID, batchID, onlyItemID int) error {
	if err := s.arbiter.Check(actorID, permissions.ApproveBorrowRequest); err != nil {
		return err
	}

	return s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batch, err := s.requests.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status != models.BatchStatusActive && batch.Status != models.BatchStatusOverdue {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"Batch #%d is %s; only active or overdue batches can be returned", batchID, batch.Status)
		}

		requester, err := s.requesters.GetRequester(batch.UserID)
		if err != nil {
			return err
		}

		now := time.Now().In(s.loc)
		returned := 0
		for i := range batch.Items {
			item := &batch.Items[i]
			if onlyItemID > 0 && item.ID != onlyItemID {
				continue
			}
			if item.Status == models.ItemStatusReturned || item.Status == models.ItemStatusRejected {
				continue
			}
			if item.Status != models.ItemStatusActive && item.Status != models.ItemStatusOverdue {
				return apperrors.Newf(apperrors.KindInvalidTransition, "Item is %s and cannot be returned", item.Status)
			}
			if item.ApprovedQuantity == nil {
				return apperrors.Newf(apperrors.KindInvalidTransition, "Item %d has no approved quantity", item.ID)
			}
			approvedQty := *item.ApprovedQuantity

			property, err := s.properties.GetForUpdate(tx, item.PropertyID)
			if err != nil {
				return err
			}
			newQuantity := property.Quantity + approvedQty
			if err := s.properties.UpdateQuantities(tx, item.PropertyID,
				newQuantity, property.ReservedQuantity); err != nil {
				return err
			}

			if err := s.requests.UpdateItem(tx, item.ID, goqu.Record{
				"status":             models.ItemStatusReturned,
				"actual_return_date": now,
			}); err != nil {
				return err
			}
			item.Status = models.ItemStatusReturned
			item.ActualReturnDate = &now

			if err := s.recorder.RecordPropertyChange(tx, models.PropertyHistory{
				PropertyID: item.PropertyID,
				FieldName:  "quantity",
				OldValue:   strconv.Itoa(property.Quantity),
				NewValue:   strconv.Itoa(newQuantity),
				ActorID:    actorID,
				Remarks:    fmt.Sprintf("Returned by %s (Batch #%d)", requester.Fullname, batchID),
			}); err != nil {
				return err
			}
			returned++
		}

		if onlyItemID > 0 && returned == 0 {
			if _, err := findBorrowItem(batch, onlyItemID); err != nil {
				return err
			}
		}

		counts := CountBorrowItems(batch.Items)
		newStatus := RecomputeBorrowBatchStatus(counts)
		batchFields := goqu.Record{}
		if newStatus != batch.Status {
			batchFields["status"] = newStatus
		}
		fullyReturned := newStatus == models.BatchStatusReturned
		if fullyReturned {
			batchFields["returned_date"] = now
		}
		if len(batchFields) > 0 {
			if err := s.requests.UpdateBatch(tx, batchID, batchFields); err != nil {
				return err
			}
		}

		if returned > 0 {
			description := fmt.Sprintf("Returned %d item(s) on borrow batch #%d", returned, batchID)
			if err := s.recorder.Record(tx, actorID, "return_borrow_batch", batch, description); err != nil {
				return err
			}
			if err := s.bus.NotifyTx(tx, batch.UserID,
				fmt.Sprintf("Your returned item(s) on borrow request (Batch #%d) have been received.", batchID), ""); err != nil {
				return err
			}
		}

		if fullyReturned && batch.SourceReservationID != nil {
			return s.completeSourceReservation(tx, actorID, *batch.SourceReservationID)
		}

		return nil
	})
}

// completeSourceReservation drains an activated reservation once its linked
// borrow has been fully returned, releasing the reservation's hold.
func (s *BorrowRequestService) completeSourceReservation(tx *goqu.TxDatabase, actorID, reservationID int) error {
	reservation, err := s.reservations.GetBatchForUpdate(tx, reservationID)
	if err != nil {
		return err
	}
	if models.IsTerminalBatchStatus(reservation.Status) {
		return nil
	}

	for i := range reservation.Items {
		item := &reservation.Items[i]
		if item.Status != models.ItemStatusActive {
			continue
		}

		property, err := s.properties.GetForUpdate(tx, item.PropertyID)
		if err != nil {
			return err
		}
		newReserved := property.ReservedQuantity - item.Quantity
		if newReserved < 0 {
			newReserved = 0
		}
		if err := s.properties.UpdateQuantities(tx, item.PropertyID, property.Quantity, newReserved); err != nil {
			return err
		}

		if err := s.reservations.UpdateItem(tx, item.ID, goqu.Record{"status": models.ItemStatusCompleted}); err != nil {
			return err
		}
		item.Status = models.ItemStatusCompleted
	}

	counts := CountReservationItems(reservation.Items)
	if newStatus := RecomputeReservationBatchStatus(counts); newStatus != reservation.Status {
		if err := s.reservations.UpdateBatch(tx, reservationID, goqu.Record{"status": newStatus}); err != nil {
			return err
		}

		if newStatus == models.BatchStatusCompleted {
			description := fmt.Sprintf("Reservation batch #%d completed after linked borrow was returned", reservationID)
			if err := s.recorder.Record(tx, actorID, "complete_reservation", reservation, description); err != nil {
				return err
			}
			return s.bus.NotifyTx(tx, reservation.UserID,
				fmt.Sprintf("Your reservation (Batch #%d) is complete.", reservationID), "")
		}
	}

	return nil
}

// VoidBatch cancels a borrow awaiting claiming, releasing its reservations.
// Voiding an already-voided batch is a no-op.
func (s *BorrowRequestService) VoidBatch(actorID, batchID int, reason string) error {
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
			property, err := s.properties.GetForUpdate(tx, item.PropertyID)
			if err != nil {
				return err
			}
			if err := s.properties.UpdateQuantities(tx, item.PropertyID,
				property.Quantity, property.ReservedQuantity-*item.ApprovedQuantity); err != nil {
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

		description := fmt.Sprintf("Voided borrow request batch #%d: %s", batchID, reason)
		if err := s.recorder.Record(tx, actorID, "void_borrow_batch", batch, description); err != nil {
			return err
		}

		if err := s.bus.NotifyTx(tx, batch.UserID,
			fmt.Sprintf("Your borrow request (Batch #%d) was voided.", batchID), reason); err != nil {
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
		s.bus.SendEmail(requesterEmail, "Borrow request voided",
			fmt.Sprintf("Your borrow request (Batch #%d) was voided. Reason: %s", batchID, reason))
	}

	s.metrics.BatchesVoided.WithLabelValues("borrow").Inc()
	return nil
}

// OverdueSweepResult reports one overdue sweep for logging and CLI output.
type OverdueSweepResult struct {
	ItemsMarked   int
	UsersNotified int
	SendFailures  int
}

// SweepOverdue flips past-due active items to overdue and sends one SMS per
// borrower summarizing their unnotified overdue items. overdue_notified is
// set only after a successful send, so a failed SMS retries next sweep.
func (s *BorrowRequestService) SweepOverdue(ctx context.Context, now time.Time) (OverdueSweepResult, error) {
	var result OverdueSweepResult

	today := dateOnly(now.In(s.loc))
	candidates, err := s.requests.ListOverdueCandidates(today)
	if err != nil {
		return result, err
	}
	if len(candidates) == 0 {
		return result, nil
	}

	batchIDs := make(map[int]bool)
	for _, candidate := range candidates {
		batchIDs[candidate.BatchID] = true
	}

	for batchID := range batchIDs {
		marked, err := s.markBatchOverdue(batchID, today)
		if err != nil {
			return result, err
		}
		result.ItemsMarked += marked
	}

	byUser := make(map[int][]OverdueCandidate)
	userOrder := make([]int, 0)
	for _, candidate := range candidates {
		if _, seen := byUser[candidate.UserID]; !seen {
			userOrder = append(userOrder, candidate.UserID)
		}
		byUser[candidate.UserID] = append(byUser[candidate.UserID], candidate)
	}

	for _, userID := range userOrder {
		group := byUser[userID]
		phone := group[0].UserPhone
		if phone == "" {
			s.log.Warn("borrower has no phone number, skipping overdue SMS", zap.Int("user_id", userID))
			continue
		}

		entries := make([]notify.OverdueEntry, 0, len(group))
		for _, candidate := range group {
			entries = append(entries, notify.OverdueEntry{
				PropertyName: candidate.PropertyName,
				Quantity:     candidate.ApprovedQuantity,
			})
		}

		if err := s.bus.SendSMSBlocking(ctx, phone, notify.FormatOverdueSMS(entries)); err != nil {
			result.SendFailures++
			continue
		}

		itemIDs := make([]int, 0, len(group))
		for _, candidate := range group {
			itemIDs = append(itemIDs, candidate.ItemID)
		}
		if err := s.markNotified(itemIDs); err != nil {
			return result, err
		}
		result.UsersNotified++
	}

	return result, nil
}

func (s *BorrowRequestService) markBatchOverdue(batchID int, today time.Time) (int, error) {
	marked := 0
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batch, err := s.requests.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if models.IsTerminalBatchStatus(batch.Status) {
			return nil
		}

		for i := range batch.Items {
			item := &batch.Items[i]
			if item.Status != models.ItemStatusActive || !dateOnly(item.ReturnDate).Before(today) {
				continue
			}
			if err := s.requests.UpdateItem(tx, item.ID, goqu.Record{"status": models.ItemStatusOverdue}); err != nil {
				return err
			}
			item.Status = models.ItemStatusOverdue
			marked++
		}

		if marked == 0 {
			return nil
		}

		if newStatus := RecomputeBorrowBatchStatus(CountBorrowItems(batch.Items)); newStatus != batch.Status {
			if err := s.requests.UpdateBatch(tx, batchID, goqu.Record{"status": newStatus}); err != nil {
				return err
			}
		}

		description := fmt.Sprintf("Marked %d item(s) overdue on borrow batch #%d", marked, batchID)
		if err := s.recorder.Record(tx, batch.UserID, "mark_overdue", batch, description); err != nil {
			return err
		}

		return s.bus.NotifyTx(tx, batch.UserID,
			fmt.Sprintf("Item(s) on your borrow request (Batch #%d) are overdue. Please return them immediately.", batchID), "")
	})
	if err != nil {
		return 0, err
	}

	return marked, nil
}

func (s *BorrowRequestService) markNotified(itemIDs []int) error {
	return s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		return s.requests.MarkItemsNotified(tx, itemIDs)
	})
}

// ReminderResult reports one reminder pass for logging and CLI output.
type ReminderResult struct {
	Sent     int
	Skipped  int
	Failures int
}

// SendDueReminders emails borrowers whose borrow window is mostly elapsed.
// The work is idempotent per (item, day): reminder_sent_on records the last
// day an email went out and is only advanced on a successful send.
func (s *BorrowRequestService) SendDueReminders(ctx context.Context, now time.Time) (ReminderResult, error) {
	var result ReminderResult

	candidates, err := s.requests.ListReminderCandidates()
	if err != nil {
		return result, err
	}

	for _, candidate := range candidates {
		trigger := ReminderTriggerTime(candidate.RequestDate, candidate.ReturnDate)
		if now.Before(trigger) || dateOnly(now).After(dateOnly(candidate.ReturnDate)) {
			result.Skipped++
			continue
		}
		if candidate.ReminderSentOn != nil && sameDay(*candidate.ReminderSentOn, now) {
			result.Skipped++
			continue
		}
		if candidate.UserEmail == "" {
			result.Skipped++
			continue
		}

		body := fmt.Sprintf("Hi %s, this is a reminder that %s (Batch #%d) is due for return on %s.",
			candidate.UserFullname, candidate.PropertyName, candidate.BatchID,
			candidate.ReturnDate.Format("January 2, 2006"))
		if err := s.bus.SendEmailBlocking(ctx, candidate.UserEmail, "Return reminder", body); err != nil {
			result.Failures++
			continue
		}

		err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
			return s.requests.UpdateItem(tx, candidate.ItemID, goqu.Record{"reminder_sent_on": dateOnly(now)})
		})
		if err != nil {
			return result, err
		}
		result.Sent++
	}

	return result, nil
}

func (s *BorrowRequestService) GetBatch(batchID int) (*models.BorrowRequestBatch, error) {
	return s.requests.GetBatch(batchID)
}

func (s *BorrowRequestService) ListBatches(userID int, status string) ([]models.BorrowRequestBatch, error) {
	return s.requests.ListBatches(userID, status)
}

func findBorrowItem(batch *models.BorrowRequestBatch, itemID int) (*models.BorrowRequestItem, error) {
	for i := range batch.Items {
		if batch.Items[i].ID == itemID {
			return &batch.Items[i], nil
		}
	}
	return nil, apperrors.Newf(apperrors.KindNotFound, "Item %d not found on batch #%d", itemID, batch.ID)
}
