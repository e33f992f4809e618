package allocation

import (
	"fmt"
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

type ReservationItemInput struct {
	PropertyID int       `json:"property_id" binding:"required"`
	Quantity   int       `json:"quantity" binding:"required"`
	NeededDate time.Time `json:"needed_date" binding:"required"`
	ReturnDate time.Time `json:"return_date" binding:"required"`
}

// ReservationService drives the hold-window lifecycle: pending -> approved ->
// active -> completed or expired. Reservations only hold reserved quantity;
// they never deduct on-hand stock. Physically taking units requires a borrow
// that references the reservation.
type ReservationService struct {
	db           transactor
	reservations reservationStore
	borrows      borrowRequestStore
	properties   propertyStock
	requesters   requesterSource
	recorder     auditRecorder
	bus          notifier
	arbiter      permissionChecker
	metrics      *metrics.Metrics
	loc          *time.Location
	log          *zap.Logger
}

func NewReservationService(
	r *repository.Repository,
	reservations *ReservationRepository,
	borrows *BorrowRequestRepository,
	properties *inventory.PropertyRepository,
	recorder *activity.Recorder,
	bus *notify.Bus,
	arbiter *permissions.Arbiter,
	m *metrics.Metrics,
	loc *time.Location,
	log *zap.Logger,
) *ReservationService {
	return &ReservationService{
		db:           r,
		reservations: reservations,
		borrows:      borrows,
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

// Submit creates a pending reservation batch. Date floors compare calendar
// days in the configured timezone.
func (s *ReservationService) Submit(userID int, purpose string, items []ReservationItemInput) (*models.ReservationBatch, error) {
	if strings.TrimSpace(purpose) == "" {
		return nil, apperrors.InvalidInput("Purpose is required")
	}
	if len(items) == 0 {
		return nil, apperrors.InvalidInput("At least one item is required")
	}

	now := time.Now().In(s.loc)
	today := dateOnly(now)
	batch := &models.ReservationBatch{
		UserID:      userID,
		Purpose:     purpose,
		RequestDate: now,
		Status:      models.BatchStatusPending,
	}

	for _, input := range items {
		if input.Quantity <= 0 {
			return nil, apperrors.InvalidInput("Quantity must be greater than zero")
		}
		if dateOnly(input.NeededDate.In(s.loc)).Before(today) {
			return nil, apperrors.InvalidInput("Needed date cannot be in the past")
		}
		if dateOnly(input.ReturnDate.In(s.loc)).Before(dateOnly(input.NeededDate.In(s.loc))) {
			return nil, apperrors.InvalidInput("Return date cannot be before the needed date")
		}

		property, err := s.properties.GetProperty(input.PropertyID)
		if err != nil {
			return nil, err
		}
		if property.IsArchived || property.Availability == models.AvailabilityNotAvailable {
			return nil, apperrors.Newf(apperrors.KindInvalidInput, "%s is not available for reservation", property.Name)
		}
		if available := property.AvailableQuantity(); input.Quantity > available {
			return nil, apperrors.Newf(apperrors.KindInsufficientStock,
				"Only %d unit(s) of %s available", available, property.Name)
		}

		batch.Items = append(batch.Items, models.ReservationItem{
			PropertyID: input.PropertyID,
			Quantity:   input.Quantity,
			NeededDate: input.NeededDate,
			ReturnDate: input.ReturnDate,
			Status:     models.ItemStatusPending,
		})
	}

	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batchID, err := s.reservations.InsertBatch(tx, batch)
		if err != nil {
			return err
		}
		batch.ID = batchID

		description := fmt.Sprintf("Submitted reservation with %d item(s): %s", len(batch.Items), purpose)
		if err := s.recorder.Record(tx, userID, "submit_reservation", batch, description); err != nil {
			return err
		}

		return s.bus.NotifyTx(tx, userID,
			fmt.Sprintf("Your reservation (Batch #%d) has been submitted and is awaiting approval.", batchID), "")
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BatchesSubmitted.WithLabelValues("reservation").Inc()
	return batch, nil
}

// ApproveItem holds units for the reservation window under the property's
// row lock. The full requested quantity is held; reservations have no
// partial-quantity approval.
func (s *ReservationService) ApproveItem(actorID, batchID, itemID int, remarks string) error {
	if err := s.arbiter.Check(actorID, permissions.ApproveReservation); err != nil {
		return err
	}

	approved := false
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batch, err := s.reservations.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if models.IsTerminalBatchStatus(batch.Status) {
			return apperrors.Newf(apperrors.KindInvalidTransition, "Batch #%d is already %s", batchID, batch.Status)
		}

		item, err := findReservationItem(batch, itemID)
		if err != nil {
			return err
		}
		if item.Status == models.ItemStatusApproved {
			return nil
		}
		if item.Status != models.ItemStatusPending {
			return apperrors.Newf(apperrors.KindInvalidTransition, "Item is %s and cannot be approved", item.Status)
		}

		property, err := s.properties.GetForUpdate(tx, item.PropertyID)
		if err != nil {
			return err
		}
		if available := property.AvailableQuantity(); item.Quantity > available {
			return apperrors.Newf(apperrors.KindInsufficientStock,
				"Only %d unit(s) of %s available", available, property.Name)
		}

		if err := s.properties.UpdateQuantities(tx, item.PropertyID,
			property.Quantity, property.ReservedQuantity+item.Quantity); err != nil {
			return err
		}

		if err := s.reservations.UpdateItem(tx, item.ID, goqu.Record{
			"status":  models.ItemStatusApproved,
			"remarks": remarks,
		}); err != nil {
			return err
		}
		item.Status = models.ItemStatusApproved

		batchFields := goqu.Record{}
		if batch.ApprovedDate == nil {
			now := time.Now().In(s.loc)
			batchFields["approved_date"] = now
			batchFields["approved_by"] = actorID
		}
		if newStatus := RecomputeReservationBatchStatus(CountReservationItems(batch.Items)); newStatus != batch.Status {
			batchFields["status"] = newStatus
		}
		if err := s.reservations.UpdateBatch(tx, batchID, batchFields); err != nil {
			return err
		}

		description := fmt.Sprintf("Approved reservation of %d unit(s) of property %d on batch #%d",
			item.Quantity, item.PropertyID, batchID)
		if err := s.recorder.Record(tx, actorID, "approve_reservation_item", batch, description); err != nil {
			return err
		}

		approved = true
		return s.bus.NotifyTx(tx, batch.UserID,
			fmt.Sprintf("An item on your reservation (Batch #%d) was approved.", batchID), remarks)
	})
	if err != nil {
		return err
	}

	if approved {
		s.metrics.ItemsApproved.WithLabelValues("reservation").Inc()
	}
	return nil
}

func (s *ReservationService) RejectItem(actorID, batchID, itemID int, remarks string) error {
	if err := s.arbiter.Check(actorID, permissions.ApproveReservation); err != nil {
		return err
	}

	rejected := false
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batch, err := s.reservations.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if models.IsTerminalBatchStatus(batch.Status) {
			return apperrors.Newf(apperrors.KindInvalidTransition, "Batch #%d is already %s", batchID, batch.Status)
		}

		item, err := findReservationItem(batch, itemID)
		if err != nil {
			return err
		}
		if item.Status == models.ItemStatusRejected {
			return nil
		}
		if item.Status != models.ItemStatusPending && item.Status != models.ItemStatusApproved {
			return apperrors.Newf(apperrors.KindInvalidTransition, "Item is %s and cannot be rejected", item.Status)
		}

		if item.Status == models.ItemStatusApproved {
			property, err := s.properties.GetForUpdate(tx, item.PropertyID)
			if err != nil {
				return err
			}
			if err := s.properties.UpdateQuantities(tx, item.PropertyID,
				property.Quantity, property.ReservedQuantity-item.Quantity); err != nil {
				return err
			}
		}

		if err := s.reservations.UpdateItem(tx, item.ID, goqu.Record{
			"status":  models.ItemStatusRejected,
			"remarks": remarks,
		}); err != nil {
			return err
		}
		item.Status = models.ItemStatusRejected

		if newStatus := RecomputeReservationBatchStatus(CountReservationItems(batch.Items)); newStatus != batch.Status {
			if err := s.reservations.UpdateBatch(tx, batchID, goqu.Record{"status": newStatus}); err != nil {
				return err
			}
		}

		description := fmt.Sprintf("Rejected reservation of property %d on batch #%d", item.PropertyID, batchID)
		if err := s.recorder.Record(tx, actorID, "reject_reservation_item", batch, description); err != nil {
			return err
		}

		rejected = true
		return s.bus.NotifyTx(tx, batch.UserID,
			fmt.Sprintf("An item on your reservation (Batch #%d) was rejected.", batchID), remarks)
	})
	if err != nil {
		return err
	}

	if rejected {
		s.metrics.ItemsRejected.WithLabelValues("reservation").Inc()
	}
	return nil
}

// VoidBatch cancels an approved reservation, releasing every hold. Voiding an
// already-voided batch is a no-op.
func (s *ReservationService) VoidBatch(actorID, batchID int, reason string) error {
	if err := s.arbiter.Check(actorID, permissions.VoidRequest); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return apperrors.InvalidInput("A reason is required to void a reservation")
	}

	voided := false
	var requesterEmail string
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		batch, err := s.reservations.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == models.BatchStatusVoided {
			return nil
		}
		if batch.Status != models.BatchStatusApproved {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"Batch #%d is %s; only approved reservations can be voided", batchID, batch.Status)
		}

		for i := range batch.Items {
			item := &batch.Items[i]
			if item.Status != models.ItemStatusApproved {
				continue
			}
			property, err := s.properties.GetForUpdate(tx, item.PropertyID)
			if err != nil {
				return err
			}
			if err := s.properties.UpdateQuantities(tx, item.PropertyID,
				property.Quantity, property.ReservedQuantity-item.Quantity); err != nil {
				return err
			}
		}

		if err := s.reservations.UpdateAllItems(tx, batchID, goqu.Record{"status": models.ItemStatusVoided}); err != nil {
			return err
		}
		if err := s.reservations.UpdateBatch(tx, batchID, goqu.Record{
			"status":  models.BatchStatusVoided,
			"remarks": reason,
		}); err != nil {
			return err
		}

		description := fmt.Sprintf("Voided reservation batch #%d: %s", batchID, reason)
		if err := s.recorder.Record(tx, actorID, "void_reservation_batch", batch, description); err != nil {
			return err
		}

		if err := s.bus.NotifyTx(tx, batch.UserID,
			fmt.Sprintf("Your reservation (Batch #%d) was voided.", batchID), reason); err != nil {
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
		s.bus.SendEmail(requesterEmail, "Reservation voided",
			fmt.Sprintf("Your reservation (Batch #%d) was voided. Reason: %s", batchID, reason))
	}

	s.metrics.BatchesVoided.WithLabelValues("reservation").Inc()
	return nil
}

// ActivationResult reports one activation/expiry pass.
type ActivationResult struct {
	ItemsActivated int
	ItemsExpired   int
}

// ActivateDue opens reservation windows: approved items whose needed date
// has arrived become active. The hold on reserved quantity stays in place.
func (s *ReservationService) ActivateDue(now time.Time) (ActivationResult, error) {
	var result ActivationResult

	batchIDs, err := s.reservations.ListBatchIDsWithItemsDue(dateOnly(now))
	if err != nil {
		return result, err
	}

	for _, batchID := range batchIDs {
		err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
			batch, err := s.reservations.GetBatchForUpdate(tx, batchID)
			if err != nil {
				return err
			}
			if models.IsTerminalBatchStatus(batch.Status) {
				return nil
			}

			activated := 0
			for i := range batch.Items {
				item := &batch.Items[i]
				if item.Status != models.ItemStatusApproved || dateOnly(item.NeededDate).After(dateOnly(now)) {
					continue
				}
				if err := s.reservations.UpdateItem(tx, item.ID, goqu.Record{"status": models.ItemStatusActive}); err != nil {
					return err
				}
				item.Status = models.ItemStatusActive
				activated++
			}
			if activated == 0 {
				return nil
			}

			if newStatus := RecomputeReservationBatchStatus(CountReservationItems(batch.Items)); newStatus != batch.Status {
				if err := s.reservations.UpdateBatch(tx, batchID, goqu.Record{"status": newStatus}); err != nil {
					return err
				}
			}

			description := fmt.Sprintf("Activated %d item(s) on reservation batch #%d", activated, batchID)
			if err := s.recorder.Record(tx, batch.UserID, "activate_reservation", batch, description); err != nil {
				return err
			}

			if err := s.bus.NotifyTx(tx, batch.UserID,
				fmt.Sprintf("Your reservation (Batch #%d) is now active. Visit the office to borrow the reserved item(s).", batchID), ""); err != nil {
				return err
			}

			result.ItemsActivated += activated
			return nil
		})
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// ExpireClosed closes reservation windows that ended without a conversion:
// active items past their return date become expired and their holds are
// released. Windows consumed by a live linked borrow are left for the return
// cascade to complete.
func (s *ReservationService) ExpireClosed(now time.Time) (ActivationResult, error) {
	var result ActivationResult

	batchIDs, err := s.reservations.ListBatchIDsWithItemsClosed(dateOnly(now))
	if err != nil {
		return result, err
	}

	for _, batchID := range batchIDs {
		err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
			batch, err := s.reservations.GetBatchForUpdate(tx, batchID)
			if err != nil {
				return err
			}
			if models.IsTerminalBatchStatus(batch.Status) {
				return nil
			}

			borrows, err := s.borrows.ListActiveBatchesForReservation(tx, batchID)
			if err != nil {
				return err
			}
			if len(borrows) > 0 {
				return nil
			}

			expired := 0
			for i := range batch.Items {
				item := &batch.Items[i]
				if item.Status != models.ItemStatusActive || !dateOnly(item.ReturnDate).Before(dateOnly(now)) {
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

				if err := s.reservations.UpdateItem(tx, item.ID, goqu.Record{"status": models.ItemStatusExpired}); err != nil {
					return err
				}
				item.Status = models.ItemStatusExpired
				expired++
			}
			if expired == 0 {
				return nil
			}

			if newStatus := RecomputeReservationBatchStatus(CountReservationItems(batch.Items)); newStatus != batch.Status {
				if err := s.reservations.UpdateBatch(tx, batchID, goqu.Record{"status": newStatus}); err != nil {
					return err
				}
			}

			description := fmt.Sprintf("Expired %d item(s) on reservation batch #%d", expired, batchID)
			if err := s.recorder.Record(tx, batch.UserID, "expire_reservation", batch, description); err != nil {
				return err
			}

			if err := s.bus.NotifyTx(tx, batch.UserID,
				fmt.Sprintf("Your reservation (Batch #%d) expired without being borrowed.", batchID), ""); err != nil {
				return err
			}

			result.ItemsExpired += expired
			return nil
		})
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func (s *ReservationService) GetBatch(batchID int) (*models.ReservationBatch, error) {
	return s.reservations.GetBatch(batchID)
}

func (s *ReservationService) ListBatches(userID int, status string) ([]models.ReservationBatch, error) {
	return s.reservations.ListBatches(userID, status)
}

func findReservationItem(batch *models.ReservationBatch, itemID int) (*models.ReservationItem, error) {
	for i := range batch.Items {
		if batch.Items[i].ID == itemID {
			return &batch.Items[i], nil
		}
	}
	return nil, apperrors.Newf(apperrors.KindNotFound, "Item %d not found on batch #%d", itemID, batch.ID)
}
