package models

import "time"

// Batch statuses shared across the three request kinds. Each kind uses the
// subset listed in its status domain; the terminal set is common.
const (
	BatchStatusPending           = "pending"
	BatchStatusPartiallyApproved = "partially_approved"
	BatchStatusApproved          = "approved"
	BatchStatusForClaiming       = "for_claiming"
	BatchStatusActive            = "active"
	BatchStatusCompleted         = "completed"
	BatchStatusReturned          = "returned"
	BatchStatusOverdue           = "overdue"
	BatchStatusRejected          = "rejected"
	BatchStatusExpired           = "expired"
	BatchStatusVoided            = "voided"
	BatchStatusCancelled         = "cancelled"
)

const (
	ItemStatusPending   = "pending"
	ItemStatusApproved  = "approved"
	ItemStatusActive    = "active"
	ItemStatusOverdue   = "overdue"
	ItemStatusReturned  = "returned"
	ItemStatusRejected  = "rejected"
	ItemStatusCompleted = "completed"
	ItemStatusExpired   = "expired"
	ItemStatusVoided    = "voided"
)

var terminalBatchStatuses = map[string]bool{
	BatchStatusCompleted: true,
	BatchStatusReturned:  true,
	BatchStatusRejected:  true,
	BatchStatusExpired:   true,
	BatchStatusVoided:    true,
	BatchStatusCancelled: true,
}

// IsTerminalBatchStatus reports whether a batch may never transition again.
func IsTerminalBatchStatus(status string) bool {
	return terminalBatchStatuses[status]
}

// SupplyRequestBatch is a user's submission to consume supplies.
type SupplyRequestBatch struct {
	ID            int                 `json:"id" db:"id"`
	UserID        int                 `json:"user_id" db:"user_id"`
	Purpose       string              `json:"purpose" db:"purpose"`
	RequestDate   time.Time           `json:"request_date" db:"request_date"`
	ApprovedDate  *time.Time          `json:"approved_date,omitempty" db:"approved_date"`
	ApprovedBy    *int                `json:"approved_by,omitempty" db:"approved_by"`
	ClaimedDate   *time.Time          `json:"claimed_date,omitempty" db:"claimed_date"`
	ClaimedBy     *int                `json:"claimed_by,omitempty" db:"claimed_by"`
	CompletedDate *time.Time          `json:"completed_date,omitempty" db:"completed_date"`
	Status        string              `json:"status" db:"status"`
	Remarks       string              `json:"remarks" db:"remarks"`
	Items         []SupplyRequestItem `json:"items,omitempty" db:"-"`
}

type SupplyRequestItem struct {
	ID               int        `json:"id" db:"id"`
	BatchID          int        `json:"batch_id" db:"batch_id"`
	SupplyID         int        `json:"supply_id" db:"supply_id"`
	Quantity         int        `json:"quantity" db:"quantity"`
	ApprovedQuantity *int       `json:"approved_quantity,omitempty" db:"approved_quantity"`
	ClaimedDate      *time.Time `json:"claimed_date,omitempty" db:"claimed_date"`
	Status           string     `json:"status" db:"status"`
	Remarks          string     `json:"remarks" db:"remarks"`
}

// BorrowRequestBatch is a user's submission to temporarily take property units.
// SourceReservationID links a borrow converted from a reservation so returns
// can cascade completion back to the reservation.
type BorrowRequestBatch struct {
	ID                  int                 `json:"id" db:"id"`
	UserID              int                 `json:"user_id" db:"user_id"`
	Purpose             string              `json:"purpose" db:"purpose"`
	RequestDate         time.Time           `json:"request_date" db:"request_date"`
	ApprovedDate        *time.Time          `json:"approved_date,omitempty" db:"approved_date"`
	ApprovedBy          *int                `json:"approved_by,omitempty" db:"approved_by"`
	ClaimedDate         *time.Time          `json:"claimed_date,omitempty" db:"claimed_date"`
	ClaimedBy           *int                `json:"claimed_by,omitempty" db:"claimed_by"`
	ReturnedDate        *time.Time          `json:"returned_date,omitempty" db:"returned_date"`
	CompletedDate       *time.Time          `json:"completed_date,omitempty" db:"completed_date"`
	Status              string              `json:"status" db:"status"`
	Remarks             string              `json:"remarks" db:"remarks"`
	SourceReservationID *int                `json:"source_reservation_id,omitempty" db:"source_reservation_id"`
	Items               []BorrowRequestItem `json:"items,omitempty" db:"-"`
}

type BorrowRequestItem struct {
	ID               int        `json:"id" db:"id"`
	BatchID          int        `json:"batch_id" db:"batch_id"`
	PropertyID       int        `json:"property_id" db:"property_id"`
	Quantity         int        `json:"quantity" db:"quantity"`
	ApprovedQuantity *int       `json:"approved_quantity,omitempty" db:"approved_quantity"`
	ReturnDate       time.Time  `json:"return_date" db:"return_date"`
	ActualReturnDate *time.Time `json:"actual_return_date,omitempty" db:"actual_return_date"`
	ClaimedDate      *time.Time `json:"claimed_date,omitempty" db:"claimed_date"`
	Status           string     `json:"status" db:"status"`
	OverdueNotified  bool       `json:"overdue_notified" db:"overdue_notified"`
	ReminderSentOn   *time.Time `json:"reminder_sent_on,omitempty" db:"reminder_sent_on"`
	Remarks          string     `json:"remarks" db:"remarks"`
}

// ReservationBatch holds property units for a future window without
// deducting on-hand quantity.
type ReservationBatch struct {
	ID           int               `json:"id" db:"id"`
	UserID       int               `json:"user_id" db:"user_id"`
	Purpose      string            `json:"purpose" db:"purpose"`
	RequestDate  time.Time         `json:"request_date" db:"request_date"`
	ApprovedDate *time.Time        `json:"approved_date,omitempty" db:"approved_date"`
	ApprovedBy   *int              `json:"approved_by,omitempty" db:"approved_by"`
	Status       string            `json:"status" db:"status"`
	Remarks      string            `json:"remarks" db:"remarks"`
	Items        []ReservationItem `json:"items,omitempty" db:"-"`
}

type ReservationItem struct {
	ID         int       `json:"id" db:"id"`
	BatchID    int       `json:"batch_id" db:"batch_id"`
	PropertyID int       `json:"property_id" db:"property_id"`
	Quantity   int       `json:"quantity" db:"quantity"`
	NeededDate time.Time `json:"needed_date" db:"needed_date"`
	ReturnDate time.Time `json:"return_date" db:"return_date"`
	Status     string    `json:"status" db:"status"`
	Remarks    string    `json:"remarks" db:"remarks"`
}

func (b *SupplyRequestBatch) CreateLogView() ActivityLog {
	return ActivityLog{EntityID: b.ID, EntityType: "supply_request_batch"}
}

func (b *BorrowRequestBatch) CreateLogView() ActivityLog {
	return ActivityLog{EntityID: b.ID, EntityType: "borrow_request_batch"}
}

func (b *ReservationBatch) CreateLogView() ActivityLog {
	return ActivityLog{EntityID: b.ID, EntityType: "reservation_batch"}
}
