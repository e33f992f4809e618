package allocation

import "resourcehive/pkg/models"

// ItemCounts tallies a batch's items by status. NonRejected excludes rejected
// and voided items, which no longer participate in the lifecycle.
type ItemCounts struct {
	Pending   int
	Approved  int
	Rejected  int
	Active    int
	Overdue   int
	Returned  int
	Completed int
	Expired   int
	Voided    int
	Total     int
}

func (c ItemCounts) NonRejected() int {
	return c.Total - c.Rejected - c.Voided
}

func (c ItemCounts) add(status string) ItemCounts {
	switch status {
	case models.ItemStatusPending:
		c.Pending++
	case models.ItemStatusApproved:
		c.Approved++
	case models.ItemStatusRejected:
		c.Rejected++
	case models.ItemStatusActive:
		c.Active++
	case models.ItemStatusOverdue:
		c.Overdue++
	case models.ItemStatusReturned:
		c.Returned++
	case models.ItemStatusCompleted:
		c.Completed++
	case models.ItemStatusExpired:
		c.Expired++
	case models.ItemStatusVoided:
		c.Voided++
	}
	c.Total++
	return c
}

func CountSupplyItems(items []models.SupplyRequestItem) ItemCounts {
	var c ItemCounts
	for i := range items {
		c = c.add(items[i].Status)
	}
	return c
}

func CountBorrowItems(items []models.BorrowRequestItem) ItemCounts {
	var c ItemCounts
	for i := range items {
		c = c.add(items[i].Status)
	}
	return c
}

func CountReservationItems(items []models.ReservationItem) ItemCounts {
	var c ItemCounts
	for i := range items {
		c = c.add(items[i].Status)
	}
	return c
}

// RecomputeSupplyBatchStatus derives the batch status from its item counts.
// This is the only writer of batch status outside void and the scheduler's
// terminal transitions.
func RecomputeSupplyBatchStatus(c ItemCounts) string {
	nonRejected := c.NonRejected()
	decided := c.Approved + c.Completed

	switch {
	case nonRejected > 0 && c.Completed == nonRejected:
		return models.BatchStatusCompleted
	case decided == 0 && c.Pending == 0 && c.Rejected > 0:
		return models.BatchStatusRejected
	case decided > 0 && c.Pending > 0:
		return models.BatchStatusPartiallyApproved
	case decided > 0 && c.Pending == 0:
		return models.BatchStatusForClaiming
	default:
		return models.BatchStatusPending
	}
}

func RecomputeBorrowBatchStatus(c ItemCounts) string {
	nonRejected := c.NonRejected()
	decided := c.Approved + c.Active + c.Overdue + c.Returned

	switch {
	case nonRejected > 0 && c.Returned == nonRejected:
		return models.BatchStatusReturned
	case c.Overdue > 0:
		return models.BatchStatusOverdue
	case nonRejected > 0 && c.Active > 0 && c.Active+c.Returned == nonRejected:
		return models.BatchStatusActive
	case decided == 0 && c.Pending == 0 && c.Rejected > 0:
		return models.BatchStatusRejected
	case decided > 0 && c.Pending > 0:
		return models.BatchStatusPartiallyApproved
	case decided > 0 && c.Pending == 0:
		return models.BatchStatusForClaiming
	default:
		return models.BatchStatusPending
	}
}

// RecomputeReservationBatchStatus is the reservation analogue. Reservations
// skip for_claiming: a fully decided batch sits in approved until the
// scheduler opens its window.
func RecomputeReservationBatchStatus(c ItemCounts) string {
	nonRejected := c.NonRejected()
	decided := c.Approved + c.Active + c.Completed + c.Expired

	switch {
	case nonRejected > 0 && c.Completed == nonRejected:
		return models.BatchStatusCompleted
	case nonRejected > 0 && c.Expired+c.Completed == nonRejected && c.Expired > 0:
		return models.BatchStatusExpired
	case nonRejected > 0 && c.Active > 0 && c.Pending == 0:
		return models.BatchStatusActive
	case decided == 0 && c.Pending == 0 && c.Rejected > 0:
		return models.BatchStatusRejected
	case decided > 0 && c.Pending > 0:
		return models.BatchStatusPartiallyApproved
	case decided > 0 && c.Pending == 0:
		return models.BatchStatusApproved
	default:
		return models.BatchStatusPending
	}
}
