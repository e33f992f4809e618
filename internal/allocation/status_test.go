package allocation

import (
	"testing"

	"resourcehive/pkg/models"

	"github.com/stretchr/testify/assert"
)

func countsOf(statuses ...string) ItemCounts {
	var c ItemCounts
	for _, s := range statuses {
		c = c.add(s)
	}
	return c
}

func TestRecomputeSupplyBatchStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		expected string
	}{
		{
			name:     "all pending",
			statuses: []string{"pending", "pending"},
			expected: models.BatchStatusPending,
		},
		{
			name:     "some approved, some pending",
			statuses: []string{"approved", "pending"},
			expected: models.BatchStatusPartiallyApproved,
		},
		{
			name:     "all decided, at least one approved",
			statuses: []string{"approved", "rejected"},
			expected: models.BatchStatusForClaiming,
		},
		{
			name:     "all approved",
			statuses: []string{"approved", "approved"},
			expected: models.BatchStatusForClaiming,
		},
		{
			name:     "all rejected",
			statuses: []string{"rejected", "rejected"},
			expected: models.BatchStatusRejected,
		},
		{
			name:     "all non-rejected completed",
			statuses: []string{"completed", "completed", "rejected"},
			expected: models.BatchStatusCompleted,
		},
		{
			name:     "partially claimed stays claimable",
			statuses: []string{"completed", "approved"},
			expected: models.BatchStatusForClaiming,
		},
		{
			name:     "single item approved",
			statuses: []string{"approved"},
			expected: models.BatchStatusForClaiming,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := RecomputeSupplyBatchStatus(countsOf(tt.statuses...))
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestRecomputeBorrowBatchStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		expected string
	}{
		{
			name:     "all pending",
			statuses: []string{"pending", "pending"},
			expected: models.BatchStatusPending,
		},
		{
			name:     "approved and pending",
			statuses: []string{"approved", "pending"},
			expected: models.BatchStatusPartiallyApproved,
		},
		{
			name:     "fully decided awaits claiming",
			statuses: []string{"approved", "rejected"},
			expected: models.BatchStatusForClaiming,
		},
		{
			name:     "claimed batch is active",
			statuses: []string{"active", "active"},
			expected: models.BatchStatusActive,
		},
		{
			name:     "partially returned stays active",
			statuses: []string{"active", "returned"},
			expected: models.BatchStatusActive,
		},
		{
			name:     "any overdue item flags the batch",
			statuses: []string{"active", "overdue", "returned"},
			expected: models.BatchStatusOverdue,
		},
		{
			name:     "all non-rejected returned",
			statuses: []string{"returned", "returned", "rejected"},
			expected: models.BatchStatusReturned,
		},
		{
			name:     "all rejected",
			statuses: []string{"rejected"},
			expected: models.BatchStatusRejected,
		},
		{
			name:     "approved alongside active stays claimable",
			statuses: []string{"approved", "active"},
			expected: models.BatchStatusForClaiming,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := RecomputeBorrowBatchStatus(countsOf(tt.statuses...))
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestRecomputeReservationBatchStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		expected string
	}{
		{
			name:     "all pending",
			statuses: []string{"pending"},
			expected: models.BatchStatusPending,
		},
		{
			name:     "approved and pending",
			statuses: []string{"approved", "pending"},
			expected: models.BatchStatusPartiallyApproved,
		},
		{
			name:     "fully decided holds at approved",
			statuses: []string{"approved", "approved"},
			expected: models.BatchStatusApproved,
		},
		{
			name:     "approved with a rejection",
			statuses: []string{"approved", "rejected"},
			expected: models.BatchStatusApproved,
		},
		{
			name:     "window open",
			statuses: []string{"active", "approved"},
			expected: models.BatchStatusActive,
		},
		{
			name:     "all non-rejected completed",
			statuses: []string{"completed", "rejected"},
			expected: models.BatchStatusCompleted,
		},
		{
			name:     "all closed with at least one expiry",
			statuses: []string{"expired", "completed"},
			expected: models.BatchStatusExpired,
		},
		{
			name:     "all rejected",
			statuses: []string{"rejected", "rejected"},
			expected: models.BatchStatusRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := RecomputeReservationBatchStatus(countsOf(tt.statuses...))
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestCountSupplyItemsSkipsNothing(t *testing.T) {
	items := []models.SupplyRequestItem{
		{Status: models.ItemStatusApproved},
		{Status: models.ItemStatusRejected},
		{Status: models.ItemStatusVoided},
		{Status: models.ItemStatusPending},
	}

	c := CountSupplyItems(items)

	assert.Equal(t, 4, c.Total)
	assert.Equal(t, 2, c.NonRejected())
	assert.Equal(t, 1, c.Approved)
	assert.Equal(t, 1, c.Rejected)
	assert.Equal(t, 1, c.Voided)
}
