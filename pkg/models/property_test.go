package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropertyAvailableQuantity(t *testing.T) {
	p := Property{Quantity: 8, ReservedQuantity: 3}
	assert.Equal(t, 5, p.AvailableQuantity())

	overHeld := Property{Quantity: 2, ReservedQuantity: 4}
	assert.Equal(t, 0, overHeld.AvailableQuantity())
}

func TestConditionClassification(t *testing.T) {
	assert.False(t, IsUnusableCondition(ConditionGood))
	assert.False(t, IsUnusableCondition(ConditionNotUsedSince))
	assert.True(t, IsUnusableCondition(ConditionNeedingRepair))
	assert.True(t, IsUnusableCondition(ConditionLost))

	assert.True(t, IsArchivableCondition(ConditionObsolete))
	assert.True(t, IsArchivableCondition(ConditionUnserviceable))
	assert.False(t, IsArchivableCondition(ConditionNeedingRepair))

	assert.True(t, IsValidCondition(ConditionGood))
	assert.False(t, IsValidCondition("Slightly used"))
}

func TestConditionForResolution(t *testing.T) {
	tests := []struct {
		resolution string
		condition  string
		ok         bool
	}{
		{ResolutionGood, ConditionGood, true},
		{ResolutionNeedsRepair, ConditionNeedingRepair, true},
		{ResolutionUnserviceable, ConditionUnserviceable, true},
		{ResolutionLost, ConditionLost, true},
		{"write_off", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.resolution, func(t *testing.T) {
			condition, ok := ConditionForResolution(tt.resolution)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.condition, condition)
		})
	}
}
