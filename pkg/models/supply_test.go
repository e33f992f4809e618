package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupplyQuantityAvailable(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		reserved int
		expected int
	}{
		{"no holds", 10, 0, 10},
		{"partial hold", 10, 4, 6},
		{"fully held", 10, 10, 0},
		{"over-held clamps to zero", 3, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := SupplyQuantity{CurrentQuantity: tt.current, ReservedQuantity: tt.reserved}
			assert.Equal(t, tt.expected, q.AvailableQuantity())
		})
	}
}

func TestSupplyStockStatus(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		threshold int
		expected  string
	}{
		{"above threshold", 20, 5, SupplyStatusAvailable},
		{"at threshold", 5, 5, SupplyStatusLowStock},
		{"below threshold", 3, 5, SupplyStatusLowStock},
		{"empty", 0, 5, SupplyStatusOutOfStock},
		{"empty with zero threshold", 0, 0, SupplyStatusOutOfStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := SupplyQuantity{CurrentQuantity: tt.current, MinimumThreshold: tt.threshold}
			assert.Equal(t, tt.expected, q.StockStatus())
		})
	}
}
