package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatOverdueSMS(t *testing.T) {
	tests := []struct {
		name     string
		entries  []OverdueEntry
		expected string
	}{
		{
			name:     "single item",
			entries:  []OverdueEntry{{PropertyName: "Projector", Quantity: 1}},
			expected: "ResourceHive: The following borrowed item(s) are OVERDUE: Projector (x1). Please return them as soon as possible.",
		},
		{
			name: "three items all named",
			entries: []OverdueEntry{
				{PropertyName: "Projector", Quantity: 1},
				{PropertyName: "Extension Cord", Quantity: 2},
				{PropertyName: "HDMI Cable", Quantity: 1},
			},
			expected: "ResourceHive: The following borrowed item(s) are OVERDUE: Projector (x1), Extension Cord (x2), HDMI Cable (x1). Please return them as soon as possible.",
		},
		{
			name: "overflow collapses into a count",
			entries: []OverdueEntry{
				{PropertyName: "Projector", Quantity: 1},
				{PropertyName: "Extension Cord", Quantity: 2},
				{PropertyName: "HDMI Cable", Quantity: 1},
				{PropertyName: "Whiteboard", Quantity: 1},
				{PropertyName: "Laptop", Quantity: 3},
			},
			expected: "ResourceHive: The following borrowed item(s) are OVERDUE: Projector (x1), Extension Cord (x2), HDMI Cable (x1) and 2 more. Please return them as soon as possible.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := FormatOverdueSMS(tt.entries)
			assert.Equal(t, tt.expected, actual)
		})
	}
}
