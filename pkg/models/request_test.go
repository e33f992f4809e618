package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminalBatchStatus(t *testing.T) {
	terminal := []string{
		BatchStatusCompleted,
		BatchStatusReturned,
		BatchStatusRejected,
		BatchStatusExpired,
		BatchStatusVoided,
		BatchStatusCancelled,
	}
	for _, status := range terminal {
		assert.True(t, IsTerminalBatchStatus(status), status)
	}

	live := []string{
		BatchStatusPending,
		BatchStatusPartiallyApproved,
		BatchStatusApproved,
		BatchStatusForClaiming,
		BatchStatusActive,
		BatchStatusOverdue,
	}
	for _, status := range live {
		assert.False(t, IsTerminalBatchStatus(status), status)
	}
}
