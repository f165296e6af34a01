package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransferStatusTransitions(t *testing.T) {
	assert.True(t, TransferStatusPending.CanTransitionTo(TransferStatusCompleted))
	assert.True(t, TransferStatusPending.CanTransitionTo(TransferStatusFailed))

	assert.False(t, TransferStatusCompleted.CanTransitionTo(TransferStatusPending))
	assert.False(t, TransferStatusCompleted.CanTransitionTo(TransferStatusFailed))
	assert.False(t, TransferStatusFailed.CanTransitionTo(TransferStatusCompleted))

	assert.False(t, TransferStatusPending.IsTerminal())
	assert.True(t, TransferStatusCompleted.IsTerminal())
	assert.True(t, TransferStatusFailed.IsTerminal())
}

func TestLoanStatusTransitions(t *testing.T) {
	tests := []struct {
		from LoanStatus
		to   LoanStatus
		want bool
	}{
		{LoanStatusPending, LoanStatusFeePending, true},
		{LoanStatusPending, LoanStatusApproved, true},
		{LoanStatusPending, LoanStatusRejected, true},
		{LoanStatusPending, LoanStatusActive, false},
		{LoanStatusFeePending, LoanStatusFeePaid, true},
		{LoanStatusFeePending, LoanStatusApproved, false},
		{LoanStatusFeePending, LoanStatusRejected, false},
		{LoanStatusFeePaid, LoanStatusApproved, true},
		{LoanStatusFeePaid, LoanStatusActive, false},
		{LoanStatusApproved, LoanStatusActive, true},
		{LoanStatusApproved, LoanStatusRejected, false},
		{LoanStatusActive, LoanStatusCompleted, true},
		{LoanStatusActive, LoanStatusRejected, false},
		{LoanStatusRejected, LoanStatusPending, false},
		{LoanStatusCompleted, LoanStatusActive, false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}

	assert.True(t, LoanStatusRejected.IsTerminal())
	assert.True(t, LoanStatusCompleted.IsTerminal())
	assert.False(t, LoanStatusActive.IsTerminal())
}
