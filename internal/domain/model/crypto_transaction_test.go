package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionStatusIsTerminal(t *testing.T) {
	assert.False(t, TransactionStatusPending.IsTerminal())
	assert.True(t, TransactionStatusConfirmed.IsTerminal())
	assert.True(t, TransactionStatusFailed.IsTerminal())
	assert.True(t, TransactionStatusExpired.IsTerminal())
}

func TestTransactionStatusCanTransitionTo(t *testing.T) {
	all := []TransactionStatus{
		TransactionStatusPending,
		TransactionStatusConfirmed,
		TransactionStatusFailed,
		TransactionStatusExpired,
	}

	t.Run("pending moves to any terminal state", func(t *testing.T) {
		assert.True(t, TransactionStatusPending.CanTransitionTo(TransactionStatusConfirmed))
		assert.True(t, TransactionStatusPending.CanTransitionTo(TransactionStatusFailed))
		assert.True(t, TransactionStatusPending.CanTransitionTo(TransactionStatusExpired))
	})

	t.Run("no status transitions to itself", func(t *testing.T) {
		for _, s := range all {
			assert.False(t, s.CanTransitionTo(s), "self-transition from %s", s)
		}
	})

	t.Run("terminal states never move", func(t *testing.T) {
		for _, from := range all {
			if !from.IsTerminal() {
				continue
			}
			for _, to := range all {
				assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
			}
		}
	})

	t.Run("nothing transitions back to pending", func(t *testing.T) {
		for _, from := range all {
			assert.False(t, from.CanTransitionTo(TransactionStatusPending), "%s -> pending", from)
		}
	})
}
