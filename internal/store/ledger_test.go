package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markwise/markwise-server/internal/core"
)

func TestLedgerProvision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	balance, err := s.Ledger().Provision(ctx, "user-1", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance.BalanceCents)
	assert.Equal(t, int64(0), balance.ReservedCents)

	// Provisioning the same user twice is a conflict.
	_, err = s.Ledger().Provision(ctx, "user-1", 500)
	require.Error(t, err)
	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, core.ErrCodeConflict, coreErr.Code)

	_, err = s.Ledger().Provision(ctx, "user-2", -1)
	require.Error(t, err)
}

func TestLedgerReserveSettle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Ledger().Provision(ctx, "user-1", 500)
	require.NoError(t, err)

	require.NoError(t, s.Ledger().Reserve(ctx, "user-1", 100))

	balance, err := s.Ledger().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), balance.BalanceCents)
	assert.Equal(t, int64(100), balance.ReservedCents)

	require.NoError(t, s.Ledger().Settle(ctx, "user-1", 100))

	balance, err = s.Ledger().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), balance.BalanceCents)
	assert.Equal(t, int64(0), balance.ReservedCents)
}

func TestLedgerReserveRelease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Ledger().Provision(ctx, "user-1", 500)
	require.NoError(t, err)

	require.NoError(t, s.Ledger().Reserve(ctx, "user-1", 100))
	require.NoError(t, s.Ledger().Release(ctx, "user-1", 100))

	// A release restores the full original balance.
	balance, err := s.Ledger().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance.BalanceCents)
	assert.Equal(t, int64(0), balance.ReservedCents)
}

func TestLedgerReserveInsufficient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Ledger().Provision(ctx, "user-1", 150)
	require.NoError(t, err)

	require.NoError(t, s.Ledger().Reserve(ctx, "user-1", 100))

	// 50 spendable left; the second reservation must refuse without
	// touching the row.
	err = s.Ledger().Reserve(ctx, "user-1", 100)
	require.ErrorIs(t, err, core.ErrInsufficientCredits)

	balance, err := s.Ledger().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance.BalanceCents)
	assert.Equal(t, int64(100), balance.ReservedCents)
}

func TestLedgerReserveUnknownUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Ledger().Reserve(ctx, "nobody", 100)
	require.Error(t, err)
	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, core.ErrCodeNotFound, coreErr.Code)
}

func TestLedgerDrainBeyondReservation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Ledger().Provision(ctx, "user-1", 500)
	require.NoError(t, err)
	require.NoError(t, s.Ledger().Reserve(ctx, "user-1", 100))

	// Settling more than is held must refuse; the hold is untouched.
	require.Error(t, s.Ledger().Settle(ctx, "user-1", 200))
	require.Error(t, s.Ledger().Release(ctx, "user-1", 200))

	balance, err := s.Ledger().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), balance.BalanceCents)
	assert.Equal(t, int64(100), balance.ReservedCents)
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Ledger().Provision(ctx, "user-1", 500)
	require.NoError(t, err)

	require.Error(t, s.Ledger().Reserve(ctx, "user-1", 0))
	require.Error(t, s.Ledger().Reserve(ctx, "user-1", -10))
	require.Error(t, s.Ledger().Settle(ctx, "user-1", 0))
	require.Error(t, s.Ledger().Release(ctx, "user-1", -1))
}
