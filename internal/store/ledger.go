package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/markwise/markwise-server/internal/core"
	"github.com/markwise/markwise-server/internal/store/model"
)

// Ledger holds per-user credit balances. The three mutation operations
// are each a single guarded UPDATE so the balance/reserved invariant is
// enforced by the database, never by callers.
type Ledger interface {
	Provision(ctx context.Context, userID string, bonusCents int64) (*core.Balance, error)
	Get(ctx context.Context, userID string) (*core.Balance, error)
	Reserve(ctx context.Context, userID string, amountCents int64) error
	Settle(ctx context.Context, userID string, amountCents int64) error
	Release(ctx context.Context, userID string, amountCents int64) error
}

type LedgerStore struct {
	db *gorm.DB
}

var _ Ledger = (*LedgerStore)(nil)

func NewLedgerStore(db *gorm.DB) Ledger {
	return &LedgerStore{db: db}
}

// Provision creates the user's ledger row with a signup-bonus balance.
// Creating an account that already exists is an error; accounts are
// never deleted.
func (s *LedgerStore) Provision(ctx context.Context, userID string, bonusCents int64) (*core.Balance, error) {
	if bonusCents < 0 {
		return nil, core.NewValidationError("signup bonus must not be negative", nil)
	}
	account := model.LedgerAccount{
		UserID:       userID,
		BalanceCents: bonusCents,
	}
	result := s.db.WithContext(ctx).Create(&account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, core.NewConflictError("ledger account already exists", map[string]any{"user_id": userID})
		}
		return nil, result.Error
	}
	return &core.Balance{UserID: userID, BalanceCents: bonusCents}, nil
}

func (s *LedgerStore) Get(ctx context.Context, userID string) (*core.Balance, error) {
	var account model.LedgerAccount
	result := s.db.WithContext(ctx).First(&account, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, core.NewNotFoundError("Ledger account", userID)
		}
		return nil, result.Error
	}
	return &core.Balance{
		UserID:        account.UserID,
		BalanceCents:  account.BalanceCents,
		ReservedCents: account.ReservedCents,
	}, nil
}

// Reserve moves amount from spendable balance into the reservation hold.
// The guard `balance_cents >= amount` makes concurrent submissions by
// the same user serialize correctly on the row; the second caller sees
// the first's reservation already deducted.
func (s *LedgerStore) Reserve(ctx context.Context, userID string, amountCents int64) error {
	if amountCents <= 0 {
		return core.NewValidationError("reserve amount must be positive", nil)
	}
	result := s.db.WithContext(ctx).Model(&model.LedgerAccount{}).
		Where("user_id = ? AND balance_cents >= ?", userID, amountCents).
		Updates(map[string]any{
			"balance_cents":  gorm.Expr("balance_cents - ?", amountCents),
			"reserved_cents": gorm.Expr("reserved_cents + ?", amountCents),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		exists, err := s.exists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return core.NewNotFoundError("Ledger account", userID)
		}
		return core.ErrInsufficientCredits
	}
	return nil
}

// Settle releases the hold without returning funds; the charge is final.
func (s *LedgerStore) Settle(ctx context.Context, userID string, amountCents int64) error {
	return s.drainReservation(ctx, userID, amountCents, false)
}

// Release returns the hold to spendable balance; used only on failure.
func (s *LedgerStore) Release(ctx context.Context, userID string, amountCents int64) error {
	return s.drainReservation(ctx, userID, amountCents, true)
}

func (s *LedgerStore) drainReservation(ctx context.Context, userID string, amountCents int64, refund bool) error {
	if amountCents <= 0 {
		return core.NewValidationError("settlement amount must be positive", nil)
	}
	updates := map[string]any{
		"reserved_cents": gorm.Expr("reserved_cents - ?", amountCents),
	}
	if refund {
		updates["balance_cents"] = gorm.Expr("balance_cents + ?", amountCents)
	}
	result := s.db.WithContext(ctx).Model(&model.LedgerAccount{}).
		Where("user_id = ? AND reserved_cents >= ?", userID, amountCents).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.NewInternalError(
			fmt.Sprintf("reservation drain of %d exceeds held amount for user %s", amountCents, userID))
	}
	return nil
}

func (s *LedgerStore) exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&model.LedgerAccount{}).
		Where("user_id = ?", userID).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}
