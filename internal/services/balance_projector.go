package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fincore/internal/core"
	"fincore/internal/storage"
)

// ConvertFunc converts an amount into the target currency. Rate
// sourcing is the caller's concern; the projector only applies it.
type ConvertFunc func(a core.Amount, toCurrency string) (core.Amount, error)

// SameCurrencyConversion is the degenerate converter for single-currency
// ledgers: it accepts amounts already in the target currency and fails
// with ErrCurrencyMismatch otherwise.
func SameCurrencyConversion() ConvertFunc {
	return func(a core.Amount, toCurrency string) (core.Amount, error) {
		if a.Currency() != "" && a.Currency() != toCurrency {
			return core.Amount{}, fmt.Errorf("%w: no rate from %s to %s",
				core.ErrCurrencyMismatch, a.Currency(), toCurrency)
		}
		return core.NewAmount(a.Decimal(), toCurrency), nil
	}
}

// BalanceProjector derives balances and net worth at read time. Nothing
// here is ever persisted; every query is a fold over the ledger and the
// valuation history.
type BalanceProjector struct {
	store *storage.SQLiteRepository
	now   func() time.Time
}

// NewBalanceProjector builds a projector; now may be nil to use the
// wall clock.
func NewBalanceProjector(store *storage.SQLiteRepository, now func() time.Time) *BalanceProjector {
	if now == nil {
		now = time.Now
	}
	return &BalanceProjector{store: store, now: now}
}

func (p *BalanceProjector) at(asOf *time.Time) time.Time {
	if asOf != nil {
		return *asOf
	}
	return p.now()
}

// AccountBalance computes an account's balance as of the given instant
// (nil means now). Ledger accounts fold initial balance plus ACTIVE
// transaction amounts; valuation-tracked accounts return the latest
// observed value instead.
func (p *BalanceProjector) AccountBalance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (core.Amount, error) {
	at := p.at(asOf)

	account, err := p.store.GetAccount(ctx, accountID)
	if err != nil {
		return core.Amount{}, err
	}

	tracked, err := p.store.HasValuations(ctx, accountID)
	if err != nil {
		return core.Amount{}, err
	}
	if tracked {
		return p.store.LatestValuation(ctx, accountID, at)
	}

	amounts, err := p.store.ActiveAmounts(ctx, accountID, at)
	if err != nil {
		return core.Amount{}, err
	}
	activity, err := core.Sum(account.Currency, amounts)
	if err != nil {
		return core.Amount{}, err
	}
	balance, err := account.InitialBalance.Add(activity)
	if err != nil {
		return core.Amount{}, err
	}
	return balance, nil
}

// NetWorth is the sum of Asset balances minus Liability balances across
// all accounts, converted into the reporting currency.
func (p *BalanceProjector) NetWorth(ctx context.Context, asOf *time.Time, reportingCurrency string, convert ConvertFunc) (core.Amount, error) {
	accounts, err := p.store.ListAccounts(ctx)
	if err != nil {
		return core.Amount{}, err
	}

	total := core.Zero(reportingCurrency)
	for _, account := range accounts {
		balance, err := p.AccountBalance(ctx, account.ID, asOf)
		if err != nil {
			return core.Amount{}, fmt.Errorf("balance of %q: %w", account.Name, err)
		}
		converted, err := convert(balance, reportingCurrency)
		if err != nil {
			return core.Amount{}, fmt.Errorf("convert balance of %q: %w", account.Name, err)
		}
		switch account.Type {
		case core.AccountAsset:
			total, err = total.Add(converted)
		case core.AccountLiability:
			total, err = total.Sub(converted)
		default:
			err = fmt.Errorf("account %q has invalid type %q", account.Name, account.Type)
		}
		if err != nil {
			return core.Amount{}, err
		}
	}
	return total, nil
}

// GoalProgress is a read-only view over a goal's funding accounts.
type GoalProgress struct {
	Goal   core.Goal
	Saved  core.Amount
	Target core.Amount
}

// GoalProgress sums the balances of a goal's linked accounts. Progress
// is always computed, never stored.
func (p *BalanceProjector) GoalProgress(ctx context.Context, goalID uuid.UUID, asOf *time.Time, reportingCurrency string, convert ConvertFunc) (GoalProgress, error) {
	goal, err := p.store.GetGoal(ctx, goalID)
	if err != nil {
		return GoalProgress{}, err
	}

	saved := core.Zero(reportingCurrency)
	for _, accountID := range goal.AccountIDs {
		balance, err := p.AccountBalance(ctx, accountID, asOf)
		if err != nil {
			return GoalProgress{}, err
		}
		converted, err := convert(balance, reportingCurrency)
		if err != nil {
			return GoalProgress{}, err
		}
		saved, err = saved.Add(converted)
		if err != nil {
			return GoalProgress{}, err
		}
	}

	target := core.NewAmount(goal.TargetAmount.Decimal(), reportingCurrency)
	return GoalProgress{Goal: goal, Saved: saved, Target: target}, nil
}
