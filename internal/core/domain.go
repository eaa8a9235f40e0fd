package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccountType classifies an account for net worth arithmetic.
type AccountType string

const (
	AccountAsset     AccountType = "Asset"
	AccountLiability AccountType = "Liability"
)

// PurposeType is an optional budgeting dimension on categories.
type PurposeType string

const (
	PurposeNeed    PurposeType = "Need"
	PurposeWant    PurposeType = "Want"
	PurposeSavings PurposeType = "Savings/Goal"
)

// NatureType marks whether a category's spending recurs at a fixed
// amount or varies.
type NatureType string

const (
	NatureFixed    NatureType = "Fixed"
	NatureVariable NatureType = "Variable"
)

// TransactionStatus is the lifecycle state of a ledger row. Rows are
// never deleted; a transaction leaves ACTIVE exactly once and never
// returns.
type TransactionStatus string

const (
	StatusActive     TransactionStatus = "ACTIVE"
	StatusVoid       TransactionStatus = "VOID"
	StatusSuperseded TransactionStatus = "SUPERSEDED"
)

// CanTransition reports whether the status machine permits moving from
// s to the given status. VOID and SUPERSEDED are terminal.
func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	if s != StatusActive {
		return false
	}
	return to == StatusVoid || to == StatusSuperseded
}

// Account is a container of value. Its balance is never stored; it is
// derived from the initial balance plus ACTIVE ledger activity, or from
// the valuation history when one exists.
type Account struct {
	ID             uuid.UUID
	Name           string
	Type           AccountType
	Currency       string
	InitialBalance Amount
}

func (a Account) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("account name is required")
	}
	if a.Type != AccountAsset && a.Type != AccountLiability {
		return fmt.Errorf("invalid account type %q", a.Type)
	}
	if !ValidCurrency(a.Currency) {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidAmount, a.Currency)
	}
	return nil
}

// Category is a node in the spending taxonomy. ParentID is nil for
// roots; purpose and nature are optional budgeting dimensions.
type Category struct {
	ID       int64
	Name     string
	ParentID *int64
	Purpose  PurposeType
	Nature   NatureType
}

func (c Category) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("category name is required")
	}
	switch c.Purpose {
	case "", PurposeNeed, PurposeWant, PurposeSavings:
	default:
		return fmt.Errorf("invalid purpose type %q", c.Purpose)
	}
	switch c.Nature {
	case "", NatureFixed, NatureVariable:
	default:
		return fmt.Errorf("invalid nature type %q", c.Nature)
	}
	return nil
}

// Merchant is a counterparty. The default category is a data-entry
// convenience only; it is never applied implicitly.
type Merchant struct {
	ID                uuid.UUID
	Name              string
	DefaultCategoryID *int64
}

// Tag is a free-form label attached to transactions with set semantics.
type Tag struct {
	ID   int64
	Name string
}

// Entry is the caller-supplied payload for a new transaction: where the
// money moved, how much in the account's currency, and what was
// originally charged before conversion.
type Entry struct {
	AccountID  uuid.UUID
	MerchantID *uuid.UUID
	CategoryID *int64
	Amount     Amount
	Original   Amount
	Date       time.Time
}

func (e Entry) Validate() error {
	if e.AccountID == uuid.Nil {
		return fmt.Errorf("%w: account id is required", ErrUnknownAccount)
	}
	if e.Amount.IsZero() {
		return ErrZeroAmount
	}
	if !ValidCurrency(e.Amount.Currency()) {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidAmount, e.Amount.Currency())
	}
	if !ValidCurrency(e.Original.Currency()) {
		return fmt.Errorf("%w: unknown original currency %q", ErrInvalidAmount, e.Original.Currency())
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: transaction date is required", ErrInvalidAmount)
	}
	return nil
}

// Transaction is one immutable ledger row. RevisesID points at the row
// this one supersedes; RelatedID links the two legs of a transfer.
type Transaction struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	MerchantID *uuid.UUID
	CategoryID *int64
	Amount     Amount
	Original   Amount
	Date       time.Time
	Status     TransactionStatus
	RevisesID  *uuid.UUID
	RelatedID  *uuid.UUID
	Splits     []Split
}

// Split is one categorized portion of a decomposed transaction. Splits
// always sum exactly to the parent amount.
type Split struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	CategoryID    int64
	Amount        Amount
}

// Allocation is the caller-supplied shape of one split.
type Allocation struct {
	CategoryID int64
	Amount     Amount
}

// Valuation is one observed value of an account at a date. The history
// is append-only.
type Valuation struct {
	AccountID uuid.UUID
	Date      time.Time
	Value     Amount
}

// Goal is a savings target funded by a set of accounts. Progress is
// always derived from balances, never stored.
type Goal struct {
	ID           uuid.UUID
	Name         string
	TargetAmount Amount
	TargetDate   *time.Time
	AccountIDs   []uuid.UUID
}

// MonthlySummary is one rollup row: the total and distinct transaction
// count for a category in a period.
type MonthlySummary struct {
	Year       int
	Month      int
	CategoryID int64
	Total      Amount
	Count      int64
}
