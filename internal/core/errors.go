package core

import "errors"

// Validation errors: rejected before any write, caller fixes the input.
var (
	ErrUnknownAccount   = errors.New("unknown account")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrUnknownMerchant  = errors.New("unknown merchant")
	ErrUnknownTag       = errors.New("unknown tag")
	ErrZeroAmount       = errors.New("amount must be non-zero")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyAllocations = errors.New("no allocations supplied")
	ErrSelfTransfer     = errors.New("source and destination accounts are the same")
)

// State-transition errors: the operation was a no-op, caller must
// re-read current state.
var (
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadySplit      = errors.New("transaction already split")
)

// Invariant errors: a logic bug in the caller or corrupted data. Never
// coerced or silently repaired.
var (
	ErrSumMismatch       = errors.New("allocations do not sum to the transaction amount")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrInvariantViolated = errors.New("ledger invariant violated")
)

// ErrNoValuation means a valuation-tracked account has no valuation at
// or before the requested date.
var ErrNoValuation = errors.New("no valuation available")

// ErrCategoryCycle means a category parent update would close a cycle.
var ErrCategoryCycle = errors.New("category hierarchy cycle")
