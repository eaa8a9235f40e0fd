// Package services orchestrates the ledger operations: input
// validation, logging and rollup refresh hints around the storage
// layer's atomic units of work.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fincore/internal/core"
	"fincore/internal/storage"
)

// RefreshPublisher emits a hint that a period's summary rows are stale.
// The rollup worker consumes these; losing one only delays a rebuild.
type RefreshPublisher interface {
	PublishRebuildRequest(ctx context.Context, year, month int) error
}

// LedgerService exposes the write side of the ledger.
type LedgerService struct {
	store     *storage.SQLiteRepository
	publisher RefreshPublisher
}

// NewLedgerService wires the store and an optional refresh publisher;
// publisher may be nil for store-only deployments.
func NewLedgerService(store *storage.SQLiteRepository, publisher RefreshPublisher) *LedgerService {
	return &LedgerService{store: store, publisher: publisher}
}

// Record appends a new ACTIVE transaction and returns its identity.
func (s *LedgerService) Record(ctx context.Context, e core.Entry) (uuid.UUID, error) {
	id, err := s.store.Record(ctx, e)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record transaction: %w", err)
	}
	s.hintRebuild(ctx, e.Date)
	return id, nil
}

// Get loads a transaction with its splits.
func (s *LedgerService) Get(ctx context.Context, id uuid.UUID) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// Void marks an ACTIVE transaction VOID.
func (s *LedgerService) Void(ctx context.Context, id uuid.UUID) error {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Void(ctx, id); err != nil {
		return fmt.Errorf("void transaction: %w", err)
	}
	s.hintRebuild(ctx, t.Date)
	return nil
}

// Revise supersedes a transaction with a corrected entry and returns
// the new entry's identity.
func (s *LedgerService) Revise(ctx context.Context, originalID uuid.UUID, corrected core.Entry) (uuid.UUID, error) {
	original, err := s.store.GetTransaction(ctx, originalID)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := s.store.Revise(ctx, originalID, corrected)
	if err != nil {
		return uuid.Nil, fmt.Errorf("revise transaction: %w", err)
	}
	s.hintRebuild(ctx, corrected.Date)
	if !samePeriod(original.Date, corrected.Date) {
		s.hintRebuild(ctx, original.Date)
	}
	return id, nil
}

// Split decomposes a transaction into category allocations.
func (s *LedgerService) Split(ctx context.Context, id uuid.UUID, allocations []core.Allocation) error {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Split(ctx, id, allocations); err != nil {
		return fmt.Errorf("split transaction: %w", err)
	}
	s.hintRebuild(ctx, t.Date)
	return nil
}

// Tag and Untag manage the transaction/tag join with set semantics.
func (s *LedgerService) Tag(ctx context.Context, id uuid.UUID, tagIDs []int64) error {
	return s.store.Tag(ctx, id, tagIDs)
}

func (s *LedgerService) Untag(ctx context.Context, id uuid.UUID, tagIDs []int64) error {
	return s.store.Untag(ctx, id, tagIDs)
}

// Transfer moves amount between two accounts as paired debit and credit
// legs, committed together.
func (s *LedgerService) Transfer(ctx context.Context, src, dst uuid.UUID, amount core.Amount, date time.Time, categoryID *int64, merchantID *uuid.UUID) (debitID, creditID uuid.UUID, err error) {
	if src == dst {
		return uuid.Nil, uuid.Nil, core.ErrSelfTransfer
	}
	debitID, creditID, err = s.store.Transfer(ctx, src, dst, amount, date, categoryID, merchantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("transfer: %w", err)
	}
	s.hintRebuild(ctx, date)
	return debitID, creditID, nil
}

// hintRebuild publishes a refresh hint for the period the write landed
// in. The write has already committed; a failed publish is logged and
// swallowed, the periodic rebuild will catch up.
func (s *LedgerService) hintRebuild(ctx context.Context, date time.Time) {
	if s.publisher == nil {
		return
	}
	year, month := date.UTC().Year(), int(date.UTC().Month())
	if err := s.publisher.PublishRebuildRequest(ctx, year, month); err != nil {
		slog.WarnContext(ctx, "Failed to publish rebuild request",
			"year", year, "month", month, "error", err)
	}
}

func samePeriod(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}
