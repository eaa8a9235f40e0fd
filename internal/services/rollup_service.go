package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fincore/internal/core"
	"fincore/internal/storage"
)

// RollupService owns the monthly_category_summary cache. Rebuilds are
// period-scoped, idempotent and the only sanctioned way to touch those
// rows.
type RollupService struct {
	store *storage.SQLiteRepository
}

func NewRollupService(store *storage.SQLiteRepository) *RollupService {
	return &RollupService{store: store}
}

// Rebuild regenerates one period's summary rows wholesale.
func (s *RollupService) Rebuild(ctx context.Context, year, month int) ([]core.MonthlySummary, error) {
	rows, err := s.store.RebuildMonthlySummary(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("rebuild %04d-%02d: %w", year, month, err)
	}
	return rows, nil
}

// RebuildRange re-runs every period from (fromYear, fromMonth) through
// (toYear, toMonth) inclusive, in order. Each period commits on its
// own, so a failure leaves earlier periods rebuilt and later ones
// untouched.
func (s *RollupService) RebuildRange(ctx context.Context, fromYear, fromMonth, toYear, toMonth int) error {
	from := time.Date(fromYear, time.Month(fromMonth), 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(toYear, time.Month(toMonth), 1, 0, 0, 0, 0, time.UTC)
	if to.Before(from) {
		return fmt.Errorf("invalid range %04d-%02d..%04d-%02d", fromYear, fromMonth, toYear, toMonth)
	}

	periods := 0
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 1, 0) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.Rebuild(ctx, cur.Year(), int(cur.Month())); err != nil {
			return err
		}
		periods++
	}
	slog.InfoContext(ctx, "Summary range rebuilt", "periods", periods)
	return nil
}

// RebuildAll rebuilds every period the ledger has ever touched. Running
// it against an empty summary table reconstructs the cache from
// scratch.
func (s *RollupService) RebuildAll(ctx context.Context) error {
	first, last, ok, err := s.store.LedgerBounds(ctx)
	if err != nil {
		return err
	}
	if !ok {
		slog.InfoContext(ctx, "Ledger is empty, nothing to rebuild")
		return nil
	}
	return s.RebuildRange(ctx, first.Year(), int(first.Month()), last.Year(), int(last.Month()))
}

// Summaries reads the cache for one period.
func (s *RollupService) Summaries(ctx context.Context, year, month int) ([]core.MonthlySummary, error) {
	return s.store.MonthlySummaries(ctx, year, month)
}
