package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fincore/internal/core"
)

// RebuildMonthlySummary replaces the summary rows for one period with a
// fresh aggregation of that month's ACTIVE transactions. Scan, delete
// and insert share one database transaction: re-running is idempotent,
// and a cancelled rebuild leaves the previous rows untouched.
func (r *SQLiteRepository) RebuildMonthlySummary(ctx context.Context, year, month int) ([]core.MonthlySummary, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	txns, err := scanTransactions(ctx, tx,
		`WHERE t.status = ? AND t.transaction_date >= ? AND t.transaction_date < ?`,
		string(core.StatusActive), start.Format(timeLayout), end.Format(timeLayout))
	if err != nil {
		return nil, err
	}

	rows, err := core.SummarizeMonth(year, month, txns)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM monthly_category_summary WHERE year = ? AND month = ?`, year, month); err != nil {
		return nil, fmt.Errorf("delete summaries: %w", err)
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO monthly_category_summary (year, month, category_id, total_amount, transaction_count)
			 VALUES (?, ?, ?, ?, ?)`,
			row.Year, row.Month, row.CategoryID, row.Total.String(), row.Count); err != nil {
			return nil, fmt.Errorf("insert summary: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Monthly summary rebuilt",
		"year", year, "month", month, "rows", len(rows), "transactions", len(txns))
	return rows, nil
}

// LedgerBounds returns the dates of the oldest and newest transactions,
// any status. It drives full-history rebuilds.
func (r *SQLiteRepository) LedgerBounds(ctx context.Context) (first, last time.Time, ok bool, err error) {
	var rawFirst, rawLast *string
	err = r.db.QueryRowContext(ctx,
		`SELECT MIN(transaction_date), MAX(transaction_date) FROM transactions`).
		Scan(&rawFirst, &rawLast)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("query ledger bounds: %w", err)
	}
	if rawFirst == nil || rawLast == nil {
		return time.Time{}, time.Time{}, false, nil
	}
	if first, err = time.Parse(timeLayout, *rawFirst); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse first date: %w", err)
	}
	if last, err = time.Parse(timeLayout, *rawLast); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse last date: %w", err)
	}
	return first.UTC(), last.UTC(), true, nil
}
