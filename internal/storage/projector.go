package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fincore/internal/core"
)

// GetTransaction loads one ledger entry with its splits.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error) {
	txns, err := scanTransactions(ctx, r.db,
		`WHERE t.transaction_id = ?`, id.String())
	if err != nil {
		return core.Transaction{}, err
	}
	if len(txns) == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return txns[0], nil
}

// ActiveAmounts returns the signed amounts of all ACTIVE transactions on
// an account dated at or before asOf. Summation happens in Go with
// exact decimals, never in SQL.
func (r *SQLiteRepository) ActiveAmounts(ctx context.Context, accountID uuid.UUID, asOf time.Time) ([]core.Amount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.base_currency_amount, a.currency_code
		 FROM transactions t JOIN accounts a ON a.account_id = t.account_id
		 WHERE t.account_id = ? AND t.status = ? AND t.transaction_date <= ?
		 ORDER BY t.transaction_date`,
		accountID.String(), string(core.StatusActive), asOf.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("query active amounts: %w", err)
	}
	defer rows.Close()

	var amounts []core.Amount
	for rows.Next() {
		var raw, currency string
		if err := rows.Scan(&raw, &currency); err != nil {
			return nil, fmt.Errorf("scan amount: %w", err)
		}
		a, err := core.ParseAmount(raw, currency)
		if err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		amounts = append(amounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query active amounts: %w", err)
	}
	return amounts, nil
}

// HasValuations reports whether an account is valuation-tracked, which
// is defined by the presence of at least one valuation row.
func (r *SQLiteRepository) HasValuations(ctx context.Context, accountID uuid.UUID) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM asset_valuation_history WHERE account_id = ? LIMIT 1`,
		accountID.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check valuations: %w", err)
	}
	return true, nil
}

// LatestValuation returns the newest valuation dated at or before asOf,
// breaking date ties by insertion order. ErrNoValuation means the
// account's entire history postdates asOf.
func (r *SQLiteRepository) LatestValuation(ctx context.Context, accountID uuid.UUID, asOf time.Time) (core.Amount, error) {
	account, err := getAccount(ctx, r.db, accountID)
	if err != nil {
		return core.Amount{}, err
	}
	var raw string
	err = r.db.QueryRowContext(ctx,
		`SELECT value FROM asset_valuation_history
		 WHERE account_id = ? AND valuation_date <= ?
		 ORDER BY valuation_date DESC, rowid DESC LIMIT 1`,
		accountID.String(), asOf.UTC().Format(dateLayout)).Scan(&raw)
	if err == sql.ErrNoRows {
		return core.Amount{}, fmt.Errorf("account %s at %s: %w",
			accountID, asOf.UTC().Format(dateLayout), core.ErrNoValuation)
	}
	if err != nil {
		return core.Amount{}, fmt.Errorf("query valuation: %w", err)
	}
	value, err := core.ParseAmount(raw, account.Currency)
	if err != nil {
		return core.Amount{}, fmt.Errorf("parse valuation: %w", err)
	}
	return value, nil
}

// MonthlySummaries reads the rollup cache for one period, in category
// order. Summary rows carry no currency column; totals come back with a
// weak (empty) currency tag and compare by value.
func (r *SQLiteRepository) MonthlySummaries(ctx context.Context, year, month int) ([]core.MonthlySummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT year, month, category_id, total_amount, transaction_count
		 FROM monthly_category_summary WHERE year = ? AND month = ?
		 ORDER BY category_id`, year, month)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []core.MonthlySummary
	for rows.Next() {
		var (
			s   core.MonthlySummary
			raw string
		)
		if err := rows.Scan(&s.Year, &s.Month, &s.CategoryID, &raw, &s.Count); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.Total, err = core.ParseAmount(raw, "")
		if err != nil {
			return nil, fmt.Errorf("parse summary total: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	return summaries, nil
}

// scanTransactions loads transactions matching the given WHERE clause,
// splits included. It runs against the pool or inside a unit of work.
func scanTransactions(ctx context.Context, q dbtx, where string, args ...any) ([]core.Transaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT t.transaction_id, t.account_id, t.merchant_id, t.category_id,
		        t.base_currency_amount, t.original_amount, t.original_currency_code,
		        t.transaction_date, t.status,
		        t.revises_transaction_id, t.related_transaction_id,
		        a.currency_code
		 FROM transactions t JOIN accounts a ON a.account_id = t.account_id `+where+
			` ORDER BY t.transaction_date, t.transaction_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		var (
			t                          core.Transaction
			rawID, rawAccount          string
			merchant, revises, related sql.NullString
			category                   sql.NullInt64
			rawAmount, rawOriginal     string
			originalCur, rawDate       string
			status, accountCur         string
		)
		if err := rows.Scan(&rawID, &rawAccount, &merchant, &category,
			&rawAmount, &rawOriginal, &originalCur, &rawDate, &status,
			&revises, &related, &accountCur); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("parse transaction id: %w", err)
		}
		if t.AccountID, err = uuid.Parse(rawAccount); err != nil {
			return nil, fmt.Errorf("parse account id: %w", err)
		}
		if t.MerchantID, err = parseNullUUID(merchant); err != nil {
			return nil, fmt.Errorf("parse merchant id: %w", err)
		}
		if t.RevisesID, err = parseNullUUID(revises); err != nil {
			return nil, fmt.Errorf("parse revises id: %w", err)
		}
		if t.RelatedID, err = parseNullUUID(related); err != nil {
			return nil, fmt.Errorf("parse related id: %w", err)
		}
		if category.Valid {
			t.CategoryID = &category.Int64
		}
		if t.Amount, err = core.ParseAmount(rawAmount, accountCur); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		if t.Original, err = core.ParseAmount(rawOriginal, originalCur); err != nil {
			return nil, fmt.Errorf("parse original amount: %w", err)
		}
		if t.Date, err = time.Parse(timeLayout, rawDate); err != nil {
			return nil, fmt.Errorf("parse transaction date: %w", err)
		}
		t.Date = t.Date.UTC()
		t.Status = core.TransactionStatus(status)
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	for i := range txns {
		if err := loadSplits(ctx, q, &txns[i]); err != nil {
			return nil, err
		}
	}
	return txns, nil
}

func loadSplits(ctx context.Context, q dbtx, t *core.Transaction) error {
	rows, err := q.QueryContext(ctx,
		`SELECT split_id, category_id, amount FROM transaction_splits
		 WHERE transaction_id = ? ORDER BY split_id`, t.ID.String())
	if err != nil {
		return fmt.Errorf("query splits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s     core.Split
			rawID string
			raw   string
		)
		if err := rows.Scan(&rawID, &s.CategoryID, &raw); err != nil {
			return fmt.Errorf("scan split: %w", err)
		}
		if s.ID, err = uuid.Parse(rawID); err != nil {
			return fmt.Errorf("parse split id: %w", err)
		}
		s.TransactionID = t.ID
		if s.Amount, err = core.ParseAmount(raw, t.Amount.Currency()); err != nil {
			return fmt.Errorf("parse split amount: %w", err)
		}
		t.Splits = append(t.Splits, s)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query splits: %w", err)
	}
	return nil
}
