package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fincore/internal/core"
)

// Record inserts a new ACTIVE transaction. Reference checks run inside
// the same transaction as the insert; exactly one row is created.
func (r *SQLiteRepository) Record(ctx context.Context, e core.Entry) (uuid.UUID, error) {
	if err := e.Validate(); err != nil {
		return uuid.Nil, err
	}

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer rollback()

	if err := checkEntryReferences(ctx, tx, e); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	if err := insertTransaction(ctx, tx, id, e, nil, nil); err != nil {
		return uuid.Nil, err
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"transaction_id", id, "account_id", e.AccountID, "amount", e.Amount.String())
	return id, nil
}

// Void transitions ACTIVE -> VOID. A second void of the same id fails
// with ErrInvalidTransition; a silent success would hide a caller bug.
func (r *SQLiteRepository) Void(ctx context.Context, id uuid.UUID) error {
	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	if err := transition(ctx, tx, id, core.StatusVoid); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction voided", "transaction_id", id)
	return nil
}

// Revise supersedes originalID and records the corrected entry in the
// same transaction: both happen or neither does. The new row's revises
// pointer makes the correction chain explicit.
func (r *SQLiteRepository) Revise(ctx context.Context, originalID uuid.UUID, corrected core.Entry) (uuid.UUID, error) {
	if err := corrected.Validate(); err != nil {
		return uuid.Nil, err
	}

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer rollback()

	if err := transition(ctx, tx, originalID, core.StatusSuperseded); err != nil {
		return uuid.Nil, err
	}
	if err := checkEntryReferences(ctx, tx, corrected); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	if err := insertTransaction(ctx, tx, id, corrected, &originalID, nil); err != nil {
		return uuid.Nil, err
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction revised",
		"transaction_id", id, "supersedes", originalID, "amount", corrected.Amount.String())
	return id, nil
}

// Split decomposes a categorized transaction into per-category
// allocations. The parent's category is cleared and the allocation rows
// inserted in one transaction; the allocations must sum to the parent's
// amount exactly.
func (r *SQLiteRepository) Split(ctx context.Context, id uuid.UUID, allocations []core.Allocation) error {
	if len(allocations) == 0 {
		return core.ErrEmptyAllocations
	}

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	var (
		categoryID sql.NullInt64
		rawAmount  string
		currency   string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT t.category_id, t.base_currency_amount, a.currency_code
		 FROM transactions t JOIN accounts a ON a.account_id = t.account_id
		 WHERE t.transaction_id = ?`, id.String()).
		Scan(&categoryID, &rawAmount, &currency)
	if err == sql.ErrNoRows {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transaction_splits WHERE transaction_id = ?`, id.String()).
		Scan(&existing); err != nil {
		return fmt.Errorf("count splits: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrAlreadySplit)
	}
	if !categoryID.Valid {
		// No category and no splits: nothing to decompose.
		return fmt.Errorf("transaction %s has no category: %w", id, core.ErrInvalidTransition)
	}

	amount, err := core.ParseAmount(rawAmount, currency)
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}
	total := core.Zero(currency)
	for _, alloc := range allocations {
		if err := categoryExists(ctx, tx, alloc.CategoryID); err != nil {
			return err
		}
		total, err = total.Add(alloc.Amount)
		if err != nil {
			return err
		}
	}
	if !total.Equal(amount) {
		return fmt.Errorf("%w: allocations total %s, transaction amount %s",
			core.ErrSumMismatch, total, amount)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET category_id = NULL WHERE transaction_id = ?`, id.String()); err != nil {
		return fmt.Errorf("clear category: %w", err)
	}
	for _, alloc := range allocations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_splits (split_id, transaction_id, category_id, amount)
			 VALUES (?, ?, ?, ?)`,
			uuid.New().String(), id.String(), alloc.CategoryID, alloc.Amount.String()); err != nil {
			return fmt.Errorf("insert split: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction split",
		"transaction_id", id, "allocations", len(allocations))
	return nil
}

// Tag attaches tags with set semantics: re-tagging is a no-op.
func (r *SQLiteRepository) Tag(ctx context.Context, id uuid.UUID, tagIDs []int64) error {
	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	if err := transactionExists(ctx, tx, id); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if err := tagExists(ctx, tx, tagID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`,
			id.String(), tagID); err != nil {
			return fmt.Errorf("insert tag join: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Untag removes tags; absent joins are ignored.
func (r *SQLiteRepository) Untag(ctx context.Context, id uuid.UUID, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	if err := transactionExists(ctx, tx, id); err != nil {
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tagIDs)), ",")
	args := make([]any, 0, len(tagIDs)+1)
	args = append(args, id.String())
	for _, tagID := range tagIDs {
		args = append(args, tagID)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transaction_tags WHERE transaction_id = ? AND tag_id IN (`+placeholders+`)`,
		args...); err != nil {
		return fmt.Errorf("delete tag joins: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// TagIDs returns the tag set of a transaction.
func (r *SQLiteRepository) TagIDs(ctx context.Context, id uuid.UUID) ([]int64, error) {
	if err := transactionExists(ctx, r.db, id); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT tag_id FROM transaction_tags WHERE transaction_id = ? ORDER BY tag_id`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var tagID int64
		if err := rows.Scan(&tagID); err != nil {
			return nil, fmt.Errorf("scan tag id: %w", err)
		}
		ids = append(ids, tagID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return ids, nil
}

// Transfer records the two legs of a double-entry transfer in one
// transaction: a debit of amount on src and a credit of amount on dst,
// each holding the other's id in related_transaction_id. Ids are
// generated fresh here, and the back-reference is only written once both
// rows exist, all inside the same unit of work.
func (r *SQLiteRepository) Transfer(ctx context.Context, src, dst uuid.UUID, amount core.Amount, date time.Time, categoryID *int64, merchantID *uuid.UUID) (debitID, creditID uuid.UUID, err error) {
	if src == dst {
		return uuid.Nil, uuid.Nil, core.ErrSelfTransfer
	}
	if amount.IsZero() {
		return uuid.Nil, uuid.Nil, core.ErrZeroAmount
	}

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	defer rollback()

	srcAccount, err := getAccount(ctx, tx, src)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	dstAccount, err := getAccount(ctx, tx, dst)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if amount.Currency() != srcAccount.Currency || amount.Currency() != dstAccount.Currency {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: transfer of %s between %s and %s accounts",
			core.ErrCurrencyMismatch, amount.Currency(), srcAccount.Currency, dstAccount.Currency)
	}
	if categoryID != nil {
		if err := categoryExists(ctx, tx, *categoryID); err != nil {
			return uuid.Nil, uuid.Nil, err
		}
	}
	if merchantID != nil {
		if err := merchantExists(ctx, tx, *merchantID); err != nil {
			return uuid.Nil, uuid.Nil, err
		}
	}

	debitID, creditID = uuid.New(), uuid.New()
	debit := core.Entry{
		AccountID:  src,
		MerchantID: merchantID,
		CategoryID: categoryID,
		Amount:     amount.Neg(),
		Original:   amount.Neg(),
		Date:       date,
	}
	credit := core.Entry{
		AccountID:  dst,
		MerchantID: merchantID,
		CategoryID: categoryID,
		Amount:     amount,
		Original:   amount,
		Date:       date,
	}
	if err := insertTransaction(ctx, tx, debitID, debit, nil, nil); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if err := insertTransaction(ctx, tx, creditID, credit, nil, &debitID); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET related_transaction_id = ? WHERE transaction_id = ?`,
		creditID.String(), debitID.String()); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("link debit leg: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transfer recorded",
		"debit_id", debitID, "credit_id", creditID,
		"source_account", src, "destination_account", dst, "amount", amount.String())
	return debitID, creditID, nil
}

// transition applies one edge of the status machine. Zero rows affected
// means the row is missing or already terminal; the two cases map to
// ErrNotFound and ErrInvalidTransition.
func transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, to core.TransactionStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE transaction_id = ? AND status = ?`,
		string(to), id.String(), string(core.StatusActive))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM transactions WHERE transaction_id = ?`, id.String()).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	return fmt.Errorf("transaction %s is %s, not ACTIVE: %w", id, current, core.ErrInvalidTransition)
}

func checkEntryReferences(ctx context.Context, tx *sql.Tx, e core.Entry) error {
	account, err := getAccount(ctx, tx, e.AccountID)
	if err != nil {
		return err
	}
	if e.Amount.Currency() != account.Currency {
		return fmt.Errorf("%w: entry in %s on %s account",
			core.ErrCurrencyMismatch, e.Amount.Currency(), account.Currency)
	}
	if e.CategoryID != nil {
		if err := categoryExists(ctx, tx, *e.CategoryID); err != nil {
			return err
		}
	}
	if e.MerchantID != nil {
		if err := merchantExists(ctx, tx, *e.MerchantID); err != nil {
			return err
		}
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, id uuid.UUID, e core.Entry, revises, related *uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
			transaction_id, account_id, merchant_id, category_id,
			base_currency_amount, original_amount, original_currency_code,
			transaction_date, status, revises_transaction_id, related_transaction_id
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), e.AccountID.String(), nullableUUID(e.MerchantID), nullableInt(e.CategoryID),
		e.Amount.String(), e.Original.String(), e.Original.Currency(),
		e.Date.UTC().Format(timeLayout), string(core.StatusActive),
		nullableUUID(revises), nullableUUID(related))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func transactionExists(ctx context.Context, q dbtx, id uuid.UUID) error {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM transactions WHERE transaction_id = ?`, id.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check transaction: %w", err)
	}
	return nil
}
