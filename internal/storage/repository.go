// Package storage persists the ledger in SQLite. Every multi-row
// operation runs inside a single database transaction so partial writes
// are never observable; a failed unit of work leaves no trace and is
// safe to retry.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"fincore/internal/core"

	_ "modernc.org/sqlite"
)

// Timestamps are stored UTC in a fixed-width layout so lexicographic
// comparison in SQL matches chronological order.
const (
	timeLayout = "2006-01-02 15:04:05.000000000"
	dateLayout = "2006-01-02"
)

// SQLiteRepository is the durable ledger store.
type SQLiteRepository struct {
	db *sql.DB
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting read helpers
// run standalone or inside a unit of work.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// begin starts a unit of work. The returned rollback func is a no-op
// after a successful commit.
func (r *SQLiteRepository) begin(ctx context.Context) (*sql.Tx, func(), error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, func() { _ = tx.Rollback() }, nil
}

// --- Reference data: the identity-lookup side of the store. Rows here
// are owned by the surrounding application; the ledger only resolves
// them by identity before writing.

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (uuid.UUID, error) {
	if err := a.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("validate account: %w", err)
	}
	id := uuid.New()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (account_id, account_name, account_type, currency_code, initial_balance)
		 VALUES (?, ?, ?, ?, ?)`,
		id.String(), a.Name, string(a.Type), a.Currency, a.InitialBalance.String())
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert account: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id uuid.UUID) (core.Account, error) {
	return getAccount(ctx, r.db, id)
}

func getAccount(ctx context.Context, q dbtx, id uuid.UUID) (core.Account, error) {
	var (
		a       core.Account
		rawID   string
		balance string
	)
	err := q.QueryRowContext(ctx,
		`SELECT account_id, account_name, account_type, currency_code, initial_balance
		 FROM accounts WHERE account_id = ?`, id.String()).
		Scan(&rawID, &a.Name, (*string)(&a.Type), &a.Currency, &balance)
	if err == sql.ErrNoRows {
		return core.Account{}, fmt.Errorf("%w: %s", core.ErrUnknownAccount, id)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	a.ID, err = uuid.Parse(rawID)
	if err != nil {
		return core.Account{}, fmt.Errorf("parse account id: %w", err)
	}
	a.InitialBalance, err = core.ParseAmount(balance, a.Currency)
	if err != nil {
		return core.Account{}, fmt.Errorf("parse initial balance: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id FROM accounts ORDER BY account_name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse account id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	accounts := make([]core.Account, 0, len(ids))
	for _, id := range ids {
		a, err := r.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, fmt.Errorf("validate category: %w", err)
	}
	if c.ParentID != nil {
		if err := categoryExists(ctx, r.db, *c.ParentID); err != nil {
			return 0, err
		}
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (category_name, parent_category_id, purpose_type, nature_type)
		 VALUES (?, ?, ?, ?)`,
		c.Name, nullableInt(c.ParentID), nullableStr(string(c.Purpose)), nullableStr(string(c.Nature)))
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category id: %w", err)
	}
	return id, nil
}

// SetCategoryParent re-parents a category, refusing any edge that would
// close a cycle. The walk happens in the same transaction as the update.
func (r *SQLiteRepository) SetCategoryParent(ctx context.Context, id int64, parentID *int64) error {
	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	if err := categoryExists(ctx, tx, id); err != nil {
		return err
	}
	if parentID != nil {
		if err := categoryExists(ctx, tx, *parentID); err != nil {
			return err
		}
		// Walk up from the proposed parent; seeing id again means a cycle.
		for cur := parentID; cur != nil; {
			if *cur == id {
				return fmt.Errorf("%w: category %d", core.ErrCategoryCycle, id)
			}
			var next sql.NullInt64
			err := tx.QueryRowContext(ctx,
				`SELECT parent_category_id FROM categories WHERE category_id = ?`, *cur).Scan(&next)
			if err != nil {
				return fmt.Errorf("walk category parents: %w", err)
			}
			if !next.Valid {
				break
			}
			cur = &next.Int64
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE categories SET parent_category_id = ? WHERE category_id = ?`,
		nullableInt(parentID), id); err != nil {
		return fmt.Errorf("update category parent: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var (
		c       core.Category
		parent  sql.NullInt64
		purpose sql.NullString
		nature  sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT category_id, category_name, parent_category_id, purpose_type, nature_type
		 FROM categories WHERE category_id = ?`, id).
		Scan(&c.ID, &c.Name, &parent, &purpose, &nature)
	if err == sql.ErrNoRows {
		return core.Category{}, fmt.Errorf("%w: %d", core.ErrUnknownCategory, id)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	if parent.Valid {
		c.ParentID = &parent.Int64
	}
	c.Purpose = core.PurposeType(purpose.String)
	c.Nature = core.NatureType(nature.String)
	return c, nil
}

func (r *SQLiteRepository) CreateMerchant(ctx context.Context, m core.Merchant) (uuid.UUID, error) {
	if m.DefaultCategoryID != nil {
		if err := categoryExists(ctx, r.db, *m.DefaultCategoryID); err != nil {
			return uuid.Nil, err
		}
	}
	id := uuid.New()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO merchants (merchant_id, merchant_name, default_category_id) VALUES (?, ?, ?)`,
		id.String(), m.Name, nullableInt(m.DefaultCategoryID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert merchant: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) CreateTag(ctx context.Context, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO tags (tag_name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("insert tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("tag id: %w", err)
	}
	return id, nil
}

// AddValuation appends one observation to an account's valuation
// history. The history is never updated in place.
func (r *SQLiteRepository) AddValuation(ctx context.Context, v core.Valuation) (uuid.UUID, error) {
	if _, err := getAccount(ctx, r.db, v.AccountID); err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO asset_valuation_history (valuation_id, account_id, valuation_date, value)
		 VALUES (?, ?, ?, ?)`,
		id.String(), v.AccountID.String(), v.Date.UTC().Format(dateLayout), v.Value.String())
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert valuation: %w", err)
	}
	slog.InfoContext(ctx, "Valuation appended",
		"valuation_id", id, "account_id", v.AccountID, "value", v.Value.String())
	return id, nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (uuid.UUID, error) {
	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer rollback()

	id := uuid.New()
	var target any
	if g.TargetDate != nil {
		target = g.TargetDate.UTC().Format(dateLayout)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO goals (goal_id, goal_name, target_amount, target_date) VALUES (?, ?, ?, ?)`,
		id.String(), g.Name, g.TargetAmount.String(), target); err != nil {
		return uuid.Nil, fmt.Errorf("insert goal: %w", err)
	}
	for _, accountID := range g.AccountIDs {
		if _, err := getAccount(ctx, tx, accountID); err != nil {
			return uuid.Nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO goal_accounts (goal_id, account_id) VALUES (?, ?)`,
			id.String(), accountID.String()); err != nil {
			return uuid.Nil, fmt.Errorf("insert goal account: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, id uuid.UUID) (core.Goal, error) {
	var (
		g      core.Goal
		rawID  string
		amount string
		target sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT goal_id, goal_name, target_amount, target_date FROM goals WHERE goal_id = ?`,
		id.String()).Scan(&rawID, &g.Name, &amount, &target)
	if err == sql.ErrNoRows {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	g.ID, err = uuid.Parse(rawID)
	if err != nil {
		return core.Goal{}, fmt.Errorf("parse goal id: %w", err)
	}
	// Goal targets carry no currency column; the reporting currency is
	// applied by the caller at comparison time.
	g.TargetAmount, err = core.ParseAmount(amount, "")
	if err != nil {
		return core.Goal{}, fmt.Errorf("parse target amount: %w", err)
	}
	if target.Valid {
		d, err := time.Parse(dateLayout, target.String)
		if err != nil {
			return core.Goal{}, fmt.Errorf("parse target date: %w", err)
		}
		g.TargetDate = &d
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id FROM goal_accounts WHERE goal_id = ? ORDER BY account_id`, id.String())
	if err != nil {
		return core.Goal{}, fmt.Errorf("list goal accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return core.Goal{}, fmt.Errorf("scan goal account: %w", err)
		}
		accountID, err := uuid.Parse(raw)
		if err != nil {
			return core.Goal{}, fmt.Errorf("parse goal account id: %w", err)
		}
		g.AccountIDs = append(g.AccountIDs, accountID)
	}
	if err := rows.Err(); err != nil {
		return core.Goal{}, fmt.Errorf("list goal accounts: %w", err)
	}
	return g, nil
}

// --- shared existence checks and scan helpers

func categoryExists(ctx context.Context, q dbtx, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE category_id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %d", core.ErrUnknownCategory, id)
	}
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	return nil
}

func merchantExists(ctx context.Context, q dbtx, id uuid.UUID) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM merchants WHERE merchant_id = ?`, id.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", core.ErrUnknownMerchant, id)
	}
	if err != nil {
		return fmt.Errorf("check merchant: %w", err)
	}
	return nil
}

func tagExists(ctx context.Context, q dbtx, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE tag_id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %d", core.ErrUnknownTag, id)
	}
	if err != nil {
		return fmt.Errorf("check tag: %w", err)
	}
	return nil
}

func nullableInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableUUID(p *uuid.UUID) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func parseNullUUID(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
