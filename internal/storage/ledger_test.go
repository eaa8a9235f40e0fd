package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"fincore/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedAccount(t *testing.T, repo *SQLiteRepository, name string, typ core.AccountType, currency, initial string) uuid.UUID {
	t.Helper()
	id, err := repo.CreateAccount(context.Background(), core.Account{
		Name:           name,
		Type:           typ,
		Currency:       currency,
		InitialBalance: core.MustParseAmount(initial, currency),
	})
	if err != nil {
		t.Fatalf("create account %s: %v", name, err)
	}
	return id
}

func seedCategory(t *testing.T, repo *SQLiteRepository, name string) int64 {
	t.Helper()
	id, err := repo.CreateCategory(context.Background(), core.Category{Name: name})
	if err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return id
}

func testEntry(account uuid.UUID, amount string, category *int64, date time.Time) core.Entry {
	a := core.MustParseAmount(amount, "EUR")
	return core.Entry{
		AccountID:  account,
		CategoryID: category,
		Amount:     a,
		Original:   a,
		Date:       date,
	}
}

var testDate = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

func TestRecordAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo, "Checking", core.AccountAsset, "EUR", "1000")
	groceries := seedCategory(t, repo, "Groceries")

	id, err := repo.Record(ctx, testEntry(account, "-42.50", &groceries, testDate))
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := repo.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != core.StatusActive {
		t.Errorf("status = %s, want ACTIVE", got.Status)
	}
	if got.Amount.String() != "-42.5000" {
		t.Errorf("amount = %s, want -42.5000", got.Amount)
	}
	if got.Amount.Currency() != "EUR" {
		t.Errorf("currency = %s, want EUR", got.Amount.Currency())
	}
	if got.CategoryID == nil || *got.CategoryID != groceries {
		t.Errorf("category = %v, want %d", got.CategoryID, groceries)
	}
	if !got.Date.Equal(testDate) {
		t.Errorf("date = %s, want %s", got.Date, testDate)
	}
}

func TestRecordRejectsBadEntries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo, "Checking", core.AccountAsset, "EUR", "0")

	cases := []struct {
		name  string
		entry core.Entry
		want  error
	}{
		{"zero amount", testEntry(account, "0", nil, testDate), core.ErrZeroAmount},
		{"unknown account", testEntry(uuid.New(), "-10", nil, testDate), core.ErrUnknownAccount},
		{"unknown category", func() core.Entry {
			bad := int64(999)
			return testEntry(account, "-10", &bad, testDate)
		}(), core.ErrUnknownCategory},
		{"currency mismatch", func() core.Entry {
			e := testEntry(account, "-10", nil, testDate)
			e.Amount = core.MustParseAmount("-10", "USD")
			e.Original = e.Amount
			return e
		}(), core.ErrCurrencyMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := repo.Record(ctx, tc.entry); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestVoidIsTerminal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo, "Checking", core.AccountAsset, "EUR", "0")

	id, err := repo.Record(ctx, testEntry(account, "-10", nil, testDate))
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := repo.Void(ctx, id); err != nil {
		t.Fatalf("void: %v", err)
	}
	got, err := repo.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != core.StatusVoid {
		t.Fatalf("status = %s, want VOID", got.Status)
	}

	// Second void is a rejected transition, not a no-op.
	if err := repo.Void(ctx, id); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("double void: got %v, want ErrInvalidTransition", err)
	}
	// A missing row is distinguishable from a terminal one.
	if err := repo.Void(ctx, uuid.New()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("void missing: got %v, want ErrNotFound", err)
	}
}

func TestReviseSupersedes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo, "Checking", core.AccountAsset, "EUR", "1000")

	originalID, err := repo.Record(ctx, testEntry(account, "-200", nil, testDate))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	revisedID, err := repo.Revise(ctx, originalID, testEntry(account, "-150", nil, testDate))
	if err != nil {
		t.Fatalf("revise: %v", err)
	}

	original, err := repo.GetTransaction(ctx, originalID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.Status != core.StatusSuperseded {
		t.Errorf("original status = %s, want SUPERSEDED", original.Status)
	}

	revised, err := repo.GetTransaction(ctx, revisedID)
	if err != nil {
		t.Fatalf("get revised: %v", err)
	}
	if revised.Status != core.StatusActive {
		t.Errorf("revised status = %s, want ACTIVE", revised.Status)
	}
	if revised.RevisesID == nil || *revised.RevisesID != originalID {
		t.Errorf("revises = %v, want %s", revised.RevisesID, originalID)
	}

	// Only the head of a revision chain can be corrected again.
	if _, err := repo.Revise(ctx, originalID, testEntry(account, "-100", nil, testDate)); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("revise superseded: got %v, want ErrInvalidTransition", err)
	}
	if err := repo.Void(ctx, originalID); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("void superseded: got %v, want ErrInvalidTransition", err)
	}
}

func TestSplit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo, "Checking", core.AccountAsset, "EUR", "0")
	groceries := seedCategory(t, repo, "Groceries")
	household := seedCategory(t, repo, "Household")

	id, err := repo.Record(ctx, testEntry(account, "-100", &groceries, testDate))
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := repo.Split(ctx, id, nil); !errors.Is(err, core.ErrEmptyAllocations) {
		t.Fatalf("empty allocations: got %v, want ErrEmptyAllocations", err)
	}

	bad := []core.Allocation{
		{CategoryID: groceries, Amount: core.MustParseAmount("-60", "EUR")},
		{CategoryID: household, Amount: core.MustParseAmount("-50", "EUR")},
	}
	if err := repo.Split(ctx, id, bad); !errors.Is(err, core.ErrSumMismatch) {
		t.Fatalf("sum mismatch: got %v, want ErrSumMismatch", err)
	}

	good := []core.Allocation{
		{CategoryID: groceries, Amount: core.MustParseAmount("-60", "EUR")},
		{CategoryID: household, Amount: core.MustParseAmount("-40", "EUR")},
	}
	if err := repo.Split(ctx, id, good); err != nil {
		t.Fatalf("split: %v", err)
	}

	got, err := repo.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CategoryID != nil {
		t.Errorf("category after split = %v, want nil", got.CategoryID)
	}
	if len(got.Splits) != 2 {
		t.Fatalf("splits = %d, want 2", len(got.Splits))
	}

	// Splitting again requires clearing the first decomposition.
	if err := repo.Split(ctx, id, good); !errors.Is(err, core.ErrAlreadySplit) {
		t.Fatalf("second split: got %v, want ErrAlreadySplit", err)
	}
}

func TestSplitWithoutCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo, "Checking", core.AccountAsset, "EUR", "0")
	groceries := seedCategory(t, repo, "Groceries")

	id, err := repo.Record(ctx, testEntry(account, "-100", nil, testDate))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	allocations := []core.Allocation{{CategoryID: groceries, Amount: core.MustParseAmount("-100", "EUR")}}
	if err := repo.Split(ctx, id, allocations); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
}

func TestTagSetSemantics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	account := seedAccount(t, repo, "Checking", core.AccountAsset, "EUR", "0")

	vacation, err := repo.CreateTag(ctx, "vacation")
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	work, err := repo.CreateTag(ctx, "work")
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}

	id, err := repo.Record(ctx, testEntry(account, "-10", nil, testDate))
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := repo.Tag(ctx, id, []int64{vacation, work}); err != nil {
		t.Fatalf("tag: %v", err)
	}
	// Re-tagging an already attached tag is a no-op.
	if err := repo.Tag(ctx, id, []int64{vacation}); err != nil {
		t.Fatalf("re-tag: %v", err)
	}
	tags, err := repo.TagIDs(ctx, id)
	if err != nil {
		t.Fatalf("tag ids: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("tags = %v, want 2 entries", tags)
	}

	if err := repo.Untag(ctx, id, []int64{vacation}); err != nil {
		t.Fatalf("untag: %v", err)
	}
	tags, err = repo.TagIDs(ctx, id)
	if err != nil {
		t.Fatalf("tag ids: %v", err)
	}
	if len(tags) != 1 || tags[0] != work {
		t.Fatalf("tags = %v, want [%d]", tags, work)
	}

	if err := repo.Tag(ctx, id, []int64{999}); !errors.Is(err, core.ErrUnknownTag) {
		t.Fatalf("unknown tag: got %v, want ErrUnknownTag", err)
	}
}

func TestTransferLegsBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	checking := seedAccount(t, repo, "Checking", core.AccountAsset, "EUR", "1000")
	savings := seedAccount(t, repo, "Savings", core.AccountAsset, "EUR", "0")

	debitID, creditID, err := repo.Transfer(ctx, checking, savings,
		core.MustParseAmount("250", "EUR"), testDate, nil, nil)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	debit, err := repo.GetTransaction(ctx, debitID)
	if err != nil {
		t.Fatalf("get debit: %v", err)
	}
	credit, err := repo.GetTransaction(ctx, creditID)
	if err != nil {
		t.Fatalf("get credit: %v", err)
	}

	if debit.Amount.String() != "-250.0000" || credit.Amount.String() != "250.0000" {
		t.Errorf("legs = %s / %s, want -250.0000 / 250.0000", debit.Amount, credit.Amount)
	}
	sum, err := debit.Amount.Add(credit.Amount)
	if err != nil {
		t.Fatalf("sum legs: %v", err)
	}
	if !sum.IsZero() {
		t.Errorf("legs sum to %s, want zero", sum)
	}
	if debit.RelatedID == nil || *debit.RelatedID != creditID {
		t.Errorf("debit related = %v, want %s", debit.RelatedID, creditID)
	}
	if credit.RelatedID == nil || *credit.RelatedID != debitID {
		t.Errorf("credit related = %v, want %s", credit.RelatedID, debitID)
	}
}

func TestTransferRejections(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	checking := seedAccount(t, repo, "Checking", core.AccountAsset, "EUR", "0")
	dollars := seedAccount(t, repo, "Dollars", core.AccountAsset, "USD", "0")
	amount := core.MustParseAmount("10", "EUR")

	if _, _, err := repo.Transfer(ctx, checking, checking, amount, testDate, nil, nil); !errors.Is(err, core.ErrSelfTransfer) {
		t.Fatalf("self transfer: got %v, want ErrSelfTransfer", err)
	}
	if _, _, err := repo.Transfer(ctx, checking, dollars, core.Zero("EUR"), testDate, nil, nil); !errors.Is(err, core.ErrZeroAmount) {
		t.Fatalf("zero transfer: got %v, want ErrZeroAmount", err)
	}
	if _, _, err := repo.Transfer(ctx, checking, dollars, amount, testDate, nil, nil); !errors.Is(err, core.ErrCurrencyMismatch) {
		t.Fatalf("cross currency: got %v, want ErrCurrencyMismatch", err)
	}
	if _, _, err := repo.Transfer(ctx, checking, uuid.New(), amount, testDate, nil, nil); !errors.Is(err, core.ErrUnknownAccount) {
		t.Fatalf("unknown destination: got %v, want ErrUnknownAccount", err)
	}
}

func TestCategoryCycleRefused(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	food := seedCategory(t, repo, "Food")
	groceries := seedCategory(t, repo, "Groceries")

	if err := repo.SetCategoryParent(ctx, groceries, &food); err != nil {
		t.Fatalf("set parent: %v", err)
	}
	if err := repo.SetCategoryParent(ctx, food, &groceries); !errors.Is(err, core.ErrCategoryCycle) {
		t.Fatalf("cycle: got %v, want ErrCategoryCycle", err)
	}
	if err := repo.SetCategoryParent(ctx, food, &food); !errors.Is(err, core.ErrCategoryCycle) {
		t.Fatalf("self parent: got %v, want ErrCategoryCycle", err)
	}
}
