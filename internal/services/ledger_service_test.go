package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fincore/internal/core"
)

type fakePublisher struct {
	published [][2]int
	err       error
}

func (f *fakePublisher) PublishRebuildRequest(_ context.Context, year, month int) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, [2]int{year, month})
	return nil
}

func TestLedgerServicePublishesRebuildHints(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	account := newAccount(t, repo, "Checking", core.AccountAsset, "EUR", "0")
	publisher := &fakePublisher{}
	svc := NewLedgerService(repo, publisher)

	amount := core.MustParseAmount("-20", "EUR")
	march := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	id, err := svc.Record(ctx, core.Entry{AccountID: account, Amount: amount, Original: amount, Date: march})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(publisher.published) != 1 || publisher.published[0] != [2]int{2025, 3} {
		t.Fatalf("published = %v, want [[2025 3]]", publisher.published)
	}

	// Moving a transaction into another month flags both periods stale.
	april := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	corrected := core.MustParseAmount("-25", "EUR")
	if _, err := svc.Revise(ctx, id, core.Entry{AccountID: account, Amount: corrected, Original: corrected, Date: april}); err != nil {
		t.Fatalf("revise: %v", err)
	}
	got := publisher.published[1:]
	if len(got) != 2 || got[0] != [2]int{2025, 4} || got[1] != [2]int{2025, 3} {
		t.Fatalf("revise hints = %v, want [[2025 4] [2025 3]]", got)
	}
}

func TestLedgerServiceSurvivesPublisherFailure(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	account := newAccount(t, repo, "Checking", core.AccountAsset, "EUR", "0")
	publisher := &fakePublisher{err: errors.New("broker down")}
	svc := NewLedgerService(repo, publisher)

	amount := core.MustParseAmount("-20", "EUR")
	id, err := svc.Record(ctx, core.Entry{
		AccountID: account, Amount: amount, Original: amount,
		Date: time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("record should commit despite publish failure: %v", err)
	}
	if _, err := svc.Get(ctx, id); err != nil {
		t.Fatalf("get: %v", err)
	}
}

func TestRollupServiceRebuildAll(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	account := newAccount(t, repo, "Checking", core.AccountAsset, "EUR", "0")
	category, err := repo.CreateCategory(ctx, core.Category{Name: "Groceries"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	for _, d := range []time.Time{
		time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC),
	} {
		amount := core.MustParseAmount("-10", "EUR")
		if _, err := repo.Record(ctx, core.Entry{
			AccountID: account, CategoryID: &category,
			Amount: amount, Original: amount, Date: d,
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	svc := NewRollupService(repo)
	if err := svc.RebuildAll(ctx); err != nil {
		t.Fatalf("rebuild all: %v", err)
	}

	for _, period := range []struct{ year, month int }{{2024, 12}, {2025, 1}, {2025, 2}} {
		rows, err := svc.Summaries(ctx, period.year, period.month)
		if err != nil {
			t.Fatalf("summaries %d-%d: %v", period.year, period.month, err)
		}
		if len(rows) != 1 || rows[0].Total.String() != "-10.0000" {
			t.Fatalf("summaries %d-%d = %+v", period.year, period.month, rows)
		}
	}
}
