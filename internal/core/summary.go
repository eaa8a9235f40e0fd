package core

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// SummarizeMonth folds a month's ACTIVE transactions into per-category
// summary rows. A transaction contributes through its own category, or
// through each of its splits when present; entries with neither carry no
// category signal and are skipped. Rows come back in ascending category
// order so a rebuild is byte-for-byte reproducible.
//
// When a transaction has splits, their sum is re-checked against the
// stored amount. A mismatch is data corruption and fails with
// ErrInvariantViolated rather than being repaired.
func SummarizeMonth(year, month int, transactions []Transaction) ([]MonthlySummary, error) {
	totals := make(map[int64]Amount)
	seen := make(map[int64]map[uuid.UUID]struct{})

	count := func(categoryID int64, txID uuid.UUID) {
		if seen[categoryID] == nil {
			seen[categoryID] = make(map[uuid.UUID]struct{})
		}
		seen[categoryID][txID] = struct{}{}
	}

	for _, t := range transactions {
		if t.Status != StatusActive {
			continue
		}
		if len(t.Splits) > 0 {
			split, err := Sum(t.Amount.Currency(), splitAmounts(t.Splits))
			if err != nil {
				return nil, err
			}
			if !split.Equal(t.Amount) {
				return nil, fmt.Errorf("%w: transaction %s splits sum to %s, amount is %s",
					ErrInvariantViolated, t.ID, split, t.Amount)
			}
			for _, s := range t.Splits {
				total, err := totals[s.CategoryID].Add(s.Amount)
				if err != nil {
					return nil, err
				}
				totals[s.CategoryID] = total
				count(s.CategoryID, t.ID)
			}
			continue
		}
		if t.CategoryID == nil {
			continue
		}
		total, err := totals[*t.CategoryID].Add(t.Amount)
		if err != nil {
			return nil, err
		}
		totals[*t.CategoryID] = total
		count(*t.CategoryID, t.ID)
	}

	rows := make([]MonthlySummary, 0, len(totals))
	for categoryID, total := range totals {
		rows = append(rows, MonthlySummary{
			Year:       year,
			Month:      month,
			CategoryID: categoryID,
			Total:      total,
			Count:      int64(len(seen[categoryID])),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CategoryID < rows[j].CategoryID })
	return rows, nil
}

func splitAmounts(splits []Split) []Amount {
	amounts := make([]Amount, len(splits))
	for i, s := range splits {
		amounts[i] = s.Amount
	}
	return amounts
}
