package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"fincore/internal/core"
)

type entryRequest struct {
	AccountID        string    `json:"account_id"`
	MerchantID       *string   `json:"merchant_id,omitempty"`
	CategoryID       *int64    `json:"category_id,omitempty"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	OriginalAmount   string    `json:"original_amount,omitempty"`
	OriginalCurrency string    `json:"original_currency,omitempty"`
	Date             time.Time `json:"date"`
}

func (req entryRequest) toEntry() (core.Entry, error) {
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: bad account id %q", core.ErrUnknownAccount, req.AccountID)
	}
	amount, err := core.ParseAmount(req.Amount, req.Currency)
	if err != nil {
		return core.Entry{}, err
	}
	original := amount
	if req.OriginalAmount != "" {
		cur := req.OriginalCurrency
		if cur == "" {
			cur = req.Currency
		}
		if original, err = core.ParseAmount(req.OriginalAmount, cur); err != nil {
			return core.Entry{}, err
		}
	}
	e := core.Entry{
		AccountID:  accountID,
		CategoryID: req.CategoryID,
		Amount:     amount,
		Original:   original,
		Date:       req.Date,
	}
	if req.MerchantID != nil {
		merchantID, err := uuid.Parse(*req.MerchantID)
		if err != nil {
			return core.Entry{}, fmt.Errorf("%w: bad merchant id %q", core.ErrUnknownMerchant, *req.MerchantID)
		}
		e.MerchantID = &merchantID
	}
	return e, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad id %q", core.ErrNotFound, r.PathValue(name))
	}
	return id, nil
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	entry, err := req.toEntry()
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.ledger.Record(r.Context(), entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateSummaries(entry.Date)
	writeJSON(w, http.StatusCreated, map[string]string{"transaction_id": id.String()})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionResponse(t))
}

func (s *Server) handleVoid(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.Void(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	entry, err := req.toEntry()
	if err != nil {
		writeError(w, r, err)
		return
	}
	newID, err := s.ledger.Revise(r.Context(), id, entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateSummaries(entry.Date)
	writeJSON(w, http.StatusCreated, map[string]string{
		"transaction_id": newID.String(),
		"supersedes":     id.String(),
	})
}

type splitRequest struct {
	Allocations []struct {
		CategoryID int64  `json:"category_id"`
		Amount     string `json:"amount"`
		Currency   string `json:"currency"`
	} `json:"allocations"`
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req splitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	allocations := make([]core.Allocation, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		amount, err := core.ParseAmount(a.Amount, a.Currency)
		if err != nil {
			writeError(w, r, err)
			return
		}
		allocations = append(allocations, core.Allocation{CategoryID: a.CategoryID, Amount: amount})
	}
	if err := s.ledger.Split(r.Context(), id, allocations); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tagRequest struct {
	TagIDs []int64 `json:"tag_ids"`
}

func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	s.handleTagChange(w, r, s.ledger.Tag)
}

func (s *Server) handleUntag(w http.ResponseWriter, r *http.Request) {
	s.handleTagChange(w, r, s.ledger.Untag)
}

func (s *Server) handleTagChange(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uuid.UUID, tagIDs []int64) error) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := apply(r.Context(), id, req.TagIDs); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferRequest struct {
	SourceAccountID      string    `json:"source_account_id"`
	DestinationAccountID string    `json:"destination_account_id"`
	Amount               string    `json:"amount"`
	Currency             string    `json:"currency"`
	Date                 time.Time `json:"date"`
	CategoryID           *int64    `json:"category_id,omitempty"`
	MerchantID           *string   `json:"merchant_id,omitempty"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	src, err := uuid.Parse(req.SourceAccountID)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: bad source account id", core.ErrUnknownAccount))
		return
	}
	dst, err := uuid.Parse(req.DestinationAccountID)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: bad destination account id", core.ErrUnknownAccount))
		return
	}
	amount, err := core.ParseAmount(req.Amount, req.Currency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var merchantID *uuid.UUID
	if req.MerchantID != nil {
		id, err := uuid.Parse(*req.MerchantID)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: bad merchant id", core.ErrUnknownMerchant))
			return
		}
		merchantID = &id
	}
	debitID, creditID, err := s.ledger.Transfer(r.Context(), src, dst, amount, req.Date, req.CategoryID, merchantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateSummaries(req.Date)
	writeJSON(w, http.StatusCreated, map[string]string{
		"debit_transaction_id":  debitID.String(),
		"credit_transaction_id": creditID.String(),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: bad account id", core.ErrUnknownAccount))
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	balance, err := s.projector.AccountBalance(r.Context(), id, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"balance":  balance.String(),
		"currency": balance.Currency(),
	})
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	total, err := s.projector.NetWorth(r.Context(), asOf, s.reportingCurrency, s.convert)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"net_worth": total.String(),
		"currency":  total.Currency(),
	})
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	progress, err := s.projector.GoalProgress(r.Context(), id, asOf, s.reportingCurrency, s.convert)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"goal_id":  progress.Goal.ID.String(),
		"name":     progress.Goal.Name,
		"saved":    progress.Saved.String(),
		"target":   progress.Target.String(),
		"currency": s.reportingCurrency,
	})
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	key := summaryKey(year, month)
	rows, ok := s.summaryCache.Get(key)
	if !ok {
		rows, err = s.rollup.Summaries(r.Context(), year, month)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.summaryCache.Set(key, rows)
	}
	writeJSON(w, http.StatusOK, summariesResponse(year, month, rows))
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad year"})
		return
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil || month < 1 || month > 12 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad month"})
		return
	}
	rows, err := s.rollup.Rebuild(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.summaryCache.Delete(summaryKey(year, month))
	writeJSON(w, http.StatusOK, summariesResponse(year, month, rows))
}

func (s *Server) invalidateSummaries(date time.Time) {
	date = date.UTC()
	s.summaryCache.Delete(summaryKey(date.Year(), int(date.Month())))
}

func summaryKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

func parseYearMonth(r *http.Request) (int, int, error) {
	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("bad year %q", v)
		}
		year = y
	}
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("bad month %q", v)
		}
		month = m
	}
	return year, month, nil
}

type summaryRow struct {
	CategoryID int64  `json:"category_id"`
	Total      string `json:"total"`
	Count      int64  `json:"transaction_count"`
}

func summariesResponse(year, month int, rows []core.MonthlySummary) map[string]any {
	out := make([]summaryRow, len(rows))
	for i, row := range rows {
		out[i] = summaryRow{CategoryID: row.CategoryID, Total: row.Total.String(), Count: row.Count}
	}
	return map[string]any{"year": year, "month": month, "summaries": out}
}

func transactionResponse(t core.Transaction) map[string]any {
	resp := map[string]any{
		"transaction_id": t.ID.String(),
		"account_id":     t.AccountID.String(),
		"amount":         t.Amount.String(),
		"currency":       t.Amount.Currency(),
		"date":           t.Date.Format(time.RFC3339Nano),
		"status":         string(t.Status),
	}
	if t.CategoryID != nil {
		resp["category_id"] = *t.CategoryID
	}
	if t.MerchantID != nil {
		resp["merchant_id"] = t.MerchantID.String()
	}
	if t.RevisesID != nil {
		resp["revises"] = t.RevisesID.String()
	}
	if t.RelatedID != nil {
		resp["related"] = t.RelatedID.String()
	}
	if len(t.Splits) > 0 {
		splits := make([]map[string]any, len(t.Splits))
		for i, sp := range t.Splits {
			splits[i] = map[string]any{
				"split_id":    sp.ID.String(),
				"category_id": sp.CategoryID,
				"amount":      sp.Amount.String(),
			}
		}
		resp["splits"] = splits
	}
	return resp
}
