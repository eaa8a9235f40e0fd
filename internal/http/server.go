// Package http exposes the ledger over a JSON API: the five ledger
// store operations, the transfer protocol, the balance projector
// queries and the rollup trigger.
package http

import (
	"net/http"
	"time"

	"fincore/internal/cache"
	"fincore/internal/core"
	"fincore/internal/log"
	"fincore/internal/services"
)

// Summary reads are hot and cheap to cache briefly; writes invalidate
// the touched period.
const (
	summaryCacheSize = 64
	summaryCacheTTL  = 30 * time.Second
)

type Server struct {
	ledger            *services.LedgerService
	projector         *services.BalanceProjector
	rollup            *services.RollupService
	reportingCurrency string
	convert           services.ConvertFunc
	summaryCache      *cache.LRU[[]core.MonthlySummary]
}

// NewServer wires the services into a configured *http.Server.
func NewServer(addr string, ledger *services.LedgerService, projector *services.BalanceProjector, rollup *services.RollupService, reportingCurrency string, convert services.ConvertFunc, logger *log.Logger) *http.Server {
	s := &Server{
		ledger:            ledger,
		projector:         projector,
		rollup:            rollup,
		reportingCurrency: reportingCurrency,
		convert:           convert,
		summaryCache:      cache.NewLRU[[]core.MonthlySummary](summaryCacheSize, summaryCacheTTL),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/transactions", s.handleRecord)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("POST /api/transactions/{id}/void", s.handleVoid)
	mux.HandleFunc("POST /api/transactions/{id}/revise", s.handleRevise)
	mux.HandleFunc("POST /api/transactions/{id}/splits", s.handleSplit)
	mux.HandleFunc("PUT /api/transactions/{id}/tags", s.handleTag)
	mux.HandleFunc("DELETE /api/transactions/{id}/tags", s.handleUntag)

	mux.HandleFunc("POST /api/transfers", s.handleTransfer)

	mux.HandleFunc("GET /api/accounts/{id}/balance", s.handleBalance)
	mux.HandleFunc("GET /api/networth", s.handleNetWorth)
	mux.HandleFunc("GET /api/goals/{id}/progress", s.handleGoalProgress)

	mux.HandleFunc("GET /api/summaries", s.handleSummaries)
	mux.HandleFunc("POST /api/rollups/{year}/{month}", s.handleRebuild)

	handler := log.RequestMiddleware(logger)(withSecurityHeaders(mux))

	return &http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
