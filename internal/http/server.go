package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"soldi/internal/log"
	"soldi/internal/ratelimit"
	"soldi/internal/services"
	"soldi/internal/storage"
)

// Server exposes the JSON API. Identity arrives as trusted headers set
// by the fronting auth proxy; the server provisions users on first
// sight and scopes every query to the caller.
type Server struct {
	http.Server

	repo         *storage.Repository
	accounts     *services.AccountService
	transactions *services.TransactionService
	budgets      *services.BudgetService
	limiter      *ratelimit.Limiter
	logger       *log.Logger

	shutdownOnce sync.Once
}

// Deps bundles what the server needs.
type Deps struct {
	Repo         *storage.Repository
	Accounts     *services.AccountService
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Limiter      *ratelimit.Limiter
	Logger       *log.Logger
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		repo:         deps.Repo,
		accounts:     deps.Accounts,
		transactions: deps.Transactions,
		budgets:      deps.Budgets,
		limiter:      deps.Limiter,
		logger:       deps.Logger,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/accounts", s.withUser(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.withUser(s.withRateLimit(s.handleCreateAccount)))
	mux.HandleFunc("GET /api/accounts/{id}", s.withUser(s.handleGetAccount))
	mux.HandleFunc("GET /api/accounts/{id}/transactions", s.withUser(s.handleAccountTransactions))
	mux.HandleFunc("POST /api/accounts/{id}/default", s.withUser(s.withRateLimit(s.handleSetDefaultAccount)))

	mux.HandleFunc("POST /api/transactions", s.withUser(s.withRateLimit(s.handleCreateTransaction)))
	mux.HandleFunc("GET /api/transactions", s.withUser(s.handleRecentTransactions))
	mux.HandleFunc("DELETE /api/transactions", s.withUser(s.withRateLimit(s.handleDeleteTransactions)))
	mux.HandleFunc("GET /api/transactions/{id}", s.withUser(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.withUser(s.withRateLimit(s.handleUpdateTransaction)))

	mux.HandleFunc("GET /api/budget", s.withUser(s.handleGetBudget))
	mux.HandleFunc("PUT /api/budget", s.withUser(s.withRateLimit(s.handleUpsertBudget)))

	mux.HandleFunc("GET /api/dashboard", s.withUser(s.handleDashboard))
	mux.HandleFunc("POST /api/receipts/scan", s.withUser(s.withRateLimit(s.handleScanReceipt)))

	return s
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// Shutdown stops the HTTP listener and the rate limiter's cleanup
// goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}
