package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/middleware"
	"github.com/segyhp/lending-ledger/pkg/response"
)

const uuidPattern = "[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}"

type Handlers struct {
	Health    *HealthHandler
	Users     *UserHandler
	Borrowers *BorrowerHandler
	Loans     *LoanHandler
	Payments  *PaymentHandler
	Reports   *ReportHandler
}

// NewRouter mounts the API under /api. Login is public and rate limited;
// everything else requires a session and, per route, a role.
func NewRouter(h Handlers, sessions middleware.SessionValidator, loginLimiter *middleware.IPRateLimiter) http.Handler {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware)

	router.HandleFunc("/health", h.Health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.Health.Ready).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Handle("/users/auth", loginLimiter.Middleware(http.HandlerFunc(h.Users.Login))).Methods(http.MethodPost)

	secured := api.NewRoute().Subrouter()
	secured.Use(middleware.Auth(sessions))

	admin := roleRoutes(secured, domain.RoleAdmin)
	staff := roleRoutes(secured, domain.RoleAdmin, domain.RoleAgent)
	id := "/{id:" + uuidPattern + "}"

	// Users
	secured.HandleFunc("/users/logout", h.Users.Logout).Methods(http.MethodPost)
	secured.HandleFunc("/users/profile", h.Users.Profile).Methods(http.MethodGet)
	admin("/users/register", h.Users.Register, http.MethodPost)
	admin("/users", h.Users.List, http.MethodGet)
	admin("/users/agents", h.Users.ListAgents, http.MethodGet)
	admin("/users"+id, h.Users.Get, http.MethodGet)
	admin("/users"+id, h.Users.Update, http.MethodPut)
	admin("/users"+id, h.Users.Delete, http.MethodDelete)

	// Borrowers
	admin("/borrowers", h.Borrowers.Create, http.MethodPost)
	staff("/borrowers", h.Borrowers.List, http.MethodGet)
	staff("/borrowers/search/{phone}", h.Borrowers.SearchByPhone, http.MethodGet)
	staff("/borrowers"+id, h.Borrowers.Get, http.MethodGet)
	admin("/borrowers"+id, h.Borrowers.Update, http.MethodPut)
	admin("/borrowers"+id, h.Borrowers.Delete, http.MethodDelete)

	// Loans
	admin("/loans", h.Loans.Create, http.MethodPost)
	staff("/loans", h.Loans.List, http.MethodGet)
	staff("/loans/agent/{agentId:"+uuidPattern+"}", h.Loans.ListByAgent, http.MethodGet)
	staff("/loans"+id, h.Loans.Get, http.MethodGet)
	staff("/loans"+id+"/pay", h.Loans.Pay, http.MethodPost)
	admin("/loans"+id+"/status", h.Loans.UpdateStatus, http.MethodPut)
	admin("/loans"+id, h.Loans.Delete, http.MethodDelete)

	// Payments
	staff("/payments", h.Payments.Create, http.MethodPost)
	staff("/payments", h.Payments.List, http.MethodGet)
	staff("/payments/today", h.Payments.Today, http.MethodGet)
	staff("/payments/yesterday", h.Payments.Yesterday, http.MethodGet)
	staff("/payments/payment-report", h.Payments.Report, http.MethodGet)
	staff("/payments/loan"+id, h.Payments.ByLoan, http.MethodGet)
	staff("/payments/borrower"+id, h.Payments.ByBorrower, http.MethodGet)
	admin("/payments"+id, h.Payments.Delete, http.MethodDelete)

	// Reports
	admin("/reports/reconciliation", h.Reports.Reconciliation, http.MethodGet)
	admin("/reports/daily-summary", h.Reports.DailySummary, http.MethodGet)

	// CORS wraps the router so preflight requests never reach route matching.
	return response.CORSMiddleware(router)
}

func roleRoutes(r *mux.Router, roles ...string) func(path string, fn http.HandlerFunc, method string) {
	gate := middleware.RequireRoles(roles...)
	return func(path string, fn http.HandlerFunc, method string) {
		r.Handle(path, gate(fn)).Methods(method)
	}
}
