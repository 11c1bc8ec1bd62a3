package controllers

import (
	"github.com/gorilla/mux"
	"microfinance/middleware"
	"microfinance/models"
	"microfinance/utils"
	"net/http"
	"time"
)

// Handlers контроллеры, из которых собирается API
type Handlers struct {
	Auth         *AuthController
	Borrowers    *BorrowerController
	Applications *ApplicationController
	Loans        *LoanController
	Repayments   *RepaymentController
	Savings      *SavingsController
	Reports      *ReportController
	Calculator   *CalculatorController
	Realtime     *RealtimeController
}

// RouterConfig параметры сборки маршрутов
type RouterConfig struct {
	JWTKey     []byte
	CORSOrigin string
	RateLimit  int // запросов в минуту с одного IP, 0 без ограничения
	Limiter    *utils.RateLimiter
}

// NewRouter регистрирует маршруты API и оборачивает их в общие middleware
func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	// Публичные маршруты
	router.HandleFunc("/api/auth/signUp", h.Auth.SignUp).Methods("POST")
	router.HandleFunc("/api/auth/signIn", h.Auth.SignIn).Methods("POST")
	router.HandleFunc("/api/calculator/quote", h.Calculator.Quote).Methods("POST")

	// Защищенные маршруты
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWTKey))
	admin := middleware.RequireRole(models.RoleAdmin)

	protected.HandleFunc("/auth/me", h.Auth.Me).Methods("GET")
	protected.Handle("/users", admin(http.HandlerFunc(h.Auth.ListUsers))).Methods("GET")
	protected.Handle("/users/{id}/role", admin(http.HandlerFunc(h.Auth.SetRole))).Methods("PUT")

	// Заемщики
	protected.HandleFunc("/borrowers", h.Borrowers.Create).Methods("POST")
	protected.HandleFunc("/borrowers", h.Borrowers.List).Methods("GET")
	protected.HandleFunc("/borrowers/{id}", h.Borrowers.Get).Methods("GET")
	protected.HandleFunc("/borrowers/{id}", h.Borrowers.Update).Methods("PUT")
	protected.HandleFunc("/borrowers/{id}", h.Borrowers.Delete).Methods("DELETE")
	protected.HandleFunc("/borrowers/{id}/loans", h.Borrowers.Loans).Methods("GET")
	protected.HandleFunc("/borrowers/{id}/savings", h.Borrowers.Savings).Methods("GET")

	// Заявки
	protected.HandleFunc("/applications", h.Applications.Submit).Methods("POST")
	protected.HandleFunc("/applications", h.Applications.List).Methods("GET")
	protected.HandleFunc("/applications/{id}", h.Applications.Get).Methods("GET")
	protected.HandleFunc("/applications/{id}/approve", h.Applications.Approve).Methods("POST")
	protected.HandleFunc("/applications/{id}/reject", h.Applications.Reject).Methods("POST")

	// Кредиты
	protected.HandleFunc("/loans", h.Loans.List).Methods("GET")
	protected.Handle("/loans/refresh-statuses", admin(http.HandlerFunc(h.Loans.RefreshStatuses))).Methods("POST")
	protected.HandleFunc("/loans/{id}", h.Loans.Get).Methods("GET")
	protected.HandleFunc("/loans/{id}/disburse", h.Loans.Disburse).Methods("POST")
	protected.HandleFunc("/loans/{id}/status", h.Loans.ChangeStatus).Methods("PATCH")
	protected.HandleFunc("/loans/{id}/repayments", h.Loans.Repayments).Methods("GET")

	// Платежи
	protected.HandleFunc("/repayments", h.Repayments.Record).Methods("POST")
	protected.HandleFunc("/repayments", h.Repayments.List).Methods("GET")
	protected.HandleFunc("/repayments/{id}", h.Repayments.Get).Methods("GET")
	protected.HandleFunc("/repayments/{id}/reverse", h.Repayments.Reverse).Methods("POST")

	// Сберегательные счета
	protected.HandleFunc("/savings", h.Savings.Open).Methods("POST")
	protected.HandleFunc("/savings/{id}", h.Savings.Get).Methods("GET")
	protected.HandleFunc("/savings/{id}/deposit", h.Savings.Deposit).Methods("POST")
	protected.HandleFunc("/savings/{id}/withdraw", h.Savings.Withdraw).Methods("POST")
	protected.HandleFunc("/savings/{id}/close", h.Savings.Close).Methods("POST")
	protected.HandleFunc("/savings/{id}/transactions", h.Savings.Transactions).Methods("GET")

	// Отчеты, метрики, события
	protected.HandleFunc("/reports/portfolio", h.Reports.Portfolio).Methods("GET")
	protected.Handle("/metrics", admin(http.HandlerFunc(h.Reports.Metrics))).Methods("GET")
	protected.HandleFunc("/ws", h.Realtime.Connect).Methods("GET")

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = utils.NewRateLimiter(cfg.RateLimit, time.Minute)
	}
	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	var handler http.Handler = router
	handler = middleware.RateLimit(limiter, cfg.RateLimit)(handler)
	handler = middleware.CORS(origin)(handler)
	handler = middleware.LoggingMiddleware(handler)
	return middleware.Recovery(handler)
}
