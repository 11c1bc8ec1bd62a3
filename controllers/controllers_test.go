package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"microfinance/cache"
	"microfinance/database"
	"microfinance/models"
	"microfinance/realtime"
	"microfinance/services"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var testJWTKey = []byte("controllers-test-key")

type testAPI struct {
	t       *testing.T
	handler http.Handler
	hub     *realtime.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mem := cache.NewMemory()
	hub := realtime.NewHub("")
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	savings := services.NewSavingsService(db)
	loans := services.NewLoanService(db, nil, hub)
	repayments := services.NewRepaymentService(db, nil, hub, testJWTKey)

	handler := NewRouter(Handlers{
		Auth:         NewAuthController(services.NewUserService(db), testJWTKey, 1),
		Borrowers:    NewBorrowerController(services.NewBorrowerService(db), savings),
		Applications: NewApplicationController(services.NewApplicationService(db, nil, hub)),
		Loans:        NewLoanController(loans, repayments),
		Repayments:   NewRepaymentController(repayments),
		Savings:      NewSavingsController(savings),
		Reports:      NewReportController(services.NewReportService(db, mem, time.Minute), hub),
		Calculator:   NewCalculatorController(services.NewCalculatorService(mem, time.Minute)),
		Realtime:     NewRealtimeController(hub),
	}, RouterConfig{JWTKey: testJWTKey})

	return &testAPI{t: t, handler: handler, hub: hub}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

// call выполняет запрос, проверяет статус и декодирует ответ в out
func (a *testAPI) call(method, path, token string, body interface{}, wantStatus int, out interface{}) {
	a.t.Helper()

	rr := a.do(method, path, token, body)
	if rr.Code != wantStatus {
		a.t.Fatalf("%s %s: status %d, want %d, body %s", method, path, rr.Code, wantStatus, rr.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func (a *testAPI) signUp(first, email string) AuthResponse {
	a.t.Helper()

	var resp AuthResponse
	a.call("POST", "/api/auth/signUp", "", SignUpRequest{
		FirstName: first,
		LastName:  "Tester",
		Email:     email,
		Password:  "Secret123!",
	}, http.StatusCreated, &resp)
	return resp
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	api.call("GET", "/health", "", nil, http.StatusOK, nil)
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)

	admin := api.signUp("Grace", "grace@mfi.test")
	if admin.User.Role != models.RoleAdmin || admin.Token.Token == "" {
		t.Fatalf("first user: %+v", admin)
	}
	officer := api.signUp("Peter", "peter@mfi.test")
	if officer.User.Role != models.RoleLoanOfficer {
		t.Fatalf("second user role: %s", officer.User.Role)
	}

	// повторная регистрация
	rr := api.do("POST", "/api/auth/signUp", "", SignUpRequest{FirstName: "Peter", LastName: "Tester", Email: "peter@mfi.test", Password: "Secret123!"})
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate sign up: got %d", rr.Code)
	}
	// слабый пароль
	rr = api.do("POST", "/api/auth/signUp", "", SignUpRequest{FirstName: "Weak", LastName: "Tester", Email: "weak@mfi.test", Password: "password"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("weak password: got %d", rr.Code)
	}

	var signIn AuthResponse
	api.call("POST", "/api/auth/signIn", "", SignInRequest{Email: "peter@mfi.test", Password: "Secret123!"}, http.StatusOK, &signIn)
	if signIn.Token.Role != models.RoleLoanOfficer {
		t.Errorf("token role: %s", signIn.Token.Role)
	}
	rr = api.do("POST", "/api/auth/signIn", "", SignInRequest{Email: "peter@mfi.test", Password: "Wrong123!"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: got %d", rr.Code)
	}

	var me services.UserDTO
	api.call("GET", "/api/auth/me", signIn.Token.Token, nil, http.StatusOK, &me)
	if me.Email != "peter@mfi.test" {
		t.Errorf("me: %+v", me)
	}

	api.call("GET", "/api/users", officer.Token.Token, nil, http.StatusForbidden, nil)
	api.call("PUT", fmt.Sprintf("/api/users/%d/role", officer.User.ID), admin.Token.Token,
		SetRoleRequest{Role: models.RoleAdmin}, http.StatusOK, &me)
	if me.Role != models.RoleAdmin {
		t.Errorf("role not changed: %+v", me)
	}

	api.call("GET", "/api/loans", "", nil, http.StatusUnauthorized, nil)
}

func TestCalculatorIsPublic(t *testing.T) {
	api := newTestAPI(t)

	var res services.QuoteResult
	api.call("POST", "/api/calculator/quote", "", services.QuoteRequest{Amount: 1_000_000, TermMonths: 12}, http.StatusOK, &res)
	if res.InterestRate != 0.15 || len(res.Schedule) != 12 {
		t.Errorf("unexpected quote %+v", res)
	}

	api.call("POST", "/api/calculator/quote", "", services.QuoteRequest{Amount: -5, TermMonths: 12}, http.StatusBadRequest, nil)
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signUp("Grace", "grace@mfi.test").Token.Token
	officer := api.signUp("Peter", "peter@mfi.test").Token.Token

	var borrower models.Borrower
	api.call("POST", "/api/borrowers", officer, services.CreateBorrowerRequest{
		FirstName:  "Amina",
		LastName:   "Nakato",
		NationalID: "CM900123",
		Phone:      "+256700000001",
		Occupation: "Teacher",
	}, http.StatusCreated, &borrower)

	api.call("POST", "/api/borrowers", officer, services.CreateBorrowerRequest{
		FirstName:  "Amina",
		LastName:   "Nakato",
		NationalID: "CM900123",
		Phone:      "+256700000001",
	}, http.StatusConflict, nil)
	api.call("GET", "/api/borrowers/999", officer, nil, http.StatusNotFound, nil)
	api.call("GET", "/api/borrowers/abc", officer, nil, http.StatusBadRequest, nil)

	var app models.LoanApplication
	api.call("POST", "/api/applications", officer, services.SubmitApplicationRequest{
		BorrowerID: borrower.ID,
		Amount:     400_000,
		TermMonths: 2,
		Purpose:    "school fees",
	}, http.StatusCreated, &app)
	if app.InterestRate != 0.20 {
		t.Errorf("rate: got %v", app.InterestRate)
	}

	var loan models.Loan
	api.call("POST", fmt.Sprintf("/api/applications/%d/approve", app.ID), officer, nil, http.StatusCreated, &loan)
	api.call("POST", fmt.Sprintf("/api/applications/%d/approve", app.ID), officer, nil, http.StatusConflict, nil)

	// до выдачи платежи не принимаются
	api.call("POST", "/api/repayments", officer, services.RecordRepaymentRequest{
		LoanID: loan.ID, Amount: 1000, PaymentMethod: models.PaymentMethodCash,
	}, http.StatusConflict, nil)

	api.call("POST", fmt.Sprintf("/api/loans/%d/disburse", loan.ID), officer, nil, http.StatusOK, &loan)
	if loan.Status != models.LoanStatusActive {
		t.Fatalf("status after disburse: %s", loan.Status)
	}

	api.call("PATCH", fmt.Sprintf("/api/loans/%d/status", loan.ID), officer,
		services.ChangeStatusRequest{Status: models.LoanStatusApproved}, http.StatusConflict, nil)

	api.call("POST", "/api/repayments", officer, services.RecordRepaymentRequest{
		LoanID: loan.ID, Amount: loan.OutstandingBalance + 100, PaymentMethod: models.PaymentMethodCash,
	}, http.StatusBadRequest, nil)

	var repayment models.Repayment
	api.call("POST", "/api/repayments", officer, services.RecordRepaymentRequest{
		LoanID: loan.ID, Amount: loan.OutstandingBalance, PaymentMethod: models.PaymentMethodMobileMoney,
	}, http.StatusCreated, &repayment)

	var details services.LoanDetails
	api.call("GET", fmt.Sprintf("/api/loans/%d", loan.ID), officer, nil, http.StatusOK, &details)
	if details.Status != models.LoanStatusClosed || len(details.Schedule) != 2 {
		t.Errorf("loan after full repayment: %s, %d rows", details.Status, len(details.Schedule))
	}

	var receipt RepaymentResponse
	api.call("GET", fmt.Sprintf("/api/repayments/%d", repayment.ID), officer, nil, http.StatusOK, &receipt)
	if !receipt.ReceiptValid {
		t.Error("receipt signature not valid")
	}

	reverse := ReasonRequest{Reason: "duplicate entry"}
	api.call("POST", fmt.Sprintf("/api/repayments/%d/reverse", repayment.ID), officer, reverse, http.StatusForbidden, nil)
	api.call("POST", fmt.Sprintf("/api/repayments/%d/reverse", repayment.ID), admin, reverse, http.StatusOK, nil)

	api.call("GET", fmt.Sprintf("/api/loans/%d", loan.ID), officer, nil, http.StatusOK, &details)
	if details.Status != models.LoanStatusActive || details.OutstandingBalance != loan.OutstandingBalance {
		t.Errorf("loan after reversal: %s %v", details.Status, details.OutstandingBalance)
	}

	// у заемщика открытый кредит
	api.call("DELETE", fmt.Sprintf("/api/borrowers/%d", borrower.ID), officer, nil, http.StatusConflict, nil)

	var page struct {
		TotalRows int64 `json:"totalRows"`
	}
	api.call("GET", fmt.Sprintf("/api/loans/%d/repayments", loan.ID), officer, nil, http.StatusOK, &page)
	if page.TotalRows != 1 {
		t.Errorf("repayments: got %d", page.TotalRows)
	}

	var report services.PortfolioReport
	api.call("GET", "/api/reports/portfolio?fresh=true", officer, nil, http.StatusOK, &report)
	if report.TotalLoans != 1 || report.Borrowers != 1 {
		t.Errorf("report: %+v", report)
	}

	var refresh services.RefreshResult
	api.call("POST", "/api/loans/refresh-statuses", officer, nil, http.StatusForbidden, nil)
	api.call("POST", "/api/loans/refresh-statuses", admin, nil, http.StatusOK, &refresh)
	if refresh.Checked != 1 {
		t.Errorf("refresh: %+v", refresh)
	}
	api.call("POST", "/api/loans/refresh-statuses?asOf=bad", admin, nil, http.StatusBadRequest, nil)

	writeOff := services.ChangeStatusRequest{Status: models.LoanStatusWrittenOff, Reason: "borrower relocated"}
	api.call("PATCH", fmt.Sprintf("/api/loans/%d/status", loan.ID), officer, writeOff, http.StatusForbidden, nil)
	api.call("PATCH", fmt.Sprintf("/api/loans/%d/status", loan.ID), admin, writeOff, http.StatusOK, &loan)
	if loan.Status != models.LoanStatusWrittenOff {
		t.Errorf("status after write-off: %s", loan.Status)
	}
}

func TestSavingsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("Grace", "grace@mfi.test").Token.Token

	var borrower models.Borrower
	api.call("POST", "/api/borrowers", token, services.CreateBorrowerRequest{
		FirstName: "Amina", LastName: "Nakato", NationalID: "CM900123", Phone: "+256700000001",
	}, http.StatusCreated, &borrower)

	var account models.SavingsAccount
	api.call("POST", "/api/savings", token, services.OpenSavingsRequest{BorrowerID: borrower.ID, InitialDeposit: 10_000}, http.StatusCreated, &account)

	path := fmt.Sprintf("/api/savings/%d", account.ID)
	api.call("POST", path+"/withdraw", token, services.SavingsMovementRequest{Amount: 50_000}, http.StatusConflict, nil)
	api.call("POST", path+"/deposit", token, services.SavingsMovementRequest{Amount: 5_000}, http.StatusOK, &account)
	if account.Balance != 15_000 {
		t.Errorf("balance: got %v", account.Balance)
	}
	api.call("POST", path+"/close", token, nil, http.StatusConflict, nil)

	var accounts []models.SavingsAccount
	api.call("GET", fmt.Sprintf("/api/borrowers/%d/savings", borrower.ID), token, nil, http.StatusOK, &accounts)
	if len(accounts) != 1 {
		t.Errorf("accounts: got %d", len(accounts))
	}
}

func TestMetricsRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signUp("Grace", "grace@mfi.test").Token.Token
	officer := api.signUp("Peter", "peter@mfi.test").Token.Token

	api.call("GET", "/api/metrics", officer, nil, http.StatusForbidden, nil)

	var snapshot map[string]interface{}
	api.call("GET", "/api/metrics", admin, nil, http.StatusOK, &snapshot)
	if _, ok := snapshot["total_requests"]; !ok {
		t.Errorf("snapshot: %v", snapshot)
	}
	if n, ok := snapshot["websocket_connections"].(float64); !ok || n != 0 {
		t.Errorf("websocket connections: %v", snapshot["websocket_connections"])
	}
}

func TestRealtimeEvents(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("Grace", "grace@mfi.test").Token.Token

	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for api.hub.ConnectionCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var borrower models.Borrower
	api.call("POST", "/api/borrowers", token, services.CreateBorrowerRequest{
		FirstName: "Amina", LastName: "Nakato", NationalID: "CM900123", Phone: "+256700000001",
	}, http.StatusCreated, &borrower)
	var app models.LoanApplication
	api.call("POST", "/api/applications", token, services.SubmitApplicationRequest{
		BorrowerID: borrower.ID, Amount: 300_000, TermMonths: 3,
	}, http.StatusCreated, &app)
	var loan models.Loan
	api.call("POST", fmt.Sprintf("/api/applications/%d/approve", app.ID), token, nil, http.StatusCreated, &loan)
	api.call("POST", fmt.Sprintf("/api/loans/%d/disburse", loan.ID), token, nil, http.StatusOK, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	// решение по заявке приходит подавшему ее сотруднику, затем общее событие выдачи
	for _, want := range []string{realtime.EventApplicationDecided, realtime.EventLoanDisbursed} {
		var event realtime.Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("read %s event: %v", want, err)
		}
		if event.Type != want {
			t.Errorf("event type: got %s want %s", event.Type, want)
		}
	}

	// без токена подключение отклоняется
	if _, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil); err == nil {
		t.Error("expected dial error without token")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without token: %d", resp.StatusCode)
	}
}
