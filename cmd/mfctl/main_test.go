package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"microfinance/config"
	"microfinance/database"
	"microfinance/loanmath"
	"microfinance/models"
	"microfinance/services"
)

// run выполняет команду с новым корнем и возвращает вывод
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// useTestDB подменяет подключение к postgres базой sqlite в памяти
func useTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	original := openDB
	openDB = func(*config.Config) (*gorm.DB, func(), error) {
		return db, func() {}, nil
	}
	t.Cleanup(func() { openDB = original })
	return db
}

func TestQuoteCommand(t *testing.T) {
	out, err := run(t, "quote", "--amount", "1000000", "--term", "12")
	if err != nil {
		t.Fatalf("quote: %v\n%s", err, out)
	}
	for _, want := range []string{"Monthly rate:    15.00% (tier)", "Due date", "Balance"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// заголовок и 12 строк графика
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if got := len(lines); got < 13 {
		t.Errorf("expected schedule rows, got %d lines", got)
	}
}

func TestQuoteCommandCustomRate(t *testing.T) {
	out, err := run(t, "quote", "--amount", "1200000", "--term", "6", "--rate", "0")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !strings.Contains(out, "(custom)") || !strings.Contains(out, "Monthly payment: 200000.00") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestQuoteCommandValidation(t *testing.T) {
	if _, err := run(t, "quote", "--amount", "1000"); err == nil {
		t.Error("expected error without --term")
	}
	if _, err := run(t, "quote", "--amount", "-5", "--term", "3"); err == nil {
		t.Error("expected validation error for negative amount")
	}
}

func TestBackfillRatingsCommand(t *testing.T) {
	db := useTestDB(t)

	_, err := services.NewBorrowerService(db).Create(services.CreateBorrowerRequest{
		FirstName:  "Amina",
		LastName:   "Okello",
		NationalID: "CM12345",
		Phone:      "+256700000001",
	})
	if err != nil {
		t.Fatalf("create borrower: %v", err)
	}

	out, err := run(t, "backfill-ratings", "--seed", "42")
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if !strings.Contains(out, "scored: 0, skipped: 1") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRefreshStatusesCommand(t *testing.T) {
	useTestDB(t)

	if _, err := run(t, "refresh-statuses", "--as-of", "20-03-2025"); err == nil {
		t.Fatal("expected error for malformed --as-of")
	}

	out, err := run(t, "refresh-statuses", "--as-of", "2025-03-20")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !strings.Contains(out, "checked: 0") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRemoteQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req services.QuoteRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		q := loanmath.Amortize(req.Amount, 0.20, req.TermMonths)
		_ = json.NewEncoder(w).Encode(services.QuoteResult{
			Amount:       req.Amount,
			TermMonths:   req.TermMonths,
			InterestRate: 0.20,
			RateSource:   "tier",
			Quote:        q,
			Schedule:     loanmath.Schedule(req.Amount, 0.20, req.TermMonths, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)),
		})
	}))
	defer srv.Close()

	out, err := run(t, "remote", "quote", "--base-url", srv.URL, "--amount", "100000", "--term", "1")
	if err != nil {
		t.Fatalf("remote quote: %v", err)
	}
	if !strings.Contains(out, "Total amount:    120000.00") || !strings.Contains(out, "2025-02-10") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRemoteLoan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
			return
		}
		var d services.LoanDetails
		d.ID = 3
		d.BorrowerID = 9
		d.Status = models.LoanStatusOverdue
		d.Principal = 400_000
		d.OutstandingBalance = 300_000
		d.State = loanmath.LoanState{Status: loanmath.DisplayOverdue, IsOverdue: true, DaysOverdue: 12, TotalBalance: 300_000}
		_ = json.NewEncoder(w).Encode(d)
	}))
	defer srv.Close()

	out, err := run(t, "remote", "loan", "3", "--base-url", srv.URL, "--token", "tok")
	if err != nil {
		t.Fatalf("remote loan: %v", err)
	}
	for _, want := range []string{"Loan 3 (borrower 9)", "OVERDUE", "Overdue:     12 days"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	_, err = run(t, "remote", "loan", "3", "--base-url", srv.URL, "--token", "wrong")
	if err == nil || !strings.Contains(err.Error(), "HTTP 401") {
		t.Fatalf("expected 401 error, got %v", err)
	}

	if _, err := run(t, "remote", "loan", "abc", "--base-url", srv.URL); err == nil {
		t.Fatal("expected error for bad id")
	}
}
