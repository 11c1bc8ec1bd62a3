package services

import (
	"fmt"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"microfinance/database"
	"microfinance/loanmath"
	"microfinance/models"
	"sync"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *gorm.DB {
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
	// каждое соединение :memory: видит свою базу
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fixedClock часы, которые двигает тест
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fixedClock {
	return &fixedClock{t: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type sentNotice struct {
	kind string
	to   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
	err  error
}

func (f *fakeNotifier) record(kind, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotice{kind: kind, to: to})
	return f.err
}

func (f *fakeNotifier) SendApplicationDecision(to string, app *models.LoanApplication) error {
	return f.record("decision:"+string(app.Status), to)
}

func (f *fakeNotifier) SendDisbursementNotice(to string, _ *models.Loan) error {
	return f.record("disbursed", to)
}

func (f *fakeNotifier) SendRepaymentReceipt(to string, _ *models.Repayment, _ *models.Loan) error {
	return f.record("receipt", to)
}

func (f *fakeNotifier) SendOverdueNotice(to string, _ *models.Loan, _ loanmath.LoanState) error {
	return f.record("overdue", to)
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.kind
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) Publish(eventType string, _ interface{}) {
	f.mu.Lock()
	f.events = append(f.events, eventType)
	f.mu.Unlock()
}

func (f *fakePublisher) SendToUser(userID uint, eventType string, _ interface{}) {
	f.mu.Lock()
	f.events = append(f.events, fmt.Sprintf("user:%d:%s", userID, eventType))
	f.mu.Unlock()
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// fixture набор сервисов поверх одной тестовой базы
type fixture struct {
	db           *gorm.DB
	clock        *fixedClock
	notifier     *fakeNotifier
	publisher    *fakePublisher
	borrowers    *BorrowerService
	applications *ApplicationService
	loans        *LoanService
	repayments   *RepaymentService
	savings      *SavingsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	f := &fixture{
		db:        db,
		clock:     newClock(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}

	f.borrowers = NewBorrowerService(db)
	f.applications = NewApplicationService(db, f.notifier, f.publisher)
	f.applications.now = f.clock.Now
	f.loans = NewLoanService(db, f.notifier, f.publisher)
	f.loans.now = f.clock.Now
	f.repayments = NewRepaymentService(db, f.notifier, f.publisher, []byte("receipt-key"))
	f.repayments.now = f.clock.Now
	f.savings = NewSavingsService(db)
	return f
}

func (f *fixture) borrower(t *testing.T, nationalID, email string) *models.Borrower {
	t.Helper()

	b, err := f.borrowers.Create(CreateBorrowerRequest{
		FirstName:     "Amina",
		LastName:      "Nakato",
		NationalID:    nationalID,
		Phone:         "+256700000001",
		Email:         email,
		Occupation:    "Teacher",
		MonthlyIncome: 900_000,
	})
	if err != nil {
		t.Fatalf("create borrower: %v", err)
	}
	return b
}

// activeLoan заявка, одобрение и выдача кредита
func (f *fixture) activeLoan(t *testing.T, borrowerID uint, amount float64, term int) *models.Loan {
	t.Helper()

	app, err := f.applications.Submit(SubmitApplicationRequest{
		BorrowerID: borrowerID,
		Amount:     amount,
		TermMonths: term,
		Purpose:    "small business stock",
	}, 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	loan, err := f.applications.Approve(app.ID, 1)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	loan, err = f.loans.Disburse(loan.ID, 1)
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}
	return loan
}
