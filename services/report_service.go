package services

import (
	"context"
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"microfinance/cache"
	"microfinance/loanmath"
	"microfinance/models"
	"microfinance/utils"
	"time"
)

// par30Days порог просрочки для показателя PAR30
const par30Days = 30

// PortfolioReport сводка по кредитному портфелю
type PortfolioReport struct {
	AsOf                time.Time                   `json:"asOf"`
	Borrowers           int64                       `json:"borrowers"`
	LoansByStatus       map[models.LoanStatus]int64 `json:"loansByStatus"`
	TotalLoans          int64                       `json:"totalLoans"`
	PrincipalDisbursed  float64                     `json:"principalDisbursed"`
	OutstandingBalance  float64                     `json:"outstandingBalance"`
	OverdueLoans        int64                       `json:"overdueLoans"`
	OverdueInterest     float64                     `json:"overdueInterest"`
	TotalBalance        float64                     `json:"totalBalance"`
	PortfolioAtRisk30   float64                     `json:"portfolioAtRisk30"` // доля остатка с просрочкой > 30 дн.
	RepaymentsCollected float64                     `json:"repaymentsCollected"`
	RepaymentsCount     int64                       `json:"repaymentsCount"`
	SavingsBalance      float64                     `json:"savingsBalance"`
	PendingApplications int64                       `json:"pendingApplications"`
}

// ReportService строит отчеты по портфелю с кэшированием
type ReportService struct {
	db    *gorm.DB
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewReportService создает новый экземпляр ReportService
func NewReportService(db *gorm.DB, c cache.Cache, ttl time.Duration) *ReportService {
	if c == nil {
		c = cache.NewMemory()
	}
	return &ReportService{db: db, cache: c, ttl: ttl, now: time.Now}
}

func portfolioKey(asOf time.Time) string {
	return "report:portfolio:" + asOf.Format("2006-01-02")
}

// Portfolio возвращает сводку на текущую дату. fresh пропускает кэш.
func (s *ReportService) Portfolio(ctx context.Context, fresh bool) (*PortfolioReport, error) {
	asOf := s.now()
	key := portfolioKey(asOf)

	if !fresh {
		var cached PortfolioReport
		err := cache.GetJSON(ctx, s.cache, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			utils.LogError("Ошибка чтения отчета из кэша: %v", err)
		}
	}

	report, err := s.build(ctx, asOf)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.cache, key, report, s.ttl); err != nil {
		utils.LogError("Ошибка записи отчета в кэш: %v", err)
	}
	return report, nil
}

// Invalidate удаляет сводку на текущую дату из кэша
func (s *ReportService) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, portfolioKey(s.now()))
}

func (s *ReportService) build(ctx context.Context, asOf time.Time) (*PortfolioReport, error) {
	db := s.db.WithContext(ctx)
	report := &PortfolioReport{
		AsOf:          asOf,
		LoansByStatus: make(map[models.LoanStatus]int64),
	}

	if err := db.Model(&models.Borrower{}).Count(&report.Borrowers).Error; err != nil {
		return nil, fmt.Errorf("ошибка подсчета заемщиков: %w", err)
	}
	if err := db.Model(&models.LoanApplication{}).
		Where("status = ?", models.ApplicationStatusPending).
		Count(&report.PendingApplications).Error; err != nil {
		return nil, fmt.Errorf("ошибка подсчета заявок: %w", err)
	}

	var loans []models.Loan
	if err := db.Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения кредитов: %w", err)
	}

	var outstanding, atRisk, overdueInterest, totalBalance, disbursed float64
	for _, loan := range loans {
		report.TotalLoans++
		report.LoansByStatus[loan.Status]++

		if loan.DisbursedAt != nil {
			disbursed = addMoney(disbursed, loan.Principal)
		}
		if !loan.Status.AcceptsRepayments() {
			continue
		}

		state := loanmath.DeriveLoanStatus(snapshot(loan), asOf)
		outstanding = addMoney(outstanding, loan.OutstandingBalance)
		totalBalance += state.TotalBalance
		if state.IsOverdue {
			report.OverdueLoans++
			overdueInterest += state.OverdueInterest
		}
		if state.DaysOverdue > par30Days && loan.OutstandingBalance > 0 {
			atRisk = addMoney(atRisk, loan.OutstandingBalance)
		}
	}

	report.PrincipalDisbursed = disbursed
	report.OutstandingBalance = outstanding
	report.OverdueInterest = loanmath.Round2(overdueInterest)
	report.TotalBalance = loanmath.Round2(totalBalance)
	if outstanding > 0 {
		report.PortfolioAtRisk30 = decimal.NewFromFloat(atRisk).
			Div(decimal.NewFromFloat(outstanding)).
			Round(4).
			InexactFloat64()
	}

	var collected struct {
		Total float64
		Count int64
	}
	if err := db.Model(&models.Repayment{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("status = ?", models.RepaymentStatusPosted).
		Scan(&collected).Error; err != nil {
		return nil, fmt.Errorf("ошибка подсчета платежей: %w", err)
	}
	report.RepaymentsCollected = loanmath.Round2(collected.Total)
	report.RepaymentsCount = collected.Count

	var savings struct{ Total float64 }
	if err := db.Model(&models.SavingsAccount{}).
		Select("COALESCE(SUM(balance), 0) AS total").
		Where("status = ?", models.SavingsStatusActive).
		Scan(&savings).Error; err != nil {
		return nil, fmt.Errorf("ошибка подсчета сбережений: %w", err)
	}
	report.SavingsBalance = loanmath.Round2(savings.Total)

	return report, nil
}
