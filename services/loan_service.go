package services

import (
	"context"
	"errors"
	"fmt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"microfinance/loanmath"
	"microfinance/models"
	"microfinance/realtime"
	"microfinance/utils"
	"strings"
	"time"
)

// LoanView кредит с вычисленным на дату состоянием
type LoanView struct {
	models.Loan
	State loanmath.LoanState `json:"state"`
}

// LoanDetails кредит, его состояние, график и журнал статусов
type LoanDetails struct {
	LoanView
	Schedule      []loanmath.Installment    `json:"schedule"`
	StatusHistory []models.LoanStatusChange `json:"statusHistory"`
}

// LoanFilter параметры списка кредитов
type LoanFilter struct {
	Status     models.LoanStatus
	BorrowerID uint
	Pagination
}

// ChangeStatusRequest ручная смена статуса
type ChangeStatusRequest struct {
	Status models.LoanStatus `json:"status" validate:"required"`
	Reason string            `json:"reason" validate:"max=255"`
}

// RefreshResult итог пересчета статусов
type RefreshResult struct {
	Checked       int `json:"checked"`
	MarkedOverdue int `json:"markedOverdue"`
	Restored      int `json:"restored"`
	Closed        int `json:"closed"`
}

// LoanEvent данные события по кредиту
type LoanEvent struct {
	LoanID     uint              `json:"loanId"`
	BorrowerID uint              `json:"borrowerId"`
	FromStatus models.LoanStatus `json:"fromStatus,omitempty"`
	Status     models.LoanStatus `json:"status"`
	Balance    float64           `json:"outstandingBalance"`
}

// refreshableStatuses статусы, которые пересчитывает планировщик
var refreshableStatuses = []models.LoanStatus{
	models.LoanStatusActive,
	models.LoanStatusOverdue,
	models.LoanStatusRestructured,
}

const refreshBatchSize = 100

// LoanService предоставляет методы для работы с кредитами
type LoanService struct {
	db        *gorm.DB
	notifier  Notifier
	publisher EventPublisher
	now       func() time.Time
}

// NewLoanService создает новый экземпляр LoanService
func NewLoanService(db *gorm.DB, notifier Notifier, publisher EventPublisher) *LoanService {
	return &LoanService{
		db:        db,
		notifier:  orNotifier(notifier),
		publisher: orPublisher(publisher),
		now:       time.Now,
	}
}

// Disburse выдает одобренный кредит: APPROVED -> ACTIVE
func (s *LoanService) Disburse(id, userID uint) (*models.Loan, error) {
	var loan models.Loan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := loadLoan(forUpdate(tx), id, &loan); err != nil {
			return err
		}
		if loan.Status != models.LoanStatusApproved {
			return fmt.Errorf("кредит %d в статусе %s: %w", id, loan.Status, ErrInvalidState)
		}

		now := s.now()
		next := now.AddDate(0, 1, 0)
		maturity := now.AddDate(0, loan.TermMonths, 0)
		loan.DisbursedAt = &now
		loan.NextPaymentDate = &next
		loan.MaturityDate = &maturity

		return transitionLoan(tx, &loan, models.LoanStatusActive, "кредит выдан", &userID)
	})
	if err != nil {
		return nil, err
	}

	utils.GetMetrics().RecordDisbursement(loan.Principal)
	utils.LogInfo("Кредит %d выдан заемщику %d на сумму %.2f", loan.ID, loan.BorrowerID, loan.Principal)

	email := borrowerEmail(&loan)
	notify(email, "loan_disbursed", func() error {
		return s.notifier.SendDisbursementNotice(email, &loan)
	})
	s.publisher.Publish(realtime.EventLoanDisbursed, loanEvent(&loan, models.LoanStatusApproved))

	return &loan, nil
}

// Get возвращает кредит с состоянием на текущий момент и графиком платежей
func (s *LoanService) Get(id uint) (*LoanDetails, error) {
	var loan models.Loan
	if err := loadLoan(s.db, id, &loan); err != nil {
		return nil, err
	}

	history := []models.LoanStatusChange{}
	if err := s.db.Where("loan_id = ?", id).Order("id").Find(&history).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения журнала статусов: %w", err)
	}

	start := s.now()
	if loan.DisbursedAt != nil {
		start = *loan.DisbursedAt
	}
	schedule := loanmath.Schedule(loan.Principal, loan.InterestRate, loan.TermMonths, start)
	if schedule == nil {
		schedule = []loanmath.Installment{}
	}

	return &LoanDetails{
		LoanView:      s.view(loan),
		Schedule:      schedule,
		StatusHistory: history,
	}, nil
}

// List возвращает страницу кредитов с вычисленным состоянием
func (s *LoanService) List(filter LoanFilter) (PaginatedResponse, error) {
	query := s.db.Model(&models.Loan{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.BorrowerID != 0 {
		query = query.Where("borrower_id = ?", filter.BorrowerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return PaginatedResponse{}, fmt.Errorf("ошибка подсчета кредитов: %w", err)
	}

	var loans []models.Loan
	if err := query.Scopes(filter.Scope()).Preload("Borrower").Order("id DESC").Find(&loans).Error; err != nil {
		return PaginatedResponse{}, fmt.Errorf("ошибка при поиске кредитов: %w", err)
	}

	views := make([]LoanView, 0, len(loans))
	for _, loan := range loans {
		views = append(views, s.view(loan))
	}

	return newPaginatedResponse(views, total, filter.Pagination), nil
}

// ChangeStatus меняет статус вручную по таблице допустимых переходов.
// DEFAULTED и WRITTEN_OFF доступны только администратору.
func (s *LoanService) ChangeStatus(id uint, req ChangeStatusRequest, userID uint, role models.Role) (*models.Loan, error) {
	to := models.LoanStatus(strings.ToUpper(string(req.Status)))
	if !to.IsValid() {
		return nil, newValidationError("неизвестный статус " + string(req.Status))
	}
	if to.RequiresAdmin() && role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	var loan models.Loan
	var from models.LoanStatus

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := loadLoan(forUpdate(tx), id, &loan); err != nil {
			return err
		}
		from = loan.Status

		switch {
		case from == models.LoanStatusClosed:
			// повторное открытие только через сторнирование платежа
			return fmt.Errorf("кредит %d закрыт: %w", id, ErrInvalidTransition)
		case to == models.LoanStatusActive && from == models.LoanStatusApproved:
			return fmt.Errorf("выдача кредита выполняется отдельной операцией: %w", ErrInvalidTransition)
		case to == models.LoanStatusClosed && loan.OutstandingBalance > 0:
			return fmt.Errorf("остаток %.2f не погашен: %w", loan.OutstandingBalance, ErrInvalidState)
		}

		return transitionLoan(tx, &loan, to, req.Reason, &userID)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(realtime.EventLoanStatusChanged, loanEvent(&loan, from))
	return &loan, nil
}

// RefreshStatuses пересчитывает статусы открытых кредитов на дату asOf:
// погашенные закрываются, просроченные получают OVERDUE, а кредиты без
// просрочки возвращаются в ACTIVE.
func (s *LoanService) RefreshStatuses(ctx context.Context, asOf time.Time) (RefreshResult, error) {
	var result RefreshResult
	var overdue []models.Loan
	var changed []LoanEvent

	var batch []models.Loan
	err := s.db.WithContext(ctx).
		Preload("Borrower").
		Where("status IN ?", refreshableStatuses).
		FindInBatches(&batch, refreshBatchSize, func(_ *gorm.DB, _ int) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			for i := range batch {
				loan := batch[i]
				result.Checked++

				from := loan.Status
				to, reason := refreshTarget(loan, asOf)
				if to == "" || to == from {
					continue
				}

				if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
					return transitionLoan(tx, &loan, to, reason, nil)
				}); err != nil {
					return fmt.Errorf("кредит %d: %w", loan.ID, err)
				}

				switch to {
				case models.LoanStatusClosed:
					result.Closed++
				case models.LoanStatusOverdue:
					result.MarkedOverdue++
					overdue = append(overdue, loan)
				case models.LoanStatusActive:
					result.Restored++
				}
				changed = append(changed, loanEvent(&loan, from))
			}
			return nil
		}).Error
	if err != nil {
		return result, fmt.Errorf("ошибка пересчета статусов: %w", err)
	}

	for i := range overdue {
		loan := overdue[i]
		state := loanmath.DeriveLoanStatus(snapshot(loan), asOf)
		email := borrowerEmail(&loan)
		notify(email, "loan_overdue", func() error {
			return s.notifier.SendOverdueNotice(email, &loan, state)
		})
	}
	for _, ev := range changed {
		s.publisher.Publish(realtime.EventLoanStatusChanged, ev)
	}

	utils.GetMetrics().RecordSchedulerRun()
	utils.LogInfo("Пересчет статусов на %s: проверено %d, просрочено %d, восстановлено %d, закрыто %d",
		asOf.Format("2006-01-02"), result.Checked, result.MarkedOverdue, result.Restored, result.Closed)

	return result, nil
}

// refreshTarget целевой статус кредита на дату asOf, пустой если менять нечего
func refreshTarget(loan models.Loan, asOf time.Time) (models.LoanStatus, string) {
	state := loanmath.DeriveLoanStatus(snapshot(loan), asOf)

	switch {
	case state.Status == loanmath.DisplayClosed:
		return models.LoanStatusClosed, "остаток погашен"
	case state.IsOverdue && loan.Status != models.LoanStatusOverdue:
		return models.LoanStatusOverdue, fmt.Sprintf("просрочка %d дн.", state.DaysOverdue)
	case !state.IsOverdue && loan.Status == models.LoanStatusOverdue:
		return models.LoanStatusActive, "просрочка погашена"
	}
	return "", ""
}

func (s *LoanService) view(loan models.Loan) LoanView {
	return LoanView{
		Loan:  loan,
		State: loanmath.DeriveLoanStatus(snapshot(loan), s.now()),
	}
}

// transitionLoan сохраняет новый статус и запись журнала в транзакции tx
func transitionLoan(tx *gorm.DB, loan *models.Loan, to models.LoanStatus, reason string, changedBy *uint) error {
	from := loan.Status
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}

	loan.Status = to
	if err := tx.Omit("Borrower").Save(loan).Error; err != nil {
		return fmt.Errorf("ошибка обновления кредита: %w", err)
	}

	change := &models.LoanStatusChange{
		LoanID:     loan.ID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		ChangedBy:  changedBy,
	}
	if err := tx.Create(change).Error; err != nil {
		return fmt.Errorf("ошибка записи журнала статусов: %w", err)
	}

	utils.GetMetrics().RecordStatusChange(string(from), string(to))
	return nil
}

// forUpdate блокирует прочитанные строки до конца транзакции.
// Диалект sqlite блокировку не поддерживает и пропускает.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

func loadLoan(db *gorm.DB, id uint, loan *models.Loan) error {
	if err := db.Preload("Borrower").First(loan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("кредит %d: %w", id, ErrNotFound)
		}
		return fmt.Errorf("ошибка при поиске кредита: %w", err)
	}
	return nil
}

func snapshot(loan models.Loan) loanmath.LoanSnapshot {
	return loanmath.LoanSnapshot{
		OutstandingBalance: loan.OutstandingBalance,
		InterestRate:       loan.InterestRate,
		DueDate:            loan.DueDate(),
	}
}

func borrowerEmail(loan *models.Loan) string {
	if loan.Borrower == nil {
		return ""
	}
	return loan.Borrower.Email
}

func loanEvent(loan *models.Loan, from models.LoanStatus) LoanEvent {
	return LoanEvent{
		LoanID:     loan.ID,
		BorrowerID: loan.BorrowerID,
		FromStatus: from,
		Status:     loan.Status,
		Balance:    loan.OutstandingBalance,
	}
}
