package services

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"microfinance/loanmath"
	"microfinance/models"
	"microfinance/realtime"
	"microfinance/utils"
	"strings"
	"time"
)

// RecordRepaymentRequest данные платежа по кредиту
type RecordRepaymentRequest struct {
	LoanID        uint                 `json:"loanId" validate:"required"`
	Amount        float64              `json:"amount" validate:"required,gt=0"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod" validate:"required,oneof=CASH MOBILE_MONEY BANK_TRANSFER CHEQUE"`
	PaidAt        *time.Time           `json:"paidAt"`
	Notes         string               `json:"notes" validate:"max=255"`
}

// RepaymentFilter параметры списка платежей
type RepaymentFilter struct {
	LoanID     uint
	BorrowerID uint
	Pagination
}

// RepaymentEvent данные события по платежу
type RepaymentEvent struct {
	RepaymentID   uint              `json:"repaymentId"`
	LoanID        uint              `json:"loanId"`
	ReceiptNumber string            `json:"receiptNumber"`
	Amount        float64           `json:"amount"`
	Balance       float64           `json:"outstandingBalance"`
	LoanStatus    models.LoanStatus `json:"loanStatus"`
}

// RepaymentService проводит и сторнирует платежи по кредитам
type RepaymentService struct {
	db         *gorm.DB
	validator  *validator.Validate
	notifier   Notifier
	publisher  EventPublisher
	receiptKey []byte
	now        func() time.Time
}

// NewRepaymentService создает новый экземпляр RepaymentService.
// receiptKey используется для подписи квитанций.
func NewRepaymentService(db *gorm.DB, notifier Notifier, publisher EventPublisher, receiptKey []byte) *RepaymentService {
	return &RepaymentService{
		db:         db,
		validator:  validator.New(),
		notifier:   orNotifier(notifier),
		publisher:  orPublisher(publisher),
		receiptKey: receiptKey,
		now:        time.Now,
	}
}

// Record проводит платеж: уменьшает остаток, сдвигает дату следующего платежа
// на месяц и закрывает кредит при нулевом остатке.
func (s *RepaymentService) Record(req RecordRepaymentRequest, recordedBy uint) (*models.Repayment, error) {
	req.PaymentMethod = models.PaymentMethod(strings.ToUpper(string(req.PaymentMethod)))
	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}

	now := s.now()
	paidAt := now
	if req.PaidAt != nil {
		if req.PaidAt.After(now) {
			return nil, newValidationError("дата платежа не может быть в будущем")
		}
		paidAt = *req.PaidAt
	}

	var loan models.Loan
	var repayment models.Repayment

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := loadLoan(forUpdate(tx), req.LoanID, &loan); err != nil {
			return err
		}
		if !loan.Status.AcceptsRepayments() {
			return fmt.Errorf("кредит %d в статусе %s: %w", loan.ID, loan.Status, ErrInvalidState)
		}

		amount := loanmath.Round2(req.Amount)
		if amount <= 0 {
			return newValidationError("сумма платежа должна быть больше 0")
		}
		if cmpMoney(amount, loan.OutstandingBalance) > 0 {
			return newValidationError(fmt.Sprintf("сумма %.2f превышает остаток долга %.2f", amount, loan.OutstandingBalance))
		}

		before := loan.OutstandingBalance
		after := subMoney(before, amount)

		receipt := uuid.NewString()
		repayment = models.Repayment{
			LoanID:           loan.ID,
			BorrowerID:       loan.BorrowerID,
			Amount:           amount,
			PaidAt:           paidAt,
			PaymentMethod:    req.PaymentMethod,
			ReceiptNumber:    receipt,
			ReceiptSignature: utils.SignReceipt(receipt, amount, s.receiptKey),
			BalanceBefore:    before,
			BalanceAfter:     after,
			Status:           models.RepaymentStatusPosted,
			RecordedBy:       recordedBy,
			Notes:            strings.TrimSpace(req.Notes),
		}
		if err := tx.Create(&repayment).Error; err != nil {
			return fmt.Errorf("ошибка сохранения платежа: %w", err)
		}

		loan.OutstandingBalance = after
		next := now.AddDate(0, 1, 0)
		if loan.NextPaymentDate != nil {
			next = loan.NextPaymentDate.AddDate(0, 1, 0)
		}
		loan.NextPaymentDate = &next

		switch {
		case after <= 0:
			return transitionLoan(tx, &loan, models.LoanStatusClosed, "кредит погашен, квитанция "+receipt, &recordedBy)
		case loan.Status == models.LoanStatusOverdue &&
			!loanmath.DeriveLoanStatus(snapshot(loan), now).IsOverdue:
			return transitionLoan(tx, &loan, models.LoanStatusActive, "просрочка погашена, квитанция "+receipt, &recordedBy)
		}

		if err := tx.Omit("Borrower").Save(&loan).Error; err != nil {
			return fmt.Errorf("ошибка обновления кредита: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.GetMetrics().RecordRepayment(repayment.Amount)
	utils.LogInfo("Платеж %s по кредиту %d: %.2f, остаток %.2f",
		repayment.ReceiptNumber, loan.ID, repayment.Amount, repayment.BalanceAfter)

	email := borrowerEmail(&loan)
	notify(email, "repayment_receipt", func() error {
		return s.notifier.SendRepaymentReceipt(email, &repayment, &loan)
	})
	s.publisher.Publish(realtime.EventRepaymentRecorded, repaymentEvent(&repayment, &loan))

	return &repayment, nil
}

// Reverse сторнирует проведенный платеж. Доступно только администратору.
// Остаток восстанавливается, закрытый кредит открывается снова.
func (s *RepaymentService) Reverse(id, userID uint, role models.Role, reason string) (*models.Repayment, error) {
	if role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newValidationError("поле reason обязательно")
	}

	var repayment models.Repayment
	var loan models.Loan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := loadRepayment(forUpdate(tx), id, &repayment); err != nil {
			return err
		}
		if repayment.Status != models.RepaymentStatusPosted {
			return fmt.Errorf("платеж %d уже сторнирован: %w", id, ErrInvalidState)
		}
		if err := loadLoan(forUpdate(tx), repayment.LoanID, &loan); err != nil {
			return err
		}

		now := s.now()
		repayment.Status = models.RepaymentStatusReversed
		repayment.ReversedBy = &userID
		repayment.ReversedAt = &now
		repayment.ReversalReason = reason
		if err := tx.Save(&repayment).Error; err != nil {
			return fmt.Errorf("ошибка сторнирования платежа: %w", err)
		}

		loan.OutstandingBalance = addMoney(loan.OutstandingBalance, repayment.Amount)
		if loan.NextPaymentDate != nil {
			prev := loan.NextPaymentDate.AddDate(0, -1, 0)
			loan.NextPaymentDate = &prev
		}

		if loan.Status == models.LoanStatusClosed {
			to := models.LoanStatusActive
			if loanmath.DeriveLoanStatus(snapshot(loan), now).IsOverdue {
				to = models.LoanStatusOverdue
			}
			return transitionLoan(tx, &loan, to, "сторнирование квитанции "+repayment.ReceiptNumber, &userID)
		}

		if err := tx.Omit("Borrower").Save(&loan).Error; err != nil {
			return fmt.Errorf("ошибка обновления кредита: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.GetMetrics().RecordReversal(repayment.Amount)
	utils.LogInfo("Платеж %s по кредиту %d сторнирован пользователем %d: %s",
		repayment.ReceiptNumber, loan.ID, userID, reason)
	s.publisher.Publish(realtime.EventRepaymentReversed, repaymentEvent(&repayment, &loan))

	return &repayment, nil
}

// Get возвращает платеж по ID
func (s *RepaymentService) Get(id uint) (*models.Repayment, error) {
	var repayment models.Repayment
	if err := loadRepayment(s.db, id, &repayment); err != nil {
		return nil, err
	}
	return &repayment, nil
}

// VerifyReceipt проверяет подпись квитанции платежа
func (s *RepaymentService) VerifyReceipt(r *models.Repayment) bool {
	return utils.VerifyReceipt(r.ReceiptNumber, r.Amount, r.ReceiptSignature, s.receiptKey)
}

// List возвращает страницу платежей, новые первыми
func (s *RepaymentService) List(filter RepaymentFilter) (PaginatedResponse, error) {
	query := s.db.Model(&models.Repayment{})
	if filter.LoanID != 0 {
		query = query.Where("loan_id = ?", filter.LoanID)
	}
	if filter.BorrowerID != 0 {
		query = query.Where("borrower_id = ?", filter.BorrowerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return PaginatedResponse{}, fmt.Errorf("ошибка подсчета платежей: %w", err)
	}

	repayments := []models.Repayment{}
	if err := query.Scopes(filter.Scope()).Order("paid_at DESC, id DESC").Find(&repayments).Error; err != nil {
		return PaginatedResponse{}, fmt.Errorf("ошибка при поиске платежей: %w", err)
	}

	return newPaginatedResponse(repayments, total, filter.Pagination), nil
}

func loadRepayment(db *gorm.DB, id uint, repayment *models.Repayment) error {
	if err := db.First(repayment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("платеж %d: %w", id, ErrNotFound)
		}
		return fmt.Errorf("ошибка при поиске платежа: %w", err)
	}
	return nil
}

func repaymentEvent(r *models.Repayment, loan *models.Loan) RepaymentEvent {
	return RepaymentEvent{
		RepaymentID:   r.ID,
		LoanID:        loan.ID,
		ReceiptNumber: r.ReceiptNumber,
		Amount:        r.Amount,
		Balance:       loan.OutstandingBalance,
		LoanStatus:    loan.Status,
	}
}
