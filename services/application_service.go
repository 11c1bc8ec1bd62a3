package services

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"microfinance/loanmath"
	"microfinance/models"
	"microfinance/realtime"
	"strings"
	"time"
)

// SubmitApplicationRequest данные заявки на кредит
type SubmitApplicationRequest struct {
	BorrowerID uint    `json:"borrowerId" validate:"required"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	TermMonths int     `json:"termMonths" validate:"required,gte=1,lte=120"`
	Purpose    string  `json:"purpose" validate:"max=255"`
}

// ApplicationFilter параметры списка заявок
type ApplicationFilter struct {
	Status     models.ApplicationStatus
	BorrowerID uint
	Pagination
}

// ApplicationDecisionEvent решение по заявке для сотрудника, который ее подал
type ApplicationDecisionEvent struct {
	ApplicationID uint                     `json:"applicationId"`
	BorrowerID    uint                     `json:"borrowerId"`
	Status        models.ApplicationStatus `json:"status"`
	LoanID        uint                     `json:"loanId,omitempty"`
	Reason        string                   `json:"reason,omitempty"`
}

// ApplicationService принимает и рассматривает заявки на кредит
type ApplicationService struct {
	db        *gorm.DB
	validator *validator.Validate
	notifier  Notifier
	publisher EventPublisher
	now       func() time.Time
}

// NewApplicationService создает новый экземпляр ApplicationService
func NewApplicationService(db *gorm.DB, notifier Notifier, publisher EventPublisher) *ApplicationService {
	return &ApplicationService{
		db:        db,
		validator: validator.New(),
		notifier:  orNotifier(notifier),
		publisher: orPublisher(publisher),
		now:       time.Now,
	}
}

// Submit сохраняет заявку с расчетом по тарифной ставке
func (s *ApplicationService) Submit(req SubmitApplicationRequest, submittedBy uint) (*models.LoanApplication, error) {
	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}

	var borrower models.Borrower
	if err := s.db.First(&borrower, req.BorrowerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("заемщик %d: %w", req.BorrowerID, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка при поиске заемщика: %w", err)
	}

	// Ставка определяется запрошенной суммой
	rate := loanmath.RateForAmount(req.Amount)
	q := loanmath.Amortize(req.Amount, rate, req.TermMonths)
	if !q.IsValid {
		return nil, ErrInvalidQuote
	}
	stored := roundQuote(req.Amount, q)

	app := &models.LoanApplication{
		BorrowerID:     borrower.ID,
		Amount:         stored.Principal,
		TermMonths:     req.TermMonths,
		Purpose:        strings.TrimSpace(req.Purpose),
		InterestRate:   rate,
		MonthlyPayment: stored.MonthlyPayment,
		TotalInterest:  stored.TotalInterest,
		TotalAmount:    stored.TotalAmount,
		Status:         models.ApplicationStatusPending,
		SubmittedBy:    submittedBy,
	}

	if err := s.db.Create(app).Error; err != nil {
		return nil, fmt.Errorf("не удалось сохранить заявку: %w", err)
	}
	app.Borrower = &borrower

	return app, nil
}

// Approve одобряет заявку и создает кредит в статусе APPROVED
func (s *ApplicationService) Approve(id, reviewerID uint) (*models.Loan, error) {
	var app models.LoanApplication
	var loan models.Loan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := loadApplication(tx, id, &app); err != nil {
			return err
		}
		if app.Status != models.ApplicationStatusPending {
			return fmt.Errorf("заявка %d в статусе %s: %w", id, app.Status, ErrInvalidState)
		}

		now := s.now()
		app.Status = models.ApplicationStatusApproved
		app.ReviewedBy = &reviewerID
		app.ReviewedAt = &now
		if err := tx.Omit("Borrower").Save(&app).Error; err != nil {
			return fmt.Errorf("ошибка обновления заявки: %w", err)
		}

		loan = models.Loan{
			BorrowerID:         app.BorrowerID,
			ApplicationID:      app.ID,
			Principal:          app.Amount,
			InterestRate:       app.InterestRate,
			TermMonths:         app.TermMonths,
			MonthlyPayment:     app.MonthlyPayment,
			TotalInterest:      app.TotalInterest,
			TotalAmount:        app.TotalAmount,
			OutstandingBalance: app.TotalAmount,
			Status:             models.LoanStatusApproved,
			Purpose:            app.Purpose,
		}
		if err := tx.Create(&loan).Error; err != nil {
			return fmt.Errorf("ошибка создания кредита: %w", err)
		}

		return tx.Create(&models.LoanStatusChange{
			LoanID:     loan.ID,
			FromStatus: models.LoanStatusPending,
			ToStatus:   models.LoanStatusApproved,
			Reason:     fmt.Sprintf("заявка %d одобрена", app.ID),
			ChangedBy:  &reviewerID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	loan.Borrower = app.Borrower
	notify(app.Borrower.Email, "application_approved", func() error {
		return s.notifier.SendApplicationDecision(app.Borrower.Email, &app)
	})
	s.publisher.SendToUser(app.SubmittedBy, realtime.EventApplicationDecided, ApplicationDecisionEvent{
		ApplicationID: app.ID,
		BorrowerID:    app.BorrowerID,
		Status:        app.Status,
		LoanID:        loan.ID,
	})

	return &loan, nil
}

// Reject отклоняет заявку с указанием причины
func (s *ApplicationService) Reject(id, reviewerID uint, reason string) (*models.LoanApplication, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newValidationError("поле reason обязательно")
	}

	var app models.LoanApplication
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := loadApplication(tx, id, &app); err != nil {
			return err
		}
		if app.Status != models.ApplicationStatusPending {
			return fmt.Errorf("заявка %d в статусе %s: %w", id, app.Status, ErrInvalidState)
		}

		now := s.now()
		app.Status = models.ApplicationStatusRejected
		app.ReviewedBy = &reviewerID
		app.ReviewedAt = &now
		app.RejectionReason = reason
		return tx.Omit("Borrower").Save(&app).Error
	})
	if err != nil {
		return nil, err
	}

	notify(app.Borrower.Email, "application_rejected", func() error {
		return s.notifier.SendApplicationDecision(app.Borrower.Email, &app)
	})
	s.publisher.SendToUser(app.SubmittedBy, realtime.EventApplicationDecided, ApplicationDecisionEvent{
		ApplicationID: app.ID,
		BorrowerID:    app.BorrowerID,
		Status:        app.Status,
		Reason:        app.RejectionReason,
	})

	return &app, nil
}

// Get возвращает заявку с заемщиком
func (s *ApplicationService) Get(id uint) (*models.LoanApplication, error) {
	var app models.LoanApplication
	if err := loadApplication(s.db, id, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// List возвращает страницу заявок
func (s *ApplicationService) List(filter ApplicationFilter) (PaginatedResponse, error) {
	query := s.db.Model(&models.LoanApplication{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.BorrowerID != 0 {
		query = query.Where("borrower_id = ?", filter.BorrowerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return PaginatedResponse{}, fmt.Errorf("ошибка подсчета заявок: %w", err)
	}

	apps := []models.LoanApplication{}
	if err := query.Scopes(filter.Scope()).Preload("Borrower").Order("id DESC").Find(&apps).Error; err != nil {
		return PaginatedResponse{}, fmt.Errorf("ошибка при поиске заявок: %w", err)
	}

	return newPaginatedResponse(apps, total, filter.Pagination), nil
}

func loadApplication(db *gorm.DB, id uint, app *models.LoanApplication) error {
	if err := db.Preload("Borrower").First(app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("заявка %d: %w", id, ErrNotFound)
		}
		return fmt.Errorf("ошибка при поиске заявки: %w", err)
	}
	if app.Borrower == nil {
		app.Borrower = &models.Borrower{}
	}
	return nil
}
