package services

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"microfinance/models"
	"strings"
)

// CreateBorrowerRequest данные для регистрации заемщика
type CreateBorrowerRequest struct {
	FirstName     string  `json:"firstName" validate:"required,min=2,max=50"`
	LastName      string  `json:"lastName" validate:"required,min=2,max=50"`
	NationalID    string  `json:"nationalId" validate:"required,min=5,max=30"`
	Phone         string  `json:"phone" validate:"required,min=7,max=20"`
	Email         string  `json:"email" validate:"omitempty,email"`
	Address       string  `json:"address" validate:"max=255"`
	Occupation    string  `json:"occupation" validate:"max=100"`
	MonthlyIncome float64 `json:"monthlyIncome" validate:"gte=0"`
}

// UpdateBorrowerRequest частичное обновление заемщика
type UpdateBorrowerRequest struct {
	FirstName     *string  `json:"firstName" validate:"omitempty,min=2,max=50"`
	LastName      *string  `json:"lastName" validate:"omitempty,min=2,max=50"`
	Phone         *string  `json:"phone" validate:"omitempty,min=7,max=20"`
	Email         *string  `json:"email" validate:"omitempty,email"`
	Address       *string  `json:"address" validate:"omitempty,max=255"`
	Occupation    *string  `json:"occupation" validate:"omitempty,max=100"`
	MonthlyIncome *float64 `json:"monthlyIncome" validate:"omitempty,gte=0"`
}

// BorrowerFilter параметры списка заемщиков
type BorrowerFilter struct {
	Search string // имя, фамилия, телефон или национальный ID
	Pagination
}

// BorrowerService предоставляет методы для работы с заемщиками
type BorrowerService struct {
	db        *gorm.DB
	validator *validator.Validate
}

// NewBorrowerService создает новый экземпляр BorrowerService
func NewBorrowerService(db *gorm.DB) *BorrowerService {
	return &BorrowerService{
		db:        db,
		validator: validator.New(),
	}
}

// Create регистрирует заемщика
func (s *BorrowerService) Create(req CreateBorrowerRequest) (*models.Borrower, error) {
	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}

	nationalID := strings.ToUpper(strings.TrimSpace(req.NationalID))

	// Национальный ID уникален, в том числе среди удаленных
	var count int64
	if err := s.db.Unscoped().Model(&models.Borrower{}).Where("national_id = ?", nationalID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("ошибка проверки национального ID: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("заемщик с ID %s: %w", nationalID, ErrAlreadyExists)
	}

	borrower := &models.Borrower{
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		NationalID:    nationalID,
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
		Address:       req.Address,
		Occupation:    req.Occupation,
		MonthlyIncome: req.MonthlyIncome,
	}

	if err := s.db.Create(borrower).Error; err != nil {
		return nil, fmt.Errorf("не удалось создать заемщика: %w", err)
	}

	return borrower, nil
}

// GetByID возвращает заемщика по ID
func (s *BorrowerService) GetByID(id uint) (*models.Borrower, error) {
	var borrower models.Borrower
	if err := s.db.First(&borrower, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("заемщик %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка при поиске заемщика: %w", err)
	}
	return &borrower, nil
}

// List возвращает страницу заемщиков
func (s *BorrowerService) List(filter BorrowerFilter) (PaginatedResponse, error) {
	query := s.db.Model(&models.Borrower{})
	if q := strings.TrimSpace(filter.Search); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR phone LIKE ? OR national_id = ?",
			like, like, "%"+q+"%", strings.ToUpper(q),
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return PaginatedResponse{}, fmt.Errorf("ошибка подсчета заемщиков: %w", err)
	}

	borrowers := []models.Borrower{}
	if err := query.Scopes(filter.Scope()).Order("last_name, first_name, id").Find(&borrowers).Error; err != nil {
		return PaginatedResponse{}, fmt.Errorf("ошибка при поиске заемщиков: %w", err)
	}

	return newPaginatedResponse(borrowers, total, filter.Pagination), nil
}

// Update обновляет переданные поля заемщика
func (s *BorrowerService) Update(id uint, req UpdateBorrowerRequest) (*models.Borrower, error) {
	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}

	borrower, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		borrower.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		borrower.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		borrower.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		borrower.Email = strings.TrimSpace(*req.Email)
	}
	if req.Address != nil {
		borrower.Address = *req.Address
	}
	if req.Occupation != nil {
		borrower.Occupation = *req.Occupation
	}
	if req.MonthlyIncome != nil {
		borrower.MonthlyIncome = *req.MonthlyIncome
	}

	if err := s.db.Save(borrower).Error; err != nil {
		return nil, fmt.Errorf("не удалось обновить заемщика: %w", err)
	}
	return borrower, nil
}

// Delete мягко удаляет заемщика без непогашенных кредитов
func (s *BorrowerService) Delete(id uint) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}

	var open int64
	err := s.db.Model(&models.Loan{}).
		Where("borrower_id = ? AND status NOT IN ?", id, []models.LoanStatus{models.LoanStatusClosed, models.LoanStatusWrittenOff}).
		Count(&open).Error
	if err != nil {
		return fmt.Errorf("ошибка проверки кредитов заемщика: %w", err)
	}
	if open > 0 {
		return fmt.Errorf("у заемщика %d открытых кредитов: %w", open, ErrInvalidState)
	}

	if err := s.db.Delete(&models.Borrower{}, id).Error; err != nil {
		return fmt.Errorf("не удалось удалить заемщика: %w", err)
	}
	return nil
}

// ListLoans возвращает кредиты заемщика, новые первыми
func (s *BorrowerService) ListLoans(id uint) ([]models.Loan, error) {
	if _, err := s.GetByID(id); err != nil {
		return nil, err
	}

	loans := []models.Loan{}
	if err := s.db.Where("borrower_id = ?", id).Order("id DESC").Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("ошибка при поиске кредитов заемщика: %w", err)
	}
	return loans, nil
}
