package services

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"microfinance/loanmath"
	"microfinance/models"
	"microfinance/utils"
	"time"
)

const (
	accountNumberDigits   = 12
	accountNumberAttempts = 5
)

// OpenSavingsRequest данные для открытия сберегательного счета
type OpenSavingsRequest struct {
	BorrowerID     uint    `json:"borrowerId" validate:"required"`
	InitialDeposit float64 `json:"initialDeposit" validate:"gte=0"`
}

// SavingsMovementRequest пополнение или снятие
type SavingsMovementRequest struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"max=255"`
}

// SavingsService предоставляет методы для работы со сберегательными счетами
type SavingsService struct {
	db        *gorm.DB
	validator *validator.Validate
}

// NewSavingsService создает новый экземпляр SavingsService
func NewSavingsService(db *gorm.DB) *SavingsService {
	return &SavingsService{
		db:        db,
		validator: validator.New(),
	}
}

// Open открывает счет заемщику, при необходимости с первым взносом
func (s *SavingsService) Open(req OpenSavingsRequest, userID uint) (*models.SavingsAccount, error) {
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

	number, err := s.uniqueAccountNumber()
	if err != nil {
		return nil, err
	}

	account := &models.SavingsAccount{
		BorrowerID: borrower.ID,
		Number:     number,
		Status:     models.SavingsStatusActive,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, fmt.Errorf("не удалось открыть счет: %w", err)
	}

	if req.InitialDeposit > 0 {
		return s.Deposit(account.ID, SavingsMovementRequest{Amount: req.InitialDeposit, Description: "первый взнос"}, userID)
	}
	return account, nil
}

// uniqueAccountNumber подбирает номер, которого еще нет в базе
func (s *SavingsService) uniqueAccountNumber() (string, error) {
	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		number, err := utils.GenerateAccountNumber(accountNumberDigits)
		if err != nil {
			return "", err
		}
		var count int64
		if err := s.db.Unscoped().Model(&models.SavingsAccount{}).Where("number = ?", number).Count(&count).Error; err != nil {
			return "", fmt.Errorf("ошибка проверки номера счета: %w", err)
		}
		if count == 0 {
			return number, nil
		}
	}
	return "", errors.New("не удалось подобрать свободный номер счета")
}

// Deposit пополняет счет
func (s *SavingsService) Deposit(accountID uint, req SavingsMovementRequest, userID uint) (*models.SavingsAccount, error) {
	return s.move(accountID, models.SavingsDeposit, req, userID)
}

// Withdraw снимает средства со счета
func (s *SavingsService) Withdraw(accountID uint, req SavingsMovementRequest, userID uint) (*models.SavingsAccount, error) {
	return s.move(accountID, models.SavingsWithdrawal, req, userID)
}

func (s *SavingsService) move(accountID uint, kind models.SavingsTransactionType, req SavingsMovementRequest, userID uint) (*models.SavingsAccount, error) {
	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}
	amount := loanmath.Round2(req.Amount)
	if amount <= 0 {
		return nil, newValidationError("сумма должна быть больше 0")
	}

	// Начинаем транзакцию
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("ошибка при начале транзакции: %w", tx.Error)
	}

	// Получаем счет с блокировкой строки
	var account models.SavingsAccount
	if err := forUpdate(tx).First(&account, accountID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("счет %d: %w", accountID, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка при поиске счета: %w", err)
	}
	if account.Status != models.SavingsStatusActive {
		tx.Rollback()
		return nil, fmt.Errorf("счет %s закрыт: %w", account.Number, ErrInvalidState)
	}

	before := account.Balance
	if kind == models.SavingsWithdrawal {
		// Проверяем достаточность средств
		if cmpMoney(before, amount) < 0 {
			tx.Rollback()
			return nil, ErrInsufficientFunds
		}
		account.Balance = subMoney(before, amount)
	} else {
		account.Balance = addMoney(before, amount)
	}
	account.UpdatedAt = time.Now()

	if err := tx.Save(&account).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("ошибка при обновлении баланса: %w", err)
	}

	transaction := &models.SavingsTransaction{
		AccountID:     account.ID,
		Amount:        amount,
		Type:          kind,
		BalanceBefore: before,
		BalanceAfter:  account.Balance,
		Description:   req.Description,
		RecordedBy:    userID,
	}
	if err := tx.Create(transaction).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("ошибка при сохранении операции: %w", err)
	}

	// Подтверждаем транзакцию
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("ошибка при подтверждении транзакции: %w", err)
	}

	return &account, nil
}

// Close закрывает счет с нулевым балансом. Баланс проверяется под той же
// блокировкой, что и у пополнений.
func (s *SavingsService) Close(accountID uint) (*models.SavingsAccount, error) {
	var account models.SavingsAccount

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&account, accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("счет %d: %w", accountID, ErrNotFound)
			}
			return fmt.Errorf("ошибка при поиске счета: %w", err)
		}
		if account.Status == models.SavingsStatusClosed {
			return fmt.Errorf("счет %s уже закрыт: %w", account.Number, ErrInvalidState)
		}
		if account.Balance != 0 {
			return fmt.Errorf("на счете остаток %.2f: %w", account.Balance, ErrInvalidState)
		}

		// Только статус: баланс не перезаписывается прочитанным значением
		if err := tx.Model(&account).Update("status", models.SavingsStatusClosed).Error; err != nil {
			return fmt.Errorf("ошибка закрытия счета: %w", err)
		}
		account.Status = models.SavingsStatusClosed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Get возвращает счет по ID
func (s *SavingsService) Get(accountID uint) (*models.SavingsAccount, error) {
	var account models.SavingsAccount
	if err := s.db.First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("счет %d: %w", accountID, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка при поиске счета: %w", err)
	}
	return &account, nil
}

// ListByBorrower возвращает счета заемщика
func (s *SavingsService) ListByBorrower(borrowerID uint) ([]models.SavingsAccount, error) {
	accounts := []models.SavingsAccount{}
	if err := s.db.Where("borrower_id = ?", borrowerID).Order("id").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("ошибка при поиске счетов: %w", err)
	}
	return accounts, nil
}

// Transactions возвращает операции по счету, новые первыми
func (s *SavingsService) Transactions(accountID uint, p Pagination) (PaginatedResponse, error) {
	if _, err := s.Get(accountID); err != nil {
		return PaginatedResponse{}, err
	}

	query := s.db.Model(&models.SavingsTransaction{}).Where("account_id = ?", accountID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return PaginatedResponse{}, fmt.Errorf("ошибка подсчета операций: %w", err)
	}

	transactions := []models.SavingsTransaction{}
	if err := query.Scopes(p.Scope()).Order("id DESC").Find(&transactions).Error; err != nil {
		return PaginatedResponse{}, fmt.Errorf("ошибка при поиске операций: %w", err)
	}

	return newPaginatedResponse(transactions, total, p), nil
}
