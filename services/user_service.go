package services

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"microfinance/models"
	"strings"
)

// UserService управляет учетными записями сотрудников
type UserService struct {
	db        *gorm.DB
	validator *validator.Validate
}

type UserDTO struct {
	ID        uint        `json:"id"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
}

type CreateUserRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db, validator: validator.New()}
}

// ToUserDTO скрывает хеш пароля
func ToUserDTO(u *models.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
	}
}

// CreateUser создает нового сотрудника. Первый зарегистрированный сотрудник
// получает роль ADMIN, остальные LOAN_OFFICER.
func (s *UserService) CreateUser(req CreateUserRequest) (*models.User, error) {
	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}
	req.Email = strings.TrimSpace(req.Email)

	// Проверяем, существует ли пользователь с таким email
	var existingUser models.User
	if err := s.db.Where("LOWER(email) = LOWER(?)", req.Email).First(&existingUser).Error; err == nil {
		return nil, fmt.Errorf("пользователь с email %s: %w", req.Email, ErrAlreadyExists)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Хешируем пароль
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  string(hashedPassword),
		Role:      models.RoleLoanOfficer,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			user.Role = models.RoleAdmin
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	return user, nil
}

// Authenticate проверяет email и пароль
func (s *UserService) Authenticate(email, password string) (*models.User, error) {
	user, err := s.FindByEmail(email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID ищет пользователя по ID
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("пользователь %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmail ищет пользователя по email (игнорируя регистр и пробелы)
func (s *UserService) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("LOWER(TRIM(email)) = LOWER(TRIM(?))", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("пользователь %s: %w", email, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// List возвращает всех сотрудников
func (s *UserService) List() ([]UserDTO, error) {
	var users []models.User
	if err := s.db.Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей: %w", err)
	}

	result := make([]UserDTO, 0, len(users))
	for i := range users {
		result = append(result, ToUserDTO(&users[i]))
	}
	return result, nil
}

// SetRole меняет роль сотрудника
func (s *UserService) SetRole(id uint, role models.Role) (*models.User, error) {
	if role != models.RoleAdmin && role != models.RoleLoanOfficer {
		return nil, newValidationError("неизвестная роль " + string(role))
	}

	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	user.Role = role
	if err := s.db.Model(user).Update("role", role).Error; err != nil {
		return nil, fmt.Errorf("ошибка смены роли: %w", err)
	}
	return user, nil
}
