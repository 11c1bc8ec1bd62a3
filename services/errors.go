package services

import (
	"errors"
	"github.com/go-playground/validator/v10"
	"strings"
)

// Ошибки сервисного слоя. Контроллеры сопоставляют их с HTTP-статусами.
var (
	ErrNotFound           = errors.New("запись не найдена")
	ErrAlreadyExists      = errors.New("запись уже существует")
	ErrInvalidTransition  = errors.New("недопустимая смена статуса")
	ErrInvalidState       = errors.New("операция недоступна в текущем статусе")
	ErrValidation         = errors.New("ошибка валидации")
	ErrForbidden          = errors.New("недостаточно прав")
	ErrInvalidQuote       = errors.New("некорректные параметры кредита")
	ErrInsufficientFunds  = errors.New("недостаточно средств на счете")
	ErrInvalidCredentials = errors.New("неверный email или пароль")
)

// ValidationError ошибка проверки входных данных
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// validateStruct проверяет DTO и собирает сообщения по полям через "; "
func validateStruct(v *validator.Validate, dto interface{}) error {
	err := v.Struct(dto)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return newValidationError(err.Error())
	}

	var errorMessages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
		case "min":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не меньше "+e.Param())
		case "max":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не больше "+e.Param())
		case "gt":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше "+e.Param())
		case "gte":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше или равно "+e.Param())
		case "lte":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть меньше или равно "+e.Param())
		case "email":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно содержать корректный email")
		case "oneof":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть одним из: "+e.Param())
		default:
			errorMessages = append(errorMessages, "поле "+e.Field()+" заполнено неверно")
		}
	}
	return newValidationError(strings.Join(errorMessages, "; "))
}
