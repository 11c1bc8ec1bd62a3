package controllers

import (
	"github.com/go-playground/validator/v10"
	"microfinance/middleware"
	"microfinance/models"
	"microfinance/services"
	"net/http"
	"regexp"
	"time"
)

type AuthController struct {
	userService *services.UserService
	validate    *validator.Validate
	jwtKey      []byte
	ttl         time.Duration
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignUpRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50,alpha"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50,alpha"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,password"`
}

type Token struct {
	Token     string      `json:"token"`
	Email     string      `json:"email"`
	UserID    uint        `json:"userId"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type AuthResponse struct {
	Token Token            `json:"token"`
	User  services.UserDTO `json:"user"`
}

type SetRoleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=ADMIN LOAN_OFFICER"`
}

var (
	hasNumber  = regexp.MustCompile(`[0-9]`)
	hasUpper   = regexp.MustCompile(`[A-Z]`)
	hasLower   = regexp.MustCompile(`[a-z]`)
	hasSpecial = regexp.MustCompile(`[!@#$%^&*]`)
)

// NewAuthController создает контроллер аутентификации.
// ttlHours время жизни токена в часах.
func NewAuthController(userService *services.UserService, jwtKey []byte, ttlHours int) *AuthController {
	validate := validator.New()

	// Пароль: цифра, заглавная, строчная буква и спецсимвол
	validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		password := fl.Field().String()
		return hasNumber.MatchString(password) &&
			hasUpper.MatchString(password) &&
			hasLower.MatchString(password) &&
			hasSpecial.MatchString(password)
	})

	if ttlHours <= 0 {
		ttlHours = 24
	}

	return &AuthController{
		userService: userService,
		validate:    validate,
		jwtKey:      jwtKey,
		ttl:         time.Duration(ttlHours) * time.Hour,
	}
}

// SignIn обрабатывает вход сотрудника
func (c *AuthController) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := c.validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := c.userService.Authenticate(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	c.respondWithToken(w, http.StatusOK, user)
}

// SignUp регистрирует сотрудника. Первый сотрудник становится администратором.
func (c *AuthController) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := c.validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := c.userService.CreateUser(services.CreateUserRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	c.respondWithToken(w, http.StatusCreated, user)
}

// Me возвращает текущего сотрудника
func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}

	user, err := c.userService.GetByID(id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ToUserDTO(user))
}

// ListUsers список сотрудников (ADMIN)
func (c *AuthController) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := c.userService.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// SetRole меняет роль сотрудника (ADMIN)
func (c *AuthController) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req SetRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := c.validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := c.userService.SetRole(id, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ToUserDTO(user))
}

func (c *AuthController) respondWithToken(w http.ResponseWriter, status int, user *models.User) {
	token, expiresAt, err := middleware.IssueToken(c.jwtKey, user, c.ttl)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, status, AuthResponse{
		Token: Token{
			Token:     token,
			Email:     user.Email,
			UserID:    user.ID,
			Role:      user.Role,
			ExpiresAt: expiresAt,
		},
		User: services.ToUserDTO(user),
	})
}
