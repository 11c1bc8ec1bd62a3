package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v5"
	"microfinance/models"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	emailKey  contextKey = "email"
	roleKey   contextKey = "role"
)

// Claims данные сотрудника в JWT токене
type Claims struct {
	UserID uint        `json:"user_id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity сотрудник, выполняющий запрос
type Identity struct {
	UserID uint
	Email  string
	Role   models.Role
}

// IsAdmin проверяет роль администратора
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// IssueToken подписывает токен сотрудника на ttl
func IssueToken(jwtKey []byte, user *models.User, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken проверяет подпись и срок действия токена
func ParseToken(jwtKey []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// AuthMiddleware проверяет JWT токен и кладет сотрудника в контекст запроса.
// Токен берется из заголовка Authorization или параметра token (для websocket).
func AuthMiddleware(jwtKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				tokenString = r.URL.Query().Get("token")
			}
			if tokenString == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header is required")
				return
			}

			// Убираем префикс "Bearer " если он есть
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			claims, err := ParseToken(jwtKey, tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Identity{
				UserID: claims.UserID,
				Email:  claims.Email,
				Role:   claims.Role,
			})))
		})
	}
}

// RequireRole пропускает только сотрудников с одной из ролей
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := GetUserFromContext(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Access denied")
		})
	}
}

// WithIdentity добавляет сотрудника в контекст
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, userIDKey, id.UserID)
	ctx = context.WithValue(ctx, emailKey, id.Email)
	return context.WithValue(ctx, roleKey, id.Role)
}

// GetUserFromContext получает информацию о сотруднике из контекста
func GetUserFromContext(r *http.Request) (Identity, error) {
	userID, ok := r.Context().Value(userIDKey).(uint)
	if !ok {
		return Identity{}, fmt.Errorf("user_id not found in context")
	}
	email, _ := r.Context().Value(emailKey).(string)
	role, _ := r.Context().Value(roleKey).(models.Role)

	return Identity{UserID: userID, Email: email, Role: role}, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
