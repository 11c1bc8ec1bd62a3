package controllers

import (
	"encoding/json"
	"errors"
	"github.com/gorilla/mux"
	"microfinance/middleware"
	"microfinance/services"
	"microfinance/utils"
	"net/http"
	"strconv"
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.LogError("Ошибка кодирования ответа: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeError сопоставляет ошибку сервиса с HTTP-статусом
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidQuote):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrAlreadyExists),
		errors.Is(err, services.ErrInsufficientFunds):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	default:
		utils.GetMetrics().RecordError(err)
		utils.LogError("Внутренняя ошибка: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// pathID читает числовой параметр {id} из URL
func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		writeMessage(w, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return uint(id), true
}

func currentUser(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	id, err := middleware.GetUserFromContext(r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return middleware.Identity{}, false
	}
	return id, true
}

func queryUint(r *http.Request, name string) uint {
	v, err := strconv.ParseUint(r.URL.Query().Get(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

func queryPagination(r *http.Request) services.Pagination {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	return services.Pagination{Page: page, PageSize: size}
}

// ReasonRequest тело запросов, требующих причину
type ReasonRequest struct {
	Reason string `json:"reason"`
}
