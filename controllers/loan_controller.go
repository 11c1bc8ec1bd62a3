package controllers

import (
	"microfinance/models"
	"microfinance/services"
	"net/http"
	"strings"
	"time"
)

// LoanController обрабатывает запросы, связанные с кредитами
type LoanController struct {
	loans      *services.LoanService
	repayments *services.RepaymentService
}

// NewLoanController создает новый экземпляр LoanController
func NewLoanController(loans *services.LoanService, repayments *services.RepaymentService) *LoanController {
	return &LoanController{loans: loans, repayments: repayments}
}

// List фильтры: status, borrowerId, page, pageSize
func (c *LoanController) List(w http.ResponseWriter, r *http.Request) {
	page, err := c.loans.List(services.LoanFilter{
		Status:     models.LoanStatus(strings.ToUpper(r.URL.Query().Get("status"))),
		BorrowerID: queryUint(r, "borrowerId"),
		Pagination: queryPagination(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get возвращает кредит с состоянием, графиком и журналом статусов
func (c *LoanController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	details, err := c.loans.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// Disburse выдает одобренный кредит
func (c *LoanController) Disburse(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	loan, err := c.loans.Disburse(id, user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// ChangeStatus ручная смена статуса, списание только для администратора
func (c *LoanController) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req services.ChangeStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	loan, err := c.loans.ChangeStatus(id, req, user.UserID, user.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// Repayments платежи по кредиту
func (c *LoanController) Repayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	page, err := c.repayments.List(services.RepaymentFilter{
		LoanID:     id,
		Pagination: queryPagination(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// RefreshStatuses запускает пересчет статусов вне расписания (ADMIN).
// Параметр asOf в формате YYYY-MM-DD, по умолчанию текущий момент.
func (c *LoanController) RefreshStatuses(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid asOf date")
			return
		}
		asOf = parsed
	}

	result, err := c.loans.RefreshStatuses(r.Context(), asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
