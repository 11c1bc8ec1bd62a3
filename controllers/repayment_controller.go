package controllers

import (
	"microfinance/models"
	"microfinance/services"
	"net/http"
)

// RepaymentController обрабатывает платежи по кредитам
type RepaymentController struct {
	repayments *services.RepaymentService
}

// RepaymentResponse платеж с результатом проверки подписи квитанции
type RepaymentResponse struct {
	*models.Repayment
	ReceiptValid bool `json:"receiptValid"`
}

// NewRepaymentController создает новый экземпляр RepaymentController
func NewRepaymentController(repayments *services.RepaymentService) *RepaymentController {
	return &RepaymentController{repayments: repayments}
}

// Record проводит платеж
func (c *RepaymentController) Record(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.RecordRepaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	repayment, err := c.repayments.Record(req, user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, repayment)
}

// List фильтры: loanId, borrowerId, page, pageSize
func (c *RepaymentController) List(w http.ResponseWriter, r *http.Request) {
	page, err := c.repayments.List(services.RepaymentFilter{
		LoanID:     queryUint(r, "loanId"),
		BorrowerID: queryUint(r, "borrowerId"),
		Pagination: queryPagination(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (c *RepaymentController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	repayment, err := c.repayments.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RepaymentResponse{
		Repayment:    repayment,
		ReceiptValid: c.repayments.VerifyReceipt(repayment),
	})
}

// Reverse сторнирует платеж, только для администратора
func (c *RepaymentController) Reverse(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	repayment, err := c.repayments.Reverse(id, user.UserID, user.Role, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repayment)
}
