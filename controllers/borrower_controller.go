package controllers

import (
	"microfinance/services"
	"net/http"
)

// BorrowerController обрабатывает запросы, связанные с заемщиками
type BorrowerController struct {
	borrowers *services.BorrowerService
	savings   *services.SavingsService
}

// NewBorrowerController создает новый экземпляр BorrowerController
func NewBorrowerController(borrowers *services.BorrowerService, savings *services.SavingsService) *BorrowerController {
	return &BorrowerController{borrowers: borrowers, savings: savings}
}

// Create регистрирует заемщика
func (c *BorrowerController) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateBorrowerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	borrower, err := c.borrowers.Create(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, borrower)
}

// List возвращает страницу заемщиков, параметр search ищет по имени, телефону и ID
func (c *BorrowerController) List(w http.ResponseWriter, r *http.Request) {
	page, err := c.borrowers.List(services.BorrowerFilter{
		Search:     r.URL.Query().Get("search"),
		Pagination: queryPagination(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (c *BorrowerController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	borrower, err := c.borrowers.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, borrower)
}

func (c *BorrowerController) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req services.UpdateBorrowerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	borrower, err := c.borrowers.Update(id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, borrower)
}

func (c *BorrowerController) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := c.borrowers.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Loans возвращает кредиты заемщика
func (c *BorrowerController) Loans(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	loans, err := c.borrowers.ListLoans(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

// Savings возвращает сберегательные счета заемщика
func (c *BorrowerController) Savings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := c.borrowers.GetByID(id); err != nil {
		writeError(w, err)
		return
	}
	accounts, err := c.savings.ListByBorrower(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}
