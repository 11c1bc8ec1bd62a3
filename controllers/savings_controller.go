package controllers

import (
	"microfinance/models"
	"microfinance/services"
	"net/http"
)

// SavingsController обрабатывает операции по сберегательным счетам
type SavingsController struct {
	savings *services.SavingsService
}

// NewSavingsController создает новый экземпляр SavingsController
func NewSavingsController(savings *services.SavingsService) *SavingsController {
	return &SavingsController{savings: savings}
}

// Open открывает сберегательный счет заемщику
func (c *SavingsController) Open(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.OpenSavingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := c.savings.Open(req, user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (c *SavingsController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	account, err := c.savings.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Deposit пополняет счет
func (c *SavingsController) Deposit(w http.ResponseWriter, r *http.Request) {
	c.move(w, r, c.savings.Deposit)
}

// Withdraw снимает средства со счета
func (c *SavingsController) Withdraw(w http.ResponseWriter, r *http.Request) {
	c.move(w, r, c.savings.Withdraw)
}

type movementFunc func(accountID uint, req services.SavingsMovementRequest, userID uint) (*models.SavingsAccount, error)

func (c *SavingsController) move(w http.ResponseWriter, r *http.Request, op movementFunc) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req services.SavingsMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := op(id, req, user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Close закрывает счет с нулевым балансом
func (c *SavingsController) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	account, err := c.savings.Close(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Transactions история операций по счету
func (c *SavingsController) Transactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	page, err := c.savings.Transactions(id, queryPagination(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
