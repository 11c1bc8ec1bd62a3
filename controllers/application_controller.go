package controllers

import (
	"microfinance/models"
	"microfinance/services"
	"net/http"
	"strings"
)

// ApplicationController обрабатывает заявки на кредит
type ApplicationController struct {
	applications *services.ApplicationService
}

// NewApplicationController создает новый экземпляр ApplicationController
func NewApplicationController(applications *services.ApplicationService) *ApplicationController {
	return &ApplicationController{applications: applications}
}

// Submit принимает заявку, расчет выполняется по тарифной ставке
func (c *ApplicationController) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.SubmitApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	app, err := c.applications.Submit(req, user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// List фильтры: status, borrowerId, page, pageSize
func (c *ApplicationController) List(w http.ResponseWriter, r *http.Request) {
	page, err := c.applications.List(services.ApplicationFilter{
		Status:     models.ApplicationStatus(strings.ToUpper(r.URL.Query().Get("status"))),
		BorrowerID: queryUint(r, "borrowerId"),
		Pagination: queryPagination(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (c *ApplicationController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	app, err := c.applications.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// Approve одобряет заявку и возвращает созданный кредит
func (c *ApplicationController) Approve(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	loan, err := c.applications.Approve(id, user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (c *ApplicationController) Reject(w http.ResponseWriter, r *http.Request) {
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

	app, err := c.applications.Reject(id, user.UserID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
