package controllers

import (
	"microfinance/services"
	"net/http"
)

// CalculatorController публичный кредитный калькулятор
type CalculatorController struct {
	calculator *services.CalculatorService
}

func NewCalculatorController(calculator *services.CalculatorService) *CalculatorController {
	return &CalculatorController{calculator: calculator}
}

// Quote рассчитывает платеж и график без сохранения
func (c *CalculatorController) Quote(w http.ResponseWriter, r *http.Request) {
	var req services.QuoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := c.calculator.Quote(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
