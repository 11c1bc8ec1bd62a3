// Package loanmath содержит расчеты по кредитам: аннуитет, тарифная сетка,
// просроченные проценты и вычисление статуса кредита. Все функции чистые.
package loanmath

import (
	"math"

	"github.com/shopspring/decimal"
)

// SimpleInterestMaxTerm максимальный срок (в месяцах), для которого
// применяются простые проценты вместо аннуитетной формулы
const SimpleInterestMaxTerm = 2

// Quote результат расчета кредита
type Quote struct {
	MonthlyPayment float64 `json:"monthly_payment"`
	TotalAmount    float64 `json:"total_amount"`
	TotalInterest  float64 `json:"total_interest"`
	IsValid        bool    `json:"is_valid"`
}

// Amortize рассчитывает ежемесячный платеж, общую сумму и переплату.
// monthlyRate задается долей (0.15 = 15% в месяц). Отрицательная или NaN ставка
// считается незаданной.
func Amortize(principal, monthlyRate float64, termMonths int) Quote {
	if !isFinite(principal) || !isFinite(monthlyRate) ||
		principal <= 0 || termMonths <= 0 || monthlyRate < 0 {
		return Quote{}
	}

	n := float64(termMonths)

	var q Quote
	switch {
	case termMonths <= SimpleInterestMaxTerm:
		// Короткий срок: простые проценты
		q.TotalInterest = principal * monthlyRate * n
		q.TotalAmount = principal + q.TotalInterest
		q.MonthlyPayment = q.TotalAmount / n
	case monthlyRate == 0:
		// Беспроцентный кредит: тело делится поровну
		q.MonthlyPayment = principal / n
		q.TotalAmount = principal
		q.TotalInterest = 0
	default:
		// (1+r)^n - 1 через Expm1/Log1p, чтобы не терять точность на малых ставках
		growthMinusOne := math.Expm1(n * math.Log1p(monthlyRate))
		switch {
		case math.IsInf(growthMinusOne, 1):
			// r*g/(g-1) стремится к r
			q.MonthlyPayment = principal * monthlyRate
		case growthMinusOne <= 0:
			q.MonthlyPayment = principal / n
		default:
			q.MonthlyPayment = principal * monthlyRate * (growthMinusOne + 1) / growthMinusOne
		}
		q.TotalAmount = q.MonthlyPayment * n
		q.TotalInterest = q.TotalAmount - principal
	}

	// Переполнение дает недействительный расчет, а не нули
	if !isFinite(q.MonthlyPayment) || !isFinite(q.TotalAmount) || !isFinite(q.TotalInterest) {
		return Quote{}
	}
	q.IsValid = true

	return q
}

// Round2 округляет денежную сумму до двух знаков
func Round2(value float64) float64 {
	if !isFinite(value) {
		return 0
	}
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// clamp заменяет NaN и бесконечность нулем
func clamp(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}
