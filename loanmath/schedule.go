package loanmath

import (
	"time"

	"github.com/shopspring/decimal"
)

// Installment строка графика платежей
type Installment struct {
	Number    int       `json:"number"`
	DueDate   time.Time `json:"due_date"`
	Payment   float64   `json:"payment"`
	Interest  float64   `json:"interest"`
	Principal float64   `json:"principal"`
	Balance   float64   `json:"balance"`
}

// Schedule строит график платежей. Для аннуитета проценты считаются на
// убывающий остаток, для простых процентов делятся поровну. Последний платеж
// поглощает ошибку округления, остаток после него равен нулю.
func Schedule(principal, monthlyRate float64, termMonths int, start time.Time) []Installment {
	quote := Amortize(principal, monthlyRate, termMonths)
	if !quote.IsValid {
		return nil
	}

	compound := termMonths > SimpleInterestMaxTerm && monthlyRate > 0
	payment := decimal.NewFromFloat(quote.MonthlyPayment).Round(2)
	rate := decimal.NewFromFloat(monthlyRate)
	flatInterest := decimal.NewFromFloat(quote.TotalInterest).
		Div(decimal.NewFromInt(int64(termMonths))).Round(2)

	remaining := decimal.NewFromFloat(principal).Round(2)
	installments := make([]Installment, termMonths)

	for i := 0; i < termMonths; i++ {
		// Рассчитываем проценты за текущий месяц
		interest := flatInterest
		if compound {
			interest = remaining.Mul(rate).Round(2)
		}

		// Основной долг
		principalPart := payment.Sub(interest)
		if i == termMonths-1 || principalPart.GreaterThan(remaining) {
			principalPart = remaining
		}
		remaining = remaining.Sub(principalPart)

		installments[i] = Installment{
			Number:    i + 1,
			DueDate:   start.AddDate(0, i+1, 0),
			Payment:   principalPart.Add(interest).InexactFloat64(),
			Interest:  interest.InexactFloat64(),
			Principal: principalPart.InexactFloat64(),
			Balance:   remaining.InexactFloat64(),
		}
	}

	return installments
}
