package services

import (
	"github.com/shopspring/decimal"
	"microfinance/loanmath"
)

// storedQuote суммы расчета в том виде, в котором они сохраняются в БД
type storedQuote struct {
	Principal      float64
	MonthlyPayment float64
	TotalInterest  float64
	TotalAmount    float64
}

// roundQuote округляет расчет до копеек. Переплата считается как разница
// округленных сумм, чтобы TotalAmount = Principal + TotalInterest выполнялось точно.
func roundQuote(principal float64, q loanmath.Quote) storedQuote {
	p := decimal.NewFromFloat(principal).Round(2)
	total := decimal.NewFromFloat(q.TotalAmount).Round(2)
	if total.LessThan(p) {
		total = p
	}

	return storedQuote{
		Principal:      p.InexactFloat64(),
		MonthlyPayment: loanmath.Round2(q.MonthlyPayment),
		TotalInterest:  total.Sub(p).InexactFloat64(),
		TotalAmount:    total.InexactFloat64(),
	}
}

// subMoney a - b с точностью до копейки
func subMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// addMoney a + b с точностью до копейки
func addMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// cmpMoney сравнивает суммы, округленные до копеек
func cmpMoney(a, b float64) int {
	return decimal.NewFromFloat(a).Round(2).Cmp(decimal.NewFromFloat(b).Round(2))
}
