package loanmath

// RateTier ступень тарифной сетки: суммы от MinAmount (включительно)
// получают ставку MonthlyRate
type RateTier struct {
	MinAmount   float64 `json:"min_amount"`
	MonthlyRate float64 `json:"monthly_rate"`
}

// RateTiers тарифная сетка по запрошенной сумме (UGX), по убыванию порога
var RateTiers = []RateTier{
	{MinAmount: 5_000_000, MonthlyRate: 0.10},
	{MinAmount: 2_000_000, MonthlyRate: 0.12},
	{MinAmount: 500_000, MonthlyRate: 0.15},
	{MinAmount: 0, MonthlyRate: 0.20},
}

// RateForAmount возвращает месячную ставку для запрошенной суммы.
// Ставка зависит только от суммы заявки, а не от остатка долга.
func RateForAmount(amount float64) float64 {
	for _, tier := range RateTiers {
		if amount >= tier.MinAmount {
			return tier.MonthlyRate
		}
	}
	// Отрицательные суммы попадают в самую дорогую ступень
	return RateTiers[len(RateTiers)-1].MonthlyRate
}
