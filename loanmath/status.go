package loanmath

import (
	"math"
	"time"
)

// DaysPerOverdueMonth длина периода начисления просроченных процентов
const DaysPerOverdueMonth = 30

// DisplayStatus статус кредита, вычисленный по остатку и дате платежа
type DisplayStatus string

const (
	DisplayActive  DisplayStatus = "Active"
	DisplayOverdue DisplayStatus = "Overdue"
	DisplayClosed  DisplayStatus = "Closed"
)

// LoanSnapshot минимальный набор полей кредита для вычисления статуса
type LoanSnapshot struct {
	OutstandingBalance float64
	InterestRate       float64 // месячная ставка, доля
	DueDate            *time.Time
}

// LoanState вычисленное состояние кредита на дату
type LoanState struct {
	Status          DisplayStatus `json:"status"`
	IsOverdue       bool          `json:"is_overdue"`
	DaysOverdue     int           `json:"days_overdue"`
	MonthsOverdue   int           `json:"months_overdue"`
	OverdueInterest float64       `json:"overdue_interest"`
	TotalBalance    float64       `json:"total_balance"`
}

// DeriveLoanStatus вычисляет просрочку и сложные проценты на текущий остаток.
// Неполный 30-дневный период не начисляется.
func DeriveLoanStatus(loan LoanSnapshot, asOf time.Time) LoanState {
	balance := clamp(loan.OutstandingBalance)
	state := LoanState{TotalBalance: balance}

	if loan.DueDate != nil {
		days := int(math.Floor(asOf.Sub(*loan.DueDate).Hours() / 24))
		if days > 0 {
			state.DaysOverdue = days
		}
	}

	state.IsOverdue = state.DaysOverdue > 0 && balance > 0
	if state.IsOverdue {
		state.MonthsOverdue = state.DaysOverdue / DaysPerOverdueMonth
		state.OverdueInterest = OverdueInterest(balance, loan.InterestRate, state.MonthsOverdue)
		state.TotalBalance = balance + state.OverdueInterest
	}

	switch {
	case balance <= 0:
		state.Status = DisplayClosed
	case state.IsOverdue:
		state.Status = DisplayOverdue
	default:
		state.Status = DisplayActive
	}

	return state
}

// OverdueInterest сложные проценты на остаток за полные месяцы просрочки
func OverdueInterest(balance, monthlyRate float64, months int) float64 {
	if months <= 0 || balance <= 0 || !isFinite(monthlyRate) || monthlyRate < 0 {
		return 0
	}
	return clamp(balance * (math.Pow(1+monthlyRate, float64(months)) - 1))
}
