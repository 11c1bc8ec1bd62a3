package models

import (
	"time"

	"gorm.io/gorm"
)

// Loan выданный (или одобренный) кредит
type Loan struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	BorrowerID         uint           `gorm:"not null;index" json:"borrowerId"`
	Borrower           *Borrower      `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`
	ApplicationID      uint           `gorm:"not null;uniqueIndex" json:"applicationId"`
	Principal          float64        `gorm:"type:decimal(20,2);not null" json:"principal"`
	InterestRate       float64        `gorm:"type:decimal(8,4);not null" json:"interestRate"` // месячная ставка, доля
	TermMonths         int            `gorm:"not null" json:"termMonths"`
	MonthlyPayment     float64        `gorm:"type:decimal(20,2);not null" json:"monthlyPayment"`
	TotalInterest      float64        `gorm:"type:decimal(20,2);not null" json:"totalInterest"`
	TotalAmount        float64        `gorm:"type:decimal(20,2);not null" json:"totalAmount"` // Principal + TotalInterest
	OutstandingBalance float64        `gorm:"type:decimal(20,2);not null" json:"outstandingBalance"`
	Status             LoanStatus     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Purpose            string         `gorm:"size:255" json:"purpose"`
	DisbursedAt        *time.Time     `json:"disbursedAt,omitempty"`
	NextPaymentDate    *time.Time     `json:"nextPaymentDate,omitempty"`
	MaturityDate       *time.Time     `json:"maturityDate,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// LoanStatus представляет статус кредита
type LoanStatus string

const (
	LoanStatusPending      LoanStatus = "PENDING"
	LoanStatusApproved     LoanStatus = "APPROVED"
	LoanStatusActive       LoanStatus = "ACTIVE"
	LoanStatusClosed       LoanStatus = "CLOSED"
	LoanStatusOverdue      LoanStatus = "OVERDUE"
	LoanStatusDefaulted    LoanStatus = "DEFAULTED"
	LoanStatusRestructured LoanStatus = "RESTRUCTURED"
	LoanStatusWrittenOff   LoanStatus = "WRITTEN_OFF"
)

// loanTransitions допустимые переходы между статусами
var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending:      {LoanStatusApproved},
	LoanStatusApproved:     {LoanStatusActive},
	LoanStatusActive:       {LoanStatusOverdue, LoanStatusClosed, LoanStatusRestructured, LoanStatusDefaulted, LoanStatusWrittenOff},
	LoanStatusOverdue:      {LoanStatusActive, LoanStatusClosed, LoanStatusRestructured, LoanStatusDefaulted, LoanStatusWrittenOff},
	LoanStatusRestructured: {LoanStatusActive, LoanStatusOverdue, LoanStatusClosed, LoanStatusDefaulted, LoanStatusWrittenOff},
	LoanStatusDefaulted:    {LoanStatusRestructured, LoanStatusClosed, LoanStatusWrittenOff},
	// Закрытый кредит открывается заново только при сторнировании платежа
	LoanStatusClosed:     {LoanStatusActive, LoanStatusOverdue},
	LoanStatusWrittenOff: {},
}

// CanTransition проверяет, допустим ли переход из статуса from в статус to
func CanTransition(from, to LoanStatus) bool {
	for _, s := range loanTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValid проверяет, что статус известен
func (s LoanStatus) IsValid() bool {
	_, ok := loanTransitions[s]
	return ok
}

// AcceptsRepayments статусы, в которых принимаются платежи
func (s LoanStatus) AcceptsRepayments() bool {
	switch s {
	case LoanStatusActive, LoanStatusOverdue, LoanStatusRestructured, LoanStatusDefaulted:
		return true
	}
	return false
}

// RequiresAdmin списание и дефолт выставляет только администратор
func (s LoanStatus) RequiresAdmin() bool {
	return s == LoanStatusDefaulted || s == LoanStatusWrittenOff
}

// DueDate дата, от которой считается просрочка
func (l Loan) DueDate() *time.Time {
	if l.NextPaymentDate != nil {
		return l.NextPaymentDate
	}
	return l.MaturityDate
}

// TableName возвращает имя таблицы для модели Loan
func (Loan) TableName() string {
	return "loans"
}

// LoanStatusChange запись журнала смены статусов
type LoanStatusChange struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	LoanID     uint       `gorm:"not null;index" json:"loanId"`
	FromStatus LoanStatus `gorm:"type:varchar(20);not null" json:"fromStatus"`
	ToStatus   LoanStatus `gorm:"type:varchar(20);not null" json:"toStatus"`
	Reason     string     `gorm:"size:255" json:"reason,omitempty"`
	ChangedBy  *uint      `json:"changedBy,omitempty"` // nil для планировщика
	CreatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName возвращает имя таблицы для модели LoanStatusChange
func (LoanStatusChange) TableName() string {
	return "loan_status_changes"
}
