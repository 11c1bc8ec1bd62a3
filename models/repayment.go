package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentMethod способ оплаты
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodMobileMoney  PaymentMethod = "MOBILE_MONEY"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
)

// RepaymentStatus статус платежа по кредиту
type RepaymentStatus string

const (
	RepaymentStatusPosted   RepaymentStatus = "POSTED"   // Проведенный платеж
	RepaymentStatusReversed RepaymentStatus = "REVERSED" // Сторнированный платеж
)

// Repayment платеж заемщика по кредиту. После проведения не меняется,
// кроме административного сторнирования.
type Repayment struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	LoanID           uint            `gorm:"not null;index" json:"loanId"`
	BorrowerID       uint            `gorm:"not null;index" json:"borrowerId"`
	Amount           float64         `gorm:"type:decimal(20,2);not null" json:"amount"`
	PaidAt           time.Time       `gorm:"not null" json:"paidAt"`
	PaymentMethod    PaymentMethod   `gorm:"type:varchar(20);not null" json:"paymentMethod"`
	ReceiptNumber    string          `gorm:"size:36;uniqueIndex;not null" json:"receiptNumber"`
	ReceiptSignature string          `gorm:"size:64" json:"receiptSignature"` // HMAC номера квитанции и суммы
	BalanceBefore    float64         `gorm:"type:decimal(20,2);not null" json:"balanceBefore"`
	BalanceAfter     float64         `gorm:"type:decimal(20,2);not null" json:"balanceAfter"`
	Status           RepaymentStatus `gorm:"type:varchar(20);not null;default:'POSTED'" json:"status"`
	RecordedBy       uint            `gorm:"not null" json:"recordedBy"`
	Notes            string          `gorm:"size:255" json:"notes,omitempty"`
	ReversedBy       *uint           `json:"reversedBy,omitempty"`
	ReversedAt       *time.Time      `json:"reversedAt,omitempty"`
	ReversalReason   string          `gorm:"size:255" json:"reversalReason,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName возвращает имя таблицы для модели Repayment
func (Repayment) TableName() string {
	return "repayments"
}
