package models

import (
	"time"

	"gorm.io/gorm"
)

// ApplicationStatus статус заявки на кредит
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

// LoanApplication заявка на кредит с предварительным расчетом
type LoanApplication struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	BorrowerID      uint              `gorm:"not null;index" json:"borrowerId"`
	Borrower        *Borrower         `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`
	Amount          float64           `gorm:"type:decimal(20,2);not null" json:"amount"`
	TermMonths      int               `gorm:"not null" json:"termMonths"`
	Purpose         string            `gorm:"size:255" json:"purpose"`
	InterestRate    float64           `gorm:"type:decimal(8,4);not null" json:"interestRate"` // месячная ставка, доля
	MonthlyPayment  float64           `gorm:"type:decimal(20,2);not null" json:"monthlyPayment"`
	TotalInterest   float64           `gorm:"type:decimal(20,2);not null" json:"totalInterest"`
	TotalAmount     float64           `gorm:"type:decimal(20,2);not null" json:"totalAmount"`
	Status          ApplicationStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	SubmittedBy     uint              `gorm:"not null" json:"submittedBy"`
	ReviewedBy      *uint             `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewedAt,omitempty"`
	RejectionReason string            `gorm:"size:255" json:"rejectionReason,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt    `gorm:"index" json:"-"`
}

// TableName возвращает имя таблицы для модели LoanApplication
func (LoanApplication) TableName() string {
	return "loan_applications"
}
