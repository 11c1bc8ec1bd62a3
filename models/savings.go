package models

import (
	"time"
)

// SavingsStatus статус сберегательного счета
type SavingsStatus string

const (
	SavingsStatusActive SavingsStatus = "ACTIVE"
	SavingsStatusClosed SavingsStatus = "CLOSED"
)

// SavingsAccount сберегательный счет заемщика
type SavingsAccount struct {
	ID         uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	BorrowerID uint          `gorm:"column:borrower_id;not null;index" json:"borrowerId"`
	Number     string        `gorm:"column:number;unique;not null;size:20" json:"number"`
	Balance    float64       `gorm:"column:balance;type:decimal(20,2);not null;default:0.0" json:"balance"`
	Status     SavingsStatus `gorm:"column:status;type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	CreatedAt  time.Time     `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt  time.Time     `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (SavingsAccount) TableName() string {
	return "savings_accounts"
}

// SavingsTransactionType тип операции по сберегательному счету
type SavingsTransactionType string

const (
	SavingsDeposit    SavingsTransactionType = "DEPOSIT"
	SavingsWithdrawal SavingsTransactionType = "WITHDRAWAL"
)

type SavingsTransaction struct {
	ID            uint                   `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID     uint                   `gorm:"column:account_id;not null;index" json:"accountId"`
	Amount        float64                `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Type          SavingsTransactionType `gorm:"column:type;not null;size:20" json:"type"`
	BalanceBefore float64                `gorm:"column:balance_before;type:decimal(20,2);not null" json:"balanceBefore"`
	BalanceAfter  float64                `gorm:"column:balance_after;type:decimal(20,2);not null" json:"balanceAfter"`
	Description   string                 `gorm:"column:description;size:255" json:"description,omitempty"`
	RecordedBy    uint                   `gorm:"column:recorded_by;not null" json:"recordedBy"`
	CreatedAt     time.Time              `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (SavingsTransaction) TableName() string {
	return "savings_transactions"
}
