package models

import (
	"time"

	"gorm.io/gorm"
)

// Borrower заемщик
type Borrower struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	FirstName     string         `gorm:"column:first_name;not null;size:50" json:"firstName"`
	LastName      string         `gorm:"column:last_name;not null;size:50" json:"lastName"`
	NationalID    string         `gorm:"column:national_id;uniqueIndex;not null;size:30" json:"nationalId"`
	Phone         string         `gorm:"column:phone;not null;size:20;index" json:"phone"`
	Email         string         `gorm:"column:email;size:100" json:"email,omitempty"`
	Address       string         `gorm:"column:address;size:255" json:"address,omitempty"`
	Occupation    string         `gorm:"column:occupation;size:100" json:"occupation,omitempty"`
	MonthlyIncome float64        `gorm:"column:monthly_income;type:decimal(20,2);not null;default:0" json:"monthlyIncome"`
	CreditScore   *int           `gorm:"column:credit_score" json:"creditScore,omitempty"`
	CreditRating  string         `gorm:"column:credit_rating;size:20" json:"creditRating,omitempty"` // выставляется служебной командой
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName возвращает имя таблицы для модели Borrower
func (Borrower) TableName() string {
	return "borrowers"
}

// FullName имя и фамилия заемщика
func (b Borrower) FullName() string {
	return b.FirstName + " " + b.LastName
}
