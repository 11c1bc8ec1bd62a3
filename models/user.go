package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Role роль сотрудника
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleLoanOfficer Role = "LOAN_OFFICER"
)

// User сотрудник микрофинансовой организации
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName string    `gorm:"column:first_name;not null;size:50" json:"firstName"`
	LastName  string    `gorm:"column:last_name;not null;size:50" json:"lastName"`
	Email     string    `gorm:"column:email;unique;not null;size:100;index" json:"email"`
	Password  string    `gorm:"column:password;not null;size:100" json:"-"`
	Role      Role      `gorm:"column:role;type:varchar(20);not null;default:'LOAN_OFFICER'" json:"role"`
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate хук для валидации перед созданием
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if len(u.FirstName) < 2 || len(u.FirstName) > 50 {
		return errors.New("first name must be between 2 and 50 characters")
	}
	if len(u.LastName) < 2 || len(u.LastName) > 50 {
		return errors.New("last name must be between 2 and 50 characters")
	}
	if len(u.Email) < 3 || len(u.Email) > 100 {
		return errors.New("email must be between 3 and 100 characters")
	}
	if u.Role == "" {
		u.Role = RoleLoanOfficer
	}
	return nil
}
