package models

import "time"

type UserRole string

const (
	RoleOwner   UserRole = "owner"
	RoleCashier UserRole = "cashier"
)

type User struct {
	ID        uint `gorm:"primaryKey"`
	CompanyID uint `gorm:"index;not null"`
	Company   *Company
	Name      string   `gorm:"size:100;not null"`
	Email     string   `gorm:"size:100;uniqueIndex;not null"`
	Role      UserRole `gorm:"size:20;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
