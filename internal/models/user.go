package models

// Role is the closed set of session roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleVIP   Role = "VIP"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleVIP, RoleAdmin:
		return true
	}
	return false
}

type UserModel struct {
	Base
	Name   string       `json:"name"             gorm:"not null"`
	Role   Role         `json:"role"             gorm:"type:varchar(16);not null;default:USER;index"`
	Orders []OrderModel `json:"orders,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (UserModel) TableName() string { return "User" }
