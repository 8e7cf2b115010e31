package user

import (
	"errors"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/jwt"
)

var (
	ErrNotFound        = errors.New("user does not exist")
	ErrTooManyAttempts = errors.New("too many failed attempts")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidCode     = errors.New("invalid code")
)

type CreateDTO struct {
	Name string `json:"name" binding:"required,max=64"`
}

type ListQuery struct {
	Role   string `form:"role"   binding:"omitempty,oneof=USER VIP ADMIN"`
	ID     string `form:"id"     binding:"omitempty,uuid"`
	Orders string `form:"orders" binding:"omitempty,oneof=true false"`
}

type UpgradeAdminDTO struct {
	Password string `json:"password" binding:"required"`
}

type OtpDTO struct {
	Otp string `json:"otp" binding:"required,len=6,numeric"`
}

// sessionResponse is a user row merged with a freshly issued token.
type sessionResponse struct {
	*models.UserModel
	*jwt.Token
}
