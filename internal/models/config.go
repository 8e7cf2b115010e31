package models

import "time"

// ConfigModel is one persisted application setting. Value is always the string encoding
// of the declared Type.
type ConfigModel struct {
	ID        uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	Key       string    `json:"key"        gorm:"type:varchar(64);uniqueIndex;not null"`
	Type      string    `json:"type"       gorm:"type:varchar(16);not null"`
	Value     string    `json:"value"      gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt"  gorm:"column:createdAt"`
	UpdatedAt time.Time `json:"modifiedAt" gorm:"column:modifiedAt"`
}

func (ConfigModel) TableName() string { return "Config" }

// VipOtpModel is a single redeemable VIP code.
type VipOtpModel struct {
	Base
	Code string `json:"code" gorm:"type:varchar(6);uniqueIndex;not null"`
}

func (VipOtpModel) TableName() string { return "VipOtp" }
